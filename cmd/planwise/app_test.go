package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYearRange(t *testing.T) {
	tests := []struct {
		name      string
		arg       string
		wantStart int
		wantEnd   int
		wantErr   string
	}{
		{name: "multi year", arg: "2025-2029", wantStart: 2025, wantEnd: 2029},
		{name: "single year", arg: "2025", wantStart: 2025, wantEnd: 2025},
		{name: "same start and end", arg: "2030-2030", wantStart: 2030, wantEnd: 2030},
		{name: "spaces tolerated", arg: " 2025 - 2027 ", wantStart: 2025, wantEnd: 2027},
		{name: "inverted range", arg: "2029-2025", wantErr: "after end year"},
		{name: "not a number", arg: "twenty-five", wantErr: "invalid year"},
		{name: "missing end", arg: "2025-", wantErr: "invalid year"},
		{name: "year too small", arg: "1899-2025", wantErr: "out of range"},
		{name: "year too large", arg: "2025-10000", wantErr: "out of range"},
		{name: "empty", arg: "", wantErr: "invalid year"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end, err := parseYearRange(tc.arg)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantStart, start)
			assert.Equal(t, tc.wantEnd, end)
		})
	}
}
