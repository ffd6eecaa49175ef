package resilience

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

func TestRecoveryDecisions(t *testing.T) {
	registry := NewRecoveryRegistry(nil)

	tests := []struct {
		name       string
		err        error
		wantAction Action
	}{
		{
			name:       "corrupt database needs restore",
			err:        types.NewError(types.DB_CORRUPT, "integrity check failed"),
			wantAction: ActionRestore,
		},
		{
			name:       "locked database retries",
			err:        errors.New("database is locked"),
			wantAction: ActionRetry,
		},
		{
			name:       "bad config needs reconfigure",
			err:        types.NewError(types.CONFIG_VALIDATION_FAILED, "threads must be at least 1"),
			wantAction: ActionReconfigure,
		},
		{
			name:       "missing engine binary needs reconfigure",
			err:        types.NewError(types.ENGINE_SPAWN_FAILED, "executable not found"),
			wantAction: ActionReconfigure,
		},
		{
			name:       "validation finding needs investigation",
			err:        types.NewError(types.STAGE_VALIDATION_FAILED, "no events for year 2026"),
			wantAction: ActionManual,
		},
		{
			name:       "disk pressure retries after cleanup",
			err:        errors.New("no space left on device"),
			wantAction: ActionRetry,
		},
		{
			name:       "transient engine failure retries",
			err:        types.NewRetryableError(types.ENGINE_EXECUTION_FAILED, "exit code 1"),
			wantAction: ActionRetry,
		},
		{
			name:       "open circuit resumes later",
			err:        types.NewError(types.CIRCUIT_OPEN, "blocked until later"),
			wantAction: ActionResume,
		},
		{
			name:       "corrupt checkpoint needs inspection",
			err:        types.NewError(types.CHECKPOINT_CORRUPT, "checksum mismatch"),
			wantAction: ActionManual,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := registry.DecisionFor(tt.err)
			assert.Equal(t, tt.wantAction, decision.Action)
			assert.NotEmpty(t, decision.Hint)
		})
	}
}

func TestRecoveryUnwrapsRetryExhaustion(t *testing.T) {
	registry := NewRecoveryRegistry(nil)

	// The decision must reflect the corruption underneath, not the wrapper
	err := types.WrapError(types.RETRY_EXHAUSTED, "operation failed after 3 attempts",
		types.NewError(types.DB_CORRUPT, "integrity check failed"))

	decision := registry.DecisionFor(err)
	assert.Equal(t, ActionRestore, decision.Action)
}

func TestRecoveryRegisterOverride(t *testing.T) {
	registry := NewRecoveryRegistry(nil)

	registry.Register(types.CategoryDataQuality, func(class Classification, err error) Decision {
		return Decision{Action: ActionResume, Hint: "custom hint"}
	})

	decision := registry.DecisionFor(types.NewError(types.STAGE_VALIDATION_FAILED, "bad data"))
	assert.Equal(t, ActionResume, decision.Action)
	assert.Equal(t, "custom hint", decision.Hint)
}

func TestRecoveryNilError(t *testing.T) {
	registry := NewRecoveryRegistry(nil)
	assert.Equal(t, Decision{}, registry.DecisionFor(nil))
}
