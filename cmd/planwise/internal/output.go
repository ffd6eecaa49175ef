package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// FormatText renders aligned tables and prefixed one-liners for humans.
	FormatText OutputFormat = "text"
	// FormatJSON renders machine-readable documents for schedulers and
	// scripts wrapping the CLI.
	FormatJSON OutputFormat = "json"
)

// Printer renders command results in the selected output format. Run
// summaries and status reports have a natural document shape, so JSON mode
// marshals them directly via Document; tabular results go through Table,
// which emits header-keyed objects instead of a flattened grid.
type Printer struct {
	format OutputFormat
	w      io.Writer
}

// NewPrinter creates a printer for the given format. A nil writer defaults
// to stdout.
func NewPrinter(format OutputFormat, w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{format: format, w: w}
}

// JSONMode reports whether the printer emits JSON. Commands use it to skip
// table flattening and marshal their result document whole.
func (p *Printer) JSONMode() bool {
	return p.format == FormatJSON
}

// Success prints a completion message.
func (p *Printer) Success(message string) error {
	if p.JSONMode() {
		return p.Document(map[string]string{"result": "ok", "message": message})
	}
	_, err := fmt.Fprintf(p.w, "✓ %s\n", message)
	return err
}

// Failure prints a failure message. It does not terminate the command; the
// caller decides whether the condition is fatal.
func (p *Printer) Failure(message string) error {
	if p.JSONMode() {
		return p.Document(map[string]string{"result": "failed", "message": message})
	}
	_, err := fmt.Fprintf(p.w, "✗ %s\n", message)
	return err
}

// Line prints a plain informational line in text mode and is silent in JSON
// mode, where commands emit structured documents instead.
func (p *Printer) Line(format string, args ...any) {
	if p.JSONMode() {
		return
	}
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Table prints rows under the given headers: tab-aligned uppercase-headed
// columns in text mode, an array of objects keyed by snake_cased headers in
// JSON mode.
func (p *Printer) Table(headers []string, rows [][]string) error {
	if p.JSONMode() {
		docs := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			doc := make(map[string]string, len(headers))
			for i, h := range headers {
				if i < len(row) {
					doc[columnKey(h)] = row[i]
				}
			}
			docs = append(docs, doc)
		}
		return p.Document(docs)
	}

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(headers, "\t")))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// Document marshals v as an indented JSON document regardless of format.
func (p *Printer) Document(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func columnKey(header string) string {
	return strings.ReplaceAll(strings.ToLower(header), " ", "_")
}
