package output

import (
	"encoding/json"
	"fmt"
	"io"

	"cilscan/internal/engine"
)

// Record is the JSONL form of a violation.
type Record struct {
	Module  string `json:"module,omitempty"`
	CheckID string `json:"check"`
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Offset  *int   `json:"offset,omitempty"` // absent when the finding has no IL location
	Detail  string `json:"detail,omitempty"`
}

// NewRecord converts a violation found in module.
func NewRecord(module string, v engine.Violation) Record {
	r := Record{
		Module:  module,
		CheckID: v.CheckID,
		Kind:    v.Entity.Kind.String(),
		Name:    v.Entity.Name,
		Detail:  v.Detail,
	}
	if v.Offset >= 0 {
		off := v.Offset
		r.Offset = &off
	}
	return r
}

// Writer is a Reporter that streams violations to an io.Writer. Report
// cannot fail, so the first write error is kept and returned by Err.
type Writer struct {
	w      io.Writer
	enc    *json.Encoder // nil for text output
	module string
	count  int
	err    error
}

// NewTextWriter writes one line per violation:
//
//	CHECK  kind  name  IL_xxxx  detail
func NewTextWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// NewJSONLWriter writes one JSON object per violation.
func NewJSONLWriter(w io.Writer) *Writer {
	return &Writer{w: w, enc: json.NewEncoder(w)}
}

// SetModule names the module subsequent violations belong to.
func (w *Writer) SetModule(name string) { w.module = name }

// Count is the number of violations reported so far.
func (w *Writer) Count() int { return w.count }

// Err returns the first write error.
func (w *Writer) Err() error { return w.err }

func (w *Writer) Report(v engine.Violation) {
	w.count++
	if w.err != nil {
		return
	}
	if w.enc != nil {
		if err := w.enc.Encode(NewRecord(w.module, v)); err != nil {
			w.err = fmt.Errorf("output: encode violation: %w", err)
		}
		return
	}
	loc := "-"
	if v.Offset >= 0 {
		loc = fmt.Sprintf("IL_%04x", v.Offset)
	}
	line := fmt.Sprintf("%-7s %-6s %s  %s", v.CheckID, v.Entity.Kind, v.Entity.Name, loc)
	if v.Detail != "" {
		line += "  " + v.Detail
	}
	if _, err := fmt.Fprintln(w.w, line); err != nil {
		w.err = fmt.Errorf("output: write violation: %w", err)
	}
}

// Tee is a Reporter that forwards each violation to every reporter.
type Tee []engine.Reporter

func (t Tee) Report(v engine.Violation) {
	for _, r := range t {
		r.Report(v)
	}
}
