// Package json provides machine-readable JSON output, one document per line
package json

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/arthur-debert/symblink/pkg/errors"
	"github.com/arthur-debert/symblink/pkg/types"
)

// Renderer provides JSON output for machine consumption
type Renderer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// New creates a new JSON renderer
func New(output io.Writer) *Renderer {
	return &Renderer{encoder: json.NewEncoder(output)}
}

type result struct {
	types.Result
	Error     string                 `json:"error,omitempty"`
	ErrorCode errors.ErrorCode       `json:"errorCode,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// RenderResult encodes res together with its error, which Result itself
// does not serialize.
func (r *Renderer) RenderResult(res types.Result) error {
	out := result{Result: res}
	if res.Err != nil {
		out.Error = res.Err.Error()
		out.ErrorCode = errors.GetErrorCode(res.Err)
		out.Details = errors.GetErrorDetails(res.Err)
	}
	return r.encode(out)
}

// RenderSummary encodes the tally as {"summary": {...}}.
func (r *Renderer) RenderSummary(tally map[types.Outcome]int) error {
	if tally == nil {
		tally = map[types.Outcome]int{}
	}
	return r.encode(map[string]interface{}{"summary": tally})
}

// RenderError renders an error as JSON
func (r *Renderer) RenderError(err error) error {
	obj := map[string]interface{}{"error": err.Error()}
	if code := errors.GetErrorCode(err); code != errors.ErrUnknown {
		obj["errorCode"] = code
	}
	return r.encode(obj)
}

// RenderMessage renders a simple message as JSON
func (r *Renderer) RenderMessage(msg string) error {
	return r.encode(map[string]string{"message": msg})
}

func (r *Renderer) encode(v interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.encoder.Encode(v)
}
