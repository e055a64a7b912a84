// Package text provides plain text output without any styling
package text

import (
	"fmt"
	"io"
	"sync"

	"github.com/arthur-debert/symblink/pkg/types"
	"github.com/arthur-debert/symblink/pkg/ui/display"
)

// Renderer writes results as aligned plain text
type Renderer struct {
	mu     sync.Mutex
	output io.Writer
}

// New creates a text renderer
func New(output io.Writer) *Renderer {
	return &Renderer{output: output}
}

// RenderResult writes one line per result.
func (r *Renderer) RenderResult(res types.Result) error {
	l := display.FromResult(res)
	line := fmt.Sprintf("%-15s%s", l.Outcome, l.Subject)
	if l.Detail != "" {
		line += "  " + l.Detail
	}
	if l.Duration > 0 {
		line += "  " + l.Duration.String()
	}
	return r.printf("%s\n", line)
}

// RenderSummary writes the tally on one line.
func (r *Renderer) RenderSummary(tally map[types.Outcome]int) error {
	return r.printf("Summary: %s\n", display.SummaryText(tally))
}

// RenderError renders an error as plain text
func (r *Renderer) RenderError(err error) error {
	return r.printf("Error: %v\n", err)
}

// RenderMessage renders a simple message
func (r *Renderer) RenderMessage(msg string) error {
	return r.printf("%s\n", msg)
}

func (r *Renderer) printf(format string, args ...interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintf(r.output, format, args...)
	return err
}
