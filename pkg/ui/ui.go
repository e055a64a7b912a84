// Package ui renders pipeline results for people (styled or plain text) and
// for scripts (JSON).
package ui

import (
	"io"
	"os"

	"github.com/arthur-debert/symblink/pkg/errors"
	"github.com/arthur-debert/symblink/pkg/types"
	"github.com/arthur-debert/symblink/pkg/ui/json"
	"github.com/arthur-debert/symblink/pkg/ui/terminal"
	"github.com/arthur-debert/symblink/pkg/ui/text"
)

// Renderer writes results in one output format. Implementations are safe for
// concurrent use.
type Renderer interface {
	// RenderResult writes one finished pipeline run.
	RenderResult(res types.Result) error

	// RenderSummary writes how many runs ended with each outcome.
	RenderSummary(tally map[types.Outcome]int) error

	// RenderError writes an error that is not tied to a run.
	RenderError(err error) error

	// RenderMessage writes an informational line.
	RenderMessage(msg string) error
}

// NewRenderer creates a renderer for format. FormatAuto inspects output when
// it is a file and falls back to plain text otherwise.
func NewRenderer(format Format, output io.Writer) (Renderer, error) {
	switch format {
	case FormatAuto:
		if file, ok := output.(*os.File); ok {
			return NewRenderer(DetectFormat(file), output)
		}
		return NewRenderer(FormatText, output)
	case FormatTerminal:
		return terminal.New(output), nil
	case FormatText:
		return text.New(output), nil
	case FormatJSON:
		return json.New(output), nil
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown format: %v", format)
	}
}
