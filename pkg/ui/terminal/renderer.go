// Package terminal provides colored result output
package terminal

import (
	"fmt"
	"io"
	"sync"

	"github.com/arthur-debert/symblink/pkg/types"
	"github.com/arthur-debert/symblink/pkg/ui/display"
	"github.com/arthur-debert/symblink/pkg/ui/styles"
)

// Renderer writes one styled line per result
type Renderer struct {
	mu     sync.Mutex
	output io.Writer
}

// New creates a terminal renderer
func New(output io.Writer) *Renderer {
	return &Renderer{output: output}
}

// RenderResult writes the outcome label, the mod id and what happened.
func (r *Renderer) RenderResult(res types.Result) error {
	l := display.FromResult(res)

	detail := styles.Get("Detail").Render(l.Detail)
	if l.Code != "" {
		detail = styles.Get("Code").Render(string(l.Code)) + " " + detail
	}
	line := styles.ForOutcome(l.Outcome).Render(string(l.Outcome)) +
		styles.Get("Subject").Render(l.Subject)
	if l.Detail != "" {
		line += "  " + detail
	}
	if l.Duration > 0 {
		line += "  " + styles.Get("Muted").Render(l.Duration.String())
	}
	return r.println(line)
}

// RenderSummary writes a header and one row per outcome.
func (r *Renderer) RenderSummary(tally map[types.Outcome]int) error {
	counts := display.Summarize(tally)
	if len(counts) == 0 {
		return r.println(styles.Get("Muted").Render("no files processed"))
	}
	out := styles.Get("Header").Render("Summary") + "\n"
	for _, c := range counts {
		out += styles.ForOutcome(c.Outcome).Render(string(c.Outcome)) + fmt.Sprintf("%d", c.N) + "\n"
	}
	return r.print(out)
}

// RenderError writes err in the error style.
func (r *Renderer) RenderError(err error) error {
	return r.println(styles.Get("Error").Render("Error:") + " " + err.Error())
}

// RenderMessage writes msg in the info style.
func (r *Renderer) RenderMessage(msg string) error {
	return r.println(styles.Get("Info").Render(msg))
}

func (r *Renderer) println(s string) error {
	return r.print(s + "\n")
}

func (r *Renderer) print(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := io.WriteString(r.output, s)
	return err
}
