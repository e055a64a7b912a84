package ui

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/arthur-debert/symblink/pkg/errors"
)

// Format represents the output format type
type Format int

const (
	// FormatAuto picks FormatTerminal or FormatText from the output stream
	FormatAuto Format = iota
	// FormatTerminal renders colored, aligned result lines
	FormatTerminal
	// FormatText renders the same lines without styling
	FormatText
	// FormatJSON renders one JSON document per result
	FormatJSON
)

// FormatNames lists the accepted --format values.
var FormatNames = []string{"auto", "term", "text", "json"}

func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatTerminal:
		return "term"
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFormat parses a --format value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return FormatAuto, nil
	case "term", "terminal":
		return FormatTerminal, nil
	case "text", "plain":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatAuto, errors.Newf(errors.ErrInvalidInput, "unknown format %q (want one of %s)",
			s, strings.Join(FormatNames, ", ")).WithDetail("format", s)
	}
}

// DetectFormat chooses between FormatTerminal and FormatText. NO_COLOR, a
// redirected stream or a colorless terminal all mean plain text.
func DetectFormat(output *os.File) Format {
	if os.Getenv("NO_COLOR") != "" {
		return FormatText
	}
	if !isatty.IsTerminal(output.Fd()) && !isatty.IsCygwinTerminal(output.Fd()) {
		return FormatText
	}
	if termenv.NewOutput(output).ColorProfile() == termenv.Ascii {
		return FormatText
	}
	return FormatTerminal
}
