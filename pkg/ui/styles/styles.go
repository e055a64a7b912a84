// Package styles holds the lipgloss styles of the terminal renderer. They are
// defined in the embedded styles.yaml using adaptive light/dark colors.
package styles

import (
	_ "embed"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/symblink/pkg/types"
)

// ColorDef is an adaptive color in styles.yaml.
type ColorDef struct {
	Light string `yaml:"light"`
	Dark  string `yaml:"dark"`
}

// StyleDef is a style in styles.yaml. Foreground and Background name a color.
type StyleDef struct {
	Bold         bool   `yaml:"bold,omitempty"`
	Italic       bool   `yaml:"italic,omitempty"`
	Foreground   string `yaml:"foreground,omitempty"`
	Background   string `yaml:"background,omitempty"`
	Width        int    `yaml:"width,omitempty"`
	MarginBottom int    `yaml:"marginBottom,omitempty"`
}

// Config is the whole styles.yaml document.
type Config struct {
	Colors map[string]ColorDef `yaml:"colors"`
	Styles map[string]StyleDef `yaml:"styles"`
}

//go:embed styles.yaml
var embeddedStyles []byte

var registry map[string]lipgloss.Style

func init() {
	if err := Load(embeddedStyles); err != nil {
		registry = map[string]lipgloss.Style{}
	}
}

// Load replaces the registry with the styles defined in data.
func Load(data []byte) error {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse styles: %w", err)
	}

	colors := make(map[string]lipgloss.AdaptiveColor, len(cfg.Colors))
	for name, def := range cfg.Colors {
		colors[name] = lipgloss.AdaptiveColor{Light: def.Light, Dark: def.Dark}
	}

	reg := make(map[string]lipgloss.Style, len(cfg.Styles))
	for name, def := range cfg.Styles {
		reg[name] = build(def, colors)
	}
	registry = reg
	return nil
}

func build(def StyleDef, colors map[string]lipgloss.AdaptiveColor) lipgloss.Style {
	style := lipgloss.NewStyle()
	if def.Bold {
		style = style.Bold(true)
	}
	if def.Italic {
		style = style.Italic(true)
	}
	if c, ok := colors[def.Foreground]; ok {
		style = style.Foreground(c)
	}
	if c, ok := colors[def.Background]; ok {
		style = style.Background(c)
	}
	if def.Width > 0 {
		style = style.Width(def.Width)
	}
	if def.MarginBottom > 0 {
		style = style.MarginBottom(def.MarginBottom)
	}
	return style
}

// Get returns the named style, or an unstyled one.
func Get(name string) lipgloss.Style {
	if style, ok := registry[name]; ok {
		return style
	}
	return lipgloss.NewStyle()
}

// Has reports whether name is defined.
func Has(name string) bool {
	_, ok := registry[name]
	return ok
}

// ForOutcome returns the label style of an outcome.
func ForOutcome(o types.Outcome) lipgloss.Style {
	switch o {
	case types.OutcomeSuccess:
		return Get("Success")
	case types.OutcomeNoAssets:
		return Get("NoAssets")
	case types.OutcomeSkippedLocked:
		return Get("Skipped")
	case types.OutcomeFailed:
		return Get("Failed")
	default:
		return Get("Ignored")
	}
}

// Embedded returns the built-in styles.yaml.
func Embedded() []byte {
	return embeddedStyles
}
