package ui_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/symblink/pkg/errors"
	"github.com/arthur-debert/symblink/pkg/types"
	"github.com/arthur-debert/symblink/pkg/ui"
)

var (
	extractionErr = errors.New(errors.ErrExtraction, "corrupt archive").WithDetail("mod_id", "Broken")

	success = types.Result{
		RunID:    "run-1",
		Event:    types.NewDropEvent("/dl/Bundle.zip", types.Created),
		ModID:    "Bundle",
		Outcome:  types.OutcomeSuccess,
		State:    types.StateDone,
		Assets:   []string{"a.package"},
		Target:   "/mods/Bundle",
		Strategy: "copy-delete",
	}
	failure = types.Result{
		RunID:    "run-2",
		Event:    types.NewDropEvent("/dl/Broken.rar", types.Created),
		ModID:    "Broken",
		Outcome:  types.OutcomeFailed,
		State:    types.StateFailed,
		FailedIn: types.StateGathering,
		Err:      extractionErr,
	}
)

func render(t *testing.T, format ui.Format, fn func(ui.Renderer) error) string {
	t.Helper()
	var buf bytes.Buffer
	r, err := ui.NewRenderer(format, &buf)
	require.NoError(t, err)
	require.NoError(t, fn(r))
	return buf.String()
}

func TestNewRenderer(t *testing.T) {
	for _, f := range []ui.Format{ui.FormatAuto, ui.FormatTerminal, ui.FormatText, ui.FormatJSON} {
		var buf bytes.Buffer
		r, err := ui.NewRenderer(f, &buf)
		require.NoError(t, err, f.String())
		assert.NotNil(t, r)
	}

	_, err := ui.NewRenderer(ui.Format(42), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestTextRenderer(t *testing.T) {
	out := render(t, ui.FormatText, func(r ui.Renderer) error {
		if err := r.RenderResult(success); err != nil {
			return err
		}
		if err := r.RenderResult(failure); err != nil {
			return err
		}
		return r.RenderSummary(map[types.Outcome]int{types.OutcomeSuccess: 1, types.OutcomeFailed: 1})
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "success        Bundle  1 asset → /mods/Bundle (copy-delete)", lines[0])
	assert.Equal(t, "failed         Broken  [EXTRACTION] corrupt archive (while gathering)", lines[1])
	assert.Equal(t, "Summary: 1 success, 1 failed", lines[2])
}

func TestTerminalRenderer(t *testing.T) {
	out := render(t, ui.FormatTerminal, func(r ui.Renderer) error {
		if err := r.RenderResult(failure); err != nil {
			return err
		}
		return r.RenderMessage("Watching /dl")
	})

	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "Broken")
	assert.Contains(t, out, "EXTRACTION")
	assert.Contains(t, out, "Watching /dl")
}

func TestJSONRenderer(t *testing.T) {
	out := render(t, ui.FormatJSON, func(r ui.Renderer) error {
		if err := r.RenderResult(success); err != nil {
			return err
		}
		if err := r.RenderResult(failure); err != nil {
			return err
		}
		return r.RenderError(errors.New(errors.ErrConfigValid, "bad"))
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "Bundle", first["modId"])
	assert.Equal(t, "success", first["outcome"])
	assert.NotContains(t, first, "error")

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "EXTRACTION", second["errorCode"])
	assert.Equal(t, "gathering", second["failedIn"])
	assert.Equal(t, map[string]interface{}{"mod_id": "Broken"}, second["details"])

	var third map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &third))
	assert.Equal(t, "CONFIG_INVALID", third["errorCode"])
}
