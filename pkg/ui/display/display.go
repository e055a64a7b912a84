// Package display turns pipeline results into the neutral line model shared
// by the text and terminal renderers.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/arthur-debert/symblink/pkg/errors"
	"github.com/arthur-debert/symblink/pkg/types"
)

// OutcomeOrder is the order outcomes are listed in summaries.
var OutcomeOrder = []types.Outcome{
	types.OutcomeSuccess,
	types.OutcomeNoAssets,
	types.OutcomeSkippedLocked,
	types.OutcomeIgnored,
	types.OutcomeFailed,
}

// Line is one rendered result.
type Line struct {
	Outcome types.Outcome
	// Subject is the mod id, or the file name when no id was derived.
	Subject string
	Detail  string
	// Code is the error code of a failed run.
	Code     errors.ErrorCode
	Duration time.Duration
}

// FromResult builds the Line for res.
func FromResult(res types.Result) Line {
	l := Line{
		Outcome:  res.Outcome,
		Subject:  res.ModID,
		Duration: res.Duration.Round(time.Millisecond),
	}
	if l.Subject == "" {
		l.Subject = res.Event.Name
	}

	switch res.Outcome {
	case types.OutcomeSuccess:
		l.Detail = fmt.Sprintf("%s → %s", plural(len(res.Assets), "asset"), res.Target)
		if res.Strategy != "" {
			l.Detail += fmt.Sprintf(" (%s)", res.Strategy)
		}
	case types.OutcomeFailed:
		l.Code = errors.GetErrorCode(res.Err)
		l.Detail = res.Reason
		if l.Detail == "" {
			l.Detail = res.ErrorMessage()
		}
		if res.FailedIn != "" {
			l.Detail += fmt.Sprintf(" (while %s)", res.FailedIn)
		}
	default:
		l.Detail = res.Reason
	}
	return l
}

// Count is one row of a summary.
type Count struct {
	Outcome types.Outcome
	N       int
}

// Summarize orders a tally by OutcomeOrder and drops zero rows.
func Summarize(tally map[types.Outcome]int) []Count {
	var out []Count
	for _, o := range OutcomeOrder {
		if n := tally[o]; n > 0 {
			out = append(out, Count{Outcome: o, N: n})
		}
	}
	return out
}

// SummaryText is the one-line plain rendering of a tally.
func SummaryText(tally map[types.Outcome]int) string {
	counts := Summarize(tally)
	if len(counts) == 0 {
		return "no files processed"
	}
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%d %s", c.N, c.Outcome))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
