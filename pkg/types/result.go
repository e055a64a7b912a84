package types

import "time"

// State is a step of the ingestion state machine.
type State string

const (
	StateFiltering  State = "filtering"
	StateStaging    State = "staging"
	StateGathering  State = "gathering"
	StateAssembling State = "assembling"
	StateRelocating State = "relocating"
	StateCleanup    State = "cleanup"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Outcome is the terminal verdict of one pipeline run.
type Outcome string

const (
	OutcomeIgnored       Outcome = "ignored"
	OutcomeSkippedLocked Outcome = "skipped-locked"
	OutcomeNoAssets      Outcome = "no-assets"
	OutcomeSuccess       Outcome = "success"
	OutcomeFailed        Outcome = "failed"
)

// Result describes what one pipeline run did with a DropEvent.
type Result struct {
	RunID   string    `json:"runId"`
	Event   DropEvent `json:"event"`
	ModID   string    `json:"modId,omitempty"`
	Outcome Outcome   `json:"outcome"`
	// State is the terminal state, StateDone or StateFailed.
	State State `json:"state"`
	// FailedIn is the state that was active when the run failed.
	FailedIn State  `json:"failedIn,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Err      error  `json:"-"`
	// Assets are the base names installed into Target.
	Assets    []string      `json:"assets,omitempty"`
	Target    string        `json:"target,omitempty"`
	Strategy  string        `json:"strategy,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// Failed reports whether the run ended in StateFailed.
func (r Result) Failed() bool {
	return r.State == StateFailed
}

// ErrorMessage returns Err's text or an empty string.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
