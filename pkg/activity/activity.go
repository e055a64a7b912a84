// Package activity reports how busy the ingestion service is as a coarse
// three-level load signal.
package activity

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// LoadLevel is the coarse busy signal.
type LoadLevel int

const (
	Idle LoadLevel = iota
	Low
	High
)

func (l LoadLevel) String() string {
	switch l {
	case Idle:
		return "idle"
	case Low:
		return "low"
	case High:
		return "high"
	default:
		return fmt.Sprintf("LoadLevel(%d)", int(l))
	}
}

// Listener receives load level changes.
type Listener interface {
	SetLoad(level LoadLevel)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(LoadLevel)

func (f ListenerFunc) SetLoad(level LoadLevel) { f(level) }

// Nop discards every signal.
var Nop Listener = ListenerFunc(func(LoadLevel) {})

// Multi fans a signal out to several listeners in order.
func Multi(listeners ...Listener) Listener {
	return ListenerFunc(func(level LoadLevel) {
		for _, l := range listeners {
			l.SetLoad(level)
		}
	})
}

// LogListener logs every level it receives.
type LogListener struct {
	Logger zerolog.Logger
}

func (l LogListener) SetLoad(level LoadLevel) {
	ev := l.Logger.Debug()
	if level == High {
		ev = l.Logger.Warn()
	}
	ev.Str("load", level.String()).Msg("Load level changed")
}

// Companion folds the begin/end signals of concurrent pipeline runs into one
// level and forwards changes to a Listener.
//
// A run entering processing raises the level to Low. A run ending normally
// drops it back to Idle once no other run is active. A run ending with a
// structural failure raises it to High, where it stays until the next run
// begins.
type Companion struct {
	mu       sync.Mutex
	active   int
	level    LoadLevel
	listener Listener
}

// NewCompanion returns a Companion starting at Idle.
func NewCompanion(listener Listener) *Companion {
	if listener == nil {
		listener = Nop
	}
	return &Companion{listener: listener}
}

// Begin marks a run as entering processing.
func (c *Companion) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active++
	c.set(Low)
}

// End marks a run as terminated. structural reports an unrecoverable failure.
func (c *Companion) End(structural bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active > 0 {
		c.active--
	}
	switch {
	case structural:
		c.set(High)
	case c.level == High:
	case c.active == 0:
		c.set(Idle)
	}
}

// Level returns the current level.
func (c *Companion) Level() LoadLevel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// Active returns how many runs are between Begin and End.
func (c *Companion) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Companion) set(level LoadLevel) {
	if level == c.level {
		return
	}
	c.level = level
	c.listener.SetLoad(level)
}
