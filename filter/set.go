package filter

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vidpipe/video"
)

// Activation is the resolution-matching rule of a filter set.
type Activation uint8

const (
	// ActivationNone matches nothing; a set with it is activation-dead.
	ActivationNone Activation = 0
	// ActivationIn requires the frame's input resolution to equal InRes.
	ActivationIn Activation = 1 << 0
	// ActivationOut requires the output resolution to equal OutRes.
	ActivationOut Activation = 1 << 1
	// ActivationAll matches every input/output resolution pair.
	ActivationAll Activation = 1 << 2
)

// String returns a human-readable activation description.
func (a Activation) String() string {
	switch {
	case a&ActivationAll != 0:
		return "all"
	case a&(ActivationIn|ActivationOut) == ActivationIn|ActivationOut:
		return "in+out"
	case a&ActivationIn != 0:
		return "in"
	case a&ActivationOut != 0:
		return "out"
	}
	return "none"
}

// Set is a named pair of filter chains plus the rule that decides when they
// apply: pre-filters run before scaling, post-filters after.
type Set struct {
	InRes       video.Resolution
	OutRes      video.Resolution
	Activation  Activation
	ScalerName  string
	Enabled     bool
	Description string
	PreFilters  []Instance
	PostFilters []Instance
}

// Matches reports whether the set applies to a frame with the given input
// resolution and the given output (post-scale) resolution. Only the enabled
// activation bits are checked; a disabled bit is not a wildcard, it simply
// takes no part in the conjunction. A set with neither In nor Out enabled
// and without All never matches.
func (s *Set) Matches(in, out video.Resolution) bool {
	if !s.Enabled {
		return false
	}
	if s.Activation&ActivationAll != 0 {
		return true
	}
	if s.Activation&(ActivationIn|ActivationOut) == 0 {
		return false
	}
	if s.Activation&ActivationIn != 0 && s.InRes != in {
		return false
	}
	if s.Activation&ActivationOut != 0 && s.OutRes != out {
		return false
	}
	return true
}

// Engine owns the ordered filter-set list and applies the selected chain to
// frames. The list order matters: when several sets match a frame, the one
// appearing earlier wins, and exactly zero or one set is ever applied to a
// given frame.
//
// The engine is mutated only on the consumer thread and is not internally
// locked.
type Engine struct {
	sets    []*Set
	enabled bool
}

// NewEngine creates an empty, enabled filter engine.
func NewEngine() *Engine {
	return &Engine{enabled: true}
}

// SetEnabled toggles all filtering without touching the set list.
func (e *Engine) SetEnabled(enabled bool) {
	e.enabled = enabled

	logrus.WithFields(logrus.Fields{
		"function": "Engine.SetEnabled",
		"enabled":  enabled,
	}).Debug("Filtering toggled")
}

// Enabled reports whether filtering is active.
func (e *Engine) Enabled() bool {
	return e.enabled
}

// Add appends a set to the end of the list. When the new set can never be
// reached because an earlier set matches at least everything it does, that
// is a configuration smell worth surfacing, but the engine preserves the
// list exactly as given; duplicates resolve by first match.
func (e *Engine) Add(s *Set) {
	for i, existing := range e.sets {
		if existing.Activation == s.Activation &&
			existing.InRes == s.InRes && existing.OutRes == s.OutRes {
			logrus.WithFields(logrus.Fields{
				"function":   "Engine.Add",
				"earlier":    i,
				"activation": s.Activation.String(),
				"in":         s.InRes.String(),
				"out":        s.OutRes.String(),
			}).Warn("Filter set duplicates an earlier set's matching rule; earlier set wins")
			break
		}
	}
	e.sets = append(e.sets, s)
}

// RemoveAt deletes the set at the given list position.
func (e *Engine) RemoveAt(i int) {
	if i < 0 || i >= len(e.sets) {
		return
	}
	e.sets = append(e.sets[:i], e.sets[i+1:]...)
}

// Replace discards the list and installs the given sets in order. Used
// after a fully validated settings load or a graph recompilation.
func (e *Engine) Replace(sets []*Set) {
	e.sets = nil
	for _, s := range sets {
		e.Add(s)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Engine.Replace",
		"count":    len(sets),
	}).Info("Filter sets replaced")
}

// Reset removes all sets.
func (e *Engine) Reset() {
	e.sets = nil
}

// All returns the sets in list order.
func (e *Engine) All() []*Set {
	return append([]*Set(nil), e.sets...)
}

// Match returns the first enabled set matching the given input and output
// resolutions, or nil when no set matches or filtering is disabled.
func (e *Engine) Match(in, out video.Resolution) *Set {
	if !e.enabled {
		return nil
	}
	for _, s := range e.sets {
		if s.Matches(in, out) {
			return s
		}
	}
	return nil
}

// ApplyChain runs the given filter instances over the frame in order. A
// filter type without a built-in pixel operation applies as identity. A
// failing filter aborts the chain.
func ApplyChain(chain []Instance, frame *video.Frame) error {
	for i, inst := range chain {
		t, ok := TypeForID(inst.Type)
		if !ok {
			return fmt.Errorf("filter %d has unknown type %s", i, inst.Type)
		}
		if t.Apply == nil {
			continue
		}
		if err := t.Apply(&inst.Data, frame); err != nil {
			return fmt.Errorf("filter %d (%s) failed: %w", i, t.Name, err)
		}
	}
	return nil
}
