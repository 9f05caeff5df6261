package scaler

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vidpipe/video"
)

// Output tracks the pipeline's output resolution: the base resolution
// follows the input signal, and an optional user override pins the output
// to a fixed size regardless of input mode changes.
//
// Mutated only on the consumer thread; not internally locked.
type Output struct {
	base        video.Resolution
	override    video.Resolution
	hasOverride bool
}

// NewOutput creates an output tracker with no base resolution.
func NewOutput() *Output {
	return &Output{}
}

// SetBaseResolution follows a new input mode. Ignored while an override is
// pinned, except for the bookkeeping of the base itself.
func (o *Output) SetBaseResolution(r video.Resolution) {
	o.base = r

	logrus.WithFields(logrus.Fields{
		"function": "Output.SetBaseResolution",
		"base":     r.String(),
		"pinned":   o.hasOverride,
	}).Debug("Output base resolution updated")
}

// Base returns the input-driven base resolution.
func (o *Output) Base() video.Resolution {
	return o.base
}

// SetOverride pins the output resolution.
func (o *Output) SetOverride(r video.Resolution) error {
	if r.IsZero() {
		return fmt.Errorf("output resolution override cannot be zero")
	}
	o.override = r
	o.hasOverride = true
	return nil
}

// ClearOverride unpins the output resolution; it follows the input again.
func (o *Output) ClearOverride() {
	o.hasOverride = false
	o.override = video.Resolution{}
}

// Resolution returns the effective output resolution: the override when
// pinned, the base otherwise.
func (o *Output) Resolution() video.Resolution {
	if o.hasOverride {
		return o.override
	}
	return o.base
}
