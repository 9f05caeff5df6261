// Package vidpipe implements a capture-to-output video pipeline: frames
// arrive asynchronously from a capture device, pass through resolution-
// activated filter chains and a scaler, and are handed to output sinks.
//
// The pipeline is single-threaded on the consumer side. The capture device
// produces frames and events on its own goroutine; the application drives
// everything else by calling Iterate from one goroutine.
//
// Example:
//
//	options := vidpipe.NewOptions()
//	options.Device = device
//	options.FrameSkip = 1
//
//	pipe, err := vidpipe.New(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pipe.Close()
//
//	pipe.OnVideoModeChanged(func(sig video.Signal) {
//	    fmt.Printf("new mode: %s @ %d Hz\n", sig.Resolution, sig.RefreshRate)
//	})
//	pipe.OnFrame(func(frame *video.Frame) {
//	    display(frame)
//	})
//
//	for pipe.IsRunning() {
//	    pipe.Iterate()
//	    time.Sleep(pipe.IterationInterval())
//	}
package vidpipe

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vidpipe/capture"
	"github.com/opd-ai/vidpipe/filter"
	"github.com/opd-ai/vidpipe/mode"
	"github.com/opd-ai/vidpipe/scaler"
	"github.com/opd-ai/vidpipe/video"
)

// FrameSink receives finished output frames. The frame passed to Publish is
// only valid for the duration of the call; sinks that need to keep it must
// copy it.
type FrameSink interface {
	Publish(*video.Frame) error
}

// Options contains configuration options for creating a Pipeline.
type Options struct {
	// Device is the capture device to read frames from. Required.
	Device capture.Device

	// InputChannel selects the hardware input channel at startup.
	InputChannel uint

	// ColorDepth selects the capture color depth in bits per pixel.
	// Zero keeps the device default.
	ColorDepth uint

	// FrameSkip processes 1 of every N+1 captured frames. Zero processes
	// every frame.
	FrameSkip uint64

	// Scaler names the scaler used when the matched filter set does not
	// name one. An unknown name falls back to the default scaler.
	Scaler string

	// OutputOverride forces the output resolution regardless of the
	// capture mode. Zero sizes the output to the capture resolution.
	OutputOverride video.Resolution

	// FilteringEnabled turns the filter engine on at startup.
	FilteringEnabled bool
}

// NewOptions creates a new Options instance with default settings.
func NewOptions() *Options {
	return &Options{
		Scaler:           scaler.Default().Name,
		FilteringEnabled: true,
	}
}

// Pipeline ties a capture source, mode parameter storage, the filter engine
// and the output scaler together behind one iteration loop.
//
// All methods must be called from the same goroutine that calls Iterate,
// except for none: the Pipeline itself is not internally locked. The capture
// source underneath is safe against the device's producer goroutine.
type Pipeline struct {
	options *Options

	source  *capture.Source
	params  *mode.ParameterStore
	aliases *mode.AliasTable
	filters *filter.Engine
	output  *scaler.Output

	running bool
	sinks   []FrameSink

	videoModeCallback          func(video.Signal)
	signalLostCallback         func()
	signalGainedCallback       func()
	invalidSignalCallback      func()
	unrecoverableErrorCallback func()
	frameCallback              func(*video.Frame)
}

// New creates a Pipeline around the given capture device and starts
// capturing. The initial video mode is resolved (aliases and mode
// parameters) before New returns, so the first Iterate call can already
// process frames.
func New(options *Options) (*Pipeline, error) {
	if options == nil {
		options = NewOptions()
	}
	if options.Device == nil {
		return nil, errors.New("a capture device is required")
	}

	p := &Pipeline{
		options: options,
		params:  mode.NewParameterStore(),
		aliases: mode.NewAliasTable(),
		filters: filter.NewEngine(),
		output:  scaler.NewOutput(),
	}
	p.source = capture.NewSource(options.Device)
	p.filters.SetEnabled(options.FilteringEnabled)
	p.source.SetFrameSkip(options.FrameSkip)

	if !options.OutputOverride.IsZero() {
		if err := p.output.SetOverride(options.OutputOverride); err != nil {
			return nil, err
		}
	}

	if err := p.source.Initialize(); err != nil {
		return nil, err
	}

	if options.InputChannel != 0 {
		if err := p.source.SetInputChannel(options.InputChannel); err != nil {
			p.source.Release()
			return nil, fmt.Errorf("failed to select input channel: %w", err)
		}
	}
	if options.ColorDepth != 0 {
		if err := p.source.SetColorDepth(options.ColorDepth); err != nil {
			p.source.Release()
			return nil, fmt.Errorf("failed to set color depth: %w", err)
		}
	}

	p.running = true
	p.settleVideoMode()

	return p, nil
}

// IsRunning reports whether the pipeline is still operable. It turns false
// after Close or after an unrecoverable capture error.
func (p *Pipeline) IsRunning() bool {
	return p.running
}

// IterationInterval returns the recommended sleep between Iterate calls.
func (p *Pipeline) IterationInterval() time.Duration {
	return 4 * time.Millisecond
}

// Iterate runs one pipeline step: pending capture events are drained first,
// then at most one waiting frame is processed and delivered.
func (p *Pipeline) Iterate() {
	if !p.running {
		return
	}

	p.processEvents()
	p.processFrame()
}

// Close stops the pipeline and releases the capture device. It blocks until
// the producer has quiesced.
func (p *Pipeline) Close() error {
	if !p.running {
		return nil
	}
	p.running = false
	return p.source.Release()
}

// OnVideoModeChanged sets the callback invoked after a new capture mode has
// been resolved and applied.
func (p *Pipeline) OnVideoModeChanged(callback func(video.Signal)) {
	p.videoModeCallback = callback
}

// OnSignalLost sets the callback for the capture signal disappearing.
func (p *Pipeline) OnSignalLost(callback func()) {
	p.signalLostCallback = callback
}

// OnSignalGained sets the callback for the capture signal returning.
func (p *Pipeline) OnSignalGained(callback func()) {
	p.signalGainedCallback = callback
}

// OnInvalidSignal sets the callback for the input entering a mode the
// hardware cannot capture.
func (p *Pipeline) OnInvalidSignal(callback func()) {
	p.invalidSignalCallback = callback
}

// OnUnrecoverableError sets the callback for a fatal capture error. The
// pipeline stops running before the callback is invoked.
func (p *Pipeline) OnUnrecoverableError(callback func()) {
	p.unrecoverableErrorCallback = callback
}

// OnFrame sets the callback invoked with every finished output frame. The
// frame is only valid for the duration of the call.
func (p *Pipeline) OnFrame(callback func(*video.Frame)) {
	p.frameCallback = callback
}

// AddSink registers an output sink. Sinks are invoked in registration order
// after the frame callback.
func (p *Pipeline) AddSink(sink FrameSink) {
	p.sinks = append(p.sinks, sink)
}

// Source exposes the capture source for state queries and runtime control.
func (p *Pipeline) Source() *capture.Source {
	return p.source
}

// ModeParams exposes the per-resolution capture parameter store.
func (p *Pipeline) ModeParams() *mode.ParameterStore {
	return p.params
}

// Filters exposes the filter engine.
func (p *Pipeline) Filters() *filter.Engine {
	return p.filters
}

// Output exposes the output resolution policy.
func (p *Pipeline) Output() *scaler.Output {
	return p.output
}

// Aliases returns a snapshot of the resolution alias table.
func (p *Pipeline) Aliases() []mode.Alias {
	return p.aliases.All()
}

// SetAliases replaces the resolution alias table. The current capture mode
// is re-resolved against the new table, the same as when a new video mode
// arrives, so an alias that now covers the current mode takes effect
// immediately.
func (p *Pipeline) SetAliases(aliases []mode.Alias) {
	p.aliases.Replace(aliases)
	if p.running {
		p.settleVideoMode()
	}
}

// ApplyFilterGraph compiles the graph and installs the resulting chains as
// the active filter sets.
func (p *Pipeline) ApplyFilterGraph(g *filter.Graph) {
	p.filters.Replace(g.CompileSets())
}

// processEvents drains every pending capture event in severity order.
func (p *Pipeline) processEvents() {
	for {
		switch ev := p.source.PopEvent(); ev {
		case capture.EventNone:
			return
		case capture.EventUnrecoverableError:
			logrus.WithFields(logrus.Fields{
				"function": "Pipeline.processEvents",
				"device":   p.options.Device.Name(),
			}).Error("Unrecoverable capture error; stopping pipeline")
			p.running = false
			if p.unrecoverableErrorCallback != nil {
				p.unrecoverableErrorCallback()
			}
			return
		case capture.EventNewVideoMode:
			p.settleVideoMode()
		case capture.EventSignalLost:
			logrus.WithFields(logrus.Fields{
				"function": "Pipeline.processEvents",
			}).Info("Capture signal lost")
			if p.signalLostCallback != nil {
				p.signalLostCallback()
			}
		case capture.EventSignalGained:
			logrus.WithFields(logrus.Fields{
				"function": "Pipeline.processEvents",
			}).Info("Capture signal gained")
			if p.signalGainedCallback != nil {
				p.signalGainedCallback()
			}
		case capture.EventInvalidSignal:
			logrus.WithFields(logrus.Fields{
				"function": "Pipeline.processEvents",
			}).Warn("Capture signal is out of range")
			if p.invalidSignalCallback != nil {
				p.invalidSignalCallback()
			}
		}
	}
}

// settleVideoMode resolves the current hardware mode through the alias
// table, makes sure calibration parameters exist for it, sizes the output,
// and releases the frame gate. Aliased modes force the capture resolution
// on the hardware first.
func (p *Pipeline) settleVideoMode() {
	sig, err := p.source.Signal()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Pipeline.settleVideoMode",
			"error":    err,
		}).Error("Failed to query the capture signal")
		return
	}

	resolved := p.aliases.Resolve(sig.Resolution)
	if resolved != sig.Resolution {
		logrus.WithFields(logrus.Fields{
			"function": "Pipeline.settleVideoMode",
			"from":     sig.Resolution.String(),
			"to":       resolved.String(),
		}).Info("Applying resolution alias")
		if err := p.source.SetResolution(resolved); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Pipeline.settleVideoMode",
				"error":    err,
			}).Error("Failed to force the aliased capture resolution")
		} else {
			sig.Resolution = resolved
		}
	}

	p.params.Lookup(sig.Resolution)
	p.output.SetBaseResolution(sig.Resolution)
	p.source.ApplyNewVideoMode()

	logrus.WithFields(logrus.Fields{
		"function":   "Pipeline.settleVideoMode",
		"resolution": sig.Resolution.String(),
		"refreshHz":  sig.RefreshRate,
	}).Info("Video mode settled")

	if p.videoModeCallback != nil {
		p.videoModeCallback(sig)
	}
}

// processFrame reserves the waiting frame, if any, runs it through the
// matched filter chain and the scaler, and hands the result to the frame
// callback and the sinks.
func (p *Pipeline) processFrame() {
	if !p.source.HasNewFrame() {
		return
	}
	if p.source.ShouldCurrentFrameBeSkipped() {
		p.source.DiscardFrame()
		return
	}

	frame, err := p.source.ReserveFrameBuffer()
	if err != nil {
		if !errors.Is(err, capture.ErrNoFrame) {
			logrus.WithFields(logrus.Fields{
				"function": "Pipeline.processFrame",
				"error":    err,
			}).Error("Failed to reserve the frame buffer")
		}
		return
	}

	out, err := p.renderFrame(frame)

	if uerr := p.source.UnreserveFrameBuffer(); uerr != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Pipeline.processFrame",
			"error":    uerr,
		}).Error("Failed to unreserve the frame buffer")
	}

	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Pipeline.processFrame",
			"error":    err,
		}).Error("Frame processing failed")
		return
	}

	if p.frameCallback != nil {
		p.frameCallback(out)
	}
	for _, sink := range p.sinks {
		if err := sink.Publish(out); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Pipeline.processFrame",
				"error":    err,
			}).Warn("Output sink rejected the frame")
		}
	}
}

// renderFrame applies the matched filter set's pre-filters, the scaler and
// the post-filters to a reserved capture frame. The reserved buffer itself
// is never mutated; filter chains run on a copy.
func (p *Pipeline) renderFrame(frame *video.Frame) (*video.Frame, error) {
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("captured frame is malformed: %w", err)
	}

	target := p.output.Resolution()
	if target.IsZero() {
		target = frame.Resolution
	}

	var set *filter.Set
	if p.filters.Enabled() {
		set = p.filters.Match(frame.Resolution, target)
	}

	work := frame
	if set != nil && len(set.PreFilters) > 0 {
		work = frame.Clone()
		if err := filter.ApplyChain(set.PreFilters, work); err != nil {
			return nil, err
		}
	}

	sc := scaler.ForName(p.options.Scaler)
	if set != nil && set.ScalerName != "" {
		sc = scaler.ForName(set.ScalerName)
	}
	out, err := sc.Scale(work, target)
	if err != nil {
		return nil, err
	}

	if set != nil && len(set.PostFilters) > 0 {
		if err := filter.ApplyChain(set.PostFilters, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
