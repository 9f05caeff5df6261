// Package capture exposes a hardware video signal as a sequence of discrete
// frames and discrete events to a single consumer.
//
// A Device implementation (the hardware driver) delivers frames and events
// from its own goroutine, asynchronously and at its own pace, bounded by the
// signal's refresh rate. The Source mediates that producer/consumer boundary
// with a double-buffered frame hand-off and a set of collapsing event flags:
// the producer never blocks on the consumer beyond a pointer exchange, and
// the consumer never holds the hand-off lock while processing pixels.
//
// Frame hand-off contract: the consumer reserves at most one frame buffer at
// a time via ReserveFrameBuffer and must release it with
// UnreserveFrameBuffer before reserving again. While a frame is reserved the
// producer keeps writing into the other buffer slot and never touches the
// reserved one.
package capture

import (
	"errors"

	"github.com/opd-ai/vidpipe/video"
)

// Event is a discrete capture event queued by the producer and drained by
// the consumer. Duplicate pending events of the same kind collapse to one
// flag; frame availability is communicated by buffer reservation, never by
// the event queue.
type Event uint8

const (
	// EventNone means the event queue is empty.
	EventNone Event = iota
	// EventUnrecoverableError signals a hardware fault the source cannot
	// recover from; the application is expected to shut down.
	EventUnrecoverableError
	// EventNewVideoMode signals that the detected resolution or refresh
	// parameters changed. The consumer must fully process the new mode
	// before the next frame is accepted.
	EventNewVideoMode
	// EventSignalLost signals that the hardware lost its input signal.
	EventSignalLost
	// EventSignalGained signals that the hardware started receiving a
	// signal again.
	EventSignalGained
	// EventInvalidSignal signals an out-of-range input mode.
	EventInvalidSignal

	numEvents
)

// String returns a human-readable event name.
func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventUnrecoverableError:
		return "unrecoverable error"
	case EventNewVideoMode:
		return "new video mode"
	case EventSignalLost:
		return "signal lost"
	case EventSignalGained:
		return "signal gained"
	case EventInvalidSignal:
		return "invalid signal"
	}
	return "unknown"
}

// SignalState is the source's signal state machine state. Transitions are
// driven exclusively by hardware events.
type SignalState uint8

const (
	// StateUninitialized is the state before Initialize and after Release.
	StateUninitialized SignalState = iota
	// StateCapturing means a valid signal is being captured.
	StateCapturing
	// StateNoSignal means the hardware has no input signal. Not an error;
	// the pipeline idles in this state indefinitely.
	StateNoSignal
	// StateInvalidSignal means the input mode is out of range. Not an
	// error; the pipeline idles in this state indefinitely.
	StateInvalidSignal
)

// String returns a human-readable state name.
func (s SignalState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCapturing:
		return "capturing"
	case StateNoSignal:
		return "no signal"
	case StateInvalidSignal:
		return "invalid signal"
	}
	return "unknown"
}

// DeviceSink receives frames and events from a device's producer goroutine.
// The Source implements it.
type DeviceSink interface {
	// DeliverFrame hands a completed frame's pixel data to the sink. The
	// sink copies the data before returning; the device may reuse the
	// buffer immediately after.
	DeliverFrame(pixels []byte, res video.Resolution, format video.PixelFormat)

	// DeliverEvent queues a discrete capture event.
	DeliverEvent(ev Event)
}

// Device is the black-box capture hardware driver. Implementations deliver
// frames and events to the sink from their own goroutine.
type Device interface {
	// Open starts the device and begins delivering to the sink.
	Open(sink DeviceSink) error

	// Close stops the device. It must not return until the producer has
	// quiesced: no DeliverFrame or DeliverEvent call may be in flight or
	// follow once Close returns.
	Close() error

	// Name returns a human-readable device name.
	Name() string

	// Signal reports the video signal currently detected by the hardware.
	Signal() (video.Signal, error)

	// SetInputChannel selects the hardware input channel. May fail.
	SetInputChannel(channel uint) error

	// SetColorDepth selects the capture color depth in bits per pixel.
	// May fail.
	SetColorDepth(bpp uint) error

	// SetResolution forces the hardware to sample at the given resolution.
	// May fail.
	SetResolution(r video.Resolution) error
}

// Contract and lifecycle errors reported by the Source.
var (
	// ErrAlreadyReserved is returned when ReserveFrameBuffer is called
	// while a reservation is outstanding. This is a programming error in
	// the caller, not a recoverable capture failure.
	ErrAlreadyReserved = errors.New("frame buffer is already reserved")

	// ErrNotReserved is returned when UnreserveFrameBuffer is called
	// without an outstanding reservation.
	ErrNotReserved = errors.New("no frame buffer reservation is outstanding")

	// ErrNoFrame is returned by ReserveFrameBuffer when no new completed
	// frame is available.
	ErrNoFrame = errors.New("no new frame is available")

	// ErrNotCapturing is returned for operations that require an
	// initialized source.
	ErrNotCapturing = errors.New("capture source is not initialized")
)
