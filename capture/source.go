package capture

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vidpipe/video"
)

// Source owns the capture lifecycle: the signal state machine, the
// double-buffered frame hand-off and the collapsing event flags. It is the
// single consumer-facing surface over a Device.
//
// All cross-thread state is guarded by one mutex. The producer holds it for
// the duration of a buffer write and swap; the consumer holds it only while
// exchanging a buffer pointer or draining an event flag — never across the
// processing pipeline.
type Source struct {
	device Device

	mu         sync.Mutex
	unreserved *sync.Cond // signaled when a reservation is released

	state SignalState

	// Double buffer. front is the slot the consumer reserves; the producer
	// writes into the other slot and swaps on completion unless the front
	// slot is reserved.
	buffers  [2]*video.Frame
	seq      [2]uint64
	front    int
	reserved bool

	// frameReady is set when the front slot holds a completed frame the
	// consumer has not yet seen.
	frameReady bool

	// pendingSwap is set when a newer frame completed in the back slot
	// while the front slot was reserved; the swap happens on unreserve.
	pendingSwap bool

	// modeSettled gates frame availability behind new-video-mode handling:
	// frames delivered before the consumer applies the new mode are
	// acknowledged but never exposed. This also swallows the garbled frames
	// some hardware emits right after a mode change.
	modeSettled bool

	// eventFlags collapses duplicate pending events of the same kind.
	eventFlags [numEvents]bool

	frameCount   uint64
	missedFrames uint64
	skipRatio    uint64
}

// NewSource creates a source over the given device. The source starts
// uninitialized; call Initialize to begin capturing.
func NewSource(device Device) *Source {
	s := &Source{
		device: device,
		state:  StateUninitialized,
	}
	s.unreserved = sync.NewCond(&s.mu)
	for i := range s.buffers {
		s.buffers[i] = &video.Frame{}
	}
	return s
}

// Initialize opens the device and transitions the source to the capturing
// state. A hardware initialization failure is fatal to the calling context
// but not the process; the source stays uninitialized.
func (s *Source) Initialize() error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return fmt.Errorf("capture source already initialized (state: %s)", s.state)
	}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Source.Initialize",
		"device":   s.device.Name(),
	}).Info("Initializing capture source")

	if err := s.device.Open(s); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Source.Initialize",
			"device":   s.device.Name(),
			"error":    err,
		}).Error("Capture hardware initialization failed")
		return fmt.Errorf("failed to initialize capture hardware: %w", err)
	}

	s.mu.Lock()
	s.state = StateCapturing
	s.modeSettled = true
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Source.Initialize",
		"device":   s.device.Name(),
	}).Info("Capture source initialized")

	return nil
}

// Release tears the source down from any state back to uninitialized. It
// waits for an outstanding frame reservation to be released and then for
// the producer to quiesce (via the device's synchronous Close), so no frame
// buffer is being written or read when it returns. There is no timeout; a
// misbehaving producer blocks shutdown.
func (s *Source) Release() error {
	s.mu.Lock()
	if s.state == StateUninitialized {
		s.mu.Unlock()
		return nil
	}
	for s.reserved {
		s.unreserved.Wait()
	}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Source.Release",
		"device":   s.device.Name(),
	}).Info("Releasing capture source")

	if err := s.device.Close(); err != nil {
		return fmt.Errorf("failed to release capture hardware: %w", err)
	}

	s.mu.Lock()
	s.state = StateUninitialized
	s.frameReady = false
	s.pendingSwap = false
	s.eventFlags = [numEvents]bool{}
	s.mu.Unlock()

	return nil
}

// DeliverFrame implements DeviceSink. Called from the producer goroutine
// for every completed hardware frame.
func (s *Source) DeliverFrame(pixels []byte, res video.Resolution, format video.PixelFormat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCapturing {
		return
	}

	s.frameCount++

	back := 1 - s.front
	buf := s.buffers[back]
	buf.Resolution = res
	buf.Format = format
	buf.Pixels = append(buf.Pixels[:0], pixels...)
	s.seq[back] = s.frameCount

	// Frames captured before the consumer has settled a new video mode are
	// acknowledged (counted) but never exposed.
	if !s.modeSettled {
		return
	}

	if s.reserved {
		if s.pendingSwap {
			s.missedFrames++
		}
		s.pendingSwap = true
		return
	}

	if s.frameReady {
		s.missedFrames++
	}
	s.front = back
	s.frameReady = true
}

// DeliverEvent implements DeviceSink. Called from the producer goroutine
// for discrete hardware events. Duplicate pending events collapse.
func (s *Source) DeliverEvent(ev Event) {
	if ev == EventNone || ev >= numEvents {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.eventFlags[ev] = true

	switch ev {
	case EventNewVideoMode:
		// Gate frames until the consumer has re-resolved mode parameters.
		s.modeSettled = false
		s.frameReady = false
		s.pendingSwap = false
		s.state = StateCapturing
	case EventSignalLost:
		s.state = StateNoSignal
		s.frameReady = false
		s.pendingSwap = false
	case EventSignalGained:
		s.state = StateCapturing
	case EventInvalidSignal:
		s.state = StateInvalidSignal
		s.frameReady = false
		s.pendingSwap = false
	}
}

// PopEvent drains one pending event, or EventNone when the queue is empty.
// Pending events are reported in severity order: an unrecoverable error
// preempts everything, a mode change preempts signal-presence changes.
func (s *Source) PopEvent() Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := [...]Event{
		EventUnrecoverableError,
		EventNewVideoMode,
		EventSignalLost,
		EventSignalGained,
		EventInvalidSignal,
	}
	for _, ev := range order {
		if s.eventFlags[ev] {
			s.eventFlags[ev] = false
			return ev
		}
	}
	return EventNone
}

// ApplyNewVideoMode tells the source that the consumer has finished
// processing a new-video-mode event (alias and mode-parameter lookup), so
// frames captured under the new mode may be exposed again.
func (s *Source) ApplyNewVideoMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modeSettled = true
}

// HasNewFrame reports whether a completed frame is waiting for the
// consumer.
func (s *Source) HasNewFrame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameReady
}

// ShouldCurrentFrameBeSkipped reports whether the waiting frame falls out
// of the skip ratio (process 1 of every N frames). It is side-effect-free
// and returns the same answer until the next frame boundary. Skipped frames
// must still be acknowledged with DiscardFrame.
func (s *Source) ShouldCurrentFrameBeSkipped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.frameReady || s.skipRatio <= 1 {
		return false
	}
	return s.seq[s.front]%s.skipRatio != 0
}

// DiscardFrame acknowledges the waiting frame without reserving it, so the
// hand-off never jams on frames the consumer elects to skip.
func (s *Source) DiscardFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameReady = false
}

// ReserveFrameBuffer grants the consumer exclusive read access to the most
// recently completed frame. It must be paired with UnreserveFrameBuffer
// before the next reservation; calling it again with a reservation
// outstanding returns ErrAlreadyReserved. The returned frame is valid until
// the buffer is unreserved; the producer will not touch it in between.
func (s *Source) ReserveFrameBuffer() (*video.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reserved {
		logrus.WithFields(logrus.Fields{
			"function": "Source.ReserveFrameBuffer",
			"error":    ErrAlreadyReserved,
		}).Error("Frame buffer reservation contract violated")
		return nil, ErrAlreadyReserved
	}
	if s.state != StateCapturing {
		return nil, ErrNotCapturing
	}
	if !s.frameReady {
		return nil, ErrNoFrame
	}

	s.reserved = true
	s.frameReady = false
	return s.buffers[s.front], nil
}

// UnreserveFrameBuffer releases the consumer's reservation. If a newer
// frame completed while the reservation was held, it becomes available
// immediately.
func (s *Source) UnreserveFrameBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.reserved {
		return ErrNotReserved
	}

	s.reserved = false
	if s.pendingSwap {
		s.front = 1 - s.front
		s.frameReady = true
		s.pendingSwap = false
	}
	s.unreserved.Broadcast()
	return nil
}

// SetFrameSkip configures the skip factor: process 1 of every n captured
// frames. Values of 0 and 1 disable skipping.
func (s *Source) SetFrameSkip(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipRatio = n

	logrus.WithFields(logrus.Fields{
		"function": "Source.SetFrameSkip",
		"ratio":    n,
	}).Debug("Frame skip ratio set")
}

// State returns the current signal state.
func (s *Source) State() SignalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsCapturing reports whether a valid signal is being captured.
func (s *Source) IsCapturing() bool {
	return s.State() == StateCapturing
}

// NoSignal reports whether the hardware currently has no input signal.
func (s *Source) NoSignal() bool {
	return s.State() == StateNoSignal
}

// IsSignalInvalid reports whether the input mode is out of range.
func (s *Source) IsSignalInvalid() bool {
	return s.State() == StateInvalidSignal
}

// Signal reports the video signal currently detected by the hardware.
func (s *Source) Signal() (video.Signal, error) {
	return s.device.Signal()
}

// Resolution returns the resolution of the currently detected signal.
func (s *Source) Resolution() (video.Resolution, error) {
	sig, err := s.device.Signal()
	if err != nil {
		return video.Resolution{}, err
	}
	return sig.Resolution, nil
}

// SetInputChannel selects the hardware input channel.
func (s *Source) SetInputChannel(channel uint) error {
	return s.device.SetInputChannel(channel)
}

// SetColorDepth selects the capture color depth in bits per pixel.
func (s *Source) SetColorDepth(bpp uint) error {
	return s.device.SetColorDepth(bpp)
}

// SetResolution forces the hardware capture resolution.
func (s *Source) SetResolution(r video.Resolution) error {
	return s.device.SetResolution(r)
}

// MissedFrameCount returns the number of completed frames that were
// overwritten before the consumer saw them.
func (s *Source) MissedFrameCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missedFrames
}

// ResetMissedFrameCount zeroes the missed-frame counter.
func (s *Source) ResetMissedFrameCount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missedFrames = 0
}
