package capture

import (
	"fmt"
	"sync"

	"github.com/opd-ai/vidpipe/video"
)

// MockDevice is a Device implementation for testing. Tests drive it
// directly by injecting frames and events; deliveries run on the caller's
// goroutine, standing in for the hardware callback thread.
type MockDevice struct {
	mu     sync.Mutex
	sink   DeviceSink
	open   bool
	signal video.Signal

	// FailOpen makes Open report a hardware initialization error.
	FailOpen bool

	// Set-operation call records for assertions.
	ChannelCalls    []uint
	ColorDepthCalls []uint
	ResolutionCalls []video.Resolution

	// inflight tracks deliveries so Close can quiesce synchronously.
	inflight sync.WaitGroup
}

// NewMockDevice creates a mock device reporting the given signal.
func NewMockDevice(signal video.Signal) *MockDevice {
	return &MockDevice{signal: signal}
}

// Open implements Device.
func (d *MockDevice) Open(sink DeviceSink) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.FailOpen {
		return fmt.Errorf("mock hardware failure")
	}
	d.sink = sink
	d.open = true
	return nil
}

// Close implements Device. It returns only after all in-flight deliveries
// have completed.
func (d *MockDevice) Close() error {
	d.mu.Lock()
	d.open = false
	d.sink = nil
	d.mu.Unlock()

	d.inflight.Wait()
	return nil
}

// Name implements Device.
func (d *MockDevice) Name() string {
	return "mock capture device"
}

// Signal implements Device.
func (d *MockDevice) Signal() (video.Signal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return video.Signal{}, fmt.Errorf("mock device is not open")
	}
	return d.signal, nil
}

// SetSignal changes the signal the device reports. Tests pair this with an
// injected EventNewVideoMode.
func (d *MockDevice) SetSignal(signal video.Signal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.signal = signal
}

// SetInputChannel implements Device.
func (d *MockDevice) SetInputChannel(channel uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ChannelCalls = append(d.ChannelCalls, channel)
	return nil
}

// SetColorDepth implements Device.
func (d *MockDevice) SetColorDepth(bpp uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ColorDepthCalls = append(d.ColorDepthCalls, bpp)
	return nil
}

// SetResolution implements Device.
func (d *MockDevice) SetResolution(r video.Resolution) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ResolutionCalls = append(d.ResolutionCalls, r)
	d.signal.Resolution = r
	return nil
}

// InjectFrame delivers a frame to the sink as the hardware would.
func (d *MockDevice) InjectFrame(pixels []byte, res video.Resolution, format video.PixelFormat) {
	d.mu.Lock()
	sink := d.sink
	if sink != nil {
		d.inflight.Add(1)
	}
	d.mu.Unlock()

	if sink == nil {
		return
	}
	defer d.inflight.Done()
	sink.DeliverFrame(pixels, res, format)
}

// InjectEvent delivers an event to the sink as the hardware would.
func (d *MockDevice) InjectEvent(ev Event) {
	d.mu.Lock()
	sink := d.sink
	if sink != nil {
		d.inflight.Add(1)
	}
	d.mu.Unlock()

	if sink == nil {
		return
	}
	defer d.inflight.Done()
	sink.DeliverEvent(ev)
}
