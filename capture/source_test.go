package capture

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/vidpipe/video"
)

var testSignal = video.Signal{
	Resolution:  video.Resolution{Width: 640, Height: 480},
	RefreshRate: 60,
	ColorDepth:  32,
}

func testPixels(v byte) []byte {
	p := make([]byte, 640*480*4)
	for i := range p {
		p[i] = v
	}
	return p
}

func newTestSource(t *testing.T) (*Source, *MockDevice) {
	t.Helper()
	device := NewMockDevice(testSignal)
	source := NewSource(device)
	require.NoError(t, source.Initialize())
	t.Cleanup(func() { source.Release() })
	return source, device
}

func TestSource_Initialize(t *testing.T) {
	source, _ := newTestSource(t)

	assert.Equal(t, StateCapturing, source.State())
	assert.True(t, source.IsCapturing())
	assert.False(t, source.HasNewFrame())
}

func TestSource_Initialize_HardwareFailure(t *testing.T) {
	device := NewMockDevice(testSignal)
	device.FailOpen = true
	source := NewSource(device)

	err := source.Initialize()
	require.Error(t, err)
	assert.Equal(t, StateUninitialized, source.State())
}

func TestSource_Initialize_Twice(t *testing.T) {
	source, _ := newTestSource(t)
	assert.Error(t, source.Initialize())
}

func TestSource_FrameHandOff(t *testing.T) {
	source, device := newTestSource(t)

	device.InjectFrame(testPixels(7), testSignal.Resolution, video.PixelFormatRGB888)
	require.True(t, source.HasNewFrame())

	frame, err := source.ReserveFrameBuffer()
	require.NoError(t, err)
	assert.Equal(t, testSignal.Resolution, frame.Resolution)
	assert.Equal(t, byte(7), frame.Pixels[0])

	require.NoError(t, source.UnreserveFrameBuffer())
	assert.False(t, source.HasNewFrame())
}

func TestSource_ReserveFrameBuffer_NoFrame(t *testing.T) {
	source, _ := newTestSource(t)

	_, err := source.ReserveFrameBuffer()
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestSource_ReserveFrameBuffer_DoubleReserveRejected(t *testing.T) {
	source, device := newTestSource(t)

	device.InjectFrame(testPixels(1), testSignal.Resolution, video.PixelFormatRGB888)
	_, err := source.ReserveFrameBuffer()
	require.NoError(t, err)

	device.InjectFrame(testPixels(2), testSignal.Resolution, video.PixelFormatRGB888)
	_, err = source.ReserveFrameBuffer()
	assert.ErrorIs(t, err, ErrAlreadyReserved)

	require.NoError(t, source.UnreserveFrameBuffer())
}

func TestSource_UnreserveFrameBuffer_WithoutReservation(t *testing.T) {
	source, _ := newTestSource(t)
	assert.ErrorIs(t, source.UnreserveFrameBuffer(), ErrNotReserved)
}

func TestSource_ReservedBufferNotOverwritten(t *testing.T) {
	source, device := newTestSource(t)

	device.InjectFrame(testPixels(1), testSignal.Resolution, video.PixelFormatRGB888)
	frame, err := source.ReserveFrameBuffer()
	require.NoError(t, err)

	// New frames land in the other slot while the reservation is held.
	device.InjectFrame(testPixels(2), testSignal.Resolution, video.PixelFormatRGB888)
	assert.Equal(t, byte(1), frame.Pixels[0])

	// The frame that arrived during the reservation becomes available on
	// release.
	require.NoError(t, source.UnreserveFrameBuffer())
	require.True(t, source.HasNewFrame())

	frame, err = source.ReserveFrameBuffer()
	require.NoError(t, err)
	assert.Equal(t, byte(2), frame.Pixels[0])
	require.NoError(t, source.UnreserveFrameBuffer())
}

func TestSource_MissedFrameCount(t *testing.T) {
	source, device := newTestSource(t)

	// Three frames, none consumed: the first two are overwritten.
	device.InjectFrame(testPixels(1), testSignal.Resolution, video.PixelFormatRGB888)
	device.InjectFrame(testPixels(2), testSignal.Resolution, video.PixelFormatRGB888)
	device.InjectFrame(testPixels(3), testSignal.Resolution, video.PixelFormatRGB888)

	assert.Equal(t, uint64(2), source.MissedFrameCount())

	source.ResetMissedFrameCount()
	assert.Equal(t, uint64(0), source.MissedFrameCount())
}

func TestSource_FrameSkip(t *testing.T) {
	source, device := newTestSource(t)
	source.SetFrameSkip(2)

	processed := 0
	for i := 0; i < 6; i++ {
		device.InjectFrame(testPixels(byte(i)), testSignal.Resolution, video.PixelFormatRGB888)

		require.True(t, source.HasNewFrame())
		if source.ShouldCurrentFrameBeSkipped() {
			// The answer is stable until the frame is acknowledged.
			assert.True(t, source.ShouldCurrentFrameBeSkipped())
			source.DiscardFrame()
			continue
		}

		_, err := source.ReserveFrameBuffer()
		require.NoError(t, err)
		require.NoError(t, source.UnreserveFrameBuffer())
		processed++
	}

	assert.Equal(t, 3, processed)
}

func TestSource_FrameSkip_DisabledValues(t *testing.T) {
	source, device := newTestSource(t)

	for _, ratio := range []uint64{0, 1} {
		source.SetFrameSkip(ratio)
		device.InjectFrame(testPixels(0), testSignal.Resolution, video.PixelFormatRGB888)
		assert.False(t, source.ShouldCurrentFrameBeSkipped())
		source.DiscardFrame()
	}
}

func TestSource_EventsCollapse(t *testing.T) {
	source, device := newTestSource(t)

	device.InjectEvent(EventSignalLost)
	device.InjectEvent(EventSignalLost)
	device.InjectEvent(EventSignalLost)

	assert.Equal(t, EventSignalLost, source.PopEvent())
	assert.Equal(t, EventNone, source.PopEvent())
}

func TestSource_EventSeverityOrder(t *testing.T) {
	source, device := newTestSource(t)

	device.InjectEvent(EventSignalGained)
	device.InjectEvent(EventNewVideoMode)
	device.InjectEvent(EventUnrecoverableError)

	assert.Equal(t, EventUnrecoverableError, source.PopEvent())
	assert.Equal(t, EventNewVideoMode, source.PopEvent())
	assert.Equal(t, EventSignalGained, source.PopEvent())
	assert.Equal(t, EventNone, source.PopEvent())
}

func TestSource_SignalStateMachine(t *testing.T) {
	source, device := newTestSource(t)

	device.InjectEvent(EventSignalLost)
	assert.True(t, source.NoSignal())

	device.InjectEvent(EventSignalGained)
	assert.True(t, source.IsCapturing())

	device.InjectEvent(EventInvalidSignal)
	assert.True(t, source.IsSignalInvalid())

	device.InjectEvent(EventNewVideoMode)
	assert.True(t, source.IsCapturing())
}

func TestSource_NewVideoModeGatesFrames(t *testing.T) {
	source, device := newTestSource(t)

	device.InjectEvent(EventNewVideoMode)

	// Frames under the unsettled mode are counted but never exposed.
	device.InjectFrame(testPixels(1), testSignal.Resolution, video.PixelFormatRGB888)
	assert.False(t, source.HasNewFrame())

	assert.Equal(t, EventNewVideoMode, source.PopEvent())
	source.ApplyNewVideoMode()

	device.InjectFrame(testPixels(2), testSignal.Resolution, video.PixelFormatRGB888)
	assert.True(t, source.HasNewFrame())
}

func TestSource_SignalLossDropsPendingFrame(t *testing.T) {
	source, device := newTestSource(t)

	device.InjectFrame(testPixels(1), testSignal.Resolution, video.PixelFormatRGB888)
	require.True(t, source.HasNewFrame())

	device.InjectEvent(EventSignalLost)
	assert.False(t, source.HasNewFrame())

	_, err := source.ReserveFrameBuffer()
	assert.ErrorIs(t, err, ErrNotCapturing)
}

func TestSource_Release_BlocksWhileReserved(t *testing.T) {
	source, device := newTestSource(t)

	device.InjectFrame(testPixels(1), testSignal.Resolution, video.PixelFormatRGB888)
	_, err := source.ReserveFrameBuffer()
	require.NoError(t, err)

	released := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		source.Release()
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("Release returned while a frame buffer was still reserved")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, source.UnreserveFrameBuffer())

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("Release did not return after the reservation was freed")
	}
	wg.Wait()

	assert.Equal(t, StateUninitialized, source.State())
}

func TestSource_Release_Idempotent(t *testing.T) {
	device := NewMockDevice(testSignal)
	source := NewSource(device)
	require.NoError(t, source.Initialize())

	require.NoError(t, source.Release())
	require.NoError(t, source.Release())
}

func TestSource_DeviceControlPassthrough(t *testing.T) {
	source, device := newTestSource(t)

	require.NoError(t, source.SetInputChannel(2))
	require.NoError(t, source.SetColorDepth(16))
	require.NoError(t, source.SetResolution(video.Resolution{Width: 800, Height: 600}))

	assert.Equal(t, []uint{2}, device.ChannelCalls)
	assert.Equal(t, []uint{16}, device.ColorDepthCalls)
	assert.Equal(t, []video.Resolution{{Width: 800, Height: 600}}, device.ResolutionCalls)

	res, err := source.Resolution()
	require.NoError(t, err)
	assert.Equal(t, video.Resolution{Width: 800, Height: 600}, res)
}

func TestSource_ConcurrentProducer(t *testing.T) {
	source, device := newTestSource(t)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		for {
			select {
			case <-stop:
				return
			default:
				device.InjectFrame(testPixels(byte(i)), testSignal.Resolution, video.PixelFormatRGB888)
				i++
			}
		}
	}()

	consumed := 0
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if !source.HasNewFrame() {
			continue
		}
		frame, err := source.ReserveFrameBuffer()
		if err != nil {
			continue
		}
		require.NoError(t, frame.Validate())
		require.NoError(t, source.UnreserveFrameBuffer())
		consumed++
	}
	close(stop)
	wg.Wait()

	assert.Greater(t, consumed, 0)
}
