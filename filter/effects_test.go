package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/vidpipe/video"
)

func TestApplyFlip_HorizontalIsInvolution(t *testing.T) {
	frame := testFrame(6, 4)
	want := append([]byte(nil), frame.Pixels...)

	var data [DataLength]byte // axis 0 = horizontal

	require.NoError(t, applyFlip(&data, frame))
	assert.NotEqual(t, want, frame.Pixels)

	require.NoError(t, applyFlip(&data, frame))
	assert.Equal(t, want, frame.Pixels)
}

func TestApplyFlip_Vertical(t *testing.T) {
	frame := testFrame(2, 2)

	// Mark the top-left pixel's blue channel.
	frame.Pixels[0] = 0xaa

	var data [DataLength]byte
	data[0] = 1 // vertical

	require.NoError(t, applyFlip(&data, frame))

	// The marked pixel moved to the bottom-left.
	bottomLeft := (1*2 + 0) * 4
	assert.Equal(t, byte(0xaa), frame.Pixels[bottomLeft])
}

func TestApplyBlur_UniformFrameUnchanged(t *testing.T) {
	frame := uniformFrame(8, 8, 100)

	var data [DataLength]byte
	data[0] = 2

	require.NoError(t, applyBlur(&data, frame))

	for i := 0; i+3 < len(frame.Pixels); i += 4 {
		assert.Equal(t, byte(100), frame.Pixels[i])
		assert.Equal(t, byte(100), frame.Pixels[i+1])
		assert.Equal(t, byte(100), frame.Pixels[i+2])
	}
}

func TestApplyBlur_SpreadsAnImpulse(t *testing.T) {
	frame := uniformFrame(9, 9, 0)

	// A single bright pixel in the middle.
	center := (4*9 + 4) * 4
	frame.Pixels[center] = 255

	var data [DataLength]byte
	data[0] = 1

	require.NoError(t, applyBlur(&data, frame))

	// Energy leaked into the neighbor and the center dimmed.
	neighbor := (4*9 + 5) * 4
	assert.Greater(t, frame.Pixels[neighbor], byte(0))
	assert.Less(t, frame.Pixels[center], byte(255))
}

func TestApplyDenoise_SmallDeviationFlattened(t *testing.T) {
	frame := uniformFrame(8, 8, 100)

	// One pixel barely off the mean; denoise should pull it back.
	i := (3*8 + 3) * 4
	frame.Pixels[i] = 103

	var data [DataLength]byte
	data[0] = 10 // threshold

	require.NoError(t, applyDenoise(&data, frame))
	assert.NotEqual(t, byte(103), frame.Pixels[i])
}

func TestApplyDecimate_BlocksBecomeUniform(t *testing.T) {
	frame := testFrame(8, 8)

	var data [DataLength]byte
	data[0] = 4

	require.NoError(t, applyDecimate(&data, frame))

	// Every pixel of a block carries the block average.
	first := frame.Pixels[0:4]
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			i := (y*8 + x) * 4
			assert.Equal(t, first[0], frame.Pixels[i])
			assert.Equal(t, first[1], frame.Pixels[i+1])
			assert.Equal(t, first[2], frame.Pixels[i+2])
		}
	}
}

func TestEffects_RejectNonBGRAFrames(t *testing.T) {
	frame := &video.Frame{
		Resolution: video.Resolution{Width: 4, Height: 4},
		Format:     video.PixelFormatRGB565,
		Pixels:     make([]byte, 4*4*2),
	}

	var data [DataLength]byte
	assert.Error(t, applyBlur(&data, frame))
	assert.Error(t, applySharpen(&data, frame))
	assert.Error(t, applyMedian(&data, frame))
	assert.Error(t, applyFlip(&data, frame))
}

// uniformFrame creates a BGRA frame with every color channel set to v.
func uniformFrame(w, h uint32, v byte) *video.Frame {
	f := &video.Frame{
		Resolution: video.Resolution{Width: w, Height: h},
		Format:     video.PixelFormatRGB888,
		Pixels:     make([]byte, w*h*4),
	}
	for i := 0; i+3 < len(f.Pixels); i += 4 {
		f.Pixels[i+0] = v
		f.Pixels[i+1] = v
		f.Pixels[i+2] = v
		f.Pixels[i+3] = 0xff
	}
	return f
}
