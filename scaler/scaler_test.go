package scaler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/vidpipe/video"
)

// testFrame creates a BGRA frame with a deterministic pixel pattern.
func testFrame(w, h uint32) *video.Frame {
	f := &video.Frame{
		Resolution: video.Resolution{Width: w, Height: h},
		Format:     video.PixelFormatRGB888,
		Pixels:     make([]byte, w*h*4),
	}
	for i := range f.Pixels {
		f.Pixels[i] = byte(i * 13)
	}
	return f
}

func TestDefault(t *testing.T) {
	assert.Equal(t, "Nearest", Default().Name)
}

func TestForName(t *testing.T) {
	assert.Equal(t, "Linear", ForName("Linear").Name)
	assert.Equal(t, "Nearest", ForName("Nearest").Name)
}

func TestForName_UnknownFallsBackToDefault(t *testing.T) {
	s := ForName("Lanczos")
	assert.Equal(t, Default().Name, s.Name)
	assert.NotNil(t, s.Scale)
}

func TestAll(t *testing.T) {
	names := []string{}
	for _, s := range All() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Nearest", "Linear"}, names)
}

func TestScale_Upscale(t *testing.T) {
	src := testFrame(320, 240)
	target := video.Resolution{Width: 640, Height: 480}

	for _, s := range All() {
		out, err := s.Scale(src, target)
		require.NoError(t, err, s.Name)
		assert.Equal(t, target, out.Resolution, s.Name)
		assert.Len(t, out.Pixels, 640*480*4, s.Name)
	}
}

func TestScale_Downscale(t *testing.T) {
	src := testFrame(640, 480)
	target := video.Resolution{Width: 320, Height: 240}

	for _, s := range All() {
		out, err := s.Scale(src, target)
		require.NoError(t, err, s.Name)
		assert.Equal(t, target, out.Resolution, s.Name)
		assert.Len(t, out.Pixels, 320*240*4, s.Name)
	}
}

func TestScale_SameSizeIsACopy(t *testing.T) {
	src := testFrame(64, 64)
	target := src.Resolution

	for _, s := range All() {
		out, err := s.Scale(src, target)
		require.NoError(t, err, s.Name)
		assert.Equal(t, src.Pixels, out.Pixels, s.Name)

		// Mutating the output must not touch the source.
		out.Pixels[0] ^= 0xff
		assert.NotEqual(t, src.Pixels[0], out.Pixels[0], s.Name)
	}
}

func TestScale_UniformStaysUniform(t *testing.T) {
	src := testFrame(16, 16)
	for i := range src.Pixels {
		src.Pixels[i] = 99
	}

	for _, s := range All() {
		out, err := s.Scale(src, video.Resolution{Width: 33, Height: 21})
		require.NoError(t, err, s.Name)
		for _, b := range out.Pixels {
			require.Equal(t, byte(99), b, s.Name)
		}
	}
}

func TestScale_RejectsZeroTarget(t *testing.T) {
	src := testFrame(16, 16)

	for _, s := range All() {
		_, err := s.Scale(src, video.Resolution{})
		assert.Error(t, err, s.Name)
	}
}

func TestScale_RejectsMalformedSource(t *testing.T) {
	src := &video.Frame{
		Resolution: video.Resolution{Width: 16, Height: 16},
		Format:     video.PixelFormatRGB888,
		Pixels:     make([]byte, 7),
	}

	for _, s := range All() {
		_, err := s.Scale(src, video.Resolution{Width: 8, Height: 8})
		assert.Error(t, err, s.Name)
	}
}

func TestOutput_ResolutionFollowsBase(t *testing.T) {
	o := NewOutput()
	o.SetBaseResolution(video.Resolution{Width: 640, Height: 480})

	assert.Equal(t, video.Resolution{Width: 640, Height: 480}, o.Resolution())

	o.SetBaseResolution(video.Resolution{Width: 800, Height: 600})
	assert.Equal(t, video.Resolution{Width: 800, Height: 600}, o.Resolution())
}

func TestOutput_OverrideWins(t *testing.T) {
	o := NewOutput()
	o.SetBaseResolution(video.Resolution{Width: 640, Height: 480})

	require.NoError(t, o.SetOverride(video.Resolution{Width: 1920, Height: 1080}))
	assert.Equal(t, video.Resolution{Width: 1920, Height: 1080}, o.Resolution())

	// Mode changes do not disturb the override.
	o.SetBaseResolution(video.Resolution{Width: 320, Height: 200})
	assert.Equal(t, video.Resolution{Width: 1920, Height: 1080}, o.Resolution())

	o.ClearOverride()
	assert.Equal(t, video.Resolution{Width: 320, Height: 200}, o.Resolution())
}

func TestOutput_RejectsZeroOverride(t *testing.T) {
	o := NewOutput()
	assert.Error(t, o.SetOverride(video.Resolution{}))
}
