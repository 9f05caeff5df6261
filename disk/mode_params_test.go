package disk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/vidpipe/mode"
	"github.com/opd-ai/vidpipe/video"
)

func TestModeParams_RoundTrip(t *testing.T) {
	p := mode.DefaultParams(video.Resolution{Width: 640, Height: 480})
	p.Video.Phase = 17
	p.Video.VerticalPosition = -3
	p.Color.BlueContrast = 300

	loaded, err := LoadModeParams(SaveModeParams([]mode.Params{p}))

	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, p, loaded[0])
}

func TestLoadModeParams_SortedByArea(t *testing.T) {
	rows := SaveModeParams([]mode.Params{
		mode.DefaultParams(video.Resolution{Width: 1024, Height: 768}),
		mode.DefaultParams(video.Resolution{Width: 320, Height: 200}),
	})

	loaded, err := LoadModeParams(rows)

	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, video.Resolution{Width: 320, Height: 200}, loaded[0].Resolution)
	assert.Equal(t, video.Resolution{Width: 1024, Height: 768}, loaded[1].Resolution)
}

func TestLoadModeParams_Empty(t *testing.T) {
	loaded, err := LoadModeParams(nil)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadModeParams_TruncatedBlockFailsWhole(t *testing.T) {
	rows := SaveModeParams([]mode.Params{
		mode.DefaultParams(video.Resolution{Width: 640, Height: 480}),
	})
	rows = rows[:len(rows)-1] // drop the final parameter row

	_, err := LoadModeParams(rows)
	assert.Error(t, err)
}

func TestLoadModeParams_WrongKeyOrder(t *testing.T) {
	rows := SaveModeParams([]mode.Params{
		mode.DefaultParams(video.Resolution{Width: 640, Height: 480}),
	})
	rows[1], rows[2] = rows[2], rows[1]

	_, err := LoadModeParams(rows)
	assert.Error(t, err)
}

func TestLoadModeParams_BadResolution(t *testing.T) {
	_, err := LoadModeParams([][]string{{"resolution", "x", "480"}})
	assert.Error(t, err)

	_, err = LoadModeParams([][]string{{"resolution", "640"}})
	assert.Error(t, err)
}
