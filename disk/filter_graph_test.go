package disk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/vidpipe/filter"
	"github.com/opd-ai/vidpipe/video"
)

func testGraph(t *testing.T) *filter.Graph {
	t.Helper()

	g := filter.NewGraph()
	in := g.AddGateNode(filter.NodeInputGate, video.Resolution{Width: 640, Height: 480})
	blur, err := filter.NewInstance(filter.TypeBlur, []byte{3})
	require.NoError(t, err)
	f := g.AddFilterNode(blur)
	out := g.AddGateNode(filter.NodeOutputGate, video.Resolution{Width: 1280, Height: 960})

	require.NoError(t, g.Connect(in, f))
	require.NoError(t, g.Connect(f, out))

	node, err := g.Node(f)
	require.NoError(t, err)
	node.X, node.Y = 120.5, -44

	return g
}

func TestFilterGraph_RoundTrip(t *testing.T) {
	g := testGraph(t)

	loaded, err := LoadFilterGraph(SaveFilterGraph(g))
	require.NoError(t, err)
	require.Equal(t, g.NodeCount(), loaded.NodeCount())

	for i := 0; i < g.NodeCount(); i++ {
		want, err := g.Node(i)
		require.NoError(t, err)
		got, err := loaded.Node(i)
		require.NoError(t, err)

		assert.Equal(t, want.Kind, got.Kind, "node %d", i)
		assert.Equal(t, want.Instance, got.Instance, "node %d", i)
		assert.Equal(t, want.X, got.X, "node %d", i)
		assert.Equal(t, want.Y, got.Y, "node %d", i)
		assert.Equal(t, want.Edges(), got.Edges(), "node %d", i)
	}

	// The reloaded graph compiles to the same chain.
	chains := loaded.Compile()
	require.Len(t, chains, 1)
	assert.Equal(t, video.Resolution{Width: 640, Height: 480}, chains[0].InRes)
	assert.Equal(t, video.Resolution{Width: 1280, Height: 960}, chains[0].OutRes)
	require.Len(t, chains[0].Filters, 1)
	assert.Equal(t, filter.TypeBlur, chains[0].Filters[0].Type)
}

func TestFilterGraph_RoundTripEmpty(t *testing.T) {
	loaded, err := LoadFilterGraph(SaveFilterGraph(filter.NewGraph()))
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.NodeCount())
}

func TestLoadFilterGraph_RejectsCountMismatch(t *testing.T) {
	rows := SaveFilterGraph(testGraph(t))

	for i, row := range rows {
		if row[0] == "nodeCount" {
			rows[i][1] = "7"
			break
		}
	}

	_, err := LoadFilterGraph(rows)
	assert.Error(t, err)
}

func TestLoadFilterGraph_RejectsUnknownNodeIdentity(t *testing.T) {
	rows := SaveFilterGraph(testGraph(t))

	for i, row := range rows {
		if row[0] == "id" && row[1] != "{input_gate}" && row[1] != "{output_gate}" {
			rows[i][1] = "{No Such Filter}"
			break
		}
	}

	_, err := LoadFilterGraph(rows)
	assert.Error(t, err)
}

func TestLoadFilterGraph_RejectsDanglingConnection(t *testing.T) {
	rows := SaveFilterGraph(testGraph(t))

	for i, row := range rows {
		if row[0] == "connections" && row[1] == "1" {
			rows[i][2] = "42"
			break
		}
	}

	_, err := LoadFilterGraph(rows)
	assert.Error(t, err)
}

func TestLoadFilterGraph_RejectsValuelessNodeCountRow(t *testing.T) {
	rows := [][]string{
		{"fileType", "{vidpipe filter graph}"},
		{"fileVersion", "a"},
		{"filterCount", "0"},
		{"nodeCount"},
	}

	_, err := LoadFilterGraph(rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing field")
}

func TestLoadFilterGraph_RejectsTruncatedInput(t *testing.T) {
	rows := SaveFilterGraph(testGraph(t))
	_, err := LoadFilterGraph(rows[:len(rows)-1])
	assert.Error(t, err)
}
