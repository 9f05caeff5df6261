package disk

import (
	"fmt"
	"strconv"

	"github.com/opd-ai/vidpipe/filter"
	"github.com/opd-ai/vidpipe/video"
)

// graphFileType identifies a persisted filter graph file.
const graphFileType = "vidpipe filter graph"

// graphFileVersion is the current revision letter of the graph file layout.
const graphFileVersion = "a"

// SaveFilterGraph encodes a filter graph: a header, one id/parameterData
// row pair per node, then one scenePosition/connections row pair per node.
// Connections refer to nodes by their index in the saved order.
func SaveFilterGraph(g *filter.Graph) [][]string {
	rows := [][]string{
		{"fileType", brace(graphFileType)},
		{"fileVersion", graphFileVersion},
		{"filterCount", strconv.Itoa(g.NodeCount())},
	}

	for i := 0; i < g.NodeCount(); i++ {
		n, _ := g.Node(i)

		id := n.Kind.String()
		if n.Kind == filter.NodeFilter {
			id = n.Instance.Type.String()
		}
		rows = append(rows, []string{"id", brace(id)})

		paramRow := make([]string, 0, 2+filter.DataLength)
		paramRow = append(paramRow, "parameterData", strconv.Itoa(filter.DataLength))
		for _, b := range n.Instance.Data {
			paramRow = append(paramRow, strconv.Itoa(int(b)))
		}
		rows = append(rows, paramRow)
	}

	rows = append(rows, []string{"nodeCount", strconv.Itoa(g.NodeCount())})
	for i := 0; i < g.NodeCount(); i++ {
		n, _ := g.Node(i)

		rows = append(rows, []string{
			"scenePosition",
			strconv.FormatFloat(n.X, 'f', -1, 64),
			strconv.FormatFloat(n.Y, 'f', -1, 64),
		})

		edges := n.Edges()
		connRow := make([]string, 0, 2+len(edges))
		connRow = append(connRow, "connections", strconv.Itoa(len(edges)))
		for _, e := range edges {
			connRow = append(connRow, strconv.Itoa(e))
		}
		rows = append(rows, connRow)
	}

	return rows
}

// LoadFilterGraph decodes rows produced by SaveFilterGraph into a new
// graph. The whole input is validated before anything is returned.
func LoadFilterGraph(rows [][]string) (*filter.Graph, error) {
	i := 0
	if err := wantField(rows, i, "fileType"); err != nil {
		return nil, fmt.Errorf("filter graph: %w", err)
	}
	i++
	if err := wantField(rows, i, "fileVersion"); err != nil {
		return nil, fmt.Errorf("filter graph: %w", err)
	}
	i++

	if err := wantField(rows, i, "filterCount"); err != nil {
		return nil, fmt.Errorf("filter graph: %w", err)
	}
	count, err := intField(rows[i], 1)
	if err != nil || count < 0 {
		return nil, fmt.Errorf("filter graph: row %d: invalid filter count", i)
	}
	i++

	g := filter.NewGraph()

	for n := 0; n < count; n++ {
		if err := wantField(rows, i, "id"); err != nil {
			return nil, fmt.Errorf("filter graph: %w", err)
		}
		if len(rows[i]) < 2 {
			return nil, fmt.Errorf("filter graph: row %d: id row is missing its value", i)
		}
		id := unbrace(rows[i][1])
		i++

		if err := wantField(rows, i, "parameterData"); err != nil {
			return nil, fmt.Errorf("filter graph: %w", err)
		}
		data, err := loadParameterData(rows[i])
		if err != nil {
			return nil, fmt.Errorf("filter graph: row %d: %w", i, err)
		}
		i++

		if err := addGraphNode(g, id, data); err != nil {
			return nil, fmt.Errorf("filter graph: node %d: %w", n, err)
		}
	}

	if err := wantField(rows, i, "nodeCount"); err != nil {
		return nil, fmt.Errorf("filter graph: %w", err)
	}
	nodeCount, err := intField(rows[i], 1)
	if err != nil {
		return nil, fmt.Errorf("filter graph: row %d: %w", i, err)
	}
	if nodeCount != count {
		return nil, fmt.Errorf("filter graph: row %d: node count %d does not match filter count %d",
			i, nodeCount, count)
	}
	i++

	for n := 0; n < nodeCount; n++ {
		if err := wantField(rows, i, "scenePosition"); err != nil {
			return nil, fmt.Errorf("filter graph: %w", err)
		}
		if len(rows[i]) < 3 {
			return nil, fmt.Errorf("filter graph: row %d: scenePosition row is missing coordinates", i)
		}
		node, _ := g.Node(n)
		if node.X, err = strconv.ParseFloat(rows[i][1], 64); err != nil {
			return nil, fmt.Errorf("filter graph: row %d: bad x coordinate: %w", i, err)
		}
		if node.Y, err = strconv.ParseFloat(rows[i][2], 64); err != nil {
			return nil, fmt.Errorf("filter graph: row %d: bad y coordinate: %w", i, err)
		}
		i++

		if err := wantField(rows, i, "connections"); err != nil {
			return nil, fmt.Errorf("filter graph: %w", err)
		}
		connCount, err := intField(rows[i], 1)
		if err != nil || connCount < 0 {
			return nil, fmt.Errorf("filter graph: row %d: invalid connection count", i)
		}
		for c := 0; c < connCount; c++ {
			target, err := intField(rows[i], 2+c)
			if err != nil {
				return nil, fmt.Errorf("filter graph: row %d: %w", i, err)
			}
			if err := g.Connect(n, target); err != nil {
				return nil, fmt.Errorf("filter graph: row %d: %w", i, err)
			}
		}
		i++
	}

	return g, nil
}

// addGraphNode creates the node described by a persisted id string: a gate
// kind name, or a filter identified by uuid or legacy display name.
func addGraphNode(g *filter.Graph, id string, data []byte) error {
	switch id {
	case filter.NodeInputGate.String():
		idx := g.AddGateNode(filter.NodeInputGate, video.Resolution{})
		n, _ := g.Node(idx)
		copy(n.Instance.Data[:], data)
		return nil
	case filter.NodeOutputGate.String():
		idx := g.AddGateNode(filter.NodeOutputGate, video.Resolution{})
		n, _ := g.Node(idx)
		copy(n.Instance.Data[:], data)
		return nil
	}

	typeID, err := filter.ResolveTypeString(id)
	if err != nil {
		return err
	}
	inst, err := filter.NewInstance(typeID, data)
	if err != nil {
		return err
	}
	g.AddFilterNode(inst)
	return nil
}

// loadParameterData decodes a counted parameter byte list.
func loadParameterData(row []string) ([]byte, error) {
	count, err := intField(row, 1)
	if err != nil {
		return nil, err
	}
	if count < 0 || count > filter.DataLength {
		return nil, fmt.Errorf("too many parameter bytes: %d (max %d)", count, filter.DataLength)
	}
	if len(row) < 2+count {
		return nil, fmt.Errorf("parameterData row declares %d bytes but carries %d", count, len(row)-2)
	}

	data := make([]byte, count)
	for p := 0; p < count; p++ {
		datum, err := intField(row, 2+p)
		if err != nil {
			return nil, err
		}
		if datum < 0 || datum > 255 {
			return nil, fmt.Errorf("parameter byte %d is outside of the allowed range (0..255): %d", p, datum)
		}
		data[p] = byte(datum)
	}
	return data, nil
}
