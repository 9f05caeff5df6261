package filter

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vidpipe/video"
)

// NodeKind distinguishes the three node roles of the filter graph.
type NodeKind uint8

const (
	// NodeInputGate marks a chain's entry point; its parameter bytes encode
	// the input resolution the chain activates on (zero = any).
	NodeInputGate NodeKind = iota
	// NodeOutputGate marks a chain's exit point; its parameter bytes encode
	// the output resolution the chain activates on (zero = any).
	NodeOutputGate
	// NodeFilter carries one filter instance.
	NodeFilter
)

// String returns the persisted identity string of the node kind for gates,
// and "filter" for filter nodes.
func (k NodeKind) String() string {
	switch k {
	case NodeInputGate:
		return "input_gate"
	case NodeOutputGate:
		return "output_gate"
	case NodeFilter:
		return "filter"
	}
	return fmt.Sprintf("NodeKind(%d)", uint8(k))
}

// Node is one element of the filter graph. Nodes hold only non-owning
// integer indices to the nodes their output edge connects to, so the graph
// can be edited and compiled without dangling references.
type Node struct {
	Kind     NodeKind
	Instance Instance
	X, Y     float64

	// edges are the indices of nodes this node's output connects to.
	edges []int
}

// Edges returns the indices of the nodes this node's output connects to.
func (n *Node) Edges() []int {
	return append([]int(nil), n.edges...)
}

// GateResolution decodes the resolution encoded in a gate node's parameter
// bytes (little-endian 32-bit width then height). Zero means the gate
// matches any resolution.
func (n *Node) GateResolution() video.Resolution {
	return video.Resolution{
		Width:  binary.LittleEndian.Uint32(n.Instance.Data[0:4]),
		Height: binary.LittleEndian.Uint32(n.Instance.Data[4:8]),
	}
}

// SetGateResolution encodes a resolution into a gate node's parameter bytes.
func (n *Node) SetGateResolution(r video.Resolution) {
	binary.LittleEndian.PutUint32(n.Instance.Data[0:4], r.Width)
	binary.LittleEndian.PutUint32(n.Instance.Data[4:8], r.Height)
}

// Graph is an arena of filter and gate nodes addressed by stable integer
// indices. The data structure itself tolerates cycles and dangling chains;
// Compile rejects them per traversal instead of looping or erroring.
//
// The graph is edited only on the consumer thread and is not internally
// locked.
type Graph struct {
	nodes []*Node
}

// NewGraph creates an empty filter graph.
func NewGraph() *Graph {
	return &Graph{}
}

// AddFilterNode adds a node carrying the given filter instance and returns
// its index.
func (g *Graph) AddFilterNode(inst Instance) int {
	g.nodes = append(g.nodes, &Node{Kind: NodeFilter, Instance: inst})
	return len(g.nodes) - 1
}

// AddGateNode adds an input or output gate activating on the given
// resolution and returns its index.
func (g *Graph) AddGateNode(kind NodeKind, r video.Resolution) int {
	n := &Node{Kind: kind}
	n.SetGateResolution(r)
	g.nodes = append(g.nodes, n)
	return len(g.nodes) - 1
}

// Node returns the node at the given index.
func (g *Graph) Node(i int) (*Node, error) {
	if i < 0 || i >= len(g.nodes) {
		return nil, fmt.Errorf("no node at index %d (graph has %d nodes)", i, len(g.nodes))
	}
	return g.nodes[i], nil
}

// NodeCount returns the number of nodes in the arena.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// Connect adds a directed edge from one node's output to another node's
// input. Connecting a non-existent node is a contract violation and is
// reported as an error.
func (g *Graph) Connect(from, to int) error {
	src, err := g.Node(from)
	if err != nil {
		return fmt.Errorf("connect source: %w", err)
	}
	if _, err := g.Node(to); err != nil {
		return fmt.Errorf("connect target: %w", err)
	}

	for _, e := range src.edges {
		if e == to {
			return nil
		}
	}
	src.edges = append(src.edges, to)
	return nil
}

// Disconnect removes the edge from one node to another, if present.
func (g *Graph) Disconnect(from, to int) {
	src, err := g.Node(from)
	if err != nil {
		return
	}
	for i, e := range src.edges {
		if e == to {
			src.edges = append(src.edges[:i], src.edges[i+1:]...)
			return
		}
	}
}

// Clear removes all nodes and edges.
func (g *Graph) Clear() {
	g.nodes = nil
}

// Chain is one compiled filter chain: the ordered filters between an input
// gate and an output gate, keyed by the input gate's index as its
// distinguishing identity.
type Chain struct {
	InputGate int
	InRes     video.Resolution
	OutRes    video.Resolution
	Filters   []Instance
}

// Compile walks the graph from every input gate forward along edges,
// accumulating filter nodes in traversal order until an output gate closes
// the chain. A path that dead-ends before an output gate is simply not
// emitted, and a path that revisits a node (a cycle) is abandoned rather
// than followed; neither condition is an error.
func (g *Graph) Compile() []Chain {
	var chains []Chain

	for i, n := range g.nodes {
		if n.Kind != NodeInputGate {
			continue
		}

		visited := make(map[int]bool, len(g.nodes))
		visited[i] = true
		g.walk(i, i, n.GateResolution(), nil, visited, &chains)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Graph.Compile",
		"nodes":    len(g.nodes),
		"chains":   len(chains),
	}).Debug("Filter graph compiled")

	return chains
}

// walk follows every outgoing edge of the node at index from, extending the
// accumulated filter sequence, and appends a completed chain whenever an
// output gate is reached. The visited set is per-traversal and aborts
// cyclic paths.
func (g *Graph) walk(gate, from int, inRes video.Resolution, acc []Instance, visited map[int]bool, chains *[]Chain) {
	for _, next := range g.nodes[from].edges {
		if next < 0 || next >= len(g.nodes) || visited[next] {
			continue
		}
		node := g.nodes[next]

		switch node.Kind {
		case NodeOutputGate:
			*chains = append(*chains, Chain{
				InputGate: gate,
				InRes:     inRes,
				OutRes:    node.GateResolution(),
				Filters:   append([]Instance(nil), acc...),
			})
		case NodeFilter:
			visited[next] = true
			g.walk(gate, next, inRes, append(acc, node.Instance), visited, chains)
			delete(visited, next)
		case NodeInputGate:
			// An input gate in the middle of a path terminates it early.
		}
	}
}

// CompileSets compiles the graph and converts each chain into a filter set
// whose activation is derived from the gate resolutions: a zero gate
// resolution contributes no activation bit, and a chain whose gates are both
// zero activates unconditionally. The chain's filters become the set's
// pre-filters, matching where graph chains run in the pipeline.
func (g *Graph) CompileSets() []*Set {
	chains := g.Compile()
	sets := make([]*Set, 0, len(chains))

	for _, c := range chains {
		s := &Set{
			InRes:      c.InRes,
			OutRes:     c.OutRes,
			Enabled:    true,
			PreFilters: c.Filters,
		}
		if c.InRes.IsZero() && c.OutRes.IsZero() {
			s.Activation = ActivationAll
		} else {
			if !c.InRes.IsZero() {
				s.Activation |= ActivationIn
			}
			if !c.OutRes.IsZero() {
				s.Activation |= ActivationOut
			}
		}
		sets = append(sets, s)
	}

	return sets
}
