package analyzer

import (
	"fmt"

	"github.com/dotcommander/codevisor/internal/domain"
)

// Shape is the outline a node is drawn with.
type Shape string

const (
	ShapeOval          Shape = "oval"
	ShapeRectangle     Shape = "rectangle"
	ShapeDiamond       Shape = "diamond"
	ShapeParallelogram Shape = "parallelogram"
)

const (
	StartID = "Start"
	EndID   = "End"
)

type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Shape Shape  `json:"shape"`
	Fill  string `json:"fill"`
	Line  int    `json:"line"`
}

type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is a flowchart: nodes in creation order plus directed edges.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	index map[string]int
}

func NewGraph() *Graph {
	return &Graph{
		Nodes: []Node{},
		Edges: []Edge{},
		index: make(map[string]int),
	}
}

// AddNode appends n. A repeated id keeps the first node.
func (g *Graph) AddNode(n Node) {
	if _, ok := g.index[n.ID]; ok {
		return
	}
	g.index[n.ID] = len(g.Nodes)
	g.Nodes = append(g.Nodes, n)
}

func (g *Graph) AddEdge(source, target string) {
	g.Edges = append(g.Edges, Edge{Source: source, Target: target})
}

// Has reports whether a node with id exists.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Position is the creation index of id, or -1.
func (g *Graph) Position(id string) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	return -1
}

// flow accumulates a graph and the execution steps that walk it. Every node
// other than Start and End yields one step, in creation order.
type flow struct {
	graph   *Graph
	steps   []domain.ExecutionStep
	counter int
}

func newFlow() *flow {
	f := &flow{graph: NewGraph(), counter: 1}
	f.graph.AddNode(Node{ID: StartID, Label: "Start", Shape: ShapeOval, Fill: "lightgreen"})
	return f
}

// nextID returns prefix_<n> and advances the counter.
func (f *flow) nextID(prefix string) string {
	id := fmt.Sprintf("%s_%d", prefix, f.counter)
	f.counter++
	return id
}

// add creates a node linked from parent and records its step.
func (f *flow) add(parent string, n Node, step domain.ExecutionStep) string {
	f.graph.AddNode(n)
	f.graph.AddEdge(parent, n.ID)

	step.NodeID = n.ID
	if step.Description == "" {
		step.Description = n.Label
	}
	if step.Variables == nil {
		step.Variables = map[string]any{}
	}
	if step.Line == nil {
		step.Line = lineRef(n.Line)
	}
	f.steps = append(f.steps, step)
	return n.ID
}

// finish links last to End and returns the graph with its steps.
func (f *flow) finish(last string) (*Graph, []domain.ExecutionStep) {
	f.graph.AddNode(Node{ID: EndID, Label: "End", Shape: ShapeOval, Fill: "red"})
	f.graph.AddEdge(last, EndID)

	steps := f.steps
	if len(steps) == 0 {
		steps = []domain.ExecutionStep{{
			NodeID:      "default",
			Description: "No significant statements found",
			Variables:   map[string]any{},
			Line:        lineRef(-1),
		}}
	}
	return f.graph, steps
}

// minimalGraph is Start -> [message] -> End, used for empty or unparsable code.
func minimalGraph(message string) *Graph {
	g := NewGraph()
	g.AddNode(Node{ID: StartID, Label: "Start", Shape: ShapeOval, Fill: "lightgreen"})
	last := StartID
	if message != "" {
		g.AddNode(Node{ID: "Error", Label: message, Shape: ShapeRectangle, Fill: "lightcoral"})
		g.AddEdge(StartID, "Error")
		last = "Error"
	}
	g.AddNode(Node{ID: EndID, Label: "End", Shape: ShapeOval, Fill: "red"})
	g.AddEdge(last, EndID)
	return g
}

func errorStep(description string) domain.ExecutionStep {
	return domain.ExecutionStep{
		NodeID:      "error",
		Description: description,
		Variables:   map[string]any{},
		Line:        lineRef(-1),
	}
}

func lineRef(n int) *int {
	return &n
}

func strRef(s string) *string {
	return &s
}
