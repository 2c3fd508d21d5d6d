package graph

// Graph holds three disjoint ordered value sets, a node set, and the
// computation sequence the upstream scheduler produced. The emitter walks
// the sequence as-is and never reorders it.
type Graph struct {
	values []Value // index 0 unused, ValueID indexes directly
	nodes  []Node  // index 0 unused, NodeID indexes directly

	inputs  []ValueID
	temps   []ValueID
	outputs []ValueID
	seq     []NodeID
}

// Value returns the value for a valid id.
func (g *Graph) Value(id ValueID) *Value { return &g.values[id] }

// Node returns the node for a valid id.
func (g *Graph) Node(id NodeID) *Node { return &g.nodes[id] }

// Inputs returns the graph input values in declaration order.
func (g *Graph) Inputs() []ValueID { return g.inputs }

// Temps returns the temporary values in declaration order.
func (g *Graph) Temps() []ValueID { return g.temps }

// Outputs returns the graph output values in declaration order.
func (g *Graph) Outputs() []ValueID { return g.outputs }

// NumValues returns the number of values owned by the graph.
func (g *Graph) NumValues() int { return len(g.values) - 1 }

// NumNodes returns the number of nodes owned by the graph.
func (g *Graph) NumNodes() int { return len(g.nodes) - 1 }

// ComputationSequence returns the scheduled node order.
func (g *Graph) ComputationSequence() []NodeID { return g.seq }
