package graph

import "fmt"

// Builder constructs a Graph. Values and nodes are appended in declaration
// order; the node insertion order becomes the computation sequence, so
// callers (frontends, tests, the model decoder) are expected to add nodes in
// an order that respects data dependencies. CheckSchedule verifies that.
type Builder struct {
	g *Graph
}

// NewBuilder returns an empty graph builder.
func NewBuilder() *Builder {
	g := &Graph{
		values: make([]Value, 1), // slot 0 reserved for NoValueID
		nodes:  make([]Node, 1),  // slot 0 reserved for NoNodeID
	}
	return &Builder{g: g}
}

func (b *Builder) addValue(kind ValueKind, name string, dtype Dtype, shape []int64) ValueID {
	b.g.values = append(b.g.values, Value{Kind: kind, Name: name, Dtype: dtype, Shape: shape})
	return ValueID(len(b.g.values) - 1)
}

// Input declares a graph input value.
func (b *Builder) Input(name string, dtype Dtype, shape []int64) ValueID {
	id := b.addValue(KindInput, name, dtype, shape)
	b.g.inputs = append(b.g.inputs, id)
	return id
}

// Temp declares a temporary value.
func (b *Builder) Temp(name string, dtype Dtype, shape []int64) ValueID {
	id := b.addValue(KindTemp, name, dtype, shape)
	b.g.temps = append(b.g.temps, id)
	return id
}

// Output declares a graph output value.
func (b *Builder) Output(name string, dtype Dtype, shape []int64) ValueID {
	id := b.addValue(KindOutput, name, dtype, shape)
	b.g.outputs = append(b.g.outputs, id)
	return id
}

// Node appends an operator node. NoValueID entries in inputs and outputs
// mark absent optional slots.
func (b *Builder) Node(op OpType, name string, inputs, outputs []ValueID, attrs Attrs) NodeID {
	return b.appendNode(Node{Op: op, Name: name, Inputs: inputs, Outputs: outputs, Attrs: attrs})
}

// Loop appends a Loop node carrying its body graph.
func (b *Builder) Loop(name string, inputs, outputs []ValueID, body *Graph, attrs Attrs) NodeID {
	return b.appendNode(Node{Op: OpLoop, Name: name, Inputs: inputs, Outputs: outputs, Attrs: attrs, Body: body})
}

// Constant appends a Constant node producing out from the attached tensor.
func (b *Builder) Constant(name string, out ValueID, t *Tensor, host bool) NodeID {
	return b.appendNode(Node{
		Op:      OpConstant,
		Name:    name,
		Outputs: []ValueID{out},
		Attrs:   Attrs{Host: host},
		Tensor:  t,
	})
}

func (b *Builder) appendNode(n Node) NodeID {
	b.g.nodes = append(b.g.nodes, n)
	id := NodeID(len(b.g.nodes) - 1)
	for _, in := range n.Inputs {
		if !in.IsValid() {
			continue
		}
		v := b.g.Value(in)
		v.Users = append(v.Users, id)
	}
	b.g.seq = append(b.g.seq, id)
	return id
}

// Build finalizes and returns the graph. The builder must not be used
// afterwards.
func (b *Builder) Build() *Graph {
	g := b.g
	b.g = nil
	return g
}

// CheckSchedule verifies that the computation sequence is a valid
// topological order: every non-null node input is either a graph input or
// produced by an earlier node, and every output is produced exactly once.
// Loop bodies are checked recursively.
func (g *Graph) CheckSchedule() error {
	produced := make(map[ValueID]bool, g.NumValues())
	for _, id := range g.inputs {
		produced[id] = true
	}
	if len(g.seq) != g.NumNodes() {
		return fmt.Errorf("graph: schedule covers %d of %d nodes", len(g.seq), g.NumNodes())
	}
	seen := make(map[NodeID]bool, len(g.seq))
	for _, nid := range g.seq {
		if seen[nid] {
			return fmt.Errorf("graph: node %s scheduled twice", g.Node(nid))
		}
		seen[nid] = true
		n := g.Node(nid)
		for i, in := range n.Inputs {
			if !in.IsValid() {
				continue
			}
			if !produced[in] {
				return fmt.Errorf("graph: input %d of %s (%s) used before production", i, n, g.Value(in).Name)
			}
		}
		for _, out := range n.Outputs {
			if !out.IsValid() {
				continue
			}
			if produced[out] {
				return fmt.Errorf("graph: value %s produced twice", g.Value(out).Name)
			}
			produced[out] = true
		}
		if n.Body != nil {
			if err := n.Body.CheckSchedule(); err != nil {
				return fmt.Errorf("%s body: %w", n, err)
			}
		}
	}
	return nil
}
