// Package modelio reads and writes the msgpack model format: a serialized
// graph ready for emission, with values, nodes, attributes, constant
// tensors, and nested loop bodies.
package modelio

import (
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"tensorvm/internal/graph"
)

// Current schema version - increment when the model format changes
const modelSchemaVersion uint16 = 1

type wireModel struct {
	Schema uint16
	Graph  wireGraph
}

// wireGraph stores values in arena order and nodes in schedule order, so
// decoding through the builder reproduces ids and the computation sequence
// exactly.
type wireGraph struct {
	Values []wireValue
	Nodes  []wireNode
}

type wireValue struct {
	Kind  uint8
	Name  string
	Dtype uint8
	Shape []int64
}

type wireNode struct {
	Op      string
	Name    string
	Inputs  []uint32
	Outputs []uint32
	Attrs   graph.Attrs
	Body    *wireGraph
	Tensor  *wireTensor
}

type wireTensor struct {
	Dtype     uint8
	Dims      []int64
	FloatData []float64
	IntData   []int64
}

// Encode writes g to w in the model wire format.
func Encode(w io.Writer, g *graph.Graph) error {
	if err := encodeWire(w, encodeGraph(g)); err != nil {
		return fmt.Errorf("modelio: encode: %w", err)
	}
	return nil
}

func encodeWire(w io.Writer, wg *wireGraph) error {
	wm := wireModel{Schema: modelSchemaVersion, Graph: *wg}
	return msgpack.NewEncoder(w).Encode(&wm)
}

// Decode reads a graph from the model wire format and verifies its schedule.
func Decode(r io.Reader) (*graph.Graph, error) {
	var wm wireModel
	if err := msgpack.NewDecoder(r).Decode(&wm); err != nil {
		return nil, fmt.Errorf("modelio: decode: %w", err)
	}
	if wm.Schema != modelSchemaVersion {
		return nil, fmt.Errorf("modelio: schema version %d, want %d", wm.Schema, modelSchemaVersion)
	}
	g, err := decodeGraph(&wm.Graph)
	if err != nil {
		return nil, fmt.Errorf("modelio: %w", err)
	}
	if err := g.CheckSchedule(); err != nil {
		return nil, fmt.Errorf("modelio: %w", err)
	}
	return g, nil
}

// Store writes g to path.
func Store(path string, g *graph.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a graph from path.
func Load(path string) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func encodeGraph(g *graph.Graph) *wireGraph {
	wg := &wireGraph{
		Values: make([]wireValue, g.NumValues()),
		Nodes:  make([]wireNode, 0, g.NumNodes()),
	}
	for i := 1; i <= g.NumValues(); i++ {
		v := g.Value(graph.ValueID(i))
		wg.Values[i-1] = wireValue{
			Kind:  uint8(v.Kind),
			Name:  v.Name,
			Dtype: uint8(v.Dtype),
			Shape: v.Shape,
		}
	}
	for _, nid := range g.ComputationSequence() {
		n := g.Node(nid)
		wn := wireNode{
			Op:      n.Op.String(),
			Name:    n.Name,
			Inputs:  encodeRefs(n.Inputs),
			Outputs: encodeRefs(n.Outputs),
			Attrs:   n.Attrs,
		}
		if n.Body != nil {
			wn.Body = encodeGraph(n.Body)
		}
		if n.Tensor != nil {
			wn.Tensor = &wireTensor{
				Dtype:     uint8(n.Tensor.Dtype),
				Dims:      n.Tensor.Dims,
				FloatData: n.Tensor.FloatData,
				IntData:   n.Tensor.IntData,
			}
		}
		wg.Nodes = append(wg.Nodes, wn)
	}
	return wg
}

func encodeRefs(ids []graph.ValueID) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}

func decodeGraph(wg *wireGraph) (*graph.Graph, error) {
	b := graph.NewBuilder()
	for i := range wg.Values {
		wv := &wg.Values[i]
		var id graph.ValueID
		switch graph.ValueKind(wv.Kind) {
		case graph.KindInput:
			id = b.Input(wv.Name, graph.Dtype(wv.Dtype), wv.Shape)
		case graph.KindTemp:
			id = b.Temp(wv.Name, graph.Dtype(wv.Dtype), wv.Shape)
		case graph.KindOutput:
			id = b.Output(wv.Name, graph.Dtype(wv.Dtype), wv.Shape)
		default:
			return nil, fmt.Errorf("value %q has invalid kind %d", wv.Name, wv.Kind)
		}
		if id != graph.ValueID(i+1) {
			return nil, fmt.Errorf("value %q decoded out of order", wv.Name)
		}
	}
	for i := range wg.Nodes {
		wn := &wg.Nodes[i]
		op := graph.OpTypeByName(wn.Op)
		if op == graph.OpInvalid {
			return nil, fmt.Errorf("node %q has unknown op %q", wn.Name, wn.Op)
		}
		inputs, err := decodeRefs(wn.Inputs, len(wg.Values))
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", wn.Name, err)
		}
		outputs, err := decodeRefs(wn.Outputs, len(wg.Values))
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", wn.Name, err)
		}
		switch op {
		case graph.OpLoop:
			if wn.Body == nil {
				return nil, fmt.Errorf("Loop node %q has no body", wn.Name)
			}
			body, err := decodeGraph(wn.Body)
			if err != nil {
				return nil, fmt.Errorf("Loop node %q body: %w", wn.Name, err)
			}
			b.Loop(wn.Name, inputs, outputs, body, wn.Attrs)
		case graph.OpConstant:
			if wn.Tensor == nil {
				return nil, fmt.Errorf("Constant node %q has no tensor", wn.Name)
			}
			t, err := decodeTensor(wn.Tensor)
			if err != nil {
				return nil, fmt.Errorf("Constant node %q: %w", wn.Name, err)
			}
			if len(outputs) != 1 {
				return nil, fmt.Errorf("Constant node %q wants 1 output, has %d", wn.Name, len(outputs))
			}
			b.Constant(wn.Name, outputs[0], t, wn.Attrs.Host)
		default:
			b.Node(op, wn.Name, inputs, outputs, wn.Attrs)
		}
	}
	return b.Build(), nil
}

func decodeRefs(refs []uint32, numValues int) ([]graph.ValueID, error) {
	out := make([]graph.ValueID, len(refs))
	for i, r := range refs {
		if int(r) > numValues {
			return nil, fmt.Errorf("value ref %d out of range (%d values)", r, numValues)
		}
		out[i] = graph.ValueID(r)
	}
	return out, nil
}

func decodeTensor(wt *wireTensor) (*graph.Tensor, error) {
	dtype := graph.Dtype(wt.Dtype)
	if dtype.IsFloat() {
		return graph.NewFloatTensor(dtype, wt.Dims, wt.FloatData)
	}
	return graph.NewIntTensor(dtype, wt.Dims, wt.IntData)
}
