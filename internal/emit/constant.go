package emit

import (
	"fortio.org/safecast"

	"tensorvm/internal/graph"
	"tensorvm/internal/program"
)

// emitConstant lowers a Constant node from its attached tensor. Rank-0
// tensors become scalar-constant instructions; everything else carries the
// flattened element list plus the shape.
func (e *Emitter) emitConstant(g *graph.Graph, n *graph.Node, prog *program.Program) {
	if len(n.Outputs) != 1 {
		bailf("Constant wants 1 output, has %d", len(n.Outputs))
	}
	t := n.Tensor
	if t == nil {
		bailf("Constant %s has no tensor", n)
	}
	out := program.Val(e.valueID(g, n.Outputs[0]))
	debug := n.String()

	shape := make([]int64, len(t.Dims))
	for i, d := range t.Dims {
		if _, err := safecast.Conv[uint32](d); err != nil {
			bailf("Constant %s: dim %d does not fit in 32 bits", n, d)
		}
		shape[i] = d
	}

	dtype := program.Int(int64(t.Dtype))
	host := boolInt(n.Attrs.Host)
	if t.Dtype.IsFloat() {
		switch t.Dtype.SizeOf() {
		case 4, 8:
		default:
			bailf("Constant %s: unknown float width for %s", n, t.Dtype)
		}
		if t.IsScalar() {
			e.emit(prog, program.OpFloatScalarConstant, debug, out, program.Float(t.FloatData[0]), dtype, host)
		} else {
			e.emit(prog, program.OpFloatConstant, debug, out, program.Floats(t.FloatData), dtype, program.Ints(shape), host)
		}
	} else {
		switch t.Dtype.SizeOf() {
		case 1, 2, 4, 8:
		default:
			bailf("Constant %s: unknown int width for %s", n, t.Dtype)
		}
		if t.IsScalar() {
			e.emit(prog, program.OpIntScalarConstant, debug, out, program.Int(t.IntData[0]), dtype, host)
		} else {
			e.emit(prog, program.OpIntConstant, debug, out, program.Ints(t.IntData), dtype, program.Ints(shape), host)
		}
	}
}
