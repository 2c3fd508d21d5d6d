package emit

import (
	"fmt"

	"tensorvm/internal/graph"
	"tensorvm/internal/program"
)

// unaryOps and binaryOps cover the pure elementwise classes: arity is fixed
// and the VM opcode carries the same name as the operator.
var unaryOps = map[graph.OpType]program.Opcode{
	graph.OpNeg:        program.OpNeg,
	graph.OpReciprocal: program.OpReciprocal,
	graph.OpExp:        program.OpExp,
	graph.OpLog:        program.OpLog,
	graph.OpSqrt:       program.OpSqrt,
	graph.OpTanh:       program.OpTanh,
	graph.OpAbs:        program.OpAbs,
	graph.OpRelu:       program.OpRelu,
	graph.OpFloor:      program.OpFloor,
	graph.OpCeil:       program.OpCeil,
	graph.OpSigmoid:    program.OpSigmoid,
	graph.OpNot:        program.OpNot,
	graph.OpIdentity:   program.OpIdentity,
}

var binaryOps = map[graph.OpType]program.Opcode{
	graph.OpAdd:             program.OpAdd,
	graph.OpSub:             program.OpSub,
	graph.OpMul:             program.OpMul,
	graph.OpDiv:             program.OpDiv,
	graph.OpPow:             program.OpPow,
	graph.OpEqual:           program.OpEqual,
	graph.OpGreater:         program.OpGreater,
	graph.OpReluGrad:        program.OpReluGrad,
	graph.OpMaxPoolGrad:     program.OpMaxPoolGrad,
	graph.OpAveragePoolGrad: program.OpAveragePoolGrad,
	graph.OpSelectItem:      program.OpSelectItem,
}

// nodeArgs bundles the operand accessors for one node under lowering.
type nodeArgs struct {
	e *Emitter
	g *graph.Graph
	n *graph.Node
}

// in resolves a mandatory input slot.
func (a nodeArgs) in(i int) program.Operand {
	if i >= len(a.n.Inputs) || !a.n.Inputs[i].IsValid() {
		bailf("input %d of %s is mandatory", i, a.n.Op)
	}
	return program.Val(a.e.valueID(a.g, a.n.Inputs[i]))
}

// oin resolves an optional input slot; absent slots become the -1 sentinel.
func (a nodeArgs) oin(i int) program.Operand {
	if i >= len(a.n.Inputs) || !a.n.Inputs[i].IsValid() {
		return program.NoVal()
	}
	return a.in(i)
}

// out resolves a mandatory output slot.
func (a nodeArgs) out(i int) program.Operand {
	if i >= len(a.n.Outputs) || !a.n.Outputs[i].IsValid() {
		bailf("output %d of %s is mandatory", i, a.n.Op)
	}
	return program.Val(a.e.valueID(a.g, a.n.Outputs[i]))
}

// oout resolves an optional output slot; absent slots become the -1 sentinel.
func (a nodeArgs) oout(i int) program.Operand {
	if i >= len(a.n.Outputs) || !a.n.Outputs[i].IsValid() {
		return program.NoVal()
	}
	return a.out(i)
}

// ins resolves the full variadic input list.
func (a nodeArgs) ins() program.Operand {
	ids := make([]int64, len(a.n.Inputs))
	for i := range a.n.Inputs {
		ids[i] = a.in(i).Num
	}
	return program.Vals(ids)
}

// outs resolves the full variadic output list.
func (a nodeArgs) outs() program.Operand {
	ids := make([]int64, len(a.n.Outputs))
	for i := range a.n.Outputs {
		ids[i] = a.out(i).Num
	}
	return program.Vals(ids)
}

func (a nodeArgs) arity(nin, nout int) {
	if len(a.n.Inputs) != nin {
		bailf("%s wants %d inputs, has %d", a.n.Op, nin, len(a.n.Inputs))
	}
	if len(a.n.Outputs) != nout {
		bailf("%s wants %d outputs, has %d", a.n.Op, nout, len(a.n.Outputs))
	}
}

func (a nodeArgs) inputsBetween(lo, hi int) {
	if n := len(a.n.Inputs); n < lo || n > hi {
		bailf("%s wants %d..%d inputs, has %d", a.n.Op, lo, hi, n)
	}
}

// pads canonicalizes the 2N-element ONNX pads attribute to the N the VM
// expects. Begin and end pads must agree per axis.
func (a nodeArgs) pads() program.Operand {
	p := a.n.Attrs.Pads
	if len(p) == 0 {
		return program.Ints([]int64{0, 0})
	}
	if len(p)%2 != 0 {
		bailf("%s has odd pads %v", a.n.Op, p)
	}
	half := len(p) / 2
	for i := 0; i < half; i++ {
		if p[i] != p[i+half] {
			bailf("%s has asymmetric pads %v", a.n.Op, p)
		}
	}
	return program.Ints(p[:half])
}

// strides returns the strides attribute, defaulting to [1,1].
// TODO: infer strides for non-2D convolutions/pools.
func (a nodeArgs) strides() program.Operand {
	s := a.n.Attrs.Strides
	if len(s) == 0 {
		s = []int64{1, 1}
	}
	return program.Ints(s)
}

// noDilation rejects the dilation attribute the VM cannot run.
func (a nodeArgs) noDilation() {
	for _, d := range a.n.Attrs.Dilations {
		if d != 1 {
			bailf("%s: dilation %d is not supported", a.n.Op, d)
		}
	}
}

// plainRecurrent rejects recurrent-cell attributes the VM cannot run.
func (a nodeArgs) plainRecurrent() {
	if a.n.Attrs.Direction == "reverse" {
		bailf("%s: direction %q is not supported", a.n.Op, a.n.Attrs.Direction)
	}
	if len(a.n.Attrs.Activations) != 0 || len(a.n.Attrs.ActivationAlpha) != 0 || len(a.n.Attrs.ActivationBeta) != 0 {
		bailf("%s: custom activations are not supported", a.n.Op)
	}
}

// direction maps the textual direction attribute to the VM code.
func (a nodeArgs) direction() program.Operand {
	switch a.n.Attrs.Direction {
	case "", "forward":
		return program.Int(0)
	case "reversed":
		return program.Int(1)
	case "bidirectional":
		return program.Int(2)
	}
	bailf("%s: unknown direction %q", a.n.Op, a.n.Attrs.Direction)
	return program.Operand{}
}

func boolInt(b bool) program.Operand {
	if b {
		return program.Int(1)
	}
	return program.Int(0)
}

// emitNode lowers a single node, appending its instructions to prog. Every
// instruction is stamped with the node's debug string.
func (e *Emitter) emitNode(g *graph.Graph, n *graph.Node, prog *program.Program) {
	a := nodeArgs{e: e, g: g, n: n}
	debug := n.String()
	emit := func(op program.Opcode, args ...program.Operand) {
		e.emit(prog, op, debug, args...)
	}
	attrs := &n.Attrs

	if op, ok := unaryOps[n.Op]; ok {
		a.arity(1, 1)
		emit(op, a.out(0), a.in(0))
		return
	}
	if op, ok := binaryOps[n.Op]; ok {
		a.arity(2, 1)
		emit(op, a.out(0), a.in(0), a.in(1))
		return
	}

	switch n.Op {
	case graph.OpDropout:
		if len(n.Inputs) != 1 || len(n.Outputs) < 1 || len(n.Outputs) > 2 {
			bailf("Dropout wants 1 input and 1..2 outputs, has %d/%d", len(n.Inputs), len(n.Outputs))
		}
		if len(n.Outputs) == 2 {
			e.warnOnce("the second output of Dropout is not handled yet")
		}
		// The VM has no training mode; Dropout degrades to Identity.
		emit(program.OpIdentity, a.out(0), a.in(0))

	case graph.OpSelu:
		a.oneInSomeOut()
		emit(program.OpSelu, a.out(0), a.in(0), program.Float(attrs.Alpha), program.Float(attrs.Gamma))
	case graph.OpLeakyRelu:
		a.oneInSomeOut()
		emit(program.OpLeakyRelu, a.out(0), a.in(0), program.Float(attrs.Alpha))
	case graph.OpElu:
		a.oneInSomeOut()
		emit(program.OpElu, a.out(0), a.in(0), program.Float(attrs.Alpha))

	case graph.OpConv:
		a.inputsBetween(2, 3)
		a.noDilation()
		emit(program.OpConv, a.out(0), a.in(0), a.in(1), a.oin(2), a.strides(), a.pads())
	case graph.OpConvTranspose:
		a.inputsBetween(2, 3)
		a.noDilation()
		// TODO: handle output_padding.
		emit(program.OpConvTranspose, a.out(0), a.in(0), a.in(1), a.oin(2), a.strides(), a.pads(), program.Ints(attrs.OutputShape))
	case graph.OpConvTransposeWithDynamicOutputShape:
		a.arity(3, 1)
		emit(program.OpConvTransposeWithDynamicShape, a.out(0), a.in(0), a.in(1), a.in(2), a.strides(), a.pads())
	case graph.OpConvGradWeight:
		a.arity(3, 1)
		a.noDilation()
		emit(program.OpConvGradWeight, a.out(0), a.in(0), a.in(1), a.in(2), a.strides(), a.pads())

	case graph.OpRNN:
		a.plainRecurrent()
		emit(program.OpRNN, a.oout(0), a.oout(1), a.in(0), a.in(1), a.in(2), a.oin(3), a.oin(4), a.oin(5),
			program.Int(attrs.HiddenSize))
	case graph.OpGRU:
		a.plainRecurrent()
		emit(program.OpGRU, a.oout(0), a.oout(1), a.in(0), a.in(1), a.in(2), a.oin(3), a.oin(4), a.oin(5),
			program.Int(attrs.HiddenSize), program.Int(attrs.LinearBeforeReset))
	case graph.OpLSTM:
		a.plainRecurrent()
		if len(n.Inputs) < 3 {
			bailf("LSTM wants at least 3 inputs, has %d", len(n.Inputs))
		}
		if len(n.Outputs) > 3 {
			bailf("LSTM wants at most 3 outputs, has %d", len(n.Outputs))
		}
		emit(program.OpLSTM, a.oout(0), a.oout(1), a.oout(2), a.in(0), a.in(1), a.in(2),
			a.oin(3), a.oin(4), a.oin(5), a.oin(6), a.oin(7),
			program.Int(attrs.HiddenSize), a.direction())

	case graph.OpShape:
		a.arity(1, 1)
		emit(program.OpShape, a.out(0), a.in(0))
	case graph.OpSize:
		a.arity(1, 1)
		emit(program.OpSize, a.out(0), a.in(0))

	case graph.OpReshape:
		a.arity(2, 1)
		emit(program.OpReshape, a.out(0), a.in(0), a.in(1))
	case graph.OpExpand:
		a.arity(2, 1)
		emit(program.OpExpand, a.out(0), a.in(0), a.in(1))
	case graph.OpSqueeze:
		a.arity(1, 1)
		emit(program.OpSqueeze, a.out(0), a.in(0), program.Ints(attrs.Axes))
	case graph.OpUnsqueeze:
		a.arity(1, 1)
		emit(program.OpUnsqueeze, a.out(0), a.in(0), program.Ints(attrs.Axes))

	case graph.OpMatMul:
		a.arity(2, 1)
		emit(program.OpMatMul, a.out(0), a.in(0), a.in(1))
	case graph.OpGemm:
		a.arity(3, 1)
		emit(program.OpGemm, a.out(0), a.in(0), a.in(1), a.in(2),
			program.Float(attrs.Alpha), program.Float(attrs.Beta),
			program.Int(attrs.TransA), program.Int(attrs.TransB))

	case graph.OpBatchNormalization:
		// TODO: handle running mean and variance for training mode.
		if len(n.Inputs) != 5 {
			bailf("BatchNormalization wants 5 inputs, has %d", len(n.Inputs))
		}
		emit(program.OpBatchNormalization, a.out(0), a.in(0), a.in(1), a.in(2), a.in(3), a.in(4),
			program.Float(attrs.Epsilon), program.Float(attrs.Momentum), program.Int(attrs.Spatial))
	case graph.OpBatchNormalizationGrad:
		a.arity(2, 3)
		emit(program.OpBatchNormalizationGrad, a.out(0), a.out(1), a.out(2), a.in(0), a.in(1))
	case graph.OpLRN:
		a.arity(1, 1)
		emit(program.OpLRN, a.out(0), a.in(0),
			program.Float(attrs.Alpha), program.Float(attrs.Beta), program.Float(attrs.Bias), program.Int(attrs.Size))
	case graph.OpLRNGrad:
		a.arity(3, 1)
		emit(program.OpLRNGrad, a.out(0), a.in(0), a.in(1), a.in(2),
			program.Float(attrs.Alpha), program.Float(attrs.Beta), program.Float(attrs.Bias), program.Int(attrs.Size))
	case graph.OpPad:
		a.arity(1, 1)
		if attrs.Mode != "constant" {
			bailf("Pad: only constant mode is supported, have %q", attrs.Mode)
		}
		emit(program.OpPad, a.out(0), a.in(0), program.Ints(attrs.Pads), program.Float(attrs.Value))

	case graph.OpMaxPool:
		a.arity(1, 1)
		emit(program.OpMaxPool, a.out(0), a.in(0), program.Ints(attrs.KernelShape), a.strides(), a.pads())
	case graph.OpAveragePool:
		a.arity(1, 1)
		emit(program.OpAveragePool, a.out(0), a.in(0), program.Ints(attrs.KernelShape), a.strides(), a.pads(),
			program.Int(attrs.CountIncludePad))

	case graph.OpSoftmax, graph.OpLogSoftmax:
		a.arity(1, 1)
		axis := attrs.Axis
		if axis < 0 {
			axis = 1
		}
		op := program.OpSoftmax
		if n.Op == graph.OpLogSoftmax {
			op = program.OpLogSoftmax
		}
		emit(op, a.out(0), a.in(0), program.Int(axis))
	case graph.OpArgMax:
		a.arity(1, 1)
		emit(program.OpArgMax, a.out(0), a.in(0), program.Int(attrs.Axis), program.Int(attrs.Keepdims))
	case graph.OpHardmax:
		a.arity(1, 1)
		emit(program.OpHardmax, a.out(0), a.in(0), program.Int(attrs.Axis))

	case graph.OpReduceMax:
		a.arity(1, 1)
		emit(program.OpReduceMax, a.out(0), a.in(0), program.Ints(attrs.Axes), program.Int(attrs.Keepdims))
	case graph.OpReduceSum:
		a.arity(1, 1)
		emit(program.OpReduceSum, a.out(0), a.in(0), program.Ints(attrs.Axes), program.Int(attrs.Keepdims))
	case graph.OpReduceSumSquare:
		a.arity(1, 1)
		emit(program.OpReduceSumSquare, a.out(0), a.in(0), program.Ints(attrs.Axes), program.Int(attrs.Keepdims))
	case graph.OpReduceMean:
		a.arity(1, 1)
		emit(program.OpReduceMean, a.out(0), a.in(0), program.Ints(attrs.Axes), program.Int(attrs.Keepdims))
	case graph.OpReduceSumTo:
		a.arity(2, 1)
		emit(program.OpReduceSumTo, a.out(0), a.in(0), a.in(1))

	case graph.OpCast:
		a.arity(1, 1)
		emit(program.OpCast, a.out(0), a.in(0), program.Int(int64(attrs.To)))

	case graph.OpConstantFill:
		if attrs.InputAsShape {
			if len(n.Inputs) != 1 {
				bailf("ConstantFill with input_as_shape wants 1 input, has %d", len(n.Inputs))
			}
		} else if len(n.Inputs) != 0 {
			bailf("ConstantFill wants 0 inputs, has %d", len(n.Inputs))
		}
		if len(n.Outputs) != 1 {
			bailf("ConstantFill wants 1 output, has %d", len(n.Outputs))
		}
		emit(program.OpConstantFill, a.out(0), a.oin(0), program.Int(int64(attrs.Dtype)),
			program.Ints(attrs.ExtraShape), program.Ints(attrs.Shape), program.Float(attrs.Value))

	case graph.OpSlice:
		a.arity(1, 1)
		if len(attrs.Starts) == 0 || len(attrs.Ends) == 0 {
			bailf("Slice wants non-empty starts and ends")
		}
		if len(attrs.Starts) != len(attrs.Ends) {
			bailf("Slice starts/ends length mismatch: %d vs %d", len(attrs.Starts), len(attrs.Ends))
		}
		axes := attrs.Axes
		if len(axes) == 0 {
			axes = make([]int64, len(attrs.Starts))
			for i := range axes {
				axes[i] = int64(i)
			}
		} else if len(axes) != len(attrs.Starts) {
			bailf("Slice axes length mismatch: %d vs %d", len(axes), len(attrs.Starts))
		}
		emit(program.OpSlice, a.out(0), a.in(0), program.Ints(axes), program.Ints(attrs.Starts), program.Ints(attrs.Ends))
	case graph.OpDynamicSlice:
		emit(program.OpDynamicSlice, a.out(0), a.in(0), a.in(1), a.in(2), a.oin(3))
	case graph.OpGather:
		a.arity(2, 1)
		emit(program.OpGather, a.out(0), a.in(0), a.in(1), program.Int(attrs.Axis))

	case graph.OpConcat:
		if len(n.Outputs) != 1 {
			bailf("Concat wants 1 output, has %d", len(n.Outputs))
		}
		emit(program.OpConcat, a.out(0), a.ins(), program.Int(attrs.Axis))
	case graph.OpSplit:
		if len(n.Inputs) != 1 {
			bailf("Split wants 1 input, has %d", len(n.Inputs))
		}
		emit(program.OpSplit, a.outs(), a.in(0), program.Int(attrs.Axis), program.Ints(attrs.Split))

	case graph.OpClip:
		a.arity(1, 1)
		emit(program.OpClip, a.out(0), a.in(0), program.Float(attrs.Max), program.Float(attrs.Min))
	case graph.OpMax:
		if len(n.Outputs) != 1 {
			bailf("Max wants 1 output, has %d", len(n.Outputs))
		}
		emit(program.OpMax, a.out(0), a.ins())
	case graph.OpTranspose:
		a.arity(1, 1)
		emit(program.OpTranspose, a.out(0), a.in(0), program.Ints(attrs.Perm))
	case graph.OpSelectItemGrad:
		a.arity(3, 1)
		emit(program.OpSelectItemGrad, a.out(0), a.in(0), a.in(1), a.in(2))

	case graph.OpLoop:
		e.emitLoop(g, n, prog)
	case graph.OpConstant:
		e.emitConstant(g, n, prog)

	case graph.OpSequenceCreate:
		emit(program.OpSequenceCreate, a.out(0))
	case graph.OpSequenceSize:
		emit(program.OpSequenceSize, a.out(0), a.in(0))
	case graph.OpSequenceLengths:
		emit(program.OpSequenceLengths, a.out(0), a.in(0))
	case graph.OpSequenceAppend:
		seqIn := a.in(0)
		if len(g.Value(n.Inputs[0]).Users) == 1 {
			// Avoid O(N^2) copies for the simple case.
			emit(program.OpSequenceMove, a.out(0), seqIn)
		} else {
			emit(program.OpSequenceCopy, a.out(0), seqIn)
		}
		emit(program.OpSequenceAppend, a.out(0), a.in(1))
	case graph.OpSequenceLookup:
		emit(program.OpSequenceLookup, a.out(0), a.in(0), a.in(1))
	case graph.OpSequenceStack:
		emit(program.OpSequenceStack, a.out(0), a.in(0), program.Int(attrs.Axis))
	case graph.OpSequenceSplit:
		emit(program.OpSequenceSplit, a.out(0), a.in(0), program.Int(attrs.Axis))
	case graph.OpSequenceUnpad:
		emit(program.OpSequenceUnpad, a.out(0), a.in(0), a.in(1))
	case graph.OpSequencePad:
		emit(program.OpSequencePad, a.out(0), a.in(0), program.Int(attrs.Length), program.Float(attrs.Value))

	case graph.OpGenericLen:
		emit(program.OpGenericLen, a.out(0), a.in(0))
	case graph.OpGenericGetItem:
		emit(program.OpGenericGetItem, a.out(0), a.in(0), a.in(1))
	case graph.OpGenericGetSlice:
		emit(program.OpGenericGetSlice, a.out(0), a.in(0), a.oin(1), a.oin(2), a.oin(3))
	case graph.OpGenericAdd:
		emit(program.OpGenericAdd, a.out(0), a.in(0), a.in(1))

	default:
		bailf("unsupported op: %s", n.Op)
	}
}

// oneInSomeOut is the activation-op contract: one input and at least one
// output (trailing optional outputs are ignored by the VM op).
func (a nodeArgs) oneInSomeOut() {
	if len(a.n.Inputs) != 1 {
		bailf("%s wants 1 input, has %d", a.n.Op, len(a.n.Inputs))
	}
	if len(a.n.Outputs) < 1 {
		bailf("%s wants at least 1 output, has none", a.n.Op)
	}
}

// warnOnce prints a diagnostic warning at most once per emission.
func (e *Emitter) warnOnce(msg string) {
	if e.warnedDropoutMask {
		return
	}
	e.warnedDropoutMask = true
	fmt.Fprintf(e.diag, "warning: %s\n", msg)
}
