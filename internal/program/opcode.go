// Package program defines the VM instruction stream produced by the emitter:
// the opcode set, typed operands, the append-only instruction list, its
// msgpack wire format, and a stable text disassembly.
package program

import "fmt"

// Opcode is a VM instruction opcode.
type Opcode uint8

// The full VM opcode set. Tensor opcodes mirror the operator names of the
// input graph; the remainder are the staging, lifetime, constant and control
// opcodes only the emitter produces.
const (
	OpInvalid Opcode = iota

	// Elementwise unary.
	OpNeg
	OpReciprocal
	OpExp
	OpLog
	OpSqrt
	OpTanh
	OpAbs
	OpRelu
	OpFloor
	OpCeil
	OpSigmoid
	OpNot
	OpIdentity

	// Elementwise binary.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
	OpEqual
	OpGreater

	// Gradient binaries.
	OpReluGrad
	OpMaxPoolGrad
	OpAveragePoolGrad
	OpSelectItem
	OpSelectItemGrad

	// Activations.
	OpSelu
	OpLeakyRelu
	OpElu

	// Convolutions.
	OpConv
	OpConvTranspose
	OpConvTransposeWithDynamicShape
	OpConvGradWeight

	// Recurrent cells.
	OpRNN
	OpGRU
	OpLSTM

	// Shape introspection.
	OpShape
	OpSize

	// Reshape family.
	OpReshape
	OpExpand
	OpSqueeze
	OpUnsqueeze

	// Linear algebra.
	OpMatMul
	OpGemm

	// Normalization.
	OpBatchNormalization
	OpBatchNormalizationGrad
	OpLRN
	OpLRNGrad
	OpPad

	// Pooling.
	OpMaxPool
	OpAveragePool

	// Softmax family.
	OpSoftmax
	OpLogSoftmax
	OpArgMax
	OpHardmax

	// Reductions.
	OpReduceMax
	OpReduceSum
	OpReduceSumSquare
	OpReduceMean
	OpReduceSumTo

	// Misc tensor ops.
	OpCast
	OpConstantFill
	OpSlice
	OpDynamicSlice
	OpGather
	OpConcat
	OpSplit
	OpClip
	OpMax
	OpTranspose

	// Constants.
	OpFloatScalarConstant
	OpIntScalarConstant
	OpFloatConstant
	OpIntConstant

	// Sequences.
	OpSequenceCreate
	OpSequenceSize
	OpSequenceLengths
	OpSequenceAppend
	OpSequenceMove
	OpSequenceCopy
	OpSequenceLookup
	OpSequenceStack
	OpSequenceSplit
	OpSequenceUnpad
	OpSequencePad

	// Generic container ops.
	OpGenericLen
	OpGenericGetItem
	OpGenericGetSlice
	OpGenericAdd

	// Staging and lifetime.
	OpIn
	OpOut
	OpFree

	// Control flow.
	OpJmpTrue
	OpJmpFalse
)

var opcodeNames = [...]string{
	OpInvalid:                       "Invalid",
	OpNeg:                           "Neg",
	OpReciprocal:                    "Reciprocal",
	OpExp:                           "Exp",
	OpLog:                           "Log",
	OpSqrt:                          "Sqrt",
	OpTanh:                          "Tanh",
	OpAbs:                           "Abs",
	OpRelu:                          "Relu",
	OpFloor:                         "Floor",
	OpCeil:                          "Ceil",
	OpSigmoid:                       "Sigmoid",
	OpNot:                           "Not",
	OpIdentity:                      "Identity",
	OpAdd:                           "Add",
	OpSub:                           "Sub",
	OpMul:                           "Mul",
	OpDiv:                           "Div",
	OpPow:                           "Pow",
	OpEqual:                         "Equal",
	OpGreater:                       "Greater",
	OpReluGrad:                      "ReluGrad",
	OpMaxPoolGrad:                   "MaxPoolGrad",
	OpAveragePoolGrad:               "AveragePoolGrad",
	OpSelectItem:                    "SelectItem",
	OpSelectItemGrad:                "SelectItemGrad",
	OpSelu:                          "Selu",
	OpLeakyRelu:                     "LeakyRelu",
	OpElu:                           "Elu",
	OpConv:                          "Conv",
	OpConvTranspose:                 "ConvTranspose",
	OpConvTransposeWithDynamicShape: "ConvTransposeWithDynamicShape",
	OpConvGradWeight:                "ConvGradWeight",
	OpRNN:                           "RNN",
	OpGRU:                           "GRU",
	OpLSTM:                          "LSTM",
	OpShape:                         "Shape",
	OpSize:                          "Size",
	OpReshape:                       "Reshape",
	OpExpand:                        "Expand",
	OpSqueeze:                       "Squeeze",
	OpUnsqueeze:                     "Unsqueeze",
	OpMatMul:                        "MatMul",
	OpGemm:                          "Gemm",
	OpBatchNormalization:            "BatchNormalization",
	OpBatchNormalizationGrad:        "BatchNormalizationGrad",
	OpLRN:                           "LRN",
	OpLRNGrad:                       "LRNGrad",
	OpPad:                           "Pad",
	OpMaxPool:                       "MaxPool",
	OpAveragePool:                   "AveragePool",
	OpSoftmax:                       "Softmax",
	OpLogSoftmax:                    "LogSoftmax",
	OpArgMax:                        "ArgMax",
	OpHardmax:                       "Hardmax",
	OpReduceMax:                     "ReduceMax",
	OpReduceSum:                     "ReduceSum",
	OpReduceSumSquare:               "ReduceSumSquare",
	OpReduceMean:                    "ReduceMean",
	OpReduceSumTo:                   "ReduceSumTo",
	OpCast:                          "Cast",
	OpConstantFill:                  "ConstantFill",
	OpSlice:                         "Slice",
	OpDynamicSlice:                  "DynamicSlice",
	OpGather:                        "Gather",
	OpConcat:                        "Concat",
	OpSplit:                         "Split",
	OpClip:                          "Clip",
	OpMax:                           "Max",
	OpTranspose:                     "Transpose",
	OpFloatScalarConstant:           "FloatScalarConstant",
	OpIntScalarConstant:             "IntScalarConstant",
	OpFloatConstant:                 "FloatConstant",
	OpIntConstant:                   "IntConstant",
	OpSequenceCreate:                "SequenceCreate",
	OpSequenceSize:                  "SequenceSize",
	OpSequenceLengths:               "SequenceLengths",
	OpSequenceAppend:                "SequenceAppend",
	OpSequenceMove:                  "SequenceMove",
	OpSequenceCopy:                  "SequenceCopy",
	OpSequenceLookup:                "SequenceLookup",
	OpSequenceStack:                 "SequenceStack",
	OpSequenceSplit:                 "SequenceSplit",
	OpSequenceUnpad:                 "SequenceUnpad",
	OpSequencePad:                   "SequencePad",
	OpGenericLen:                    "GenericLen",
	OpGenericGetItem:                "GenericGetItem",
	OpGenericGetSlice:               "GenericGetSlice",
	OpGenericAdd:                    "GenericAdd",
	OpIn:                            "In",
	OpOut:                           "Out",
	OpFree:                          "Free",
	OpJmpTrue:                       "JmpTrue",
	OpJmpFalse:                      "JmpFalse",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}
