package graph

import "fmt"

// OpType enumerates the operator kinds the emitter understands. The set is
// closed: an op outside this enumeration is rejected at emit time.
type OpType uint8

const (
	OpInvalid OpType = iota

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

	// Activations with attributes.
	OpDropout
	OpSelu
	OpLeakyRelu
	OpElu

	// Convolutions.
	OpConv
	OpConvTranspose
	OpConvTransposeWithDynamicOutputShape
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
	OpSelectItemGrad

	// Sequence ops.
	OpSequenceCreate
	OpSequenceSize
	OpSequenceLengths
	OpSequenceAppend
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

	// Structured ops.
	OpConstant
	OpLoop
)

var opTypeNames = [...]string{
	OpInvalid:                             "Invalid",
	OpNeg:                                 "Neg",
	OpReciprocal:                          "Reciprocal",
	OpExp:                                 "Exp",
	OpLog:                                 "Log",
	OpSqrt:                                "Sqrt",
	OpTanh:                                "Tanh",
	OpAbs:                                 "Abs",
	OpRelu:                                "Relu",
	OpFloor:                               "Floor",
	OpCeil:                                "Ceil",
	OpSigmoid:                             "Sigmoid",
	OpNot:                                 "Not",
	OpIdentity:                            "Identity",
	OpAdd:                                 "Add",
	OpSub:                                 "Sub",
	OpMul:                                 "Mul",
	OpDiv:                                 "Div",
	OpPow:                                 "Pow",
	OpEqual:                               "Equal",
	OpGreater:                             "Greater",
	OpReluGrad:                            "ReluGrad",
	OpMaxPoolGrad:                         "MaxPoolGrad",
	OpAveragePoolGrad:                     "AveragePoolGrad",
	OpSelectItem:                          "SelectItem",
	OpDropout:                             "Dropout",
	OpSelu:                                "Selu",
	OpLeakyRelu:                           "LeakyRelu",
	OpElu:                                 "Elu",
	OpConv:                                "Conv",
	OpConvTranspose:                       "ConvTranspose",
	OpConvTransposeWithDynamicOutputShape: "ConvTransposeWithDynamicOutputShape",
	OpConvGradWeight:                      "ConvGradWeight",
	OpRNN:                                 "RNN",
	OpGRU:                                 "GRU",
	OpLSTM:                                "LSTM",
	OpShape:                               "Shape",
	OpSize:                                "Size",
	OpReshape:                             "Reshape",
	OpExpand:                              "Expand",
	OpSqueeze:                             "Squeeze",
	OpUnsqueeze:                           "Unsqueeze",
	OpMatMul:                              "MatMul",
	OpGemm:                                "Gemm",
	OpBatchNormalization:                  "BatchNormalization",
	OpBatchNormalizationGrad:              "BatchNormalizationGrad",
	OpLRN:                                 "LRN",
	OpLRNGrad:                             "LRNGrad",
	OpPad:                                 "Pad",
	OpMaxPool:                             "MaxPool",
	OpAveragePool:                         "AveragePool",
	OpSoftmax:                             "Softmax",
	OpLogSoftmax:                          "LogSoftmax",
	OpArgMax:                              "ArgMax",
	OpHardmax:                             "Hardmax",
	OpReduceMax:                           "ReduceMax",
	OpReduceSum:                           "ReduceSum",
	OpReduceSumSquare:                     "ReduceSumSquare",
	OpReduceMean:                          "ReduceMean",
	OpReduceSumTo:                         "ReduceSumTo",
	OpCast:                                "Cast",
	OpConstantFill:                        "ConstantFill",
	OpSlice:                               "Slice",
	OpDynamicSlice:                        "DynamicSlice",
	OpGather:                              "Gather",
	OpConcat:                              "Concat",
	OpSplit:                               "Split",
	OpClip:                                "Clip",
	OpMax:                                 "Max",
	OpTranspose:                           "Transpose",
	OpSelectItemGrad:                      "SelectItemGrad",
	OpSequenceCreate:                      "SequenceCreate",
	OpSequenceSize:                        "SequenceSize",
	OpSequenceLengths:                     "SequenceLengths",
	OpSequenceAppend:                      "SequenceAppend",
	OpSequenceLookup:                      "SequenceLookup",
	OpSequenceStack:                       "SequenceStack",
	OpSequenceSplit:                       "SequenceSplit",
	OpSequenceUnpad:                       "SequenceUnpad",
	OpSequencePad:                         "SequencePad",
	OpGenericLen:                          "GenericLen",
	OpGenericGetItem:                      "GenericGetItem",
	OpGenericGetSlice:                     "GenericGetSlice",
	OpGenericAdd:                          "GenericAdd",
	OpConstant:                            "Constant",
	OpLoop:                                "Loop",
}

func (op OpType) String() string {
	if int(op) < len(opTypeNames) && opTypeNames[op] != "" {
		return opTypeNames[op]
	}
	return fmt.Sprintf("OpType(%d)", uint8(op))
}

// OpTypeByName resolves an operator name back to its OpType. Used by the
// model decoder; unknown names resolve to OpInvalid.
func OpTypeByName(name string) OpType {
	for op, n := range opTypeNames {
		if n == name && OpType(op) != OpInvalid {
			return OpType(op)
		}
	}
	return OpInvalid
}
