package graph

// Attrs is the typed attribute set of a node. Each operator reads only the
// fields its lowering rule names; everything else stays at the zero value.
type Attrs struct {
	// Scalar coefficients (Selu, LeakyRelu, Elu, Gemm, LRN, ...).
	Alpha float64
	Beta  float64
	Gamma float64

	// Axis-style attributes.
	Axis     int64
	Axes     []int64
	Keepdims int64
	Perm     []int64

	// Spatial attributes (convolutions, pooling).
	Pads        []int64
	Strides     []int64
	Dilations   []int64
	KernelShape []int64
	OutputShape []int64

	// Recurrent cells.
	Direction         string
	Activations       []string
	ActivationAlpha   []float64
	ActivationBeta    []float64
	HiddenSize        int64
	LinearBeforeReset int64

	// Normalization.
	Epsilon  float64
	Momentum float64
	Spatial  int64
	Bias     float64
	Size     int64

	// Gemm transposes.
	TransA int64
	TransB int64

	// Pad / Clip / ConstantFill / SequencePad payloads.
	Mode         string
	Value        float64
	Max          float64
	Min          float64
	Dtype        Dtype
	Shape        []int64
	ExtraShape   []int64
	InputAsShape bool
	Length       int64

	// Cast target.
	To Dtype

	// Slice bounds.
	Starts []int64
	Ends   []int64

	// Split sizes.
	Split []int64

	// Pooling.
	CountIncludePad int64

	// Loop scan-output stacking axis.
	StackAxis int64

	// Constant placement hint.
	Host bool
}
