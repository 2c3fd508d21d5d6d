package graph

import "fmt"

// Tensor is an immutable constant payload attached to a Constant node.
//
// The element data is stored widened: every float dtype as float64, every
// integer dtype (bool included) as int64. The original element width is kept
// in Dtype so the program encoder can record it. Exactly one of FloatData and
// IntData is populated, matching Dtype.IsFloat.
type Tensor struct {
	Dtype     Dtype
	Dims      []int64
	FloatData []float64
	IntData   []int64
}

// NewFloatTensor builds a float tensor, validating the dtype class and the
// element count against the dims.
func NewFloatTensor(dtype Dtype, dims []int64, data []float64) (*Tensor, error) {
	if !dtype.IsFloat() {
		return nil, fmt.Errorf("graph: float tensor with dtype %s", dtype)
	}
	t := &Tensor{Dtype: dtype, Dims: dims, FloatData: data}
	if err := t.checkLen(len(data)); err != nil {
		return nil, err
	}
	return t, nil
}

// NewIntTensor builds an integer tensor, validating the dtype class and the
// element count against the dims.
func NewIntTensor(dtype Dtype, dims []int64, data []int64) (*Tensor, error) {
	if dtype.IsFloat() || dtype == DtypeUnknown {
		return nil, fmt.Errorf("graph: int tensor with dtype %s", dtype)
	}
	t := &Tensor{Dtype: dtype, Dims: dims, IntData: data}
	if err := t.checkLen(len(data)); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tensor) checkLen(n int) error {
	if want := t.NumElements(); int64(n) != want {
		return fmt.Errorf("graph: tensor dims %v want %d elements, have %d", t.Dims, want, n)
	}
	return nil
}

// NumElements returns the product of the dims (1 for rank-0 tensors).
func (t *Tensor) NumElements() int64 {
	n := int64(1)
	for _, d := range t.Dims {
		n *= d
	}
	return n
}

// IsScalar reports whether the tensor is rank-0.
func (t *Tensor) IsScalar() bool { return len(t.Dims) == 0 }
