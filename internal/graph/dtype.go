package graph

import "fmt"

// Dtype is the element type of a tensor value.
type Dtype uint8

const (
	// DtypeUnknown marks a value whose element type was not inferred.
	DtypeUnknown Dtype = iota
	DtypeBool
	DtypeInt8
	DtypeInt16
	DtypeInt32
	DtypeInt64
	DtypeFloat32
	DtypeFloat64
)

var dtypeNames = [...]string{
	DtypeUnknown: "unknown",
	DtypeBool:    "bool",
	DtypeInt8:    "int8",
	DtypeInt16:   "int16",
	DtypeInt32:   "int32",
	DtypeInt64:   "int64",
	DtypeFloat32: "float32",
	DtypeFloat64: "float64",
}

func (d Dtype) String() string {
	if int(d) < len(dtypeNames) {
		return dtypeNames[d]
	}
	return fmt.Sprintf("Dtype(%d)", uint8(d))
}

// SizeOf returns the element width in bytes, or 0 for DtypeUnknown.
func (d Dtype) SizeOf() int {
	switch d {
	case DtypeBool, DtypeInt8:
		return 1
	case DtypeInt16:
		return 2
	case DtypeInt32, DtypeFloat32:
		return 4
	case DtypeInt64, DtypeFloat64:
		return 8
	}
	return 0
}

// IsFloat reports whether the dtype is a floating point type.
func (d Dtype) IsFloat() bool {
	return d == DtypeFloat32 || d == DtypeFloat64
}
