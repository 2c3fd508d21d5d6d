package graph

// ValueKind classifies a value within its graph.
type ValueKind uint8

const (
	// KindTemp is a value that is neither a graph input nor output.
	KindTemp ValueKind = iota
	// KindInput is a graph input.
	KindInput
	// KindOutput is a graph output.
	KindOutput
)

var valueKindNames = [...]string{
	KindTemp:   "temp",
	KindInput:  "input",
	KindOutput: "output",
}

func (k ValueKind) String() string {
	if int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return "invalid"
}

// Value is a typed dataflow edge. Users lists every node that reads the
// value; it is maintained by the builder.
type Value struct {
	Kind  ValueKind
	Name  string
	Dtype Dtype
	Shape []int64
	Users []NodeID
}

// NBytes returns the byte size of the value, or 0 when the dtype or any
// shape dim is unknown.
func (v *Value) NBytes() int64 {
	size := int64(v.Dtype.SizeOf())
	if size == 0 {
		return 0
	}
	for _, d := range v.Shape {
		if d < 0 {
			return 0
		}
		size *= d
	}
	return size
}
