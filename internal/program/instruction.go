package program

// OperandKind distinguishes operand payloads.
type OperandKind uint8

const (
	// OperandValue references a value slot by id. The id -1 marks an absent
	// optional slot.
	OperandValue OperandKind = iota
	// OperandInt is an immediate integer (also jump targets and dtype codes).
	OperandInt
	// OperandFloat is an immediate float.
	OperandFloat
	// OperandIntList is an immediate integer list.
	OperandIntList
	// OperandFloatList is an immediate float list.
	OperandFloatList
	// OperandValueList is a list of value slot ids (variadic inputs/outputs).
	OperandValueList
	// OperandString is an immediate string.
	OperandString
)

// Operand is one typed instruction operand.
type Operand struct {
	Kind   OperandKind
	Num    int64 // value id, int immediate, or jump target
	Float  float64
	Ints   []int64
	Floats []float64
	Str    string
}

// Val references a value slot.
func Val(id int64) Operand { return Operand{Kind: OperandValue, Num: id} }

// NoVal marks an absent optional value slot.
func NoVal() Operand { return Operand{Kind: OperandValue, Num: -1} }

// Int is an immediate integer operand.
func Int(v int64) Operand { return Operand{Kind: OperandInt, Num: v} }

// Float is an immediate float operand.
func Float(v float64) Operand { return Operand{Kind: OperandFloat, Float: v} }

// Ints is an immediate integer-list operand.
func Ints(v []int64) Operand { return Operand{Kind: OperandIntList, Ints: v} }

// Floats is an immediate float-list operand.
func Floats(v []float64) Operand { return Operand{Kind: OperandFloatList, Floats: v} }

// Vals is a value-id-list operand.
func Vals(ids []int64) Operand { return Operand{Kind: OperandValueList, Ints: ids} }

// Str is an immediate string operand.
func Str(s string) Operand { return Operand{Kind: OperandString, Str: s} }

// Instruction is one VM instruction: an opcode, its typed operands, and a
// debug annotation naming the graph node (and loop phase) it came from.
type Instruction struct {
	Op    Opcode
	Args  []Operand
	Debug string
}

// Program is the append-only instruction list. The slice index of an
// instruction is its jump target address.
type Program struct {
	Instructions []Instruction
}

// Emit appends an instruction and returns its index.
func (p *Program) Emit(op Opcode, args ...Operand) int {
	p.Instructions = append(p.Instructions, Instruction{Op: op, Args: args})
	return len(p.Instructions) - 1
}

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.Instructions) }

// Last returns the most recently emitted instruction.
func (p *Program) Last() *Instruction {
	return &p.Instructions[len(p.Instructions)-1]
}
