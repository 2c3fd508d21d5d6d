package program

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProgram() *Program {
	p := &Program{}
	p.Emit(OpIn, Val(1), Str("x"))
	p.Last().Debug = "x"
	p.Emit(OpRelu, Val(2), Val(1))
	p.Last().Debug = "Relu(r)"
	p.Emit(OpConv, Val(3), Val(2), Val(1), NoVal(), Ints([]int64{1, 1}), Ints([]int64{0, 0}))
	p.Last().Debug = "Conv(c)"
	p.Emit(OpFloatScalarConstant, Val(4), Float(3.5), Int(6), Int(0))
	p.Last().Debug = "Constant(k)"
	p.Emit(OpConcat, Val(5), Vals([]int64{2, 3, 4}), Int(1))
	p.Last().Debug = "Concat(cat)"
	p.Emit(OpJmpTrue, Val(5), Int(1))
	p.Last().Debug = "Loop(l) @jmp"
	p.Emit(OpFree, Val(5))
	p.Last().Debug = "y"
	return p
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := sampleProgram()
	var buf bytes.Buffer
	require.NoError(t, p.Encode(&buf))

	got, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, p.Instructions, got.Instructions)

	// Re-encoding yields identical bytes.
	var buf2 bytes.Buffer
	require.NoError(t, got.Encode(&buf2))
	assert.Equal(t, buf.Bytes(), buf2.Bytes())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0xc1, 0x00}))
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	p := sampleProgram()
	out := p.Format()
	lines := []string{
		`   0: In $1 "x"  ; x`,
		`   1: Relu $2 $1  ; Relu(r)`,
		`   2: Conv $3 $2 $1 $- [1 1] [0 0]  ; Conv(c)`,
		`   3: FloatScalarConstant $4 3.5 6 0  ; Constant(k)`,
		`   4: Concat $5 [$2 $3 $4] 1  ; Concat(cat)`,
		`   5: JmpTrue $5 1  ; Loop(l) @jmp`,
		`   6: Free $5  ; y`,
	}
	for _, line := range lines {
		assert.Contains(t, out, line+"\n")
	}
}

func TestFormatColor(t *testing.T) {
	p := sampleProgram()
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	// With color disabled the colorized form is byte-identical to Format.
	color.NoColor = true
	assert.Equal(t, p.Format(), p.FormatColor())

	color.NoColor = false
	colored := p.FormatColor()
	assert.Contains(t, colored, "\x1b[")
	assert.NotEqual(t, p.Format(), colored)
}

func TestFormatFloatDistinct(t *testing.T) {
	// Whole-valued floats keep a trailing .0 so they never read as ints.
	assert.Equal(t, "2.0", formatFloat(2))
	assert.Equal(t, "3.5", formatFloat(3.5))
	assert.Equal(t, "1e+20", formatFloat(1e20))
}

func TestOpcodeNames(t *testing.T) {
	assert.Equal(t, "SequenceMove", OpSequenceMove.String())
	assert.Equal(t, "JmpFalse", OpJmpFalse.String())
	assert.Equal(t, "Opcode(255)", Opcode(255).String())
}
