package program

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

var (
	mnemonicColor = color.New(color.FgCyan)
	jumpColor     = color.New(color.FgYellow)
	debugColor    = color.New(color.Faint)
)

// Format renders the program as a stable text disassembly, one instruction
// per line. The output is deterministic and backs golden tests; jump targets
// are printed as absolute instruction indices.
func (p *Program) Format() string {
	return p.format(false)
}

// FormatColor renders the same disassembly with colorized mnemonics and
// debug annotations. Coloring honors the global color.NoColor switch, so
// with color disabled the output is byte-identical to Format.
func (p *Program) FormatColor() string {
	return p.format(true)
}

func (p *Program) format(colorize bool) string {
	var sb strings.Builder
	for i := range p.Instructions {
		inst := &p.Instructions[i]
		mnemonic := inst.Op.String()
		if colorize {
			if inst.Op == OpJmpTrue || inst.Op == OpJmpFalse {
				mnemonic = jumpColor.Sprint(mnemonic)
			} else {
				mnemonic = mnemonicColor.Sprint(mnemonic)
			}
		}
		fmt.Fprintf(&sb, "%4d: %s", i, mnemonic)
		for j := range inst.Args {
			sb.WriteByte(' ')
			sb.WriteString(inst.Args[j].format())
		}
		if inst.Debug != "" {
			note := "; " + inst.Debug
			if colorize {
				note = debugColor.Sprint(note)
			}
			sb.WriteString("  ")
			sb.WriteString(note)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (o *Operand) format() string {
	switch o.Kind {
	case OperandValue:
		if o.Num < 0 {
			return "$-"
		}
		return "$" + strconv.FormatInt(o.Num, 10)
	case OperandInt:
		return strconv.FormatInt(o.Num, 10)
	case OperandFloat:
		return formatFloat(o.Float)
	case OperandIntList:
		parts := make([]string, len(o.Ints))
		for i, v := range o.Ints {
			parts[i] = strconv.FormatInt(v, 10)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case OperandFloatList:
		parts := make([]string, len(o.Floats))
		for i, v := range o.Floats {
			parts[i] = formatFloat(v)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case OperandValueList:
		parts := make([]string, len(o.Ints))
		for i, v := range o.Ints {
			parts[i] = "$" + strconv.FormatInt(v, 10)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case OperandString:
		return strconv.Quote(o.Str)
	}
	return "?"
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	// Keep scalars visually distinct from int operands.
	if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") && !strings.Contains(s, "NaN") {
		s += ".0"
	}
	return s
}
