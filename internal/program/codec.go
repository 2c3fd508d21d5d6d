package program

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when the wire format changes
const programSchemaVersion uint16 = 1

// wireProgram is the serialized form of a Program.
type wireProgram struct {
	Schema       uint16
	Instructions []Instruction
}

// Encode writes the program to w in its msgpack wire format. The encoding is
// deterministic: the same program always produces the same bytes.
func (p *Program) Encode(w io.Writer) error {
	wp := wireProgram{Schema: programSchemaVersion, Instructions: p.Instructions}
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(&wp); err != nil {
		return fmt.Errorf("program: encode: %w", err)
	}
	return nil
}

// Decode reads a program from its msgpack wire format.
func Decode(r io.Reader) (*Program, error) {
	var wp wireProgram
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&wp); err != nil {
		return nil, fmt.Errorf("program: decode: %w", err)
	}
	if wp.Schema != programSchemaVersion {
		return nil, fmt.Errorf("program: schema version %d, want %d", wp.Schema, programSchemaVersion)
	}
	return &Program{Instructions: wp.Instructions}, nil
}
