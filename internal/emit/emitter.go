// Package emit lowers a scheduled tensor graph into the linear VM
// instruction stream.
//
// The emitter is a deterministic 1:1 lowering: it assigns dense integer ids
// to every graph value, walks the scheduler-provided computation sequence,
// lowers each node to one or more instructions, frees every temporary at its
// last use, and flattens Loop nodes into jump-based scaffolding. It performs
// no folding, fusion, or reordering of its own.
package emit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"tensorvm/internal/graph"
	"tensorvm/internal/program"
)

// Options configures a single emission.
type Options struct {
	// DumpValueNames writes the value-id table to Diag after emission.
	DumpValueNames bool
	// Diag receives the value dump and one-shot warnings. Defaults to stderr.
	Diag io.Writer
}

// emitError is the bail-out payload for fatal lowering errors. These are
// compile-time conditions on a malformed graph; no recovery can produce a
// correct program, so lowering aborts at the first one.
type emitError struct {
	msg string
}

func bailf(format string, args ...any) {
	panic(&emitError{msg: fmt.Sprintf(format, args...)})
}

// valueKey addresses a value across the root graph and every loop body
// reached during emission.
type valueKey struct {
	g  *graph.Graph
	id graph.ValueID
}

// Emitter holds the per-emission state: the id table, the monotonic id
// counter, and the program under construction. One Emitter exists per Emit
// call; it is single-threaded and discarded afterwards.
type Emitter struct {
	root   *graph.Graph
	nextID int64
	ids    map[valueKey]int64

	// named tracks id -> value for the diagnostic dump. Ids minted for
	// anonymous loop-internal values do not appear here.
	named map[int64]*graph.Value

	diag              io.Writer
	warnedDropoutMask bool
}

// Emit lowers g into a fresh program. All lowering failures (arity
// mismatches, unsupported attributes, unknown ops, malformed loops) are
// returned as errors carrying operator context.
func Emit(g *graph.Graph, opts Options) (prog *program.Program, err error) {
	diag := opts.Diag
	if diag == nil {
		diag = os.Stderr
	}
	e := &Emitter{
		root:   g,
		nextID: 1,
		ids:    make(map[valueKey]int64),
		named:  make(map[int64]*graph.Value),
		diag:   diag,
	}
	defer func() {
		if r := recover(); r != nil {
			ee, ok := r.(*emitError)
			if !ok {
				panic(r)
			}
			prog = nil
			err = errors.New("emit: " + ee.msg)
		}
	}()

	e.assignValueIds(g)
	prog = &program.Program{}
	e.emitGraph(g, prog, false)
	e.emitOutputs(prog)
	if opts.DumpValueNames {
		e.dumpValueNames()
	}
	return prog, nil
}

// mintID returns a fresh id for a value created by lowering itself.
func (e *Emitter) mintID() int64 {
	id := e.nextID
	e.nextID++
	return id
}

// assignValueIds registers every value of g in the fixed order inputs,
// temps, outputs. Ids are never reused within one emission; loop bodies are
// registered when their Loop node is lowered.
func (e *Emitter) assignValueIds(g *graph.Graph) {
	assign := func(id graph.ValueID) {
		key := valueKey{g: g, id: id}
		if _, dup := e.ids[key]; dup {
			bailf("value %s registered twice", g.Value(id).Name)
		}
		vid := e.mintID()
		e.ids[key] = vid
		e.named[vid] = g.Value(id)
	}
	for _, id := range g.Inputs() {
		assign(id)
	}
	for _, id := range g.Temps() {
		assign(id)
	}
	for _, id := range g.Outputs() {
		assign(id)
	}
}

// valueID looks up the id of a registered value and fails loudly when the
// value was never registered.
func (e *Emitter) valueID(g *graph.Graph, id graph.ValueID) int64 {
	vid, ok := e.ids[valueKey{g: g, id: id}]
	if !ok {
		bailf("value not registered: %s", g.Value(id).Name)
	}
	return vid
}

// emit appends one instruction and stamps its debug string.
func (e *Emitter) emit(prog *program.Program, op program.Opcode, debug string, args ...program.Operand) int {
	idx := prog.Emit(op, args...)
	prog.Last().Debug = debug
	return idx
}

// emitGraph walks the computation sequence of g. For the root graph it
// stages each Input value with an In instruction at its first use; for loop
// bodies (inLoop) the loop lowerer owns input initialization and freeing.
func (e *Emitter) emitGraph(g *graph.Graph, prog *program.Program, inLoop bool) {
	numUsers := make(map[graph.ValueID]int)
	if !inLoop {
		for _, id := range g.Inputs() {
			numUsers[id] = len(g.Value(id).Users)
		}
	}
	for _, id := range g.Temps() {
		numUsers[id] = len(g.Value(id).Users)
	}

	staged := make(map[graph.ValueID]bool)

	for _, nid := range g.ComputationSequence() {
		n := g.Node(nid)

		if !inLoop {
			for _, in := range n.Inputs {
				if !in.IsValid() || g.Value(in).Kind != graph.KindInput {
					continue
				}
				if staged[in] {
					continue
				}
				staged[in] = true
				v := g.Value(in)
				e.emit(prog, program.OpIn, v.Name, program.Val(e.valueID(g, in)), program.Str(v.Name))
			}
		}

		e.emitNode(g, n, prog)

		// Outputs nobody reads die immediately. BatchNormalization is the
		// deliberate exception; see the open question in DESIGN.md.
		for _, out := range n.Outputs {
			if !out.IsValid() {
				continue
			}
			v := g.Value(out)
			if v.Kind == graph.KindTemp && len(v.Users) == 0 && n.Op != graph.OpBatchNormalization {
				e.emit(prog, program.OpFree, n.String(), program.Val(e.valueID(g, out)))
			}
		}

		for _, in := range n.Inputs {
			if !in.IsValid() {
				continue
			}
			count, tracked := numUsers[in]
			if !tracked {
				continue
			}
			count--
			numUsers[in] = count
			if count == 0 {
				e.emit(prog, program.OpFree, n.String(), program.Val(e.valueID(g, in)))
			}
		}
	}
}

// emitOutputs publishes the root graph outputs and releases them.
func (e *Emitter) emitOutputs(prog *program.Program) {
	for _, id := range e.root.Outputs() {
		v := e.root.Value(id)
		vid := e.valueID(e.root, id)
		e.emit(prog, program.OpOut, v.Name, program.Str(v.Name), program.Val(vid))
		e.emit(prog, program.OpFree, v.Name, program.Val(vid))
	}
}

// dumpValueNames writes the id table to the diagnostic stream: one line per
// registered value plus a total-size summary.
func (e *Emitter) dumpValueNames() {
	ids := make([]int64, 0, len(e.named))
	for id := range e.named {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fmt.Fprintf(e.diag, "=== %d variables ===\n", len(ids))
	var total int64
	for _, id := range ids {
		v := e.named[id]
		size := v.NBytes()
		total += size
		fmt.Fprintf(e.diag, "$%d: %s %d\n", id, v.Name, size)
	}
	fmt.Fprintf(e.diag, "Total size of all values: %dMB\n", total/1000/1000)
}
