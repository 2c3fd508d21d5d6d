package emit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensorvm/internal/emit"
	"tensorvm/internal/graph"
	"tensorvm/internal/program"
)

// loopBody builds the canonical body (iter, cond, state) -> (cond', state')
// where cond' is a constant false and the state passes through.
func loopBody(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	b.Input("iter", graph.DtypeInt64, nil)
	cond := b.Input("cond", graph.DtypeBool, nil)
	s := b.Input("s", graph.DtypeFloat32, nil)
	condOut := b.Output("cond_out", graph.DtypeBool, nil)
	sOut := b.Output("s_out", graph.DtypeFloat32, nil)
	_ = cond
	stop, err := graph.NewIntTensor(graph.DtypeBool, nil, []int64{0})
	require.NoError(t, err)
	b.Constant("stop", condOut, stop, false)
	b.Node(graph.OpIdentity, "keep", []graph.ValueID{s}, []graph.ValueID{sOut}, graph.Attrs{})
	return b.Build()
}

func TestLoopTerminalConditionOnly(t *testing.T) {
	b := graph.NewBuilder()
	tc := b.Input("tc", graph.DtypeBool, nil)
	s := b.Input("s", graph.DtypeFloat32, nil)
	out := b.Output("s_final", graph.DtypeFloat32, nil)
	b.Loop("loop", []graph.ValueID{graph.NoValueID, tc, s}, []graph.ValueID{out}, loopBody(t), graph.Attrs{})
	prog := emitMust(t, b.Build(), emit.Options{})

	want := `   0: In $1 "tc"  ; tc
   1: In $2 "s"  ; s
   2: IntScalarConstant $4 0 5 0  ; Loop(loop) @init-iter
   3: IntScalarConstant $5 1 1 0  ; Loop(loop) @init-cond
   4: Identity $6 $2  ; Loop(loop) @init-state
   5: JmpFalse $1 21  ; Loop(loop) @guard
   6: IntScalarConstant $7 0 1 0  ; Constant(stop)
   7: Identity $8 $6  ; Identity(keep)
   8: IntScalarConstant $9 1 5 0  ; Loop(loop) @inc
   9: Add $10 $4 $9  ; Loop(loop) @inc
  10: Free $9  ; Loop(loop) @inc
  11: Free $4  ; Loop(loop) @free-body-in
  12: Free $5  ; Loop(loop) @free-body-in
  13: Free $6  ; Loop(loop) @free-body-in
  14: Identity $4 $10  ; Loop(loop) @move-iter
  15: Free $10  ; Loop(loop) @move-iter
  16: Identity $5 $7  ; Loop(loop) @move-cond
  17: Free $7  ; Loop(loop) @move-cond
  18: Identity $6 $8  ; Loop(loop) @move-state
  19: Free $8  ; Loop(loop) @move-state
  20: JmpTrue $5 6  ; Loop(loop) @jmp
  21: Identity $3 $6  ; Loop(loop) @out-state
  22: Free $6  ; Loop(loop) @out-state
  23: Free $4  ; Loop(loop) @free-iter
  24: Free $5  ; Loop(loop) @free-cond
  25: Free $1  ; Loop(loop)
  26: Free $2  ; Loop(loop)
  27: Out "s_final" $3  ; s_final
  28: Free $3  ; s_final
`
	assert.Equal(t, want, prog.Format())
}

func TestLoopTripCountOnly(t *testing.T) {
	b := graph.NewBuilder()
	max := b.Input("max", graph.DtypeInt64, nil)
	s := b.Input("s", graph.DtypeFloat32, nil)
	out := b.Output("s_final", graph.DtypeFloat32, nil)
	b.Loop("loop", []graph.ValueID{max, graph.NoValueID, s}, []graph.ValueID{out}, loopBody(t), graph.Attrs{})
	prog := emitMust(t, b.Build(), emit.Options{})

	ops := opcodes(prog)
	assert.NotContains(t, ops, program.OpJmpFalse, "no guard without a terminal condition")

	jmp := indexOf(t, prog, program.OpJmpTrue)
	// The continuation condition is recomputed as max > iter: the Greater
	// writes the condition slot right before the back jump, and the stale
	// condition is freed right before that.
	greater := prog.Instructions[jmp-1]
	require.Equal(t, program.OpGreater, greater.Op)
	condID := prog.Instructions[jmp].Args[0].Num
	assert.Equal(t, condID, greater.Args[0].Num)
	assert.Equal(t, int64(1), greater.Args[1].Num, "max trip count id")
	freeCond := prog.Instructions[jmp-2]
	require.Equal(t, program.OpFree, freeCond.Op)
	assert.Equal(t, condID, freeCond.Args[0].Num)
}

func TestLoopBothConditions(t *testing.T) {
	b := graph.NewBuilder()
	max := b.Input("max", graph.DtypeInt64, nil)
	tc := b.Input("tc", graph.DtypeBool, nil)
	s := b.Input("s", graph.DtypeFloat32, nil)
	out := b.Output("s_final", graph.DtypeFloat32, nil)
	b.Loop("loop", []graph.ValueID{max, tc, s}, []graph.ValueID{out}, loopBody(t), graph.Attrs{})
	prog := emitMust(t, b.Build(), emit.Options{})

	// Bool conjunction is a Mul over 0/1 values.
	mul := indexOf(t, prog, program.OpMul)
	jmp := indexOf(t, prog, program.OpJmpTrue)
	greater := indexOf(t, prog, program.OpGreater)
	assert.Less(t, greater, mul)
	assert.Less(t, mul, jmp)

	// The guard jump lands right after the back jump.
	guard := indexOf(t, prog, program.OpJmpFalse)
	assert.Equal(t, int64(jmp+1), prog.Instructions[guard].Args[1].Num)
}

func TestLoopScanOutputs(t *testing.T) {
	// Body emits one scan value per iteration alongside the state.
	bb := graph.NewBuilder()
	bb.Input("iter", graph.DtypeInt64, nil)
	bb.Input("cond", graph.DtypeBool, nil)
	s := bb.Input("s", graph.DtypeFloat32, nil)
	condOut := bb.Output("cond_out", graph.DtypeBool, nil)
	sOut := bb.Output("s_out", graph.DtypeFloat32, nil)
	scanOut := bb.Output("scan_out", graph.DtypeFloat32, nil)
	stop, err := graph.NewIntTensor(graph.DtypeBool, nil, []int64{0})
	require.NoError(t, err)
	bb.Constant("stop", condOut, stop, false)
	bb.Node(graph.OpIdentity, "keep", []graph.ValueID{s}, []graph.ValueID{sOut}, graph.Attrs{})
	bb.Node(graph.OpExp, "scan", []graph.ValueID{s}, []graph.ValueID{scanOut}, graph.Attrs{})
	body := bb.Build()

	b := graph.NewBuilder()
	tc := b.Input("tc", graph.DtypeBool, nil)
	st := b.Input("st", graph.DtypeFloat32, nil)
	sFinal := b.Output("s_final", graph.DtypeFloat32, nil)
	stacked := b.Output("stacked", graph.DtypeFloat32, nil)
	b.Loop("loop", []graph.ValueID{graph.NoValueID, tc, st}, []graph.ValueID{sFinal, stacked},
		body, graph.Attrs{StackAxis: 1})
	prog := emitMust(t, b.Build(), emit.Options{})

	create := indexOf(t, prog, program.OpSequenceCreate)
	guard := indexOf(t, prog, program.OpJmpFalse)
	app := indexOf(t, prog, program.OpSequenceAppend)
	jmp := indexOf(t, prog, program.OpJmpTrue)
	stack := indexOf(t, prog, program.OpSequenceStack)

	// Sequence exists before the loop, appends inside it, stacks after it.
	assert.Less(t, create, guard)
	assert.Greater(t, app, guard)
	assert.Less(t, app, jmp)
	assert.Greater(t, stack, jmp)

	seqID := prog.Instructions[create].Args[0].Num
	stackInst := prog.Instructions[stack]
	assert.Equal(t, seqID, stackInst.Args[1].Num)
	assert.Equal(t, int64(1), stackInst.Args[2].Num, "stack axis")

	// The scan sequence dies right after stacking.
	next := prog.Instructions[stack+1]
	require.Equal(t, program.OpFree, next.Op)
	assert.Equal(t, seqID, next.Args[0].Num)
}

func TestNestedLoop(t *testing.T) {
	inner := loopBody(t)

	// Outer body wraps the inner loop as its state update.
	ob := graph.NewBuilder()
	ob.Input("iter", graph.DtypeInt64, nil)
	ob.Input("cond", graph.DtypeBool, nil)
	s := ob.Input("s", graph.DtypeFloat32, nil)
	condOut := ob.Output("cond_out", graph.DtypeBool, nil)
	sOut := ob.Output("s_out", graph.DtypeFloat32, nil)
	tcInner := ob.Temp("tc_inner", graph.DtypeBool, nil)
	tcv, err := graph.NewIntTensor(graph.DtypeBool, nil, []int64{1})
	require.NoError(t, err)
	ob.Constant("go", tcInner, tcv, false)
	stop, err := graph.NewIntTensor(graph.DtypeBool, nil, []int64{0})
	require.NoError(t, err)
	ob.Constant("stop", condOut, stop, false)
	ob.Loop("inner", []graph.ValueID{graph.NoValueID, tcInner, s}, []graph.ValueID{sOut}, inner, graph.Attrs{})
	outerBody := ob.Build()

	b := graph.NewBuilder()
	tc := b.Input("tc", graph.DtypeBool, nil)
	st := b.Input("st", graph.DtypeFloat32, nil)
	out := b.Output("out", graph.DtypeFloat32, nil)
	b.Loop("outer", []graph.ValueID{graph.NoValueID, tc, st}, []graph.ValueID{out}, outerBody, graph.Attrs{})
	prog := emitMust(t, b.Build(), emit.Options{})

	// Two guards, two back jumps, each back jump targeting its own begin.
	var guards, jmps []int
	for i := range prog.Instructions {
		switch prog.Instructions[i].Op {
		case program.OpJmpFalse:
			guards = append(guards, i)
		case program.OpJmpTrue:
			jmps = append(jmps, i)
		}
	}
	require.Len(t, guards, 2)
	require.Len(t, jmps, 2)
	for _, j := range jmps {
		target := prog.Instructions[j].Args[1].Num
		assert.LessOrEqual(t, target, int64(j), "back jump %d", j)
	}
}

func TestLoopWithoutExitFails(t *testing.T) {
	b := graph.NewBuilder()
	s := b.Input("s", graph.DtypeFloat32, nil)
	out := b.Output("out", graph.DtypeFloat32, nil)
	b.Loop("loop", []graph.ValueID{graph.NoValueID, graph.NoValueID, s}, []graph.ValueID{out}, loopBody(t), graph.Attrs{})
	_, err := emit.Emit(b.Build(), emit.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "infinite loop")
}

func TestLoopArityMismatchFails(t *testing.T) {
	// Body expects one state, outer passes two.
	b := graph.NewBuilder()
	tc := b.Input("tc", graph.DtypeBool, nil)
	s1 := b.Input("s1", graph.DtypeFloat32, nil)
	s2 := b.Input("s2", graph.DtypeFloat32, nil)
	o1 := b.Output("o1", graph.DtypeFloat32, nil)
	o2 := b.Output("o2", graph.DtypeFloat32, nil)
	b.Loop("loop", []graph.ValueID{graph.NoValueID, tc, s1, s2}, []graph.ValueID{o1, o2}, loopBody(t), graph.Attrs{})
	_, err := emit.Emit(b.Build(), emit.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body wants")
}

func indexOf(t *testing.T, prog *program.Program, op program.Opcode) int {
	t.Helper()
	for i := range prog.Instructions {
		if prog.Instructions[i].Op == op {
			return i
		}
	}
	t.Fatalf("no %s instruction", op)
	return -1
}
