package emit

import (
	"tensorvm/internal/graph"
	"tensorvm/internal/program"
)

// emitLoop flattens a Loop node into linear instructions.
//
// The body graph's inputs are (iter, cond, state...) and its outputs are
// (cond', state'..., scan...). The outer node's inputs are (max_trip_count,
// terminal_condition, state...) with the first two optionally absent, and
// its outputs are (state_final..., scan_stacked...).
//
// Each emitted instruction carries the outer node's debug string plus a
// stable phase tag so a misbehaving loop can be traced back to the lowering
// step that produced the instruction.
func (e *Emitter) emitLoop(g *graph.Graph, loop *graph.Node, prog *program.Program) {
	body := loop.Body
	if body == nil {
		bailf("Loop %s has no body", loop)
	}
	if len(loop.Inputs) < 2 {
		bailf("Loop %s wants at least 2 inputs, has %d", loop, len(loop.Inputs))
	}
	numStates := len(loop.Inputs) - 2
	numScans := len(body.Outputs()) - 1 - numStates
	if len(body.Inputs()) != numStates+2 {
		bailf("Loop %s: body wants %d inputs, has %d", loop, numStates+2, len(body.Inputs()))
	}
	if numScans < 0 {
		bailf("Loop %s: body wants at least %d outputs, has %d", loop, numStates+1, len(body.Outputs()))
	}
	if len(loop.Outputs) != numStates+numScans {
		bailf("Loop %s wants %d outputs, has %d", loop, numStates+numScans, len(loop.Outputs))
	}
	maxTrip := loop.Inputs[0]
	terminal := loop.Inputs[1]
	if !maxTrip.IsValid() && !terminal.IsValid() {
		bailf("Loop %s has neither trip count nor terminal condition: infinite loop", loop)
	}

	dbg := func(tag string) string { return loop.String() + " @" + tag }
	free := func(tag string, id int64) {
		e.emit(prog, program.OpFree, dbg(tag), program.Val(id))
	}
	// move transfers ownership of a slot: Identity then Free of the source.
	move := func(tag string, dst, src int64) {
		e.emit(prog, program.OpIdentity, dbg(tag), program.Val(dst), program.Val(src))
		free(tag, src)
	}

	e.assignValueIds(body)

	// Initialize loop variables.
	iterID := e.valueID(body, body.Inputs()[0])
	e.emit(prog, program.OpIntScalarConstant, dbg("init-iter"),
		program.Val(iterID), program.Int(0), program.Int(int64(graph.DtypeInt64)), boolInt(false))
	condID := e.valueID(body, body.Inputs()[1])
	e.emit(prog, program.OpIntScalarConstant, dbg("init-cond"),
		program.Val(condID), program.Int(1), program.Int(int64(graph.DtypeBool)), boolInt(false))
	for i := 0; i < numStates; i++ {
		loopIn := e.valueID(g, loop.Inputs[i+2])
		bodyIn := e.valueID(body, body.Inputs()[i+2])
		e.emit(prog, program.OpIdentity, dbg("init-state"), program.Val(bodyIn), program.Val(loopIn))
	}

	// Prepare temporary sequences for scan outputs.
	scanIDs := make([]int64, numScans)
	for i := range scanIDs {
		scanIDs[i] = e.mintID()
		e.emit(prog, program.OpSequenceCreate, dbg("scan-create"), program.Val(scanIDs[i]))
	}

	// When a terminal condition exists the loop may run zero times; the
	// guard target is backpatched once the loop end is known.
	skipJmp := -1
	if terminal.IsValid() {
		skipJmp = e.emit(prog, program.OpJmpFalse, dbg("guard"),
			program.Val(e.valueID(g, terminal)), program.Int(-1))
	}

	loopBegin := prog.Len()

	e.emitGraph(body, prog, true)

	// Advance the iteration counter.
	oneID := e.mintID()
	e.emit(prog, program.OpIntScalarConstant, dbg("inc"),
		program.Val(oneID), program.Int(1), program.Int(int64(graph.DtypeInt64)), boolInt(false))
	tmpID := e.mintID()
	e.emit(prog, program.OpAdd, dbg("inc"), program.Val(tmpID), program.Val(iterID), program.Val(oneID))
	free("inc", oneID)
	for _, in := range body.Inputs() {
		free("free-body-in", e.valueID(body, in))
	}
	move("move-iter", iterID, tmpID)
	move("move-cond", condID, e.valueID(body, body.Outputs()[0]))

	// Propagate the loop state: the next iteration reads from the body
	// input slots.
	for i := 0; i < numStates; i++ {
		bodyIn := e.valueID(body, body.Inputs()[i+2])
		bodyOut := e.valueID(body, body.Outputs()[i+1])
		move("move-state", bodyIn, bodyOut)
	}

	// Push scan outputs.
	for i := 0; i < numScans; i++ {
		bodyOut := e.valueID(body, body.Outputs()[i+numStates+1])
		e.emit(prog, program.OpSequenceAppend, dbg("scan-append"), program.Val(scanIDs[i]), program.Val(bodyOut))
		free("scan-append", bodyOut)
	}

	// Compute the continuation condition.
	if !terminal.IsValid() {
		free("cond-trip", condID)
		e.emit(prog, program.OpGreater, dbg("cond-trip"),
			program.Val(condID), program.Val(e.valueID(g, maxTrip)), program.Val(iterID))
	} else if maxTrip.IsValid() {
		e.emit(prog, program.OpGreater, dbg("cond-trip"),
			program.Val(tmpID), program.Val(e.valueID(g, maxTrip)), program.Val(iterID))
		// The VM stores bools as 0/1 integers, so conjunction is a Mul.
		tmp2ID := e.mintID()
		e.emit(prog, program.OpMul, dbg("cond-and"), program.Val(tmp2ID), program.Val(condID), program.Val(tmpID))
		free("cond-and", condID)
		move("cond-and", condID, tmp2ID)
		free("cond-and", tmpID)
	}
	e.emit(prog, program.OpJmpTrue, dbg("jmp"), program.Val(condID), program.Int(int64(loopBegin)))

	if skipJmp >= 0 {
		prog.Instructions[skipJmp].Args[1] = program.Int(int64(prog.Len()))
	}

	// Output final states.
	for i := 0; i < numStates; i++ {
		bodyIn := e.valueID(body, body.Inputs()[i+2])
		loopOut := e.valueID(g, loop.Outputs[i])
		move("out-state", loopOut, bodyIn)
	}

	// Stack and output scan outputs.
	for i := 0; i < numScans; i++ {
		loopOut := e.valueID(g, loop.Outputs[i+numStates])
		e.emit(prog, program.OpSequenceStack, dbg("out-scan"),
			program.Val(loopOut), program.Val(scanIDs[i]), program.Int(loop.Attrs.StackAxis))
		free("out-scan", scanIDs[i])
	}

	free("free-iter", iterID)
	free("free-cond", condID)
}
