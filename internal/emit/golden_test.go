package emit_test

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"tensorvm/internal/emit"
	"tensorvm/internal/graph"
)

// Golden disassemblies pin the exact instruction stream: any change to id
// assignment, scheduling, freeing, or loop scaffolding shows up as a diff.

func TestGoldenSingleRelu(t *testing.T) {
	prog := emitMust(t, reluGraph(), emit.Options{})
	g := goldie.New(t)
	g.Assert(t, "single_relu", []byte(prog.Format()))
}

func TestGoldenLoopTerminal(t *testing.T) {
	b := graph.NewBuilder()
	tc := b.Input("tc", graph.DtypeBool, nil)
	s := b.Input("s", graph.DtypeFloat32, nil)
	out := b.Output("s_final", graph.DtypeFloat32, nil)
	b.Loop("loop", []graph.ValueID{graph.NoValueID, tc, s}, []graph.ValueID{out}, loopBody(t), graph.Attrs{})
	prog := emitMust(t, b.Build(), emit.Options{})
	g := goldie.New(t)
	g.Assert(t, "loop_terminal", []byte(prog.Format()))
}

func TestGoldenMLP(t *testing.T) {
	// A small two-layer perceptron exercising constants, Gemm, activations,
	// and last-use freeing together.
	b := graph.NewBuilder()
	x := b.Input("x", graph.DtypeFloat32, []int64{1, 4})
	w1 := b.Input("w1", graph.DtypeFloat32, []int64{4, 8})
	w2 := b.Input("w2", graph.DtypeFloat32, []int64{8, 2})
	b1 := b.Temp("b1", graph.DtypeFloat32, []int64{8})
	h := b.Temp("h", graph.DtypeFloat32, []int64{1, 8})
	a := b.Temp("a", graph.DtypeFloat32, []int64{1, 8})
	logits := b.Temp("logits", graph.DtypeFloat32, []int64{1, 2})
	y := b.Output("y", graph.DtypeFloat32, []int64{1, 2})

	bias, err := graph.NewFloatTensor(graph.DtypeFloat32, []int64{8}, make([]float64, 8))
	require.NoError(t, err)
	b.Constant("bias1", b1, bias, false)
	b.Node(graph.OpGemm, "fc1", []graph.ValueID{x, w1, b1}, []graph.ValueID{h},
		graph.Attrs{Alpha: 1, Beta: 1})
	b.Node(graph.OpRelu, "act", []graph.ValueID{h}, []graph.ValueID{a}, graph.Attrs{})
	b.Node(graph.OpMatMul, "fc2", []graph.ValueID{a, w2}, []graph.ValueID{logits}, graph.Attrs{})
	b.Node(graph.OpSoftmax, "prob", []graph.ValueID{logits}, []graph.ValueID{y}, graph.Attrs{Axis: 1})
	prog := emitMust(t, b.Build(), emit.Options{})
	g := goldie.New(t)
	g.Assert(t, "mlp", []byte(prog.Format()))
}
