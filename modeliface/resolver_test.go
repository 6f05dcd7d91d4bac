package modeliface

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/bioimg-go/bioimg-runtime/rdf"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func decl(tensorId rdf.TensorId, axisId rdf.AxisId, size rdf.AnyAxisSize) AxisSizeDecl {
	return AxisSizeDecl{Axis: rdf.Qualify(tensorId, axisId), Size: size}
}

func TestSolveAxisSizes(t *testing.T) {
	t.Run("BaseCases", func(t *testing.T) {
		sizes, err := SolveAxisSizes([]AxisSizeDecl{
			decl("input0", "c", rdf.Fixed(3)),
			decl("input0", "x", rdf.Parameterized(16, 8)),
		})
		require.NoError(t, err)
		require.Equal(t, map[rdf.QualifiedAxisId]rdf.ResolvedAxisSize{
			rdf.Qualify("input0", "c"): rdf.ResolvedFixed(3),
			rdf.Qualify("input0", "x"): rdf.ResolvedParameterized(16, 8),
		}, sizes)
	})

	t.Run("Empty", func(t *testing.T) {
		sizes, err := SolveAxisSizes(nil)
		require.NoError(t, err)
		require.Empty(t, sizes)
	})

	t.Run("ReferenceToParameterized", func(t *testing.T) {
		sizes, err := SolveAxisSizes([]AxisSizeDecl{
			decl("input0", "x", rdf.Parameterized(10, 2)),
			decl("output0", "x", rdf.Reference("input0", "x", 4)),
		})
		require.NoError(t, err)
		require.Equal(t, rdf.ResolvedParameterized(10, 2), sizes[rdf.Qualify("input0", "x")])
		require.Equal(t, rdf.ResolvedParameterized(14, 2), sizes[rdf.Qualify("output0", "x")])
	})

	t.Run("ReferenceToFixed", func(t *testing.T) {
		sizes, err := SolveAxisSizes([]AxisSizeDecl{
			decl("output0", "c", rdf.Reference("input0", "c", 0)),
			decl("input0", "c", rdf.Fixed(3)),
		})
		require.NoError(t, err)
		require.Equal(t, rdf.ResolvedFixed(3), sizes[rdf.Qualify("output0", "c")])
	})

	t.Run("ForwardReferenceWithinTensor", func(t *testing.T) {
		sizes, err := SolveAxisSizes([]AxisSizeDecl{
			decl("input0", "y", rdf.Reference("input0", "x", 0)),
			decl("input0", "x", rdf.Parameterized(32, 16)),
		})
		require.NoError(t, err)
		require.Equal(t, rdf.ResolvedParameterized(32, 16), sizes[rdf.Qualify("input0", "y")])
	})
}

func TestReferenceChains(t *testing.T) {
	for _, root := range []rdf.AnyAxisSize{rdf.Fixed(5), rdf.Parameterized(7, 3)} {
		for _, length := range []int{1, 2, 5, 20} {
			t.Run(fmt.Sprintf("%s_%d", root.Kind, length), func(t *testing.T) {
				decls := []AxisSizeDecl{decl("t0", "a", root)}
				totalOffset := 0
				for ii := 1; ii <= length; ii++ {
					offset := ii % 3
					totalOffset += offset
					decls = append(decls, decl(rdf.TensorId(fmt.Sprintf("t%d", ii)), "a",
						rdf.Reference(rdf.TensorId(fmt.Sprintf("t%d", ii-1)), "a", offset)))
				}
				// Reverse, so chains are found from their far end.
				for i, j := 0, len(decls)-1; i < j; i, j = i+1, j-1 {
					decls[i], decls[j] = decls[j], decls[i]
				}
				resolver := NewAxisSizeResolver(decls)
				sizes, err := resolver.Solve()
				require.NoError(t, err)
				require.Len(t, sizes, length+1)

				last := rdf.Qualify(rdf.TensorId(fmt.Sprintf("t%d", length)), "a")
				got := sizes[last]
				require.Equal(t, root.Kind, got.Kind)
				if root.Kind == rdf.FixedSize {
					require.Equal(t, root.Fixed+totalOffset, got.Fixed)
				} else {
					require.Equal(t, root.Parameterized.Min+totalOffset, got.Parameterized.Min)
					require.Equal(t, root.Parameterized.Step, got.Parameterized.Step)
				}

				provenance, found := resolver.Provenance(last)
				require.True(t, found)
				require.Equal(t, rdf.Qualify("t0", "a"), provenance.Root)
				require.Equal(t, length, provenance.Hops)
				require.Equal(t, totalOffset, provenance.Offset)

				rootProvenance, _ := resolver.Provenance(rdf.Qualify("t0", "a"))
				require.False(t, rootProvenance.IsReference())
			})
		}
	}
}

func TestCyclicReferences(t *testing.T) {
	a, b, c := rdf.Qualify("t", "a"), rdf.Qualify("t", "b"), rdf.Qualify("u", "c")
	ref := func(q rdf.QualifiedAxisId) rdf.AnyAxisSize { return rdf.Reference(q.TensorId, q.AxisId, 1) }
	tests := []struct {
		name  string
		decls []AxisSizeDecl
		cycle []rdf.QualifiedAxisId
	}{
		{"Length1", []AxisSizeDecl{{a, ref(a)}}, []rdf.QualifiedAxisId{a}},
		{"Length2", []AxisSizeDecl{{a, ref(b)}, {b, ref(a)}}, []rdf.QualifiedAxisId{a, b}},
		{"Length3", []AxisSizeDecl{{a, ref(b)}, {b, ref(c)}, {c, ref(a)}}, []rdf.QualifiedAxisId{a, b, c}},
		{
			"TailIntoCycle",
			[]AxisSizeDecl{{rdf.Qualify("v", "tail"), ref(a)}, {a, ref(b)}, {b, ref(a)}},
			[]rdf.QualifiedAxisId{a, b},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SolveAxisSizes(tt.decls)
			require.Error(t, err)
			var cyclic *CyclicReferenceError
			require.True(t, errors.As(err, &cyclic), "expected CyclicReferenceError, got %v", err)
			require.Equal(t, tt.cycle, cyclic.Cycle)

			var resErr AxisSizeResolutionError
			require.True(t, errors.As(err, &resErr))
		})
	}

	_, err := SolveAxisSizes([]AxisSizeDecl{{a, ref(b)}, {b, ref(c)}, {c, ref(a)}})
	require.Equal(t, "cyclic axis size reference: t.a -> t.b -> u.c -> t.a", err.Error())
}

func TestDanglingReferences(t *testing.T) {
	t.Run("UnknownAxis", func(t *testing.T) {
		_, err := SolveAxisSizes([]AxisSizeDecl{
			decl("input0", "x", rdf.Fixed(4)),
			decl("output0", "x", rdf.Reference("input0", "z", 0)),
		})
		var dangling *DanglingReferenceError
		require.True(t, errors.As(err, &dangling))
		require.Equal(t, rdf.Qualify("output0", "x"), dangling.Referrer)
		require.Equal(t, rdf.Qualify("input0", "z"), dangling.MissingTarget)
		require.Contains(t, err.Error(), "output0.x")
		require.Contains(t, err.Error(), "input0.z")
	})

	t.Run("AtEndOfChain", func(t *testing.T) {
		_, err := SolveAxisSizes([]AxisSizeDecl{
			decl("a", "x", rdf.Reference("b", "x", 0)),
			decl("b", "x", rdf.Reference("c", "x", 0)),
		})
		var dangling *DanglingReferenceError
		require.True(t, errors.As(err, &dangling))
		require.Equal(t, rdf.Qualify("b", "x"), dangling.Referrer)
		require.Equal(t, rdf.Qualify("c", "x"), dangling.MissingTarget)
	})
}

func TestFirstErrorInDeclarationOrder(t *testing.T) {
	dangling := decl("a", "x", rdf.Reference("missing", "x", 0))
	cycle := decl("b", "x", rdf.Reference("b", "x", 0))

	_, err := SolveAxisSizes([]AxisSizeDecl{dangling, cycle})
	require.IsType(t, &DanglingReferenceError{}, err)

	_, err = SolveAxisSizes([]AxisSizeDecl{cycle, dangling})
	require.IsType(t, &CyclicReferenceError{}, err)

	// Repeated calls give the same answer.
	resolver := NewAxisSizeResolver([]AxisSizeDecl{cycle, dangling})
	_, err1 := resolver.Solve()
	_, err2 := resolver.Solve()
	require.Equal(t, err1, err2)
	_, found := resolver.Provenance(cycle.Axis)
	require.False(t, found)
}

func TestInvalidDeclarations(t *testing.T) {
	_, err := SolveAxisSizes([]AxisSizeDecl{
		decl("a", "x", rdf.Fixed(3)),
		decl("a", "x", rdf.Fixed(4)),
	})
	var duplicate *DuplicateAxisError
	require.True(t, errors.As(err, &duplicate))
	require.Equal(t, rdf.Qualify("a", "x"), duplicate.Axis)

	for _, size := range []rdf.AnyAxisSize{rdf.Fixed(0), rdf.Parameterized(0, 1), rdf.Parameterized(4, 0),
		rdf.Reference("a", "y", -1), {}} {
		_, err = SolveAxisSizes([]AxisSizeDecl{decl("a", "x", size)})
		var invalid *InvalidAxisSizeError
		require.Truef(t, errors.As(err, &invalid), "size %s should be invalid", size)
		var resErr AxisSizeResolutionError
		require.True(t, errors.As(err, &resErr))
	}
}

func TestResolutionIsOrderIndependent(t *testing.T) {
	decls := []AxisSizeDecl{
		decl("raw", "c", rdf.Fixed(2)),
		decl("raw", "y", rdf.Parameterized(64, 16)),
		decl("raw", "x", rdf.Reference("raw", "y", 0)),
		decl("mask", "c", rdf.Reference("raw", "c", 1)),
		decl("mask", "y", rdf.Reference("raw", "y", 8)),
		decl("mask", "x", rdf.Reference("mask", "y", 0)),
		decl("aux", "x", rdf.Reference("mask", "x", 2)),
	}
	want, err := SolveAxisSizes(decls)
	require.NoError(t, err)
	require.Equal(t, rdf.ResolvedParameterized(74, 16), want[rdf.Qualify("aux", "x")])
	require.Equal(t, rdf.ResolvedFixed(3), want[rdf.Qualify("mask", "c")])

	rng := rand.New(rand.NewSource(42))
	for range 20 {
		shuffled := append([]AxisSizeDecl(nil), decls...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, err := SolveAxisSizes(shuffled)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("resolution depends on declaration order (-want +got):\n%s", diff)
		}
	}
}

func TestLongChainDoesNotRecurse(t *testing.T) {
	const length = 100_000
	decls := make([]AxisSizeDecl, 0, length+1)
	for ii := length; ii > 0; ii-- {
		decls = append(decls, decl(rdf.TensorId(fmt.Sprintf("t%d", ii)), "x",
			rdf.Reference(rdf.TensorId(fmt.Sprintf("t%d", ii-1)), "x", 1)))
	}
	decls = append(decls, decl("t0", "x", rdf.Parameterized(1, 2)))
	sizes, err := SolveAxisSizes(decls)
	require.NoError(t, err)
	require.Equal(t, rdf.ResolvedParameterized(length+1, 2), sizes[rdf.Qualify(rdf.TensorId(fmt.Sprintf("t%d", length)), "x")])
}

func TestMustSolveAxisSizes(t *testing.T) {
	require.NotPanics(t, func() { MustSolveAxisSizes([]AxisSizeDecl{decl("a", "x", rdf.Fixed(1))}) })
	require.Panics(t, func() { MustSolveAxisSizes([]AxisSizeDecl{decl("a", "x", rdf.Reference("a", "x", 0))}) })
}
