package modeliface

import (
	"maps"
	"slices"

	"github.com/bioimg-go/bioimg-runtime/rdf"
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// AxisSizeDecl is the declared size of one axis.
type AxisSizeDecl struct {
	Axis rdf.QualifiedAxisId
	Size rdf.AnyAxisSize
}

// SizeProvenance tells where the resolved size of an axis comes from.
type SizeProvenance struct {
	// Root is the axis at the end of the reference chain, the one with a fixed or parameterized declared size.
	// It is the axis itself if its size was not a reference.
	Root rdf.QualifiedAxisId

	// Hops is the number of references followed to reach Root.
	Hops int

	// Offset is the sum of the offsets of the references followed.
	Offset int
}

// IsReference returns whether the size was obtained by following references.
func (p SizeProvenance) IsReference() bool { return p.Hops > 0 }

// visitState is the white/gray/black coloring of the axes during resolution.
type visitState int8

const (
	unvisited visitState = iota
	inProgress
	done
)

// AxisSizeResolver resolves declared axis sizes (possibly referencing other axes) into fixed or parameterized sizes.
//
// Each axis references at most one other axis, so the reference graph is walked as chains: a reference is resolved
// by following its chain until an axis with a resolved size is found, and then every axis of the chain is resolved on
// the way back. Axes still "in progress" when reached again form a cycle.
//
// Resolution is a pure function of the declarations. A resolver is not safe for concurrent use, but independent
// resolvers are.
type AxisSizeResolver struct {
	decls []AxisSizeDecl

	declared   map[rdf.QualifiedAxisId]rdf.AnyAxisSize
	state      map[rdf.QualifiedAxisId]visitState
	resolved   map[rdf.QualifiedAxisId]rdf.ResolvedAxisSize
	provenance map[rdf.QualifiedAxisId]SizeProvenance

	// Whether Solve has been run, and its error.
	solved   bool
	solveErr error
}

// NewAxisSizeResolver creates a resolver for the given declarations. Order matters only for error reporting:
// the first problem found, in declaration order, is the one reported.
func NewAxisSizeResolver(decls []AxisSizeDecl) *AxisSizeResolver {
	return &AxisSizeResolver{
		decls:      slices.Clone(decls),
		declared:   make(map[rdf.QualifiedAxisId]rdf.AnyAxisSize, len(decls)),
		state:      make(map[rdf.QualifiedAxisId]visitState, len(decls)),
		resolved:   make(map[rdf.QualifiedAxisId]rdf.ResolvedAxisSize, len(decls)),
		provenance: make(map[rdf.QualifiedAxisId]SizeProvenance, len(decls)),
	}
}

// SolveAxisSizes resolves every declared axis size. See AxisSizeResolver.
func SolveAxisSizes(decls []AxisSizeDecl) (map[rdf.QualifiedAxisId]rdf.ResolvedAxisSize, error) {
	return NewAxisSizeResolver(decls).Solve()
}

// MustSolveAxisSizes is like SolveAxisSizes, but panics (throws an exception) on error.
func MustSolveAxisSizes(decls []AxisSizeDecl) map[rdf.QualifiedAxisId]rdf.ResolvedAxisSize {
	sizes, err := SolveAxisSizes(decls)
	if err != nil {
		exceptions.Panicf("MustSolveAxisSizes: %v", err)
	}
	return sizes
}

// Solve returns the resolved size of every declared axis, or the first AxisSizeResolutionError found.
//
// The returned map covers exactly the declared axes and is owned by the caller.
func (r *AxisSizeResolver) Solve() (map[rdf.QualifiedAxisId]rdf.ResolvedAxisSize, error) {
	if !r.solved {
		r.solveErr = r.solve()
		r.solved = true
	}
	if r.solveErr != nil {
		return nil, r.solveErr
	}
	return maps.Clone(r.resolved), nil
}

// Provenance returns where the resolved size of the axis came from. It is only available after a successful Solve.
func (r *AxisSizeResolver) Provenance(axis rdf.QualifiedAxisId) (SizeProvenance, bool) {
	if !r.solved || r.solveErr != nil {
		return SizeProvenance{}, false
	}
	p, found := r.provenance[axis]
	return p, found
}

func (r *AxisSizeResolver) solve() error {
	for _, decl := range r.decls {
		if _, found := r.declared[decl.Axis]; found {
			return &DuplicateAxisError{Axis: decl.Axis}
		}
		if err := decl.Size.Validate(); err != nil {
			return &InvalidAxisSizeError{Axis: decl.Axis, Reason: err}
		}
		r.declared[decl.Axis] = decl.Size
	}
	for _, decl := range r.decls {
		if err := r.resolveChain(decl.Axis); err != nil {
			return err
		}
	}
	klog.V(1).Infof("resolved %d axis sizes", len(r.resolved))
	return nil
}

// resolveChain follows the references starting at axis until reaching an already resolved axis or one with a
// fixed/parameterized size, and then resolves the axes of the chain in reverse order.
func (r *AxisSizeResolver) resolveChain(axis rdf.QualifiedAxisId) error {
	var (
		chain      []rdf.QualifiedAxisId
		base       rdf.ResolvedAxisSize
		provenance SizeProvenance
	)
	current := axis
	for {
		switch r.state[current] {
		case done:
			base, provenance = r.resolved[current], r.provenance[current]
		case inProgress:
			start := slices.Index(chain, current)
			return &CyclicReferenceError{Cycle: slices.Clone(chain[start:])}
		default:
			size, found := r.declared[current]
			if !found {
				return &DanglingReferenceError{Referrer: chain[len(chain)-1], MissingTarget: current}
			}
			if resolved, ok := size.Resolved(); ok {
				base, provenance = resolved, SizeProvenance{Root: current}
				r.setResolved(current, base, provenance)
				break
			}
			r.state[current] = inProgress
			chain = append(chain, current)
			current = size.Reference.QualifiedAxisId
			continue
		}
		break
	}

	for ii := len(chain) - 1; ii >= 0; ii-- {
		id := chain[ii]
		offset := r.declared[id].Reference.Offset
		base = base.WithOffset(offset)
		provenance = SizeProvenance{Root: provenance.Root, Hops: provenance.Hops + 1, Offset: provenance.Offset + offset}
		r.setResolved(id, base, provenance)
	}
	return nil
}

func (r *AxisSizeResolver) setResolved(axis rdf.QualifiedAxisId, size rdf.ResolvedAxisSize, provenance SizeProvenance) {
	r.resolved[axis] = size
	r.provenance[axis] = provenance
	r.state[axis] = done
	if klog.V(2).Enabled() {
		if provenance.IsReference() {
			klog.Infof("axis %s resolved to %s via %s (%d hops)", axis, size, provenance.Root, provenance.Hops)
		} else {
			klog.Infof("axis %s resolved to %s", axis, size)
		}
	}
}

// CollectAxisSizes returns the declared size of every sized axis of the given tensors, inputs first, in order.
// Batch axes, which have no size, are skipped.
func CollectAxisSizes(inputs []rdf.InputTensorDescr, outputs []rdf.OutputTensorDescr) []AxisSizeDecl {
	var decls []AxisSizeDecl
	collect := func(descr *rdf.TensorDescr) {
		for _, axis := range descr.Axes {
			size, hasSize := axis.SizeOf()
			if !hasSize {
				continue
			}
			decls = append(decls, AxisSizeDecl{Axis: rdf.Qualify(descr.Id, axis.Id), Size: size})
		}
	}
	for ii := range inputs {
		collect(&inputs[ii].TensorDescr)
	}
	for ii := range outputs {
		collect(&outputs[ii].TensorDescr)
	}
	return decls
}
