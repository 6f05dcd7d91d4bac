package modeliface

import (
	"fmt"
	"strings"

	"github.com/bioimg-go/bioimg-runtime/rdf"
	"github.com/pkg/errors"
)

// AxisSizeResolutionError is implemented by every error returned by the axis size resolver.
//
// NewModelInterface wraps these errors, use errors.As to recover them.
type AxisSizeResolutionError interface {
	error
	isAxisSizeResolutionError()
}

// CyclicReferenceError is returned when following size references from an axis leads back to it.
type CyclicReferenceError struct {
	// Cycle lists the axes of the cycle in the order they reference each other: Cycle[i] references Cycle[i+1],
	// and the last one references Cycle[0].
	Cycle []rdf.QualifiedAxisId
}

func (e *CyclicReferenceError) Error() string {
	parts := make([]string, 0, len(e.Cycle)+1)
	for _, id := range e.Cycle {
		parts = append(parts, id.String())
	}
	if len(e.Cycle) > 0 {
		parts = append(parts, e.Cycle[0].String())
	}
	return "cyclic axis size reference: " + strings.Join(parts, " -> ")
}

func (e *CyclicReferenceError) isAxisSizeResolutionError() {}

// DanglingReferenceError is returned when an axis size references an axis that doesn't exist or has no size
// (e.g. a batch axis).
type DanglingReferenceError struct {
	Referrer      rdf.QualifiedAxisId
	MissingTarget rdf.QualifiedAxisId
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("axis %s references %s, which is not an axis with a size", e.Referrer, e.MissingTarget)
}

func (e *DanglingReferenceError) isAxisSizeResolutionError() {}

// DuplicateAxisError is returned when the same qualified axis id is declared more than once.
type DuplicateAxisError struct {
	Axis rdf.QualifiedAxisId
}

func (e *DuplicateAxisError) Error() string {
	return fmt.Sprintf("axis %s declared more than once", e.Axis)
}

func (e *DuplicateAxisError) isAxisSizeResolutionError() {}

// InvalidAxisSizeError is returned when a declared size breaks the numeric constraints (see rdf.AnyAxisSize.Validate).
type InvalidAxisSizeError struct {
	Axis   rdf.QualifiedAxisId
	Reason error
}

func (e *InvalidAxisSizeError) Error() string {
	return fmt.Sprintf("axis %s: %v", e.Axis, e.Reason)
}

func (e *InvalidAxisSizeError) Unwrap() error { return e.Reason }

func (e *InvalidAxisSizeError) isAxisSizeResolutionError() {}

var (
	// ErrEmptyInputs is returned when a model interface is built with no inputs.
	ErrEmptyInputs = errors.New("empty model interface inputs")

	// ErrEmptyOutputs is returned when a model interface is built with no outputs.
	ErrEmptyOutputs = errors.New("empty model interface outputs")

	// ErrUrlUnsupported is returned when a test tensor is referenced by URL.
	ErrUrlUnsupported = errors.New("url file references are unsupported for now")
)

// ReadNpyError is returned when a test tensor can't be decoded as a .npy array.
type ReadNpyError struct {
	Source string
	Err    error
}

func (e *ReadNpyError) Error() string {
	return fmt.Sprintf("failed to read .npy test tensor from %s: %v", e.Source, e.Err)
}

func (e *ReadNpyError) Unwrap() error { return e.Err }

// DuplicateTensorIdError is returned when two tensors, inputs or outputs, share an id.
type DuplicateTensorIdError struct {
	TensorId rdf.TensorId
}

func (e *DuplicateTensorIdError) Error() string {
	return fmt.Sprintf("duplicate tensor id: %s", e.TensorId)
}

// InvalidTensorDescrError is returned when a tensor descriptor has no axes or repeats an axis id.
type InvalidTensorDescrError struct {
	TensorId rdf.TensorId
	Err      error
}

func (e *InvalidTensorDescrError) Error() string {
	return fmt.Sprintf("invalid descriptor of tensor %q: %v", e.TensorId, e.Err)
}

func (e *InvalidTensorDescrError) Unwrap() error { return e.Err }

// MismatchedNumDimensionsError is returned when a test tensor rank differs from the number of described axes.
type MismatchedNumDimensionsError struct {
	TensorId         rdf.TensorId
	TestTensorShape  []int
	NumDescribedAxes int
}

func (e *MismatchedNumDimensionsError) Error() string {
	return fmt.Sprintf("test tensor of %q with shape %v does not match the number of described axes (%d)",
		e.TensorId, e.TestTensorShape, e.NumDescribedAxes)
}

// IncompatibleAxisError is returned when a test tensor dimension doesn't satisfy the resolved size of its axis.
type IncompatibleAxisError struct {
	QualifiedAxisId rdf.QualifiedAxisId

	// ExpectedExtent is the extent observed in the test tensor (the name is kept from the bioimage.io tooling).
	ExpectedExtent int

	// AxisIndex is the position of the axis in its tensor.
	AxisIndex int

	// Size is the resolved size the extent was checked against.
	Size rdf.ResolvedAxisSize
}

func (e *IncompatibleAxisError) Error() string {
	return fmt.Sprintf("axis %q (size %s) is incompatible with test tensor dim #%d with extent %d",
		e.QualifiedAxisId, e.Size, e.AxisIndex, e.ExpectedExtent)
}

// DataTypeMismatchError is returned by ModelInterface.CheckDataTypes.
type DataTypeMismatchError struct {
	TensorId rdf.TensorId
	Declared rdf.DataType
	Actual   string
}

func (e *DataTypeMismatchError) Error() string {
	return fmt.Sprintf("tensor %q declares data type %s but its test tensor is %s", e.TensorId, e.Declared, e.Actual)
}

// WeightsMismatchError is returned when model weights don't agree with the model interface.
type WeightsMismatchError struct {
	TensorId  rdf.TensorId
	AxisIndex int // -1 if the mismatch is not about a specific axis.
	Reason    string
}

func (e *WeightsMismatchError) Error() string {
	if e.AxisIndex < 0 {
		return fmt.Sprintf("weights mismatch for tensor %q: %s", e.TensorId, e.Reason)
	}
	return fmt.Sprintf("weights mismatch for tensor %q, axis #%d: %s", e.TensorId, e.AxisIndex, e.Reason)
}
