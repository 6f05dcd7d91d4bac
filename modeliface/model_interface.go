// Package modeliface resolves the axis sizes of a bioimage.io model and validates them against the model test tensors.
//
//   - SolveAxisSizes / AxisSizeResolver: resolve fixed, parameterized and referenced axis sizes.
//   - NewModelInterface: validate input/output descriptors against their test tensors, returning a ModelInterface.
//   - NewModelInterfaceFromDescr: same, loading the test tensors referenced by a rdf.ModelDescr.
//   - ModelInterface.ResolvedDescriptors / Dump: descriptors with all sizes resolved.
//   - WriteAxisReport: a parquet table of all axes and their resolved sizes.
//   - CheckONNXWeights: checks ONNX model weights agree with the interface.
package modeliface

import (
	"maps"
	"slices"

	"github.com/bioimg-go/bioimg-runtime/rdf"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// SampleArray is a concrete array used as a worked example of a tensor. *tensors.Tensor implements it.
type SampleArray interface {
	Shape() shapes.Shape
}

// InputSlot pairs an input descriptor with its test tensor.
type InputSlot struct {
	Descr      rdf.InputTensorDescr
	TestTensor SampleArray
}

// OutputSlot pairs an output descriptor with its test tensor.
type OutputSlot struct {
	Descr      rdf.OutputTensorDescr
	TestTensor SampleArray
}

// ModelInterface is a validated set of model inputs and outputs: tensor ids are unique, all axis sizes are resolved,
// and every test tensor is compatible with its descriptor.
//
// It holds the test tensors given to NewModelInterface, the caller controls their lifetime.
type ModelInterface struct {
	inputs     []InputSlot
	outputs    []OutputSlot
	sizes      map[rdf.QualifiedAxisId]rdf.ResolvedAxisSize
	provenance map[rdf.QualifiedAxisId]SizeProvenance
}

// NewModelInterface validates the inputs and outputs and their test tensors.
//
// Checks happen in this order, and the first failure is returned:
//
//  1. ErrEmptyInputs, ErrEmptyOutputs.
//  2. DuplicateTensorIdError, scanning inputs then outputs. Then InvalidTensorDescrError for the first tensor,
//     inputs then outputs, with no axes or with a repeated axis id.
//  3. Axis size resolution: the returned error wraps an AxisSizeResolutionError.
//  4. For each tensor, inputs then outputs: MismatchedNumDimensionsError if the test tensor rank differs from the
//     number of axes, then IncompatibleAxisError for the first axis whose resolved size doesn't accept the extent.
//     Batch axes accept any extent.
func NewModelInterface(inputs []InputSlot, outputs []OutputSlot) (*ModelInterface, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyInputs
	}
	if len(outputs) == 0 {
		return nil, ErrEmptyOutputs
	}

	seenIds := sets.Make[rdf.TensorId](len(inputs) + len(outputs))
	checkId := func(id rdf.TensorId) error {
		if seenIds.Has(id) {
			return &DuplicateTensorIdError{TensorId: id}
		}
		seenIds.Insert(id)
		return nil
	}
	inputDescrs := make([]rdf.InputTensorDescr, len(inputs))
	for ii, slot := range inputs {
		if err := checkId(slot.Descr.Id); err != nil {
			return nil, err
		}
		inputDescrs[ii] = slot.Descr
	}
	outputDescrs := make([]rdf.OutputTensorDescr, len(outputs))
	for ii, slot := range outputs {
		if err := checkId(slot.Descr.Id); err != nil {
			return nil, err
		}
		outputDescrs[ii] = slot.Descr
	}
	for ii := range inputDescrs {
		if err := rdf.CheckAxisIds(inputDescrs[ii].Axes); err != nil {
			return nil, &InvalidTensorDescrError{TensorId: inputDescrs[ii].Id, Err: err}
		}
	}
	for ii := range outputDescrs {
		if err := rdf.CheckAxisIds(outputDescrs[ii].Axes); err != nil {
			return nil, &InvalidTensorDescrError{TensorId: outputDescrs[ii].Id, Err: err}
		}
	}

	resolver := NewAxisSizeResolver(CollectAxisSizes(inputDescrs, outputDescrs))
	sizes, err := resolver.Solve()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to resolve axis sizes")
	}

	for ii := range inputs {
		if err := checkTestTensor(&inputs[ii].Descr.TensorDescr, inputs[ii].TestTensor, sizes); err != nil {
			return nil, err
		}
	}
	for ii := range outputs {
		if err := checkTestTensor(&outputs[ii].Descr.TensorDescr, outputs[ii].TestTensor, sizes); err != nil {
			return nil, err
		}
	}

	mi := &ModelInterface{
		inputs:     slices.Clone(inputs),
		outputs:    slices.Clone(outputs),
		sizes:      sizes,
		provenance: make(map[rdf.QualifiedAxisId]SizeProvenance, len(sizes)),
	}
	for id := range sizes {
		mi.provenance[id], _ = resolver.Provenance(id)
	}
	klog.V(1).Infof("model interface validated: %d inputs, %d outputs, %d sized axes",
		len(inputs), len(outputs), len(sizes))
	return mi, nil
}

// MustNewModelInterface is like NewModelInterface, but panics (throws an exception) on error.
func MustNewModelInterface(inputs []InputSlot, outputs []OutputSlot) *ModelInterface {
	mi, err := NewModelInterface(inputs, outputs)
	if err != nil {
		exceptions.Panicf("MustNewModelInterface: %v", err)
	}
	return mi
}

// checkTestTensor checks the rank of the test tensor, and then each of its dimensions against the resolved sizes.
func checkTestTensor(descr *rdf.TensorDescr, testTensor SampleArray, sizes map[rdf.QualifiedAxisId]rdf.ResolvedAxisSize) error {
	if testTensor == nil {
		return errors.Errorf("tensor %q has no test tensor", descr.Id)
	}
	if t, ok := testTensor.(*tensors.Tensor); ok && t == nil {
		return errors.Errorf("tensor %q has a nil test tensor", descr.Id)
	}
	dims := testTensor.Shape().Dimensions
	if len(dims) != len(descr.Axes) {
		return &MismatchedNumDimensionsError{
			TensorId:         descr.Id,
			TestTensorShape:  slices.Clone(dims),
			NumDescribedAxes: len(descr.Axes),
		}
	}
	for axisIndex, extent := range dims {
		id := descr.QualifiedAxisId(axisIndex)
		size, found := sizes[id]
		if !found {
			// Axis without a size (batch).
			continue
		}
		if !size.IsCompatibleWithExtent(extent) {
			return &IncompatibleAxisError{
				QualifiedAxisId: id,
				ExpectedExtent:  extent,
				AxisIndex:       axisIndex,
				Size:            size,
			}
		}
	}
	klog.V(2).Infof("test tensor of %q with shape %v is compatible", descr.Id, dims)
	return nil
}

// Inputs returns the validated input slots. The slice must not be modified.
func (mi *ModelInterface) Inputs() []InputSlot { return mi.inputs }

// Outputs returns the validated output slots. The slice must not be modified.
func (mi *ModelInterface) Outputs() []OutputSlot { return mi.outputs }

// ResolvedSize returns the resolved size of the axis, if it has one.
func (mi *ModelInterface) ResolvedSize(axis rdf.QualifiedAxisId) (rdf.ResolvedAxisSize, bool) {
	size, found := mi.sizes[axis]
	return size, found
}

// ResolvedSizes returns a copy of the resolved sizes of all sized axes.
func (mi *ModelInterface) ResolvedSizes() map[rdf.QualifiedAxisId]rdf.ResolvedAxisSize {
	return maps.Clone(mi.sizes)
}

// Provenance returns where the resolved size of the axis came from.
func (mi *ModelInterface) Provenance(axis rdf.QualifiedAxisId) (SizeProvenance, bool) {
	p, found := mi.provenance[axis]
	return p, found
}

// CheckDataTypes checks that each test tensor has the data type declared by its descriptor, if any.
func (mi *ModelInterface) CheckDataTypes() error {
	check := func(descr *rdf.TensorDescr, testTensor SampleArray) error {
		if descr.DataType == "" {
			return nil
		}
		dtype, err := descr.DataType.DType()
		if err != nil {
			return errors.WithMessagef(err, "tensor %q", descr.Id)
		}
		if actual := testTensor.Shape().DType; actual != dtype {
			return &DataTypeMismatchError{TensorId: descr.Id, Declared: descr.DataType, Actual: actual.String()}
		}
		return nil
	}
	for ii := range mi.inputs {
		if err := check(&mi.inputs[ii].Descr.TensorDescr, mi.inputs[ii].TestTensor); err != nil {
			return err
		}
	}
	for ii := range mi.outputs {
		if err := check(&mi.outputs[ii].Descr.TensorDescr, mi.outputs[ii].TestTensor); err != nil {
			return err
		}
	}
	return nil
}
