package modeliface

import (
	"os"
	"path/filepath"

	"github.com/bioimg-go/bioimg-runtime/rdf"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/numpy"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DescriptorFileName is the name of the descriptor file written by Dump.
const DescriptorFileName = "rdf.yaml"

// resolveAxes replaces the size of every sized axis of descr with its resolved size.
func (mi *ModelInterface) resolveAxes(descr *rdf.TensorDescr) {
	for ii := range descr.Axes {
		axis := &descr.Axes[ii]
		if axis.Size == nil {
			continue
		}
		size, found := mi.sizes[rdf.Qualify(descr.Id, axis.Id)]
		if !found {
			continue
		}
		resolved := size.AsAny()
		axis.Size = &resolved
	}
}

// ResolvedDescriptors returns copies of the input and output descriptors where every axis size is resolved:
// references are replaced by the fixed or parameterized size they resolve to.
func (mi *ModelInterface) ResolvedDescriptors() ([]rdf.InputTensorDescr, []rdf.OutputTensorDescr) {
	inputs := make([]rdf.InputTensorDescr, len(mi.inputs))
	for ii := range mi.inputs {
		inputs[ii] = mi.inputs[ii].Descr.Clone()
		mi.resolveAxes(&inputs[ii].TensorDescr)
	}
	outputs := make([]rdf.OutputTensorDescr, len(mi.outputs))
	for ii := range mi.outputs {
		outputs[ii] = mi.outputs[ii].Descr.Clone()
		mi.resolveAxes(&outputs[ii].TensorDescr)
	}
	return inputs, outputs
}

// Dump writes each test tensor as a uniquely named .npy file in dir, and a DescriptorFileName with the resolved
// descriptors pointing to them. It returns the written descriptor.
//
// Test tensors must be *tensors.Tensor.
func (mi *ModelInterface) Dump(dir, name string) (*rdf.ModelDescr, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory %s", dir)
	}
	inputs, outputs := mi.ResolvedDescriptors()
	for ii := range inputs {
		ref, err := writeTestTensor(dir, inputs[ii].Id, mi.inputs[ii].TestTensor)
		if err != nil {
			return nil, err
		}
		inputs[ii].TestTensor = ref
	}
	for ii := range outputs {
		ref, err := writeTestTensor(dir, outputs[ii].Id, mi.outputs[ii].TestTensor)
		if err != nil {
			return nil, err
		}
		outputs[ii].TestTensor = ref
	}

	descr := &rdf.ModelDescr{Name: name, Inputs: inputs, Outputs: outputs}
	contents, err := descr.Marshal()
	if err != nil {
		return nil, err
	}
	descrPath := filepath.Join(dir, DescriptorFileName)
	if err := os.WriteFile(descrPath, contents, 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", descrPath)
	}
	klog.V(1).Infof("model interface dumped to %s", dir)
	return descr, nil
}

// writeTestTensor saves the test tensor to a new file in dir and returns its name.
func writeTestTensor(dir string, id rdf.TensorId, sample SampleArray) (rdf.FileReference, error) {
	t, ok := sample.(*tensors.Tensor)
	if !ok {
		return "", errors.Errorf("test tensor of %q is a %T, only *tensors.Tensor can be saved", id, sample)
	}
	fileName := uuid.NewString() + ".npy"
	filePath := filepath.Join(dir, fileName)
	f, err := os.Create(filePath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %s", filePath)
	}
	err = numpy.ToNpyWriter(t, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return "", errors.WithMessagef(err, "failed to write test tensor of %q to %s", id, filePath)
	}
	return rdf.FileReference(fileName), nil
}
