package modeliface

import (
	"fmt"

	"github.com/bioimg-go/bioimg-runtime/internal/fromonnx"
	"github.com/bioimg-go/bioimg-runtime/rdf"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CheckONNXWeights reads the ONNX model in filePath and checks that its inputs and outputs agree with mi:
// same number of inputs and outputs, in the same order, each with the same rank, and every static ONNX dimension
// accepted by the resolved size of the corresponding axis. Dynamic ONNX dimensions and batch axes always agree.
// Data types are compared when both the descriptor and the ONNX model declare one.
//
// Disagreements are reported as *WeightsMismatchError.
func CheckONNXWeights(mi *ModelInterface, filePath string) error {
	inputs, outputs, err := fromonnx.ReadModelShapes(filePath)
	if err != nil {
		return errors.WithMessagef(err, "failed to read ONNX weights")
	}
	return mi.checkWeightShapes(inputs, outputs)
}

func (mi *ModelInterface) checkWeightShapes(inputs, outputs []fromonnx.Shape) error {
	if len(inputs) != len(mi.inputs) {
		return &WeightsMismatchError{TensorId: mi.inputs[0].Descr.Id, AxisIndex: -1,
			Reason: fmt.Sprintf("weights have %d inputs, the model describes %d", len(inputs), len(mi.inputs))}
	}
	if len(outputs) != len(mi.outputs) {
		return &WeightsMismatchError{TensorId: mi.outputs[0].Descr.Id, AxisIndex: -1,
			Reason: fmt.Sprintf("weights have %d outputs, the model describes %d", len(outputs), len(mi.outputs))}
	}
	for ii := range inputs {
		if err := mi.checkWeightShape(&mi.inputs[ii].Descr.TensorDescr, inputs[ii]); err != nil {
			return err
		}
	}
	for ii := range outputs {
		if err := mi.checkWeightShape(&mi.outputs[ii].Descr.TensorDescr, outputs[ii]); err != nil {
			return err
		}
	}
	return nil
}

func (mi *ModelInterface) checkWeightShape(descr *rdf.TensorDescr, shape fromonnx.Shape) error {
	if shape.Rank() != len(descr.Axes) {
		return &WeightsMismatchError{TensorId: descr.Id, AxisIndex: -1,
			Reason: fmt.Sprintf("weights tensor %q has rank %d, %d axes are described", shape.Name, shape.Rank(), len(descr.Axes))}
	}
	if descr.DataType != "" && shape.DType != "" && !descr.DataType.MatchesDTypeName(shape.DType) {
		return &WeightsMismatchError{TensorId: descr.Id, AxisIndex: -1,
			Reason: fmt.Sprintf("weights tensor %q is %s, data type %s is described", shape.Name, shape.DType, descr.DataType)}
	}
	for axisIndex, dim := range shape.Dims {
		if dim.IsDynamic() {
			continue
		}
		size, found := mi.sizes[descr.QualifiedAxisId(axisIndex)]
		if !found {
			continue
		}
		if !size.IsCompatibleWithExtent(dim.Extent) {
			return &WeightsMismatchError{TensorId: descr.Id, AxisIndex: axisIndex,
				Reason: fmt.Sprintf("static dimension %d of weights tensor %q is incompatible with size %s",
					dim.Extent, shape.Name, size)}
		}
		if size.Kind == rdf.ParameterizedSize {
			klog.Warningf("axis %s is parameterized (%s), but the weights fix it to %d",
				descr.QualifiedAxisId(axisIndex), size, dim.Extent)
		}
	}
	return nil
}
