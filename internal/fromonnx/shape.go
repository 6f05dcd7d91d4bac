// Package fromonnx contains conversion utilities from ONNX model declarations to the shapes checked by modeliface.
package fromonnx

import (
	"strings"

	"github.com/gomlx/onnx-gomlx/onnx"
	"github.com/pkg/errors"
)

// Dim is one dimension of an ONNX input or output declaration.
type Dim struct {
	// Extent is the static size of the dimension, or negative if the dimension is dynamic.
	Extent int

	// Name of a dynamic dimension (e.g. "batch_size"), if given.
	Name string
}

// IsDynamic returns whether the dimension accepts any extent.
func (d Dim) IsDynamic() bool { return d.Extent < 0 }

// Shape is the declared shape of an ONNX model input or output.
type Shape struct {
	Name string

	// DType is the lowercase element type name (e.g. "float32"), or empty if unknown.
	DType string

	Dims []Dim
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s.Dims) }

// FromDynamicShape converts an onnx-gomlx DynamicShape.
func FromDynamicShape(name string, ds onnx.DynamicShape) Shape {
	shape := Shape{Name: name, Dims: make([]Dim, len(ds.Dimensions))}
	if dtypeName := strings.ToLower(ds.DType.String()); dtypeName != "invaliddtype" {
		shape.DType = dtypeName
	}
	for axis, extent := range ds.Dimensions {
		dim := Dim{Extent: extent}
		if axis < len(ds.Names) {
			dim.Name = ds.Names[axis]
		}
		shape.Dims[axis] = dim
	}
	return shape
}

// FromDynamicShapes converts the parallel names/shapes slices returned by onnx.Model Inputs and Outputs.
func FromDynamicShapes(names []string, dshapes []onnx.DynamicShape) ([]Shape, error) {
	if len(names) != len(dshapes) {
		return nil, errors.Errorf("got %d names for %d shapes", len(names), len(dshapes))
	}
	shapes := make([]Shape, len(names))
	for ii, name := range names {
		shapes[ii] = FromDynamicShape(name, dshapes[ii])
	}
	return shapes, nil
}

// ReadModelShapes reads an ONNX model file and returns the declared shapes of its inputs and outputs.
func ReadModelShapes(filePath string) (inputs, outputs []Shape, err error) {
	model, err := onnx.ReadFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	inputs, err = FromDynamicShapes(model.Inputs())
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "inputs of ONNX model %s", filePath)
	}
	outputs, err = FromDynamicShapes(model.Outputs())
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "outputs of ONNX model %s", filePath)
	}
	return inputs, outputs, nil
}
