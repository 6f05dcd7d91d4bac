package rdf

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// FileReference points to a file: either a path (relative to the descriptor) or an http(s) URL.
type FileReference string

// IsURL returns whether the reference is an http(s) URL.
func (f FileReference) IsURL() bool {
	u, err := url.Parse(string(f))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// TensorDescr holds the fields shared by input and output tensor descriptors.
type TensorDescr struct {
	Id          TensorId      `json:"id"`
	Description string        `json:"description,omitempty"`
	Axes        []Axis        `json:"axes"`
	TestTensor  FileReference `json:"test_tensor,omitempty"`
	DataType    DataType      `json:"data_type,omitempty"`
}

// AxisIds returns the ids of the axes, in order.
func (t *TensorDescr) AxisIds() []AxisId {
	ids := make([]AxisId, len(t.Axes))
	for ii, axis := range t.Axes {
		ids[ii] = axis.Id
	}
	return ids
}

// QualifiedAxisId returns the qualified id of the axis at position axisIndex.
func (t *TensorDescr) QualifiedAxisId(axisIndex int) QualifiedAxisId {
	return Qualify(t.Id, t.Axes[axisIndex].Id)
}

// validate checks the tensor id and axes.
func (t *TensorDescr) validate(isOutput bool) error {
	if err := t.Id.Validate(); err != nil {
		return err
	}
	if err := t.DataType.Validate(); err != nil {
		return errors.WithMessagef(err, "tensor %q", t.Id)
	}
	if err := ValidateAxes(t.Axes, isOutput); err != nil {
		return errors.WithMessagef(err, "tensor %q", t.Id)
	}
	return nil
}

// clone returns a copy whose axes (and their sizes) can be modified independently.
func (t *TensorDescr) clone() TensorDescr {
	c := *t
	c.Axes = make([]Axis, len(t.Axes))
	for ii, axis := range t.Axes {
		if axis.Size != nil {
			size := *axis.Size
			axis.Size = &size
		}
		if axis.ChannelNames != nil {
			axis.ChannelNames = append([]string(nil), axis.ChannelNames...)
		}
		c.Axes[ii] = axis
	}
	return c
}

// InputTensorDescr describes a model input.
type InputTensorDescr struct {
	TensorDescr
	Optional bool `json:"optional,omitempty"`
}

// Validate checks the descriptor.
func (t *InputTensorDescr) Validate() error {
	return t.validate(false)
}

// Clone returns a deep copy of the descriptor.
func (t *InputTensorDescr) Clone() InputTensorDescr {
	return InputTensorDescr{TensorDescr: t.clone(), Optional: t.Optional}
}

// OutputTensorDescr describes a model output.
type OutputTensorDescr struct {
	TensorDescr
}

// Validate checks the descriptor.
func (t *OutputTensorDescr) Validate() error {
	return t.validate(true)
}

// Clone returns a deep copy of the descriptor.
func (t *OutputTensorDescr) Clone() OutputTensorDescr {
	return OutputTensorDescr{TensorDescr: t.clone()}
}
