package rdf

import (
	"os"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// ModelDescr is the part of a bioimage.io model rdf.yaml describing the model tensors.
//
// Other fields of the file are ignored.
type ModelDescr struct {
	Name    string              `json:"name,omitempty"`
	Inputs  []InputTensorDescr  `json:"inputs"`
	Outputs []OutputTensorDescr `json:"outputs"`
}

// ParseModelDescr parses the YAML (or JSON) contents of an rdf.yaml file and validates each tensor descriptor.
//
// Cross-tensor consistency (unique tensor ids, axis size references) is not checked here, see
// modeliface.NewModelInterface.
func ParseModelDescr(contents []byte) (*ModelDescr, error) {
	descr := &ModelDescr{}
	if err := yaml.Unmarshal(contents, descr); err != nil {
		return nil, errors.Wrap(err, "failed to parse model descriptor")
	}
	if err := descr.Validate(); err != nil {
		return nil, err
	}
	return descr, nil
}

// ReadModelDescr reads and parses an rdf.yaml file.
func ReadModelDescr(filePath string) (*ModelDescr, error) {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model descriptor in %s", filePath)
	}
	descr, err := ParseModelDescr(contents)
	if err != nil {
		return nil, errors.WithMessagef(err, "model descriptor %s", filePath)
	}
	return descr, nil
}

// Validate checks every input and output descriptor individually.
func (m *ModelDescr) Validate() error {
	for ii := range m.Inputs {
		if err := m.Inputs[ii].Validate(); err != nil {
			return errors.WithMessagef(err, "inputs[%d]", ii)
		}
	}
	for ii := range m.Outputs {
		if err := m.Outputs[ii].Validate(); err != nil {
			return errors.WithMessagef(err, "outputs[%d]", ii)
		}
	}
	return nil
}

// Marshal returns the YAML encoding of the descriptor.
func (m *ModelDescr) Marshal() ([]byte, error) {
	contents, err := yaml.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode model descriptor")
	}
	return contents, nil
}
