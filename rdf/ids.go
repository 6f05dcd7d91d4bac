// Package rdf holds the descriptor types of a bioimage.io model "resource description" that the
// runtime needs: tensor and axis identifiers, axis sizes, axes and tensor descriptors.
//
//   - AnyAxisSize: the declared size of an axis (fixed, parameterized or a reference to another axis).
//   - ResolvedAxisSize: a size with all references followed, as produced by the resolver in modeliface.
//   - InputTensorDescr / OutputTensorDescr: the tensors of a model and their axes.
//   - ModelDescr: the inputs/outputs fragment of an rdf.yaml file, see ParseModelDescr and ReadModelDescr.
package rdf

import (
	"encoding/json"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/validator.v9"
)

const (
	// MaxTensorIdLen is the maximum length of a TensorId.
	MaxTensorIdLen = 32

	// MaxAxisIdLen is the maximum length of an AxisId.
	MaxAxisIdLen = 16
)

var validate = newValidator()

// newValidator returns a validator with the identifier rules registered.
func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("lowercase", isLowercase); err != nil {
		exceptions.Panicf("failed to register identifier validation: %v", err)
	}
	return v
}

// isLowercase accepts strings without uppercase letters.
func isLowercase(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == strings.ToLower(s)
}

// TensorId identifies a tensor. It is unique across all inputs and outputs of a model.
type TensorId string

// AxisId identifies an axis within the axes of one tensor.
type AxisId string

// NewTensorId validates and returns a TensorId.
func NewTensorId(s string) (TensorId, error) {
	if err := checkIdentifier(s, MaxTensorIdLen); err != nil {
		return "", errors.WithMessagef(err, "invalid tensor id %q", s)
	}
	return TensorId(s), nil
}

// NewAxisId validates and returns an AxisId.
func NewAxisId(s string) (AxisId, error) {
	if err := checkIdentifier(s, MaxAxisIdLen); err != nil {
		return "", errors.WithMessagef(err, "invalid axis id %q", s)
	}
	return AxisId(s), nil
}

// checkIdentifier requires a non-empty, lowercase identifier of at most maxLen characters.
func checkIdentifier(s string, maxLen int) error {
	if s == "" {
		return errors.New("identifier is empty")
	}
	if len(s) > maxLen {
		return errors.Errorf("identifier has %d characters, at most %d are allowed", len(s), maxLen)
	}
	if err := validate.Var(s, "lowercase"); err != nil {
		return errors.New("identifier must be lowercase")
	}
	return nil
}

// Validate checks the id is well-formed.
func (id TensorId) Validate() error {
	_, err := NewTensorId(string(id))
	return err
}

// Validate checks the id is well-formed.
func (id AxisId) Validate() error {
	_, err := NewAxisId(string(id))
	return err
}

// UnmarshalJSON implements json.Unmarshaler, validating the identifier.
func (id *TensorId) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "tensor id must be a string")
	}
	parsed, err := NewTensorId(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// UnmarshalJSON implements json.Unmarshaler, validating the identifier.
func (id *AxisId) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "axis id must be a string")
	}
	parsed, err := NewAxisId(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// QualifiedAxisId identifies one axis across the whole model: the tensor it belongs to and its id within the tensor.
//
// It is comparable and used as a map key throughout axis size resolution.
type QualifiedAxisId struct {
	TensorId TensorId `json:"tensor_id"`
	AxisId   AxisId   `json:"axis_id"`
}

// Qualify returns the QualifiedAxisId for the given tensor and axis.
func Qualify(tensorId TensorId, axisId AxisId) QualifiedAxisId {
	return QualifiedAxisId{TensorId: tensorId, AxisId: axisId}
}

// String implements fmt.Stringer, formatting as "tensor.axis".
func (q QualifiedAxisId) String() string {
	return string(q.TensorId) + "." + string(q.AxisId)
}

// Compare orders qualified ids by tensor id, then axis id. It returns -1, 0 or 1.
func (q QualifiedAxisId) Compare(other QualifiedAxisId) int {
	switch {
	case q.TensorId < other.TensorId:
		return -1
	case q.TensorId > other.TensorId:
		return 1
	case q.AxisId < other.AxisId:
		return -1
	case q.AxisId > other.AxisId:
		return 1
	}
	return 0
}
