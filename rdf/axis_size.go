package rdf

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// SizeKind enumerates the ways an axis size can be declared.
type SizeKind int

const (
	// InvalidSize is the zero value: no size was set.
	InvalidSize SizeKind = iota

	// FixedSize is a single positive extent.
	FixedSize

	// ParameterizedSize is the progression min, min+step, min+2*step, ...
	ParameterizedSize

	// ReferenceSize is the size of another axis plus an offset.
	ReferenceSize
)

// String returns a human-readable name for the kind.
func (k SizeKind) String() string {
	switch k {
	case InvalidSize:
		return "invalid"
	case FixedSize:
		return "fixed"
	case ParameterizedSize:
		return "parameterized"
	case ReferenceSize:
		return "reference"
	default:
		return "unknown"
	}
}

// ParameterizedAxisSize accepts any extent min + n*step, for n >= 0.
type ParameterizedAxisSize struct {
	Min  int `json:"min"`
	Step int `json:"step"`
}

// IsCompatibleWithExtent returns whether extent belongs to the progression.
// A non-positive Step is not a valid progression (see AnyAxisSize.Validate) and accepts no extent.
func (p ParameterizedAxisSize) IsCompatibleWithExtent(extent int) bool {
	if p.Step <= 0 {
		return false
	}
	return extent >= p.Min && (extent-p.Min)%p.Step == 0
}

// String implements fmt.Stringer.
func (p ParameterizedAxisSize) String() string {
	return fmt.Sprintf("%d+%dn", p.Min, p.Step)
}

// AxisSizeReference makes an axis as large as another one, plus Offset.
type AxisSizeReference struct {
	QualifiedAxisId
	Offset int `json:"offset,omitempty"`
}

// String implements fmt.Stringer.
func (r AxisSizeReference) String() string {
	if r.Offset == 0 {
		return "size(" + r.QualifiedAxisId.String() + ")"
	}
	return fmt.Sprintf("size(%s)+%d", r.QualifiedAxisId, r.Offset)
}

// AnyAxisSize is the declared size of an axis. Kind tells which of the other fields is set.
//
// Use Fixed, Parameterized or Reference to create one.
type AnyAxisSize struct {
	Kind          SizeKind
	Fixed         int
	Parameterized ParameterizedAxisSize
	Reference     AxisSizeReference
}

// Fixed returns a fixed axis size.
func Fixed(extent int) AnyAxisSize {
	return AnyAxisSize{Kind: FixedSize, Fixed: extent}
}

// Parameterized returns a parameterized axis size.
func Parameterized(min, step int) AnyAxisSize {
	return AnyAxisSize{Kind: ParameterizedSize, Parameterized: ParameterizedAxisSize{Min: min, Step: step}}
}

// Reference returns an axis size defined as the size of tensorId.axisId plus offset.
func Reference(tensorId TensorId, axisId AxisId, offset int) AnyAxisSize {
	return AnyAxisSize{
		Kind:      ReferenceSize,
		Reference: AxisSizeReference{QualifiedAxisId: Qualify(tensorId, axisId), Offset: offset},
	}
}

// Validate checks the numeric constraints of the size: fixed extents, min and step must be positive,
// offsets non-negative.
func (s AnyAxisSize) Validate() error {
	switch s.Kind {
	case FixedSize:
		if s.Fixed <= 0 {
			return errors.Errorf("fixed size must be positive, got %d", s.Fixed)
		}
	case ParameterizedSize:
		if s.Parameterized.Min <= 0 {
			return errors.Errorf("parameterized size min must be positive, got %d", s.Parameterized.Min)
		}
		if s.Parameterized.Step <= 0 {
			return errors.Errorf("parameterized size step must be positive, got %d", s.Parameterized.Step)
		}
	case ReferenceSize:
		if s.Reference.Offset < 0 {
			return errors.Errorf("reference offset must be non-negative, got %d", s.Reference.Offset)
		}
	default:
		return errors.Errorf("axis size of kind %s", s.Kind)
	}
	return nil
}

// Resolved returns the size as a ResolvedAxisSize, if it is not a reference.
func (s AnyAxisSize) Resolved() (ResolvedAxisSize, bool) {
	switch s.Kind {
	case FixedSize:
		return ResolvedFixed(s.Fixed), true
	case ParameterizedSize:
		return ResolvedParameterized(s.Parameterized.Min, s.Parameterized.Step), true
	default:
		return ResolvedAxisSize{}, false
	}
}

// String implements fmt.Stringer.
func (s AnyAxisSize) String() string {
	switch s.Kind {
	case FixedSize:
		return fmt.Sprintf("%d", s.Fixed)
	case ParameterizedSize:
		return s.Parameterized.String()
	case ReferenceSize:
		return s.Reference.String()
	default:
		return s.Kind.String()
	}
}

// jsonAxisSize is the union of all the object forms an axis size takes in JSON/YAML.
type jsonAxisSize struct {
	Min      *int     `json:"min,omitempty"`
	Step     *int     `json:"step,omitempty"`
	TensorId TensorId `json:"tensor_id,omitempty"`
	AxisId   AxisId   `json:"axis_id,omitempty"`
	Offset   int      `json:"offset,omitempty"`
}

// MarshalJSON implements json.Marshaler: a fixed size is a number, the others are objects.
func (s AnyAxisSize) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case FixedSize:
		return json.Marshal(s.Fixed)
	case ParameterizedSize:
		return json.Marshal(s.Parameterized)
	case ReferenceSize:
		return json.Marshal(s.Reference)
	default:
		return nil, errors.Errorf("cannot marshal axis size of kind %s", s.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler. It accepts a number (fixed), {min, step} (parameterized)
// or {tensor_id, axis_id, offset} (reference).
func (s *AnyAxisSize) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		var extent int
		if err := json.Unmarshal(data, &extent); err != nil {
			return errors.Wrapf(err, "axis size %s is neither an integer nor an object", data)
		}
		*s = Fixed(extent)
		return s.Validate()
	}
	var obj jsonAxisSize
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrap(err, "failed to parse axis size")
	}
	switch {
	case obj.Min != nil || obj.Step != nil:
		if obj.Min == nil || obj.Step == nil {
			return errors.Errorf("parameterized axis size %s needs both min and step", data)
		}
		*s = Parameterized(*obj.Min, *obj.Step)
	case obj.TensorId != "" || obj.AxisId != "":
		if obj.TensorId == "" || obj.AxisId == "" {
			return errors.Errorf("axis size reference %s needs both tensor_id and axis_id", data)
		}
		*s = Reference(obj.TensorId, obj.AxisId, obj.Offset)
	default:
		return errors.Errorf("unrecognized axis size %s", data)
	}
	return s.Validate()
}

// ResolvedAxisSize is an axis size with no references left: either fixed or parameterized.
type ResolvedAxisSize struct {
	Kind          SizeKind
	Fixed         int
	Parameterized ParameterizedAxisSize
}

// ResolvedFixed returns a fixed resolved size.
func ResolvedFixed(extent int) ResolvedAxisSize {
	return ResolvedAxisSize{Kind: FixedSize, Fixed: extent}
}

// ResolvedParameterized returns a parameterized resolved size.
func ResolvedParameterized(min, step int) ResolvedAxisSize {
	return ResolvedAxisSize{Kind: ParameterizedSize, Parameterized: ParameterizedAxisSize{Min: min, Step: step}}
}

// WithOffset shifts the size by offset. The step of a parameterized size is kept.
func (r ResolvedAxisSize) WithOffset(offset int) ResolvedAxisSize {
	switch r.Kind {
	case FixedSize:
		return ResolvedFixed(r.Fixed + offset)
	case ParameterizedSize:
		return ResolvedParameterized(r.Parameterized.Min+offset, r.Parameterized.Step)
	}
	return r
}

// Min returns the smallest extent accepted.
func (r ResolvedAxisSize) Min() int {
	if r.Kind == ParameterizedSize {
		return r.Parameterized.Min
	}
	return r.Fixed
}

// IsCompatibleWithExtent returns whether an array dimension of the given extent satisfies the size.
func (r ResolvedAxisSize) IsCompatibleWithExtent(extent int) bool {
	switch r.Kind {
	case FixedSize:
		return extent == r.Fixed
	case ParameterizedSize:
		return r.Parameterized.IsCompatibleWithExtent(extent)
	}
	return false
}

// AsAny converts back to an AnyAxisSize.
func (r ResolvedAxisSize) AsAny() AnyAxisSize {
	return AnyAxisSize{Kind: r.Kind, Fixed: r.Fixed, Parameterized: r.Parameterized}
}

// String implements fmt.Stringer.
func (r ResolvedAxisSize) String() string {
	return r.AsAny().String()
}

// MarshalJSON implements json.Marshaler.
func (r ResolvedAxisSize) MarshalJSON() ([]byte, error) {
	return r.AsAny().MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler. References are rejected.
func (r *ResolvedAxisSize) UnmarshalJSON(data []byte) error {
	var size AnyAxisSize
	if err := size.UnmarshalJSON(data); err != nil {
		return err
	}
	resolved, ok := size.Resolved()
	if !ok {
		return errors.Errorf("resolved axis size cannot be a reference (%s)", size)
	}
	*r = resolved
	return nil
}
