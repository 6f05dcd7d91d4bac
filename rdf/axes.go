package rdf

import (
	"encoding/json"

	"github.com/gomlx/gomlx/pkg/support/sets"
	"github.com/pkg/errors"
)

// AxisType is the kind of axis, as in the "type" field of a descriptor axis.
type AxisType string

const (
	BatchAxis   AxisType = "batch"
	ChannelAxis AxisType = "channel"
	IndexAxis   AxisType = "index"
	TimeAxis    AxisType = "time"
	SpaceAxis   AxisType = "space"
)

// defaultAxisIds are the ids an axis gets when the descriptor doesn't give one.
var defaultAxisIds = map[AxisType]AxisId{
	BatchAxis:   "batch",
	ChannelAxis: "channel",
	IndexAxis:   "index",
	TimeAxis:    "time",
	SpaceAxis:   "x",
}

// Axis describes one dimension of a tensor.
//
// Which fields are meaningful depends on Type:
//
//   - batch: no size.
//   - channel: ChannelNames, its size is the number of channel names.
//   - index, time, space: Size.
//   - time, space of output tensors: optionally Halo, in which case Size must be fixed or a reference.
type Axis struct {
	Type         AxisType     `json:"type"`
	Id           AxisId       `json:"id,omitempty"`
	Description  string       `json:"description,omitempty"`
	ChannelNames []string     `json:"channel_names,omitempty"`
	Size         *AnyAxisSize `json:"size,omitempty"`
	Halo         int          `json:"halo,omitempty"`
	Unit         string       `json:"unit,omitempty"`
	Scale        float64      `json:"scale,omitempty"`
}

// NewBatchAxis returns a batch axis with the default id.
func NewBatchAxis() Axis {
	return Axis{Type: BatchAxis, Id: defaultAxisIds[BatchAxis]}
}

// NewChannelAxis returns a channel axis with the given channel names.
func NewChannelAxis(channelNames ...string) Axis {
	return Axis{Type: ChannelAxis, Id: defaultAxisIds[ChannelAxis], ChannelNames: channelNames}
}

// NewSizedAxis returns an index, time or space axis with the given id and size.
func NewSizedAxis(axisType AxisType, id AxisId, size AnyAxisSize) Axis {
	return Axis{Type: axisType, Id: id, Size: &size}
}

// NewSpaceAxis is a shortcut to NewSizedAxis(SpaceAxis, id, size).
func NewSpaceAxis(id AxisId, size AnyAxisSize) Axis {
	return NewSizedAxis(SpaceAxis, id, size)
}

// SizeOf returns the declared size of the axis. Batch axes have none.
func (a Axis) SizeOf() (AnyAxisSize, bool) {
	switch a.Type {
	case BatchAxis:
		return AnyAxisSize{}, false
	case ChannelAxis:
		return Fixed(len(a.ChannelNames)), true
	default:
		if a.Size == nil {
			return AnyAxisSize{}, false
		}
		return *a.Size, true
	}
}

// UnmarshalJSON implements json.Unmarshaler, filling in the default axis id.
func (a *Axis) UnmarshalJSON(data []byte) error {
	type plainAxis Axis
	var parsed plainAxis
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	if parsed.Id == "" {
		parsed.Id = defaultAxisIds[parsed.Type]
	}
	*a = Axis(parsed)
	return nil
}

// Validate checks the axis is consistent with its type. Halos are only allowed for outputs.
func (a Axis) Validate(isOutput bool) error {
	if err := a.Id.Validate(); err != nil {
		return err
	}
	switch a.Type {
	case BatchAxis:
		if a.Size != nil {
			return errors.Errorf("batch axis %q cannot declare a size", a.Id)
		}
	case ChannelAxis:
		if len(a.ChannelNames) == 0 {
			return errors.Errorf("channel axis %q has no channel names", a.Id)
		}
		names := sets.Make[string](len(a.ChannelNames))
		for _, name := range a.ChannelNames {
			if names.Has(name) {
				return errors.Errorf("channel axis %q repeats channel name %q", a.Id, name)
			}
			names.Insert(name)
		}
	case IndexAxis, TimeAxis, SpaceAxis:
		if a.Size == nil {
			return errors.Errorf("%s axis %q has no size", a.Type, a.Id)
		}
		if err := a.Size.Validate(); err != nil {
			return errors.WithMessagef(err, "%s axis %q", a.Type, a.Id)
		}
	default:
		return errors.Errorf("axis %q has unknown type %q", a.Id, a.Type)
	}
	if a.Halo != 0 {
		if !isOutput || (a.Type != TimeAxis && a.Type != SpaceAxis) {
			return errors.Errorf("only output time/space axes can have a halo, axis %q is %s", a.Id, a.Type)
		}
		if a.Halo < 0 {
			return errors.Errorf("axis %q has negative halo %d", a.Id, a.Halo)
		}
		if a.Size.Kind == ParameterizedSize {
			return errors.Errorf("axis %q with a halo must have a fixed or referenced size, not %s", a.Id, a.Size)
		}
	}
	return nil
}

// CheckAxisIds checks the tensor has at least one axis and that axis ids are unique within the list.
func CheckAxisIds(axes []Axis) error {
	if len(axes) == 0 {
		return errors.New("tensor has no axes")
	}
	seen := sets.Make[AxisId](len(axes))
	for _, axis := range axes {
		if seen.Has(axis.Id) {
			return errors.Errorf("axis id %q appears more than once", axis.Id)
		}
		seen.Insert(axis.Id)
	}
	return nil
}

// ValidateAxes checks every axis and that axis ids are unique within the list.
func ValidateAxes(axes []Axis, isOutput bool) error {
	if err := CheckAxisIds(axes); err != nil {
		return err
	}
	for ii, axis := range axes {
		if err := axis.Validate(isOutput); err != nil {
			return errors.WithMessagef(err, "axis #%d", ii)
		}
	}
	return nil
}
