package rdf

import (
	"strings"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// DataType is the element type of a tensor, as named in bioimage.io descriptors ("float32", "uint8", ...).
//
// The empty DataType means "not declared".
type DataType string

// dataTypeToDType maps the bioimage.io data types to gomlx data types.
var dataTypeToDType = map[DataType]dtypes.DType{
	"bool":    dtypes.Bool,
	"int8":    dtypes.Int8,
	"int16":   dtypes.Int16,
	"int32":   dtypes.Int32,
	"int64":   dtypes.Int64,
	"uint8":   dtypes.Uint8,
	"uint16":  dtypes.Uint16,
	"uint32":  dtypes.Uint32,
	"uint64":  dtypes.Uint64,
	"float32": dtypes.Float32,
	"float64": dtypes.Float64,
}

// DType converts the data type to a gomlx data type.
func (dt DataType) DType() (dtypes.DType, error) {
	dtype, found := dataTypeToDType[dt]
	if !found {
		return dtypes.InvalidDType, errors.Errorf("unsupported/unknown tensor data type %q", string(dt))
	}
	return dtype, nil
}

// Validate checks the data type is either empty or a known one.
func (dt DataType) Validate() error {
	if dt == "" {
		return nil
	}
	_, err := dt.DType()
	return err
}

// DataTypeFromDType converts a gomlx data type to the bioimage.io name.
func DataTypeFromDType(dtype dtypes.DType) (DataType, error) {
	for dt, candidate := range dataTypeToDType {
		if candidate == dtype {
			return dt, nil
		}
	}
	return "", errors.Errorf("data type %s has no bioimage.io equivalent", dtype)
}

// MatchesDTypeName returns whether the data type corresponds to the given data type name, compared
// case-insensitively. It accepts names as printed by gomlx ("Float32") as well as bioimage.io names.
func (dt DataType) MatchesDTypeName(name string) bool {
	return strings.EqualFold(string(dt), name)
}
