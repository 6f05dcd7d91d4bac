package modeliface

import (
	"github.com/bioimg-go/bioimg-runtime/rdf"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

// AxisReportRow describes one axis of a ModelInterface, as stored in the parquet axis report.
type AxisReportRow struct {
	TensorId  string `parquet:"tensor_id"`
	IsOutput  bool   `parquet:"is_output"`
	AxisIndex int32  `parquet:"axis_index"`
	AxisId    string `parquet:"axis_id"`
	AxisType  string `parquet:"axis_type"`

	// SizeKind is "fixed", "parameterized" or empty for axes without size.
	SizeKind string `parquet:"size_kind"`

	// Min is the fixed extent, or the minimum of a parameterized size. Step is 0 for fixed sizes.
	Min  int64 `parquet:"min"`
	Step int64 `parquet:"step"`

	// TestExtent is the extent of the axis in the test tensor.
	TestExtent int64 `parquet:"test_extent"`

	// Root, Hops and Offset are the provenance of referenced sizes, see SizeProvenance.
	Root   string `parquet:"root"`
	Hops   int32  `parquet:"hops"`
	Offset int64  `parquet:"offset"`
}

// AxisReport returns one row per axis of every tensor, inputs first, in order.
func (mi *ModelInterface) AxisReport() []AxisReportRow {
	var rows []AxisReportRow
	add := func(descr *rdf.TensorDescr, testTensor SampleArray, isOutput bool) {
		dims := testTensor.Shape().Dimensions
		for ii, axis := range descr.Axes {
			row := AxisReportRow{
				TensorId:   string(descr.Id),
				IsOutput:   isOutput,
				AxisIndex:  int32(ii),
				AxisId:     string(axis.Id),
				AxisType:   string(axis.Type),
				TestExtent: int64(dims[ii]),
			}
			id := rdf.Qualify(descr.Id, axis.Id)
			if size, found := mi.sizes[id]; found {
				row.SizeKind = size.Kind.String()
				row.Min = int64(size.Min())
				row.Step = int64(size.Parameterized.Step)
				if p := mi.provenance[id]; p.IsReference() {
					row.Root = p.Root.String()
					row.Hops = int32(p.Hops)
					row.Offset = int64(p.Offset)
				}
			}
			rows = append(rows, row)
		}
	}
	for ii := range mi.inputs {
		add(&mi.inputs[ii].Descr.TensorDescr, mi.inputs[ii].TestTensor, false)
	}
	for ii := range mi.outputs {
		add(&mi.outputs[ii].Descr.TensorDescr, mi.outputs[ii].TestTensor, true)
	}
	return rows
}

// WriteAxisReport writes the AxisReport of mi as a parquet file.
func WriteAxisReport(filePath string, mi *ModelInterface) error {
	if err := parquet.WriteFile(filePath, mi.AxisReport()); err != nil {
		return errors.Wrapf(err, "failed to write axis report to %s", filePath)
	}
	return nil
}

// ReadAxisReport reads a parquet file written by WriteAxisReport.
func ReadAxisReport(filePath string) ([]AxisReportRow, error) {
	rows, err := parquet.ReadFile[AxisReportRow](filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read axis report from %s", filePath)
	}
	return rows, nil
}
