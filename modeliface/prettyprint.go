package modeliface

import (
	"bytes"
	"fmt"

	"github.com/bioimg-go/bioimg-runtime/rdf"
)

// String implements fmt.Stringer, and pretty prints the interface: each tensor, its test tensor shape and
// the resolved size of each axis.
func (mi *ModelInterface) String() string {
	var buf bytes.Buffer
	w := func(format string, args ...any) {
		if len(args) == 0 {
			buf.WriteString(format)
		} else {
			buf.WriteString(fmt.Sprintf(format, args...))
		}
	}
	tensor := func(kind string, descr *rdf.TensorDescr, testTensor SampleArray) {
		w("\t%s %q:\ttest tensor %s\n", kind, descr.Id, testTensor.Shape())
		for _, axis := range descr.Axes {
			id := rdf.Qualify(descr.Id, axis.Id)
			size, found := mi.sizes[id]
			if !found {
				w("\t\t%s (%s)\n", axis.Id, axis.Type)
				continue
			}
			w("\t\t%s (%s):\t%s", axis.Id, axis.Type, size)
			if p := mi.provenance[id]; p.IsReference() {
				w("\t[from %s", p.Root)
				if p.Offset != 0 {
					w(" +%d", p.Offset)
				}
				w("]")
			}
			w("\n")
		}
	}
	w("Model Interface:\n")
	for ii := range mi.inputs {
		tensor("input", &mi.inputs[ii].Descr.TensorDescr, mi.inputs[ii].TestTensor)
	}
	for ii := range mi.outputs {
		tensor("output", &mi.outputs[ii].Descr.TensorDescr, mi.outputs[ii].TestTensor)
	}
	return buf.String()
}
