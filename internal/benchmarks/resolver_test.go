package benchmarks

import (
	"flag"
	"fmt"
	"runtime"
	"testing"

	"github.com/bioimg-go/bioimg-runtime/modeliface"
	"github.com/bioimg-go/bioimg-runtime/rdf"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/janpfeifer/go-benchmarks"
	"github.com/janpfeifer/must"
)

var (
	// NumTensors for the synthetic models used in the benchmarks.
	NumTensors = []int{1, 16, 256, 4096}

	flagBenchDuration = flag.Duration("bench_duration", 0, "Benchmark duration, typically use 10 seconds. If left as 0, benchmark tests are disabled")
)

// shapeOnly is a test tensor without data: validation only looks at shapes.
type shapeOnly shapes.Shape

func (s shapeOnly) Shape() shapes.Shape { return shapes.Shape(s) }

// syntheticModel creates numTensors inputs, each with axes batch, channel, y and x, and one output per input.
//
// Input "t0000" has parameterized y, every other input references the y of the previous one with an offset of 2,
// so the longest reference chain has numTensors hops. All x axes reference the y of their own tensor, and outputs
// reference their input.
func syntheticModel(numTensors int) ([]modeliface.InputSlot, []modeliface.OutputSlot) {
	inputs := make([]modeliface.InputSlot, numTensors)
	outputs := make([]modeliface.OutputSlot, numTensors)
	for ii := range numTensors {
		id := rdf.TensorId(fmt.Sprintf("t%04d", ii))
		ySize := rdf.Parameterized(64, 16)
		if ii > 0 {
			ySize = rdf.Reference(rdf.TensorId(fmt.Sprintf("t%04d", ii-1)), "y", 2)
		}
		extent := 64 + 2*ii + 16
		testShape := shapeOnly(shapes.Make(dtypes.Float32, 1, 3, extent, extent))
		inputs[ii] = modeliface.InputSlot{
			Descr: rdf.InputTensorDescr{TensorDescr: rdf.TensorDescr{Id: id, Axes: []rdf.Axis{
				rdf.NewBatchAxis(),
				rdf.NewChannelAxis("r", "g", "b"),
				rdf.NewSpaceAxis("y", ySize),
				rdf.NewSpaceAxis("x", rdf.Reference(id, "y", 0)),
			}}},
			TestTensor: testShape,
		}
		outId := rdf.TensorId(fmt.Sprintf("out%04d", ii))
		outputs[ii] = modeliface.OutputSlot{
			Descr: rdf.OutputTensorDescr{TensorDescr: rdf.TensorDescr{Id: outId, Axes: []rdf.Axis{
				rdf.NewBatchAxis(),
				rdf.NewChannelAxis("r", "g", "b"),
				rdf.NewSpaceAxis("y", rdf.Reference(id, "y", 0)),
				rdf.NewSpaceAxis("x", rdf.Reference(id, "x", 0)),
			}}},
			TestTensor: testShape,
		}
	}
	return inputs, outputs
}

func TestSyntheticModel(t *testing.T) {
	inputs, outputs := syntheticModel(8)
	mi := modeliface.MustNewModelInterface(inputs, outputs)
	size, found := mi.ResolvedSize(rdf.Qualify("out0007", "x"))
	if !found || size != rdf.ResolvedParameterized(64+2*7, 16) {
		t.Fatalf("unexpected resolved size for out0007.x: %s (found=%v)", size, found)
	}
}

func BenchmarkSolveAxisSizes(b *testing.B) {
	for _, numTensors := range NumTensors {
		inputs, outputs := syntheticModel(numTensors)
		decls := modeliface.CollectAxisSizes(descrs(inputs, outputs))
		b.Run(fmt.Sprintf("tensors=%d", numTensors), func(b *testing.B) {
			for range b.N {
				must.M1(modeliface.SolveAxisSizes(decls))
			}
		})
	}
}

func BenchmarkNewModelInterface(b *testing.B) {
	for _, numTensors := range NumTensors {
		inputs, outputs := syntheticModel(numTensors)
		b.Run(fmt.Sprintf("tensors=%d", numTensors), func(b *testing.B) {
			for range b.N {
				must.M1(modeliface.NewModelInterface(inputs, outputs))
			}
		})
	}
}

// TestBenchModelInterface measures validation with a fixed duration per model size, as opposed to the
// testing.B benchmarks, which adjust the number of runs.
func TestBenchModelInterface(t *testing.T) {
	if testing.Short() {
		fmt.Printf("Skipping model interface benchmark test: --short is set\n")
		t.SkipNow()
	}
	if *flagBenchDuration == 0 {
		fmt.Printf("Skipping model interface benchmark test: --bench_duration is not set\n")
		t.SkipNow()
	}
	for idx, numTensors := range NumTensors {
		inputs, outputs := syntheticModel(numTensors)
		decls := modeliface.CollectAxisSizes(descrs(inputs, outputs))
		solveFn := benchmarks.NamedFunction{
			Name: fmt.Sprintf("Solve/tensors=%04d", numTensors),
			Func: func() { must.M1(modeliface.SolveAxisSizes(decls)) },
		}
		validateFn := benchmarks.NamedFunction{
			Name: fmt.Sprintf("Validate/tensors=%04d", numTensors),
			Func: func() { must.M1(modeliface.NewModelInterface(inputs, outputs)) },
		}
		runtime.LockOSThread()
		for fnIdx, fn := range []benchmarks.NamedFunction{solveFn, validateFn} {
			benchmarks.New(fn).
				WithWarmUps(16).
				WithDuration(*flagBenchDuration).
				WithHeader(idx == 0 && fnIdx == 0).
				Done()
		}
		runtime.UnlockOSThread()
	}
}

func descrs(inputs []modeliface.InputSlot, outputs []modeliface.OutputSlot) ([]rdf.InputTensorDescr, []rdf.OutputTensorDescr) {
	inputDescrs := make([]rdf.InputTensorDescr, len(inputs))
	for ii, slot := range inputs {
		inputDescrs[ii] = slot.Descr
	}
	outputDescrs := make([]rdf.OutputTensorDescr, len(outputs))
	for ii, slot := range outputs {
		outputDescrs[ii] = slot.Descr
	}
	return inputDescrs, outputDescrs
}
