// bioimg_axes validates the tensor interface of a bioimage.io model: it resolves the axis sizes declared in the
// model rdf.yaml, and checks them against the model test tensors and, optionally, its ONNX weights.
//
// Usage:
//
//	bioimg_axes [flags] path/to/rdf.yaml
//
// Relative test tensor paths are resolved against -base_dir (or $BIOIMG_BASE_DIR), which defaults to the directory
// of the rdf.yaml file.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bioimg-go/bioimg-runtime/modeliface"
	"github.com/bioimg-go/bioimg-runtime/rdf"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	_ = flag.String("base_dir", "", "Directory relative test tensor paths are resolved against. "+
		"Defaults to $"+EnvPrefix+"_BASE_DIR, or the directory of the rdf.yaml file.")
	_ = flag.Bool("mmap", false, "Memory-map test tensor files instead of reading them. Defaults to $"+EnvPrefix+"_MMAP.")

	flagStrictDTypes = flag.Bool("strict_dtypes", false, "Fail if a test tensor data type differs from the declared one.")
	flagDumpDir      = flag.String("dump_dir", "", "If set, writes the test tensors and an rdf.yaml with all axis sizes resolved to this directory.")
	flagParquet      = flag.String("parquet", "", "If set, writes the table of axes and their resolved sizes to this parquet file.")
	flagONNX         = flag.String("onnx", "", "If set, checks the inputs and outputs of this ONNX model agree with the model interface.")
	flagQuiet        = flag.Bool("quiet", false, "Don't print the tensors and axes tables.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		klog.Errorf("Expected exactly one rdf.yaml path, got %d arguments. See 'bioimg_axes -help'.", len(args))
		os.Exit(1)
	}
	cfg := must.M1(loadConfig(flag.CommandLine))
	if cfg.BaseDir == "" {
		cfg.BaseDir = filepath.Dir(must.M1(filepath.Abs(args[0])))
	}

	err := exceptions.TryCatch[error](func() {
		must.M(run(os.Stdout, args[0], cfg))
	})
	if err != nil {
		klog.Errorf("Validation of %s failed: %+v", args[0], err)
		os.Exit(1)
	}
}

// run validates the model in rdfPath and executes the optional steps requested by the flags.
func run(w io.Writer, rdfPath string, cfg Config) error {
	descr, err := rdf.ReadModelDescr(rdfPath)
	if err != nil {
		return err
	}
	klog.V(1).Infof("validating model %q: %d inputs, %d outputs", descr.Name, len(descr.Inputs), len(descr.Outputs))
	mi, err := modeliface.NewModelInterfaceFromDescr(descr, modeliface.LoadOptions{BaseDir: cfg.BaseDir, UseMmap: cfg.Mmap})
	if err != nil {
		return err
	}
	if err := mi.CheckDataTypes(); err != nil {
		if *flagStrictDTypes {
			return err
		}
		klog.Warningf("%v", err)
	}
	if *flagONNX != "" {
		if err := modeliface.CheckONNXWeights(mi, *flagONNX); err != nil {
			return err
		}
		klog.Infof("ONNX weights %s agree with the model interface", *flagONNX)
	}

	if !*flagQuiet {
		fmt.Fprintln(w, titleStyle.Render("Tensors"))
		fmt.Fprintln(w, tensorsTable(mi))
		fmt.Fprintln(w, titleStyle.Render("Axes"))
		fmt.Fprintln(w, axesTable(mi.AxisReport()))
	}

	if *flagParquet != "" {
		if err := modeliface.WriteAxisReport(*flagParquet, mi); err != nil {
			return err
		}
		klog.Infof("axis report written to %s", *flagParquet)
	}
	if *flagDumpDir != "" {
		if _, err := mi.Dump(*flagDumpDir, descr.Name); err != nil {
			return errors.WithMessagef(err, "failed to dump resolved model")
		}
		klog.Infof("resolved model written to %s", *flagDumpDir)
	}
	return nil
}
