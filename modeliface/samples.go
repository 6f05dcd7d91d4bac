package modeliface

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/bioimg-go/bioimg-runtime/rdf"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/numpy"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
	"k8s.io/klog/v2"
)

// SourceKind enumerates where a FileSource reads from.
type SourceKind int

const (
	// DataSource is an in-memory buffer.
	DataSource SourceKind = iota

	// LocalFileSource is a file in the local filesystem.
	LocalFileSource

	// URLSource is a remote http(s) file. Loading it is not supported.
	URLSource
)

// FileSource is where the contents of a test tensor come from.
type FileSource struct {
	Kind SourceKind

	// Data and Name (optional) for DataSource.
	Data []byte
	Name string

	// Path for LocalFileSource, URL for URLSource.
	Path string
	URL  string
}

// FileSourceFromReference converts a descriptor file reference. Relative paths are taken relative to baseDir.
func FileSourceFromReference(ref rdf.FileReference, baseDir string) FileSource {
	if ref.IsURL() {
		return FileSource{Kind: URLSource, URL: string(ref)}
	}
	path := string(ref)
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	return FileSource{Kind: LocalFileSource, Path: path}
}

// String implements fmt.Stringer.
func (s FileSource) String() string {
	switch s.Kind {
	case DataSource:
		if s.Name != "" {
			return fmt.Sprintf("%s (%d bytes)", s.Name, len(s.Data))
		}
		return fmt.Sprintf("%d bytes", len(s.Data))
	case LocalFileSource:
		return s.Path
	case URLSource:
		return s.URL
	}
	return "invalid source"
}

// LoadOptions configures how test tensors are loaded.
type LoadOptions struct {
	// BaseDir is the directory relative test tensor paths are resolved against.
	BaseDir string

	// UseMmap memory-maps local files instead of reading them.
	UseMmap bool
}

// SampleLoader loads test tensors from .npy files.
//
// With LoadOptions.UseMmap it caches the memory mapping of each local file, since the same file is often used by
// more than one tensor. Call Close when done: the loaded tensors don't reference the mapped memory.
type SampleLoader struct {
	opts     LoadOptions
	mappings map[string]*mmap.ReaderAt
	mu       sync.Mutex
}

// NewSampleLoader creates a loader with the given options.
func NewSampleLoader(opts LoadOptions) *SampleLoader {
	return &SampleLoader{
		opts:     opts,
		mappings: make(map[string]*mmap.ReaderAt),
	}
}

// LoadReference loads the test tensor referenced in a descriptor.
func (l *SampleLoader) LoadReference(ref rdf.FileReference) (*tensors.Tensor, error) {
	return l.Load(FileSourceFromReference(ref, l.opts.BaseDir))
}

// Load decodes the .npy contents of src.
//
// It returns ErrUrlUnsupported for URL sources, and a *ReadNpyError if the contents can't be read or decoded.
func (l *SampleLoader) Load(src FileSource) (*tensors.Tensor, error) {
	var (
		t   *tensors.Tensor
		err error
	)
	switch src.Kind {
	case URLSource:
		return nil, ErrUrlUnsupported
	case DataSource:
		t, err = numpy.FromNpyReader(bytes.NewReader(src.Data))
	case LocalFileSource:
		if l.opts.UseMmap {
			var reader *mmap.ReaderAt
			reader, err = l.getOrCreateMapping(src.Path)
			if err == nil {
				t, err = numpy.FromNpyReader(io.NewSectionReader(reader, 0, int64(reader.Len())))
			}
		} else {
			t, err = numpy.FromNpyFile(src.Path)
		}
	default:
		err = errors.Errorf("invalid file source kind %d", src.Kind)
	}
	if err != nil {
		return nil, &ReadNpyError{Source: src.String(), Err: err}
	}
	klog.V(2).Infof("loaded test tensor %s from %s", t.Shape(), src)
	return t, nil
}

// getOrCreateMapping returns the memory mapping for the given path, creating it if necessary.
func (l *SampleLoader) getOrCreateMapping(path string) (*mmap.ReaderAt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if reader, ok := l.mappings[path]; ok {
		return reader, nil
	}
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mmap %q", path)
	}
	l.mappings[path] = reader
	return reader, nil
}

// Close unmaps all memory mapped files. The loader can still be used afterwards.
func (l *SampleLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for path, reader := range l.mappings {
		if err := reader.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "failed to close mmap for %q", path)
		}
	}
	l.mappings = make(map[string]*mmap.ReaderAt)
	return firstErr
}

// NewModelInterfaceFromDescr loads the test tensor of every input and output of descr and calls NewModelInterface.
//
// Besides the errors of NewModelInterface, it returns ErrUrlUnsupported or *ReadNpyError if a test tensor can't be
// loaded. Tensors are loaded in order, inputs first, and loading stops at the first failure.
func NewModelInterfaceFromDescr(descr *rdf.ModelDescr, opts LoadOptions) (*ModelInterface, error) {
	if len(descr.Inputs) == 0 {
		return nil, ErrEmptyInputs
	}
	if len(descr.Outputs) == 0 {
		return nil, ErrEmptyOutputs
	}
	loader := NewSampleLoader(opts)
	defer func() {
		if err := loader.Close(); err != nil {
			klog.Warningf("closing sample loader: %v", err)
		}
	}()

	inputs := make([]InputSlot, len(descr.Inputs))
	for ii, input := range descr.Inputs {
		t, err := loader.LoadReference(input.TestTensor)
		if err != nil {
			return nil, errors.WithMessagef(err, "test tensor of input %q", input.Id)
		}
		inputs[ii] = InputSlot{Descr: input, TestTensor: t}
	}
	outputs := make([]OutputSlot, len(descr.Outputs))
	for ii, output := range descr.Outputs {
		t, err := loader.LoadReference(output.TestTensor)
		if err != nil {
			return nil, errors.WithMessagef(err, "test tensor of output %q", output.Id)
		}
		outputs[ii] = OutputSlot{Descr: output, TestTensor: t}
	}
	return NewModelInterface(inputs, outputs)
}
