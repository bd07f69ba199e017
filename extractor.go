package jsonextract

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/arnodel/jsonextract/internal/progress"
	"github.com/arnodel/jsonextract/internal/scanner"
	"github.com/arnodel/jsonextract/internal/sink"
)

// ChunkInfo describes one produced output file.
type ChunkInfo = sink.ChunkInfo

// Result reports the outcome of a run.
type Result struct {
	// Elements is the number of array elements extracted.
	Elements uint64
	// BytesRead is the number of input bytes consumed.
	BytesRead uint64
	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
	// Chunks lists the produced output files in order.  Empty for
	// count-only runs.
	Chunks []ChunkInfo
}

// Run locates the target array in the configured input and streams its
// elements to the configured output.  See Config for the knobs and ExitCode
// for the mapping of errors to process exit codes.
func Run(cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rep := progress.NewReporter(cfg.Verbose)
	rep.Configf("buffer size %d bytes, key %q", cfg.BufferSize, cfg.Key)

	in, closeIn, err := openInput(cfg.Input)
	if err != nil {
		return nil, err
	}
	defer closeIn()

	sc := scanner.NewScannerSize(in, cfg.BufferSize)
	if err := sc.SeekArray(cfg.Key); err != nil {
		return nil, err
	}

	w, tmpDir, err := newWriter(cfg)
	if err != nil {
		return nil, err
	}

	it := scanner.NewElementIterator(sc)
	var elements uint64
	for {
		elt, err := it.Next()
		if err != nil {
			abort(w, tmpDir)
			return nil, err
		}
		if elt == nil {
			break
		}
		elements++
		if w != nil {
			if err := w.WriteElement(elt); err != nil {
				abort(w, tmpDir)
				return nil, err
			}
		}
		rep.Tick(sc.BytesRead(), elements, recordsInChunk(elements, cfg.SplitLines))
	}

	var chunks []ChunkInfo
	if w != nil {
		chunks, err = w.Close()
		if err != nil {
			removeTempDir(tmpDir)
			return nil, err
		}
	}
	removeTempDir(tmpDir)

	res := &Result{
		Elements:  elements,
		BytesRead: sc.BytesRead(),
		Elapsed:   rep.Elapsed(),
		Chunks:    chunks,
	}
	rep.Summary(res.BytesRead, res.Elements, res.Elapsed, res.Chunks)
	return res, nil
}

// newWriter builds the configured output pipeline, plus the per-run temp
// directory when parallel writing is on.  Count-only runs get no writer.
func newWriter(cfg Config) (sink.Writer, string, error) {
	if cfg.CountOnly {
		return nil, "", nil
	}
	scfg := sink.Config{
		Mode:    sinkMode(cfg.Mode),
		OutPath: cfg.Output,
		Split:   cfg.SplitLines,
		Prefix:  cfg.SplitPrefix,
		Flatten: cfg.Mode == NDJSON && !cfg.NoFlatten,
		Gzip:    cfg.Gzip,
	}
	if cfg.Workers > 1 {
		tmpDir, err := os.MkdirTemp(cfg.TempDir, "jsonextract-")
		if err != nil {
			return nil, "", fmt.Errorf("cannot create temp directory: %w", err)
		}
		w, err := sink.NewParallelWriter(scfg, cfg.Workers, tmpDir)
		if err != nil {
			removeTempDir(tmpDir)
			return nil, "", err
		}
		return w, tmpDir, nil
	}
	w, err := sink.NewRouter(scfg)
	return w, "", err
}

func sinkMode(m Mode) sink.Mode {
	if m == JSONArray {
		return sink.JSONArray
	}
	return sink.NDJSON
}

// recordsInChunk is the number of elements routed to the chunk currently
// being filled, for progress reporting.
func recordsInChunk(elements uint64, split int) uint64 {
	if split <= 0 || elements == 0 {
		return elements
	}
	return (elements-1)%uint64(split) + 1
}

func abort(w sink.Writer, tmpDir string) {
	if w != nil {
		w.Abort()
	}
	removeTempDir(tmpDir)
}

func removeTempDir(tmpDir string) {
	if tmpDir != "" {
		os.RemoveAll(tmpDir)
	}
}

// openInput opens the input stream, decompressing files with a ".gz"
// suffix.  "-" means stdin.
func openInput(path string) (io.Reader, func() error, error) {
	if path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open input: %w", err)
	}
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("cannot read gzip input: %w", err)
		}
		return gz, func() error {
			gz.Close()
			return f.Close()
		}, nil
	}
	return f, f.Close, nil
}
