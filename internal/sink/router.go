// Package sink routes extracted array elements to output files: a single
// stream or size-sharded chunks, framed as NDJSON or as a JSON array, written
// by the caller's goroutine or by a pool of parallel workers.
package sink

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
)

// Mode selects the framing of the output.
type Mode int

const (
	// NDJSON writes one element per line.
	NDJSON Mode = iota
	// JSONArray writes elements as a comma-separated JSON array.
	JSONArray
)

// Ext returns the file extension for the mode.
func (m Mode) Ext() string {
	if m == JSONArray {
		return "json"
	}
	return "ndjson"
}

// Config describes an output pipeline.
type Config struct {
	Mode    Mode
	OutPath string // single-file output; "-" means stdout; unused when sharding
	Split   int    // elements per chunk; 0 disables sharding
	Prefix  string // shard path prefix; required when Split > 0

	// Flatten replaces LF and CR inside element bytes with a space, so
	// each NDJSON record is a single line even for pretty-printed input.
	// Ignored in JSONArray mode.
	Flatten bool

	// Gzip compresses output files, which get a ".gz" suffix.
	Gzip bool
}

// ChunkInfo describes one produced output file.  Digest is the xxhash64 of
// the uncompressed chunk payload.
type ChunkInfo struct {
	Path    string
	Records uint64
	Digest  uint64
}

// A Writer consumes elements and produces output files.
type Writer interface {
	// WriteElement appends one element.  The slice is only valid for the
	// duration of the call.
	WriteElement(elt []byte) error
	// Close finalizes all output files and reports them.
	Close() ([]ChunkInfo, error)
	// Abort stops writing without finalizing.  Already written output
	// files are left partial; temp files are removed.
	Abort()
}

// A Router writes elements sequentially: to a single file, or to lazily
// created chunk files of Split elements each.  A chunk file is only created
// once an element is routed to it, so no empty trailing chunk is ever left
// on disk.
type Router struct {
	cfg Config

	file    *os.File
	buf     *bufio.Writer
	gz      *gzip.Writer
	digest  *xxhash.Digest
	path    string
	started bool // JSONArray: '[' has been written to the current file

	chunkIndex int
	records    uint64
	chunks     []ChunkInfo

	scratch []byte
}

var _ Writer = &Router{}

// NewRouter sets up a sequential writer.  In single-file mode the output
// file is created immediately; shard files are created lazily.
func NewRouter(cfg Config) (*Router, error) {
	r := &Router{cfg: cfg, chunkIndex: 1}
	if cfg.Split > 0 {
		if err := ensureParentDir(cfg.Prefix); err != nil {
			return nil, err
		}
		return r, nil
	}
	if err := r.openSingle(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Router) openSingle() error {
	if r.cfg.OutPath == "-" {
		r.path = "-"
		r.attach(os.Stdout)
		return nil
	}
	if err := ensureParentDir(r.cfg.OutPath); err != nil {
		return err
	}
	path := r.cfg.OutPath
	if r.cfg.Gzip {
		path += ".gz"
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create output file: %w", err)
	}
	r.file = f
	r.path = path
	r.attach(f)
	return nil
}

func (r *Router) openChunk() error {
	path := ChunkPath(r.cfg.Prefix, r.chunkIndex, r.cfg.Mode, r.cfg.Gzip)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create chunk file: %w", err)
	}
	r.file = f
	r.path = path
	r.attach(f)
	return nil
}

// attach builds the write chain on top of w: bufio, then gzip when enabled,
// teeing uncompressed bytes into the digest.
func (r *Router) attach(w io.Writer) {
	r.buf = bufio.NewWriter(w)
	if r.cfg.Gzip {
		r.gz = gzip.NewWriter(r.buf)
	}
	r.digest = xxhash.New()
	r.started = false
	r.records = 0
}

func (r *Router) write(p []byte) error {
	var err error
	if r.gz != nil {
		_, err = r.gz.Write(p)
	} else {
		_, err = r.buf.Write(p)
	}
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	r.digest.Write(p)
	return nil
}

// WriteElement routes one element to the current output file, creating it
// if needed, and rolls over to the next chunk when the current one is full.
func (r *Router) WriteElement(elt []byte) error {
	if r.cfg.Split > 0 && r.file == nil {
		if err := r.openChunk(); err != nil {
			return err
		}
	}
	if r.cfg.Mode == NDJSON {
		if r.cfg.Flatten {
			elt = r.flatten(elt)
		}
		if err := r.write(elt); err != nil {
			return err
		}
		if err := r.write(lf); err != nil {
			return err
		}
	} else {
		if !r.started {
			if err := r.write(openBracket); err != nil {
				return err
			}
			r.started = true
		} else if err := r.write(comma); err != nil {
			return err
		}
		if err := r.write(elt); err != nil {
			return err
		}
	}
	r.records++
	if r.cfg.Split > 0 && r.records >= uint64(r.cfg.Split) {
		return r.closeCurrent()
	}
	return nil
}

// flatten copies the element into the scratch buffer with LF and CR
// replaced by spaces.  Elements without line breaks pass through untouched.
func (r *Router) flatten(elt []byte) []byte {
	if !bytes.ContainsAny(elt, "\r\n") {
		return elt
	}
	r.scratch = append(r.scratch[:0], elt...)
	for i, b := range r.scratch {
		if b == '\n' || b == '\r' {
			r.scratch[i] = ' '
		}
	}
	return r.scratch
}

// closeCurrent finishes the current output file and records its ChunkInfo.
func (r *Router) closeCurrent() error {
	if r.cfg.Mode == JSONArray {
		if !r.started {
			if err := r.write(openBracket); err != nil {
				return err
			}
		}
		if err := r.write(closeBracket); err != nil {
			return err
		}
	}
	if r.gz != nil {
		if err := r.gz.Close(); err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
		r.gz = nil
	}
	if err := r.buf.Flush(); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("close failed: %w", err)
		}
		r.file = nil
	}
	r.chunks = append(r.chunks, ChunkInfo{
		Path:    r.path,
		Records: r.records,
		Digest:  r.digest.Sum64(),
	})
	r.chunkIndex++
	r.records = 0
	return nil
}

// Close finalizes the output.  In single-file JSONArray mode an empty run
// still produces a valid empty array; in sharded mode an empty run produces
// no files at all.
func (r *Router) Close() ([]ChunkInfo, error) {
	if r.cfg.Split > 0 {
		if r.file != nil {
			if err := r.closeCurrent(); err != nil {
				return nil, err
			}
		}
		return r.chunks, nil
	}
	if err := r.closeCurrent(); err != nil {
		return nil, err
	}
	return r.chunks, nil
}

// Abort flushes what was written and closes the current file without
// finalizing it.
func (r *Router) Abort() {
	if r.buf == nil {
		return
	}
	if r.gz != nil {
		r.gz.Close()
		r.gz = nil
	}
	r.buf.Flush()
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
}

// ChunkPath names the i-th (1-based) chunk file for a prefix.
func ChunkPath(prefix string, i int, mode Mode, gz bool) string {
	path := fmt.Sprintf("%s_%05d.%s", prefix, i, mode.Ext())
	if gz {
		path += ".gz"
	}
	return path
}

func ensureParentDir(path string) error {
	if path == "" || path == "-" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}
	return nil
}

var (
	lf           = []byte{'\n'}
	comma        = []byte{','}
	openBracket  = []byte{'['}
	closeBracket = []byte{']'}
)
