package jsonextract

import (
	"fmt"
)

// Mode selects the output framing.
type Mode int

const (
	// NDJSON writes one element per line.
	NDJSON Mode = iota
	// JSONArray writes elements as a comma-separated JSON array.
	JSONArray
)

const (
	// DefaultKey is the array key extracted when none is given.
	DefaultKey = "accounts"

	// DefaultBufferSize is the read buffer size when none is given.
	DefaultBufferSize = 4 * 1024 * 1024
)

// Config describes one extraction run.  The zero value is not usable: at
// least Input and an output destination are required.
type Config struct {
	// Input is the path of the JSON document, or "-" for stdin.
	Input string

	// Output is the path of the single output file, or "-" for stdout.
	// Must be empty when sharding (SplitLines > 0); ignored when CountOnly
	// is set.
	Output string

	// Key is the name of the array to extract.  An empty key targets the
	// first top-level array.  Run applies DefaultKey when Key is empty and
	// KeySet is false.
	Key string

	// KeySet records that Key was given explicitly, so that an empty Key
	// means "top-level array" rather than "default".
	KeySet bool

	// Mode selects NDJSON or JSON-array framing.
	Mode Mode

	// BufferSize is the read buffer size in bytes; 0 means
	// DefaultBufferSize.
	BufferSize int

	// SplitLines is the number of elements per chunk file; 0 disables
	// sharding.
	SplitLines int

	// SplitPrefix is the chunk file path prefix; required when sharding.
	SplitPrefix string

	// Workers enables parallel NDJSON writing when > 1.  Parallel output
	// keeps no ordering across workers within a chunk; use 1 (the
	// default) when strict document order matters.
	Workers int

	// TempDir hosts the per-run temp directory for parallel mode; empty
	// means the OS default.
	TempDir string

	// Gzip compresses output files, which get a ".gz" suffix.  Input
	// files ending in ".gz" are decompressed regardless of this flag.
	Gzip bool

	// CountOnly scans and counts elements without writing any output.
	CountOnly bool

	// Verbose enables progress and summary reporting.
	Verbose bool

	// NoFlatten keeps line breaks inside NDJSON records instead of
	// replacing them with spaces.  Only meaningful in NDJSON mode, where
	// flattening is on by default so each record is a single line.
	NoFlatten bool
}

// withDefaults returns the config with defaults applied.
func (c Config) withDefaults() Config {
	if !c.KeySet && c.Key == "" {
		c.Key = DefaultKey
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}

// validate reports conflicting or incomplete settings.  All errors wrap
// ErrBadConfig.
func (c Config) validate() error {
	if c.Input == "" {
		return fmt.Errorf("%w: no input given", ErrBadConfig)
	}
	if c.SplitLines < 0 {
		return fmt.Errorf("%w: negative split size", ErrBadConfig)
	}
	if c.SplitLines > 0 && c.SplitPrefix == "" {
		return fmt.Errorf("%w: split requires a split prefix", ErrBadConfig)
	}
	if c.SplitLines == 0 && c.SplitPrefix != "" {
		return fmt.Errorf("%w: split prefix requires a split size", ErrBadConfig)
	}
	if c.SplitLines > 0 && c.Output != "" {
		return fmt.Errorf("%w: sharded output goes to the split prefix, not to an output file", ErrBadConfig)
	}
	if !c.CountOnly && c.SplitLines == 0 && c.Output == "" {
		return fmt.Errorf("%w: no output destination given", ErrBadConfig)
	}
	if c.Workers > 1 && c.Mode != NDJSON {
		return fmt.Errorf("%w: parallel workers require NDJSON mode", ErrBadConfig)
	}
	if c.NoFlatten && c.Mode != NDJSON {
		return fmt.Errorf("%w: newline flattening only applies to NDJSON mode", ErrBadConfig)
	}
	return nil
}
