// Command jx extracts the elements of a JSON array embedded in a large JSON
// document and writes them as NDJSON or as a JSON array, optionally sharded
// into chunk files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arnodel/jsonextract"
)

var version = "dev"

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(jsonextract.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	var (
		in         string
		out        string
		key        string
		ndjson     bool
		splitLines int
		prefix     string
		bufSize    int
		workers    int
		tmpDir     string
		gz         bool
		countOnly  bool
		verbose    bool
		noFlatten  bool
	)

	cmd := &cobra.Command{
		Use:     "jx",
		Short:   "Extract the elements of a JSON array from a large document",
		Version: version,
		Long: `jx streams a JSON document, locates the array under the given key
("accounts" by default, or the first top-level array with --key ""), and
writes each element verbatim to NDJSON or JSON-array output.

The document is scanned once with bounded memory, so inputs of any size
work, including from stdin.`,
		Example: `  jx --in dump.json --out accounts.ndjson
  jx --in dump.json --key users --split-lines 100000 --split-prefix out/users
  cat dump.json | jx --in - --out - --key ""
  jx --in dump.json --count-only`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := jsonextract.NDJSON
			if !ndjson {
				mode = jsonextract.JSONArray
			}
			cfg := jsonextract.Config{
				Input:       in,
				Output:      out,
				Key:         key,
				KeySet:      cmd.Flags().Changed("key"),
				Mode:        mode,
				BufferSize:  bufSize,
				SplitLines:  splitLines,
				SplitPrefix: prefix,
				Workers:     workers,
				TempDir:     tmpDir,
				Gzip:        gz,
				CountOnly:   countOnly,
				Verbose:     verbose,
				NoFlatten:   noFlatten,
			}
			res, err := jsonextract.Run(cfg)
			if err != nil {
				return err
			}
			switch {
			case countOnly && cfg.Key != "":
				fmt.Printf("Total records under key %q: %d\n", cfg.Key, res.Elements)
			case countOnly:
				fmt.Printf("Total records: %d\n", res.Elements)
			case !verbose:
				fmt.Fprintf(os.Stderr, "Done. Wrote %d records.\n", res.Elements)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&in, "in", "", "input JSON file, or - for stdin (required)")
	flags.StringVar(&out, "out", "", "output file, or - for stdout")
	flags.StringVar(&key, "key", jsonextract.DefaultKey, `array key to extract; "" targets the first top-level array`)
	flags.BoolVar(&ndjson, "ndjson", true, "write one element per line (--ndjson=false for a JSON array)")
	flags.IntVar(&splitLines, "split-lines", 0, "elements per chunk file; 0 disables sharding")
	flags.StringVar(&prefix, "split-prefix", "", "chunk file path prefix (required with --split-lines)")
	flags.IntVar(&bufSize, "buffer", jsonextract.DefaultBufferSize, "read buffer size in bytes")
	flags.IntVar(&workers, "workers", 1, "parallel NDJSON writers; >1 relaxes ordering within chunks")
	flags.StringVar(&tmpDir, "tmpdir", "", "temp directory for parallel mode")
	flags.BoolVar(&gz, "gzip", false, "gzip-compress output files")
	flags.BoolVar(&countOnly, "count-only", false, "count elements without writing output")
	flags.BoolVar(&verbose, "verbose", false, "report progress and a final summary")
	flags.BoolVar(&noFlatten, "no-flatten", false, "keep line breaks inside NDJSON records")

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", jsonextract.ErrBadConfig, err)
	})
	return cmd
}
