package jsonextract

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestRunNDJSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.ndjson")
	res, err := Run(Config{
		Input:  writeInput(t, `{"accounts":[{"id":1},{"id":2}]}`),
		Output: out,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2), res.Elements)
	require.Equal(t, []string{`{"id":1}`, `{"id":2}`}, readLines(t, out))
}

func TestRunSplit(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "x")
	res, err := Run(Config{
		Input:       writeInput(t, `{"accounts":[{"id":1},{"id":2},{"id":3}]}`),
		SplitLines:  2,
		SplitPrefix: prefix,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(3), res.Elements)
	require.Equal(t, []string{`{"id":1}`, `{"id":2}`}, readLines(t, prefix+"_00001.ndjson"))
	require.Equal(t, []string{`{"id":3}`}, readLines(t, prefix+"_00002.ndjson"))
	_, err = os.Stat(prefix + "_00003.ndjson")
	require.True(t, os.IsNotExist(err))
	require.Len(t, res.Chunks, 2)
}

func TestRunCustomKeyMixedValues(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.ndjson")
	res, err := Run(Config{
		Input:  writeInput(t, `{"a":[1,"two",[3,4],{"k":"}"}]}`),
		Output: out,
		Key:    "a",
		KeySet: true,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(4), res.Elements)
	require.Equal(t, []string{`1`, `"two"`, `[3,4]`, `{"k":"}"}`}, readLines(t, out))
}

func TestRunTopLevelArray(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.ndjson")
	res, err := Run(Config{
		Input:  writeInput(t, `[10,20,30]`),
		Output: out,
		KeySet: true, // empty key: first top-level array
	})
	require.NoError(t, err)
	require.Equal(t, uint64(3), res.Elements)
	require.Equal(t, []string{"10", "20", "30"}, readLines(t, out))
}

func TestRunTruncated(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.ndjson")
	_, err := Run(Config{
		Input:  writeInput(t, `{"accounts":[`),
		Output: out,
	})
	require.ErrorIs(t, err, ErrTruncatedElement)
	require.Equal(t, 1, ExitCode(err))
}

func TestRunTargetNotFound(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.ndjson")
	_, err := Run(Config{
		Input:  writeInput(t, `{"other":[1]}`),
		Output: out,
	})
	require.ErrorIs(t, err, ErrTargetNotFound)
	require.Equal(t, 1, ExitCode(err))
}

func TestRunEmptyArray(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(Config{
		Input:       writeInput(t, `{"accounts":[]}`),
		SplitLines:  10,
		SplitPrefix: filepath.Join(dir, "x"),
	})
	require.NoError(t, err)
	require.Zero(t, res.Elements)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunJSONArrayMode(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.json")
	_, err := Run(Config{
		Input:  writeInput(t, `{"accounts":[{"id":1},{"id":2}]}`),
		Output: out,
		Mode:   JSONArray,
	})
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, `[{"id":1},{"id":2}]`, string(data))
}

func TestRunCountOnly(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"accounts":[1,2,3,4]}`), 0o644))
	res, err := Run(Config{Input: input, CountOnly: true})
	require.NoError(t, err)
	require.Equal(t, uint64(4), res.Elements)
	require.Empty(t, res.Chunks)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1) // only the input file
}

func TestRunGzipInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.json.gz")
	f, err := os.Create(input)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(`{"accounts":[{"id":1},{"id":2}]}`))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "out.ndjson")
	res, err := Run(Config{Input: input, Output: out})
	require.NoError(t, err)
	require.Equal(t, uint64(2), res.Elements)
	require.Equal(t, []string{`{"id":1}`, `{"id":2}`}, readLines(t, out))
}

func TestRunParallel(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "x")
	var sb strings.Builder
	sb.WriteString(`{"accounts":[`)
	var want []string
	for i := 1; i <= 50; i++ {
		if i > 1 {
			sb.WriteByte(',')
		}
		elt := `{"id":` + strings.Repeat("9", i%7+1) + `}`
		sb.WriteString(elt)
		want = append(want, elt)
	}
	sb.WriteString(`]}`)

	tmp := t.TempDir()
	res, err := Run(Config{
		Input:       writeInput(t, sb.String()),
		SplitLines:  8,
		SplitPrefix: prefix,
		Workers:     4,
		TempDir:     tmp,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(50), res.Elements)
	require.Len(t, res.Chunks, 7)

	var got []string
	for _, c := range res.Chunks {
		got = append(got, readLines(t, c.Path)...)
	}
	sort.Strings(got)
	sort.Strings(want)
	require.Equal(t, want, got)

	// The per-run temp directory is cleaned up.
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunElementLargerThanBuffer(t *testing.T) {
	big := `{"data":"` + strings.Repeat("x", 5000) + `"}`
	out := filepath.Join(t.TempDir(), "out.ndjson")
	res, err := Run(Config{
		Input:      writeInput(t, `{"accounts":[`+big+`]}`),
		Output:     out,
		BufferSize: 256,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Elements)
	require.Equal(t, []string{big}, readLines(t, out))
}

func TestRunMissingInput(t *testing.T) {
	_, err := Run(Config{
		Input:  filepath.Join(t.TempDir(), "nope.json"),
		Output: "-",
	})
	require.Error(t, err)
	require.Equal(t, 2, ExitCode(err))
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no input", Config{Output: "out"}},
		{"split without prefix", Config{Input: "in", SplitLines: 10}},
		{"prefix without split", Config{Input: "in", Output: "out", SplitPrefix: "p"}},
		{"split with output file", Config{Input: "in", Output: "out", SplitLines: 10, SplitPrefix: "p"}},
		{"no destination", Config{Input: "in"}},
		{"workers in array mode", Config{Input: "in", Output: "out", Mode: JSONArray, Workers: 4}},
		{"no-flatten in array mode", Config{Input: "in", Output: "out", Mode: JSONArray, NoFlatten: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(tt.cfg)
			require.ErrorIs(t, err, ErrBadConfig)
			require.Equal(t, 2, ExitCode(err))
		})
	}
}

// Concatenating all shard records and rewrapping them as an array yields
// the original target array.
func TestRunRoundTrip(t *testing.T) {
	input := `{"accounts":[{"a":1},{"b":[2,3]},"four",5,null,true]}`
	prefix := filepath.Join(t.TempDir(), "rt")
	res, err := Run(Config{
		Input:       writeInput(t, input),
		SplitLines:  2,
		SplitPrefix: prefix,
	})
	require.NoError(t, err)
	var records []string
	for _, c := range res.Chunks {
		records = append(records, readLines(t, c.Path)...)
	}
	rewrapped := "[" + strings.Join(records, ",") + "]"
	require.Equal(t, `[{"a":1},{"b":[2,3]},"four",5,null,true]`, rewrapped)
}
