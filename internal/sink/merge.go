package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
)

// merge concatenates the worker temp files into the final chunk files: for
// each chunk index in ascending order, the temp files of workers 1..K are
// appended in worker-id order, then removed.  Chunk record counts are the
// sums of the per-worker counts.
func (p *ParallelWriter) merge() ([]ChunkInfo, error) {
	last := 0
	for _, m := range p.maxChunk {
		if m > last {
			last = m
		}
	}
	var chunks []ChunkInfo
	for c := 1; c <= last; c++ {
		var records uint64
		for w := range p.counts {
			records += p.counts[w][c]
		}
		if records == 0 {
			continue
		}
		info, err := p.mergeChunk(c, records)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, info)
	}
	return chunks, nil
}

func (p *ParallelWriter) mergeChunk(chunk int, records uint64) (ChunkInfo, error) {
	var path string
	var out io.Writer
	var file *os.File
	switch {
	case p.cfg.Split > 0:
		path = ChunkPath(p.cfg.Prefix, chunk, p.cfg.Mode, p.cfg.Gzip)
	case p.cfg.OutPath == "-":
		path = "-"
		out = os.Stdout
	default:
		path = p.cfg.OutPath
		if p.cfg.Gzip {
			path += ".gz"
		}
	}
	if out == nil {
		f, err := os.Create(path)
		if err != nil {
			return ChunkInfo{}, fmt.Errorf("cannot create chunk file: %w", err)
		}
		file = f
		out = f
	}
	buf := bufio.NewWriter(out)
	var dst io.Writer = buf
	var gz *gzip.Writer
	if p.cfg.Gzip {
		gz = gzip.NewWriter(buf)
		dst = gz
	}
	digest := xxhash.New()
	dst = io.MultiWriter(dst, digest)

	for w := 1; w <= p.workers; w++ {
		if err := appendFile(dst, p.tempPath(chunk, w)); err != nil {
			if file != nil {
				file.Close()
			}
			return ChunkInfo{}, err
		}
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			if file != nil {
				file.Close()
			}
			return ChunkInfo{}, fmt.Errorf("write failed: %w", err)
		}
	}
	if err := buf.Flush(); err != nil {
		if file != nil {
			file.Close()
		}
		return ChunkInfo{}, fmt.Errorf("write failed: %w", err)
	}
	if file != nil {
		if err := file.Close(); err != nil {
			return ChunkInfo{}, fmt.Errorf("close failed: %w", err)
		}
	}
	for w := 1; w <= p.workers; w++ {
		os.Remove(p.tempPath(chunk, w))
	}
	return ChunkInfo{Path: path, Records: records, Digest: digest.Sum64()}, nil
}

// appendFile copies the contents of path to dst.  A missing file means the
// worker never saw an element of this chunk and is skipped.
func appendFile(dst io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cannot open temp file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	return nil
}
