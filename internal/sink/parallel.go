package sink

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// ErrWorkerFailure wraps the first error hit by a parallel worker.
var ErrWorkerFailure = errors.New("worker failure")

// A queueItem carries one element from the parser to the workers.  Seq is
// assigned in document order starting at 1 and determines the element's
// chunk.
type queueItem struct {
	seq uint64
	elt []byte
}

// A ParallelWriter fans NDJSON output across a pool of workers.  Each worker
// appends elements to its own per-chunk temp file; after the stream ends the
// temp files are concatenated into the final chunk files, per chunk in
// worker-id order.
//
// Within a single worker elements keep their document order, but no ordering
// holds across workers inside a chunk.  Callers that need strict document
// order must use a single worker (the Router).
type ParallelWriter struct {
	cfg        Config
	workers    int
	tmpDir     string
	safePrefix string

	queue chan queueItem
	pool  *ants.Pool
	wg    sync.WaitGroup

	abort    chan struct{}
	errOnce  sync.Once
	workErr  error
	counts   []map[int]uint64 // per worker: chunk index -> records
	maxChunk []int            // per worker: highest chunk touched

	seq     uint64
	scratch []byte
}

var _ Writer = &ParallelWriter{}

// NewParallelWriter starts the given number of NDJSON writer workers over a
// bounded queue.  tmpDir must exist and be private to this run.
func NewParallelWriter(cfg Config, workers int, tmpDir string) (*ParallelWriter, error) {
	if cfg.Mode != NDJSON {
		return nil, errors.New("parallel writing requires NDJSON mode")
	}
	if workers < 2 {
		return nil, errors.New("parallel writing requires at least 2 workers")
	}
	finalPath := cfg.OutPath
	if cfg.Split > 0 {
		finalPath = cfg.Prefix
		if err := ensureParentDir(cfg.Prefix); err != nil {
			return nil, err
		}
	} else if err := ensureParentDir(cfg.OutPath); err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	p := &ParallelWriter{
		cfg:        cfg,
		workers:    workers,
		tmpDir:     tmpDir,
		safePrefix: filepath.Base(finalPath),
		queue:      make(chan queueItem, queueDepth),
		pool:       pool,
		abort:      make(chan struct{}),
		counts:     make([]map[int]uint64, workers),
		maxChunk:   make([]int, workers),
	}
	for i := 0; i < workers; i++ {
		id := i + 1
		p.counts[i] = make(map[int]uint64)
		p.wg.Add(1)
		if err := pool.Submit(func() {
			defer p.wg.Done()
			p.runWorker(id)
		}); err != nil {
			p.wg.Done()
			close(p.queue)
			p.wg.Wait()
			pool.Release()
			return nil, fmt.Errorf("start worker: %w", err)
		}
	}
	return p, nil
}

// WriteElement assigns the next seq to the element and enqueues an owned
// copy.  It fails once any worker has failed.
func (p *ParallelWriter) WriteElement(elt []byte) error {
	if p.cfg.Flatten {
		elt = p.flatten(elt)
	}
	select {
	case <-p.abort:
		return p.workErr
	default:
	}
	p.seq++
	item := queueItem{seq: p.seq, elt: append([]byte(nil), elt...)}
	select {
	case p.queue <- item:
		return nil
	case <-p.abort:
		return p.workErr
	}
}

func (p *ParallelWriter) flatten(elt []byte) []byte {
	if !bytes.ContainsAny(elt, "\r\n") {
		return elt
	}
	p.scratch = append(p.scratch[:0], elt...)
	for i, b := range p.scratch {
		if b == '\n' || b == '\r' {
			p.scratch[i] = ' '
		}
	}
	return p.scratch
}

// chunkFor maps a seq to its 1-based chunk index.
func (p *ParallelWriter) chunkFor(seq uint64) int {
	if p.cfg.Split <= 0 {
		return 1
	}
	return int((seq-1)/uint64(p.cfg.Split)) + 1
}

// tempPath names a worker's temp file for one chunk.
func (p *ParallelWriter) tempPath(chunk, worker int) string {
	name := fmt.Sprintf("%s_%05d_w%02d.ndtmp", p.safePrefix, chunk, worker)
	return filepath.Join(p.tmpDir, name)
}

// runWorker drains the queue, appending each element line to the temp file
// of its chunk.  A small LRU of open handles bounds the worker's file
// descriptor usage however many chunks the stream spans.
func (p *ParallelWriter) runWorker(id int) {
	files := newHandleLRU(maxOpenHandles)
	for item := range p.queue {
		chunk := p.chunkFor(item.seq)
		w, err := files.get(p.tempPath(chunk, id))
		if err == nil {
			err = w.writeLine(item.elt)
		}
		if err != nil {
			p.fail(fmt.Errorf("%w: %v", ErrWorkerFailure, err))
			// Keep draining so the parser is never blocked on a full
			// queue; items are dropped.
			continue
		}
		p.counts[id-1][chunk]++
		if chunk > p.maxChunk[id-1] {
			p.maxChunk[id-1] = chunk
		}
	}
	if err := files.closeAll(); err != nil {
		p.fail(fmt.Errorf("%w: %v", ErrWorkerFailure, err))
	}
}

// fail records the first worker error and wakes the parser.
func (p *ParallelWriter) fail(err error) {
	p.errOnce.Do(func() {
		p.workErr = err
		close(p.abort)
	})
}

// Close ends the stream, joins the workers and runs the merge pass.  On
// worker failure the temp files are unlinked and the failure is returned.
func (p *ParallelWriter) Close() ([]ChunkInfo, error) {
	close(p.queue)
	p.wg.Wait()
	p.pool.Release()
	if p.workErr != nil {
		p.removeTemps()
		return nil, p.workErr
	}
	chunks, err := p.merge()
	if err != nil {
		p.removeTemps()
		return nil, err
	}
	return chunks, nil
}

// Abort stops the workers without merging and removes the temp files.
func (p *ParallelWriter) Abort() {
	close(p.queue)
	p.wg.Wait()
	p.pool.Release()
	p.removeTemps()
}

func (p *ParallelWriter) removeTemps() {
	for w := 1; w <= p.workers; w++ {
		for c := 1; c <= p.maxChunk[w-1]; c++ {
			os.Remove(p.tempPath(c, w))
		}
	}
}

const (
	queueDepth     = 256
	maxOpenHandles = 4
)
