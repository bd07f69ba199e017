// Package progress reports extraction rates while a run is in flight and a
// summary when it ends.
package progress

import (
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arnodel/jsonextract/internal/sink"
)

// A Reporter emits at most one progress line per second plus a final
// summary.  All output goes to stderr so stdout stays available for data.
// Progress lines are only shown on a terminal; the summary is always logged
// when the reporter is enabled.
type Reporter struct {
	log     *zap.SugaredLogger
	enabled bool
	tty     bool
	start   time.Time
	last    time.Time
}

// NewReporter builds a reporter.  A disabled reporter is silent but still
// tracks elapsed time.
func NewReporter(enabled bool) *Reporter {
	now := time.Now()
	return &Reporter{
		log:     newLogger(),
		enabled: enabled,
		tty:     isatty.IsTerminal(os.Stderr.Fd()),
		start:   now,
		last:    now,
	}
}

func newLogger() *zap.SugaredLogger {
	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		zap.NewAtomicLevelAt(zapcore.InfoLevel),
	)).Sugar()
}

// Tick reports the current counters, rate-limited to one line per second.
func (r *Reporter) Tick(bytesRead, elements, recordsInChunk uint64) {
	if !r.enabled || !r.tty {
		return
	}
	now := time.Now()
	if now.Sub(r.last) < time.Second {
		return
	}
	r.last = now
	elapsed := now.Sub(r.start).Seconds()
	r.log.Infof("processed %d elements (%s read, %.0f elements/s, %d in current chunk)",
		elements, humanize.IBytes(bytesRead), float64(elements)/elapsed, recordsInChunk)
}

// Elapsed returns the time since the reporter was created.
func (r *Reporter) Elapsed() time.Duration {
	return time.Since(r.start)
}

// Summary reports final totals and, when sharded, the produced chunk files.
func (r *Reporter) Summary(bytesRead, elements uint64, elapsed time.Duration, chunks []sink.ChunkInfo) {
	if !r.enabled {
		return
	}
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = 1e-9
	}
	r.log.Infof("done: %d elements, %s read in %.2fs (%.0f elements/s, %s/s)",
		elements, humanize.IBytes(bytesRead), secs,
		float64(elements)/secs, humanize.IBytes(uint64(float64(bytesRead)/secs)))
	for _, c := range chunks {
		r.log.Infof("  %s: %d records (xxh64 %016x)", c.Path, c.Records, c.Digest)
	}
}

// Configf logs a configuration echo line.
func (r *Reporter) Configf(format string, args ...any) {
	if !r.enabled {
		return
	}
	r.log.Infof(format, args...)
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	MessageKey:     "message",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
}
