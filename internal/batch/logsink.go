package batch

import (
	"fmt"
	"io"

	"github.com/gwlsn/webpq/internal/model"
)

// logLine is one completed image's outcome, submitted by a worker and
// consumed by the sink's single writer goroutine.
type logLine struct {
	path string
	meta model.OutMeta
	err  error
}

// LogSink serializes per-image log output without a shared mutex:
// workers submit completed records over a channel, and one goroutine
// owns the writer, so lines from concurrent workers never interleave.
type LogSink struct {
	lines chan logLine
	done  chan struct{}
	out   io.Writer
}

// NewLogSink starts the sink's writer goroutine, which runs until Close.
func NewLogSink(out io.Writer) *LogSink {
	s := &LogSink{
		lines: make(chan logLine, 64),
		done:  make(chan struct{}),
		out:   out,
	}
	go s.run()
	return s
}

func (s *LogSink) run() {
	defer close(s.done)
	for line := range s.lines {
		if line.err != nil {
			fmt.Fprintf(s.out, "FAILED %s: %v\n", line.path, line.err)
			continue
		}
		fmt.Fprintf(s.out, "OK %s class=%s end_q=%d passed=%t score=%.2f\n",
			line.path, line.meta.Class, line.meta.EndQ, line.meta.Passed, line.meta.Score)
	}
}

// Submit queues a completed record. Safe to call from any worker goroutine.
func (s *LogSink) Submit(path string, meta model.OutMeta, err error) {
	s.lines <- logLine{path: path, meta: meta, err: err}
}

// Close stops accepting new records and blocks until the writer
// goroutine has drained the channel.
func (s *LogSink) Close() {
	close(s.lines)
	<-s.done
}
