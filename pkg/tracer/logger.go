package tracer

import (
	"fmt"
	"io"
	"os"
)

// Logger receives ThreadTracer and Profiler warnings — a tracee that vanishes
// before its first continue, a clone hand-off that fails — the way the
// teacher's Logger narrated syscall entry/exit: a small interface over an
// io.Writer, not a logging framework. Only Warnf is called; attach, detach
// and successful clone events are not logged, and per-sample failures go to
// the sink's InfoLine instead.
// Nothing in the retrieved corpus reaches for logrus/zap/zerolog for this
// kind of component-internal narration, so neither do we.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// StreamLogger logs to an io.Writer.
type StreamLogger struct {
	Out io.Writer
}

// NewStreamLogger creates a logger writing to out.
func NewStreamLogger(out io.Writer) *StreamLogger {
	return &StreamLogger{Out: out}
}

func (l *StreamLogger) Infof(format string, args ...any) {
	fmt.Fprintf(l.Out, "[tracer] "+format+"\n", args...)
}

func (l *StreamLogger) Warnf(format string, args ...any) {
	fmt.Fprintf(l.Out, "[tracer] WARN "+format+"\n", args...)
}

// FileLogger logs to a file, reopened on each process start.
type FileLogger struct {
	*StreamLogger
	file *os.File
}

// NewFileLogger creates a logger appending to the file at path.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		StreamLogger: NewStreamLogger(f),
		file:         f,
	}, nil
}

func (l *FileLogger) Close() error {
	return l.file.Close()
}

// nopLogger discards everything; used when no Logger is configured.
type nopLogger struct{}

func (nopLogger) Infof(string, ...any) {}
func (nopLogger) Warnf(string, ...any) {}
