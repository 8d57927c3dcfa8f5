package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const maxStderrBytes = 8 * 1024

type Command struct {
	Name   string
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// CommandRunner runs a single subprocess to completion. The returned error is
// only non-nil if the process could not be run at all, in which case the exit
// code is -1. A process that ran and exited non-zero returns its exit code and
// a nil error.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (int, error)
}

type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, c Command) (int, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	slog.Debug("executing command", "cmd", c.String())

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			slog.Debug("command exited with non-zero status", "cmd", c.Name, "exit_code", exitErr.ExitCode(), "duration_ms", elapsed.Milliseconds())
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}

	slog.Debug("command completed", "cmd", c.Name, "duration_ms", elapsed.Milliseconds())
	return 0, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last limit bytes written to it.
type limitedWriter struct {
	buf   bytes.Buffer
	limit int
}

func newLimitedWriter(limit int) *limitedWriter {
	return &limitedWriter{limit: limit}
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.buf.Write(p)
	if lw.buf.Len() > lw.limit {
		b := lw.buf.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.buf.Reset()
		lw.buf.Write(tail)
	}
	return n, nil
}

func (lw *limitedWriter) String() string {
	return lw.buf.String()
}

// lineLogger logs every complete line written to it.
type lineLogger struct {
	mu      sync.Mutex
	pending []byte
	logger  *slog.Logger
	stream  string
}

func newLineLogger(logger *slog.Logger, stream string) *lineLogger {
	return &lineLogger{logger: logger, stream: stream}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, p...)
	for {
		idx := bytes.IndexByte(l.pending, '\n')
		if idx < 0 {
			break
		}
		l.emit(l.pending[:idx])
		l.pending = l.pending[idx+1:]
	}
	return len(p), nil
}

func (l *lineLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) > 0 {
		l.emit(l.pending)
		l.pending = nil
	}
}

func (l *lineLogger) emit(line []byte) {
	text := strings.TrimRight(string(line), "\r")
	if text == "" {
		return
	}
	l.logger.Debug(text, "stream", l.stream)
}
