package core

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) string {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestExecRunnerExitCodes(t *testing.T) {
	sh := requireShell(t)
	runner := NewExecRunner()
	ctx := context.Background()

	var stdout bytes.Buffer
	code, err := runner.Run(ctx, Command{Name: sh, Args: []string{"-c", "echo hello"}, Stdout: &stdout})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello\n", stdout.String())

	stderr := newLimitedWriter(maxStderrBytes)
	code, err = runner.Run(ctx, Command{Name: sh, Args: []string{"-c", "echo failed >&2; exit 3"}, Stderr: stderr})
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, "failed\n", stderr.String())
}

func TestExecRunnerMissingBinary(t *testing.T) {
	code, err := NewExecRunner().Run(context.Background(), Command{Name: "definitely-not-a-real-binary-xyz"})
	assert.Error(t, err)
	assert.Equal(t, -1, code)
}

func TestLineLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ll := newLineLogger(logger, "stdout")
	_, _ = ll.Write([]byte("Reading images\nProcessed 1"))
	_, _ = ll.Write([]byte("0 images\r\n\n"))
	_, _ = ll.Write([]byte("Elapsed time"))
	ll.Flush()

	out := buf.String()
	assert.Contains(t, out, `msg="Reading images"`)
	assert.Contains(t, out, `msg="Processed 10 images"`)
	assert.Contains(t, out, `msg="Elapsed time"`)
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("stream=stdout")))
}
