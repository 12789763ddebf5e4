package worker_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lambda-feedback/respawn/internal/execution/worker"
)

type recordingSink struct {
	mu     sync.Mutex
	chunks map[worker.Stream][]byte
}

func newRecordingSink() *recordingSink {
	return &recordingSink{chunks: map[worker.Stream][]byte{}}
}

func (s *recordingSink) Write(stream worker.Stream, chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks[stream] = append(s.chunks[stream], chunk...)
}

func (s *recordingSink) String(stream worker.Stream) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return string(s.chunks[stream])
}

func TestWorker_Start_IsAlive(t *testing.T) {
	w := worker.NewProcessWorker(worker.StartConfig{Command: "sleep 10"}, nil, zap.NewNop())

	err := w.Start(context.Background())
	require.NoError(t, err)

	defer w.Signal(syscall.SIGKILL)

	pid := w.Pid()
	require.NotZero(t, pid, "pid should be set after Start")

	assert.True(t, w.Alive())
	assert.NoError(t, syscall.Kill(pid, 0), "process should exist")
}

func TestWorker_Start_FailsIfStarted(t *testing.T) {
	w := worker.NewProcessWorker(worker.StartConfig{Command: "sleep 10"}, nil, zap.NewNop())

	err := w.Start(context.Background())
	require.NoError(t, err)

	defer w.Signal(syscall.SIGKILL)

	err = w.Start(context.Background())
	assert.ErrorIs(t, err, worker.ErrWorkerAlreadyStarted)
}

func TestWorker_Start_ReturnsErrorIfInvalidCommand(t *testing.T) {
	w := worker.NewProcessWorker(worker.StartConfig{Command: ""}, nil, zap.NewNop())

	err := w.Start(context.Background())
	assert.ErrorIs(t, err, worker.ErrInvalidCommand)
}

func TestWorker_Start_ReturnsErrorIfShellMissing(t *testing.T) {
	w := worker.NewProcessWorker(worker.StartConfig{
		Command: "true",
		Shell:   "/does/not/exist",
	}, nil, zap.NewNop())

	err := w.Start(context.Background())
	assert.Error(t, err)
	assert.False(t, w.Alive())
}

func TestWorker_Start_FailsIfContextCancelled(t *testing.T) {
	w := worker.NewProcessWorker(worker.StartConfig{Command: "sleep 10"}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, w.Pid())
}

func TestWorker_StreamsOutputToSink(t *testing.T) {
	sink := newRecordingSink()

	w := worker.NewProcessWorker(worker.StartConfig{
		Command: `echo out; >&2 echo err`,
	}, sink, zap.NewNop())

	err := w.Start(context.Background())
	require.NoError(t, err)

	evt, err := w.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, *evt.Code)
	assert.Equal(t, "out\n", sink.String(worker.Stdout))
	assert.Equal(t, "err\n", sink.String(worker.Stderr))
}

func TestWorker_PassesEnvAndCwd(t *testing.T) {
	sink := newRecordingSink()
	dir := t.TempDir()

	w := worker.NewProcessWorker(worker.StartConfig{
		Command: `echo "$RESPAWN_TEST_VALUE"; pwd`,
		Cwd:     dir,
		Env:     map[string]string{"RESPAWN_TEST_VALUE": "foobar"},
	}, sink, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))

	_, err := w.Wait(context.Background())
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	assert.Equal(t, "foobar\n"+resolved+"\n", sink.String(worker.Stdout))
}

func TestWorker_Wait_ReturnsExitCode(t *testing.T) {
	w := worker.NewProcessWorker(worker.StartConfig{Command: "exit 3"}, nil, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))

	evt, err := w.Wait(context.Background())
	require.NoError(t, err)

	require.NotNil(t, evt.Code)
	assert.Equal(t, 3, *evt.Code)
	assert.Nil(t, evt.Signal)
	assert.Equal(t, "exit code 3", evt.String())
}

func TestWorker_Wait_ReturnsErrorIfNotStarted(t *testing.T) {
	w := worker.NewProcessWorker(worker.StartConfig{Command: "true"}, nil, zap.NewNop())

	_, err := w.Wait(context.Background())
	assert.ErrorIs(t, err, worker.ErrWorkerNotStarted)
}

func TestWorker_Wait_ReturnsErrorIfContextCancelled(t *testing.T) {
	w := worker.NewProcessWorker(worker.StartConfig{Command: "sleep 10"}, nil, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))

	defer w.Signal(syscall.SIGKILL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := w.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorker_Signal_TerminatesProcess(t *testing.T) {
	w := worker.NewProcessWorker(worker.StartConfig{Command: "sleep 10"}, nil, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))

	err := w.Signal(syscall.SIGTERM)
	require.NoError(t, err)

	evt, err := w.Wait(context.Background())
	require.NoError(t, err)

	require.NotNil(t, evt.Signal)
	assert.Equal(t, syscall.SIGTERM, syscall.Signal(*evt.Signal))
	assert.Nil(t, evt.Code)

	assert.False(t, w.Alive())

	select {
	case <-w.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestWorker_Signal_ReturnsProcessDoneAfterExit(t *testing.T) {
	w := worker.NewProcessWorker(worker.StartConfig{Command: "true"}, nil, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))

	_, err := w.Wait(context.Background())
	require.NoError(t, err)

	err = w.Signal(syscall.SIGTERM)
	assert.ErrorIs(t, err, os.ErrProcessDone)
}

func TestWorker_Signal_ReturnsErrorIfNotStarted(t *testing.T) {
	w := worker.NewProcessWorker(worker.StartConfig{Command: "true"}, nil, zap.NewNop())

	err := w.Signal(syscall.SIGTERM)
	assert.ErrorIs(t, err, worker.ErrWorkerNotStarted)
}
