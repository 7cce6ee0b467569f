package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/tokenbroker/internal/metrics"
)

func goid() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	buf = buf[:bytes.IndexByte(buf, ' ')]
	id, _ := strconv.ParseUint(string(buf), 10, 64)
	return id
}

type recordingHost struct {
	mu        sync.Mutex
	outputs   []string
	errs      []error
	goroutine []uint64

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	promptAnswer string
	blockPrompt  bool
}

func (h *recordingHost) enter() func() {
	n := h.inFlight.Add(1)
	for {
		cur := h.maxInFlight.Load()
		if n <= cur || h.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	h.mu.Lock()
	h.goroutine = append(h.goroutine, goid())
	h.mu.Unlock()
	return func() { h.inFlight.Add(-1) }
}

func (h *recordingHost) WriteOutput(_ context.Context, msg string) error {
	defer h.enter()()
	time.Sleep(time.Millisecond)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outputs = append(h.outputs, msg)
	return nil
}

func (h *recordingHost) WriteWarning(ctx context.Context, msg string) error {
	return h.WriteOutput(ctx, "warning: "+msg)
}

func (h *recordingHost) WriteError(_ context.Context, err error) error {
	defer h.enter()()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
	return nil
}

func (h *recordingHost) Prompt(ctx context.Context, _ string, _ bool) (string, error) {
	defer h.enter()()
	if h.blockPrompt {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return h.promptAnswer, nil
}

func (h *recordingHost) Stopping(context.Context) bool {
	defer h.enter()()
	return false
}

type slot struct {
	mu   sync.Mutex
	host Host
}

func (s *slot) Host() Host {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

func (s *slot) SetHost(h Host) Host {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.host
	s.host = h
	return prev
}

func newBridge(t *testing.T, host *recordingHost, opts ...Option) (*Bridge, *slot) {
	t.Helper()
	s := &slot{host: host}
	b, err := New(s, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, s
}

func TestNewRequiresHost(t *testing.T) {
	t.Parallel()

	_, err := New(&slot{})
	assert.ErrorIs(t, err, ErrNoHost)
}

func TestBridgeInstallsAndRestores(t *testing.T) {
	t.Parallel()

	host := &recordingHost{}
	b, s := newBridge(t, host)

	assert.Same(t, b, s.Host())
	assert.Same(t, host, b.Original())

	require.NoError(t, b.Close())
	assert.Same(t, host, s.Host())

	// A second Close must not clobber a host installed afterwards.
	other := &recordingHost{}
	s.SetHost(other)
	require.NoError(t, b.Close())
	assert.Same(t, other, s.Host())
}

func TestForegroundCallsForwardDirectly(t *testing.T) {
	t.Parallel()

	host := &recordingHost{promptAnswer: "yes"}
	b, _ := newBridge(t, host)

	// No Run loop is active; a marshaled call would block forever.
	require.NoError(t, b.WriteOutput(context.Background(), "hello"))
	answer, err := b.Prompt(context.Background(), "continue?", false)
	require.NoError(t, err)
	assert.Equal(t, "yes", answer)
	assert.Equal(t, []string{"hello"}, host.outputs)
	assert.Equal(t, []uint64{goid(), goid()}, host.goroutine)
}

func TestBackgroundCallsRunOnRunGoroutine(t *testing.T) {
	t.Parallel()

	host := &recordingHost{}
	rec := metrics.NewRecorder()
	b, _ := newBridge(t, host, WithMetrics(rec))

	const workers = 8
	const perWorker = 5
	runner := goid()

	err := b.Run(context.Background(), func(ctx context.Context) error {
		assert.True(t, b.IsBackground(ctx))
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					assert.NoError(t, b.WriteOutput(ctx, fmt.Sprintf("%d-%d", w, i)))
				}
			}(w)
		}
		wg.Wait()
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, host.outputs, workers*perWorker)
	assert.EqualValues(t, 1, host.maxInFlight.Load())
	for _, id := range host.goroutine {
		assert.Equal(t, runner, id)
	}
	expected := fmt.Sprintf(`
# HELP tokenbroker_host_calls_total Total number of host calls marshaled to the foreground
# TYPE tokenbroker_host_calls_total counter
tokenbroker_host_calls_total{kind="output"} %d
`, workers*perWorker)
	assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "tokenbroker_host_calls_total"))
}

func TestRunReturnsPromptAnswer(t *testing.T) {
	t.Parallel()

	host := &recordingHost{promptAnswer: "hunter2"}
	b, _ := newBridge(t, host)

	var answer string
	err := b.Run(context.Background(), func(ctx context.Context) error {
		var err error
		answer, err = b.Prompt(ctx, "password", true)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", answer)
}

func TestRunCancellationUnblocksWaiters(t *testing.T) {
	t.Parallel()

	host := &recordingHost{blockPrompt: true}
	b, _ := newBridge(t, host)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	workerDone := make(chan error, 1)

	go func() {
		<-started
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := b.Run(ctx, func(ctx context.Context) error {
		close(started)
		_, err := b.Prompt(ctx, "blocked", false)
		workerDone <- err
		return err
	})
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case werr := <-workerDone:
		assert.ErrorIs(t, werr, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("background caller was not released")
	}
}

func TestCancelStopsRun(t *testing.T) {
	t.Parallel()

	host := &recordingHost{}
	b, _ := newBridge(t, host)

	done := make(chan error, 1)
	go func() {
		done <- b.Run(context.Background(), func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	time.Sleep(10 * time.Millisecond)
	b.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Cancel")
	}

	// Calls after Cancel fail instead of blocking.
	err := b.WriteOutput(context.WithValue(context.Background(), backgroundKey{}, b), "late")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSurfacesAllButLastLeaf(t *testing.T) {
	t.Parallel()

	host := &recordingHost{}
	b, _ := newBridge(t, host)

	first := errors.New("first")
	second := errors.New("second")
	last := errors.New("last")

	err := b.Run(context.Background(), func(context.Context) error {
		return errors.Join(first, errors.Join(second, last))
	})
	assert.Same(t, last, err)
	assert.Equal(t, []error{first, second}, host.errs)
}

func TestRunSingleErrorReturnedAsIs(t *testing.T) {
	t.Parallel()

	host := &recordingHost{}
	b, _ := newBridge(t, host)

	boom := fmt.Errorf("wrapped: %w", errors.New("boom"))
	err := b.Run(context.Background(), func(context.Context) error { return boom })
	assert.Same(t, boom, err)
	assert.Empty(t, host.errs)
}

func TestRunRecoversPanic(t *testing.T) {
	t.Parallel()

	host := &recordingHost{}
	b, _ := newBridge(t, host)

	err := b.Run(context.Background(), func(context.Context) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}
