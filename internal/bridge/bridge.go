// Package bridge marshals host interactions from background work onto the
// goroutine that owns the host.
//
// A host (a terminal, an embedding application) is only safe to use from the
// goroutine that drives it. Work started through Run gets a context marked as
// background; host calls made with that context are queued one at a time to
// Run's goroutine and executed there. Calls made with any other context are
// forwarded directly.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/internal/metrics"
)

// Host receives output and answers prompts.
type Host interface {
	WriteOutput(ctx context.Context, msg string) error
	WriteWarning(ctx context.Context, msg string) error
	WriteError(ctx context.Context, err error) error
	Prompt(ctx context.Context, message string, secret bool) (string, error)
	// Stopping reports whether the host has asked running work to stop.
	Stopping(ctx context.Context) bool
}

// Slot holds the active host.
type Slot interface {
	Host() Host
	// SetHost installs h and returns the host it replaced.
	SetHost(h Host) Host
}

// Call kinds, used as metric labels.
const (
	KindOutput   = "output"
	KindWarning  = "warning"
	KindError    = "error"
	KindPrompt   = "prompt"
	KindStopping = "stopping"
)

// ErrNoHost is returned by New when the slot holds no host.
var ErrNoHost = errors.New("no host to bridge")

type backgroundKey struct{}

type call struct {
	kind string
	fn   func(ctx context.Context)
	done chan struct{}
}

// Bridge is a Host that serializes background calls onto Run's goroutine.
type Bridge struct {
	slot     Slot
	original Host
	metrics  *metrics.Recorder

	gate     *semaphore.Weighted
	requests chan *call

	stop      context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetrics counts marshaled calls.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(b *Bridge) { b.metrics = rec }
}

// New installs a bridge as slot's host. Close restores the previous host.
func New(slot Slot, opts ...Option) (*Bridge, error) {
	original := slot.Host()
	if original == nil {
		return nil, ErrNoHost
	}
	stop, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		slot:     slot,
		original: original,
		gate:     semaphore.NewWeighted(1),
		requests: make(chan *call),
		stop:     stop,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	slot.SetHost(b)
	return b, nil
}

// Original returns the host the bridge wraps.
func (b *Bridge) Original() Host {
	return b.original
}

// Cancel stops Run and releases every waiting caller.
func (b *Bridge) Cancel() {
	b.cancel()
}

// Close cancels outstanding work and restores the original host. It is safe
// to call more than once.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.cancel()
		b.slot.SetHost(b.original)
	})
	return nil
}

// IsBackground reports whether ctx belongs to work started by this bridge.
func (b *Bridge) IsBackground(ctx context.Context) bool {
	owner, _ := ctx.Value(backgroundKey{}).(*Bridge)
	return owner == b
}

// Run executes work on a new goroutine and services its host calls on the
// calling goroutine until work returns. A panic in work is returned as an
// error. When work fails with several errors, all but the last are written
// to the original host and the last is returned.
func (b *Bridge) Run(ctx context.Context, work func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopHook := context.AfterFunc(b.stop, cancel)
	defer stopHook()

	bg := context.WithValue(ctx, backgroundKey{}, b)
	results := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- fmt.Errorf("background work panicked: %v", r)
			}
		}()
		results <- work(bg)
	}()

	for {
		select {
		case c := <-b.requests:
			b.metrics.RecordHostCall(c.kind)
			c.fn(ctx)
			close(c.done)
		case err := <-results:
			return b.surface(ctx, err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Bridge) surface(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	leaves := tberrors.Leaves(err)
	if len(leaves) <= 1 {
		return err
	}
	for _, leaf := range leaves[:len(leaves)-1] {
		_ = b.original.WriteError(ctx, leaf)
	}
	return leaves[len(leaves)-1]
}

// invoke runs fn on Run's goroutine and waits for it.
func (b *Bridge) invoke(ctx context.Context, kind string, fn func(ctx context.Context)) error {
	if err := b.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.gate.Release(1)

	c := &call{kind: kind, fn: fn, done: make(chan struct{})}
	select {
	case b.requests <- c:
	case <-ctx.Done():
		return ctx.Err()
	case <-b.stop.Done():
		return context.Canceled
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.stop.Done():
		return context.Canceled
	}
}

func (b *Bridge) WriteOutput(ctx context.Context, msg string) error {
	if !b.IsBackground(ctx) {
		return b.original.WriteOutput(ctx, msg)
	}
	var err error
	if ierr := b.invoke(ctx, KindOutput, func(hctx context.Context) {
		err = b.original.WriteOutput(hctx, msg)
	}); ierr != nil {
		return ierr
	}
	return err
}

func (b *Bridge) WriteWarning(ctx context.Context, msg string) error {
	if !b.IsBackground(ctx) {
		return b.original.WriteWarning(ctx, msg)
	}
	var err error
	if ierr := b.invoke(ctx, KindWarning, func(hctx context.Context) {
		err = b.original.WriteWarning(hctx, msg)
	}); ierr != nil {
		return ierr
	}
	return err
}

func (b *Bridge) WriteError(ctx context.Context, werr error) error {
	if !b.IsBackground(ctx) {
		return b.original.WriteError(ctx, werr)
	}
	var err error
	if ierr := b.invoke(ctx, KindError, func(hctx context.Context) {
		err = b.original.WriteError(hctx, werr)
	}); ierr != nil {
		return ierr
	}
	return err
}

func (b *Bridge) Prompt(ctx context.Context, message string, secret bool) (string, error) {
	if !b.IsBackground(ctx) {
		return b.original.Prompt(ctx, message, secret)
	}
	var (
		answer string
		err    error
	)
	if ierr := b.invoke(ctx, KindPrompt, func(hctx context.Context) {
		answer, err = b.original.Prompt(hctx, message, secret)
	}); ierr != nil {
		return "", ierr
	}
	return answer, err
}

func (b *Bridge) Stopping(ctx context.Context) bool {
	if !b.IsBackground(ctx) {
		return b.original.Stopping(ctx)
	}
	var stopping bool
	if err := b.invoke(ctx, KindStopping, func(hctx context.Context) {
		stopping = b.original.Stopping(hctx)
	}); err != nil {
		return true
	}
	return stopping
}

var _ Host = (*Bridge)(nil)
