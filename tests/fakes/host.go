package fakes

import (
	"context"
	"sync"

	"github.com/systmms/tokenbroker/internal/bridge"
)

// FakeHost is a test double for bridge.Host that records everything written
// to it.
type FakeHost struct {
	mu       sync.Mutex
	outputs  []string
	warnings []string
	errs     []error
	prompts  []string

	// Answers are returned by Prompt in order; the last one repeats.
	Answers   []string
	PromptErr error
	Stop      bool
}

func (h *FakeHost) WriteOutput(_ context.Context, msg string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outputs = append(h.outputs, msg)
	return nil
}

func (h *FakeHost) WriteWarning(_ context.Context, msg string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.warnings = append(h.warnings, msg)
	return nil
}

func (h *FakeHost) WriteError(_ context.Context, err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
	return nil
}

func (h *FakeHost) Prompt(ctx context.Context, message string, _ bool) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompts = append(h.prompts, message)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if h.PromptErr != nil {
		return "", h.PromptErr
	}
	if len(h.Answers) == 0 {
		return "", nil
	}
	answer := h.Answers[0]
	if len(h.Answers) > 1 {
		h.Answers = h.Answers[1:]
	}
	return answer, nil
}

func (h *FakeHost) Stopping(context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Stop
}

// Outputs returns the messages written with WriteOutput
func (h *FakeHost) Outputs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.outputs...)
}

// Warnings returns the messages written with WriteWarning
func (h *FakeHost) Warnings() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.warnings...)
}

// Errors returns the errors written with WriteError
func (h *FakeHost) Errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

// Prompts returns the prompt messages shown
func (h *FakeHost) Prompts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.prompts...)
}

var _ bridge.Host = (*FakeHost)(nil)
