package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/systmms/tokenbroker/internal/bridge"
	tberrors "github.com/systmms/tokenbroker/internal/errors"
)

// terminalHost writes to the command's streams and reads answers from its
// input. Secret answers are read without echo when the input is a terminal.
type terminalHost struct {
	out            io.Writer
	errOut         io.Writer
	in             io.Reader
	nonInteractive bool

	once   sync.Once
	reader *bufio.Reader
}

func newTerminalHost(cmd *cobra.Command, nonInteractive bool) *terminalHost {
	return &terminalHost{
		out:            cmd.OutOrStdout(),
		errOut:         cmd.ErrOrStderr(),
		in:             cmd.InOrStdin(),
		nonInteractive: nonInteractive,
	}
}

func (h *terminalHost) WriteOutput(_ context.Context, msg string) error {
	_, err := fmt.Fprintln(h.out, msg)
	return err
}

func (h *terminalHost) WriteWarning(_ context.Context, msg string) error {
	_, err := fmt.Fprintln(h.errOut, msg)
	return err
}

func (h *terminalHost) WriteError(_ context.Context, err error) error {
	_, werr := fmt.Fprintf(h.errOut, "Error: %v\n", tberrors.SimplifyError(err))
	return werr
}

func (h *terminalHost) Prompt(ctx context.Context, message string, secret bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if h.nonInteractive {
		return "", tberrors.UserError{
			Message:    fmt.Sprintf("%s is required but prompting is disabled", message),
			Suggestion: "Run without --non-interactive",
		}
	}

	fmt.Fprintf(h.errOut, "%s: ", message)
	if f, ok := h.in.(*os.File); ok && secret && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(h.errOut)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.ToLower(message), err)
		}
		return string(b), nil
	}

	h.once.Do(func() { h.reader = bufio.NewReader(h.in) })
	line, err := h.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(message), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (h *terminalHost) Stopping(ctx context.Context) bool {
	return ctx.Err() != nil
}

var _ bridge.Host = (*terminalHost)(nil)
