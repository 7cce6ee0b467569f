package authn

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tberrors "github.com/systmms/tokenbroker/internal/errors"
)

func TestFindLoopbackPortExhausted(t *testing.T) {
	t.Parallel()

	var tried []string
	listen := func(network, address string) (net.Listener, error) {
		tried = append(tried, address)
		return nil, errors.New("address already in use")
	}

	_, err := findLoopbackPort(listen)
	require.Error(t, err)
	assert.True(t, tberrors.IsCategory(err, tberrors.CategoryNetwork))

	require.Len(t, tried, lastLoopbackPort-firstLoopbackPort+1)
	assert.Equal(t, "127.0.0.1:8401", tried[0])
	assert.Equal(t, "127.0.0.1:8999", tried[len(tried)-1])
}

func TestFindLoopbackPortFirstFree(t *testing.T) {
	t.Parallel()

	var closed bool
	listen := func(network, address string) (net.Listener, error) {
		if !strings.HasSuffix(address, ":8405") {
			return nil, errors.New("address already in use")
		}
		return closeRecorder{onClose: func() { closed = true }}, nil
	}

	port, err := findLoopbackPort(listen)
	require.NoError(t, err)
	assert.Equal(t, 8405, port)
	assert.True(t, closed, "probe listener must be released")
}

type closeRecorder struct {
	net.Listener
	onClose func()
}

func (c closeRecorder) Close() error {
	c.onClose()
	return nil
}

func TestFindLoopbackPortReal(t *testing.T) {
	t.Parallel()

	port, err := findLoopbackPort(net.Listen)
	if err != nil {
		t.Skipf("no loopback port available: %v", err)
	}
	assert.GreaterOrEqual(t, port, firstLoopbackPort)
	assert.LessOrEqual(t, port, lastLoopbackPort)
}
