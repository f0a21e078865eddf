package connector

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/little-go/internal/network"
	"github.com/lk2023060901/little-go/internal/network/codec"
	"github.com/lk2023060901/little-go/internal/network/session"
	"github.com/lk2023060901/little-go/pkg/util/merr"
)

type nopHandler struct{}

func (nopHandler) OnConnected(session.Session)                   {}
func (nopHandler) OnMessage(session.Session, *network.Envelope)  {}
func (nopHandler) OnClosed(session.Session, error)               {}
func (nopHandler) OnError(session.Session, network.Stage, error) {}

func TestNewRequiresCodec(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
}

func TestDialRetriesUntilAttemptsExhausted(t *testing.T) {
	c, err := codec.New(codec.Options{})
	require.NoError(t, err)
	defer c.Close()

	// 取得一个当前无人监听的端口。
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	conn, err := New(Config{Codec: c, DialAttempts: 3, DialBackoff: time.Millisecond})
	require.NoError(t, err)
	start := time.Now()
	_, err = conn.Dial(context.Background(), addr, nopHandler{})
	assert.ErrorIs(t, err, merr.ErrIoFailed)
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond)

	_, err = conn.Dial(context.Background(), addr, nil)
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
}

func TestDialRetriesOnlyIoFailures(t *testing.T) {
	c, err := codec.New(codec.Options{})
	require.NoError(t, err)
	defer c.Close()

	conn, err := New(Config{Codec: c, DialAttempts: 3, DialBackoff: time.Millisecond})
	require.NoError(t, err)
	base := conn.(*baseConnector)

	calls := 0
	err = base.withRetry(context.Background(), func() error {
		calls++
		return merr.WrapErrIoFailed("127.0.0.1:1", net.ErrClosed)
	})
	assert.ErrorIs(t, err, merr.ErrIoFailed)
	assert.Equal(t, 3, calls)

	calls = 0
	err = base.withRetry(context.Background(), func() error {
		calls++
		return merr.WrapErrParameterInvalidMsg("bad address")
	})
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
	assert.Equal(t, 1, calls)
}
