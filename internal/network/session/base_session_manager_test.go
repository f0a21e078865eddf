package session

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/little-go/pkg/util/merr"
)

type stubSession struct {
	id   uint64
	sent []any
	err  error
}

func (s *stubSession) ID() uint64               { return s.id }
func (s *stubSession) Context() context.Context { return context.Background() }
func (s *stubSession) RemoteAddr() net.Addr     { return nil }
func (s *stubSession) LocalAddr() net.Addr      { return nil }
func (s *stubSession) Close() error             { return nil }

func (s *stubSession) Send(msg any) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestBaseSessionManager(t *testing.T) {
	m := NewBaseSessionManager()
	a, b := &stubSession{id: 1}, &stubSession{id: 2, err: merr.WrapErrIoFailedReason("session closed")}

	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))
	assert.ErrorIs(t, m.Register(&stubSession{id: 1}), merr.ErrParameterInvalid)
	assert.ErrorIs(t, m.Register(nil), merr.ErrParameterMissing)
	assert.Equal(t, 2, m.Count())

	got, ok := m.Get(1)
	assert.True(t, ok)
	assert.Same(t, a, got)

	assert.Equal(t, 1, m.Broadcast("hello"))
	assert.Equal(t, []any{"hello"}, a.sent)
	assert.Equal(t, 0, m.Multicast("skip", func(sess Session) bool { return sess.ID() != 1 }))
	assert.Equal(t, []any{"hello"}, a.sent)

	visited := 0
	m.Range(func(Session) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)

	require.NoError(t, m.Unregister(1))
	assert.ErrorIs(t, m.Unregister(1), merr.ErrParameterInvalid)
	_, ok = m.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Count())
}
