package router

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/little-go/internal/network"
	"github.com/lk2023060901/little-go/internal/network/session"
	"github.com/lk2023060901/little-go/pkg/little"
	"github.com/lk2023060901/little-go/pkg/util/merr"
)

type echo struct {
	Text string
}

type reply struct {
	Text string
}

type silent struct{}

type fakeSession struct {
	sent []any
	err  error
}

func (s *fakeSession) ID() uint64               { return 1 }
func (s *fakeSession) Context() context.Context { return context.Background() }
func (s *fakeSession) RemoteAddr() net.Addr     { return nil }
func (s *fakeSession) LocalAddr() net.Addr      { return nil }
func (s *fakeSession) Close() error             { return nil }

func (s *fakeSession) Send(msg any) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestHandleRegistersTypes(t *testing.T) {
	reg := little.NewRegistry()
	r := New(reg)
	assert.Same(t, reg, r.Registry())

	require.NoError(t, Handle(r, func(_ session.Session, req echo) (any, error) {
		return reply{Text: req.Text}, nil
	}))
	require.NoError(t, RegisterResponse[reply](r))

	data, err := little.Serialize(reg, network.Envelope{Seq: 1, Body: echo{Text: "hi"}})
	require.NoError(t, err)
	env, err := little.Deserialize[network.Envelope](reg, data)
	require.NoError(t, err)
	assert.Equal(t, echo{Text: "hi"}, env.Body)

	err = Handle(r, func(_ session.Session, _ echo) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
	assert.ErrorIs(t, Handle[any](r, func(_ session.Session, _ any) (any, error) { return nil, nil }), merr.ErrParameterInvalid)
	assert.ErrorIs(t, Handle[echo](r, nil), merr.ErrParameterMissing)
}

func TestDispatch(t *testing.T) {
	r := New(little.NewRegistry())
	require.NoError(t, Handle(r, func(_ session.Session, req echo) (any, error) {
		return reply{Text: req.Text + "!"}, nil
	}))
	require.NoError(t, Handle(r, func(_ session.Session, _ silent) (any, error) {
		return nil, nil
	}))

	sess := &fakeSession{}
	require.NoError(t, r.Dispatch(sess, &network.Envelope{Seq: 3, Body: echo{Text: "hey"}}))
	require.NoError(t, r.Dispatch(sess, &network.Envelope{Seq: 4, Body: silent{}}))
	assert.Equal(t, []any{reply{Text: "hey!"}}, sess.sent)

	err := r.Dispatch(sess, &network.Envelope{Body: reply{}})
	assert.ErrorIs(t, err, merr.ErrOperationNotSupported)
	assert.Equal(t, merr.InputError, merr.GetErrorType(err))
	assert.ErrorIs(t, r.Dispatch(sess, &network.Envelope{}), merr.ErrParameterMissing)
	assert.ErrorIs(t, r.Dispatch(nil, &network.Envelope{Body: echo{}}), merr.ErrParameterMissing)

	sess.err = merr.WrapErrIoFailedReason("session closed")
	assert.ErrorIs(t, r.Dispatch(sess, &network.Envelope{Body: echo{}}), merr.ErrIoFailed)
}

func TestHandlerError(t *testing.T) {
	r := New(nil)
	assert.Same(t, little.Default(), r.Registry())

	require.NoError(t, Handle(r, func(_ session.Session, _ silent) (any, error) {
		return nil, merr.WrapErrParameterInvalidMsg("rejected")
	}))
	sess := &fakeSession{}
	assert.ErrorIs(t, r.Dispatch(sess, &network.Envelope{Body: silent{}}), merr.ErrParameterInvalid)
	assert.Empty(t, sess.sent)
}
