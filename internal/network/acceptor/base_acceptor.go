package acceptor

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/little-go/internal/network"
	"github.com/lk2023060901/little-go/internal/network/codec"
	"github.com/lk2023060901/little-go/internal/network/session"
	"github.com/lk2023060901/little-go/pkg/log"
	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// Config 描述 Acceptor 的配置。
type Config struct {
	Session session.Config

	// Upgrader 允许自定义 WebSocket 升级行为，为 nil 时使用默认 Upgrader。
	Upgrader *websocket.Upgrader
}

// BaseAcceptor 是 Acceptor 接口的基础实现。
//
// 每个连接使用独立的协程串行处理消息，保证同一 Session 上 Handler 串行执行。
type BaseAcceptor struct {
	log.Binder

	codec    codec.Codec
	sessions session.SessionManager
	cfg      Config
	upgrader *websocket.Upgrader

	nextID atomic.Uint64
	wg     sync.WaitGroup

	mu        sync.Mutex
	listeners []net.Listener
	closed    bool
}

// 确保 BaseAcceptor 实现了 Acceptor 接口。
var _ Acceptor = (*BaseAcceptor)(nil)

// NewBaseAcceptor 创建一个接入器。
//
// 参数：
//   - c  ：用于所有连接的 Codec；
//   - sm ：SessionManager，为 nil 时使用内部的 BaseSessionManager。
func NewBaseAcceptor(c codec.Codec, sm session.SessionManager, cfg Config) (*BaseAcceptor, error) {
	if c == nil {
		return nil, merr.WrapErrParameterMissing("codec")
	}
	if sm == nil {
		sm = session.NewBaseSessionManager()
	}
	upgrader := cfg.Upgrader
	if upgrader == nil {
		upgrader = &websocket.Upgrader{}
	}
	a := &BaseAcceptor{
		codec:    c,
		sessions: sm,
		cfg:      cfg,
		upgrader: upgrader,
	}
	a.SetLogger(log.With(log.FieldComponent("acceptor")))
	return a, nil
}

// Serve 实现 Acceptor.Serve。
func (a *BaseAcceptor) Serve(ctx context.Context, ln net.Listener, h session.Handler) error {
	if ln == nil {
		return merr.WrapErrParameterMissing("listener")
	}
	if h == nil {
		return merr.WrapErrParameterMissing("handler")
	}
	if !a.track(ln) {
		return merr.WrapErrIoFailedReason("acceptor closed")
	}

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	a.Logger().Info("acceptor serving", zap.Stringer("addr", ln.Addr()))
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return merr.WrapErrIoFailed("accept", err)
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.serveConn(ctx, conn, h)
		}()
	}
}

// WebSocketHandler 实现 Acceptor.WebSocketHandler。
func (a *BaseAcceptor) WebSocketHandler(ctx context.Context, h session.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ws, err := a.upgrader.Upgrade(w, req, nil)
		if err != nil {
			// Upgrade 已向客户端写出错误响应。
			h.OnError(nil, network.StageHandshake, err)
			return
		}
		a.wg.Add(1)
		defer a.wg.Done()
		a.serveConn(ctx, session.NewWSConn(ws), h)
	})
}

// serveConn 处理单个连接的完整生命周期，返回时连接已关闭。
func (a *BaseAcceptor) serveConn(ctx context.Context, conn session.Conn, h session.Handler) {
	sess := session.NewBaseSession(ctx, a.nextID.Inc(), conn, a.codec, h, a.cfg.Session)
	if err := a.sessions.Register(sess); err != nil {
		h.OnError(sess, network.StageHandshake, err)
		_ = sess.Close()
		return
	}
	defer func() {
		_ = a.sessions.Unregister(sess.ID())
	}()

	h.OnConnected(sess)
	err := sess.Run()
	if err != nil {
		sess.Logger().Debug("session terminated", zap.Error(err))
	}
	h.OnClosed(sess, err)
}

func (a *BaseAcceptor) track(ln net.Listener) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.listeners = append(a.listeners, ln)
	return true
}

// Close 实现 Acceptor.Close。
func (a *BaseAcceptor) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	listeners := a.listeners
	a.listeners = nil
	a.mu.Unlock()

	var errs error
	for _, ln := range listeners {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = errors.CombineErrors(errs, err)
		}
	}
	a.sessions.Range(func(sess session.Session) bool {
		_ = sess.Close()
		return true
	})
	a.wg.Wait()
	return errs
}

// Sessions 实现 Acceptor.Sessions。
func (a *BaseAcceptor) Sessions() session.SessionManager {
	return a.sessions
}
