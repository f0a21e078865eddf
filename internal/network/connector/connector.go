package connector

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/little-go/internal/network/codec"
	"github.com/lk2023060901/little-go/internal/network/session"
	"github.com/lk2023060901/little-go/pkg/log"
	"github.com/lk2023060901/little-go/pkg/util/conc"
	"github.com/lk2023060901/little-go/pkg/util/merr"
	"github.com/lk2023060901/little-go/pkg/util/retry"
)

// Config 描述客户端连接的基础配置。
type Config struct {
	Session session.Config

	// Codec 为连接使用的编解码器，必须与服务端使用相同的 Serializer 与 Registry 配置。
	Codec codec.Codec

	// WSDialer 为 nil 时使用 websocket.DefaultDialer。
	WSDialer *websocket.Dialer

	// DialAttempts 为拨号的最大尝试次数，0 视为 1；DialBackoff 为首次重试前的等待时间。
	DialAttempts uint
	DialBackoff  time.Duration
}

// Connector 抽象了客户端的拨号器。
type Connector interface {
	// Dial 建立 TCP 连接。ctx 同时作为会话的父上下文，取消后会话随之关闭。
	Dial(ctx context.Context, addr string, h session.Handler) (session.Session, error)

	// DialWS 建立 WebSocket 连接。
	DialWS(ctx context.Context, url string, header http.Header, h session.Handler) (session.Session, error)
}

// baseConnector 是 Connector 的默认实现。
//
// 客户端连接同样以 BaseSession 表示，ID 在当前 Connector 内自增。
// 拨号成功后会在后台运行会话读循环，结束时回调 h.OnClosed。
type baseConnector struct {
	log.Binder

	cfg    Config
	dialer net.Dialer
	nextID atomic.Uint64
}

// New 创建一个 Connector。
func New(cfg Config) (Connector, error) {
	if cfg.Codec == nil {
		return nil, merr.WrapErrParameterMissing("codec")
	}
	if cfg.WSDialer == nil {
		cfg.WSDialer = websocket.DefaultDialer
	}
	if cfg.DialAttempts == 0 {
		cfg.DialAttempts = 1
	}
	if cfg.DialBackoff <= 0 {
		cfg.DialBackoff = 100 * time.Millisecond
	}
	c := &baseConnector{cfg: cfg}
	c.SetLogger(log.With(log.FieldComponent("connector")))
	return c, nil
}

func (c *baseConnector) Dial(ctx context.Context, addr string, h session.Handler) (session.Session, error) {
	if h == nil {
		return nil, merr.WrapErrParameterMissing("handler")
	}
	var conn net.Conn
	err := c.withRetry(ctx, func() error {
		var err error
		conn, err = c.dialer.DialContext(ctx, "tcp", addr)
		return merr.WrapErrIoFailed(addr, err)
	})
	if err != nil {
		return nil, err
	}
	return c.start(ctx, conn, h), nil
}

func (c *baseConnector) DialWS(ctx context.Context, url string, header http.Header, h session.Handler) (session.Session, error) {
	if h == nil {
		return nil, merr.WrapErrParameterMissing("handler")
	}
	var ws *websocket.Conn
	err := c.withRetry(ctx, func() error {
		conn, resp, err := c.cfg.WSDialer.DialContext(ctx, url, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return merr.WrapErrIoFailed(url, err)
		}
		ws = conn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.start(ctx, session.NewWSConn(ws), h), nil
}

func (c *baseConnector) withRetry(ctx context.Context, dial func() error) error {
	return retry.Do(ctx, dial,
		retry.Attempts(c.cfg.DialAttempts),
		retry.Sleep(c.cfg.DialBackoff),
		retry.RetryErr(merr.IsRetryableErr))
}

func (c *baseConnector) start(ctx context.Context, conn session.Conn, h session.Handler) session.Session {
	sess := session.NewBaseSession(ctx, c.nextID.Inc(), conn, c.cfg.Codec, h, c.cfg.Session)
	h.OnConnected(sess)

	conc.Go(func() (struct{}, error) {
		err := sess.Run()
		if err != nil {
			c.Logger().Debug("connection terminated", log.FieldRemote(conn.RemoteAddr()), zap.Error(err))
		}
		h.OnClosed(sess, err)
		return struct{}{}, err
	})
	return sess
}
