package session

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/little-go/internal/network"
	"github.com/lk2023060901/little-go/internal/network/codec"
	"github.com/lk2023060901/little-go/pkg/log"
	"github.com/lk2023060901/little-go/pkg/util/conc"
	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// BaseSession 提供了 Session 接口的基础实现。
//
// 发送：Send 只负责投递，独立的发送协程按顺序编码写出，避免多协程并发写 conn。
// 接收：Run 中的读协程解码帧并投递到接收队列，调用方所在协程顺序回调 Handler。
type BaseSession struct {
	log.Binder

	id uint64

	ctx    context.Context
	cancel context.CancelFunc

	conn    Conn
	codec   codec.Codec
	handler Handler
	cfg     Config

	sendQueue chan any

	// seq 只在发送协程中递增。
	seq uint64

	closeOnce sync.Once
	closeErr  error
}

// 确保 BaseSession 实现了 Session 接口。
var _ Session = (*BaseSession)(nil)

// NewBaseSession 创建一个会话并启动其发送协程。
//
// 参数：
//   - parent：会话所属的上层上下文；若为 nil，则使用 context.Background()；
//   - id    ：会话 ID；
//   - conn  ：底层连接；
//   - c     ：用于该连接的 Codec；
//   - h     ：事件回调，发送失败时也会通过 h.OnError 通知。
func NewBaseSession(parent context.Context, id uint64, conn Conn, c codec.Codec, h Handler, cfg Config) *BaseSession {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(log.WithSession(parent, id))

	cfg = cfg.withDefaults()
	s := &BaseSession{
		id:        id,
		ctx:       ctx,
		cancel:    cancel,
		conn:      conn,
		codec:     c,
		handler:   h,
		cfg:       cfg,
		sendQueue: make(chan any, cfg.SendQueueSize),
	}
	s.SetLogger(log.Ctx(ctx).With(log.FieldComponent("session"), log.FieldRemote(conn.RemoteAddr())))

	// 上层上下文取消时关闭连接，使阻塞中的读取返回。
	context.AfterFunc(ctx, func() { _ = s.Close() })
	conc.Go(func() (struct{}, error) {
		s.sendLoop()
		return struct{}{}, nil
	})
	return s
}

// ID 实现 Session.ID。
func (s *BaseSession) ID() uint64 {
	return s.id
}

// Context 实现 Session.Context，其中携带附加了会话 ID 的 Logger，可通过 log.Ctx 取得。
func (s *BaseSession) Context() context.Context {
	return s.ctx
}

// RemoteAddr 实现 Session.RemoteAddr。
func (s *BaseSession) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// LocalAddr 实现 Session.LocalAddr。
func (s *BaseSession) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Send 实现 Session.Send。
func (s *BaseSession) Send(msg any) error {
	if msg == nil {
		return merr.WrapErrParameterMissing("msg")
	}
	if s.ctx.Err() != nil {
		return merr.WrapErrIoFailedReason("session closed")
	}
	select {
	case <-s.ctx.Done():
		return merr.WrapErrIoFailedReason("session closed")
	case s.sendQueue <- msg:
		return nil
	}
}

// Close 实现 Session.Close。
func (s *BaseSession) Close() error {
	s.closeOnce.Do(func() {
		// 先取消上下文，再关闭连接，读写协程据此区分主动关闭与连接错误。
		s.cancel()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Run 持续读取并分发消息，直到连接关闭或出现无法恢复的错误。
//
// 返回 nil 表示正常结束（对端关闭或本端主动 Close）。Run 返回后会话已关闭。
func (s *BaseSession) Run() error {
	defer s.Close()

	frames := make(chan *network.Envelope, s.cfg.RecvQueueSize)
	reader := conc.Go(func() (struct{}, error) {
		defer close(frames)
		return struct{}{}, s.readLoop(frames)
	})

	// 顺序消费，确保同一 Session 上的 OnMessage 串行执行。
	for env := range frames {
		s.handler.OnMessage(s, env)
	}
	_, err := reader.Await()
	return err
}

func (s *BaseSession) readLoop(frames chan<- *network.Envelope) error {
	rd := bufio.NewReader(s.conn)
	for {
		if s.cfg.ReadTimeout > 0 {
			if d, ok := s.conn.(deadliner); ok {
				_ = d.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
			}
		}

		env := &network.Envelope{}
		err := s.codec.Decode(rd, env)
		switch {
		case err == nil:
		case err == io.EOF || s.ctx.Err() != nil:
			return nil
		case network.IsFatal(err):
			s.handler.OnError(s, network.StageDecode, err)
			return err
		default:
			// 帧已完整读出，跳过该条消息继续读取。
			s.handler.OnError(s, network.StageDecode, err)
			continue
		}

		select {
		case frames <- env:
		case <-s.ctx.Done():
			return nil
		}
	}
}

func (s *BaseSession) sendLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.sendQueue:
			if s.cfg.WriteTimeout > 0 {
				if d, ok := s.conn.(deadliner); ok {
					_ = d.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
				}
			}
			s.seq++
			err := s.codec.Encode(s.conn, &network.Envelope{Seq: s.seq, Body: msg})
			if err == nil {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			if !network.IsFatal(err) {
				s.handler.OnError(s, network.StageEncode, err)
				continue
			}
			s.handler.OnError(s, network.StageSend, err)
			s.Logger().Warn("send failed, closing session", zap.Error(err))
			_ = s.Close()
			return
		}
	}
}
