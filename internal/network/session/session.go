package session

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/lk2023060901/little-go/internal/network"
)

// Conn 是会话所需的最小底层连接能力。net.Conn 与 NewWSConn 的返回值都满足该接口。
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
	RemoteAddr() net.Addr
	LocalAddr() net.Addr
}

// deadliner 由支持读写超时的连接实现。
type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Session 抽象了一条网络会话/连接。
//
// 约定：
//   - 每个 Session 对应一条底层连接（TCP 连接或 WebSocket 会话）。
//   - Session ID 使用 64 位无符号整型，由接入层分配，在进程内唯一。
type Session interface {
	// ID 返回该会话的唯一标识。
	ID() uint64

	// Context 返回与该会话关联的上下文，会话关闭时 Done() 被触发。
	Context() context.Context

	// RemoteAddr 返回远端地址。
	RemoteAddr() net.Addr

	// LocalAddr 返回本端地址。
	LocalAddr() net.Addr

	// Send 将一条业务消息投递到发送队列。
	//
	// 消息会被包装为 Envelope，经 Codec 编码后由发送协程按投递顺序写出。
	// msg 的实际类型必须已注册到编码所用的 Registry。
	Send(msg any) error

	// Close 主动关闭该会话，可重复调用。
	Close() error
}

// Handler 由使用者实现，用于接收会话生命周期内的各类事件。
//
// 同一会话上的 OnMessage 按到达顺序串行调用，应避免长时间阻塞。
type Handler interface {
	// OnConnected 在会话建立后、开始读取前被调用一次。
	OnConnected(sess Session)

	// OnMessage 在成功解码出一条消息后被调用。
	OnMessage(sess Session, env *network.Envelope)

	// OnClosed 在会话生命周期结束时被调用，正常关闭时 err 为 nil。
	OnClosed(sess Session, err error)

	// OnError 在会话处理的各个阶段发生错误时被调用。
	OnError(sess Session, stage network.Stage, err error)
}

// Config 描述会话层面的配置。
type Config struct {
	SendQueueSize int
	RecvQueueSize int

	// ReadTimeout/WriteTimeout 为 0 表示不设置 deadline，仅对支持 deadline 的连接生效。
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

const defaultQueueSize = 1024

func (c Config) withDefaults() Config {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = defaultQueueSize
	}
	if c.RecvQueueSize <= 0 {
		c.RecvQueueSize = defaultQueueSize
	}
	return c
}
