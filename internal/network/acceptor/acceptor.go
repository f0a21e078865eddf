package acceptor

import (
	"context"
	"net"
	"net/http"

	"github.com/lk2023060901/little-go/internal/network/session"
)

// Acceptor 抽象了服务器侧的接入层。
//
// 职责：
//   - 在 listener 上接受 TCP 连接，或通过 HTTP 处理 WebSocket 升级；
//   - 为每个连接创建 Session，并调用 Handler 的各阶段回调；
//   - 维护当前活跃会话列表，便于广播与监控。
type Acceptor interface {
	// Serve 在给定 listener 上接受连接，阻塞直至 ctx 取消、Close 被调用或出现致命错误。
	// ctx 取消或 Close 引起的退出返回 nil。
	Serve(ctx context.Context, ln net.Listener, h session.Handler) error

	// WebSocketHandler 返回处理 WebSocket 升级的 http.Handler，升级后的连接与 TCP 连接共用同一套会话逻辑。
	WebSocketHandler(ctx context.Context, h session.Handler) http.Handler

	// Close 关闭所有 listener 与会话。
	Close() error

	// Sessions 返回会话管理器。
	Sessions() session.SessionManager
}
