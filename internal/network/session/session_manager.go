package session

// SessionManager 维护当前所有在线会话的索引。
//
// 职责说明：
//   - 只负责会话的注册、查询和移除，不直接创建或关闭底层连接；
//   - Session 的生命周期由 acceptor/connector 决定；
//   - 业务层可以基于 SessionManager 实现广播、按 ID 定向发送等能力。
type SessionManager interface {
	// Register 注册一个会话，ID 重复时返回错误。
	Register(sess Session) error

	// Get 根据 session id 查找会话。
	Get(id uint64) (sess Session, ok bool)

	// Unregister 移除指定 id 的会话，不负责调用 sess.Close()。
	Unregister(id uint64) error

	// Range 遍历当前所有在线会话，fn 返回 false 时中断遍历。
	Range(fn func(sess Session) bool)

	// Broadcast 向所有在线会话投递 msg，返回投递成功的会话数。
	Broadcast(msg any) int

	// Multicast 向 filter 返回 true 的会话投递 msg，filter 为 nil 时等同于 Broadcast。
	Multicast(msg any, filter func(sess Session) bool) int

	// Count 返回当前已注册的会话数量。
	Count() int
}
