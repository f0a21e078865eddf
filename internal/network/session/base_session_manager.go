package session

import (
	"github.com/samber/lo"

	"github.com/lk2023060901/little-go/pkg/util/merr"
	"github.com/lk2023060901/little-go/pkg/util/typeutil"
)

// BaseSessionManager 以 ConcurrentMap 保存在线会话。
// 遍历与广播基于快照进行，回调中可以安全地注册或移除会话。
type BaseSessionManager struct {
	sessions *typeutil.ConcurrentMap[uint64, Session]
}

var _ SessionManager = (*BaseSessionManager)(nil)

func NewBaseSessionManager() *BaseSessionManager {
	return &BaseSessionManager{
		sessions: typeutil.NewConcurrentMap[uint64, Session](),
	}
}

// Register 实现 SessionManager.Register。
func (m *BaseSessionManager) Register(sess Session) error {
	if sess == nil {
		return merr.WrapErrParameterMissing("session")
	}
	if _, loaded := m.sessions.GetOrInsert(sess.ID(), sess); loaded {
		return merr.WrapErrParameterInvalidMsg("session %d already registered", sess.ID())
	}
	return nil
}

// Get 实现 SessionManager.Get。
func (m *BaseSessionManager) Get(id uint64) (Session, bool) {
	return m.sessions.Get(id)
}

// Unregister 实现 SessionManager.Unregister。
func (m *BaseSessionManager) Unregister(id uint64) error {
	if _, ok := m.sessions.Remove(id); !ok {
		return merr.WrapErrParameterInvalidMsg("session %d not found", id)
	}
	return nil
}

// Range 实现 SessionManager.Range。
func (m *BaseSessionManager) Range(fn func(sess Session) bool) {
	if fn == nil {
		return
	}
	for _, sess := range m.sessions.Values() {
		if !fn(sess) {
			return
		}
	}
}

// Broadcast 实现 SessionManager.Broadcast。
func (m *BaseSessionManager) Broadcast(msg any) int {
	return m.Multicast(msg, nil)
}

// Multicast 实现 SessionManager.Multicast。
func (m *BaseSessionManager) Multicast(msg any, filter func(sess Session) bool) int {
	targets := m.sessions.Values()
	if filter != nil {
		targets = lo.Filter(targets, func(sess Session, _ int) bool { return filter(sess) })
	}
	return lo.CountBy(targets, func(sess Session) bool {
		return sess.Send(msg) == nil
	})
}

// Count 实现 SessionManager.Count。
func (m *BaseSessionManager) Count() int {
	return m.sessions.Len()
}
