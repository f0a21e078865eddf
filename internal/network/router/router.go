package router

import (
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/little-go/internal/network"
	"github.com/lk2023060901/little-go/internal/network/session"
	"github.com/lk2023060901/little-go/pkg/little"
	"github.com/lk2023060901/little-go/pkg/log"
	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// HandlerFunc 是框架暴露给业务层的通用处理函数签名。
//
// 说明：
//   - sess：当前会话，用于发送响应；
//   - req ：Envelope.Body 解码后的请求对象；
//   - 返回：
//   - resp：可选的响应对象，非 nil 时 Router 通过 sess.Send 自动发送；
//   - err ：业务执行失败时的错误，由上层决定如何记录。
type HandlerFunc func(sess session.Session, req any) (resp any, err error)

// Router 维护“请求类型 -> 处理函数”的映射。
//
// 典型调用链（服务器侧）：
//  1. Session 从连接读出一帧并解码为 Envelope；
//  2. Handler.OnMessage 调用 Router.Dispatch(sess, env)；
//  3. Router 按 env.Body 的实际类型找到处理函数并调用；
//  4. 处理函数返回非 nil 的响应时，通过 sess.Send 发回。
//
// 由于 Body 以多态方式编码，请求与响应类型都需要注册到同一个 Registry，
// Handle 会自动注册请求类型，响应类型需调用 RegisterResponse 注册。
type Router struct {
	log.Binder

	registry *little.Registry

	mu     sync.RWMutex
	routes map[reflect.Type]HandlerFunc
}

// New 创建一个 Router，registry 为 nil 时使用 little.Default()。
func New(registry *little.Registry) *Router {
	if registry == nil {
		registry = little.Default()
	}
	r := &Router{
		registry: registry,
		routes:   make(map[reflect.Type]HandlerFunc),
	}
	r.SetLogger(log.With(log.FieldComponent("router")))
	return r
}

// Registry 返回 Router 注册消息类型所用的 Registry，Codec 应使用同一个 Registry。
func (r *Router) Registry() *little.Registry {
	return r.registry
}

// Handle 为请求类型 T 注册处理函数。同一类型不允许重复注册。
func Handle[T any](r *Router, fn func(sess session.Session, req T) (any, error)) error {
	if fn == nil {
		return merr.WrapErrParameterMissing("handler")
	}
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Interface {
		return merr.WrapErrParameterInvalidMsg("cannot route interface type %s", t.String())
	}
	if err := little.RegisterType[T](r.registry, ""); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.routes[t]; exists {
		return merr.WrapErrParameterInvalidMsg("route for %s already registered", t.String())
	}
	r.routes[t] = func(sess session.Session, req any) (any, error) {
		return fn(sess, req.(T))
	}
	return nil
}

// RegisterResponse 注册只作为响应或推送出现的消息类型。
func RegisterResponse[T any](r *Router) error {
	return little.RegisterType[T](r.registry, "")
}

// Dispatch 处理一条已经解码的消息。
func (r *Router) Dispatch(sess session.Session, env *network.Envelope) error {
	if sess == nil {
		return merr.WrapErrParameterMissing("session")
	}
	if env == nil || env.Body == nil {
		return merr.WrapErrParameterMissing("envelope body")
	}

	t := reflect.TypeOf(env.Body)
	r.mu.RLock()
	fn, ok := r.routes[t]
	r.mu.RUnlock()
	if !ok {
		return errors.Wrapf(merr.WrapErrAsInputError(merr.ErrOperationNotSupported), "no route for %s", t.String())
	}

	resp, err := fn(sess, env.Body)
	if err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	if err := sess.Send(resp); err != nil {
		r.Logger().Warn("failed to send response",
			zap.Uint64("seq", env.Seq), log.FieldType(t.String()), zap.Error(err))
		return err
	}
	return nil
}
