// Package little 实现一种紧凑的、无需手写 schema 的二进制对象序列化格式。
//
// 编码规则概述：
//   - 对象按成员名升序依次编码（先属性、后字段，各自独立排序），成员名本身不落盘。
//   - 可为空的成员前有 1 字节 Header（bit7 表示空，bit6 表示需要类型名消歧）。
//   - 列表以 4 字节小端有符号元素个数开头，随后依次为各元素。
//   - 多个文档可以首尾相接写入同一个流，读取端依据类型结构自行确定边界。
//
// 所有配置、类型结构缓存与多态类型注册表都挂在显式传入的 *Registry 上。
package little

import (
	"reflect"
	"strings"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/little-go/pkg/log"
	"github.com/lk2023060901/little-go/pkg/util/merr"
	"github.com/lk2023060901/little-go/pkg/util/typeutil"
)

// DateTimeMode 决定 time.Time 的编码方式。
type DateTimeMode int32

const (
	// SecondPrecision 以 1970-01-01T00:00:00Z 起的秒数写为 4 字节有符号整数。
	SecondPrecision DateTimeMode = iota
	// Detailed 以 Unix 纳秒写为 8 字节有符号整数。
	Detailed
)

func (m DateTimeMode) String() string {
	switch m {
	case SecondPrecision:
		return "second"
	case Detailed:
		return "detailed"
	default:
		return "unknown"
	}
}

// ParseDateTimeMode 解析配置中的时间模式，空字符串视为 SecondPrecision。
func ParseDateTimeMode(s string) (DateTimeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "second", "second-precision", "seconds":
		return SecondPrecision, nil
	case "detailed", "nanosecond", "full":
		return Detailed, nil
	default:
		return SecondPrecision, merr.WrapErrParameterInvalid("second|detailed", s, "unknown date time mode")
	}
}

// Registry 是序列化的显式上下文：承载时间模式、按类型的忽略配置、
// 类型结构缓存以及多态类型名注册表。
//
// Registry 在完成配置后可以被多个协程并发使用，配置应在启动阶段完成。
type Registry struct {
	log.Binder

	dateTimeMode atomic.Int32

	schemas      *typeutil.ConcurrentMap[reflect.Type, *Schema]
	shapes       *typeutil.ConcurrentMap[reflect.Type, collectionShape]
	typeConfigs  *typeutil.ConcurrentMap[reflect.Type, *typeConfig]
	ignoreByName *typeutil.ConcurrentMap[string, typeutil.Set[string]]

	typesByName *typeutil.ConcurrentMap[string, reflect.Type]
	namesByType *typeutil.ConcurrentMap[reflect.Type, string]
}

// Option 用于在创建 Registry 时注入配置。
type Option func(*Registry)

// WithDateTimeMode 设置时间编码模式。
func WithDateTimeMode(mode DateTimeMode) Option {
	return func(r *Registry) {
		r.dateTimeMode.Store(int32(mode))
	}
}

// WithLogger 为 Registry 绑定组件级 Logger。
func WithLogger(logger *log.MLogger) Option {
	return func(r *Registry) {
		r.SetLogger(logger)
	}
}

// WithConfig 应用从配置文件加载的 Config。
func WithConfig(cfg *Config) Option {
	return func(r *Registry) {
		if cfg == nil {
			return
		}
		if cfg.Log.Level != "" {
			lg, _, err := log.InitLogger(&cfg.Log)
			if err != nil {
				r.Logger().Warn("failed to init registry logger, fallback to global", zap.Error(err))
			} else {
				r.SetLogger(&log.MLogger{Logger: lg.With(log.FieldModule("little"))})
			}
		}
		mode, err := ParseDateTimeMode(cfg.DateTimeMode)
		if err != nil {
			r.Logger().Warn("invalid date time mode, keep current", zap.String("mode", cfg.DateTimeMode), zap.Error(err))
		} else {
			r.dateTimeMode.Store(int32(mode))
		}
		for typeName, members := range cfg.Ignore {
			r.ignoreMembersByName(typeName, members...)
		}
	}
}

// NewRegistry 创建一个新的 Registry，内置的基础类型会预先注册到多态类型表中。
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		schemas:      typeutil.NewConcurrentMap[reflect.Type, *Schema](),
		shapes:       typeutil.NewConcurrentMap[reflect.Type, collectionShape](),
		typeConfigs:  typeutil.NewConcurrentMap[reflect.Type, *typeConfig](),
		ignoreByName: typeutil.NewConcurrentMap[string, typeutil.Set[string]](),
		typesByName:  typeutil.NewConcurrentMap[string, reflect.Type](),
		namesByType:  typeutil.NewConcurrentMap[reflect.Type, string](),
	}
	r.registerBuiltinTypes()
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRegistry = NewRegistry()

// Default 返回进程级默认 Registry。
func Default() *Registry {
	return defaultRegistry
}

// DateTimeMode 返回当前时间编码模式。
func (r *Registry) DateTimeMode() DateTimeMode {
	return DateTimeMode(r.dateTimeMode.Load())
}

// SetDateTimeMode 修改时间编码模式，应只在启动阶段调用。
func (r *Registry) SetDateTimeMode(mode DateTimeMode) {
	r.dateTimeMode.Store(int32(mode))
}

func (r *Registry) ignoreMembersByName(typeName string, members ...string) {
	key := strings.ToLower(typeName)
	set := typeutil.NewSet(members...)
	if existing, ok := r.ignoreByName.Get(key); ok {
		set.Insert(existing.Collect()...)
	}
	r.ignoreByName.Insert(key, set)
}

func (r *Registry) ignoredByName(t reflect.Type) typeutil.Set[string] {
	set, ok := r.ignoreByName.Get(strings.ToLower(t.Name()))
	if !ok {
		return nil
	}
	return set
}
