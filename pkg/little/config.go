package little

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/lk2023060901/little-go/pkg/log"
	"github.com/lk2023060901/little-go/pkg/util/merr"
	"github.com/lk2023060901/little-go/pkg/util/typeutil"
	"github.com/lk2023060901/little-go/pkg/util/viper"
)

const envPrefix = "LITTLE"

// Config 是可以从 YAML/JSON 文件加载的序列化配置。
type Config struct {
	// DateTimeMode 可选 second 或 detailed。
	DateTimeMode string `mapstructure:"date-time-mode" json:"date-time-mode"`
	// Ignore 以类型名（不含包路径，不区分大小写）为键，值为需要忽略的成员名。
	Ignore map[string][]string `mapstructure:"ignore" json:"ignore"`
	// Log 为 Registry 专用 Logger 的配置，Level 为空时使用全局 Logger。
	Log log.Config `mapstructure:"log" json:"log"`
}

// LoadConfig 从 path 加载配置，环境变量 LITTLE_DATE_TIME_MODE 可覆盖文件中的值。
func LoadConfig(path string) (*Config, error) {
	v := viper.NewWithEnv(envPrefix)
	v.SetDefault("date-time-mode", SecondPrecision.String())
	if err := v.LoadFile(path); err != nil {
		return nil, merr.WrapErrIoFailed(path, err)
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("decode config %s: %s", path, err.Error())
	}
	if _, err := ParseDateTimeMode(cfg.DateTimeMode); err != nil {
		return nil, err
	}
	return cfg, nil
}

type propertyDef struct {
	name string
	typ  reflect.Type
	get  func(obj reflect.Value) reflect.Value
	set  func(obj, v reflect.Value)
	err  error
}

// typeConfig 保存单个类型的配置，在该类型的结构构建完成后不再生效。
type typeConfig struct {
	mu          sync.Mutex
	ignore      typeutil.Set[string]
	properties  []*propertyDef
	constructor func() reflect.Value
}

func (c *typeConfig) snapshot() (typeutil.Set[string], []*propertyDef, func() reflect.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ignore := c.ignore.Clone()
	props := make([]*propertyDef, len(c.properties))
	copy(props, c.properties)
	return ignore, props, c.constructor
}

// TypeConfig 是针对类型 T 的链式配置入口。
type TypeConfig[T any] struct {
	r   *Registry
	typ reflect.Type
	cfg *typeConfig
}

// ForType 返回类型 T 的配置入口。
func ForType[T any](r *Registry) *TypeConfig[T] {
	t := reflect.TypeFor[T]()
	cfg, _ := r.typeConfigs.GetOrInsert(t, &typeConfig{ignore: typeutil.NewSet[string]()})
	return &TypeConfig[T]{r: r, typ: t, cfg: cfg}
}

// late 判断 T 的结构是否已经构建，已构建时配置不再生效。
func (c *TypeConfig[T]) late(action string) bool {
	if _, ok := c.r.schemas.Get(c.typ); !ok {
		return false
	}
	c.r.Logger().RatedWarn(1, "type schema already built, configuration ignored",
		log.FieldType(c.typ.String()), zap.String("action", action))
	return true
}

// Ignore 将指定成员排除在编码之外。
func (c *TypeConfig[T]) Ignore(names ...string) *TypeConfig[T] {
	if c.late("ignore") {
		return c
	}
	c.cfg.mu.Lock()
	c.cfg.ignore.Insert(names...)
	c.cfg.mu.Unlock()
	return c
}

// Constructor 指定反序列化时创建 T 实例的方式，默认为零值。
func (c *TypeConfig[T]) Constructor(fn func() *T) *TypeConfig[T] {
	if c.late("constructor") {
		return c
	}
	c.cfg.mu.Lock()
	c.cfg.constructor = func() reflect.Value { return reflect.ValueOf(fn()) }
	c.cfg.mu.Unlock()
	return c
}

// Property 为 T 注册一个通过访问器读写的成员。
//
// set 为 nil 时成员为 AppendOnly：get 必须返回指向已有容器的指针，
// 反序列化时直接向该容器追加元素，而不是整体替换。
func Property[T, V any](c *TypeConfig[T], name string, get func(*T) V, set func(*T, V)) *TypeConfig[T] {
	if c.late("property " + name) {
		return c
	}
	def := &propertyDef{name: name, typ: reflect.TypeFor[V]()}
	switch {
	case get == nil:
		def.err = merr.WrapErrSerializeIllegalSchema(c.typ.String(), "property "+name+" has no getter")
	case set == nil && def.typ.Kind() != reflect.Pointer:
		def.err = merr.WrapErrSerializeIllegalSchema(c.typ.String(), "append-only property "+name+" must return a pointer")
	}
	if get != nil {
		def.get = func(obj reflect.Value) reflect.Value {
			out := get(obj.Addr().Interface().(*T))
			return reflect.ValueOf(&out).Elem()
		}
	}
	if set != nil {
		def.set = func(obj, v reflect.Value) {
			val, _ := v.Interface().(V)
			set(obj.Addr().Interface().(*T), val)
		}
	}

	c.cfg.mu.Lock()
	c.cfg.properties = append(c.cfg.properties, def)
	c.cfg.mu.Unlock()
	return c
}
