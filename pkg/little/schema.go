package little

import (
	"reflect"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/lk2023060901/little-go/pkg/log"
	"github.com/lk2023060901/little-go/pkg/metrics"
	"github.com/lk2023060901/little-go/pkg/util/merr"
	"github.com/lk2023060901/little-go/pkg/util/typeutil"
)

const tagName = "little"

// Mutability 描述反序列化时成员的写入方式。
type Mutability int

const (
	// Assignable 成员解码后整体赋值。
	Assignable Mutability = iota
	// AppendOnly 成员没有 setter，解码时向 getter 返回的已有容器中追加。
	AppendOnly
)

func (m Mutability) String() string {
	if m == AppendOnly {
		return "append-only"
	}
	return "assignable"
}

// Member 描述类型中的一个可序列化成员。
type Member struct {
	// Name 仅用于排序，不写入线上格式。
	Name string
	// Type 为归一化后的类型：*T 归一化为 T；AppendOnly 成员为容器类型。
	Type reflect.Type
	// Raw 为成员声明类型；AppendOnly 成员为指向容器的指针类型。
	Raw        reflect.Type
	Nullable   bool
	HasHeader  bool
	Mutability Mutability
	Property   bool

	index []int
	get   func(obj reflect.Value) reflect.Value
	set   func(obj, v reflect.Value)
}

// value 读取成员当前值，obj 为可寻址的结构体值。
func (m *Member) value(obj reflect.Value) reflect.Value {
	if m.get != nil {
		return m.get(obj)
	}
	return obj.FieldByIndex(m.index)
}

func (m *Member) assign(obj, v reflect.Value) {
	if m.set != nil {
		m.set(obj, v)
		return
	}
	obj.FieldByIndex(m.index).Set(v)
}

// Schema 是类型的有序成员列表及构造器，构建后不可变。
type Schema struct {
	Type    reflect.Type
	Members []*Member

	constructor func() reflect.Value
}

// New 创建 Type 的新实例并返回其指针。
func (s *Schema) New() reflect.Value {
	if s.constructor != nil {
		if p := s.constructor(); p.IsValid() && !p.IsNil() {
			return p
		}
	}
	return reflect.New(s.Type)
}

// Names 返回按线上顺序排列的成员名。
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		names = append(names, m.Name)
	}
	return names
}

// SchemaOf 返回 T 的类型结构。
func SchemaOf[T any](r *Registry) (*Schema, error) {
	return r.Schema(reflect.TypeFor[T]())
}

// Schema 返回 t 的类型结构，首次访问时构建并缓存。
// 并发的首次构建最终收敛到同一个缓存项。
func (r *Registry) Schema(t reflect.Type) (*Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if s, ok := r.schemas.Get(t); ok {
		return s, nil
	}
	s, err := r.buildSchema(t)
	if err != nil {
		return nil, err
	}
	actual, loaded := r.schemas.GetOrInsert(t, s)
	if !loaded {
		metrics.LittleSchemaCacheEntries.Inc()
		r.Logger().Debug("type schema built",
			log.FieldType(t.String()), zap.Strings("members", actual.Names()))
	}
	return actual, nil
}

func nullableKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Func:
		return true
	default:
		return false
	}
}

// normalize 将指向非接口、非指针类型的指针归一化为其元素类型。
func normalize(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		elem := t.Elem()
		if elem.Kind() != reflect.Interface && elem.Kind() != reflect.Pointer {
			return elem
		}
	}
	return t
}

func (r *Registry) buildSchema(t reflect.Type) (*Schema, error) {
	if t.Kind() != reflect.Struct {
		return nil, merr.WrapErrSerializeUnsupportedType(t.String(), "only struct types have a schema")
	}
	ignore := typeutil.NewSet[string]()
	var (
		props       []*propertyDef
		constructor func() reflect.Value
	)
	if cfg, ok := r.typeConfigs.Get(t); ok {
		ignore, props, constructor = cfg.snapshot()
	}
	if byName := r.ignoredByName(t); byName != nil {
		ignore.Insert(byName.Collect()...)
	}

	seen := typeutil.NewSet[string]()
	properties := make([]*Member, 0, len(props))
	for _, p := range props {
		if p.err != nil {
			return nil, p.err
		}
		if ignore.Contain(p.name) {
			continue
		}
		if seen.Contain(p.name) {
			return nil, merr.WrapErrSerializeIllegalSchema(t.String(), "duplicate member "+p.name)
		}
		seen.Insert(p.name)
		m := &Member{
			Name:     p.name,
			Raw:      p.typ,
			Property: true,
			get:      p.get,
			set:      p.set,
		}
		if p.set == nil {
			m.Mutability = AppendOnly
			m.Type = p.typ.Elem()
			m.Nullable = nullableKind(m.Type)
		} else {
			m.Type = normalize(p.typ)
			m.Nullable = nullableKind(p.typ)
		}
		m.HasHeader = m.Nullable
		properties = append(properties, m)
	}

	fields := make([]*Member, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup(tagName); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		if ignore.Contain(name) || ignore.Contain(f.Name) {
			continue
		}
		if seen.Contain(name) {
			return nil, merr.WrapErrSerializeIllegalSchema(t.String(), "duplicate member "+name)
		}
		seen.Insert(name)
		fields = append(fields, &Member{
			Name:      name,
			Type:      normalize(f.Type),
			Raw:       f.Type,
			Nullable:  nullableKind(f.Type),
			HasHeader: nullableKind(f.Type),
			index:     f.Index,
		})
	}

	byName := func(a, b *Member) int { return strings.Compare(a.Name, b.Name) }
	slices.SortFunc(properties, byName)
	slices.SortFunc(fields, byName)

	return &Schema{
		Type:        t,
		Members:     append(properties, fields...),
		constructor: constructor,
	}, nil
}
