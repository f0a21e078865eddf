package little

import (
	"reflect"

	"github.com/ericlagergren/decimal"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lk2023060901/little-go/pkg/log"
	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// builtinTypeNames 为内置基础类型预先绑定的线上类型名。
var builtinTypeNames = []struct {
	name string
	typ  reflect.Type
}{
	{"bool", reflect.TypeFor[bool]()},
	{"int8", reflect.TypeFor[int8]()},
	{"uint8", reflect.TypeFor[uint8]()},
	{"int16", reflect.TypeFor[int16]()},
	{"uint16", reflect.TypeFor[uint16]()},
	{"int32", reflect.TypeFor[int32]()},
	{"uint32", reflect.TypeFor[uint32]()},
	{"int64", reflect.TypeFor[int64]()},
	{"uint64", reflect.TypeFor[uint64]()},
	{"int", reflect.TypeFor[int]()},
	{"uint", reflect.TypeFor[uint]()},
	{"float32", reflect.TypeFor[float32]()},
	{"float64", reflect.TypeFor[float64]()},
	{"string", reflect.TypeFor[string]()},
	{"char", charType},
	{"guid", uuidType},
	{"datetime", timeType},
	{"decimal", decimalType},
	{"*decimal", reflect.TypeFor[*decimal.Big]()},
	{"*guid", reflect.TypeFor[*uuid.UUID]()},
}

func (r *Registry) registerBuiltinTypes() {
	for _, b := range builtinTypeNames {
		r.typesByName.Insert(b.name, b.typ)
		r.namesByType.Insert(b.typ, b.name)
	}
}

// TypeName 返回类型的默认线上名称：具名类型为 包路径.类型名，指针类型加 "*" 前缀。
func TypeName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		return "*" + TypeName(t.Elem())
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// RegisterType 为具体类型 T 绑定线上类型名，name 为空时使用 TypeName。
// 接口类型成员或元素的实际值必须是已注册的类型才能被编码和解码。
func RegisterType[T any](r *Registry, name string) error {
	return r.Register(reflect.TypeFor[T](), name)
}

// Register 是 RegisterType 的非泛型版本。
func (r *Registry) Register(t reflect.Type, name string) error {
	if t == nil {
		return merr.WrapErrParameterMissing("type")
	}
	if t.Kind() == reflect.Interface {
		return merr.WrapErrParameterInvalidMsg("cannot register interface type %s", t.String())
	}
	if name == "" {
		name = TypeName(t)
	}
	existing, loaded := r.typesByName.GetOrInsert(name, t)
	if loaded && existing != t {
		return merr.WrapErrParameterInvalid(existing.String(), t.String(), "type name "+name+" already registered")
	}
	if prev, ok := r.namesByType.GetOrInsert(t, name); ok && prev != name {
		r.Logger().Warn("type registered under multiple names, keep the first",
			log.FieldType(t.String()), zap.String("first", prev), zap.String("ignored", name))
	}
	return nil
}

func (r *Registry) nameOf(t reflect.Type) (string, error) {
	name, ok := r.namesByType.Get(t)
	if !ok {
		return "", merr.WrapErrSerializeTypeNotRegistered(t.String())
	}
	return name, nil
}

func (r *Registry) resolve(name string, declared reflect.Type) (reflect.Type, error) {
	t, ok := r.typesByName.Get(name)
	if !ok {
		return nil, merr.WrapErrSerializeTypeUnresolved(name)
	}
	if !t.AssignableTo(declared) {
		return nil, merr.WrapErrSerializeTypeUnresolved(name, "not assignable to "+declared.String())
	}
	return t, nil
}
