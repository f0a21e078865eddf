package little

import (
	"reflect"

	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// preallocLimit 限制按线上元素个数预分配的容量，避免损坏数据触发超大分配。
const preallocLimit = 1024

type shapeKind int

const (
	shapeNone shapeKind = iota
	shapeArray
	shapeSlice
	shapeCollection
	shapeSeq
	// shapeUnsupported 表示可迭代但无法作为列表还原的类型，如 map、chan 或只有 All 的类型。
	shapeUnsupported
)

func (k shapeKind) String() string {
	switch k {
	case shapeArray:
		return "array"
	case shapeSlice:
		return "slice"
	case shapeCollection:
		return "collection"
	case shapeSeq:
		return "seq"
	case shapeUnsupported:
		return "unsupported"
	default:
		return "none"
	}
}

// collectionShape 描述列表形态类型的元素类型与适配方式。
type collectionShape struct {
	kind shapeKind
	elem reflect.Type
}

func (s collectionShape) isList() bool {
	return s.kind != shapeNone && s.kind != shapeUnsupported
}

// shapeOf 按以下顺序判定，先匹配者生效：
// 数组、切片（包括带 Add 方法的具名切片）、带 Add(E) 与 All() iter.Seq[E] 的集合、iter.Seq[E] 函数。
func (r *Registry) shapeOf(t reflect.Type) collectionShape {
	if s, ok := r.shapes.Get(t); ok {
		return s
	}
	s := detectShape(t)
	r.shapes.Insert(t, s)
	return s
}

func detectShape(t reflect.Type) collectionShape {
	switch t.Kind() {
	case reflect.Array:
		return collectionShape{kind: shapeArray, elem: t.Elem()}
	case reflect.Slice:
		return collectionShape{kind: shapeSlice, elem: t.Elem()}
	}
	addElem, hasAdd := addMethodElem(t)
	allElem, hasAll := allMethodElem(t)
	if hasAdd && hasAll && addElem == allElem {
		return collectionShape{kind: shapeCollection, elem: addElem}
	}
	if elem, ok := seqElem(t); ok {
		return collectionShape{kind: shapeSeq, elem: elem}
	}
	if hasAll || t.Kind() == reflect.Map || t.Kind() == reflect.Chan {
		return collectionShape{kind: shapeUnsupported}
	}
	return collectionShape{kind: shapeNone}
}

// methodType 返回 t 或 *t 上的方法签名，去掉接收者参数。
func methodType(t reflect.Type, name string) (reflect.Type, bool) {
	if t.Kind() == reflect.Interface {
		m, ok := t.MethodByName(name)
		return m.Type, ok
	}
	candidates := []reflect.Type{t}
	if t.Kind() != reflect.Pointer {
		candidates = append(candidates, reflect.PointerTo(t))
	}
	for _, c := range candidates {
		m, ok := c.MethodByName(name)
		if !ok {
			continue
		}
		in := make([]reflect.Type, 0, m.Type.NumIn()-1)
		for i := 1; i < m.Type.NumIn(); i++ {
			in = append(in, m.Type.In(i))
		}
		out := make([]reflect.Type, 0, m.Type.NumOut())
		for i := 0; i < m.Type.NumOut(); i++ {
			out = append(out, m.Type.Out(i))
		}
		return reflect.FuncOf(in, out, m.Type.IsVariadic()), true
	}
	return nil, false
}

func addMethodElem(t reflect.Type) (reflect.Type, bool) {
	mt, ok := methodType(t, "Add")
	if !ok || mt.NumIn() != 1 || mt.IsVariadic() {
		return nil, false
	}
	return mt.In(0), true
}

func allMethodElem(t reflect.Type) (reflect.Type, bool) {
	mt, ok := methodType(t, "All")
	if !ok || mt.NumIn() != 0 || mt.NumOut() != 1 {
		return nil, false
	}
	return seqElem(mt.Out(0))
}

// seqElem 判断 t 是否形如 func(yield func(E) bool)。
func seqElem(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 {
		return nil, false
	}
	yield := t.In(0)
	if yield.Kind() != reflect.Func || yield.NumIn() != 1 || yield.NumOut() != 1 || yield.Out(0).Kind() != reflect.Bool {
		return nil, false
	}
	return yield.In(0), true
}

// callAll 调用集合的 All 方法，返回其 iter.Seq。
func callAll(v reflect.Value) reflect.Value {
	m := v.MethodByName("All")
	if !m.IsValid() && v.CanAddr() {
		m = v.Addr().MethodByName("All")
	}
	if !m.IsValid() {
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		m = p.MethodByName("All")
	}
	return m.Call(nil)[0]
}

// iterate 依次以每个元素调用 fn，fn 返回错误时提前终止并返回该错误。
func iterate(seq reflect.Value, fn func(elem reflect.Value) error) error {
	var err error
	yield := reflect.MakeFunc(seq.Type().In(0), func(args []reflect.Value) []reflect.Value {
		err = fn(args[0])
		return []reflect.Value{reflect.ValueOf(err == nil)}
	})
	seq.Call([]reflect.Value{yield})
	return err
}

// collectionAdapter 在解码期间包装一个目标容器，统一为追加与取结果两个操作。
type collectionAdapter interface {
	add(v reflect.Value) error
	collection() reflect.Value
}

// arrayAdapter 按下标写入定长数组。
type arrayAdapter struct {
	arr reflect.Value
	i   int
}

func (a *arrayAdapter) add(v reflect.Value) error {
	if a.i >= a.arr.Len() {
		return merr.WrapErrParameterInvalidRange(0, a.arr.Len(), a.i+1, "array element count")
	}
	a.arr.Index(a.i).Set(v)
	a.i++
	return nil
}

func (a *arrayAdapter) collection() reflect.Value {
	return a.arr
}

// listAdapter 向可寻址的切片追加。
type listAdapter struct {
	list reflect.Value
}

func (a *listAdapter) add(v reflect.Value) error {
	a.list.Set(reflect.Append(a.list, v))
	return nil
}

func (a *listAdapter) collection() reflect.Value {
	return a.list
}

// bagAdapter 通过容器自身的 Add 方法追加。
type bagAdapter struct {
	ptr    reflect.Value
	addFn  reflect.Value
	target reflect.Type
}

func (a *bagAdapter) add(v reflect.Value) error {
	a.addFn.Call([]reflect.Value{v})
	return nil
}

func (a *bagAdapter) collection() reflect.Value {
	if a.target.Kind() == reflect.Interface {
		out := reflect.New(a.target).Elem()
		out.Set(a.ptr)
		return out
	}
	return a.ptr.Elem()
}

// seqAdapter 先收集到切片，结果为遍历该切片的 iter.Seq。
type seqAdapter struct {
	listAdapter
	seqType reflect.Type
}

func (a *seqAdapter) collection() reflect.Value {
	items := a.list
	return reflect.MakeFunc(a.seqType, func(args []reflect.Value) []reflect.Value {
		yield := args[0]
		for i := 0; i < items.Len(); i++ {
			if !yield.Call([]reflect.Value{items.Index(i)})[0].Bool() {
				break
			}
		}
		return nil
	})
}

// newAdapter 为类型 t 创建适配器。existing 为指向已有容器的指针，无效时新建容器。
func newAdapter(t reflect.Type, shape collectionShape, count int, existing reflect.Value) (collectionAdapter, error) {
	switch shape.kind {
	case shapeArray:
		arr := reflect.New(t).Elem()
		if existing.IsValid() {
			arr = existing.Elem()
		}
		if count > arr.Len() {
			return nil, merr.WrapErrParameterInvalidRange(0, arr.Len(), count, "array element count")
		}
		return &arrayAdapter{arr: arr}, nil

	case shapeSlice:
		if existing.IsValid() {
			return &listAdapter{list: existing.Elem()}, nil
		}
		list := reflect.New(t).Elem()
		list.Set(reflect.MakeSlice(t, 0, min(count, preallocLimit)))
		return &listAdapter{list: list}, nil

	case shapeCollection:
		ptr := existing
		if !ptr.IsValid() {
			if t.Kind() == reflect.Interface {
				return nil, merr.WrapErrSerializeUnsupportedCollection(t.String(), "no existing container to append into")
			}
			ptr = reflect.New(t)
			if t.Kind() == reflect.Map {
				ptr.Elem().Set(reflect.MakeMap(t))
			}
		}
		target := ptr
		if t.Kind() == reflect.Interface {
			target = ptr.Elem()
			if target.IsNil() {
				return nil, merr.WrapErrSerializeUnsupportedCollection(t.String(), "existing container is nil")
			}
		}
		addFn := target.MethodByName("Add")
		if !addFn.IsValid() {
			return nil, merr.WrapErrSerializeUnsupportedCollection(t.String(), "Add is not callable")
		}
		return &bagAdapter{ptr: target, addFn: addFn, target: t}, nil

	case shapeSeq:
		list := reflect.New(reflect.SliceOf(shape.elem)).Elem()
		list.Set(reflect.MakeSlice(list.Type(), 0, min(count, preallocLimit)))
		return &seqAdapter{listAdapter: listAdapter{list: list}, seqType: t}, nil

	default:
		return nil, merr.WrapErrSerializeUnsupportedCollection(t.String())
	}
}
