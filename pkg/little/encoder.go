package little

import (
	"encoding/binary"
	"io"
	"reflect"
	"strconv"

	"github.com/lk2023060901/little-go/pkg/metrics"
	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// maxDepth 限制对象图嵌套深度，超过时视为存在环或数据异常。
const maxDepth = 512

const (
	shapeLabelObject    = "object"
	shapeLabelList      = "list"
	shapeLabelPrimitive = "primitive"
)

// encodeState 持有单次编码的状态，不可并发使用。
type encodeState struct {
	r       *Registry
	s       sink
	depth   int
	scratch [binary.MaxVarintLen64]byte
}

func (e *encodeState) writeByte(b byte) error {
	return e.s.WriteByte(b)
}

func (e *encodeState) writeUint16(v uint16) error {
	_, err := e.s.Write(putUint16(e.scratch[:], v))
	return err
}

func (e *encodeState) writeUint32(v uint32) error {
	_, err := e.s.Write(putUint32(e.scratch[:], v))
	return err
}

func (e *encodeState) writeUint64(v uint64) error {
	_, err := e.s.Write(putUint64(e.scratch[:], v))
	return err
}

func (e *encodeState) writeString(s string) error {
	if len(s) > maxStringLen {
		return merr.WrapErrParameterTooLarge("string", "length exceeds limit")
	}
	n := binary.PutUvarint(e.scratch[:], uint64(len(s)))
	if _, err := e.s.Write(e.scratch[:n]); err != nil {
		return err
	}
	_, err := io.WriteString(e.s, s)
	return err
}

func (e *encodeState) writeHeader(h Header) error {
	return e.s.WriteByte(byte(h))
}

func (e *encodeState) writeCount(n int) error {
	if n > maxCount {
		return merr.WrapErrParameterInvalidRange(0, maxCount, n, "list count")
	}
	return e.writeUint32(uint32(int32(n)))
}

// encodeRoot 编码一个完整文档，返回文档形态用于指标标签。
func (e *encodeState) encodeRoot(v any) (string, error) {
	if v == nil {
		return "", merr.WrapErrParameterMissing("value", "cannot serialize nil root")
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", merr.WrapErrParameterMissing("value", "cannot serialize nil root")
		}
		rv = rv.Elem()
	}
	shape := shapeLabelObject
	if primitiveFor(rv.Type()) != nil {
		shape = shapeLabelPrimitive
	} else if e.r.shapeOf(rv.Type()).isList() {
		shape = shapeLabelList
	}
	return shape, e.encodeValue(rv)
}

// encodeValue 按 v 的具体类型编码：基础类型表、列表、对象依次匹配。
func (e *encodeState) encodeValue(v reflect.Value) error {
	t := v.Type()
	if c := primitiveFor(t); c != nil {
		return c.encode(e, v)
	}
	if e.depth >= maxDepth {
		return merr.WrapErrParameterTooLarge("depth", "object graph nested too deep")
	}
	e.depth++
	defer func() { e.depth-- }()

	shape := e.r.shapeOf(t)
	switch {
	case shape.isList():
		return e.encodeList(v, shape)
	case shape.kind == shapeUnsupported:
		return merr.WrapErrSerializeUnsupportedCollection(t.String())
	case t.Kind() == reflect.Struct:
		return e.encodeObject(v)
	default:
		return merr.WrapErrSerializeUnsupportedType(t.String())
	}
}

// ambiguous 判断声明类型是否需要写出类型名：去掉指针层后为非列表形态的接口。
func (r *Registry) ambiguous(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Interface && !r.shapeOf(t).isList()
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Func, reflect.Map, reflect.Chan:
		return v.IsNil()
	case reflect.Interface:
		if v.IsNil() {
			return true
		}
		inner := v.Elem()
		return inner.Kind() == reflect.Pointer && inner.IsNil()
	default:
		return false
	}
}

// deref 逐层剥去指针与接口，任一层为 nil 时返回 false。
func deref(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, true
}

// encodeSlot 编码一个成员或列表元素，v 的类型为其声明类型。
func (e *encodeState) encodeSlot(v reflect.Value, hasHeader, ambiguous bool) error {
	if ambiguous {
		for v.Kind() == reflect.Pointer && !v.IsNil() {
			v = v.Elem()
		}
	}
	inner, ok := deref(v)
	if !ok || isNil(inner) {
		if !hasHeader {
			return merr.WrapErrSerializeNonNullableAbsent(v.Type().String(), "")
		}
		return e.writeHeader(HeaderNull)
	}
	if ambiguous {
		name, err := e.r.nameOf(v.Elem().Type())
		if err != nil {
			return err
		}
		if err := e.writeHeader(HeaderAmbiguous); err != nil {
			return err
		}
		if err := e.writeString(name); err != nil {
			return err
		}
	} else if hasHeader {
		if err := e.writeHeader(newHeader(false, false)); err != nil {
			return err
		}
	}
	return e.encodeValue(inner)
}

func (e *encodeState) encodeObject(v reflect.Value) error {
	schema, err := e.r.Schema(v.Type())
	if err != nil {
		return err
	}
	obj := v
	if !obj.CanAddr() {
		obj = reflect.New(v.Type()).Elem()
		obj.Set(v)
	}
	for _, m := range schema.Members {
		mv := m.value(obj)
		if m.Mutability == AppendOnly {
			if mv.IsNil() {
				if !m.HasHeader {
					return merr.WrapErrSerializeNonNullableAbsent(schema.Type.String(), m.Name)
				}
				if err := e.writeHeader(HeaderNull); err != nil {
					return err
				}
				continue
			}
			mv = mv.Elem()
		}
		if !m.HasHeader && isNil(mv) {
			return merr.WrapErrSerializeNonNullableAbsent(schema.Type.String(), m.Name)
		}
		if err := e.encodeSlot(mv, m.HasHeader, e.r.ambiguous(m.Type)); err != nil {
			return err
		}
	}
	return nil
}

func (e *encodeState) encodeList(v reflect.Value, shape collectionShape) error {
	hasHeader := nullableKind(shape.elem)
	ambiguous := e.r.ambiguous(shape.elem)

	switch shape.kind {
	case shapeArray, shapeSlice:
		n := v.Len()
		if err := e.writeCount(n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := e.encodeSlot(v.Index(i), hasHeader, ambiguous); err != nil {
				return err
			}
		}
		return nil
	case shapeCollection:
		return e.encodeSeq(callAll(v), hasHeader, ambiguous)
	case shapeSeq:
		if v.IsNil() {
			return e.writeCount(0)
		}
		return e.encodeSeq(v, hasHeader, ambiguous)
	default:
		return merr.WrapErrSerializeUnsupportedCollection(v.Type().String())
	}
}

// encodeSeq 编码未知长度的序列：先预留 4 字节，遍历结束后回填元素个数。
func (e *encodeState) encodeSeq(seq reflect.Value, hasHeader, ambiguous bool) error {
	pos, err := e.s.reserve()
	if err != nil {
		return err
	}
	count := 0
	err = iterate(seq, func(elem reflect.Value) error {
		if count >= maxCount {
			return merr.WrapErrParameterInvalidRange(0, maxCount, count+1, "list count")
		}
		count++
		return e.encodeSlot(elem, hasHeader, ambiguous)
	})
	if err != nil {
		return err
	}
	return e.s.patch(pos, int32(count))
}

// Encoder 将多个文档依次写入同一个输出流。
type Encoder struct {
	st encodeState
}

// NewEncoder 创建写入 w 的 Encoder。w 实现 io.WriteSeeker 时直接写出并回填列表个数，
// 否则每个文档先在内存中缓冲，编码成功后整体写出。
func NewEncoder(r *Registry, w io.Writer) *Encoder {
	return &Encoder{st: encodeState{r: r, s: newSink(w)}}
}

// Encode 将 v 作为一个完整文档写出。
func (enc *Encoder) Encode(v any) error {
	return encodeDocument(&enc.st, v)
}

func encodeDocument(e *encodeState, v any) error {
	e.depth = 0
	shape, err := e.encodeRoot(v)
	size := e.s.written()
	if err == nil {
		err = e.s.flush()
	}
	if err != nil {
		e.s.reset()
		metrics.LittleErrorsTotal.WithLabelValues(metrics.DirectionEncode, strconv.Itoa(int(merr.Code(err)))).Inc()
		return err
	}
	metrics.LittleDocumentsTotal.WithLabelValues(metrics.DirectionEncode, shape).Inc()
	metrics.LittleBytesTotal.WithLabelValues(metrics.DirectionEncode).Add(float64(size))
	metrics.LittleDocumentSize.WithLabelValues(metrics.DirectionEncode).Observe(float64(size))
	return nil
}

// Serialize 将 v 编码为字节切片。
func Serialize(r *Registry, v any) ([]byte, error) {
	s := newBufferSink()
	if err := encodeDocument(&encodeState{r: r, s: s}, v); err != nil {
		s.bytes()
		return nil, err
	}
	return s.bytes(), nil
}

// SerializeTo 将 v 编码后写入 w。可 Seek 的 w 不会在内存中缓冲整个文档。
func SerializeTo(r *Registry, v any, w io.Writer) error {
	return NewEncoder(r, w).Encode(v)
}
