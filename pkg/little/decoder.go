package little

import (
	"bufio"
	"bytes"
	"io"
	"reflect"
	"strconv"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/little-go/pkg/log"
	"github.com/lk2023060901/little-go/pkg/metrics"
	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// decodeState 持有单次解码的状态，不可并发使用。
type decodeState struct {
	r     *Registry
	src   *source
	depth int
}

// decodeValue 按类型 t 解码一个值：基础类型表、列表、对象依次匹配。
// existing 为指向已有容器的指针，仅在列表解码时使用。
func (d *decodeState) decodeValue(t reflect.Type, existing reflect.Value) (reflect.Value, error) {
	if c := primitiveFor(t); c != nil {
		return c.decode(d, t)
	}
	if d.depth >= maxDepth {
		return reflect.Value{}, merr.WrapErrParameterTooLarge("depth", "document nested too deep")
	}
	d.depth++
	defer func() { d.depth-- }()

	shape := d.r.shapeOf(t)
	switch {
	case shape.isList():
		return d.decodeList(t, shape, existing)
	case shape.kind == shapeUnsupported:
		return reflect.Value{}, merr.WrapErrSerializeUnsupportedCollection(t.String())
	case t.Kind() == reflect.Struct:
		return d.decodeObject(t)
	case t.Kind() == reflect.Interface:
		return reflect.Value{}, merr.WrapErrSerializeTypeUnresolved("", "no type name for "+t.String())
	default:
		return reflect.Value{}, merr.WrapErrSerializeUnsupportedType(t.String())
	}
}

// decodeConcrete 解码类型 t 的值，指针类型先解码其元素再取地址。
func (d *decodeState) decodeConcrete(t reflect.Type, existing reflect.Value) (reflect.Value, error) {
	if t.Kind() != reflect.Pointer {
		return d.decodeValue(t, existing)
	}
	inner, err := d.decodeConcrete(t.Elem(), existing)
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(t.Elem())
	p.Elem().Set(inner)
	return p, nil
}

// decodeSlot 解码一个成员或列表元素，declared 为其声明类型。
// 返回值类型为 declared；present 为 false 表示线上为空值。
func (d *decodeState) decodeSlot(declared reflect.Type, hasHeader bool, existing reflect.Value) (reflect.Value, bool, error) {
	ambiguous := false
	if hasHeader {
		h, err := d.src.readHeader()
		if err != nil {
			return reflect.Value{}, false, err
		}
		if h.IsNull() {
			return reflect.Zero(declared), false, nil
		}
		ambiguous = h.IsAmbiguous()
	}
	if !ambiguous {
		val, err := d.decodeConcrete(declared, existing)
		return val, err == nil, err
	}

	name, err := d.src.readString()
	if err != nil {
		return reflect.Value{}, false, err
	}
	base := declared
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	concrete, err := d.r.resolve(name, base)
	if err != nil {
		return reflect.Value{}, false, err
	}
	val, err := d.decodeConcrete(concrete, reflect.Value{})
	if err != nil {
		return reflect.Value{}, false, err
	}
	if base.Kind() == reflect.Interface {
		out := reflect.New(base).Elem()
		out.Set(val)
		val = out
	}
	return addressTo(val, declared), true, nil
}

// addressTo 对 v 逐层取地址，直到其类型为 declared。
func addressTo(v reflect.Value, declared reflect.Type) reflect.Value {
	if declared.Kind() != reflect.Pointer || v.Type() == declared {
		return v
	}
	inner := addressTo(v, declared.Elem())
	p := reflect.New(declared.Elem())
	p.Elem().Set(inner)
	return p
}

func (d *decodeState) decodeObject(t reflect.Type) (reflect.Value, error) {
	schema, err := d.r.Schema(t)
	if err != nil {
		return reflect.Value{}, err
	}
	obj := schema.New().Elem()
	for _, m := range schema.Members {
		if m.Mutability == AppendOnly {
			if err := d.decodeAppendOnly(schema, m, obj); err != nil {
				return reflect.Value{}, err
			}
			continue
		}
		val, present, err := d.decodeSlot(m.Raw, m.HasHeader, reflect.Value{})
		if err != nil {
			return reflect.Value{}, err
		}
		if present {
			m.assign(obj, val)
		}
	}
	return obj, nil
}

// decodeAppendOnly 向 getter 返回的已有容器写入，getter 返回 nil 时解码后丢弃。
func (d *decodeState) decodeAppendOnly(schema *Schema, m *Member, obj reflect.Value) error {
	handle := m.value(obj)
	var existing reflect.Value
	if !handle.IsNil() {
		existing = handle
	}
	val, present, err := d.decodeSlot(m.Type, m.HasHeader, existing)
	if err != nil {
		return err
	}
	if !present {
		return nil
	}
	if !existing.IsValid() {
		d.r.Logger().RatedDebug(1, "append-only member has no container, value dropped",
			log.FieldType(schema.Type.String()), log.FieldMember(m.Name))
		return nil
	}
	existing.Elem().Set(val)
	return nil
}

func (d *decodeState) decodeList(t reflect.Type, shape collectionShape, existing reflect.Value) (reflect.Value, error) {
	n, err := d.src.readCount()
	if err != nil {
		return reflect.Value{}, err
	}
	adapter, err := newAdapter(t, shape, n, existing)
	if err != nil {
		return reflect.Value{}, err
	}
	hasHeader := nullableKind(shape.elem)
	for i := 0; i < n; i++ {
		val, _, err := d.decodeSlot(shape.elem, hasHeader, reflect.Value{})
		if err != nil {
			return reflect.Value{}, err
		}
		if err := adapter.add(val); err != nil {
			return reflect.Value{}, err
		}
	}
	return adapter.collection(), nil
}

// decodeDocument 解码一个完整文档到 dst（可设置的值）。
// 流在文档第一个字节之前耗尽时返回 io.EOF。
func decodeDocument(d *decodeState, dst reflect.Value) error {
	start := d.src.n
	d.depth = 0
	val, err := d.decodeConcrete(dst.Type(), reflect.Value{})
	if err != nil {
		if d.src.n == start && errors.Is(err, merr.ErrIoUnexpectEOF) {
			return io.EOF
		}
		metrics.LittleErrorsTotal.WithLabelValues(metrics.DirectionDecode, strconv.Itoa(int(merr.Code(err)))).Inc()
		d.r.Logger().Warn("failed to decode document",
			log.FieldType(dst.Type().String()), zap.Int64("offset", d.src.n), zap.Error(err))
		return err
	}
	dst.Set(val)

	size := d.src.n - start
	shape := shapeLabelObject
	if primitiveFor(normalize(dst.Type())) != nil {
		shape = shapeLabelPrimitive
	} else if d.r.shapeOf(normalize(dst.Type())).isList() {
		shape = shapeLabelList
	}
	metrics.LittleDocumentsTotal.WithLabelValues(metrics.DirectionDecode, shape).Inc()
	metrics.LittleBytesTotal.WithLabelValues(metrics.DirectionDecode).Add(float64(size))
	metrics.LittleDocumentSize.WithLabelValues(metrics.DirectionDecode).Observe(float64(size))
	return nil
}

// Decoder 从同一个输入流中依次读取多个文档。
type Decoder struct {
	st decodeState
}

// NewDecoder 创建读取 rd 的 Decoder。rd 不实现 io.ByteReader 时会被 bufio.Reader 包装，
// 此后不应再直接读取 rd。
func NewDecoder(r *Registry, rd io.Reader) *Decoder {
	if _, ok := rd.(io.ByteReader); !ok {
		rd = bufio.NewReader(rd)
	}
	return &Decoder{st: decodeState{r: r, src: newSource(rd)}}
}

// Decode 解码下一个文档到 v（必须为非 nil 指针）。
// 流在文档开始前恰好耗尽时返回 io.EOF；文档中途截断返回 merr.ErrIoUnexpectEOF。
func (dec *Decoder) Decode(v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return merr.WrapErrParameterInvalidMsg("decode target must be a non-nil pointer, got %T", v)
	}
	return decodeDocument(&dec.st, rv.Elem())
}

// Deserialize 从 data 解码一个 T。
func Deserialize[T any](r *Registry, data []byte) (T, error) {
	var out T
	d := &decodeState{r: r, src: newSource(bytes.NewReader(data))}
	err := decodeDocument(d, reflect.ValueOf(&out).Elem())
	if err == io.EOF {
		err = merr.WrapErrIoUnexpectEOF("document", io.ErrUnexpectedEOF)
	}
	return out, err
}

// DeserializeFrom 从 rd 读取一个 T，ok 为 false 表示流在文档开始前已经耗尽。
// rd 不实现 io.ByteReader 时逐字节读取，保证不会多读下一个文档的内容。
func DeserializeFrom[T any](r *Registry, rd io.Reader) (T, bool, error) {
	var out T
	d := &decodeState{r: r, src: newSource(rd)}
	err := decodeDocument(d, reflect.ValueOf(&out).Elem())
	if err == io.EOF {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	return out, true, nil
}
