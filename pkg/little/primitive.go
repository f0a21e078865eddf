package little

import (
	"encoding/binary"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/lk2023060901/little-go/pkg/util/merr"
)

const (
	maxCount     = math.MaxInt32
	maxStringLen = 1 << 30
)

// Char 表示单个 UTF-16 码元，编码为 2 字节。
type Char uint16

// primitiveCodec 是固定类型的编解码例程。
type primitiveCodec struct {
	encode func(e *encodeState, v reflect.Value) error
	decode func(d *decodeState, t reflect.Type) (reflect.Value, error)
}

var (
	timeType    = reflect.TypeFor[time.Time]()
	uuidType    = reflect.TypeFor[uuid.UUID]()
	charType    = reflect.TypeFor[Char]()
	minDetailed = time.Unix(0, math.MinInt64)
	maxDetailed = time.Unix(0, math.MaxInt64)
)

// exactCodecs 优先按精确类型匹配，kindCodecs 按底层 Kind 匹配，
// 因此具名整数类型（枚举）按其底层整数编码。
var (
	exactCodecs = map[reflect.Type]*primitiveCodec{
		timeType:    {encode: encodeTime, decode: decodeTime},
		uuidType:    {encode: encodeUUID, decode: decodeUUID},
		decimalType: {encode: encodeDecimal, decode: decodeDecimal},
	}

	kindCodecs = map[reflect.Kind]*primitiveCodec{
		reflect.Bool:    {encode: encodeBool, decode: decodeBool},
		reflect.Int8:    {encode: encodeInt8, decode: decodeInt8},
		reflect.Uint8:   {encode: encodeUint8, decode: decodeUint8},
		reflect.Int16:   {encode: encodeInt16, decode: decodeInt16},
		reflect.Uint16:  {encode: encodeUint16, decode: decodeUint16},
		reflect.Int32:   {encode: encodeInt32, decode: decodeInt32},
		reflect.Uint32:  {encode: encodeUint32, decode: decodeUint32},
		reflect.Int64:   {encode: encodeInt64, decode: decodeInt64},
		reflect.Int:     {encode: encodeInt64, decode: decodeInt64},
		reflect.Uint64:  {encode: encodeUint64, decode: decodeUint64},
		reflect.Uint:    {encode: encodeUint64, decode: decodeUint64},
		reflect.Float32: {encode: encodeFloat32, decode: decodeFloat32},
		reflect.Float64: {encode: encodeFloat64, decode: decodeFloat64},
		reflect.String:  {encode: encodeString, decode: decodeString},
	}
)

func primitiveFor(t reflect.Type) *primitiveCodec {
	if c, ok := exactCodecs[t]; ok {
		return c
	}
	return kindCodecs[t.Kind()]
}

func encodeBool(e *encodeState, v reflect.Value) error {
	if v.Bool() {
		return e.writeByte(1)
	}
	return e.writeByte(0)
}

func decodeBool(d *decodeState, t reflect.Type) (reflect.Value, error) {
	b, err := d.src.readByte("bool")
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(t).Elem()
	out.SetBool(b != 0)
	return out, nil
}

func encodeInt8(e *encodeState, v reflect.Value) error {
	return e.writeByte(byte(int8(v.Int())))
}

func decodeInt8(d *decodeState, t reflect.Type) (reflect.Value, error) {
	b, err := d.src.readByte("int8")
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(t).Elem()
	out.SetInt(int64(int8(b)))
	return out, nil
}

func encodeUint8(e *encodeState, v reflect.Value) error {
	return e.writeByte(byte(v.Uint()))
}

func decodeUint8(d *decodeState, t reflect.Type) (reflect.Value, error) {
	b, err := d.src.readByte("uint8")
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(t).Elem()
	out.SetUint(uint64(b))
	return out, nil
}

func encodeInt16(e *encodeState, v reflect.Value) error {
	return e.writeUint16(uint16(int16(v.Int())))
}

func decodeInt16(d *decodeState, t reflect.Type) (reflect.Value, error) {
	u, err := d.src.readUint16("int16")
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(t).Elem()
	out.SetInt(int64(int16(u)))
	return out, nil
}

func encodeUint16(e *encodeState, v reflect.Value) error {
	return e.writeUint16(uint16(v.Uint()))
}

func decodeUint16(d *decodeState, t reflect.Type) (reflect.Value, error) {
	u, err := d.src.readUint16("uint16")
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(t).Elem()
	out.SetUint(uint64(u))
	return out, nil
}

func encodeInt32(e *encodeState, v reflect.Value) error {
	return e.writeUint32(uint32(int32(v.Int())))
}

func decodeInt32(d *decodeState, t reflect.Type) (reflect.Value, error) {
	u, err := d.src.readUint32("int32")
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(t).Elem()
	out.SetInt(int64(int32(u)))
	return out, nil
}

func encodeUint32(e *encodeState, v reflect.Value) error {
	return e.writeUint32(uint32(v.Uint()))
}

func decodeUint32(d *decodeState, t reflect.Type) (reflect.Value, error) {
	u, err := d.src.readUint32("uint32")
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(t).Elem()
	out.SetUint(uint64(u))
	return out, nil
}

func encodeInt64(e *encodeState, v reflect.Value) error {
	return e.writeUint64(uint64(v.Int()))
}

func decodeInt64(d *decodeState, t reflect.Type) (reflect.Value, error) {
	u, err := d.src.readUint64("int64")
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(t).Elem()
	out.SetInt(int64(u))
	return out, nil
}

func encodeUint64(e *encodeState, v reflect.Value) error {
	return e.writeUint64(v.Uint())
}

func decodeUint64(d *decodeState, t reflect.Type) (reflect.Value, error) {
	u, err := d.src.readUint64("uint64")
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(t).Elem()
	out.SetUint(u)
	return out, nil
}

// float32 直接按内存中的位模式读写，不经过 float64 转换，signaling NaN 也能原样还原。
func encodeFloat32(e *encodeState, v reflect.Value) error {
	if !v.CanAddr() {
		cp := reflect.New(v.Type()).Elem()
		cp.Set(v)
		v = cp
	}
	return e.writeUint32(*(*uint32)(v.Addr().UnsafePointer()))
}

func decodeFloat32(d *decodeState, t reflect.Type) (reflect.Value, error) {
	u, err := d.src.readUint32("float32")
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(t)
	*(*uint32)(out.UnsafePointer()) = u
	return out.Elem(), nil
}

func encodeFloat64(e *encodeState, v reflect.Value) error {
	return e.writeUint64(math.Float64bits(v.Float()))
}

func decodeFloat64(d *decodeState, t reflect.Type) (reflect.Value, error) {
	u, err := d.src.readUint64("float64")
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(t).Elem()
	out.SetFloat(math.Float64frombits(u))
	return out, nil
}

func encodeString(e *encodeState, v reflect.Value) error {
	return e.writeString(v.String())
}

func decodeString(d *decodeState, t reflect.Type) (reflect.Value, error) {
	s, err := d.src.readString()
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(t).Elem()
	out.SetString(s)
	return out, nil
}

func encodeUUID(e *encodeState, v reflect.Value) error {
	u := v.Interface().(uuid.UUID)
	_, err := e.s.Write(u[:])
	return err
}

func decodeUUID(d *decodeState, _ reflect.Type) (reflect.Value, error) {
	var u uuid.UUID
	if err := d.src.readFull(u[:], "guid"); err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(u), nil
}

func encodeTime(e *encodeState, v reflect.Value) error {
	t := v.Interface().(time.Time)
	if e.r.DateTimeMode() == Detailed {
		if t.Before(minDetailed) || t.After(maxDetailed) {
			return merr.WrapErrParameterInvalidRange(minDetailed.UTC().String(), maxDetailed.UTC().String(), t.UTC().String(), "datetime out of detailed range")
		}
		return e.writeUint64(uint64(t.UnixNano()))
	}
	secs := t.Unix()
	if secs < math.MinInt32 || secs > math.MaxInt32 {
		return merr.WrapErrParameterInvalidRange(int64(math.MinInt32), int64(math.MaxInt32), secs, "datetime seconds since epoch")
	}
	return e.writeUint32(uint32(int32(secs)))
}

func decodeTime(d *decodeState, _ reflect.Type) (reflect.Value, error) {
	if d.r.DateTimeMode() == Detailed {
		u, err := d.src.readUint64("datetime")
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(time.Unix(0, int64(u)).UTC()), nil
	}
	u, err := d.src.readUint32("datetime")
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(time.Unix(int64(int32(u)), 0).UTC()), nil
}

func putUint16(b []byte, v uint16) []byte {
	binary.LittleEndian.PutUint16(b, v)
	return b[:2]
}

func putUint32(b []byte, v uint32) []byte {
	binary.LittleEndian.PutUint32(b, v)
	return b[:4]
}

func putUint64(b []byte, v uint64) []byte {
	binary.LittleEndian.PutUint64(b, v)
	return b[:8]
}
