package little

import (
	"math"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/little-go/pkg/util/merr"
)

type Point struct {
	X int32
	Y int32
}

type Primitives struct {
	B      bool
	I8     int8
	U8     uint8
	I16    int16
	U16    uint16
	C      Char
	I32    int32
	U32    uint32
	I64    int64
	U64    uint64
	I      int
	U      uint
	S      string
	ID     uuid.UUID
	At     time.Time
	Amount decimal.Big
}

type Floats struct {
	F32 float32
	F64 float64
}

type Level int16

type Tagged struct {
	Zeta  int8
	Alpha int8
	Mid   int8 `little:"beta"`
	Skip  int8 `little:"-"`
	level Level
}

type Nullables struct {
	Name  *string
	Tags  []string
	Child *Point
	Any   any
	Level Level
}

type Shape interface {
	Area() float64
}

type Circle struct {
	R float64
}

func (c Circle) Area() float64 { return math.Pi * c.R * c.R }

type Square struct {
	Side float64
}

func (s *Square) Area() float64 { return s.Side * s.Side }

type Triangle struct {
	Base, Height float64
}

func (t Triangle) Area() float64 { return t.Base * t.Height / 2 }

type Drawing struct {
	Title  string
	Shapes []Shape
	Main   Shape
}

type Indirect struct {
	P      **Point
	S      *Shape
	Shapes []*Shape
}

type Ratio float32

func strPtr(s string) *string { return &s }

type LittleSuite struct {
	suite.Suite
	r *Registry
}

func (s *LittleSuite) SetupTest() {
	s.r = NewRegistry()
}

func (s *LittleSuite) TestIntListWireLayout() {
	data, err := Serialize(s.r, []int32{20, 140})
	s.Require().NoError(err)
	s.Equal([]byte{0x02, 0x00, 0x00, 0x00, 0x14, 0x00, 0x00, 0x00, 0x8c, 0x00, 0x00, 0x00}, data)

	out, err := Deserialize[[]int32](s.r, data)
	s.Require().NoError(err)
	s.Equal([]int32{20, 140}, out)
}

func (s *LittleSuite) TestNullableStringList() {
	data, err := Serialize(s.r, []*string{nil, nil, strPtr("ab")})
	s.Require().NoError(err)
	s.Equal([]byte{0x03, 0x00, 0x00, 0x00, 0x80, 0x80, 0x00, 0x02, 'a', 'b'}, data)

	out, err := Deserialize[[]*string](s.r, data)
	s.Require().NoError(err)
	s.Require().Len(out, 3)
	s.Nil(out[0])
	s.Nil(out[1])
	s.Equal("ab", *out[2])
}

func (s *LittleSuite) TestPrimitivesRoundTrip() {
	in := Primitives{
		B:   true,
		I8:  -8,
		U8:  200,
		I16: -1600,
		U16: 60000,
		C:   Char('é'),
		I32: math.MinInt32,
		U32: math.MaxUint32,
		I64: math.MinInt64,
		U64: math.MaxUint64,
		I:   -42,
		U:   42,
		S:   "小端 little",
		ID:  uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		At:  time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
	}
	in.Amount.SetMantScale(-1234567, 3)

	data, err := Serialize(s.r, &in)
	s.Require().NoError(err)

	out, err := Deserialize[Primitives](s.r, data)
	s.Require().NoError(err)
	s.Equal(in.B, out.B)
	s.Equal(in.I8, out.I8)
	s.Equal(in.U8, out.U8)
	s.Equal(in.I16, out.I16)
	s.Equal(in.U16, out.U16)
	s.Equal(in.C, out.C)
	s.Equal(in.I32, out.I32)
	s.Equal(in.U32, out.U32)
	s.Equal(in.I64, out.I64)
	s.Equal(in.U64, out.U64)
	s.Equal(in.I, out.I)
	s.Equal(in.U, out.U)
	s.Equal(in.S, out.S)
	s.Equal(in.ID, out.ID)
	s.True(in.At.Equal(out.At))
	s.Equal(time.UTC, out.At.Location())
	s.Equal(0, in.Amount.Cmp(&out.Amount), "got %s", out.Amount.String())
	s.Equal(3, out.Amount.Scale())
}

func (s *LittleSuite) TestFloatBitExact() {
	in := Floats{
		F32: math.Float32frombits(0x7fc00001),
		F64: math.Float64frombits(0x7ff8000000000001),
	}
	data, err := Serialize(s.r, in)
	s.Require().NoError(err)
	out, err := Deserialize[Floats](s.r, data)
	s.Require().NoError(err)
	s.Equal(uint32(0x7fc00001), math.Float32bits(out.F32))
	s.Equal(uint64(0x7ff8000000000001), math.Float64bits(out.F64))

	in = Floats{
		F32: math.Float32frombits(0x7f800001),
		F64: math.Float64frombits(0x7ff0000000000001),
	}
	data, err = Serialize(s.r, in)
	s.Require().NoError(err)
	s.Equal([]byte{0x01, 0x00, 0x80, 0x7f}, data[:4])
	out, err = Deserialize[Floats](s.r, data)
	s.Require().NoError(err)
	s.Equal(uint32(0x7f800001), math.Float32bits(out.F32))
	s.Equal(uint64(0x7ff0000000000001), math.Float64bits(out.F64))

	data, err = Serialize(s.r, math.Float32frombits(0xff800002))
	s.Require().NoError(err)
	s.Equal([]byte{0x02, 0x00, 0x80, 0xff}, data)
	ratios, err := Deserialize[[]Ratio](s.r, append([]byte{0x01, 0x00, 0x00, 0x00}, data...))
	s.Require().NoError(err)
	s.Require().Len(ratios, 1)
	s.Equal(uint32(0xff800002), math.Float32bits(float32(ratios[0])))

	negZero := math.Copysign(0, -1)
	data, err = Serialize(s.r, negZero)
	s.Require().NoError(err)
	f, err := Deserialize[float64](s.r, data)
	s.Require().NoError(err)
	s.Equal(math.Float64bits(negZero), math.Float64bits(f))
}

func (s *LittleSuite) TestMemberOrder() {
	data, err := Serialize(s.r, Tagged{Zeta: 2, Alpha: 1, Mid: 3, Skip: 9, level: 7})
	s.Require().NoError(err)
	s.Equal([]byte{0x01, 0x02, 0x03}, data)

	schema, err := SchemaOf[Tagged](s.r)
	s.Require().NoError(err)
	s.Equal([]string{"Alpha", "Zeta", "beta"}, schema.Names())

	again, err := Serialize(s.r, Tagged{Zeta: 2, Alpha: 1, Mid: 3})
	s.Require().NoError(err)
	s.Equal(data, again)
}

func (s *LittleSuite) TestNullPreservation() {
	data, err := Serialize(s.r, Nullables{Level: 3})
	s.Require().NoError(err)
	// Any, Child, Level, Name, Tags
	s.Equal([]byte{0x80, 0x80, 0x03, 0x00, 0x80, 0x80}, data)

	out, err := Deserialize[Nullables](s.r, data)
	s.Require().NoError(err)
	s.Nil(out.Name)
	s.Nil(out.Tags)
	s.Nil(out.Child)
	s.Nil(out.Any)
	s.Equal(Level(3), out.Level)

	in := Nullables{Name: strPtr(""), Tags: []string{}, Child: &Point{X: 1, Y: -1}, Any: int32(5)}
	data, err = Serialize(s.r, in)
	s.Require().NoError(err)
	out, err = Deserialize[Nullables](s.r, data)
	s.Require().NoError(err)
	s.Require().NotNil(out.Name)
	s.Equal("", *out.Name)
	s.NotNil(out.Tags)
	s.Empty(out.Tags)
	s.Equal(&Point{X: 1, Y: -1}, out.Child)
	s.Equal(int32(5), out.Any)
}

func (s *LittleSuite) TestPolymorphicList() {
	s.Require().NoError(RegisterType[Circle](s.r, "circle"))
	s.Require().NoError(RegisterType[*Square](s.r, "square"))

	in := []Shape{Circle{R: 1}, &Square{Side: 2}, nil}
	data, err := Serialize(s.r, in)
	s.Require().NoError(err)
	s.Equal(byte(HeaderAmbiguous), data[4])
	s.Equal(byte(6), data[5])
	s.Equal("circle", string(data[6:12]))

	out, err := Deserialize[[]Shape](s.r, data)
	s.Require().NoError(err)
	s.Equal(in, out)
}

func (s *LittleSuite) TestPolymorphicMember() {
	s.Require().NoError(RegisterType[Circle](s.r, ""))
	s.Require().NoError(RegisterType[*Square](s.r, ""))

	in := Drawing{
		Title:  "doodle",
		Shapes: []Shape{&Square{Side: 3}, Circle{R: 0.5}},
		Main:   Circle{R: 2},
	}
	data, err := Serialize(s.r, in)
	s.Require().NoError(err)
	out, err := Deserialize[Drawing](s.r, data)
	s.Require().NoError(err)
	s.Equal(in, out)
}

func (s *LittleSuite) TestIndirectMembers() {
	s.Require().NoError(RegisterType[Circle](s.r, "circle"))

	var nilPoint *Point
	var nilShape Shape
	data, err := Serialize(s.r, Indirect{P: &nilPoint, S: &nilShape, Shapes: []*Shape{nil, &nilShape}})
	s.Require().NoError(err)
	s.Equal([]byte{0x80, 0x80, 0x00, 0x02, 0x00, 0x00, 0x00, 0x80, 0x80}, data)
	out, err := Deserialize[Indirect](s.r, data)
	s.Require().NoError(err)
	s.Nil(out.P)
	s.Nil(out.S)
	s.Equal([]*Shape{nil, nil}, out.Shapes)

	p := &Point{X: 3, Y: 4}
	var circle Shape = Circle{R: 2}
	data, err = Serialize(s.r, Indirect{P: &p, S: &circle, Shapes: []*Shape{&circle}})
	s.Require().NoError(err)
	out, err = Deserialize[Indirect](s.r, data)
	s.Require().NoError(err)
	s.Require().NotNil(out.P)
	s.Equal(Point{X: 3, Y: 4}, **out.P)
	s.Require().NotNil(out.S)
	s.Equal(Circle{R: 2}, *out.S)
	s.Require().Len(out.Shapes, 1)
	s.Equal(Circle{R: 2}, *out.Shapes[0])

	var square Shape = &Square{Side: 1}
	_, err = Serialize(s.r, Indirect{S: &square})
	s.ErrorIs(err, merr.ErrSerializeTypeNotRegistered)
}

func (s *LittleSuite) TestCorruptStringLength() {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := Deserialize[string](s.r, []byte{0x80, 0x80, 0x80, 0x80, 0x04})
	runtime.ReadMemStats(&after)
	s.ErrorIs(err, merr.ErrIoUnexpectEOF)
	s.Less(after.TotalAlloc-before.TotalAlloc, uint64(16<<20))

	_, err = Deserialize[string](s.r, []byte{0x80, 0x80, 0x80, 0x80, 0x05})
	s.ErrorIs(err, merr.ErrParameterTooLarge)

	long := strings.Repeat("little", 40000)
	data, err := Serialize(s.r, long)
	s.Require().NoError(err)
	got, err := Deserialize[string](s.r, data)
	s.Require().NoError(err)
	s.Equal(long, got)

	_, err = Deserialize[string](s.r, data[:len(data)-1])
	s.ErrorIs(err, merr.ErrIoUnexpectEOF)
}

func (s *LittleSuite) TestUnregisteredType() {
	_, err := Serialize(s.r, []Shape{Triangle{Base: 1, Height: 1}})
	s.ErrorIs(err, merr.ErrSerializeTypeNotRegistered)

	data := []byte{0x01, 0x00, 0x00, 0x00, 0x40, 0x03, 'f', 'o', 'o'}
	_, err = Deserialize[[]Shape](s.r, data)
	s.ErrorIs(err, merr.ErrSerializeTypeUnresolved)

	s.Require().NoError(RegisterType[Point](s.r, "point"))
	data = []byte{0x01, 0x00, 0x00, 0x00, 0x40, 0x05, 'p', 'o', 'i', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0}
	_, err = Deserialize[[]Shape](s.r, data)
	s.ErrorIs(err, merr.ErrSerializeTypeUnresolved)
}

func (s *LittleSuite) TestRegisterConflict() {
	s.Require().NoError(RegisterType[Circle](s.r, "shape"))
	s.Require().NoError(RegisterType[Circle](s.r, "shape"))
	s.ErrorIs(RegisterType[Triangle](s.r, "shape"), merr.ErrParameterInvalid)
	s.ErrorIs(RegisterType[Shape](s.r, "iface"), merr.ErrParameterInvalid)
	s.Equal("github.com/lk2023060901/little-go/pkg/little.Circle", TypeName(reflect.TypeFor[Circle]()))
	s.Equal("*github.com/lk2023060901/little-go/pkg/little.Square", TypeName(reflect.TypeFor[*Square]()))
}

func (s *LittleSuite) TestRootErrors() {
	_, err := Serialize(s.r, nil)
	s.ErrorIs(err, merr.ErrParameterMissing)

	var p *Point
	_, err = Serialize(s.r, p)
	s.ErrorIs(err, merr.ErrParameterMissing)

	_, err = Serialize(s.r, complex(1, 2))
	s.ErrorIs(err, merr.ErrSerializeUnsupportedType)
}

func (s *LittleSuite) TestTruncation() {
	data, err := Serialize(s.r, Point{X: 1, Y: 2})
	s.Require().NoError(err)
	s.Len(data, 8)

	_, err = Deserialize[Point](s.r, data[:6])
	s.ErrorIs(err, merr.ErrIoUnexpectEOF)

	_, err = Deserialize[Point](s.r, nil)
	s.ErrorIs(err, merr.ErrIoUnexpectEOF)
}

func (s *LittleSuite) TestCorruptHeader() {
	_, err := Deserialize[[]*string](s.r, []byte{0x01, 0x00, 0x00, 0x00, 0x01})
	s.ErrorIs(err, merr.ErrParameterInvalid)

	_, err = Deserialize[[]int32](s.r, []byte{0xff, 0xff, 0xff, 0xff})
	s.ErrorIs(err, merr.ErrParameterInvalid)
}

func (s *LittleSuite) TestDateTimeModes() {
	at := time.Unix(1, 0)
	data, err := Serialize(s.r, at)
	s.Require().NoError(err)
	s.Equal([]byte{0x01, 0x00, 0x00, 0x00}, data)

	lossy, err := Serialize(s.r, time.Unix(10, 999))
	s.Require().NoError(err)
	got, err := Deserialize[time.Time](s.r, lossy)
	s.Require().NoError(err)
	s.True(time.Unix(10, 0).Equal(got))

	_, err = Serialize(s.r, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC))
	s.ErrorIs(err, merr.ErrParameterInvalid)

	detailed := NewRegistry(WithDateTimeMode(Detailed))
	data, err = Serialize(detailed, at)
	s.Require().NoError(err)
	s.Equal([]byte{0x00, 0xca, 0x9a, 0x3b, 0x00, 0x00, 0x00, 0x00}, data)
	got, err = Deserialize[time.Time](detailed, data)
	s.Require().NoError(err)
	s.True(at.Equal(got))

	data, err = Serialize(detailed, time.Unix(0, 1500))
	s.Require().NoError(err)
	s.Equal([]byte{0xdc, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, data)
	got, err = Deserialize[time.Time](detailed, data)
	s.Require().NoError(err)
	s.True(time.Unix(0, 1500).Equal(got))
	s.Equal(time.UTC, got.Location())

	far := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
	data, err = Serialize(detailed, far)
	s.Require().NoError(err)
	got, err = Deserialize[time.Time](detailed, data)
	s.Require().NoError(err)
	s.True(far.Equal(got))
}

func (s *LittleSuite) TestDecimalLayout() {
	x := decimal.New(-12345, 2)
	data, err := Serialize(s.r, x)
	s.Require().NoError(err)
	s.Equal([]byte{
		0x39, 0x30, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x02, 0x80,
	}, data)

	out, err := Deserialize[*decimal.Big](s.r, data)
	s.Require().NoError(err)
	s.Equal(0, x.Cmp(out))

	_, err = Serialize(s.r, decimal.New(1, 29))
	s.ErrorIs(err, merr.ErrParameterInvalid)

	_, err = decimalFromBytes([16]byte{15: 0x01})
	s.ErrorIs(err, merr.ErrParameterInvalid)
}

func (s *LittleSuite) TestEnumAsUnderlying() {
	data, err := Serialize(s.r, Level(-2))
	s.Require().NoError(err)
	s.Equal([]byte{0xfe, 0xff}, data)
	out, err := Deserialize[Level](s.r, data)
	s.Require().NoError(err)
	s.Equal(Level(-2), out)
}

func TestLittle(t *testing.T) {
	suite.Run(t, new(LittleSuite))
}
