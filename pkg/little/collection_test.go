package little

import (
	"iter"
	"reflect"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// Bag 通过 Add/All 暴露元素，没有可导出字段。
type Bag struct {
	items []int32
}

func (b *Bag) Add(v int32) { b.items = append(b.items, v) }

func (b *Bag) All() iter.Seq[int32] { return slices.Values(b.items) }

// Names 是带 Add 方法的具名切片，仍按切片处理。
type Names []string

func (n *Names) Add(s string) { *n = append(*n, s) }

type ReadOnly struct {
	items []string
}

func (r ReadOnly) All() iter.Seq[string] { return slices.Values(r.items) }

type Catalog struct {
	Title  string
	Items  Bag
	Groups iter.Seq[Bag]
	Labels Names
}

type Inventory struct {
	Owner string
	items []string
}

type Counter struct {
	count *int32
}

func TestDetectShape(t *testing.T) {
	cases := []struct {
		name string
		typ  reflect.Type
		kind shapeKind
		elem reflect.Type
	}{
		{"array", reflect.TypeFor[[4]byte](), shapeArray, reflect.TypeFor[byte]()},
		{"slice", reflect.TypeFor[[]string](), shapeSlice, reflect.TypeFor[string]()},
		{"named slice with Add", reflect.TypeFor[Names](), shapeSlice, reflect.TypeFor[string]()},
		{"collection", reflect.TypeFor[Bag](), shapeCollection, reflect.TypeFor[int32]()},
		{"collection pointer", reflect.TypeFor[*Bag](), shapeCollection, reflect.TypeFor[int32]()},
		{"seq", reflect.TypeFor[iter.Seq[Point]](), shapeSeq, reflect.TypeFor[Point]()},
		{"map", reflect.TypeFor[map[string]int](), shapeUnsupported, nil},
		{"chan", reflect.TypeFor[chan int](), shapeUnsupported, nil},
		{"iterable without Add", reflect.TypeFor[ReadOnly](), shapeUnsupported, nil},
		{"struct", reflect.TypeFor[Point](), shapeNone, nil},
		{"string", reflect.TypeFor[string](), shapeNone, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			shape := detectShape(c.typ)
			assert.Equal(t, c.kind, shape.kind, shape.kind.String())
			if c.elem != nil {
				assert.Equal(t, c.elem, shape.elem)
			}
		})
	}
}

type CollectionSuite struct {
	suite.Suite
	r *Registry
}

func (s *CollectionSuite) SetupTest() {
	s.r = NewRegistry()
}

func (s *CollectionSuite) TestArray() {
	data, err := Serialize(s.r, [3]int32{1, 2, 3})
	s.Require().NoError(err)
	s.Equal([]byte{3, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}, data)

	out, err := Deserialize[[3]int32](s.r, data)
	s.Require().NoError(err)
	s.Equal([3]int32{1, 2, 3}, out)

	_, err = Deserialize[[2]int32](s.r, data)
	s.ErrorIs(err, merr.ErrParameterInvalid)
}

func (s *CollectionSuite) TestNamedSlice() {
	data, err := Serialize(s.r, Names{"x", "y"})
	s.Require().NoError(err)
	out, err := Deserialize[Names](s.r, data)
	s.Require().NoError(err)
	s.Equal(Names{"x", "y"}, out)
}

func (s *CollectionSuite) TestBag() {
	in := &Bag{}
	in.Add(7)
	in.Add(-7)
	data, err := Serialize(s.r, in)
	s.Require().NoError(err)
	s.Equal([]byte{2, 0, 0, 0, 7, 0, 0, 0, 0xf9, 0xff, 0xff, 0xff}, data)

	out, err := Deserialize[Bag](s.r, data)
	s.Require().NoError(err)
	s.Equal([]int32{7, -7}, slices.Collect(out.All()))
}

func (s *CollectionSuite) TestSeq() {
	data, err := Serialize(s.r, slices.Values([]string{"a", "b"}))
	s.Require().NoError(err)
	s.Equal([]byte{2, 0, 0, 0, 1, 'a', 1, 'b'}, data)

	out, err := Deserialize[iter.Seq[string]](s.r, data)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b"}, slices.Collect(out))
}

func (s *CollectionSuite) TestUnsupported() {
	_, err := Serialize(s.r, map[string]int{"a": 1})
	s.ErrorIs(err, merr.ErrSerializeUnsupportedCollection)

	_, err = Serialize(s.r, ReadOnly{items: []string{"a"}})
	s.ErrorIs(err, merr.ErrSerializeUnsupportedCollection)

	_, err = Deserialize[map[string]int](s.r, []byte{0, 0, 0, 0})
	s.ErrorIs(err, merr.ErrSerializeUnsupportedCollection)
}

func (s *CollectionSuite) TestNestedUnknownLength() {
	first, second := &Bag{}, &Bag{}
	first.Add(1)
	second.Add(2)
	second.Add(3)
	in := Catalog{
		Title:  "c",
		Groups: slices.Values([]Bag{*first, *second}),
		Labels: Names{"l"},
	}
	in.Items.Add(9)

	data, err := Serialize(s.r, &in)
	s.Require().NoError(err)

	out, err := Deserialize[Catalog](s.r, data)
	s.Require().NoError(err)
	s.Equal("c", out.Title)
	s.Equal(Names{"l"}, out.Labels)
	s.Equal([]int32{9}, slices.Collect(out.Items.All()))
	var groups [][]int32
	for g := range out.Groups {
		groups = append(groups, slices.Collect(g.All()))
	}
	s.Equal([][]int32{{1}, {2, 3}}, groups)
}

func (s *CollectionSuite) TestAppendOnlyProperty() {
	cfg := ForType[Inventory](s.r).Constructor(func() *Inventory {
		return &Inventory{items: []string{"seed"}}
	})
	Property(cfg, "Items", func(i *Inventory) *[]string { return &i.items }, nil)

	schema, err := SchemaOf[Inventory](s.r)
	s.Require().NoError(err)
	s.Equal([]string{"Items", "Owner"}, schema.Names())
	s.Equal(AppendOnly, schema.Members[0].Mutability)
	s.True(schema.Members[0].Property)

	data, err := Serialize(s.r, Inventory{Owner: "o", items: []string{"a", "b"}})
	s.Require().NoError(err)

	out, err := Deserialize[Inventory](s.r, data)
	s.Require().NoError(err)
	s.Equal("o", out.Owner)
	s.Equal([]string{"seed", "a", "b"}, out.items)
}

func (s *CollectionSuite) TestAppendOnlyNilHandle() {
	cfg := ForType[Counter](s.r)
	Property(cfg, "Count", func(c *Counter) *int32 { return c.count }, nil)

	_, err := Serialize(s.r, Counter{})
	s.ErrorIs(err, merr.ErrSerializeNonNullableAbsent)

	n := int32(4)
	data, err := Serialize(s.r, Counter{count: &n})
	s.Require().NoError(err)
	s.Equal([]byte{4, 0, 0, 0}, data)

	out, err := Deserialize[Counter](s.r, data)
	s.Require().NoError(err)
	s.Nil(out.count)
}

func TestCollection(t *testing.T) {
	suite.Run(t, new(CollectionSuite))
}

func TestIllegalAppendOnlyProperty(t *testing.T) {
	r := NewRegistry()
	Property(ForType[Counter](r), "Count", func(c *Counter) int32 { return 0 }, nil)
	_, err := SchemaOf[Counter](r)
	require.ErrorIs(t, err, merr.ErrSerializeIllegalSchema)
}
