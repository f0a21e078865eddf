package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lk2023060901/little-go/pkg/little"
	"github.com/lk2023060901/little-go/pkg/util/merr"
)

type chatMessage struct {
	Room    string   `json:"room"`
	Seq     int64    `json:"seq"`
	Mention []string `json:"mention"`
}

func TestSerializers(t *testing.T) {
	in := chatMessage{Room: "lobby", Seq: 42, Mention: []string{"a", "b"}}
	for _, s := range []Serializer{NewLittleSerializer(little.NewRegistry()), JSONSerializer{}} {
		t.Run(s.Name(), func(t *testing.T) {
			data, err := s.Marshal(in)
			require.NoError(t, err)

			var out chatMessage
			require.NoError(t, s.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestLittleSerializerStrict(t *testing.T) {
	s := NewLittleSerializer(nil)
	data, err := s.Marshal(int32(7))
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 0, 0, 0}, data)

	var v int32
	assert.ErrorIs(t, s.Unmarshal(nil, &v), merr.ErrIoUnexpectEOF)
	assert.ErrorIs(t, s.Unmarshal(append(data, 0), &v), merr.ErrParameterInvalid)
	assert.ErrorIs(t, s.Unmarshal(data, v), merr.ErrParameterInvalid)
}

func TestProtoSerializer(t *testing.T) {
	s := ProtoSerializer{}
	data, err := s.Marshal(wrapperspb.String("hello"))
	require.NoError(t, err)

	out := &wrapperspb.StringValue{}
	require.NoError(t, s.Unmarshal(data, out))
	assert.Equal(t, "hello", out.GetValue())

	_, err = s.Marshal(chatMessage{})
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
	assert.ErrorIs(t, s.Unmarshal(data, &chatMessage{}), merr.ErrParameterInvalid)
}
