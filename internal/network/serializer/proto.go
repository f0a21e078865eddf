package serializer

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/proto"

	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// ProtoSerializer 使用 Protobuf 编解码，消息必须实现 proto.Message。
// 编码使用确定性顺序，相同消息总是得到相同字节，便于压缩与比较。
type ProtoSerializer struct{}

var _ Serializer = (*ProtoSerializer)(nil)

var (
	protoMarshal   = proto.MarshalOptions{Deterministic: true}
	protoUnmarshal = proto.UnmarshalOptions{DiscardUnknown: true}
)

func (ProtoSerializer) Name() string { return "proto" }

func (ProtoSerializer) Marshal(v any) ([]byte, error) {
	msg, err := asProtoMessage(v)
	if err != nil {
		return nil, err
	}
	data, err := protoMarshal.Marshal(msg)
	return data, errors.Wrapf(err, "proto marshal %T", v)
}

func (ProtoSerializer) Unmarshal(data []byte, v any) error {
	msg, err := asProtoMessage(v)
	if err != nil {
		return err
	}
	return errors.Wrapf(protoUnmarshal.Unmarshal(data, msg), "proto unmarshal %T", v)
}

func asProtoMessage(v any) (proto.Message, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, merr.WrapErrParameterInvalid("proto.Message", fmt.Sprintf("%T", v))
	}
	return msg, nil
}
