package serializer

import (
	"bytes"
	"io"

	"github.com/lk2023060901/little-go/pkg/little"
	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// LittleSerializer 使用 little 二进制格式编解码，类型配置与多态注册表来自 Registry。
type LittleSerializer struct {
	registry *little.Registry
}

// 编译期断言：确保 LittleSerializer 实现了 Serializer 接口。
var _ Serializer = (*LittleSerializer)(nil)

// NewLittleSerializer 创建 LittleSerializer，r 为 nil 时使用 little.Default()。
func NewLittleSerializer(r *little.Registry) *LittleSerializer {
	if r == nil {
		r = little.Default()
	}
	return &LittleSerializer{registry: r}
}

func (s *LittleSerializer) Name() string { return "little" }

func (s *LittleSerializer) Marshal(v any) ([]byte, error) {
	return little.Serialize(s.registry, v)
}

// Unmarshal 要求 data 恰好包含一个完整文档，空输入视为截断。
func (s *LittleSerializer) Unmarshal(data []byte, v any) error {
	rd := bytes.NewReader(data)
	err := little.NewDecoder(s.registry, rd).Decode(v)
	if err == io.EOF {
		return merr.WrapErrIoUnexpectEOF("document", io.ErrUnexpectedEOF)
	}
	if err != nil {
		return err
	}
	if rd.Len() > 0 {
		return merr.WrapErrParameterInvalidMsg("%d trailing bytes after document", rd.Len())
	}
	return nil
}
