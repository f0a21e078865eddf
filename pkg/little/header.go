package little

import (
	"fmt"

	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// Header 是可空值前的 1 字节控制位。
type Header byte

const (
	// HeaderNull 表示值为空，其后没有数据。
	HeaderNull Header = 0x80
	// HeaderAmbiguous 表示其后先写出实际类型的线上名称，再写出值。
	HeaderAmbiguous Header = 0x40

	headerReserved Header = 0x3f
)

func newHeader(isNull, isAmbiguous bool) Header {
	var h Header
	if isNull {
		h |= HeaderNull
	}
	if isAmbiguous {
		h |= HeaderAmbiguous
	}
	return h
}

func (h Header) IsNull() bool {
	return h&HeaderNull != 0
}

func (h Header) IsAmbiguous() bool {
	return h&HeaderAmbiguous != 0
}

func (h Header) String() string {
	return fmt.Sprintf("Header{null=%t, ambiguous=%t}", h.IsNull(), h.IsAmbiguous())
}

func (h Header) validate() error {
	if h&headerReserved != 0 {
		return merr.WrapErrParameterInvalidMsg("corrupt header 0x%02x", byte(h))
	}
	return nil
}
