package framer

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/valyala/bytebufferpool"

	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// Flags 是帧头中的标志位。
type Flags uint8

const (
	// FlagCompressed 表示负载经过压缩。
	FlagCompressed Flags = 1 << 0

	knownFlags = FlagCompressed
)

func (f Flags) Compressed() bool {
	return f&FlagCompressed != 0
}

// Framer 抽象了帧的打包/解包能力。
//
// 一帧的格式为：4 字节大端无符号负载长度 + 1 字节标志位 + 负载。
type Framer interface {
	// WriteFrame 将 payload 打包为一帧，并以单次 Write 写入 w。
	WriteFrame(w io.Writer, flags Flags, payload []byte) error

	// ReadFrame 从 r 中读取一帧，负载写入 buf（覆盖原有内容）。
	// r 在帧开始前恰好耗尽时返回 io.EOF。
	ReadFrame(r io.Reader, buf *bytebufferpool.ByteBuffer) (Flags, error)
}

// LengthPrefixedFramer 使用长度前缀作为帧边界，适用于基于流的连接或文件。
type LengthPrefixedFramer struct {
	// MaxFrameSize 为允许的最大负载长度，单位字节。为 0 时使用 DefaultMaxFrameSize。
	MaxFrameSize uint32
}

const (
	// DefaultMaxFrameSize 为默认的最大负载长度。
	DefaultMaxFrameSize uint32 = 16 * 1024 * 1024
	headerSize                 = 5
)

var _ Framer = (*LengthPrefixedFramer)(nil)

// NewLengthPrefixedFramer 创建一个长度前缀帧编码器，maxFrameSize 为 0 时使用默认值。
func NewLengthPrefixedFramer(maxFrameSize uint32) *LengthPrefixedFramer {
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &LengthPrefixedFramer{
		MaxFrameSize: maxFrameSize,
	}
}

// WriteFrame 实现 Framer.WriteFrame。
func (f *LengthPrefixedFramer) WriteFrame(w io.Writer, flags Flags, payload []byte) error {
	if flags&^knownFlags != 0 {
		return merr.WrapErrParameterInvalidMsg("unknown frame flags 0x%02x", uint8(flags))
	}
	if uint64(len(payload)) > uint64(f.effectiveMaxSize()) {
		return merr.WrapErrFrameTooLarge(uint32(min(uint64(len(payload)), math.MaxUint32)), f.effectiveMaxSize())
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload)))
	header[4] = byte(flags)
	_, _ = buf.Write(header[:])
	_, _ = buf.Write(payload)

	if _, err := w.Write(buf.B); err != nil {
		return merr.WrapErrIoFailed("frame", err)
	}
	return nil
}

// ReadFrame 实现 Framer.ReadFrame。
func (f *LengthPrefixedFramer) ReadFrame(r io.Reader, buf *bytebufferpool.ByteBuffer) (Flags, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return 0, merr.WrapErrIoUnexpectEOF("frame header", err)
		}
		return 0, merr.WrapErrIoFailed("frame header", err)
	}

	length := binary.BigEndian.Uint32(header[:4])
	if length > f.effectiveMaxSize() {
		return 0, merr.WrapErrFrameTooLarge(length, f.effectiveMaxSize())
	}
	flags := Flags(header[4])
	if flags&^knownFlags != 0 {
		return 0, merr.WrapErrFrameCorrupt(fmt.Sprintf("unknown flags 0x%02x", uint8(flags)))
	}

	if cap(buf.B) < int(length) {
		buf.B = make([]byte, int(length))
	} else {
		buf.B = buf.B[:int(length)]
	}
	if length == 0 {
		return flags, nil
	}
	if _, err := io.ReadFull(r, buf.B); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, merr.WrapErrIoUnexpectEOF("frame payload", io.ErrUnexpectedEOF)
		}
		return 0, merr.WrapErrIoFailed("frame payload", err)
	}
	return flags, nil
}

func (f *LengthPrefixedFramer) effectiveMaxSize() uint32 {
	if f == nil || f.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return f.MaxFrameSize
}
