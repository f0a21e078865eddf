package little

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// stringChunk 以内的字符串按声明长度一次分配。
const stringChunk = 64 << 10

// source 是解码输入端，记录已消费的字节数，用于区分“流在文档开始前耗尽”
// 与“文档中途截断”。
type source struct {
	rd  io.Reader
	br  io.ByteReader
	n   int64
	buf [16]byte
}

func newSource(rd io.Reader) *source {
	s := &source{rd: rd}
	if br, ok := rd.(io.ByteReader); ok {
		s.br = br
	}
	return s
}

func wrapReadErr(key string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return merr.WrapErrIoUnexpectEOF(key, io.ErrUnexpectedEOF)
	}
	return merr.WrapErrIoFailed(key, err)
}

func (s *source) readFull(p []byte, key string) error {
	n, err := io.ReadFull(s.rd, p)
	s.n += int64(n)
	if err != nil {
		return wrapReadErr(key, err)
	}
	return nil
}

// ReadByte 实现 io.ByteReader，返回未包装的错误，供 binary.ReadUvarint 使用。
func (s *source) ReadByte() (byte, error) {
	if s.br != nil {
		b, err := s.br.ReadByte()
		if err == nil {
			s.n++
		}
		return b, err
	}
	n, err := io.ReadFull(s.rd, s.buf[:1])
	s.n += int64(n)
	if err != nil {
		return 0, err
	}
	return s.buf[0], nil
}

func (s *source) readByte(key string) (byte, error) {
	b, err := s.ReadByte()
	if err != nil {
		return 0, wrapReadErr(key, err)
	}
	return b, nil
}

func (s *source) readHeader() (Header, error) {
	b, err := s.readByte("header")
	if err != nil {
		return 0, err
	}
	h := Header(b)
	return h, h.validate()
}

func (s *source) readN(n int, key string) ([]byte, error) {
	p := s.buf[:n]
	return p, s.readFull(p, key)
}

func (s *source) readUint16(key string) (uint16, error) {
	p, err := s.readN(2, key)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

func (s *source) readUint32(key string) (uint32, error) {
	p, err := s.readN(4, key)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

func (s *source) readUint64(key string) (uint64, error) {
	p, err := s.readN(8, key)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

func (s *source) readCount() (int, error) {
	v, err := s.readUint32("count")
	if err != nil {
		return 0, err
	}
	n := int32(v)
	if n < 0 {
		return 0, merr.WrapErrParameterInvalidRange(int64(0), int64(maxCount), int64(n), "list count")
	}
	return int(n), nil
}

func (s *source) readString() (string, error) {
	l, err := binary.ReadUvarint(s)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", wrapReadErr("string length", err)
		}
		return "", merr.WrapErrParameterInvalidMsg("string length: %s", err.Error())
	}
	if l > maxStringLen {
		return "", merr.WrapErrParameterTooLarge("string", "length exceeds limit")
	}
	if l == 0 {
		return "", nil
	}
	if l <= stringChunk {
		p := make([]byte, l)
		if err := s.readFull(p, "string"); err != nil {
			return "", err
		}
		return string(p), nil
	}
	// 长字符串随读取逐步扩容。
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	n, err := io.CopyN(buf, s.rd, int64(l))
	s.n += n
	if err != nil {
		return "", wrapReadErr("string", err)
	}
	return string(buf.B), nil
}
