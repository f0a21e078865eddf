package little

import (
	"encoding/binary"
	"io"

	"github.com/valyala/bytebufferpool"

	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// sink 是编码输出端。未知长度的列表通过 reserve/patch 回填元素个数，
// reserve 与 patch 必须成对且按后进先出的顺序调用。written 返回当前文档已写入的字节数，
// flush 提交当前文档，reset 丢弃当前文档。
type sink interface {
	io.Writer
	io.ByteWriter
	reserve() (int64, error)
	patch(pos int64, count int32) error
	flush() error
	written() int64
	reset()
}

var countPlaceholder [4]byte

// bufferSink 写入池化的内存缓冲区，回填直接改写已写入的字节。
type bufferSink struct {
	buf *bytebufferpool.ByteBuffer
}

func newBufferSink() *bufferSink {
	return &bufferSink{buf: bytebufferpool.Get()}
}

func (s *bufferSink) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

func (s *bufferSink) WriteByte(c byte) error {
	return s.buf.WriteByte(c)
}

func (s *bufferSink) reserve() (int64, error) {
	pos := int64(s.buf.Len())
	_, err := s.buf.Write(countPlaceholder[:])
	return pos, err
}

func (s *bufferSink) patch(pos int64, count int32) error {
	binary.LittleEndian.PutUint32(s.buf.B[pos:pos+4], uint32(count))
	return nil
}

func (s *bufferSink) flush() error { return nil }

func (s *bufferSink) written() int64 { return int64(s.buf.Len()) }

func (s *bufferSink) reset() { s.buf.Reset() }

// bytes 返回编码结果的拷贝，并将缓冲区归还到池中。
func (s *bufferSink) bytes() []byte {
	out := make([]byte, s.buf.Len())
	copy(out, s.buf.B)
	bytebufferpool.Put(s.buf)
	s.buf = nil
	return out
}

// seekSink 直接写入可 Seek 的目标，回填时跳回预留位置再跳回末尾。
// 编码失败时回退到文档起点，目标支持 Truncate 时同时截掉已写出的部分。
type seekSink struct {
	ws    io.WriteSeeker
	start int64
	n     int64
	one   [1]byte
}

type truncater interface {
	Truncate(size int64) error
}

func (s *seekSink) Write(p []byte) (int, error) {
	if s.n == 0 {
		pos, err := s.ws.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, merr.WrapErrIoFailed("seek", err)
		}
		s.start = pos
	}
	n, err := s.ws.Write(p)
	s.n += int64(n)
	if err != nil {
		return n, merr.WrapErrIoFailed("write", err)
	}
	return n, nil
}

func (s *seekSink) WriteByte(c byte) error {
	s.one[0] = c
	_, err := s.Write(s.one[:])
	return err
}

func (s *seekSink) reserve() (int64, error) {
	if _, err := s.Write(countPlaceholder[:]); err != nil {
		return 0, err
	}
	pos, err := s.ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, merr.WrapErrIoFailed("seek", err)
	}
	return pos - int64(len(countPlaceholder)), nil
}

func (s *seekSink) patch(pos int64, count int32) error {
	end, err := s.ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return merr.WrapErrIoFailed("seek", err)
	}
	if _, err := s.ws.Seek(pos, io.SeekStart); err != nil {
		return merr.WrapErrIoFailed("seek", err)
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(count))
	if _, err := s.ws.Write(b[:]); err != nil {
		return merr.WrapErrIoFailed("write", err)
	}
	if _, err := s.ws.Seek(end, io.SeekStart); err != nil {
		return merr.WrapErrIoFailed("seek", err)
	}
	return nil
}

func (s *seekSink) flush() error {
	s.n = 0
	return nil
}

func (s *seekSink) written() int64 { return s.n }

func (s *seekSink) reset() {
	if s.n == 0 {
		return
	}
	s.n = 0
	if _, err := s.ws.Seek(s.start, io.SeekStart); err != nil {
		return
	}
	if t, ok := s.ws.(truncater); ok {
		_ = t.Truncate(s.start)
	}
}

// streamSink 写入不可 Seek 的目标。每个文档先完整写入池化缓冲区，
// 编码成功后再一次性写出，失败的文档不会留下任何字节。
type streamSink struct {
	w    io.Writer
	held *bytebufferpool.ByteBuffer
}

func newStreamSink(w io.Writer) *streamSink {
	return &streamSink{w: w}
}

func (s *streamSink) buffer() *bytebufferpool.ByteBuffer {
	if s.held == nil {
		s.held = bytebufferpool.Get()
	}
	return s.held
}

func (s *streamSink) Write(p []byte) (int, error) {
	return s.buffer().Write(p)
}

func (s *streamSink) WriteByte(c byte) error {
	return s.buffer().WriteByte(c)
}

func (s *streamSink) reserve() (int64, error) {
	buf := s.buffer()
	pos := int64(buf.Len())
	_, err := buf.Write(countPlaceholder[:])
	return pos, err
}

func (s *streamSink) patch(pos int64, count int32) error {
	binary.LittleEndian.PutUint32(s.held.B[pos:pos+4], uint32(count))
	return nil
}

func (s *streamSink) flush() error {
	if s.held == nil {
		return nil
	}
	_, err := s.w.Write(s.held.B)
	s.release()
	if err != nil {
		return merr.WrapErrIoFailed("write", err)
	}
	return nil
}

func (s *streamSink) written() int64 {
	if s.held == nil {
		return 0
	}
	return int64(s.held.Len())
}

func (s *streamSink) reset() { s.release() }

func (s *streamSink) release() {
	if s.held != nil {
		bytebufferpool.Put(s.held)
		s.held = nil
	}
}

// newSink 根据目标能力选择输出端：可 Seek 的目标直接回填，其余使用 streamSink。
func newSink(w io.Writer) sink {
	if ws, ok := w.(io.WriteSeeker); ok {
		if _, err := ws.Seek(0, io.SeekCurrent); err == nil {
			return &seekSink{ws: ws}
		}
	}
	return newStreamSink(w)
}
