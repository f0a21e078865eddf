package codec

import (
	"io"

	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"

	"github.com/lk2023060901/little-go/internal/network/compressor"
	"github.com/lk2023060901/little-go/internal/network/framer"
	"github.com/lk2023060901/little-go/internal/network/serializer"
	"github.com/lk2023060901/little-go/pkg/log"
	"github.com/lk2023060901/little-go/pkg/util/conc"
	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// Codec 抽象了“从业务对象到帧，以及从帧回到业务对象”的完整编解码流程。
//
// Pipeline（写出 Encode）：
//
//	msg --> serializer --> [compress?] --> framer.WriteFrame
//
// Pipeline（读入 Decode）：
//
//	framer.ReadFrame --> [decompress?] --> serializer --> msg
type Codec interface {
	// Encode 将业务对象编码为一帧并写入 w。
	Encode(w io.Writer, msg any) error

	// EncodeBatch 并发完成序列化与压缩，再按 msgs 的顺序依次写出各帧。
	// 任一消息失败时不写出任何帧。
	EncodeBatch(w io.Writer, msgs []any) error

	// Decode 从 r 中读取一帧并解码到 msg（非 nil 指针）。
	// r 在帧开始前恰好耗尽时返回 io.EOF。
	Decode(r io.Reader, msg any) error

	// DecodeRaw 从 r 中读取一帧，返回已解压但未反序列化的负载。
	DecodeRaw(r io.Reader) ([]byte, error)

	// Close 释放 EncodeBatch 使用的协程池。
	Close()
}

// Options 用于构造 Codec 的依赖注入参数。
type Options struct {
	Framer     framer.Framer         // 允许为 nil（内部会用默认 LengthPrefixedFramer）
	Serializer serializer.Serializer // 允许为 nil（内部会用 little.Default() 的 LittleSerializer）
	Compressor compressor.Compressor // 允许为 nil（内部会用 NopCompressor）

	EnableCompression bool // 是否启用压缩（影响压缩行为与帧标志位）
	MinCompressSize   int  // 负载小于该值时不压缩
	Concurrency       int  // EncodeBatch 的并发度，<= 0 时为 CPU 核数
}

type codec struct {
	log.Binder

	framer     framer.Framer
	serializer serializer.Serializer
	compressor compressor.Compressor
	pool       *conc.Pool[encodedFrame]

	compress        bool
	minCompressSize int
}

type encodedFrame struct {
	flags   framer.Flags
	payload []byte
}

var _ Codec = (*codec)(nil)

// New 创建一个基于给定依赖的 Codec。
func New(opts Options) (Codec, error) {
	if opts.EnableCompression && opts.Compressor == nil {
		return nil, merr.WrapErrParameterMissing("compressor", "compression enabled without compressor")
	}
	if opts.MinCompressSize < 0 {
		return nil, merr.WrapErrParameterInvalidRange(0, 1<<30, opts.MinCompressSize, "min compress size")
	}

	c := &codec{
		framer:          opts.Framer,
		serializer:      opts.Serializer,
		compressor:      opts.Compressor,
		compress:        opts.EnableCompression,
		minCompressSize: opts.MinCompressSize,
		pool:            conc.NewPool[encodedFrame](opts.Concurrency, conc.WithName("codec"), conc.WithConcealPanic(true)),
	}
	if c.framer == nil {
		c.framer = framer.NewLengthPrefixedFramer(0)
	}
	if c.serializer == nil {
		c.serializer = serializer.NewLittleSerializer(nil)
	}
	if c.compressor == nil {
		c.compressor = compressor.NopCompressor{}
	}
	c.SetLogger(log.With(log.FieldComponent("codec"), zap.String("serializer", c.serializer.Name())))
	return c, nil
}

// marshal 完成序列化与可选压缩，可并发调用。
func (c *codec) marshal(msg any) (encodedFrame, error) {
	if msg == nil {
		return encodedFrame{}, merr.WrapErrParameterMissing("msg")
	}
	body, err := c.serializer.Marshal(msg)
	if err != nil {
		return encodedFrame{}, err
	}
	if !c.compress || len(body) < c.minCompressSize {
		return encodedFrame{payload: body}, nil
	}
	packed, err := c.compressor.Compress(nil, body)
	if err != nil {
		return encodedFrame{}, err
	}
	return encodedFrame{flags: framer.FlagCompressed, payload: packed}, nil
}

// Encode 实现 Codec.Encode。
func (c *codec) Encode(w io.Writer, msg any) error {
	if w == nil {
		return merr.WrapErrParameterMissing("writer")
	}
	frame, err := c.marshal(msg)
	if err != nil {
		return err
	}
	return c.framer.WriteFrame(w, frame.flags, frame.payload)
}

// EncodeBatch 实现 Codec.EncodeBatch。
func (c *codec) EncodeBatch(w io.Writer, msgs []any) error {
	if w == nil {
		return merr.WrapErrParameterMissing("writer")
	}
	futures := make([]*conc.Future[encodedFrame], 0, len(msgs))
	for _, msg := range msgs {
		futures = append(futures, c.pool.Submit(func() (encodedFrame, error) {
			return c.marshal(msg)
		}))
	}
	if err := conc.AwaitAll(futures...); err != nil {
		return err
	}
	for _, future := range futures {
		frame := future.Value()
		if err := c.framer.WriteFrame(w, frame.flags, frame.payload); err != nil {
			return err
		}
	}
	return nil
}

// readPayload 读取一帧并在需要时解压，返回值在 buf 归还前有效。
func (c *codec) readPayload(r io.Reader, buf *bytebufferpool.ByteBuffer) ([]byte, error) {
	if r == nil {
		return nil, merr.WrapErrParameterMissing("reader")
	}
	flags, err := c.framer.ReadFrame(r, buf)
	if err != nil {
		return nil, err
	}
	if !flags.Compressed() {
		return buf.B, nil
	}
	if !c.compress {
		return nil, merr.WrapErrOperationNotSupported("decompress", "compressed payload but compression disabled")
	}
	return c.compressor.Decompress(nil, buf.B)
}

// DecodeRaw 实现 Codec.DecodeRaw。
func (c *codec) DecodeRaw(r io.Reader) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	data, err := c.readPayload(r, buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Decode 实现 Codec.Decode。
func (c *codec) Decode(r io.Reader, msg any) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	data, err := c.readPayload(r, buf)
	if err != nil {
		return err
	}
	if err := c.serializer.Unmarshal(data, msg); err != nil {
		c.Logger().Warn("failed to unmarshal frame payload", zap.Int("size", len(data)), zap.Error(err))
		return err
	}
	return nil
}

// Close 实现 Codec.Close。
func (c *codec) Close() {
	c.pool.Release()
}
