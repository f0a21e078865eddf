package compressor

import (
	"github.com/klauspost/compress/zstd"

	"github.com/lk2023060901/little-go/pkg/util/hardware"
	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// defaultMaxDecodedSize 与帧大小上限一致，防止异常数据解压出超大结果。
const defaultMaxDecodedSize = 16 * 1024 * 1024

// ZstdCompressor 基于 github.com/klauspost/compress/zstd 的压缩实现，
// 持有独立的 encoder/decoder 实例，EncodeAll/DecodeAll 可并发调用。
type ZstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// 编译期断言：确保 ZstdCompressor 实现了 Compressor 接口。
var _ Compressor = (*ZstdCompressor)(nil)

type zstdOption struct {
	concurrency    int
	level          zstd.EncoderLevel
	maxDecodedSize uint64
}

// ZstdOption 用于配置 ZstdCompressor。
type ZstdOption func(*zstdOption)

// WithConcurrency 指定 encoder/decoder 的并发度，<= 0 时使用 CPU 核数。
func WithConcurrency(n int) ZstdOption {
	return func(o *zstdOption) {
		o.concurrency = n
	}
}

// WithLevel 指定压缩等级。
func WithLevel(level zstd.EncoderLevel) ZstdOption {
	return func(o *zstdOption) {
		o.level = level
	}
}

// WithMaxDecodedSize 限制单次解压结果的最大字节数。
func WithMaxDecodedSize(n uint64) ZstdOption {
	return func(o *zstdOption) {
		o.maxDecodedSize = n
	}
}

// NewZstdCompressor 创建一个 ZstdCompressor。
func NewZstdCompressor(opts ...ZstdOption) (*ZstdCompressor, error) {
	o := &zstdOption{
		level:          zstd.SpeedDefault,
		maxDecodedSize: defaultMaxDecodedSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.concurrency <= 0 {
		o.concurrency = hardware.GetCPUNum()
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithZeroFrames(true),
		zstd.WithEncoderConcurrency(o.concurrency),
		zstd.WithEncoderLevel(o.level),
	)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("zstd encoder: %s", err.Error())
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(o.concurrency),
		zstd.WithDecoderMaxMemory(o.maxDecodedSize),
	)
	if err != nil {
		enc.Close()
		return nil, merr.WrapErrParameterInvalidMsg("zstd decoder: %s", err.Error())
	}
	return &ZstdCompressor{
		enc: enc,
		dec: dec,
	}, nil
}

func (c *ZstdCompressor) Name() string { return "zstd" }

// Compress 实现 Compressor 接口。
func (c *ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	if c == nil || c.enc == nil {
		return nil, zstd.ErrEncoderClosed
	}
	return c.enc.EncodeAll(src, dst[:0]), nil
}

// Decompress 实现 Compressor 接口。
func (c *ZstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	if c == nil || c.dec == nil {
		return nil, zstd.ErrDecoderClosed
	}
	out, err := c.dec.DecodeAll(src, dst[:0])
	if err != nil {
		return nil, merr.WrapErrFrameCorrupt("zstd", err.Error())
	}
	return out, nil
}

// Close 释放内部 encoder/decoder 持有的资源，再次使用将返回 ErrEncoderClosed/ErrDecoderClosed。
func (c *ZstdCompressor) Close() {
	if c == nil {
		return
	}
	if c.enc != nil {
		_ = c.enc.Close()
		c.enc = nil
	}
	if c.dec != nil {
		c.dec.Close()
		c.dec = nil
	}
}
