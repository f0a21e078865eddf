package compressor

// Compressor 抽象了“单次压缩/解压”能力，作用于一整个已编码的文档。
//
// 实现不做全局单例，调用方按需创建实例并负责其生命周期。
type Compressor interface {
	// Name 返回压缩算法名称。
	Name() string

	// Compress 将 src 压缩后追加到 dst[:0]，返回完整的压缩数据。
	Compress(dst, src []byte) (packet []byte, err error)

	// Decompress 将 Compress 的输出 src 解压后追加到 dst[:0]。
	Decompress(dst, src []byte) (plain []byte, err error)
}

// NopCompressor 不做任何压缩/解压，直接返回输入内容，是未开启压缩时的默认值。
type NopCompressor struct{}

func (NopCompressor) Name() string { return "none" }

func (NopCompressor) Compress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

func (NopCompressor) Decompress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

// 编译期断言：确保 NopCompressor 实现了 Compressor 接口。
var _ Compressor = NopCompressor{}
