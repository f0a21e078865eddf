package serializer

// Serializer 抽象了“对象 <-> 字节流”的序列化能力。
//
// 默认实现为 LittleSerializer，JSON 与 Protobuf 作为可替换的备选方案，
// 调用方通过接口注入具体实现。
type Serializer interface {
	// Name 返回序列化方案名称，用于日志与指标。
	Name() string

	// Marshal 将任意对象编码为字节序列。
	Marshal(v any) ([]byte, error)

	// Unmarshal 将字节序列解码到目标对象。
	//
	// v 必须为非 nil 指针，用于接收解码结果。
	Unmarshal(data []byte, v any) error
}
