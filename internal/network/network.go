// Package network 提供基于 little 编码的消息传输：帧内负载为 Envelope，
// 其 Body 以多态方式编码，接收端据其实际类型分发。
package network

import (
	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// Stage 表示网络收发链路中的处理阶段。
//
// 主要用于在回调中标记错误发生的位置，便于监控与排查。
type Stage string

const (
	StageHandshake Stage = "handshake"
	StageDecode    Stage = "decode"   // 帧 -> Envelope
	StageDispatch  Stage = "dispatch" // Envelope -> 业务处理
	StageEncode    Stage = "encode"   // 业务对象 -> 帧
	StageSend      Stage = "send"     // 底层发送完成
)

// Envelope 是一帧内携带的完整消息。
//
// Seq 由发送方按会话自增；Body 声明为 any，编码时会写出其注册类型名，
// 因此 Body 的实际类型必须先注册到 Registry。
type Envelope struct {
	Seq  uint64
	Body any
}

// IsFatal 判断一次读取失败后连接上的字节流是否已经无法继续解析。
// 仅负载内容无法还原的错误（类型未注册等）不影响后续帧。
func IsFatal(err error) bool {
	return merr.IsCanceledOrTimeout(err) ||
		errors.Is(err, merr.ErrIoFailed) ||
		errors.Is(err, merr.ErrIoUnexpectEOF) ||
		errors.Is(err, merr.ErrFrameTooLarge) ||
		errors.Is(err, merr.ErrFrameCorrupt)
}
