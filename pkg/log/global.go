// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"

	"go.uber.org/zap"
)

type ctxLogKeyType struct{}

var ctxLogKey = ctxLogKeyType{}

func skipL() *zap.Logger {
	return current.Load().skip
}

// Debug 使用全局 Logger 输出 Debug 日志。
func Debug(msg string, fields ...zap.Field) {
	skipL().Debug(msg, fields...)
}

// Info 使用全局 Logger 输出 Info 日志。
func Info(msg string, fields ...zap.Field) {
	skipL().Info(msg, fields...)
}

// Warn 使用全局 Logger 输出 Warn 日志。
func Warn(msg string, fields ...zap.Field) {
	skipL().Warn(msg, fields...)
}

// Error 使用全局 Logger 输出 Error 日志。
func Error(msg string, fields ...zap.Field) {
	skipL().Error(msg, fields...)
}

// Fatal 输出日志后调用 os.Exit(1)。
func Fatal(msg string, fields ...zap.Field) {
	skipL().Fatal(msg, fields...)
}

// RatedWarn 在全局限流器允许时输出 Warn 日志。
func RatedWarn(cost float64, msg string, fields ...zap.Field) bool {
	if !R().CheckCredit(cost) {
		return false
	}
	skipL().Warn(msg, fields...)
	return true
}

// With 基于全局 Logger 创建携带额外字段的 MLogger。
func With(fields ...zap.Field) *MLogger {
	return &MLogger{Logger: withLazyFields(L(), fields)}
}

// WithFields 返回一个上下文，其 Logger 在原有上下文 Logger 的基础上附加 fields。
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, ctxLogKey, Ctx(ctx).With(fields...))
}

// WithModule 为上下文 Logger 附加模块名。
func WithModule(ctx context.Context, module string) context.Context {
	return WithFields(ctx, FieldModule(module))
}

// WithSession 为上下文 Logger 附加会话 ID。
func WithSession(ctx context.Context, id uint64) context.Context {
	return WithFields(ctx, FieldSession(id))
}

// Ctx 返回上下文携带的 Logger，没有时返回全局 Logger。
func Ctx(ctx context.Context) *MLogger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxLogKey).(*MLogger); ok {
			return l
		}
	}
	return &MLogger{Logger: L()}
}
