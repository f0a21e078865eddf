// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/uber/jaeger-client-go/utils"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RateLimiter 是限流日志使用的最小接口，jaeger 的 utils.RateLimiter 满足该接口。
type RateLimiter interface {
	CheckCredit(cost float64) bool
}

type nopRateLimiter struct{}

func (nopRateLimiter) CheckCredit(float64) bool { return true }

type limiterBox struct {
	RateLimiter
}

var (
	globalLimiter atomic.Value // limiterBox
	namedLimiters sync.Map     // group -> *utils.ReconfigurableRateLimiter
)

// R 返回全局限流器，未启用限流时返回不丢弃任何日志的实现。
func R() RateLimiter {
	if b, ok := globalLimiter.Load().(limiterBox); ok && b.RateLimiter != nil {
		return b.RateLimiter
	}
	return nopRateLimiter{}
}

// SetRateLimiter 替换全局限流器，nil 表示不限流。
func SetRateLimiter(rl RateLimiter) {
	globalLimiter.Store(limiterBox{rl})
}

// configureRateLimiterFromEnv 根据环境变量配置全局限流器：
//   - LITTLE_LOG_RATE_ENABLE：为 true 时启用，默认关闭；
//   - LITTLE_LOG_RATE_CREDIT_PER_SECOND：每秒补充的额度，默认 1；
//   - LITTLE_LOG_RATE_MAX_BALANCE：额度上限，默认 60。
func configureRateLimiterFromEnv() {
	if enabled, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv("LITTLE_LOG_RATE_ENABLE"))); !enabled {
		SetRateLimiter(nil)
		return
	}
	SetRateLimiter(utils.NewRateLimiter(
		envFloat("LITTLE_LOG_RATE_CREDIT_PER_SECOND", 1),
		envFloat("LITTLE_LOG_RATE_MAX_BALANCE", 60),
	))
}

func envFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return f
}

// MLogger 在 zap.Logger 之上增加按分组限流的日志方法。
type MLogger struct {
	*zap.Logger
	rl atomic.Pointer[utils.ReconfigurableRateLimiter]
}

// With 返回携带额外字段的子 Logger，字段在第一次输出日志时才编码。
// 子 Logger 不继承限流分组。
func (l *MLogger) With(fields ...zap.Field) *MLogger {
	return &MLogger{Logger: withLazyFields(l.Logger, fields)}
}

// WithRateGroup 为 Logger 绑定名为 group 的限流器。
// 同名分组共享同一个限流器，后一次调用会更新其参数并保留当前额度。
func (l *MLogger) WithRateGroup(group string, creditPerSecond, maxBalance float64) *MLogger {
	rl := utils.NewRateLimiter(creditPerSecond, maxBalance)
	if actual, loaded := namedLimiters.LoadOrStore(group, rl); loaded {
		rl = actual.(*utils.ReconfigurableRateLimiter)
		rl.Update(creditPerSecond, maxBalance)
	}
	l.rl.Store(rl)
	return l
}

// RatedDebug 在限流允许时输出 Debug 日志，返回本次是否通过限流。
func (l *MLogger) RatedDebug(cost float64, msg string, fields ...zap.Field) bool {
	return l.rated(zapcore.DebugLevel, cost, msg, fields)
}

// RatedInfo 在限流允许时输出 Info 日志，返回本次是否通过限流。
func (l *MLogger) RatedInfo(cost float64, msg string, fields ...zap.Field) bool {
	return l.rated(zapcore.InfoLevel, cost, msg, fields)
}

// RatedWarn 在限流允许时输出 Warn 日志，返回本次是否通过限流。
func (l *MLogger) RatedWarn(cost float64, msg string, fields ...zap.Field) bool {
	return l.rated(zapcore.WarnLevel, cost, msg, fields)
}

func (l *MLogger) limiter() RateLimiter {
	if rl := l.rl.Load(); rl != nil {
		return rl
	}
	return R()
}

func (l *MLogger) rated(level zapcore.Level, cost float64, msg string, fields []zap.Field) bool {
	if !l.limiter().CheckCredit(cost) {
		return false
	}
	// 跳过 rated 与 RatedXxx 两层。
	if ce := l.WithOptions(zap.AddCallerSkip(2)).Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
	return true
}

// Binder 嵌入到组件中，为组件提供可替换的 Logger。
type Binder struct {
	logger atomic.Pointer[MLogger]
}

// SetLogger 替换组件使用的 Logger。
func (b *Binder) SetLogger(logger *MLogger) {
	b.logger.Store(logger)
}

// Logger 返回组件的 Logger，未设置时退回全局 Logger。
func (b *Binder) Logger() *MLogger {
	if l := b.logger.Load(); l != nil {
		return l
	}
	return With()
}

func withLazyFields(lg *zap.Logger, fields []zap.Field) *zap.Logger {
	return lg.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return newLazyCore(core, fields)
	}))
}

// lazyCore 推迟 core.With 的字段编码，直到第一次写日志或派生子 Logger。
// 参见 https://github.com/uber-go/zap/issues/1426。
type lazyCore struct {
	// 原始 core，只用于 Enabled。
	zapcore.Core
	with func() zapcore.Core
}

func newLazyCore(core zapcore.Core, fields []zap.Field) zapcore.Core {
	return &lazyCore{
		Core: core,
		with: sync.OnceValue(func() zapcore.Core { return core.With(fields) }),
	}
}

func (c *lazyCore) With(fields []zap.Field) zapcore.Core {
	return c.with().With(fields)
}

func (c *lazyCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return c.with().Check(e, ce)
}

func (c *lazyCore) Write(e zapcore.Entry, fields []zap.Field) error {
	return c.with().Write(e, fields)
}

func (c *lazyCore) Sync() error {
	return c.with().Sync()
}
