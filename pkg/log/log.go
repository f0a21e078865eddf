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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"gopkg.in/natefinch/lumberjack.v2"
)

// globals 保存当前生效的全局 Logger。
// base 用于 L、With 和 Ctx；skip 多跳过一层调用栈，供包级 Debug、Info 等函数使用。
type globals struct {
	base  *zap.Logger
	skip  *zap.Logger
	props *ZapProperties
}

var current atomic.Pointer[globals]

func init() {
	lg, props, err := InitLogger(&Config{Level: "debug", Stdout: true}, zap.OnFatal(zapcore.WriteThenPanic))
	if err != nil {
		panic(err)
	}
	ReplaceGlobals(lg, props)
	configureRateLimiterFromEnv()
}

// InitLogger 按配置创建 Logger。
// 配置了 File.Filename 时写入滚动文件，Stdout 为 true 时同时写标准输出，两者都未配置时丢弃日志。
func InitLogger(cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	var outputs []zapcore.WriteSyncer
	if cfg.File.Filename != "" {
		fl, err := newFileSink(&cfg.File)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, zapcore.AddSync(fl))
	}
	if cfg.Stdout {
		outputs = append(outputs, zapcore.Lock(os.Stdout))
	}
	return InitLoggerWithWriteSyncer(cfg, zap.CombineWriteSyncers(outputs...), opts...)
}

// InitTestLogger 创建一个输出到 t.Logf 的 Logger，zap 内部错误会将测试标记为失败。
func InitTestLogger(t zaptest.TestingT, cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	opts = append([]zap.Option{zap.ErrorOutput(testSink{t: t, failOnWrite: true})}, opts...)
	return InitLoggerWithWriteSyncer(cfg, testSink{t: t}, opts...)
}

// InitLoggerWithWriteSyncer 使用指定的 WriteSyncer 创建 Logger。
func InitLoggerWithWriteSyncer(cfg *Config, output zapcore.WriteSyncer, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	core := zapcore.NewCore(newZapEncoder(cfg), output, level)
	lg := zap.New(core, append(cfg.buildOptions(output), opts...)...)
	return lg, &ZapProperties{Core: core, Syncer: output, Level: level}, nil
}

// parseLevel 解析日志级别，trace 按 debug 处理，空字符串为 info。
func parseLevel(s string) (zap.AtomicLevel, error) {
	if strings.EqualFold(s, "trace") {
		s = "debug"
	}
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, errors.Wrapf(err, "invalid log level %q", s)
	}
	return level, nil
}

func newFileSink(cfg *FileLogConfig) (*lumberjack.Logger, error) {
	path := filepath.Join(cfg.RootPath, cfg.Filename)
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		return nil, errors.Newf("log file %s is a directory", path)
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = defaultLogMaxSize
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxDays,
		LocalTime:  true,
	}, nil
}

// testSink 将每条日志转发给 t.Logf。
type testSink struct {
	t           zaptest.TestingT
	failOnWrite bool
}

func (s testSink) Write(p []byte) (int, error) {
	// t.Logf 会自行换行。
	s.t.Logf("%s", bytes.TrimSuffix(p, []byte("\n")))
	if s.failOnWrite {
		s.t.Fail()
	}
	return len(p), nil
}

func (testSink) Sync() error {
	return nil
}

// ReplaceGlobals 替换全局 Logger，可并发调用。
func ReplaceGlobals(logger *zap.Logger, props *ZapProperties) {
	current.Store(&globals{
		base:  logger,
		skip:  logger.WithOptions(zap.AddCallerSkip(1)),
		props: props,
	})
}

// L 返回全局 Logger。
func L() *zap.Logger {
	return current.Load().base
}

// Level 返回全局 Logger 的动态级别，可用于运行时调整。
func Level() zap.AtomicLevel {
	return current.Load().props.Level
}

// Sync 刷新全局 Logger 的缓冲。
func Sync() error {
	return L().Sync()
}
