// Package application 负责服务进程的启动准备：解析配置文件路径、加载配置、
// 初始化全局与模块级 Logger，并据配置构造 Registry 与 Codec。
package application

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/little-go/internal/network/codec"
	"github.com/lk2023060901/little-go/internal/network/compressor"
	"github.com/lk2023060901/little-go/internal/network/framer"
	"github.com/lk2023060901/little-go/internal/network/serializer"
	"github.com/lk2023060901/little-go/internal/network/session"
	"github.com/lk2023060901/little-go/pkg/little"
	"github.com/lk2023060901/little-go/pkg/log"
	"github.com/lk2023060901/little-go/pkg/util/merr"
	"github.com/lk2023060901/little-go/pkg/util/viper"
)

const (
	envPrefix         = "LITTLE"
	envConfigFilePath = "LITTLE_CONFIG_FILE_PATH"
	defaultConfigPath = "./config.yaml"
)

// Config 是服务进程的完整配置。
type Config struct {
	Log    log.Config    `mapstructure:"log"`
	Little little.Config `mapstructure:"little"`
	Server ServerConfig  `mapstructure:"server"`
	Codec  CodecConfig   `mapstructure:"codec"`
	// Logging 以模块名为键配置模块级 Logger。
	Logging map[string]log.Config `mapstructure:"logging"`
}

// ServerConfig 描述接入层监听地址与会话参数。
type ServerConfig struct {
	TCPAddr       string        `mapstructure:"tcp-addr"`
	WSAddr        string        `mapstructure:"ws-addr"`
	WSPath        string        `mapstructure:"ws-path"`
	SendQueueSize int           `mapstructure:"send-queue-size"`
	RecvQueueSize int           `mapstructure:"recv-queue-size"`
	ReadTimeout   time.Duration `mapstructure:"read-timeout"`
	WriteTimeout  time.Duration `mapstructure:"write-timeout"`
}

// CodecConfig 描述帧编解码参数。
type CodecConfig struct {
	Compression     bool   `mapstructure:"compression"`
	MinCompressSize int    `mapstructure:"min-compress-size"`
	MaxFrameSize    uint32 `mapstructure:"max-frame-size"`
}

// Application 持有加载后的配置以及由配置派生的公共依赖。
type Application struct {
	cfg      *Config
	registry *little.Registry
	loggers  map[string]*log.MLogger
}

// New 加载配置并初始化日志。args 通常为 os.Args[1:]。
//
// 配置文件路径优先级（后者覆盖前者）：
//  1. 默认：./config.yaml
//  2. 环境变量：LITTLE_CONFIG_FILE_PATH
//  3. 命令行：--config <path> 或 --config=<path>
//
// 任意配置项都可以通过 LITTLE_ 前缀的环境变量覆盖，例如 LITTLE_SERVER_TCP_ADDR。
func New(args []string) (*Application, error) {
	path, err := configPath(args)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}

	a := &Application{cfg: cfg}
	if err := a.initLogging(); err != nil {
		return nil, err
	}
	a.registry = little.NewRegistry(little.WithConfig(&cfg.Little))
	log.Info("application config loaded", zap.String("path", path),
		zap.String("tcpAddr", cfg.Server.TCPAddr), zap.String("wsAddr", cfg.Server.WSAddr))
	return a, nil
}

// Config 返回加载后的配置。
func (a *Application) Config() *Config {
	return a.cfg
}

// Registry 返回按配置构造的 Registry，消息类型应注册到该 Registry。
func (a *Application) Registry() *little.Registry {
	return a.registry
}

// Logger 返回配置中声明的模块级 Logger，未声明时返回全局 Logger。
func (a *Application) Logger(name string) *log.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &log.MLogger{Logger: log.L()}
}

// SessionConfig 返回会话层配置。
func (a *Application) SessionConfig() session.Config {
	return session.Config{
		SendQueueSize: a.cfg.Server.SendQueueSize,
		RecvQueueSize: a.cfg.Server.RecvQueueSize,
		ReadTimeout:   a.cfg.Server.ReadTimeout,
		WriteTimeout:  a.cfg.Server.WriteTimeout,
	}
}

// NewCodec 按配置构造使用 little 编码的 Codec，返回的 release 用于释放压缩器与协程池。
func (a *Application) NewCodec() (c codec.Codec, release func(), err error) {
	opts := codec.Options{
		Framer:            framer.NewLengthPrefixedFramer(a.cfg.Codec.MaxFrameSize),
		Serializer:        serializer.NewLittleSerializer(a.registry),
		EnableCompression: a.cfg.Codec.Compression,
		MinCompressSize:   a.cfg.Codec.MinCompressSize,
	}
	var zstd *compressor.ZstdCompressor
	if opts.EnableCompression {
		maxDecoded := uint64(framer.DefaultMaxFrameSize)
		if a.cfg.Codec.MaxFrameSize > 0 {
			maxDecoded = uint64(a.cfg.Codec.MaxFrameSize)
		}
		zstd, err = compressor.NewZstdCompressor(compressor.WithMaxDecodedSize(maxDecoded))
		if err != nil {
			return nil, nil, err
		}
		opts.Compressor = zstd
	}
	c, err = codec.New(opts)
	if err != nil {
		if zstd != nil {
			zstd.Close()
		}
		return nil, nil, err
	}
	return c, func() {
		c.Close()
		if zstd != nil {
			zstd.Close()
		}
	}, nil
}

// configPath 解析配置文件路径。
func configPath(args []string) (string, error) {
	path := defaultConfigPath
	if envPath := strings.TrimSpace(os.Getenv(envConfigFilePath)); envPath != "" {
		path = envPath
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return "", merr.WrapErrParameterMissing("config", "missing value after --config")
			}
			path = args[i+1]
			i++
			continue
		}
		if val, ok := strings.CutPrefix(arg, "--config="); ok && val != "" {
			path = val
		}
	}
	return path, nil
}

func loadConfig(path string) (*Config, error) {
	v := viper.NewWithEnv(envPrefix)
	v.SetDefault("server.tcp-addr", "127.0.0.1:19090")
	v.SetDefault("server.ws-path", "/ws")
	v.SetDefault("codec.compression", true)
	v.SetDefault("codec.min-compress-size", 128)
	v.SetDefault("little.date-time-mode", little.SecondPrecision.String())
	if err := v.LoadFile(path); err != nil {
		return nil, merr.WrapErrIoFailed(path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("decode config %s: %s", path, err.Error())
	}
	if _, err := little.ParseDateTimeMode(cfg.Little.DateTimeMode); err != nil {
		return nil, err
	}
	if cfg.Codec.MinCompressSize < 0 {
		return nil, merr.WrapErrParameterInvalidRange(0, 1<<30, cfg.Codec.MinCompressSize, "codec.min-compress-size")
	}
	return cfg, nil
}

// initLogging 初始化全局 Logger 与模块级 Logger。log.level 为空时保留默认全局 Logger。
func (a *Application) initLogging() error {
	if a.cfg.Log.Level != "" {
		logger, props, err := log.InitLogger(&a.cfg.Log)
		if err != nil {
			return merr.WrapErrParameterInvalidMsg("init global logger: %s", err.Error())
		}
		log.ReplaceGlobals(logger, props)
	}

	a.loggers = make(map[string]*log.MLogger, len(a.cfg.Logging))
	for name, lc := range a.cfg.Logging {
		cfgCopy := lc
		logger, _, err := log.InitLogger(&cfgCopy)
		if err != nil {
			return merr.WrapErrParameterInvalidMsg("init module logger %q: %s", name, err.Error())
		}
		a.loggers[name] = &log.MLogger{Logger: logger.With(log.FieldModule(name))}
	}
	return nil
}
