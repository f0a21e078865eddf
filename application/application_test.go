package application

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/little-go/pkg/little"
	"github.com/lk2023060901/little-go/pkg/util/merr"
)

type Greeting struct {
	Text   string
	Secret string
}

type ApplicationSuite struct {
	suite.Suite
}

func (s *ApplicationSuite) writeConfig(content string) string {
	path := filepath.Join(s.T().TempDir(), "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (s *ApplicationSuite) TestLoad() {
	path := s.writeConfig(`
server:
  tcp-addr: 0.0.0.0:9000
  ws-addr: 0.0.0.0:9001
  read-timeout: 30s
  send-queue-size: 64
codec:
  compression: false
little:
  date-time-mode: detailed
  ignore:
    Greeting:
      - Secret
logging:
  room:
    level: debug
`)
	app, err := New([]string{"--config", path})
	s.Require().NoError(err)

	cfg := app.Config()
	s.Equal("0.0.0.0:9000", cfg.Server.TCPAddr)
	s.Equal("0.0.0.0:9001", cfg.Server.WSAddr)
	s.Equal("/ws", cfg.Server.WSPath)
	s.Equal(30*time.Second, app.SessionConfig().ReadTimeout)
	s.Equal(64, app.SessionConfig().SendQueueSize)
	s.False(cfg.Codec.Compression)
	s.Equal(128, cfg.Codec.MinCompressSize)
	s.Equal(little.Detailed, app.Registry().DateTimeMode())
	s.NotNil(app.Logger("room"))
	s.NotNil(app.Logger("unknown"))

	c, release, err := app.NewCodec()
	s.Require().NoError(err)
	defer release()

	var buf bytes.Buffer
	s.Require().NoError(c.Encode(&buf, Greeting{Text: "hi", Secret: "s"}))
	var out Greeting
	s.Require().NoError(c.Decode(&buf, &out))
	s.Equal(Greeting{Text: "hi"}, out)
}

func (s *ApplicationSuite) TestCompressedCodec() {
	path := s.writeConfig("codec:\n  max-frame-size: 1024\n")
	app, err := New([]string{"--config=" + path})
	s.Require().NoError(err)
	s.True(app.Config().Codec.Compression)

	c, release, err := app.NewCodec()
	s.Require().NoError(err)
	defer release()

	// 随机字节无法被压缩到帧上限以内。
	noise := make([]byte, 4096)
	_, err = rand.Read(noise)
	s.Require().NoError(err)
	var buf bytes.Buffer
	s.ErrorIs(c.Encode(&buf, noise), merr.ErrFrameTooLarge)
}

func (s *ApplicationSuite) TestConfigPath() {
	s.T().Setenv(envConfigFilePath, "/etc/little.yaml")
	path, err := configPath(nil)
	s.NoError(err)
	s.Equal("/etc/little.yaml", path)

	path, err = configPath([]string{"-v", "--config=other.yaml"})
	s.NoError(err)
	s.Equal("other.yaml", path)

	_, err = configPath([]string{"--config"})
	s.ErrorIs(err, merr.ErrParameterMissing)
}

func (s *ApplicationSuite) TestEnvOverride() {
	path := s.writeConfig("server:\n  tcp-addr: 127.0.0.1:1\n")
	s.T().Setenv("LITTLE_SERVER_TCP_ADDR", "127.0.0.1:2")
	app, err := New([]string{"--config", path})
	s.Require().NoError(err)
	s.Equal("127.0.0.1:2", app.Config().Server.TCPAddr)
}

func (s *ApplicationSuite) TestLoadErrors() {
	_, err := New([]string{"--config", filepath.Join(s.T().TempDir(), "missing.yaml")})
	s.ErrorIs(err, merr.ErrIoFailed)

	_, err = New([]string{"--config", s.writeConfig("little:\n  date-time-mode: hourly\n")})
	s.ErrorIs(err, merr.ErrParameterInvalid)

	_, err = New([]string{"--config", s.writeConfig("codec:\n  min-compress-size: -1\n")})
	s.ErrorIs(err, merr.ErrParameterInvalid)
}

func TestApplication(t *testing.T) {
	suite.Run(t, new(ApplicationSuite))
}
