package little

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/little-go/pkg/log"
	"github.com/lk2023060901/little-go/pkg/util/merr"
)

type Account struct {
	Name     string
	Password string
	Age      int32
}

type Order struct {
	ID    int32
	total int32
	note  *string
}

type ConfigSuite struct {
	suite.Suite
}

func (s *ConfigSuite) writeConfig(name, content string) string {
	path := filepath.Join(s.T().TempDir(), name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (s *ConfigSuite) TestIgnoreByType() {
	r := NewRegistry()
	ForType[Account](r).Ignore("Password")

	data, err := Serialize(r, Account{Name: "a", Password: "secret", Age: 3})
	s.Require().NoError(err)
	s.Equal([]byte{0x03, 0x00, 0x00, 0x00, 0x01, 'a'}, data)

	out, err := Deserialize[Account](r, data)
	s.Require().NoError(err)
	s.Equal(Account{Name: "a", Age: 3}, out)
}

func (s *ConfigSuite) TestIgnoreFromConfig() {
	r := NewRegistry(WithConfig(&Config{
		Ignore: map[string][]string{"account": {"Password"}},
	}))
	schema, err := SchemaOf[Account](r)
	s.Require().NoError(err)
	s.Equal([]string{"Age", "Name"}, schema.Names())
	s.Equal(SecondPrecision, r.DateTimeMode())
}

func (s *ConfigSuite) TestLateConfigurationIgnored() {
	r := NewRegistry(WithLogger(&log.MLogger{Logger: log.L()}))
	_, err := SchemaOf[Account](r)
	s.Require().NoError(err)

	ForType[Account](r).Ignore("Password")
	data, err := Serialize(r, Account{Name: "a", Password: "p", Age: 1})
	s.Require().NoError(err)
	s.Len(data, 4+2+2)
}

func (s *ConfigSuite) TestProperties() {
	r := NewRegistry()
	cfg := ForType[Order](r)
	Property(cfg, "Total",
		func(o *Order) int32 { return o.total },
		func(o *Order, v int32) { o.total = v })
	Property(cfg, "Note",
		func(o *Order) *string { return o.note },
		func(o *Order, v *string) { o.note = v })

	schema, err := SchemaOf[Order](r)
	s.Require().NoError(err)
	s.Equal([]string{"Note", "Total", "ID"}, schema.Names())
	s.True(schema.Members[0].HasHeader)
	s.False(schema.Members[1].HasHeader)
	s.Equal(Assignable, schema.Members[1].Mutability)

	data, err := Serialize(r, Order{ID: 1, total: 9})
	s.Require().NoError(err)
	s.Equal([]byte{0x80, 0x09, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}, data)

	note := "gift"
	data, err = Serialize(r, &Order{ID: 2, total: 5, note: &note})
	s.Require().NoError(err)
	out, err := Deserialize[Order](r, data)
	s.Require().NoError(err)
	s.Equal(int32(2), out.ID)
	s.Equal(int32(5), out.total)
	s.Require().NotNil(out.note)
	s.Equal("gift", *out.note)
}

func (s *ConfigSuite) TestDuplicateMember() {
	r := NewRegistry()
	cfg := ForType[Account](r)
	Property(cfg, "Age", func(a *Account) int32 { return a.Age }, func(a *Account, v int32) { a.Age = v })
	Property(cfg, "Age", func(a *Account) int32 { return a.Age }, func(a *Account, v int32) { a.Age = v })
	_, err := SchemaOf[Account](r)
	s.ErrorIs(err, merr.ErrSerializeIllegalSchema)
}

func (s *ConfigSuite) TestLoadConfig() {
	path := s.writeConfig("little.yaml", `
date-time-mode: detailed
ignore:
  Account:
    - Password
`)
	cfg, err := LoadConfig(path)
	s.Require().NoError(err)
	s.Equal("detailed", cfg.DateTimeMode)
	s.Equal([]string{"Password"}, cfg.Ignore["account"])

	r := NewRegistry(WithConfig(cfg))
	s.Equal(Detailed, r.DateTimeMode())
	schema, err := SchemaOf[Account](r)
	s.Require().NoError(err)
	s.Equal([]string{"Age", "Name"}, schema.Names())
}

func (s *ConfigSuite) TestLoadConfigDefaultsAndEnv() {
	path := s.writeConfig("little.json", `{"ignore": {}}`)
	cfg, err := LoadConfig(path)
	s.Require().NoError(err)
	s.Equal("second", cfg.DateTimeMode)

	s.T().Setenv("LITTLE_DATE_TIME_MODE", "detailed")
	cfg, err = LoadConfig(path)
	s.Require().NoError(err)
	s.Equal("detailed", cfg.DateTimeMode)
}

func (s *ConfigSuite) TestLoadConfigErrors() {
	_, err := LoadConfig(filepath.Join(s.T().TempDir(), "missing.yaml"))
	s.ErrorIs(err, merr.ErrIoFailed)

	path := s.writeConfig("bad.yaml", "date-time-mode: hourly\n")
	_, err = LoadConfig(path)
	s.ErrorIs(err, merr.ErrParameterInvalid)
}

func (s *ConfigSuite) TestParseDateTimeMode() {
	mode, err := ParseDateTimeMode(" Detailed ")
	s.NoError(err)
	s.Equal(Detailed, mode)
	mode, err = ParseDateTimeMode("")
	s.NoError(err)
	s.Equal(SecondPrecision, mode)
	s.Equal("second", mode.String())
	_, err = ParseDateTimeMode("minute")
	s.ErrorIs(err, merr.ErrParameterInvalid)
}

func (s *ConfigSuite) TestConcurrentSchemaBuild() {
	r := NewRegistry()
	const workers = 16
	schemas := make([]*Schema, workers)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			schema, err := r.Schema(reflect.TypeFor[*Account]())
			schemas[i] = schema
			return err
		})
	}
	s.Require().NoError(g.Wait())
	for _, schema := range schemas {
		s.Same(schemas[0], schema)
	}
}

func TestConfig(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}
