package main

import (
	"os"
	"strings"

	"github.com/campusportal/go-auth"
	"github.com/campusportal/go-auth/mailer"
	"github.com/campusportal/go-auth/storage/s3store"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// SigningKeyEnv overrides auth.signing_key when set
const SigningKeyEnv = "AUTH_SIGNING_KEY"

const minSigningKeyLength = 16

// Config is the authd configuration file
type Config struct {
	Listen        string `koanf:"listen"`
	MetricsListen string `koanf:"metrics_listen"`
	LogFormat     string `koanf:"log_format"`
	Debug         bool   `koanf:"debug"`
	// PhoneRegion turns on phone validation, numbers are stored in E.164
	PhoneRegion string         `koanf:"phone_region"`
	Database    DatabaseConfig `koanf:"database"`
	Auth        auth.Options   `koanf:"auth"`
	SMTP        mailer.Config  `koanf:"smtp"`
	S3          s3store.Config `koanf:"s3"`
}

// DatabaseConfig selects the credential store
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
	// Name is the mongo database name
	Name        string `koanf:"name"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

func defaultConfig() Config {
	return Config{
		Listen:        ":3000",
		MetricsListen: ":9090",
		LogFormat:     "text",
		Database: DatabaseConfig{
			Driver:      "sqlite",
			DSN:         "file:authd.db?cache=shared",
			Name:        "portal",
			AutoMigrate: true,
		},
		Auth: auth.DefaultOptions(),
	}
}

// loadConfig layers defaults, the yaml file at path, changed flags and
// the signing key environment variable. It does not validate.
func loadConfig(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := defaultConfig()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, oops.Code("CONFIG_INVALID").With("path", path).Wrapf(err, "failed to read config file")
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", nil, func(f *pflag.Flag) (string, interface{}) {
			if f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return cfg, oops.Code("CONFIG_INVALID").Wrapf(err, "failed to read flags")
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, oops.Code("CONFIG_INVALID").Wrapf(err, "failed to decode config")
	}

	if key := os.Getenv(SigningKeyEnv); key != "" {
		cfg.Auth.SigningKey = key
	}

	return cfg, nil
}

// Validate checks the database settings only, migrate needs nothing else
func (d DatabaseConfig) Validate() error {
	switch d.Driver {
	case "sqlite", "postgres", "mongo":
	default:
		return oops.Code("CONFIG_INVALID").With("driver", d.Driver).Errorf("database.driver must be sqlite, postgres or mongo")
	}
	if d.DSN == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.dsn is required")
	}
	if d.Driver == "mongo" && d.Name == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.name is required for mongo")
	}
	return nil
}

// Validate reports the first invalid setting
func (c Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if len(c.Auth.SigningKey) < minSigningKeyLength {
		return oops.Code("CONFIG_INVALID").With("min", minSigningKeyLength).Errorf("auth.signing_key is missing or too short, set it or %s", SigningKeyEnv)
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return oops.Code("CONFIG_INVALID").Errorf("smtp.from is required when smtp.host is set")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return oops.Code("CONFIG_INVALID").With("log_format", c.LogFormat).Errorf("log_format must be text or json")
	}
	return nil
}
