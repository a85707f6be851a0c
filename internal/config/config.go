// Package config loads relay and console settings from defaults, an optional
// config file, OFS_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "OFS"

type Config struct {
	Relay   RelayConfig   `mapstructure:"relay"`
	Journal JournalConfig `mapstructure:"journal"`
	Client  ClientConfig  `mapstructure:"client"`
	Gin     GinConfig     `mapstructure:"gin"`
}

type RelayConfig struct {
	Listen          string        `mapstructure:"listen"`
	Route           string        `mapstructure:"route"`
	RemoteAddr      string        `mapstructure:"remote_addr"`
	MaxPayload      int64         `mapstructure:"max_payload"`
	MaxResponse     int64         `mapstructure:"max_response"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
	WebRoot         string        `mapstructure:"web_root"`
}

// JournalConfig enables the SQLite exchange journal when Path is set.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

type ClientConfig struct {
	RelayURL string        `mapstructure:"relay_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	History  string        `mapstructure:"history"`
	BaseDir  string        `mapstructure:"base_dir"`
	Session  string        `mapstructure:"session"`
}

type GinConfig struct {
	Mode string `mapstructure:"mode"`
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("relay.listen", ":4000")
	v.SetDefault("relay.route", "/send")
	v.SetDefault("relay.remote_addr", "127.0.0.1:8080")
	v.SetDefault("relay.max_payload", 50<<20)
	v.SetDefault("relay.max_response", 64<<20)
	v.SetDefault("relay.dial_timeout", 5*time.Second)
	v.SetDefault("relay.response_timeout", 60*time.Second)
	v.SetDefault("relay.allow_origins", []string{"*"})
	v.SetDefault("relay.web_root", "")
	v.SetDefault("journal.path", "")
	v.SetDefault("client.relay_url", "http://localhost:4000/send")
	v.SetDefault("client.timeout", time.Duration(0))
	v.SetDefault("client.history", "")
	v.SetDefault("client.base_dir", ".")
	v.SetDefault("client.session", "")
	v.SetDefault("gin.mode", "release")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (or ofs.{yaml,toml,json} from the usual places when file
// is empty) into v and decodes the result. A missing default config file is
// not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("ofs")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/ofs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Relay.RemoteAddr); err != nil {
		return fmt.Errorf("relay.remote_addr %q: %w", c.Relay.RemoteAddr, err)
	}
	if !strings.HasPrefix(c.Relay.Route, "/") {
		return fmt.Errorf("relay.route %q must start with /", c.Relay.Route)
	}
	if c.Relay.MaxPayload <= 0 {
		return fmt.Errorf("relay.max_payload must be positive, got %d", c.Relay.MaxPayload)
	}
	if c.Relay.DialTimeout < 0 || c.Relay.ResponseTimeout < 0 || c.Client.Timeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}
