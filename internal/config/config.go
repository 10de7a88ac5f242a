// Package config layers defaults, an optional YAML file, environment
// variables and command-line flags into one Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tanq16/linkrelay/internal/utils"
)

const DefaultConfigFile = "linkrelay.yaml"

type Config struct {
	Relay    RelayConfig    `mapstructure:"relay" yaml:"relay"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Sink     SinkConfig     `mapstructure:"sink" yaml:"sink"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Mega     MegaConfig     `mapstructure:"mega" yaml:"mega"`
	Terabox  TeraboxConfig  `mapstructure:"terabox" yaml:"terabox"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type RelayConfig struct {
	Workers          int           `mapstructure:"workers" yaml:"workers"`
	WindowSizeMB     int           `mapstructure:"window_size_mb" yaml:"window_size_mb"`
	PartSizeMB       int           `mapstructure:"part_size_mb" yaml:"part_size_mb"`
	Policy           string        `mapstructure:"policy" yaml:"policy"`
	ProgressInterval time.Duration `mapstructure:"progress_interval" yaml:"progress_interval"`
}

type HTTPConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	KATimeout     time.Duration `mapstructure:"keep_alive_timeout" yaml:"keep_alive_timeout"`
	ProxyURL      string        `mapstructure:"proxy" yaml:"proxy"`
	ProxyUsername string        `mapstructure:"proxy_username" yaml:"proxy_username"`
	ProxyPassword string        `mapstructure:"proxy_password" yaml:"proxy_password"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
	Headers       []string      `mapstructure:"headers" yaml:"headers"`
}

type SinkConfig struct {
	Type      string `mapstructure:"type" yaml:"type"`
	OutDir    string `mapstructure:"out_dir" yaml:"out_dir"`
	S3Target  string `mapstructure:"s3_target" yaml:"s3_target"`
	S3Profile string `mapstructure:"s3_profile" yaml:"s3_profile"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token" yaml:"token"`
	ChatID string `mapstructure:"chat_id" yaml:"chat_id"`
	APIURL string `mapstructure:"api_url" yaml:"api_url"`
	// Status sends progress to the chat even when parts go elsewhere
	Status bool `mapstructure:"status" yaml:"status"`
}

type MegaConfig struct {
	APIURL     string `mapstructure:"api_url" yaml:"api_url"`
	APIRetries int    `mapstructure:"api_retries" yaml:"api_retries"`
}

type TeraboxConfig struct {
	Cookie string `mapstructure:"cookie" yaml:"cookie"`
	APIURL string `mapstructure:"api_url" yaml:"api_url"`
}

type LogConfig struct {
	Debug bool   `mapstructure:"debug" yaml:"debug"`
	File  string `mapstructure:"file" yaml:"file"`
}

const (
	SinkLocal    = "local"
	SinkS3       = "s3"
	SinkTelegram = "telegram"
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"workers":            "relay.workers",
	"window-size":        "relay.window_size_mb",
	"part-size":          "relay.part_size_mb",
	"policy":             "relay.policy",
	"progress-interval":  "relay.progress_interval",
	"timeout":            "http.timeout",
	"keep-alive-timeout": "http.keep_alive_timeout",
	"proxy":              "http.proxy",
	"proxy-username":     "http.proxy_username",
	"proxy-password":     "http.proxy_password",
	"user-agent":         "http.user_agent",
	"header":             "http.headers",
	"sink":               "sink.type",
	"output":             "sink.out_dir",
	"s3-target":          "sink.s3_target",
	"s3-profile":         "sink.s3_profile",
	"telegram-status":    "telegram.status",
	"debug":              "log.debug",
	"log-file":           "log.file",
}

// envKeys are provider variables read without the LINKRELAY_ prefix.
var envKeys = map[string]string{
	"terabox.cookie":   "TERABOX_COOKIE",
	"telegram.token":   "TELEGRAM_TOKEN",
	"telegram.chat_id": "TELEGRAM_CHAT_ID",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("relay.workers", 2)
	v.SetDefault("relay.window_size_mb", utils.DefaultWindowSize/(1024*1024))
	v.SetDefault("relay.part_size_mb", utils.DefaultPartSize/(1024*1024))
	v.SetDefault("relay.policy", string(utils.PolicyAbort))
	v.SetDefault("relay.progress_interval", 5*time.Second)
	v.SetDefault("http.timeout", 3*time.Minute)
	v.SetDefault("http.keep_alive_timeout", 90*time.Second)
	v.SetDefault("sink.type", SinkLocal)
	v.SetDefault("sink.out_dir", ".")
	v.SetDefault("mega.api_retries", 4)
}

// Load reads path (or ./linkrelay.yaml when path is empty and the file
// exists), then LINKRELAY_* and provider environment variables, then any
// flags in flags that were set explicitly.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	v.SetEnvPrefix("LINKRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envKeys {
		if err := v.BindEnv(key, "LINKRELAY_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}
	if flags != nil {
		for name, key := range flagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Relay.Workers < 1 {
		return errors.New("relay.workers must be at least 1")
	}
	if c.Relay.WindowSizeMB < 1 {
		return errors.New("relay.window_size_mb must be at least 1")
	}
	if c.Relay.PartSizeMB < 1 {
		return errors.New("relay.part_size_mb must be at least 1")
	}
	switch utils.FailurePolicy(c.Relay.Policy) {
	case utils.PolicyAbort, utils.PolicyContinue:
	default:
		return fmt.Errorf("relay.policy must be %q or %q, got %q", utils.PolicyAbort, utils.PolicyContinue, c.Relay.Policy)
	}
	switch c.Sink.Type {
	case SinkLocal:
	case SinkS3:
		if c.Sink.S3Target == "" {
			return errors.New("sink.s3_target is required for the s3 sink")
		}
	case SinkTelegram:
		if c.Telegram.Token == "" || c.Telegram.ChatID == "" {
			return errors.New("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID are required for the telegram sink")
		}
	default:
		return fmt.Errorf("unknown sink %q (want local, s3 or telegram)", c.Sink.Type)
	}
	if c.Telegram.Status && (c.Telegram.Token == "" || c.Telegram.ChatID == "") {
		return errors.New("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID are required for telegram status")
	}
	return nil
}

func (c *Config) WindowSize() uint64 {
	return uint64(c.Relay.WindowSizeMB) * 1024 * 1024
}

func (c *Config) PartSize() uint64 {
	return uint64(c.Relay.PartSizeMB) * 1024 * 1024
}

func (c *Config) HTTPClientConfig() utils.HTTPClientConfig {
	userAgent := c.HTTP.UserAgent
	if userAgent == "randomize" {
		userAgent = utils.GetRandomUserAgent()
	}
	return utils.HTTPClientConfig{
		Timeout:       c.HTTP.Timeout,
		KATimeout:     c.HTTP.KATimeout,
		ProxyURL:      c.HTTP.ProxyURL,
		ProxyUsername: c.HTTP.ProxyUsername,
		ProxyPassword: c.HTTP.ProxyPassword,
		UserAgent:     userAgent,
		Headers:       utils.ParseHeaderArgs(c.HTTP.Headers),
	}
}

// TelegramEnabled reports whether any component talks to the Bot API.
func (c *Config) TelegramEnabled() bool {
	return c.Sink.Type == SinkTelegram || c.Telegram.Status
}
