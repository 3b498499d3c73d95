package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ltfawg/subscribe-api/internal/logger"
	"github.com/ltfawg/subscribe-api/internal/validator"
)

type SendyConfig struct {
	URL          string        `mapstructure:"url"           yaml:"url"           validate:"required,url"`
	APIKey       string        `mapstructure:"api_key"       yaml:"api_key"`
	ListID       string        `mapstructure:"list_id"       yaml:"list_id"       validate:"required"`
	UserAgent    string        `mapstructure:"user_agent"    yaml:"user_agent"    validate:"required"`
	Timeout      time.Duration `mapstructure:"timeout"       yaml:"timeout"       validate:"required"`
	MaxRedirects int           `mapstructure:"max_redirects" yaml:"max_redirects" validate:"gte=0"`
}

type HCaptchaConfig struct {
	Secret    string `mapstructure:"secret"     yaml:"secret"     validate:"required_if=Verify true"`
	VerifyURL string `mapstructure:"verify_url" yaml:"verify_url" validate:"required,url"`
	Verify    bool   `mapstructure:"verify"     yaml:"verify"`
	RetryMax  int    `mapstructure:"retry_max"  yaml:"retry_max"  validate:"gte=0"`
}

type RedirectConfig struct {
	Default string   `mapstructure:"default" yaml:"default" validate:"required,startswith=/"`
	Allowed []string `mapstructure:"allowed" yaml:"allowed" validate:"required,min=1,dive,startswith=/"`
}

type RateLimitConfig struct {
	RedisHost string `mapstructure:"redis_host" yaml:"redis_host"`
	PerMinute int64  `mapstructure:"per_minute" yaml:"per_minute" validate:"gte=0"`
	FailOpen  bool   `mapstructure:"fail_open"  yaml:"fail_open"`
	// Peers in these ranges are proxies whose client-address headers are trusted.
	TrustedProxies []string `mapstructure:"trusted_proxies" yaml:"trusted_proxies" validate:"dive,cidr"`
}

type SlogConfig struct {
	Level int `mapstructure:"level" yaml:"level"`
}

type LoggingConfig struct {
	App     SlogConfig `mapstructure:"app"      yaml:"app"`
	UseOTLP bool       `mapstructure:"use_otlp" yaml:"use_otlp"`
}

// See subscribeapi.yaml for an example config
type Config struct {
	Sendy                *SendyConfig     `mapstructure:"sendy"                  yaml:"sendy"                  validate:"required"`
	HCaptcha             *HCaptchaConfig  `mapstructure:"hcaptcha"               yaml:"hcaptcha"               validate:"required"`
	Redirects            *RedirectConfig  `mapstructure:"redirects"              yaml:"redirects"              validate:"required"`
	RateLimit            *RateLimitConfig `mapstructure:"ratelimit"              yaml:"ratelimit"`
	Logging              *LoggingConfig   `mapstructure:"logging"                yaml:"logging"                validate:"required"`
	ListenAddress        string           `mapstructure:"listen_address"         yaml:"listen_address"         validate:"required"`
	GracefulShutdownSecs int64            `mapstructure:"graceful_shutdown_secs" yaml:"graceful_shutdown_secs"`
}

const (
	AppLogLevel          string = "logging.app.level"
	EnvPrefix            string = "subscribeapi"
	GracefulShutdownSecs string = "graceful_shutdown_secs"
	HCaptchaRetryMax     string = "hcaptcha.retry_max"
	HCaptchaSecret       string = "hcaptcha.secret" // #nosec
	HCaptchaVerify       string = "hcaptcha.verify"
	HCaptchaVerifyURL    string = "hcaptcha.verify_url"
	ListenAddress        string = "listen_address"
	RateLimitFailOpen    string = "ratelimit.fail_open"
	RateLimitPerMinute   string = "ratelimit.per_minute"
	RateLimitTrusted     string = "ratelimit.trusted_proxies"
	RedirectsAllowed     string = "redirects.allowed"
	RedirectsDefault     string = "redirects.default"
	RedisHost            string = "ratelimit.redis_host"
	SendyAPIKey          string = "sendy.api_key" // #nosec
	SendyListID          string = "sendy.list_id"
	SendyMaxRedirects    string = "sendy.max_redirects"
	SendyTimeout         string = "sendy.timeout"
	SendyURL             string = "sendy.url"
	SendyUserAgent       string = "sendy.user_agent"
	UseOTLP              string = "logging.use_otlp"
)

var ErrDefaultRedirectNotAllowed = errors.New("redirects.default must be one of redirects.allowed")

var configReady = false
var config Config

// GetConfig loads the process config once; later calls return the cached value.
func GetConfig() (*Config, error) {
	if configReady {
		logger.Logger.Debug("returning already-loaded config")
		return &config, nil
	}
	logger.Logger.Info("loading config")

	v := New()

	err := v.ReadInConfig()
	if err != nil {
		// ignore config file not found to allow pure env config
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	loaded, err := Load(v)
	if err != nil {
		configReady = false
		return nil, err
	}

	config = *loaded
	configReady = true
	return &config, nil
}

// New returns a viper instance with search paths, env bindings and defaults applied.
func New() *viper.Viper {
	v := viper.New()

	v.SetConfigName("subscribeapi")

	v.AddConfigPath("/etc/subscribeapi/")
	v.AddConfigPath(".")

	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.AutomaticEnv()

	// workaround for https://github.com/spf13/viper/issues/761
	// bind env vars explicitly so they unmarshal into the nested struct
	for _, key := range []string{SendyURL, SendyAPIKey, SendyListID, HCaptchaSecret, RedisHost} {
		// BindEnv only fails when called without a key
		_ = v.BindEnv(key)
	}

	v.SetDefault(ListenAddress, "[::]:1323")
	v.SetDefault(GracefulShutdownSecs, 30)
	v.SetDefault(AppLogLevel, int(slog.LevelInfo))
	v.SetDefault(UseOTLP, false)

	v.SetDefault(SendyTimeout, 30*time.Second)
	v.SetDefault(SendyMaxRedirects, 5)
	v.SetDefault(SendyUserAgent, "LTFAGW-Subscribe-Handler")

	v.SetDefault(HCaptchaVerify, false)
	v.SetDefault(HCaptchaVerifyURL, "https://api.hcaptcha.com/siteverify")
	v.SetDefault(HCaptchaRetryMax, 2)

	v.SetDefault(RedirectsDefault, "/are-you-a-bot/")
	v.SetDefault(RedirectsAllowed, []string{"/are-you-a-bot/", "/thanks/"})

	v.SetDefault(RedisHost, "localhost")
	v.SetDefault(RateLimitPerMinute, 0)
	v.SetDefault(RateLimitFailOpen, true)
	v.SetDefault(RateLimitTrusted, []string{})

	return v
}

// Load decodes and validates the config held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	valid := validator.Create()
	if err := valid.Validate(&c); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if !slices.Contains(c.Redirects.Allowed, c.Redirects.Default) {
		return nil, ErrDefaultRedirectNotAllowed
	}

	return &c, nil
}

// SubscribeURL is the mailing-list subscribe endpoint derived from sendy.url.
func (c *Config) SubscribeURL() string {
	return strings.TrimSuffix(c.Sendy.URL, "/") + "/subscribe"
}

// Redacted returns a copy with secrets masked, safe to print.
func (c *Config) Redacted() Config {
	out := *c
	if c.Sendy != nil {
		sendy := *c.Sendy
		sendy.APIKey = mask(sendy.APIKey)
		out.Sendy = &sendy
	}
	if c.HCaptcha != nil {
		hc := *c.HCaptcha
		hc.Secret = mask(hc.Secret)
		out.HCaptcha = &hc
	}
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
