// Package config loads the service settings from an optional YAML file,
// TWOFA_ prefixed environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/layer-3/twofa/codes"
	"github.com/layer-3/twofa/core"
	"github.com/layer-3/twofa/internal/hashutil"
	"github.com/layer-3/twofa/service"
	"github.com/layer-3/twofa/throttle"
	"github.com/spf13/viper"
)

const EnvPrefix = "TWOFA"

// Config holds all configuration of the service
type Config struct {
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	RedisURL  string `mapstructure:"REDIS_URL"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is
	// believed. Empty means the peer address identifies the client.
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`

	// SecretKey is the master secret the code token secrets derive from
	SecretKey string `mapstructure:"SECRET_KEY"`

	CodeLength             int           `mapstructure:"CODE_LENGTH"`
	CodeCharacters         string        `mapstructure:"CODE_CHARACTERS"`
	CodeTokenSecretKey     string        `mapstructure:"CODE_TOKEN_SECRET_KEY"`
	CodeExtensionSecret    string        `mapstructure:"CODE_EXTENSION_SECRET"`
	CodeExpirationTime     time.Duration `mapstructure:"CODE_EXPIRATION_TIME"`
	CodeHashIterations     int           `mapstructure:"CODE_HASH_ITERATIONS"`
	CodeTokenThrottleRate  string        `mapstructure:"CODE_TOKEN_THROTTLE_RATE"`
	AuthTokenRetryWaitTime time.Duration `mapstructure:"AUTH_TOKEN_RETRY_WAIT_TIME"`

	AccessTokenTTL  time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	SigningKeyFile  string        `mapstructure:"SIGNING_KEY_FILE"`
	AccountsFile    string        `mapstructure:"ACCOUNTS_FILE"`

	SMTPHost             string `mapstructure:"SMTP_HOST"`
	SMTPPort             int    `mapstructure:"SMTP_PORT"`
	SMTPUsername         string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword         string `mapstructure:"SMTP_PASSWORD"`
	EmailFrom            string `mapstructure:"EMAIL_FROM"`
	EmailSubjectOverride string `mapstructure:"EMAIL_SUBJECT_OVERRIDE"`
	EmailBodyOverride    string `mapstructure:"EMAIL_BODY_OVERRIDE"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":9000")
	v.SetDefault("REDIS_URL", "") // in-memory store
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("TRUSTED_PROXIES", []string{})

	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("CODE_LENGTH", codes.DefaultLength)
	v.SetDefault("CODE_CHARACTERS", codes.DefaultAlphabet)
	v.SetDefault("CODE_TOKEN_SECRET_KEY", "")
	v.SetDefault("CODE_EXTENSION_SECRET", "")
	v.SetDefault("CODE_EXPIRATION_TIME", service.DefaultCodeLifetime)
	v.SetDefault("CODE_HASH_ITERATIONS", codes.DefaultIterations)
	v.SetDefault("CODE_TOKEN_THROTTLE_RATE", "12/3h")
	v.SetDefault("AUTH_TOKEN_RETRY_WAIT_TIME", 2*time.Second)

	v.SetDefault("ACCESS_TOKEN_TTL", 5*time.Minute)
	v.SetDefault("REFRESH_TOKEN_TTL", 120*time.Hour)
	v.SetDefault("SIGNING_KEY_FILE", "") // ephemeral key
	v.SetDefault("ACCOUNTS_FILE", "")

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 25)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("EMAIL_FROM", "webmaster@localhost")
	v.SetDefault("EMAIL_SUBJECT_OVERRIDE", "")
	v.SetDefault("EMAIL_BODY_OVERRIDE", "")
}

// Load reads the configuration. configFile may name a config file explicitly,
// otherwise twofa.yaml is looked up in /etc/twofa, $HOME/.twofa and the
// working directory. A missing config file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("twofa")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/twofa/")
		v.AddConfigPath("$HOME/.twofa")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// an empty CODE_TOKEN_THROTTLE_RATE disables the throttle
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	cfg.deriveSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// deriveSecrets fills unset code token secrets from the master secret
func (c *Config) deriveSecrets() {
	if c.SecretKey == "" {
		return
	}
	if c.CodeTokenSecretKey == "" {
		c.CodeTokenSecretKey = hashutil.DeriveSecret("2fa-code-", c.SecretKey)
	}
	if c.CodeExtensionSecret == "" {
		c.CodeExtensionSecret = hashutil.DeriveSecret("2fa-ext-", c.SecretKey)
	}
}

// Validate reports the first setting the service cannot start with
func (c *Config) Validate() error {
	if c.CodeTokenSecretKey == "" || c.CodeExtensionSecret == "" {
		return &core.ConfigError{Field: "SECRET_KEY", Reason: "required unless both code token secrets are set"}
	}
	for _, proxy := range c.TrustedProxies {
		if !validProxy(proxy) {
			return &core.ConfigError{Field: "TRUSTED_PROXIES", Reason: fmt.Sprintf("%q is neither an IP nor a CIDR", proxy)}
		}
	}
	if c.CodeCharacters == "" {
		return &core.ConfigError{Field: "CODE_CHARACTERS", Reason: "must not be empty"}
	}
	if c.CodeLength <= 0 {
		return &core.ConfigError{Field: "CODE_LENGTH", Reason: "must be positive"}
	}
	if c.CodeExpirationTime < time.Second {
		return &core.ConfigError{Field: "CODE_EXPIRATION_TIME", Reason: "must be at least one second"}
	}
	if _, err := c.ThrottleRate(); err != nil {
		return err
	}
	if c.AuthTokenRetryWaitTime < 0 {
		return &core.ConfigError{Field: "AUTH_TOKEN_RETRY_WAIT_TIME", Reason: "must not be negative"}
	}
	if c.AccessTokenTTL <= 0 {
		return &core.ConfigError{Field: "ACCESS_TOKEN_TTL", Reason: "must be positive"}
	}
	if c.RefreshTokenTTL <= 0 {
		return &core.ConfigError{Field: "REFRESH_TOKEN_TTL", Reason: "must be positive"}
	}

	return nil
}

func validProxy(proxy string) bool {
	if strings.Contains(proxy, "/") {
		_, _, err := net.ParseCIDR(proxy)
		return err == nil
	}
	return net.ParseIP(proxy) != nil
}

// ThrottleRate parses CODE_TOKEN_THROTTLE_RATE, nil means unthrottled
func (c *Config) ThrottleRate() (*throttle.Rate, error) {
	return throttle.ParseRate(c.CodeTokenThrottleRate)
}

// CodeToken returns the code token protocol settings
func (c *Config) CodeToken() service.CodeTokenConfig {
	return service.CodeTokenConfig{
		CodeLength:      c.CodeLength,
		CodeAlphabet:    c.CodeCharacters,
		Lifetime:        c.CodeExpirationTime,
		ExtensionSecret: c.CodeExtensionSecret,
		HashIterations:  c.CodeHashIterations,
	}
}
