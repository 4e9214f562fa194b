// Package config loads and validates pagewatch configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingRecipient is returned when no notification recipient is set.
var ErrMissingRecipient = errors.New("notify.recipient is not set; check TO_EMAIL in your .env file")

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Target  TargetConfig  `mapstructure:"target"`
	SMTP    SMTPConfig    `mapstructure:"smtp"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`

	// Source is the config file that was read, if any.
	Source string `mapstructure:"-"`
}

// TargetConfig names the watched page and the workbook changes go to.
type TargetConfig struct {
	URL    string `mapstructure:"url"`
	Output string `mapstructure:"output"`
}

// SMTPConfig holds mail transport credentials.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	StartTLS bool   `mapstructure:"starttls"`
}

// NotifyConfig controls who is notified and when.
type NotifyConfig struct {
	Recipient         string `mapstructure:"recipient"`
	AnnounceAvailable bool   `mapstructure:"announce_available"`
}

// MonitorConfig controls the poll cadence.
type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Backoff  time.Duration `mapstructure:"backoff"`
	Timezone string        `mapstructure:"timezone"`
}

// HTTPConfig configures the page fetcher.
type HTTPConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	RespectRobots bool          `mapstructure:"respect_robots"`
}

// ServerConfig controls the optional status server. An empty Addr disables it.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// legacyEnv maps config keys to the plain environment names used by older
// .env files. PAGEWATCH_* names take precedence.
var legacyEnv = map[string]string{
	"smtp.username":    "EMAIL_USER",
	"smtp.password":    "EMAIL_PASS",
	"smtp.host":        "SMTP_SERVER",
	"smtp.port":        "SMTP_PORT",
	"smtp.starttls":    "USE_TLS",
	"notify.recipient": "TO_EMAIL",
}

// LoadDotEnv loads variables from path into the process environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAGEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, legacy := range legacyEnv {
		envName := "PAGEWATCH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, legacy); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", legacy, err)
		}
	}

	if err := readConfigFile(v, path); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// readConfigFile reads path when given. Otherwise it looks for pagewatch.yaml
// in the working directory and $HOME/.pagewatch; finding none is not an error.
func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}
	v.SetConfigName("pagewatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.pagewatch")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.url", "")
	v.SetDefault("target.output", "")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.starttls", true)
	v.SetDefault("notify.recipient", "")
	v.SetDefault("notify.announce_available", true)
	v.SetDefault("monitor.interval", 30*time.Minute)
	v.SetDefault("monitor.backoff", 5*time.Minute)
	v.SetDefault("monitor.timezone", "Asia/Tokyo")
	v.SetDefault("http.timeout", 10*time.Second)
	v.SetDefault("http.user_agent", "pagewatch/1.0")
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("server.addr", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces reasonable limits shared by every command.
func (c Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be > 0")
	}
	if c.Monitor.Backoff <= 0 {
		return fmt.Errorf("monitor.backoff must be > 0")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.SMTP.Port < 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port must be between 0 and 65535")
	}
	if _, err := time.LoadLocation(c.Monitor.Timezone); err != nil {
		return fmt.Errorf("monitor.timezone: %w", err)
	}
	return nil
}

// ValidateWatch enforces the settings needed to send notifications.
func (c Config) ValidateWatch() error {
	if strings.TrimSpace(c.Notify.Recipient) == "" {
		return ErrMissingRecipient
	}
	if strings.TrimSpace(c.SMTP.Host) == "" {
		return fmt.Errorf("smtp.host must be set")
	}
	if strings.TrimSpace(c.SMTP.Username) == "" {
		return fmt.Errorf("smtp.username must be set")
	}
	return nil
}

// Location returns the configured display zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Monitor.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load time zone: %w", err)
	}
	return loc, nil
}
