// Package config handles persistent configuration for payq.
//
// Configuration is stored as JSON at ~/.config/payq/config.json (or the
// platform-equivalent path returned by os.UserConfigDir). PAYQ_*
// environment variables override file values at load time, which is how
// the serve daemon is usually configured.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	appDir   = "payq"
	fileName = "config.json"
)

// Defaults applied by Resolve.
const (
	DefaultPaymentMethod = "creditpay"
	DefaultSweepInterval = 5 * time.Minute
	DefaultBatchSize     = 50
	DefaultListenAddr    = "127.0.0.1:8080"
	DefaultSMTPPort      = "25"
)

// pathOverride, when non-empty, replaces the default config file path.
// Intended for testing. Use SetPath / ResetPath to manage.
var pathOverride string

// SetPath overrides the config file path. Intended for testing.
func SetPath(p string) { pathOverride = p }

// ResetPath clears the path override, reverting to the default. Intended for testing.
func ResetPath() { pathOverride = "" }

// Config holds settings that persist across invocations. Values are kept
// as strings so that the file round-trips exactly what the operator set;
// Resolve parses them.
type Config struct {
	APIURL        string `json:"api_url,omitempty" env:"PAYQ_API_URL"`
	PaymentMethod string `json:"payment_method,omitempty" env:"PAYQ_PAYMENT_METHOD"`
	NotifyTo      string `json:"notify_to,omitempty" env:"PAYQ_NOTIFY_TO"`
	NotifyFrom    string `json:"notify_from,omitempty" env:"PAYQ_NOTIFY_FROM"`
	SMTPAddr      string `json:"smtp_addr,omitempty" env:"PAYQ_SMTP_ADDR"`
	SMTPUser      string `json:"smtp_user,omitempty" env:"PAYQ_SMTP_USER"`
	SweepInterval string `json:"sweep_interval,omitempty" env:"PAYQ_SWEEP_INTERVAL"`
	BatchSize     string `json:"batch_size,omitempty" env:"PAYQ_BATCH_SIZE"`
	ListenAddr    string `json:"listen_addr,omitempty" env:"PAYQ_LISTEN_ADDR"`
	RetryJitter   string `json:"retry_jitter,omitempty" env:"PAYQ_RETRY_JITTER"`
	DBPath        string `json:"db_path,omitempty" env:"PAYQ_DB_PATH"`
}

// Settings is a resolved, typed view of Config.
type Settings struct {
	APIURL        string
	PaymentMethod string
	NotifyTo      []string
	NotifyFrom    string
	SMTPAddr      string
	SMTPUser      string
	SweepInterval time.Duration
	BatchSize     int
	ListenAddr    string
	RetryJitter   time.Duration
	DBPath        string
}

// Path returns the absolute path to the config file.
func Path() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: unable to determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, fileName), nil
}

// Load reads the config file and applies the environment overlay. A
// missing file yields a Config built from the environment alone.
func Load() (*Config, error) {
	cfg, err := loadFrom("")
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads only the config file, without the environment overlay.
// config set uses it so that env values are never written back.
func LoadFile() (*Config, error) {
	return loadFrom("")
}

func loadFrom(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	return &cfg, nil
}

// ApplyEnv overrides fields with any PAYQ_* variable that is set and
// non-empty.
func (c *Config) ApplyEnv() error {
	var overlay Config
	if err := env.Parse(&overlay); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}

	dst := reflect.ValueOf(c).Elem()
	src := reflect.ValueOf(overlay)
	for i := 0; i < src.NumField(); i++ {
		if v := src.Field(i).String(); v != "" {
			dst.Field(i).SetString(v)
		}
	}
	return nil
}

// Save writes the config to disk, creating the parent directory if needed.
func (c *Config) Save() error {
	return c.saveTo("")
}

func (c *Config) saveTo(path string) error {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}

	return nil
}

// LoadFrom reads the config from the given path. Intended for testing.
func LoadFrom(path string) (*Config, error) {
	return loadFrom(path)
}

// SaveTo writes the config to the given path. Intended for testing.
func (c *Config) SaveTo(path string) error {
	return c.saveTo(path)
}

// Resolve parses c and fills defaults.
func (c *Config) Resolve() (Settings, error) {
	s := Settings{
		APIURL:        strings.TrimSpace(c.APIURL),
		PaymentMethod: strings.TrimSpace(c.PaymentMethod),
		NotifyTo:      splitList(c.NotifyTo),
		NotifyFrom:    strings.TrimSpace(c.NotifyFrom),
		SMTPAddr:      strings.TrimSpace(c.SMTPAddr),
		SMTPUser:      strings.TrimSpace(c.SMTPUser),
		ListenAddr:    strings.TrimSpace(c.ListenAddr),
		DBPath:        strings.TrimSpace(c.DBPath),
		SweepInterval: DefaultSweepInterval,
		BatchSize:     DefaultBatchSize,
	}
	if s.PaymentMethod == "" {
		s.PaymentMethod = DefaultPaymentMethod
	}
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.SMTPAddr != "" && !strings.Contains(s.SMTPAddr, ":") {
		s.SMTPAddr += ":" + DefaultSMTPPort
	}

	var err error
	if c.SweepInterval != "" {
		if s.SweepInterval, err = parsePositiveDuration("sweep-interval", c.SweepInterval); err != nil {
			return Settings{}, err
		}
	}
	if c.RetryJitter != "" {
		if s.RetryJitter, err = parseDuration("retry-jitter", c.RetryJitter); err != nil {
			return Settings{}, err
		}
	}
	if c.BatchSize != "" {
		if s.BatchSize, err = parsePositiveInt("batch-size", c.BatchSize); err != nil {
			return Settings{}, err
		}
	}
	return s, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("config: %s: invalid duration %q", key, raw)
	}
	return d, nil
}

func parsePositiveDuration(key, raw string) (time.Duration, error) {
	d, err := parseDuration(key, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("config: %s must be greater than 0", key)
	}
	return d, nil
}

func parsePositiveInt(key, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: %s: must be a positive integer, got %q", key, raw)
	}
	return n, nil
}
