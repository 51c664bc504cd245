// Package config loads the YAML configuration and applies environment
// overrides and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"SahamScope/internal/model"
	"SahamScope/internal/universe"
)

// Providers accepted by the provider key.
var Providers = []string{"yahoo", "polygon", "alpaca", "mock"}

// ScheduledScan is one cron-driven scan.
type ScheduledScan struct {
	Name     string `yaml:"name"`
	Cron     string `yaml:"cron"`
	Universe string `yaml:"universe"`
	Range    string `yaml:"range"`
	Interval string `yaml:"interval"`
	Sort     string `yaml:"sort"`
	Limit    int    `yaml:"limit"`
	Notify   bool   `yaml:"notify"`
}

// Window returns the scan window.
func (s ScheduledScan) Window() model.Window {
	return model.Window{Range: s.Range, Interval: s.Interval}
}

// Schedule lists the cron-driven scans and the timezone their specs use.
type Schedule struct {
	Timezone string          `yaml:"timezone"`
	Scans    []ScheduledScan `yaml:"scans"`
}

// Location returns the schedule timezone, or time.Local when it cannot be
// loaded.
func (s Schedule) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Config holds all application configuration.
type Config struct {
	Provider string `yaml:"provider"`
	Proxy    string `yaml:"proxy"`

	HTTP struct {
		Addr         string        `yaml:"addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"http"`

	Fetch struct {
		Timeout      time.Duration `yaml:"timeout"`
		ChunkSize    int           `yaml:"chunk_size"`
		Workers      int           `yaml:"workers"`
		Retries      int           `yaml:"retries"`
		Backoff      time.Duration `yaml:"backoff"`
		CacheTTL     time.Duration `yaml:"cache_ttl"`
		Fundamentals bool          `yaml:"fundamentals"`
	} `yaml:"fetch"`

	Yahoo struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"yahoo"`
	Polygon struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"polygon"`
	Alpaca struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		DataURL   string `yaml:"data_url"`
	} `yaml:"alpaca"`

	Defaults struct {
		Universe string `yaml:"universe"`
		Range    string `yaml:"range"`
		Interval string `yaml:"interval"`
		Sort     string `yaml:"sort"`
		Limit    int    `yaml:"limit"`
	} `yaml:"defaults"`

	Universes []universe.Universe `yaml:"universes"`

	Watchlist struct {
		File   string `yaml:"file"`
		Market string `yaml:"market"`
	} `yaml:"watchlist"`

	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	Telegram struct {
		BotToken    string `yaml:"bot_token"`
		ChatID      string `yaml:"chat_id"`
		ReportLimit int    `yaml:"report_limit"`
	} `yaml:"telegram"`

	Schedule Schedule `yaml:"schedule"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultWindow returns the window used when a request names none.
func (c *Config) DefaultWindow() model.Window {
	return model.Window{Range: c.Defaults.Range, Interval: c.Defaults.Interval}
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file yields a default configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"PROVIDER", &c.Provider},
		{"HTTPS_PROXY", &c.Proxy},
		{"HTTP_ADDR", &c.HTTP.Addr},
		{"POLYGON_API_KEY", &c.Polygon.APIKey},
		{"APCA_API_KEY_ID", &c.Alpaca.APIKey},
		{"APCA_API_SECRET_KEY", &c.Alpaca.APISecret},
		{"TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", &c.Telegram.ChatID},
		{"SQLITE_PATH", &c.Database.SQLitePath},
		{"WATCHLIST_FILE", &c.Watchlist.File},
		{"LOG_LEVEL", &c.Logging.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "yahoo"
	}
	c.Provider = strings.ToLower(c.Provider)
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 30 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 2 * time.Minute
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 20 * time.Second
	}
	if c.Fetch.ChunkSize == 0 {
		c.Fetch.ChunkSize = 50
	}
	if c.Fetch.Workers == 0 {
		c.Fetch.Workers = 8
	}
	if c.Fetch.Backoff == 0 {
		c.Fetch.Backoff = 500 * time.Millisecond
	}
	if c.Fetch.CacheTTL == 0 {
		c.Fetch.CacheTTL = 5 * time.Minute
	}
	if c.Defaults.Universe == "" {
		c.Defaults.Universe = "LQ45"
	}
	if c.Defaults.Range == "" {
		c.Defaults.Range = "1y"
	}
	if c.Defaults.Interval == "" {
		c.Defaults.Interval = "1d"
	}
	if c.Defaults.Sort == "" {
		c.Defaults.Sort = "score"
	}
	if c.Watchlist.File == "" {
		c.Watchlist.File = "data/watchlists.json"
	}
	if c.Watchlist.Market == "" {
		c.Watchlist.Market = universe.MarketIDX
	}
	c.Watchlist.Market = strings.ToUpper(c.Watchlist.Market)
	if c.Telegram.ReportLimit == 0 {
		c.Telegram.ReportLimit = 10
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Asia/Jakarta"
	}
	for i := range c.Schedule.Scans {
		s := &c.Schedule.Scans[i]
		if s.Range == "" {
			s.Range = c.Defaults.Range
		}
		if s.Interval == "" {
			s.Interval = c.Defaults.Interval
		}
		if s.Name == "" {
			s.Name = s.Universe
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate checks that the configuration is usable. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	known := false
	for _, p := range Providers {
		if c.Provider == p {
			known = true
		}
	}
	if !known {
		errs = append(errs, fmt.Errorf("provider %q is not one of %s", c.Provider, strings.Join(Providers, ", ")))
	}
	if c.Provider == "polygon" && c.Polygon.APIKey == "" {
		errs = append(errs, errors.New("polygon.api_key is required for the polygon provider"))
	}
	if c.Provider == "alpaca" && (c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "") {
		errs = append(errs, errors.New("alpaca.api_key and alpaca.api_secret are required for the alpaca provider"))
	}

	if c.Fetch.ChunkSize < 0 || c.Fetch.Workers < 0 || c.Fetch.Retries < 0 {
		errs = append(errs, errors.New("fetch.chunk_size, fetch.workers and fetch.retries must not be negative"))
	}
	if err := c.DefaultWindow().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("defaults: %w", err))
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		errs = append(errs, errors.New("telegram.bot_token and telegram.chat_id must be set together"))
	}

	for i, u := range c.Universes {
		if strings.TrimSpace(u.Name) == "" {
			errs = append(errs, fmt.Errorf("universes[%d]: name is required", i))
		}
		if m := strings.ToUpper(u.Market); m != "" && m != universe.MarketIDX && m != universe.MarketUS {
			errs = append(errs, fmt.Errorf("universes[%d]: unknown market %q", i, u.Market))
		}
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
	}
	for i, s := range c.Schedule.Scans {
		if s.Cron == "" || s.Universe == "" {
			errs = append(errs, fmt.Errorf("schedule.scans[%d]: cron and universe are required", i))
		}
		if err := s.Window().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("schedule.scans[%d]: %w", i, err))
		}
	}

	if _, err := zapcore.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be console or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}
