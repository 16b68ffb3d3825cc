package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Backtest struct {
		Symbol          string  `yaml:"symbol" default:"SOL-AUD" validate:"required"`
		Start           string  `yaml:"start"` // YYYY-MM-DD, empty for full history
		End             string  `yaml:"end"`
		TransactionCost float64 `yaml:"transaction_cost" default:"0.003" validate:"gte=0,lt=1"`
		MinPeriod       int     `yaml:"min_period" default:"10" validate:"gte=1"`
		MaxPeriod       int     `yaml:"max_period" default:"100" validate:"gte=1"`
		PeriodStep      int     `yaml:"period_step" default:"1" validate:"gte=1"`
		Workers         int     `yaml:"workers" validate:"gte=0"`
		InitialCapital  float64 `yaml:"initial_capital" default:"10000" validate:"gt=0"`
		Benchmark       string  `yaml:"benchmark" default:"^GSPC"`
	} `yaml:"backtest"`
	Data struct {
		CacheDir string `yaml:"cache_dir" default:"data/cache"`
		Source   string `yaml:"source" default:"yahoo" validate:"oneof=yahoo csv mock"`
	} `yaml:"data"`
	Report struct {
		Dir string `yaml:"dir" default:"Reports" validate:"required"`
	} `yaml:"report"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		Cron string `yaml:"cron" default:"0 30 7 * * *"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/hilo.db"`
	} `yaml:"database"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	} `yaml:"log"`
	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy"`
}

// Load applies defaults, then the YAML file, then environment variable
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HILO_SYMBOL"); v != "" {
		c.Backtest.Symbol = v
	}
	if v := os.Getenv("HILO_TRANSACTION_COST"); v != "" {
		cost, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("HILO_TRANSACTION_COST: %w", err)
		}
		c.Backtest.TransactionCost = cost
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("REPORTS_DIR"); v != "" {
		c.Report.Dir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	start, end, err := c.Dates()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return fmt.Errorf("backtest.start %s must be before backtest.end %s", c.Backtest.Start, c.Backtest.End)
	}
	if c.Backtest.MinPeriod > c.Backtest.MaxPeriod {
		return fmt.Errorf("backtest.min_period %d exceeds backtest.max_period %d", c.Backtest.MinPeriod, c.Backtest.MaxPeriod)
	}
	return nil
}

// ValidateServe checks the settings the long-running mode needs on top of Validate.
func (c *Config) ValidateServe() error {
	if c.Telegram.BotToken == "" {
		return errors.New("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return errors.New("telegram.chat_id is required")
	}
	return nil
}

// Dates parses the configured backtest window. Empty values yield zero times.
func (c *Config) Dates() (start, end time.Time, err error) {
	if start, err = ParseDate(c.Backtest.Start); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.start: %w", err)
	}
	if end, err = ParseDate(c.Backtest.End); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.end: %w", err)
	}
	return start, end, nil
}

// ParseDate parses YYYY-MM-DD as UTC midnight. An empty string is the zero time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}
