// Package config содержит логику чтения конфигурации сервиса airtime-desk.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса airtime-desk.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	BotToken    string `env:"BOT_TOKEN"`
	OperatorID  int64  `env:"OPERATOR_ID"`
	RedisAddr   string `env:"REDIS_ADDR"`
	AdminToken  string `env:"ADMIN_TOKEN"`
	BankCard    string `env:"BANK_CARD"`
	Timezone    string `env:"TIMEZONE" envDefault:"Asia/Kabul"`

	ConversionRate    int64 `env:"CONVERSION_RATE" envDefault:"1300"`
	DailyLimit        int64 `env:"DAILY_LIMIT" envDefault:"5"`
	DiscountThreshold int64 `env:"DISCOUNT_THRESHOLD" envDefault:"10"`
	DiscountPercent   int64 `env:"DISCOUNT_PERCENT" envDefault:"10"`
	ProofMinBytes     int64 `env:"PROOF_MIN_BYTES" envDefault:"10240"`
	ProofMaxBytes     int64 `env:"PROOF_MAX_BYTES" envDefault:"5242880"`
	HistoryLimit      int   `env:"HISTORY_LIMIT" envDefault:"10"`

	ExpireAfter        time.Duration `env:"EXPIRE_AFTER" envDefault:"15m"`
	ExpirySweepEvery   time.Duration `env:"EXPIRY_SWEEP_EVERY" envDefault:"1m"`
	RemindAfter        time.Duration `env:"REMIND_AFTER" envDefault:"12h"`
	ReminderSweepEvery time.Duration `env:"REMINDER_SWEEP_EVERY" envDefault:"1h"`
	DigestEvery        time.Duration `env:"DIGEST_EVERY" envDefault:"1h"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envBotToken := cfg.BotToken

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.BotToken, "t", "", "telegram bot token")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envBotToken != "" {
		cfg.BotToken = envBotToken
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURI == "" {
		return errors.New("database URI is required")
	}
	if c.BotToken == "" {
		return errors.New("bot token is required")
	}
	if c.OperatorID == 0 {
		return errors.New("operator id is required")
	}
	return nil
}
