package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig хранит всё, что не относится к подключению к БД.
type AppConfig struct {
	// Единственная таймзона, в которой считаются даты рейсов.
	Location           *time.Location
	DefaultDestination string

	UpstreamURL     string
	UpstreamAPIKey  string
	UpstreamTimeout time.Duration
	UpstreamRetries int

	// Расписания в синтаксисе robfig/cron, можно "@every 1m".
	PollSchedule  string
	SweepSchedule string

	RetentionMonths int

	HTTPAddr string
	GRPCAddr string
}

// LoadDotEnv подгружает .env, если он есть. Отсутствие файла не ошибка,
// а вот битый файл ошибка.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func LoadAppConfig() (*AppConfig, error) {
	tzName := getEnv("TRACKER_TIMEZONE", "America/New_York")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TRACKER_TIMEZONE %q: %w", tzName, err)
	}

	cfg := &AppConfig{
		Location:           loc,
		DefaultDestination: getEnv("DEFAULT_DESTINATION", "TLH"),
		UpstreamURL:        getEnv("UPSTREAM_URL", ""),
		UpstreamAPIKey:     getEnv("UPSTREAM_API_KEY", ""),
		UpstreamTimeout:    time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SEC", 10)) * time.Second,
		UpstreamRetries:    getEnvInt("UPSTREAM_RETRIES", 2),
		PollSchedule:       getEnv("POLL_SCHEDULE", "@every 1m"),
		SweepSchedule:      getEnv("SWEEP_SCHEDULE", "@every 12h"),
		RetentionMonths:    getEnvInt("RETENTION_MONTHS", 3),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:           getEnv("GRPC_ADDR", ":50051"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.Location == nil {
		return errors.New("invalid app config: location is required")
	}
	if c.DefaultDestination == "" {
		return errors.New("invalid app config: default destination must not be empty")
	}
	if c.RetentionMonths <= 0 {
		return fmt.Errorf("invalid app config: retention months must be positive, got %d", c.RetentionMonths)
	}
	if c.UpstreamTimeout <= 0 {
		return errors.New("invalid app config: upstream timeout must be positive")
	}
	if c.UpstreamRetries < 0 {
		c.UpstreamRetries = 0
	}
	return nil
}
