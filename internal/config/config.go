package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/romanzh1/rpsc-study-coach/internal/repository"
	"github.com/romanzh1/rpsc-study-coach/pkg/utils"
	"go.uber.org/zap"
)

var ErrMissingToken = errors.New("TELEGRAM_BOT_TOKEN is not set")

type Config struct {
	TelegramToken string
	AdminChatID   int64

	DB repository.Options

	Location *time.Location
	ExamDate time.Time
	HTTPAddr string

	SeedFile string
	PlanFile string

	StreakGoalHours float64
	QuestionTimeout time.Duration
	SessionIdleTTL  time.Duration
	// SkipWindow limits how long after a block becomes current it may be skipped. Zero disables the check.
	SkipWindow time.Duration
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.S().Debug("load .env file", zap.Error(err))
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{get: getenv}

	cfg := &Config{
		TelegramToken:   e.get("TELEGRAM_BOT_TOKEN"),
		HTTPAddr:        e.str("HTTP_ADDR", ":10000"),
		SeedFile:        e.get("SEED_FILE"),
		PlanFile:        e.get("PLAN_FILE"),
		Location:        utils.LoadLocation(e.str("TIMEZONE", "Asia/Kolkata")),
		StreakGoalHours: e.float("STREAK_GOAL_HOURS", 8.0),
		QuestionTimeout: e.duration("QUESTION_TIMEOUT", 90*time.Second),
		SessionIdleTTL:  e.duration("SESSION_IDLE_TTL", 2*time.Hour),
		SkipWindow:      time.Duration(e.int("SKIP_WINDOW_MINUTES", 0)) * time.Minute,
	}
	if cfg.TelegramToken == "" {
		return nil, ErrMissingToken
	}

	if admin := e.get("ADMIN_CHAT_ID"); admin != "" {
		id, err := strconv.ParseInt(admin, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse ADMIN_CHAT_ID (value: %s): %w", admin, err)
		}
		cfg.AdminChatID = id
	}

	exam, err := time.ParseInLocation(utils.DateLayout, e.str("EXAM_DATE", "2025-12-01"), cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("parse EXAM_DATE: %w", err)
	}
	cfg.ExamDate = exam

	cfg.DB = repository.Options{
		Driver:  e.str("DB_DRIVER", repository.DriverPostgres),
		MaxIdle: e.int("DB_MAX_IDLE", 10),
		MaxOpen: e.int("DB_MAX_OPEN", 20),
	}
	switch cfg.DB.Driver {
	case repository.DriverPostgres:
		host := e.get("POSTGRES_HOST")
		if host == "" {
			return nil, errors.New("POSTGRES_HOST is not set")
		}
		cfg.DB.DSN = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, e.str("POSTGRES_PORT", "5432"), e.get("POSTGRES_USER"), e.get("POSTGRES_PASSWORD"), e.get("POSTGRES_DB"))
	case repository.DriverSQLite:
		cfg.DB.DSN = e.str("SQLITE_PATH", "coach.db")
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER (value: %s)", cfg.DB.Driver)
	}

	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}

	return cfg, nil
}

type env struct {
	get  func(string) string
	errs []error
}

func (e *env) str(key, def string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := e.get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("parse %s (value: %s): %w", key, v, err))
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := e.get(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("parse %s (value: %s): %w", key, v, err))
		return def
	}
	return f
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.get(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("parse %s (value: %s): %w", key, v, err))
		return def
	}
	return d
}
