package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Schedule  ScheduleConfig
	SMTP      SMTPConfig
	WhatsApp  WhatsAppConfig
	AMQP      AMQPConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address string
}

// DatabaseConfig selects the store backend; exactly one of the two is used,
// Postgres winning when both are set.
type DatabaseConfig struct {
	PostgresURL string
	SQLitePath  string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type SchedulerConfig struct {
	Interval       time.Duration
	Spec           string
	Workers        int
	RatePerSecond  float64
	AutoStart      bool
	ExpediteWindow time.Duration
	OnceExpiry     time.Duration
}

type ScheduleConfig struct {
	BodyMax int
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration
}

type WhatsAppConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

type AMQPConfig struct {
	Enabled bool
	URL     string
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

// LoadAll reads the whole configuration from the environment and reports
// every problem at once.
func LoadAll() (*Config, error) {
	var errs []error
	collectInt := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	collectBool := func(key string, def bool) bool {
		v, err := getEnvBool(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	collectFloat := func(key string, def float64) float64 {
		v, err := getEnvFloat(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	dispatchTimeout := time.Duration(collectInt("DISPATCH_TIMEOUT_SECONDS", 20)) * time.Second

	emailUser := os.Getenv("EMAIL_USER")
	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: os.Getenv("POSTGRES_URL"),
			SQLitePath:  os.Getenv("SQLITE_PATH"),
		},
		Scheduler: SchedulerConfig{
			Interval:       time.Duration(collectInt("SCHED_INTERVAL_SECONDS", 60)) * time.Second,
			Spec:           strings.TrimSpace(os.Getenv("SCHED_SPEC")),
			Workers:        collectInt("SCHED_WORKERS", 1),
			RatePerSecond:  collectFloat("SCHED_RATE_PER_SECOND", 0),
			AutoStart:      collectBool("SCHED_AUTOSTART", true),
			ExpediteWindow: time.Duration(collectInt("SCHED_EXPEDITE_SECONDS", 300)) * time.Second,
			OnceExpiry:     time.Duration(collectInt("SCHED_ONCE_EXPIRY_SECONDS", 120)) * time.Second,
		},
		Schedule: ScheduleConfig{
			BodyMax: collectInt("BODY_MAX", 2000),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     collectInt("SMTP_PORT", 587),
			User:     emailUser,
			Password: os.Getenv("EMAIL_PASS"),
			From:     getEnv("EMAIL_FROM", emailUser),
			UseTLS:   collectBool("SMTP_USE_TLS", true),
			Timeout:  dispatchTimeout,
		},
		WhatsApp: WhatsAppConfig{
			URL:     os.Getenv("WHATSAPP_API_URL"),
			Token:   os.Getenv("WHATSAPP_API_TOKEN"),
			Timeout: dispatchTimeout,
		},
		AMQP: AMQPConfig{
			URL:     os.Getenv("AMQP_URL"),
			Enabled: os.Getenv("AMQP_URL") != "",
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Redis = redisCfg

	errs = append(errs, validate(cfg)...)
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	var errs []error
	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, err)
	}
	ttl, err := getEnvInt("REDIS_TTL_SECONDS", 86400)
	if err != nil {
		errs = append(errs, err)
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, joinErrors(errs)
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Database.PostgresURL == "" && cfg.Database.SQLitePath == "" {
		errs = append(errs, errors.New("missing required env var: POSTGRES_URL or SQLITE_PATH"))
	}
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHED_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Scheduler.Workers <= 0 {
		errs = append(errs, errors.New("SCHED_WORKERS must be > 0"))
	}
	if cfg.Scheduler.RatePerSecond < 0 {
		errs = append(errs, errors.New("SCHED_RATE_PER_SECOND must be >= 0"))
	}
	if cfg.Scheduler.ExpediteWindow < 0 {
		errs = append(errs, errors.New("SCHED_EXPEDITE_SECONDS must be >= 0"))
	}
	if cfg.Scheduler.OnceExpiry <= 0 {
		errs = append(errs, errors.New("SCHED_ONCE_EXPIRY_SECONDS must be > 0"))
	}
	if cfg.Schedule.BodyMax <= 0 {
		errs = append(errs, errors.New("BODY_MAX must be > 0"))
	}
	if cfg.SMTP.Timeout <= 0 {
		errs = append(errs, errors.New("DISPATCH_TIMEOUT_SECONDS must be > 0"))
	}
	return errs
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func getEnvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("invalid number for env %s: %s", key, v)
	}
	return f, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return def, fmt.Errorf("invalid bool for env %s: %s", key, v)
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
