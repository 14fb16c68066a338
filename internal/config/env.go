package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Env is the explicit runtime configuration handed to every component at construction.
type Env struct {
	AppAddr     string `yaml:"appAddr" validate:"required"`
	GinMode     string `yaml:"ginMode" validate:"omitempty,oneof=debug release test"`
	LogEnv      string `yaml:"logEnv" validate:"required"`
	DatabaseDSN string `yaml:"databaseDSN" validate:"required"`

	JWTSecret    string `yaml:"jwtSecret" validate:"required"`
	SchedulerKey string `yaml:"schedulerKey"`
	Timezone     string `yaml:"timezone" validate:"required"`

	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins"`

	SchedulerCronEnabled  bool          `yaml:"schedulerCronEnabled"`
	ReminderFollowUpLimit int           `yaml:"reminderFollowUpLimit" validate:"min=1"`
	NotificationRetention int           `yaml:"notificationRetentionDays" validate:"min=1"`
	FollowUpWindow        time.Duration `yaml:"followUpWindow" validate:"min=1m"`
	SchedulerStaleAfter   time.Duration `yaml:"schedulerStaleAfter" validate:"min=1m"`
	OutboundTimeout       time.Duration `yaml:"outboundTimeout" validate:"min=1s"`
}

var validate = validator.New()

func defaultEnv() Env {
	return Env{
		AppAddr:     ":8080",
		LogEnv:      "dev",
		DatabaseDSN: "root:@tcp(127.0.0.1:3306)/transit_portal?parseTime=true&loc=Local&charset=utf8mb4&timeout=5s&readTimeout=30s&writeTimeout=30s",
		JWTSecret:   "super-secret-key-change-me",
		Timezone:    "Local",
		CORSAllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		ReminderFollowUpLimit: 100,
		NotificationRetention: 30,
		FollowUpWindow:        2 * time.Hour,
		SchedulerStaleAfter:   15 * time.Minute,
		OutboundTimeout:       10 * time.Second,
	}
}

// LoadEnv reads .env (if present), an optional YAML file named by APP_CONFIG_FILE and
// then the process environment, in increasing priority.
func LoadEnv() (Env, error) {
	_ = godotenv.Load()

	env := defaultEnv()
	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := loadYAML(path, &env); err != nil {
			return Env{}, err
		}
	}
	applyOverrides(&env, os.Getenv)

	if err := Validate(env); err != nil {
		return Env{}, err
	}
	return env, nil
}

func loadYAML(path string, env *Env) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, env); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyOverrides(env *Env, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("APP_ADDR", &env.AppAddr)
	str("GIN_MODE", &env.GinMode)
	str("LOG_ENV", &env.LogEnv)
	str("DATABASE_DSN", &env.DatabaseDSN)
	str("JWT_SECRET", &env.JWTSecret)
	str("SCHEDULER_KEY", &env.SchedulerKey)
	str("APP_TIMEZONE", &env.Timezone)

	if v := strings.TrimSpace(getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		origins := []string{}
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		env.CORSAllowedOrigins = origins
	}
	if v := strings.TrimSpace(getenv("SCHEDULER_CRON_ENABLED")); v != "" {
		env.SchedulerCronEnabled = parseBool(v)
	}
	if v, err := strconv.Atoi(strings.TrimSpace(getenv("REMINDER_FOLLOWUP_LIMIT"))); err == nil {
		env.ReminderFollowUpLimit = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(getenv("NOTIFICATION_RETENTION_DAYS"))); err == nil {
		env.NotificationRetention = v
	}
	if v, err := time.ParseDuration(strings.TrimSpace(getenv("FOLLOWUP_WINDOW"))); err == nil {
		env.FollowUpWindow = v
	}
	if v, err := time.ParseDuration(strings.TrimSpace(getenv("SCHEDULER_STALE_AFTER"))); err == nil {
		env.SchedulerStaleAfter = v
	}
	if v, err := time.ParseDuration(strings.TrimSpace(getenv("OUTBOUND_TIMEOUT"))); err == nil {
		env.OutboundTimeout = v
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Validate runs struct validation and checks the timezone name.
func Validate(env Env) error {
	if err := validate.Struct(env); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if _, err := env.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", env.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone used to decide "today".
func (e Env) Location() (*time.Location, error) {
	if e.Timezone == "" || e.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(e.Timezone)
}
