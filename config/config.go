package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"hubebony/models"
)

const (
	LeadSourceDB   = "db"
	LeadSourceHTTP = "http"
)

var (
	DB        *gorm.DB
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type LeadSourceConfig struct {
	Kind    string        `json:"kind"` // db or http
	URL     string        `json:"url"`
	Token   string        `json:"-"`
	Timeout time.Duration `json:"timeout"`
}

type DigestConfig struct {
	Enabled    bool          `json:"enabled"`
	Interval   time.Duration `json:"interval"`
	WindowDays int           `json:"window_days"`
}

type Config struct {
	Environment    string           `json:"environment"`
	LogLevel       string           `json:"log_level"`
	ServerPort     string           `json:"server_port"`
	AllowedOrigins []string         `json:"allowed_origins"`
	JWTSecret      string           `json:"-"`
	AuthDisabled   bool             `json:"auth_disabled"`
	SentryDSN      string           `json:"-"`
	DBHost         string           `json:"db_host"`
	DBPort         string           `json:"db_port"`
	DBUser         string           `json:"db_user"`
	DBPassword     string           `json:"-"`
	DBName         string           `json:"db_name"`
	DBSSLMode      string           `json:"db_ssl_mode"`
	DBMaxIdleConns int              `json:"db_max_idle_conns"`
	DBMaxOpenConns int              `json:"db_max_open_conns"`
	RateLimitMax   int              `json:"rate_limit_max"`
	EventsKey      string           `json:"events_key"`
	EventsMaxLen   int64            `json:"events_max_len"`
	Redis          RedisConfig      `json:"redis"`
	LeadSource     LeadSourceConfig `json:"lead_source"`
	Digest         DigestConfig     `json:"digest"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	envLoaded = godotenv.Load() == nil
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		AuthDisabled:   getEnvAsBool("AUTH_DISABLED", false),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "hubebony"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		RateLimitMax:   getEnvAsInt("RATE_LIMIT_ANALYTICS", 60),
		EventsKey:      getEnv("EVENTS_KEY", "hubebony:events"),
		EventsMaxLen:   int64(getEnvAsInt("EVENTS_MAX_LEN", 10000)),
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		LeadSource: LeadSourceConfig{
			Kind:    getEnv("LEAD_SOURCE", LeadSourceDB),
			URL:     getEnv("LEAD_SOURCE_URL", ""),
			Token:   getEnv("LEAD_SOURCE_TOKEN", ""),
			Timeout: getEnvAsDuration("LEAD_SOURCE_TIMEOUT", 15*time.Second),
		},
		Digest: DigestConfig{
			Enabled:    getEnvAsBool("DIGEST_ENABLED", true),
			Interval:   getEnvAsDuration("DIGEST_INTERVAL", time.Hour),
			WindowDays: getEnvAsInt("DIGEST_WINDOW_DAYS", 30),
		},
	}

	if err := AppConfig.Validate(); err != nil {
		return err
	}

	logConfig()
	return nil
}

// Validate checks the settings that have no usable default.
func (c Config) Validate() error {
	switch c.LeadSource.Kind {
	case LeadSourceDB:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required when LEAD_SOURCE=db")
		}
	case LeadSourceHTTP:
		if c.LeadSource.URL == "" {
			return fmt.Errorf("LEAD_SOURCE_URL is required when LEAD_SOURCE=http")
		}
	default:
		return fmt.Errorf("unknown LEAD_SOURCE %q (want db or http)", c.LeadSource.Kind)
	}
	if !c.AuthDisabled && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	if c.Environment == "production" && c.AuthDisabled {
		return fmt.Errorf("AUTH_DISABLED is not allowed in production")
	}
	return nil
}

func ConnectDB() error {
	logrus.Info("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	logrus.WithField("dsn", maskPassword(dsn)).Debug("Using connection string")

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logrus.Info("✅ Successfully connected to the database")
	if err := DB.AutoMigrate(&models.LeadSubmission{}); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	logrus.Info("✅ Database migration completed")
	return nil
}

// SetupLogging configures the global logrus logger.
func SetupLogging() {
	if AppConfig.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(AppConfig.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		logrus.Warnf("⚠️ Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	logrus.WithFields(logrus.Fields{
		"environment":   AppConfig.Environment,
		"server_port":   AppConfig.ServerPort,
		"database":      fmt.Sprintf("%s@%s:%s/%s", AppConfig.DBUser, AppConfig.DBHost, AppConfig.DBPort, AppConfig.DBName),
		"lead_source":   AppConfig.LeadSource.Kind,
		"redis":         AppConfig.Redis.Enabled,
		"auth_disabled": AppConfig.AuthDisabled,
		"sentry":        AppConfig.SentryDSN != "",
	}).Info("🔧 Loaded configuration")
}
