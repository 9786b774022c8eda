package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Dataset storage drivers.
const (
	DatasetDriverPostgres = "postgres"
	DatasetDriverRedis    = "redis"
	DatasetDriverFile     = "file"
)

type Config struct {
	Env        string
	Port       int
	APIPrefix  string
	EnableDocs bool

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Datasets  DatasetConfig
	Scheduler SchedulerConfig
	Expiry    ExpiryConfig
	Activity  ActivityConfig
	Auth      AuthConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DatasetConfig selects where the named documents (users, published timetable, requests,
// activity log) are persisted.
type DatasetConfig struct {
	Driver      string
	Dir         string
	RedisPrefix string
}

// SchedulerConfig holds generation defaults and the optional result cache.
type SchedulerConfig struct {
	CacheEnabled             bool
	CacheTTL                 time.Duration
	MaxLecturesPerDayTeacher int
	MaxLecturesPerSubjectDay int
	MaxLecturesPerDaySection int
	LabSessionDuration       int
	LabCapacity              int
}

// ExpiryConfig drives the modification expiry sweeper.
type ExpiryConfig struct {
	Enabled     bool
	Spec        string
	Retries     int
	Concurrency int
}

// ActivityConfig bounds the activity log.
type ActivityConfig struct {
	Retention time.Duration
}

// AuthConfig seeds the first administrator when the user dataset is empty and sets the initial
// passwords of accounts created from a published timetable.
type AuthConfig struct {
	DefaultAdminUsername   string
	DefaultAdminPassword   string
	DefaultTeacherPassword string
	DefaultStudentPassword string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.EnableDocs = v.GetBool("ENABLE_DOCS")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Datasets = DatasetConfig{
		Driver:      strings.ToLower(v.GetString("DATASET_DRIVER")),
		Dir:         v.GetString("DATASET_DIR"),
		RedisPrefix: v.GetString("DATASET_REDIS_PREFIX"),
	}

	cfg.Scheduler = SchedulerConfig{
		CacheEnabled:             v.GetBool("ENABLE_GENERATION_CACHE"),
		CacheTTL:                 parseDuration(v.GetString("GENERATION_CACHE_TTL"), 10*time.Minute),
		MaxLecturesPerDayTeacher: v.GetInt("SCHEDULER_DEFAULT_MAX_TEACHER_PER_DAY"),
		MaxLecturesPerSubjectDay: v.GetInt("SCHEDULER_DEFAULT_MAX_SUBJECT_PER_DAY"),
		MaxLecturesPerDaySection: v.GetInt("SCHEDULER_DEFAULT_MAX_SECTION_PER_DAY"),
		LabSessionDuration:       v.GetInt("SCHEDULER_DEFAULT_LAB_DURATION"),
		LabCapacity:              v.GetInt("SCHEDULER_DEFAULT_LAB_CAPACITY"),
	}

	cfg.Expiry = ExpiryConfig{
		Enabled:     v.GetBool("ENABLE_EXPIRY_SWEEPER"),
		Spec:        v.GetString("EXPIRY_SWEEP_SPEC"),
		Retries:     v.GetInt("EXPIRY_SWEEP_RETRIES"),
		Concurrency: v.GetInt("EXPIRY_SWEEP_CONCURRENCY"),
	}

	cfg.Activity = ActivityConfig{
		Retention: parseDuration(v.GetString("ACTIVITY_RETENTION"), 48*time.Hour),
	}

	cfg.Auth = AuthConfig{
		DefaultAdminUsername:   v.GetString("DEFAULT_ADMIN_USERNAME"),
		DefaultAdminPassword:   v.GetString("DEFAULT_ADMIN_PASSWORD"),
		DefaultTeacherPassword: v.GetString("DEFAULT_TEACHER_PASSWORD"),
		DefaultStudentPassword: v.GetString("DEFAULT_STUDENT_PASSWORD"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("ENABLE_DOCS", true)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "serene_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "serene-scheduler")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DATASET_DRIVER", DatasetDriverFile)
	v.SetDefault("DATASET_DIR", "./data")
	v.SetDefault("DATASET_REDIS_PREFIX", "serene:dataset")

	v.SetDefault("ENABLE_GENERATION_CACHE", false)
	v.SetDefault("GENERATION_CACHE_TTL", "10m")
	v.SetDefault("SCHEDULER_DEFAULT_MAX_TEACHER_PER_DAY", 5)
	v.SetDefault("SCHEDULER_DEFAULT_MAX_SUBJECT_PER_DAY", 2)
	v.SetDefault("SCHEDULER_DEFAULT_MAX_SECTION_PER_DAY", 6)
	v.SetDefault("SCHEDULER_DEFAULT_LAB_DURATION", 2)
	v.SetDefault("SCHEDULER_DEFAULT_LAB_CAPACITY", 30)

	v.SetDefault("ENABLE_EXPIRY_SWEEPER", true)
	v.SetDefault("EXPIRY_SWEEP_SPEC", "@every 5m")
	v.SetDefault("EXPIRY_SWEEP_RETRIES", 3)
	v.SetDefault("EXPIRY_SWEEP_CONCURRENCY", 1)

	v.SetDefault("ACTIVITY_RETENTION", "48h")

	v.SetDefault("DEFAULT_ADMIN_USERNAME", "admin")
	v.SetDefault("DEFAULT_ADMIN_PASSWORD", "admin123")
	v.SetDefault("DEFAULT_TEACHER_PASSWORD", "teacher123")
	v.SetDefault("DEFAULT_STUDENT_PASSWORD", "student123")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
