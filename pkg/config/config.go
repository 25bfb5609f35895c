package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Email    EmailConfig
	Storage  StorageConfig
	Chat     ChatConfig
	Reset    ResetConfig
	Fees     FeeSchedule
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
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EmailConfig configures the SMTP relay used for reset-code delivery.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// StorageConfig controls the user-uploads object store.
type StorageConfig struct {
	BaseDir        string
	BaseURL        string
	Bucket         string
	MaxUploadBytes int64
	AllowedMIMEs   []string
}

// ChatConfig configures the portal assistant backend.
type ChatConfig struct {
	APIKey          string
	BaseURL         string
	Models          []string
	Timeout         time.Duration
	MaxOutputTokens int
}

// ResetConfig governs the password-reset code lifecycle.
type ResetConfig struct {
	CodeTTL    time.Duration
	SessionTTL time.Duration
}

// FeeSchedule holds the fixed certificate fees. Amounts are currency-neutral
// and come from deployment config, never computed.
type FeeSchedule struct {
	BarangayClearance float64
	Residency         float64
	Indigency         float64
	GoodMoral         float64
	BusinessClearance float64
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Email = EmailConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM"),
		Timeout:  parseDuration(v.GetString("SMTP_TIMEOUT"), 10*time.Second),
	}

	maxUpload := v.GetInt64("STORAGE_MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		BaseDir:        v.GetString("STORAGE_BASE_DIR"),
		BaseURL:        v.GetString("STORAGE_BASE_URL"),
		Bucket:         v.GetString("STORAGE_BUCKET"),
		MaxUploadBytes: maxUpload,
		AllowedMIMEs:   splitAndTrim(v.GetString("STORAGE_ALLOWED_MIME_TYPES")),
	}

	cfg.Chat = ChatConfig{
		APIKey:          v.GetString("CHAT_API_KEY"),
		BaseURL:         v.GetString("CHAT_BASE_URL"),
		Models:          splitAndTrim(v.GetString("CHAT_MODELS")),
		Timeout:         parseDuration(v.GetString("CHAT_TIMEOUT"), 30*time.Second),
		MaxOutputTokens: v.GetInt("CHAT_MAX_OUTPUT_TOKENS"),
	}

	cfg.Reset = ResetConfig{
		CodeTTL:    parseDuration(v.GetString("RESET_CODE_TTL"), 5*time.Minute),
		SessionTTL: parseDuration(v.GetString("RESET_SESSION_TTL"), 5*time.Minute),
	}

	cfg.Fees = FeeSchedule{
		BarangayClearance: v.GetFloat64("FEE_BARANGAY_CLEARANCE"),
		Residency:         v.GetFloat64("FEE_RESIDENCY"),
		Indigency:         v.GetFloat64("FEE_INDIGENCY"),
		GoodMoral:         v.GetFloat64("FEE_GOOD_MORAL"),
		BusinessClearance: v.GetFloat64("FEE_BUSINESS_CLEARANCE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "labang_online")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "labang-online")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "noreply@labangonline.ph")
	v.SetDefault("SMTP_TIMEOUT", "10s")

	v.SetDefault("STORAGE_BASE_DIR", "./uploads")
	v.SetDefault("STORAGE_BASE_URL", "http://localhost:8080/uploads")
	v.SetDefault("STORAGE_BUCKET", "user-uploads")
	v.SetDefault("STORAGE_MAX_UPLOAD_BYTES", 5*1024*1024)
	v.SetDefault("STORAGE_ALLOWED_MIME_TYPES", "image/jpeg,image/jpg,image/png")

	v.SetDefault("CHAT_API_KEY", "")
	v.SetDefault("CHAT_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("CHAT_MODELS", "gemini-2.5-flash,gemini-2.0-flash,gemini-flash-latest,gemini-2.5-pro,gemini-pro-latest")
	v.SetDefault("CHAT_TIMEOUT", "30s")
	v.SetDefault("CHAT_MAX_OUTPUT_TOKENS", 2048)

	v.SetDefault("RESET_CODE_TTL", "5m")
	v.SetDefault("RESET_SESSION_TTL", "5m")

	v.SetDefault("FEE_BARANGAY_CLEARANCE", 50.00)
	v.SetDefault("FEE_RESIDENCY", 30.00)
	v.SetDefault("FEE_INDIGENCY", 30.00)
	v.SetDefault("FEE_GOOD_MORAL", 40.00)
	v.SetDefault("FEE_BUSINESS_CLEARANCE", 100.00)
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
