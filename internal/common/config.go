package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Storage    StorageConfig
	Conversion ConversionConfig
	Fallback   FallbackConfig
	LLM        LLMConfig
	Redis      RedisConfig
	Queue      QueueConfig
	Auth       AuthConfig
	LogLevel   string
	// PresetsFile overrides the embedded per-type default fields when set.
	PresetsFile string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string
	GRPCHealthAddr  string
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "sqlite" | "postgres"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// StorageConfig holds upload storage configuration
type StorageConfig struct {
	BucketName    string
	Root          string
	PublicBaseURL string
	TempDir       string
}

// ConversionConfig holds primary conversion engine configuration
type ConversionConfig struct {
	Engine        string // "remote" | "local"
	APIURL        string
	APIKey        string
	Timeout       time.Duration
	TessdataDir   string
	TesseractLang string
}

// FallbackConfig holds fallback OCR configuration
type FallbackConfig struct {
	APIURL  string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	FileSearch  bool
}

// RedisConfig holds the artifact cache connection; empty Addr keeps artifacts in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// QueueConfig holds worker pool configuration
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// AuthConfig holds bearer token configuration
type AuthConfig struct {
	Disabled bool
	Tokens   map[string]string // token -> user id
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8000"),
			GRPCHealthAddr:  getEnv("GRPC_HEALTH_ADDR", ":8081"),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:8080"}),
			RequestTimeout:  getEnvAsDuration("HTTP_REQUEST_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxUploadBytes:  int64(getEnvAsInt("MAX_UPLOAD_MB", 32)) << 20,
		},
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "sqlite"),
			DSN:              getEnv("DB_URL", "file:docextract.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Storage: StorageConfig{
			BucketName:    getEnv("DOCUMENT_BUCKET_NAME", "documents"),
			Root:          getEnv("STORAGE_ROOT", "./data/storage"),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", "http://localhost:8000/files"),
			TempDir:       getEnv("STORAGE_TEMP_DIR", ""),
		},
		Conversion: ConversionConfig{
			Engine:        getEnv("CONVERSION_ENGINE", "remote"),
			APIURL:        getEnv("CONVERSION_API_URL", "https://api.va.landing.ai/v1/tools/agentic-document-analysis"),
			APIKey:        getEnv("VISION_AGENT_API_KEY", ""),
			Timeout:       getEnvAsDuration("CONVERSION_TIMEOUT", 5*time.Minute),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
		},
		Fallback: FallbackConfig{
			APIURL:  getEnv("MISTRAL_OCR_URL", "https://api.mistral.ai/v1/ocr"),
			APIKey:  getEnv("VITE_MISTRAL_API_KEY", getEnv("MISTRAL_API_KEY", "")),
			Model:   getEnv("MISTRAL_OCR_MODEL", "mistral-ocr-latest"),
			Timeout: getEnvAsDuration("MISTRAL_OCR_TIMEOUT", 2*time.Minute),
		},
		LLM: LLMConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4o"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.2),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 90*time.Second),
			FileSearch:  getEnvAsBool("OPENAI_FILE_SEARCH", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "docextract:"),
			TTL:      getEnvAsDuration("ARTIFACT_TTL", 7*24*time.Hour),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 0),
		},
		Auth: AuthConfig{
			Disabled: getEnvAsBool("AUTH_DISABLED", false),
			Tokens:   parseTokens(getEnv("AUTH_TOKENS", "")),
		},
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		PresetsFile: getEnv("PRESETS_FILE", ""),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// parseTokens reads "token:user,token2:user2".
func parseTokens(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, user, ok := strings.Cut(pair, ":")
		if !ok || token == "" || user == "" {
			continue
		}
		out[token] = user
	}
	return out
}

// Validate checks structural settings only. Upstream credentials are checked
// by each adapter at call time.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	switch c.Conversion.Engine {
	case "remote", "local":
	default:
		return NewAppError("CONFIG_ERROR", "CONVERSION_ENGINE must be remote or local", ErrInvalidInput)
	}
	if c.Queue.Workers <= 0 || c.Queue.Size <= 0 {
		return NewAppError("CONFIG_ERROR", "QUEUE_WORKERS and QUEUE_SIZE must be positive", ErrInvalidInput)
	}
	if !c.Auth.Disabled && len(c.Auth.Tokens) == 0 {
		return NewAppError("CONFIG_ERROR", "AUTH_TOKENS is required unless AUTH_DISABLED=true", ErrInvalidInput)
	}
	return nil
}
