// Package config は環境変数（と .env）からアプリケーション設定を読み込みます。
package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/generator"
	"github.com/shouni/gemini-image-studio/pkg/storage"
)

// ErrMissingAPIKey は API キーが設定されていないことを示します。
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY (or API_KEY) is required")

// Config はアプリケーション全体の設定です。
type Config struct {
	// Gemini API
	APIKey        string
	EditModel     string
	GenerateModel string

	// Server
	ListenAddr string

	// Storage
	Storage storage.Options

	// Limits
	MaxPromptLength   int
	HistoryLimit      int
	CompressThreshold int
	CompressQuality   int

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load は .env があれば読み込み、環境変数から設定を組み立てます。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn(".env の読み込みに失敗しました", "error", err)
	}

	cfg := &Config{
		APIKey:        getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
		EditModel:     getEnv("GEMINI_EDIT_MODEL", generator.DefaultEditModel),
		GenerateModel: getEnv("GEMINI_GENERATE_MODEL", generator.DefaultGenerateModel),

		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		Storage: storage.Options{
			Backend:       strings.ToLower(getEnv("STORAGE_BACKEND", storage.BackendFile)),
			Path:          getEnv("STORAGE_PATH", ""),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},

		MaxPromptLength:   getEnvInt("MAX_PROMPT_LENGTH", domain.DefaultMaxPromptLength),
		HistoryLimit:      getEnvInt("HISTORY_LIMIT", 0),
		CompressThreshold: getEnvInt("COMPRESS_THRESHOLD_BYTES", 0),
		CompressQuality:   getEnvInt("COMPRESS_QUALITY", generator.DefaultCompressionQuality),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile:   getEnv("LOG_FILE", ""),
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultStoragePath(cfg.Storage.Backend)
	}

	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return cfg, nil
}

// GeneratorOptions は generator.Options に変換します。
func (c *Config) GeneratorOptions() generator.Options {
	return generator.Options{
		EditModel:         c.EditModel,
		GenerateModel:     c.GenerateModel,
		MaxPromptLength:   c.MaxPromptLength,
		CompressThreshold: c.CompressThreshold,
		CompressQuality:   c.CompressQuality,
	}
}

// defaultStoragePath は file ならディレクトリ、sqlite ならデータベースファイルを返します。
func defaultStoragePath(backend string) string {
	if backend == storage.BackendSQLite {
		return "data/history.db"
	}
	return "data"
}

func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("数値として解釈できない環境変数を無視します", "key", key, "value", v)
		return defaultValue
	}
	return n
}
