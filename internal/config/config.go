package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// OpenAI-compatible API access.
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Model selection.
	EmbeddingModel    string
	ChatModel         string
	ChatModelsAllowed []string

	// Chunking.
	MaxChunkTokens int

	// Extraction guards.
	MaxPDFMB    int
	MaxPDFPages int

	// OCR behavior for scanned or image sources.
	OCREnabled         bool
	OCRDPI             int
	OCRLanguage        string
	OCRTesseractConfig string
	// OCRTextThreshold is the character count below which a page is treated
	// as textless and sent through OCR. A heuristic, tunable, not load-bearing
	// for correctness.
	OCRTextThreshold int

	// Directories and storage.
	VectorStoreDir string
	UploadsDir     string
	DBPath         string

	// Server.
	APIPort          string
	CORSOrigins      []string
	HealthcheckToken string

	// Ingestion worker pool size.
	IngestWorkers int

	// Logging.
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config.
// If a .env file exists in the current directory or an ancestor, it is loaded
// first; variables already set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	// Walk up a few levels looking for a .env next to the project root.
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		ChatModel:        getEnv("CHAT_MODEL", "gpt-4o-mini"),
		OCRLanguage:      getEnv("OCR_LANGUAGE", "eng"),
		VectorStoreDir:   getEnv("VECTOR_STORE_DIR", "vector_store"),
		UploadsDir:       getEnv("UPLOADS_DIR", "uploads"),
		DBPath:           getEnv("DB_PATH", "./data/studylm.db"),
		APIPort:          getEnv("API_PORT", "8000"),
		HealthcheckToken: os.Getenv("HEALTHCHECK_TOKEN"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}

	cfg.OCRTesseractConfig = getEnv("OCR_TESSERACT_CONFIG", "--psm 3")
	cfg.OCREnabled = getBoolEnv("OCR_ENABLED", true)

	var err error
	if cfg.MaxChunkTokens, err = getIntEnv("MAX_CHUNK_TOKENS", 2000); err != nil {
		return nil, err
	}
	if cfg.MaxPDFMB, err = getIntEnv("MAX_PDF_MB", 100); err != nil {
		return nil, err
	}
	if cfg.MaxPDFPages, err = getIntEnv("MAX_PDF_PAGES", 2000); err != nil {
		return nil, err
	}
	if cfg.OCRDPI, err = getIntEnv("OCR_DPI", 300); err != nil {
		return nil, err
	}
	if cfg.OCRTextThreshold, err = getIntEnv("OCR_TEXT_THRESHOLD", 30); err != nil {
		return nil, err
	}
	if cfg.IngestWorkers, err = getIntEnv("INGEST_WORKERS", 2); err != nil {
		return nil, err
	}

	if cfg.MaxChunkTokens <= 0 {
		return nil, fmt.Errorf("MAX_CHUNK_TOKENS must be greater than 0")
	}
	if cfg.IngestWorkers <= 0 {
		return nil, fmt.Errorf("INGEST_WORKERS must be greater than 0")
	}
	// Rendering below 72 DPI produces unusable rasters for OCR.
	if cfg.OCRDPI < 72 {
		cfg.OCRDPI = 72
	}

	cfg.ChatModelsAllowed = splitCSV(getEnv("CHAT_MODELS_ALLOWED", "gpt-4o-mini,gpt-4o,gpt-4.1-mini,gpt-4.1"))
	cfg.CORSOrigins = splitCSV(getEnv("CORS_ALLOW_ORIGINS", "*"))
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	cfg.LogLevel = parseLogLevel(getEnv("LOG_LEVEL", "info"))

	// Create working directories up front so background workers never race on it.
	for _, dir := range []string{cfg.VectorStoreDir, cfg.UploadsDir, filepath.Dir(cfg.DBPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return cfg, nil
}

// ModelAllowed reports whether the given chat model may be requested by clients.
func (c *Config) ModelAllowed(model string) bool {
	for _, m := range c.ChatModelsAllowed {
		if m == model {
			return true
		}
	}
	return false
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
