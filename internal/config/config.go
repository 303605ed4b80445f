package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	GoogleAPIKey string
	Port         string
	GinMode      string
	CORSOrigins  []string

	// File storage
	UploadDir         string
	VectorStoreDir    string
	MaxFileSize       int64
	AllowedExtensions []string

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Models
	EmbeddingModel string
	ChatModel      string

	// Retrieval
	TopK      int
	FetchK    int
	MMRLambda float64

	// Embedding batching and retry
	EmbedBatchSize  int
	EmbedBatchPause time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration

	// Answer generation
	Temperature     float32
	MaxOutputTokens int32
	GeminiRPM       float64

	// HTTP rate limiting, per client IP
	RateLimitReqs   int
	RateLimitWindow int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		GoogleAPIKey: getEnv("GOOGLE_API_KEY", ""),
		Port:         getEnv("PORT", "5000"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"), ","),

		UploadDir:         getEnv("UPLOAD_DIR", "uploads"),
		VectorStoreDir:    getEnv("VECTOR_STORE_DIR", "vectorstore"),
		MaxFileSize:       getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB, check and message agree
		AllowedExtensions: strings.Split(getEnv("ALLOWED_EXTENSIONS", ".pdf,.txt,.docx,.doc"), ","),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),

		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		ChatModel:      getEnv("CHAT_MODEL", "gemini-1.5-flash"),

		TopK:      getEnvInt("RETRIEVAL_TOP_K", 5),
		FetchK:    getEnvInt("RETRIEVAL_FETCH_K", 20),
		MMRLambda: getEnvFloat64("RETRIEVAL_MMR_LAMBDA", 0.5),

		EmbedBatchSize:  getEnvInt("EMBED_BATCH_SIZE", 5),
		EmbedBatchPause: time.Duration(getEnvInt("EMBED_BATCH_PAUSE_MS", 1000)) * time.Millisecond,
		MaxRetries:      getEnvInt("EMBED_MAX_RETRIES", 3),
		RetryBaseDelay:  time.Duration(getEnvInt("EMBED_RETRY_DELAY_MS", 2000)) * time.Millisecond,

		Temperature:     float32(getEnvFloat64("ANSWER_TEMPERATURE", 0.3)),
		MaxOutputTokens: int32(getEnvInt("ANSWER_MAX_TOKENS", 300)),
		GeminiRPM:       getEnvFloat64("GEMINI_RPM", 10), // free-tier default

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQS", 60),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
	}

	// Validate required fields
	if cfg.GoogleAPIKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required - set it in .env file")
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	if cfg.FetchK < cfg.TopK {
		cfg.FetchK = cfg.TopK
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
