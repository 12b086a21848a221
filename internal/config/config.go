// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the configuration for the transcriber service.
type Config struct {
	// LiveKit configuration
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string

	// HTTP surface
	HTTPAddr          string
	KeepaliveInterval time.Duration
	PProfAddr         string

	// STT configuration
	Provider        string // assemblyai, google, mock
	AssemblyAIKey   string
	SampleRateHz    int
	LanguageCode    string

	// Agent lifecycle
	DrainTimeout time.Duration

	// Kafka mirror (optional)
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaTopicFinal string

	// Observability
	LogLevel  string
	LogFormat string
}

// Load loads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := &Config{
		LiveKitURL:        os.Getenv("LIVEKIT_URL"),
		LiveKitAPIKey:     os.Getenv("LIVEKIT_API_KEY"),
		LiveKitAPISecret:  os.Getenv("LIVEKIT_API_SECRET"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8000"),
		KeepaliveInterval: getEnvDuration("KEEPALIVE_INTERVAL", 15*time.Second),
		PProfAddr:         os.Getenv("PPROF_ADDR"),
		Provider:          getEnv("TRANSCRIBE_PROVIDER", "assemblyai"),
		AssemblyAIKey:     os.Getenv("ASSEMBLYAI_API_KEY"),
		SampleRateHz:      getEnvInt("STT_SAMPLE_RATE_HZ", 16000),
		LanguageCode:      getEnv("STT_LANGUAGE_CODE", "en-US"),
		DrainTimeout:      getEnvDuration("DRAIN_TIMEOUT", 30*time.Second),
		KafkaEnabled:      getEnvBool("KAFKA_ENABLED", false),
		KafkaTopicFinal:   getEnv("KAFKA_TOPIC_FINAL", "transcripts.final"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.LiveKitURL == "" {
		return fmt.Errorf("LIVEKIT_URL is required")
	}
	if c.LiveKitAPIKey == "" {
		return fmt.Errorf("LIVEKIT_API_KEY is required")
	}
	if c.LiveKitAPISecret == "" {
		return fmt.Errorf("LIVEKIT_API_SECRET is required")
	}
	switch c.Provider {
	case "assemblyai":
		if c.AssemblyAIKey == "" {
			return fmt.Errorf("ASSEMBLYAI_API_KEY is required when TRANSCRIBE_PROVIDER=assemblyai")
		}
	case "google", "mock":
	default:
		return fmt.Errorf("invalid TRANSCRIBE_PROVIDER: %s (must be assemblyai, google or mock)", c.Provider)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
