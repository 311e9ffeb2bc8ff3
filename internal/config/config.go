package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// StoragePath is the Badger directory. Empty keeps blows in memory only.
	StoragePath string

	// Kafka lifecycle events and the moderation consumer.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaEventsTopic   string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration

	ModerationEnabled       bool
	ModerationFlagThreshold uint64

	// OpenAI judge configuration. When disabled the rule-based judge is used.
	OpenAIAPIKey   string
	OpenAIEnabled  bool
	OpenAIModel    string
	OpenAIBaseURL  string
	OpenAITimeout  time.Duration
	JudgeCacheSize int

	VoteDedup bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	openAITimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("OPENAI_TIMEOUT", "15s"))
	if err != nil || openAITimeout <= 0 {
		return nil, errors.New("invalid OPENAI_TIMEOUT")
	}

	threshold, err := strconv.ParseUint(sharedcfg.EnvOrDefault("MODERATION_FLAG_THRESHOLD", "20"), 10, 64)
	if err != nil || threshold > 100 {
		return nil, errors.New("invalid MODERATION_FLAG_THRESHOLD: must be an integer in 0-100")
	}

	kafkaEnabled := boolEnv("KAFKA_ENABLED", os.Getenv("KAFKA_BROKERS") != "")
	openAIKey := os.Getenv("OPENAI_API_KEY")

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		StoragePath: os.Getenv("STORAGE_PATH"),

		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaEventsTopic:   sharedcfg.EnvOrDefault("KAFKA_EVENTS_TOPIC", "blow-events"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "blow-moderation"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		ModerationEnabled:       boolEnv("MODERATION_ENABLED", kafkaEnabled),
		ModerationFlagThreshold: threshold,

		OpenAIAPIKey:   openAIKey,
		OpenAIEnabled:  boolEnv("OPENAI_ENABLED", openAIKey != ""),
		OpenAIModel:    sharedcfg.EnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		OpenAITimeout:  openAITimeout,
		JudgeCacheSize: parseJudgeCacheSize(),

		VoteDedup: boolEnv("VOTE_DEDUP", false),
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaEnabled && cfg.KafkaEventsTopic == "" {
		return nil, errors.New("KAFKA_EVENTS_TOPIC is required")
	}
	if cfg.ModerationEnabled && !cfg.KafkaEnabled {
		return nil, errors.New("MODERATION_ENABLED requires Kafka (set KAFKA_BROKERS or KAFKA_ENABLED)")
	}
	if cfg.OpenAIEnabled && cfg.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_ENABLED is true but OPENAI_API_KEY is not set")
	}

	return cfg, nil
}

// boolEnv returns def unless the variable is set, in which case only "true" enables it.
func boolEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true"
	}
	return def
}

func parseJudgeCacheSize() int {
	if s := os.Getenv("JUDGE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
