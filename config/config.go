package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	JWT      JWTConfig      `yaml:"jwt"`
	Firebase FirebaseConfig `yaml:"firebase"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Notify   NotifyConfig   `yaml:"notify"`
	Swap     SwapConfig     `yaml:"swap"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	Env            string        `yaml:"env"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type JWTConfig struct {
	SigningKey string        `yaml:"signing_key"` // Secret key for JWT signing
	Issuer     string        `yaml:"issuer"`      // JWT issuer claim
	TokenTTL   time.Duration `yaml:"token_ttl"`
}

type FirebaseConfig struct {
	ProjectID         string `yaml:"project_id"`
	CredentialsPath   string `yaml:"credentials_path"`
	FirestoreDatabase string `yaml:"firestore_database"`
	// Emulator support for integration testing
	UseEmulator           bool   `yaml:"use_emulator"`
	EmulatorAuthHost      string `yaml:"emulator_auth_host"`
	EmulatorFirestoreHost string `yaml:"emulator_firestore_host"`
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	DLQTopic string   `yaml:"dlq_topic"`
	GroupID  string   `yaml:"group_id"`
}

type NotifyConfig struct {
	Sink   string `yaml:"sink"` // log, kafka or firestore
	Buffer int    `yaml:"buffer"`
}

type SwapConfig struct {
	SideEffectAttempts int           `yaml:"side_effect_attempts"`
	SideEffectBackoff  time.Duration `yaml:"side_effect_backoff"`
	SideEffectBudget   time.Duration `yaml:"side_effect_budget"`
	ReconcileInterval  time.Duration `yaml:"reconcile_interval"` // 0 disables periodic reconcile
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Notification sinks.
const (
	SinkLog       = "log"
	SinkKafka     = "kafka"
	SinkFirestore = "firestore"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Env: "development", RequestTimeout: 30 * time.Second},
		DB:     DBConfig{Path: "greenswap.db"},
		JWT:    JWTConfig{Issuer: "greenswap", TokenTTL: 24 * time.Hour},
		Firebase: FirebaseConfig{
			FirestoreDatabase:     "(default)",
			EmulatorAuthHost:      "localhost:9099",
			EmulatorFirestoreHost: "localhost:8080",
		},
		Kafka: KafkaConfig{
			Brokers:  []string{"localhost:9092"},
			Topic:    "swap-notifications",
			DLQTopic: "swap-notifications-dlq",
			GroupID:  "greenswap-notify-relay",
		},
		Notify: NotifyConfig{Sink: SinkLog, Buffer: 1024},
		Swap: SwapConfig{
			SideEffectAttempts: 5,
			SideEffectBackoff:  100 * time.Millisecond,
			SideEffectBudget:   2 * time.Second,
			ReconcileInterval:  5 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load returns configuration built from defaults, then the YAML file named
// by CONFIG_FILE if set, then environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	loadEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Notify.Sink {
	case SinkLog, SinkKafka, SinkFirestore:
	default:
		return fmt.Errorf("unknown notify sink %q", c.Notify.Sink)
	}
	if c.Notify.Sink == SinkKafka && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka sink needs at least one broker")
	}
	if c.Notify.Sink == SinkFirestore && c.Firebase.ProjectID == "" {
		return errors.New("firestore sink needs FIREBASE_PROJECT_ID")
	}
	if c.Swap.SideEffectAttempts < 1 {
		return errors.New("swap side effect attempts must be at least 1")
	}
	if c.Swap.SideEffectBudget <= 0 || c.Swap.SideEffectBudget >= c.Server.RequestTimeout {
		return fmt.Errorf("swap side effect budget %s must be positive and below the request timeout %s",
			c.Swap.SideEffectBudget, c.Server.RequestTimeout)
	}
	if c.JWT.TokenTTL <= 0 {
		return errors.New("jwt token ttl must be positive")
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.Env = getEnv("ENV", cfg.Server.Env)
	cfg.Server.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.Server.RequestTimeout)

	cfg.DB.Path = getEnv("DB_PATH", cfg.DB.Path)

	cfg.JWT.SigningKey = getEnv("JWT_SIGNING_KEY", cfg.JWT.SigningKey)
	cfg.JWT.Issuer = getEnv("JWT_ISSUER", cfg.JWT.Issuer)
	cfg.JWT.TokenTTL = getEnvDuration("JWT_TOKEN_TTL", cfg.JWT.TokenTTL)

	cfg.Firebase.ProjectID = getEnv("FIREBASE_PROJECT_ID", cfg.Firebase.ProjectID)
	cfg.Firebase.CredentialsPath = getEnv("FIREBASE_CREDENTIALS_PATH", cfg.Firebase.CredentialsPath)
	cfg.Firebase.FirestoreDatabase = getEnv("FIRESTORE_DATABASE", cfg.Firebase.FirestoreDatabase)
	cfg.Firebase.UseEmulator = getEnvBool("USE_FIREBASE_EMULATOR", cfg.Firebase.UseEmulator)
	cfg.Firebase.EmulatorAuthHost = getEnv("FIREBASE_AUTH_EMULATOR_HOST", cfg.Firebase.EmulatorAuthHost)
	cfg.Firebase.EmulatorFirestoreHost = getEnv("FIRESTORE_EMULATOR_HOST", cfg.Firebase.EmulatorFirestoreHost)

	cfg.Kafka.Brokers = getEnvList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.DLQTopic = getEnv("KAFKA_DLQ_TOPIC", cfg.Kafka.DLQTopic)
	cfg.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	cfg.Notify.Sink = getEnv("NOTIFY_SINK", cfg.Notify.Sink)
	cfg.Notify.Buffer = getEnvInt("NOTIFY_BUFFER", cfg.Notify.Buffer)

	cfg.Swap.SideEffectAttempts = getEnvInt("SWAP_SIDE_EFFECT_ATTEMPTS", cfg.Swap.SideEffectAttempts)
	cfg.Swap.SideEffectBackoff = getEnvDuration("SWAP_SIDE_EFFECT_BACKOFF", cfg.Swap.SideEffectBackoff)
	cfg.Swap.SideEffectBudget = getEnvDuration("SWAP_SIDE_EFFECT_BUDGET", cfg.Swap.SideEffectBudget)
	cfg.Swap.ReconcileInterval = getEnvDuration("SWAP_RECONCILE_INTERVAL", cfg.Swap.ReconcileInterval)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolVal, err := strconv.ParseBool(value)
		if err == nil {
			return boolVal
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

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
