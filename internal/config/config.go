package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"verification-service/internal/util"
)

// Config holds the full service configuration, loaded from the
// environment (optionally seeded from a .env file in development).
type Config struct {
	Environment string

	Server        ServerConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	Elasticsearch ElasticsearchConfig
	Clickhouse    ClickhouseConfig
	KMS           KMSConfig
	Logging       LoggingConfig
	Hashing       HashingConfig
	Bucketing     BucketingConfig
	OTP           OTPConfig
	RateLimit     RateLimitConfig
	Notify        NotifyConfig
	Store         StoreConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	Email        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Brokers           []string
	AuditTopic        string
	NotificationTopic string
}

type ElasticsearchConfig struct {
	URL             string
	Username        string
	Password        string
	SubmissionIndex string
}

type ClickhouseConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type HashingConfig struct {
	Argon2MemoryCost   int
	Argon2TimeCost     int
	Argon2Parallelism  int
	PepperRotationDays int
}

type BucketingConfig struct {
	EventBuckets int
	ShardCount   int
}

// OTPConfig controls one-time passcode issuance.
type OTPConfig struct {
	TTL        time.Duration
	CodeLength int
}

// RateLimitConfig controls per-recipient request throttling.
type RateLimitConfig struct {
	Window      time.Duration
	MaxAttempts int
	Cooldown    time.Duration
}

type NotifyConfig struct {
	// Channel selects the outbound delivery path: "kafka" hands messages
	// to the downstream mailer pipeline, "log" is for development.
	Channel string
}

type StoreConfig struct {
	// Backend selects the rate-limit/OTP store: "redis" (shared across
	// instances) or "memory" (single instance, development only).
	Backend string
}

// LoadConfig reads configuration from the environment with defaults
// suitable for local development.
func LoadConfig() *Config {
	// Best effort; production deployments set real env vars.
	_ = godotenv.Load()

	return &Config{
		Environment: util.GetEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:         util.GetEnv("SERVER_HOST", "0.0.0.0"),
			Port:         util.GetEnvInt("SERVER_PORT", 8080),
			TLSPort:      util.GetEnvInt("SERVER_TLS_PORT", 8443),
			EnableTLS:    util.GetEnvBool("SERVER_ENABLE_TLS", false),
			AutoCert:     util.GetEnvBool("SERVER_AUTO_CERT", false),
			Domain:       util.GetEnv("SERVER_DOMAIN", "localhost"),
			CertFile:     util.GetEnv("SERVER_CERT_FILE", ""),
			KeyFile:      util.GetEnv("SERVER_KEY_FILE", ""),
			AutoCertDir:  util.GetEnv("SERVER_AUTOCERT_DIR", "/var/cache/autocert"),
			Email:        util.GetEnv("SERVER_ACME_EMAIL", ""),
			ReadTimeout:  util.GetEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: util.GetEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  util.GetEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Redis: RedisConfig{
			URL:      util.GetEnv("REDIS_URL", "redis://localhost:6379"),
			Password: util.GetEnv("REDIS_PASSWORD", ""),
			DB:       util.GetEnvInt("REDIS_DB", 0),
			PoolSize: util.GetEnvInt("REDIS_POOL_SIZE", 50),
		},
		Scylla: ScyllaConfig{
			Nodes:    util.GetEnvSlice("SCYLLA_NODES", []string{"127.0.0.1:9042"}),
			Keyspace: util.GetEnv("SCYLLA_KEYSPACE", "verification"),
			Username: util.GetEnv("SCYLLA_USERNAME", ""),
			Password: util.GetEnv("SCYLLA_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Brokers:           util.GetEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			AuditTopic:        util.GetEnv("KAFKA_AUDIT_TOPIC", "security-events"),
			NotificationTopic: util.GetEnv("KAFKA_NOTIFICATION_TOPIC", "email-notifications"),
		},
		Elasticsearch: ElasticsearchConfig{
			URL:             util.GetEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username:        util.GetEnv("ELASTICSEARCH_USERNAME", ""),
			Password:        util.GetEnv("ELASTICSEARCH_PASSWORD", ""),
			SubmissionIndex: util.GetEnv("ELASTICSEARCH_SUBMISSION_INDEX", "contact-submissions"),
		},
		Clickhouse: ClickhouseConfig{
			URL:      util.GetEnv("CLICKHOUSE_URL", "localhost:9000"),
			Username: util.GetEnv("CLICKHOUSE_USERNAME", "default"),
			Password: util.GetEnv("CLICKHOUSE_PASSWORD", ""),
			Database: util.GetEnv("CLICKHOUSE_DATABASE", "security"),
		},
		KMS: KMSConfig{
			Enabled: util.GetEnvBool("KMS_ENABLED", false),
			KeyID:   util.GetEnv("KMS_KEY_ID", ""),
			Region:  util.GetEnv("KMS_REGION", "us-east-1"),
		},
		Logging: LoggingConfig{
			Level:  util.GetEnv("LOG_LEVEL", "info"),
			Format: util.GetEnv("LOG_FORMAT", "json"),
		},
		Hashing: HashingConfig{
			Argon2MemoryCost:   util.GetEnvInt("ARGON2_MEMORY_COST", 19456),
			Argon2TimeCost:     util.GetEnvInt("ARGON2_TIME_COST", 2),
			Argon2Parallelism:  util.GetEnvInt("ARGON2_PARALLELISM", 1),
			PepperRotationDays: util.GetEnvInt("PEPPER_ROTATION_DAYS", 30),
		},
		Bucketing: BucketingConfig{
			EventBuckets: util.GetEnvInt("EVENT_BUCKETS", 16),
			ShardCount:   util.GetEnvInt("STORE_SHARD_COUNT", 32),
		},
		OTP: OTPConfig{
			TTL:        util.GetEnvDuration("OTP_TTL", 10*time.Minute),
			CodeLength: util.GetEnvInt("OTP_CODE_LENGTH", 6),
		},
		RateLimit: RateLimitConfig{
			Window:      util.GetEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
			MaxAttempts: util.GetEnvInt("RATE_LIMIT_MAX_ATTEMPTS", 3),
			Cooldown:    util.GetEnvDuration("RATE_LIMIT_COOLDOWN", 5*time.Minute),
		},
		Notify: NotifyConfig{
			Channel: util.GetEnv("NOTIFY_CHANNEL", "kafka"),
		},
		Store: StoreConfig{
			Backend: util.GetEnv("STORE_BACKEND", "redis"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// GetServerAddress returns the plain HTTP listen address.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
