package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Shortener ShortenerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Kafka     KafkaConfig
	OTel      OTelConfig
}

type AppConfig struct {
	Name     string
	Version  string
	Env      string
	LogLevel string
}

type ServerConfig struct {
	Port string
	Host string
}

type MongoDBConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type ShortenerConfig struct {
	BaseURL        string
	TokenLength    int
	RedirectStatus int // 301 or 302
	ClickTimeout   time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

type RateLimitConfig struct {
	CreatePerMinute int
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	ClickTopic string
}

type OTelConfig struct {
	Enabled  bool
	Endpoint string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	cfg := &Config{
		App: AppConfig{
			Name:     GetEnv("APP_NAME", "linkpulse"),
			Version:  GetEnv("APP_VERSION", "0.1.0"),
			Env:      GetEnv("APP_ENV", "development"),
			LogLevel: GetEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port: GetEnv("APP_PORT", "8080"),
			Host: GetEnv("APP_HOST", "localhost"),
		},
		MongoDB: MongoDBConfig{
			URI:      GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: GetEnv("MONGODB_DATABASE", "linkpulse"),
		},
		Redis: RedisConfig{
			Addr:     GetEnv("REDIS_ADDR", "localhost:6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvInt("REDIS_DB", 0),
			CacheTTL: GetEnvDuration("REDIS_CACHE_TTL", 5*time.Minute),
		},
		Shortener: ShortenerConfig{
			// Process-wide base URL, fixed at startup.
			BaseURL:        GetEnv("SHORTENER_BASE_URL", "http://localhost:8080"),
			TokenLength:    GetEnvInt("TOKEN_LENGTH", 8),
			RedirectStatus: GetEnvInt("REDIRECT_STATUS", 302),
			ClickTimeout:   GetEnvDuration("CLICK_RECORD_TIMEOUT", 2*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: GetEnv("JWT_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			CreatePerMinute: GetEnvInt("CREATE_RATE_PER_MINUTE", 60),
		},
		Kafka: KafkaConfig{
			Enabled:    GetEnvBool("KAFKA_ENABLED", false),
			Brokers:    SplitCSV(GetEnv("KAFKA_BROKERS", "")),
			ClickTopic: GetEnv("KAFKA_CLICK_TOPIC", "clicks.recorded"),
		},
		OTel: OTelConfig{
			Enabled:  GetEnvBool("OTEL_ENABLED", false),
			Endpoint: GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		},
	}

	if cfg.Shortener.RedirectStatus != 301 && cfg.Shortener.RedirectStatus != 302 {
		return nil, fmt.Errorf("REDIRECT_STATUS must be 301 or 302 (got %d)", cfg.Shortener.RedirectStatus)
	}
	if cfg.Shortener.TokenLength < 4 || cfg.Shortener.TokenLength > 32 {
		return nil, fmt.Errorf("TOKEN_LENGTH must be between 4 and 32 (got %d)", cfg.Shortener.TokenLength)
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker when KAFKA_ENABLED is true")
	}

	return cfg, nil
}
