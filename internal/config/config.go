// Package config loads settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting of the service.
type Config struct {
	AppPort string

	StoreDriver string // mongo, sqlite or postgres
	MongoURI    string
	MongoDB     string
	DatabaseDSN string

	ImageHost   string // minio or s3
	ImageFolder string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Endpoint     string
	S3PublicURL    string

	StripeSecret  string
	Currency      string
	FeeProtection float64
	FeeShipping   float64

	LockBackend   string // memory or redis
	RedisAddr     string
	RedisPassword string
	LockTTL       time.Duration

	RabbitMQURL      string // empty disables events
	RabbitMQExchange string

	Hasher             string
	LockoutEnabled     bool
	LockoutMaxAttempts int
	LockoutDuration    time.Duration

	QueryDefaultLimit int
	QueryMaxLimit     int
	ExternalTimeout   time.Duration
	BodyLimit         int
	MaxPictures       int
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":3000")

	v.SetDefault("STORE_DRIVER", "mongo")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB", "vinted")
	v.SetDefault("DATABASE_DSN", "vinted.db")

	v.SetDefault("IMAGE_HOST", "minio")
	v.SetDefault("IMAGE_FOLDER_PREFIX", "vinted")
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	v.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	v.SetDefault("MINIO_BUCKET", "offers")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MINIO_PUBLIC_URL", "")
	v.SetDefault("S3_REGION", "eu-west-3")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_BUCKET", "offers")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_PUBLIC_URL", "")

	v.SetDefault("STRIPE_API_SECRET", "")
	v.SetDefault("PAYMENT_CURRENCY", "eur")
	v.SetDefault("PAYMENT_FEE_PROTECTION", 0.4)
	v.SetDefault("PAYMENT_FEE_SHIPPING", 0.8)

	v.SetDefault("LOCK_BACKEND", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("LOCK_TTL", "30s")

	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "marketplace")

	v.SetDefault("CREDENTIALS_HASHER", "sha256")
	v.SetDefault("LOCKOUT_ENABLED", false)
	v.SetDefault("LOCKOUT_MAX_ATTEMPTS", 3)
	v.SetDefault("LOCKOUT_DURATION", "5m")

	v.SetDefault("QUERY_DEFAULT_LIMIT", 100)
	v.SetDefault("QUERY_MAX_LIMIT", 200)
	v.SetDefault("EXTERNAL_TIMEOUT", "10s")
	v.SetDefault("BODY_LIMIT", 20*1024*1024)
	v.SetDefault("MAX_PICTURES", 10)
}

// Load reads envFiles (missing files are ignored), then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables already set in the environment
		_ = godotenv.Load(f)
	}

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from v and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort: v.GetString("APP_PORT"),

		StoreDriver: strings.ToLower(v.GetString("STORE_DRIVER")),
		MongoURI:    v.GetString("MONGO_URI"),
		MongoDB:     v.GetString("MONGO_DB"),
		DatabaseDSN: v.GetString("DATABASE_DSN"),

		ImageHost:      strings.ToLower(v.GetString("IMAGE_HOST")),
		ImageFolder:    v.GetString("IMAGE_FOLDER_PREFIX"),
		MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:    v.GetString("MINIO_BUCKET"),
		MinioUseSSL:    v.GetBool("MINIO_USE_SSL"),
		MinioPublicURL: v.GetString("MINIO_PUBLIC_URL"),
		S3Region:       v.GetString("S3_REGION"),
		S3AccessKey:    v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:    v.GetString("S3_SECRET_KEY"),
		S3Bucket:       v.GetString("S3_BUCKET"),
		S3Endpoint:     v.GetString("S3_ENDPOINT"),
		S3PublicURL:    v.GetString("S3_PUBLIC_URL"),

		StripeSecret:  v.GetString("STRIPE_API_SECRET"),
		Currency:      v.GetString("PAYMENT_CURRENCY"),
		FeeProtection: v.GetFloat64("PAYMENT_FEE_PROTECTION"),
		FeeShipping:   v.GetFloat64("PAYMENT_FEE_SHIPPING"),

		LockBackend:   strings.ToLower(v.GetString("LOCK_BACKEND")),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		LockTTL:       v.GetDuration("LOCK_TTL"),

		RabbitMQURL:      v.GetString("RABBITMQ_URL"),
		RabbitMQExchange: v.GetString("RABBITMQ_EXCHANGE"),

		Hasher:             strings.ToLower(v.GetString("CREDENTIALS_HASHER")),
		LockoutEnabled:     v.GetBool("LOCKOUT_ENABLED"),
		LockoutMaxAttempts: v.GetInt("LOCKOUT_MAX_ATTEMPTS"),
		LockoutDuration:    v.GetDuration("LOCKOUT_DURATION"),

		QueryDefaultLimit: v.GetInt("QUERY_DEFAULT_LIMIT"),
		QueryMaxLimit:     v.GetInt("QUERY_MAX_LIMIT"),
		ExternalTimeout:   v.GetDuration("EXTERNAL_TIMEOUT"),
		BodyLimit:         v.GetInt("BODY_LIMIT"),
		MaxPictures:       v.GetInt("MAX_PICTURES"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown backends and nonsensical limits.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "mongo", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.ImageHost {
	case "minio", "s3":
	default:
		return fmt.Errorf("unknown IMAGE_HOST %q", c.ImageHost)
	}
	switch c.Hasher {
	case "sha256", "argon2id":
	default:
		return fmt.Errorf("unknown CREDENTIALS_HASHER %q", c.Hasher)
	}
	switch c.LockBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}
	if c.QueryDefaultLimit <= 0 || c.QueryMaxLimit <= 0 || c.QueryDefaultLimit > c.QueryMaxLimit {
		return fmt.Errorf("QUERY_DEFAULT_LIMIT (%d) must be positive and not above QUERY_MAX_LIMIT (%d)",
			c.QueryDefaultLimit, c.QueryMaxLimit)
	}
	if c.LockoutEnabled && (c.LockoutMaxAttempts <= 0 || c.LockoutDuration <= 0) {
		return fmt.Errorf("lockout needs positive LOCKOUT_MAX_ATTEMPTS and LOCKOUT_DURATION")
	}
	if c.ExternalTimeout <= 0 {
		return fmt.Errorf("EXTERNAL_TIMEOUT must be positive")
	}
	return nil
}
