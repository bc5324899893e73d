package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

const (
	BlobBackendS3    = "s3"
	BlobBackendMinIO = "minio"

	minJWTSecretLength       = 32
	minUniqueCharsInSecret   = 16
	minRepeatedCharThreshold = 4
	maxRepeatedChars         = 2

	errReadEnvFmt              = "failed to read environment: %w"
	errJWTSecretLowEntropyFmt  = "JWT_SECRET has insufficient entropy (appears non-random). Use a cryptographically secure random string."
	errPurgeGraceTooShortFmt   = "PURGE_GRACE (%s) must exceed BLOB_TIMEOUT (%s)"
	errMinConnsExceedMaxFmt    = "DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)"
	errInvalidConfigurationFmt = "invalid configuration: %w"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Blob     BlobConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Purge    PurgeConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            string        `env:"PORT" env-default:"8080" validate:"required,numeric"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"30s" validate:"gt=0"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"60s" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s" validate:"gt=0"`
	EnableProfiling bool          `env:"ENABLE_PROFILING" env-default:"false"`
}

type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST" env-default:"localhost" validate:"required_without=URL"`
	Port     int    `env:"DB_PORT" env-default:"5432" validate:"min=1,max=65535"`
	Database string `env:"DB_NAME" env-default:"drive"`
	User     string `env:"DB_USER" env-default:"drive_app"`
	Password string `env:"DB_PASSWORD" validate:"required_without=URL"`
	SSLMode  string `env:"DB_SSL_MODE" env-default:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns int    `env:"DB_MAX_CONNS" env-default:"25" validate:"min=1"`
	MinConns int    `env:"DB_MIN_CONNS" env-default:"2" validate:"min=0"`
}

// BlobConfig selects and configures the object store holding file payloads.
// Endpoint is required for MinIO and optional for S3-compatible services.
type BlobConfig struct {
	Backend         string        `env:"BLOB_BACKEND" env-default:"s3" validate:"oneof=s3 minio"`
	Bucket          string        `env:"BLOB_BUCKET" validate:"required"`
	Region          string        `env:"REGION" env-default:"us-east-1" validate:"required"`
	Endpoint        string        `env:"BLOB_ENDPOINT" validate:"required_if=Backend minio"`
	AccessKeyID     string        `env:"AWS_ACCESS_KEY_ID" validate:"required"`
	SecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY" validate:"required"`
	UseSSL          bool          `env:"BLOB_USE_SSL" env-default:"true"`
	ForcePathStyle  bool          `env:"BLOB_FORCE_PATH_STYLE" env-default:"false"`
	EnsureBucket    bool          `env:"BLOB_ENSURE_BUCKET" env-default:"false"`
	Timeout         time.Duration `env:"BLOB_TIMEOUT" env-default:"30s" validate:"gt=0"`
	SignedURLTTL    time.Duration `env:"DOWNLOAD_URL_TIME_LIMIT" env-default:"15m" validate:"gt=0"`
	MaxUploadSize   int64         `env:"MAX_UPLOAD_SIZE" env-default:"104857600" validate:"gt=0"`
}

// RedisConfig is optional: an empty Addr disables the signed URL cache.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0" validate:"min=0"`
}

type JWTConfig struct {
	Secret         string        `env:"JWT_SECRET" validate:"required,min=32"`
	ExpiryDuration time.Duration `env:"JWT_EXPIRY" env-default:"60m" validate:"gt=0"`
}

type PurgeConfig struct {
	Interval  time.Duration `env:"PURGE_INTERVAL" env-default:"1m" validate:"gt=0"`
	Grace     time.Duration `env:"PURGE_GRACE" env-default:"15m" validate:"gt=0"`
	BatchSize int           `env:"PURGE_BATCH_SIZE" env-default:"500" validate:"min=1,max=1000"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Format string `env:"LOG_FORMAT" env-default:"json" validate:"oneof=json console"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf(errReadEnvFmt, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf(errInvalidConfigurationFmt, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return errors.New(messages.invalidField(fieldErrs[0]))
		}
		return err
	}

	if !hasMinimumEntropy(c.JWT.Secret) {
		return fmt.Errorf(errJWTSecretLowEntropyFmt)
	}

	if c.Purge.Grace <= c.Blob.Timeout {
		return fmt.Errorf(errPurgeGraceTooShortFmt, c.Purge.Grace, c.Blob.Timeout)
	}

	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf(errMinConnsExceedMaxFmt, c.Database.MinConns, c.Database.MaxConns)
	}

	return nil
}

func hasMinimumEntropy(secret string) bool {
	if len(secret) < minJWTSecretLength {
		return false
	}

	charCounts := make(map[rune]int)
	for _, char := range secret {
		charCounts[char]++
	}

	uniqueChars := len(charCounts)
	if uniqueChars < minUniqueCharsInSecret {
		return false
	}

	repeatedChars := 0
	for _, count := range charCounts {
		if count > len(secret)/minRepeatedCharThreshold {
			repeatedChars++
		}
	}

	return repeatedChars <= maxRepeatedChars
}

func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
