package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers understood by pkg/storage.
const (
	StorageDriverLocal = "local"
	StorageDriverGCS   = "gcs"
	StorageDriverAzure = "azure"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	CORS       CORSConfig
	Log        LogConfig
	Catalog    CatalogConfig
	Storage    StorageConfig
	Download   DownloadConfig
	IndexQueue IndexQueueConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig governs the Redis-backed reference data cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CatalogConfig tunes version resolution and the submission path.
type CatalogConfig struct {
	VolatilityWindow   time.Duration
	SubmissionTimeout  time.Duration
	ModelRankCacheSize int
}

// StorageConfig selects the object storage backend holding the file bytes.
type StorageConfig struct {
	Driver                string
	LocalDir              string
	ProductBucket         string
	VolatileBucket        string
	GCSCredentialsFile    string
	AzureConnectionString string
}

// DownloadConfig controls signed download links attached to file responses.
type DownloadConfig struct {
	BaseURL       string
	SigningSecret string
	URLTTL        time.Duration
}

// IndexQueueConfig sizes the background best-version index rebuild worker.
type IndexQueueConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("CACHE_ENABLED"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Catalog = CatalogConfig{
		VolatilityWindow:   parseDuration(v.GetString("VOLATILITY_WINDOW"), 24*time.Hour),
		SubmissionTimeout:  parseDuration(v.GetString("SUBMISSION_TIMEOUT"), 30*time.Second),
		ModelRankCacheSize: v.GetInt("MODEL_RANK_CACHE_SIZE"),
	}
	if cfg.Catalog.ModelRankCacheSize <= 0 {
		cfg.Catalog.ModelRankCacheSize = 64
	}

	cfg.Storage = StorageConfig{
		Driver:                strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir:              v.GetString("STORAGE_LOCAL_DIR"),
		ProductBucket:         v.GetString("STORAGE_PRODUCT_BUCKET"),
		VolatileBucket:        v.GetString("STORAGE_VOLATILE_BUCKET"),
		GCSCredentialsFile:    v.GetString("GCS_CREDENTIALS_FILE"),
		AzureConnectionString: v.GetString("AZURE_STORAGE_CONNECTION_STRING"),
	}
	switch cfg.Storage.Driver {
	case StorageDriverLocal, StorageDriverGCS, StorageDriverAzure:
	default:
		return nil, errors.New("STORAGE_DRIVER must be one of local, gcs, azure")
	}

	cfg.Download = DownloadConfig{
		BaseURL:       strings.TrimRight(v.GetString("DOWNLOAD_BASE_URL"), "/"),
		SigningSecret: v.GetString("DOWNLOAD_SIGNING_SECRET"),
		URLTTL:        parseDuration(v.GetString("DOWNLOAD_URL_TTL"), 24*time.Hour),
	}

	cfg.IndexQueue = IndexQueueConfig{
		Workers:    v.GetInt("INDEX_WORKERS"),
		Retries:    v.GetInt("INDEX_WORKER_RETRIES"),
		RetryDelay: parseDuration(v.GetString("INDEX_WORKER_RETRY_DELAY"), 2*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 3000)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "dataportal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("CACHE_TTL", "1h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("VOLATILITY_WINDOW", "24h")
	v.SetDefault("SUBMISSION_TIMEOUT", "30s")
	v.SetDefault("MODEL_RANK_CACHE_SIZE", 64)

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "./storage")
	v.SetDefault("STORAGE_PRODUCT_BUCKET", "cloudnet-product")
	v.SetDefault("STORAGE_VOLATILE_BUCKET", "cloudnet-product-volatile")
	v.SetDefault("GCS_CREDENTIALS_FILE", "")
	v.SetDefault("AZURE_STORAGE_CONNECTION_STRING", "")

	v.SetDefault("DOWNLOAD_BASE_URL", "http://localhost:3000/api/download")
	v.SetDefault("DOWNLOAD_SIGNING_SECRET", "dev_download_secret")
	v.SetDefault("DOWNLOAD_URL_TTL", "24h")

	v.SetDefault("INDEX_WORKERS", 1)
	v.SetDefault("INDEX_WORKER_RETRIES", 3)
	v.SetDefault("INDEX_WORKER_RETRY_DELAY", "2s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
