package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Vision   VisionConfig   `yaml:"vision"`
	Resolve  ResolveConfig  `yaml:"resolve"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port           int    `yaml:"port"`
	APIKey         string `yaml:"api_key"`
	PublicURL      string `yaml:"public_url"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir string `yaml:"models_dir"`
	// DetectionConfidence is the floor below which detected faces are
	// discarded before they ever reach the resolution engine.
	DetectionConfidence float64 `yaml:"detection_confidence"`
	EmbeddingDim        int     `yaml:"embedding_dim"`
}

type ResolveConfig struct {
	// MatchThreshold is exclusive: a face matches a person only when its
	// best representative similarity is strictly greater than this value.
	MatchThreshold float64 `yaml:"match_threshold"`
	WorkerCount    int     `yaml:"worker_count"`
}

type CacheConfig struct {
	ListingTTL time.Duration `yaml:"listing_ttl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 5 * 1024 * 1024
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Vision.DetectionConfidence == 0 {
		cfg.Vision.DetectionConfidence = 0.5
	}
	if cfg.Vision.EmbeddingDim == 0 {
		cfg.Vision.EmbeddingDim = 512
	}
	if cfg.Resolve.MatchThreshold == 0 {
		cfg.Resolve.MatchThreshold = 0.6
	}
	if cfg.Resolve.WorkerCount == 0 {
		cfg.Resolve.WorkerCount = 4
	}
	if cfg.Cache.ListingTTL == 0 {
		cfg.Cache.ListingTTL = 5 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PHOTOID_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PHOTOID_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("PHOTOID_PUBLIC_URL"); v != "" {
		cfg.Server.PublicURL = v
	}
	if v := os.Getenv("PHOTOID_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PHOTOID_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PHOTOID_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PHOTOID_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PHOTOID_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PHOTOID_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PHOTOID_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("PHOTOID_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("PHOTOID_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("PHOTOID_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("PHOTOID_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("PHOTOID_RESOLVE_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Resolve.WorkerCount = n
		}
	}
}
