package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	MaxUploadMb int64         `yaml:"max_upload_mb"`
	SignURLTTL  time.Duration `yaml:"sign_url_ttl"`

	Redis Redis `yaml:"redis"`
	Blob  Blob  `yaml:"blob"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Blob struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
}

// MustLoad reads the yaml file at path (optional) and applies environment
// overrides on top. Missing blob settings are not fatal: they only disable
// blob operations for the life of the process.
func MustLoad(path string) *Config {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			log.Fatalf("config: cannot read file %q: %v", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				log.Fatalf("config: cannot unmarshal yaml: %v", err)
			}
		}
	}

	cfg.applyEnv()

	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxUploadMb <= 0 {
		cfg.MaxUploadMb = 5
	}
	if cfg.SignURLTTL <= 0 {
		cfg.SignURLTTL = 15 * time.Minute
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	return &cfg
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}

	if v := pickEnv("AWS_S3_BUCKET", "S3_BUCKET", "BUCKET_NAME"); v != "" {
		c.Blob.Bucket = v
	}
	if v := pickEnv("AWS_REGION", "AWS_DEFAULT_REGION", "AWS_S3_REGION"); v != "" {
		c.Blob.Region = v
	}
	if v := pickEnv("AWS_S3_ENDPOINT", "S3_ENDPOINT", "AWS_ENDPOINT_URL_S3"); v != "" {
		c.Blob.Endpoint = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		c.Blob.AccessKeyID = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		c.Blob.SecretAccessKey = v
	}
	if v := os.Getenv("AWS_S3_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Blob.UseSSL = b
		}
	}
}

// pickEnv returns the value of the first non-empty variable.
func pickEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
