// Package config loads service settings from an optional .env file, an
// optional YAML file and the environment, in that order of precedence
// (environment wins).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/trustnet/trustnet-go/internal/model"
)

// Config holds every service setting.
type Config struct {
	Port               string   `yaml:"port"`
	LogLevel           string   `yaml:"log_level"`
	LogFormat          string   `yaml:"log_format"`
	Env                string   `yaml:"env"`
	DatabaseURL        string   `yaml:"database_url"`
	AllowlistFile      string   `yaml:"allowlist_file"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	Model              Model    `yaml:"model"`
	TLS                TLS      `yaml:"tls"`
	Sources            []string `yaml:"-"`
}

// Model locates the artifact bundle and controls reloads.
type Model struct {
	Dir            string        `yaml:"dir"`
	S3             S3            `yaml:"s3"`
	LoadRetries    uint64        `yaml:"load_retries"`
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// S3 is the remote bundle location. Credentials only come from the
// environment.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// TLS enables ACME certificates when Domains is set.
type TLS struct {
	Domains []string `yaml:"domains"`
	Email   string   `yaml:"email"`
}

// Defaults.
const (
	DefaultPort           = "8080"
	DefaultModelDir       = "models"
	DefaultLoadRetries    = 3
	DefaultRateLimit      = 60
	ProductionEnvironment = "production"
)

// Production reports whether the service runs in production mode.
func (c *Config) Production() bool { return c.Env == ProductionEnvironment }

// Load reads .env (if present), the YAML file at path or $TRUSTNET_CONFIG
// (if any) and the process environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv("TRUSTNET_CONFIG")
	}
	var file io.Reader
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		file = bytes.NewReader(b)
	}
	c, err := Parse(file, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if path != "" {
		c.Sources = append([]string{path}, c.Sources...)
	}
	return c, nil
}

// Parse builds a config from an optional YAML document and an environment
// lookup function.
func Parse(file io.Reader, lookup func(string) (string, bool)) (*Config, error) {
	c := &Config{}
	if file != nil {
		dec := yaml.NewDecoder(file)
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := c.applyEnv(lookup); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
			c.Sources = append(c.Sources, "env:"+key)
		}
	}
	str("PORT", &c.Port)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("TRUSTNET_ENV", &c.Env)
	str("DATABASE_URL", &c.DatabaseURL)
	str("ALLOWLIST_FILE", &c.AllowlistFile)
	str("MODEL_DIR", &c.Model.Dir)
	str("MODEL_S3_BUCKET", &c.Model.S3.Bucket)
	str("MODEL_S3_PREFIX", &c.Model.S3.Prefix)
	str("MODEL_S3_REGION", &c.Model.S3.Region)
	str("MODEL_S3_ENDPOINT", &c.Model.S3.Endpoint)
	str("AWS_ACCESS_KEY_ID", &c.Model.S3.AccessKey)
	str("AWS_SECRET_ACCESS_KEY", &c.Model.S3.SecretKey)
	str("ACME_EMAIL", &c.TLS.Email)

	if v, ok := lookup("TLS_DOMAINS"); ok && v != "" {
		c.TLS.Domains = splitList(v)
		c.Sources = append(c.Sources, "env:TLS_DOMAINS")
	}
	if v, ok := lookup("MODEL_LOAD_RETRIES"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MODEL_LOAD_RETRIES: %w", err)
		}
		c.Model.LoadRetries = n
		c.Sources = append(c.Sources, "env:MODEL_LOAD_RETRIES")
	}
	if v, ok := lookup("MODEL_RELOAD_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MODEL_RELOAD_INTERVAL: %w", err)
		}
		c.Model.ReloadInterval = d
		c.Sources = append(c.Sources, "env:MODEL_RELOAD_INTERVAL")
	}
	if v, ok := lookup("RATE_LIMIT_PER_MINUTE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_PER_MINUTE: %w", err)
		}
		c.RateLimitPerMinute = n
		c.Sources = append(c.Sources, "env:RATE_LIMIT_PER_MINUTE")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Model.Dir == "" && c.Model.S3.Bucket == "" {
		c.Model.Dir = DefaultModelDir
	}
	if c.Model.LoadRetries == 0 {
		c.Model.LoadRetries = DefaultLoadRetries
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = DefaultRateLimit
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate_limit_per_minute must not be negative")
	}
	if c.Model.ReloadInterval < 0 {
		return fmt.Errorf("model reload_interval must not be negative")
	}
	if len(c.TLS.Domains) > 0 && c.TLS.Email == "" {
		return fmt.Errorf("tls domains set without an ACME email")
	}
	return nil
}

// ModelSource returns the configured artifact source: S3 when a bucket is
// set, otherwise the model directory.
func (c *Config) ModelSource() model.Source {
	if c.Model.S3.Bucket != "" {
		return model.NewS3Source(model.S3Config{
			Bucket:    c.Model.S3.Bucket,
			Prefix:    c.Model.S3.Prefix,
			Region:    c.Model.S3.Region,
			Endpoint:  c.Model.S3.Endpoint,
			AccessKey: c.Model.S3.AccessKey,
			SecretKey: c.Model.S3.SecretKey,
		})
	}
	return model.DirSource{Dir: c.Model.Dir}
}

// LoadOptions returns the artifact loader retry settings.
func (c *Config) LoadOptions() model.LoadOptions {
	return model.LoadOptions{
		MaxRetries:     c.Model.LoadRetries,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
