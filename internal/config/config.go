package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Config holds all Kartavya configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Vision   VisionConfig   `yaml:"vision"`
	Store    StoreConfig    `yaml:"store"`
	Photos   PhotoConfig    `yaml:"photos"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Output   OutputConfig   `yaml:"output"`
	LogLevel string         `yaml:"log_level"` // "debug", "info", "warn", "error"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// VisionConfig holds image classifier settings. An empty ModelPath runs
// without a model: every analysis falls back to the default severity.
type VisionConfig struct {
	ModelPath    string `yaml:"model_path"`
	LabelsPath   string `yaml:"labels_path"`
	InputSize    int    `yaml:"input_size"`
	TopK         int    `yaml:"top_k"`
	ApplySoftmax bool   `yaml:"apply_softmax"`
}

// StoreConfig selects the report database.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// PhotoConfig selects where uploaded photos are kept.
type PhotoConfig struct {
	Backend string `yaml:"backend"` // "fs" or "s3"
	Dir     string `yaml:"dir"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
	Region  string `yaml:"region"`
}

// GeocoderConfig holds reverse-geocoding settings.
type GeocoderConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Endpoint  string        `yaml:"endpoint"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// OutputConfig holds report event sink settings.
type OutputConfig struct {
	Sinks                []string          `yaml:"sinks"` // any of "stdout", "file", "webhook"
	Pretty               bool              `yaml:"pretty"`
	FilePath             string            `yaml:"file_path"`
	FileMaxBytes         int64             `yaml:"file_max_bytes"`
	WebhookURL           string            `yaml:"webhook_url"`
	WebhookHeaders       map[string]string `yaml:"webhook_headers"`
	WebhookBatchSize     int               `yaml:"webhook_batch_size"`
	WebhookFlushInterval time.Duration     `yaml:"webhook_flush_interval"`
	WebhookDedupWindow   time.Duration     `yaml:"webhook_dedup_window"`
	AsyncBufferSize      int               `yaml:"async_buffer_size"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  5 << 20,
		},
		Vision: VisionConfig{
			ModelPath:    "models/mobilenet_v2.onnx",
			LabelsPath:   "models/imagenet_labels.txt",
			InputSize:    224,
			TopK:         5,
			ApplySoftmax: true,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "kartavya.db",
		},
		Photos: PhotoConfig{
			Backend: "fs",
			Dir:     "photos",
		},
		Geocoder: GeocoderConfig{
			Enabled:   true,
			Endpoint:  "https://nominatim.openstreetmap.org",
			UserAgent: "Kartavya Civic App",
			Timeout:   10 * time.Second,
		},
		Output: OutputConfig{
			Sinks:                []string{"stdout"},
			WebhookBatchSize:     50,
			WebhookFlushInterval: 5 * time.Second,
			WebhookDedupWindow:   time.Minute,
			AsyncBufferSize:      1024,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by KARTAVYA_CONFIG, and KARTAVYA_* environment variables, in that order.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("KARTAVYA_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// mergeFile overlays the YAML file at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getenv("KARTAVYA_ADDR", c.Server.Addr)
	c.Server.ReadTimeout = getenvDuration("KARTAVYA_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getenvDuration("KARTAVYA_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getenvDuration("KARTAVYA_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.MaxUploadBytes = int64(getenvInt("KARTAVYA_MAX_UPLOAD_BYTES", int(c.Server.MaxUploadBytes)))

	c.Vision.ModelPath = getenvAllowEmpty("KARTAVYA_MODEL_PATH", c.Vision.ModelPath)
	c.Vision.LabelsPath = getenv("KARTAVYA_LABELS_PATH", c.Vision.LabelsPath)
	c.Vision.InputSize = getenvInt("KARTAVYA_INPUT_SIZE", c.Vision.InputSize)
	c.Vision.TopK = getenvInt("KARTAVYA_TOP_K", c.Vision.TopK)
	c.Vision.ApplySoftmax = getenvBool("KARTAVYA_APPLY_SOFTMAX", c.Vision.ApplySoftmax)

	c.Store.Driver = getenv("KARTAVYA_DB_DRIVER", c.Store.Driver)
	c.Store.DSN = getenv("KARTAVYA_DB_DSN", c.Store.DSN)

	c.Photos.Backend = getenv("KARTAVYA_PHOTO_BACKEND", c.Photos.Backend)
	c.Photos.Dir = getenv("KARTAVYA_PHOTO_DIR", c.Photos.Dir)
	c.Photos.Bucket = getenv("KARTAVYA_PHOTO_BUCKET", c.Photos.Bucket)
	c.Photos.Prefix = getenv("KARTAVYA_PHOTO_PREFIX", c.Photos.Prefix)
	c.Photos.Region = getenv("KARTAVYA_PHOTO_REGION", c.Photos.Region)

	c.Geocoder.Enabled = getenvBool("KARTAVYA_GEOCODER_ENABLED", c.Geocoder.Enabled)
	c.Geocoder.Endpoint = getenv("KARTAVYA_GEOCODER_ENDPOINT", c.Geocoder.Endpoint)
	c.Geocoder.UserAgent = getenv("KARTAVYA_GEOCODER_USER_AGENT", c.Geocoder.UserAgent)
	c.Geocoder.Timeout = getenvDuration("KARTAVYA_GEOCODER_TIMEOUT", c.Geocoder.Timeout)

	if v := os.Getenv("KARTAVYA_OUTPUT"); v != "" {
		c.Output.Sinks = splitList(v)
	}
	c.Output.Pretty = getenvBool("KARTAVYA_OUTPUT_PRETTY", c.Output.Pretty)
	c.Output.FilePath = getenv("KARTAVYA_OUTPUT_FILE", c.Output.FilePath)
	c.Output.FileMaxBytes = int64(getenvInt("KARTAVYA_OUTPUT_FILE_MAX_SIZE", int(c.Output.FileMaxBytes)))
	c.Output.WebhookURL = getenv("KARTAVYA_WEBHOOK_URL", c.Output.WebhookURL)
	if h := parseHeaders(os.Getenv("KARTAVYA_WEBHOOK_HEADERS")); h != nil {
		c.Output.WebhookHeaders = h
	}
	c.Output.WebhookBatchSize = getenvInt("KARTAVYA_WEBHOOK_BATCH_SIZE", c.Output.WebhookBatchSize)
	c.Output.WebhookFlushInterval = getenvDuration("KARTAVYA_WEBHOOK_FLUSH_INTERVAL", c.Output.WebhookFlushInterval)
	c.Output.WebhookDedupWindow = getenvDuration("KARTAVYA_WEBHOOK_DEDUP_WINDOW", c.Output.WebhookDedupWindow)
	c.Output.AsyncBufferSize = getenvInt("KARTAVYA_ASYNC_BUFFER_SIZE", c.Output.AsyncBufferSize)

	c.LogLevel = getenv("KARTAVYA_LOG_LEVEL", c.LogLevel)
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server addr must not be empty (KARTAVYA_ADDR)"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max upload bytes must be positive, got %d", c.Server.MaxUploadBytes))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must not be negative, got %v", c.Server.ShutdownTimeout))
	}

	// A missing model file is not an error: the server starts without a
	// model and every analysis falls back to the default severity.
	if c.Vision.ModelPath != "" {
		if c.Vision.LabelsPath == "" {
			errs = append(errs, errors.New("vision labels path is required when a model is set (KARTAVYA_LABELS_PATH)"))
		}
	}
	if c.Vision.InputSize <= 0 {
		errs = append(errs, fmt.Errorf("vision input size must be positive, got %d", c.Vision.InputSize))
	}
	if c.Vision.TopK <= 0 {
		errs = append(errs, fmt.Errorf("vision top_k must be positive, got %d", c.Vision.TopK))
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("store driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DSN == "" {
		errs = append(errs, errors.New("store dsn must not be empty (KARTAVYA_DB_DSN)"))
	}

	switch c.Photos.Backend {
	case "fs":
		if c.Photos.Dir == "" {
			errs = append(errs, errors.New("photo dir is required for the fs backend (KARTAVYA_PHOTO_DIR)"))
		}
	case "s3":
		if c.Photos.Bucket == "" {
			errs = append(errs, errors.New("photo bucket is required for the s3 backend (KARTAVYA_PHOTO_BUCKET)"))
		}
	default:
		errs = append(errs, fmt.Errorf("photo backend must be fs or s3, got %q", c.Photos.Backend))
	}

	if c.Geocoder.Enabled {
		if u, err := url.Parse(c.Geocoder.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("geocoder endpoint is not a valid URL: %q", c.Geocoder.Endpoint))
		}
	}

	for _, sink := range c.Output.Sinks {
		switch sink {
		case "stdout":
		case "file":
			if c.Output.FilePath == "" {
				errs = append(errs, errors.New("output file path is required for the file sink (KARTAVYA_OUTPUT_FILE)"))
			}
		case "webhook":
			if c.Output.WebhookURL == "" {
				errs = append(errs, errors.New("webhook url is required for the webhook sink (KARTAVYA_WEBHOOK_URL)"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown output sink %q", sink))
		}
	}
	if c.Output.WebhookDedupWindow < 0 {
		errs = append(errs, fmt.Errorf("webhook dedup window must not be negative, got %v", c.Output.WebhookDedupWindow))
	}
	if c.Output.AsyncBufferSize < 0 {
		errs = append(errs, fmt.Errorf("async buffer size must not be negative, got %d", c.Output.AsyncBufferSize))
	}

	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getenvAllowEmpty distinguishes an explicitly empty variable from an unset one.
func getenvAllowEmpty(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseHeaders reads "Key=Value,Key2=Value2". Malformed pairs are skipped.
func parseHeaders(s string) map[string]string {
	var m map[string]string
	for _, pair := range splitList(s) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		if m == nil {
			m = make(map[string]string)
		}
		m[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return m
}
