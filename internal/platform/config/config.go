package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dErrors "checkscan/pkg/domain-errors"
)

// Config is the full runtime configuration. A YAML file provides the base,
// environment variables override it so containers stay lean.
type Config struct {
	Server   Server         `yaml:"server"`
	Scan     Scan           `yaml:"scan"`
	Remote   Remote         `yaml:"remote"`
	OCR      OCR            `yaml:"ocr"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Log      Log            `yaml:"log"`
}

// Server captures the local API listener.
type Server struct {
	Addr string `yaml:"addr"`
}

// Scan configures the drop folder walk.
type Scan struct {
	StoragePath string `yaml:"storagePath"`
	Workers     int    `yaml:"workers"`
}

// Remote configures the registration service endpoints.
// URL fields may reference each other with ${field} placeholders.
type Remote struct {
	BaseURL               string        `yaml:"baseUrl"`
	ScannedItemsURL       string        `yaml:"scannedItemsUrl"`
	RevertScannedItemsURL string        `yaml:"revertScannedItemsUrl"`
	IPEchoURL             string        `yaml:"ipEchoUrl"`
	PageItems             int           `yaml:"pageItems"`
	Concurrency           int           `yaml:"concurrency"`
	RequestTimeout        time.Duration `yaml:"requestTimeout"`
}

// OCR selects the machine code extractor.
type OCR struct {
	Mode     string `yaml:"mode"` // "text" or "tesseract"
	Language string `yaml:"language"`
	DataPath string `yaml:"dataPath"`
}

// RedisConfig configures the optional Redis history store.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"poolSize"`
	MinIdleConns int           `yaml:"minIdleConns"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	HistoryTTL   time.Duration `yaml:"historyTtl"`
}

// DatabaseConfig configures the optional Postgres audit store.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"maxOpenConns"`
}

// KafkaConfig configures the optional audit event topic.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration usable for local development.
func Default() Config {
	return Config{
		Server: Server{Addr: "127.0.0.1:8085"},
		Scan:   Scan{StoragePath: "./scans", Workers: 4},
		Remote: Remote{
			BaseURL:               "http://localhost:8080",
			ScannedItemsURL:       "${baseUrl}/api/v1/scanned-items",
			RevertScannedItemsURL: "${baseUrl}/api/v1/scanned-items/revert",
			IPEchoURL:             "https://httpbin.org/ip",
			PageItems:             20,
			Concurrency:           4,
			RequestTimeout:        30 * time.Second,
		},
		OCR: OCR{Mode: "text", Language: "fra"},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			HistoryTTL:   30 * 24 * time.Hour,
		},
		Database: DatabaseConfig{MaxOpenConns: 5},
		Kafka:    KafkaConfig{Topic: "checkscan.batches"},
		Log:      Log{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path (optional when empty or missing), resolves
// placeholders and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg, os.Getenv)
	cfg.Remote.resolvePlaceholders()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from defaults and environment variables only.
func FromEnv() (Config, error) {
	return Load(os.Getenv("CHECKSCAN_CONFIG"))
}

// Validate checks the fields the pipeline cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Scan.StoragePath) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "scan storage path is required")
	}
	if c.Remote.ScannedItemsURL == "" || c.Remote.RevertScannedItemsURL == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "scanned items and revert URLs are required")
	}
	if strings.Contains(c.Remote.ScannedItemsURL, "${") || strings.Contains(c.Remote.RevertScannedItemsURL, "${") {
		return dErrors.New(dErrors.CodeInvalidInput, "unresolved placeholder in remote URLs")
	}
	if c.Remote.PageItems <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "pageItems must be positive")
	}
	switch c.OCR.Mode {
	case "text", "tesseract":
	default:
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown ocr mode %q", c.OCR.Mode))
	}
	return nil
}

var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)}`)

func (r *Remote) resolvePlaceholders() {
	values := map[string]string{
		"baseUrl":               r.BaseURL,
		"scannedItemsUrl":       r.ScannedItemsURL,
		"revertScannedItemsUrl": r.RevertScannedItemsURL,
	}
	resolve := func(s string) string {
		return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
			key := placeholderPattern.FindStringSubmatch(m)[1]
			if v, ok := values[key]; ok && !strings.Contains(v, "${") {
				return v
			}
			return m
		})
	}
	r.BaseURL = resolve(r.BaseURL)
	values["baseUrl"] = r.BaseURL
	r.ScannedItemsURL = resolve(r.ScannedItemsURL)
	values["scannedItemsUrl"] = r.ScannedItemsURL
	r.RevertScannedItemsURL = resolve(r.RevertScannedItemsURL)
}

func applyEnv(cfg *Config, getenv func(string) string) {
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setString(&cfg.Server.Addr, "CHECKSCAN_ADDR")
	setString(&cfg.Scan.StoragePath, "CHECKSCAN_SCAN_PATH")
	setInt(&cfg.Scan.Workers, "CHECKSCAN_SCAN_WORKERS")
	setString(&cfg.Remote.BaseURL, "CHECKSCAN_BASE_URL")
	setString(&cfg.Remote.ScannedItemsURL, "CHECKSCAN_SCANNED_ITEMS_URL")
	setString(&cfg.Remote.RevertScannedItemsURL, "CHECKSCAN_REVERT_URL")
	setInt(&cfg.Remote.PageItems, "CHECKSCAN_PAGE_ITEMS")
	setInt(&cfg.Remote.Concurrency, "CHECKSCAN_SUBMIT_CONCURRENCY")
	setString(&cfg.OCR.Mode, "CHECKSCAN_OCR_MODE")
	setString(&cfg.OCR.DataPath, "TESSDATA_PREFIX")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")
	if v := getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
}
