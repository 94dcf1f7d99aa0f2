package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shopcart/internal/cart"
	"github.com/roach88/shopcart/internal/checkout"
)

// Contract names the order submission protocol the backend speaks.
const (
	ContractBatch  = "batch"
	ContractLegacy = "legacy"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "SHOPCART_"

// Config holds every shopcart setting.
type Config struct {
	BaseURL           string        `yaml:"base_url"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	Contract          string        `yaml:"contract"`
	Provider          string        `yaml:"provider"`
	IdempotencyHeader bool          `yaml:"idempotency_header"`
	Storage           Storage       `yaml:"storage"`
}

// Storage selects where the cart and selection live.
type Storage struct {
	Driver       string        `yaml:"driver"`
	Path         string        `yaml:"path"`
	RedisAddr    string        `yaml:"redis_addr"`
	RedisPrefix  string        `yaml:"redis_prefix"`
	CartKey      string        `yaml:"cart_key"`
	SelectionKey string        `yaml:"selection_key"`
	SelectionTTL time.Duration `yaml:"selection_ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:  "http://localhost:8080",
		Contract: ContractBatch,
		Provider: checkout.DefaultProvider,
		Storage: Storage{
			Driver:       DriverSQLite,
			Path:         "shopcart.db",
			RedisPrefix:  "shopcart:",
			CartKey:      cart.DefaultKey,
			SelectionKey: cart.DefaultSelectionKey,
			SelectionTTL: 30 * time.Minute,
		},
	}
}

// Load returns Default overlaid with the YAML file at path (skipped when
// path is empty) and then the process environment.
func Load(path string) (Config, error) {
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load with an explicit environment lookup.
func LoadWith(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse returns Default overlaid with the YAML document in data.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decodeYAML(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("BASE_URL", &cfg.BaseURL)
	str("CONTRACT", &cfg.Contract)
	str("PROVIDER", &cfg.Provider)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("STORAGE_PATH", &cfg.Storage.Path)
	str("REDIS_ADDR", &cfg.Storage.RedisAddr)
	str("REDIS_PREFIX", &cfg.Storage.RedisPrefix)
	str("CART_KEY", &cfg.Storage.CartKey)
	str("SELECTION_KEY", &cfg.Storage.SelectionKey)

	if err := dur("REQUEST_TIMEOUT", &cfg.RequestTimeout); err != nil {
		return err
	}
	if err := dur("SELECTION_TTL", &cfg.Storage.SelectionTTL); err != nil {
		return err
	}

	if v, ok := lookup(EnvPrefix + "IDEMPOTENCY_HEADER"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sIDEMPOTENCY_HEADER: %w", EnvPrefix, err)
		}
		cfg.IdempotencyHeader = b
	}
	return nil
}
