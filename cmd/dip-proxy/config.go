package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bundesdata/go-dip/pkg/client"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix scopes the proxy's environment variables (DIP_API_KEY,
// DIP_LISTEN__PORT, ...).
const envPrefix = "DIP"

// ProxyConfig is the proxy daemon's configuration. Precedence:
// env > config file > defaults.
type ProxyConfig struct {
	Listen  ListenConfig  `koanf:"listen"`
	API     APIConfig     `koanf:"api"`
	Cache   CacheConfig   `koanf:"cache"`
	Logging LoggingConfig `koanf:"logging"`
}

type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

type APIConfig struct {
	Key                   string `koanf:"key"`
	BaseURL               string `koanf:"baseUrl"`
	RateLimitDelayMs      int    `koanf:"rateLimitDelayMs"`
	MaxRetries            int    `koanf:"maxRetries"`
	TimeoutSeconds        int    `koanf:"timeoutSeconds"`
	ConnectorLimit        int    `koanf:"connectorLimit"`
	ConnectorLimitPerHost int    `koanf:"connectorLimitPerHost"`
}

type CacheConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Dir        string `koanf:"dir"`
	TTLSeconds int    `koanf:"ttlSeconds"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

func defaultConfigMap() map[string]any {
	return map[string]any{
		"listen": map[string]any{
			"address": "0.0.0.0",
			"port":    8080,
		},
		"api": map[string]any{
			"key":                   "",
			"baseUrl":               client.DefaultBaseURL,
			"rateLimitDelayMs":      100,
			"maxRetries":            3,
			"timeoutSeconds":        30,
			"connectorLimit":        client.DefaultConnectorLimit,
			"connectorLimitPerHost": client.DefaultConnectorLimitPerHost,
		},
		"cache": map[string]any{
			"enabled":    true,
			"dir":        ".dip_cache",
			"ttlSeconds": 3600,
		},
		"logging": map[string]any{
			"level":  "info",
			"pretty": false,
		},
	}
}

// loadConfig hydrates the proxy configuration from defaults, an optional
// JSON config file, and DIP_-prefixed environment variables, in that order.
func loadConfig(configFile string) (ProxyConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultConfigMap(), "."), nil); err != nil {
		return ProxyConfig{}, fmt.Errorf("config: load defaults: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return ProxyConfig{}, fmt.Errorf("config: file %s not found", configFile)
			}
			return ProxyConfig{}, fmt.Errorf("config: stat %s: %w", configFile, err)
		}
		if err := k.Load(file.Provider(configFile), json.Parser()); err != nil {
			return ProxyConfig{}, fmt.Errorf("config: load file %s: %w", configFile, err)
		}
	}

	// Collapsed single-underscore env names map onto camelCase config keys.
	canonical := map[string]string{
		"apikey":                    "api.key",
		"api.baseurl":               "api.baseUrl",
		"api.ratelimitdelayms":      "api.rateLimitDelayMs",
		"api.maxretries":            "api.maxRetries",
		"api.timeoutseconds":        "api.timeoutSeconds",
		"api.connectorlimit":        "api.connectorLimit",
		"api.connectorlimitperhost": "api.connectorLimitPerHost",
		"cache.ttlseconds":          "cache.ttlSeconds",
	}
	transform := func(s string) string {
		// Double underscores signal nesting (DIP_LISTEN__PORT -> listen.port);
		// single underscores collapse (DIP_API_KEY -> apikey).
		key := strings.TrimPrefix(s, envPrefix+"_")
		key = strings.ReplaceAll(key, "__", ".")
		key = strings.ReplaceAll(key, "_", "")
		key = strings.ToLower(key)
		if mapped, ok := canonical[key]; ok {
			return mapped
		}
		return key
	}
	if err := k.Load(env.Provider(envPrefix, ".", transform), nil); err != nil {
		return ProxyConfig{}, fmt.Errorf("config: load env: %w", err)
	}

	var cfg ProxyConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return ProxyConfig{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ProxyConfig{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the proxy cannot start with.
func (c ProxyConfig) Validate() error {
	if c.API.Key == "" {
		return errors.New("config: api key is required (set DIP_API_KEY)")
	}
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("config: invalid listen port %d", c.Listen.Port)
	}
	if c.API.MaxRetries < 1 {
		return fmt.Errorf("config: maxRetries must be >= 1 (got %d)", c.API.MaxRetries)
	}
	return nil
}

// clientConfig maps the proxy configuration onto the core client's surface.
func (c ProxyConfig) clientConfig() client.Config {
	cfg := client.DefaultConfig(c.API.Key)
	cfg.BaseURL = c.API.BaseURL
	cfg.RateLimitDelay = time.Duration(c.API.RateLimitDelayMs) * time.Millisecond
	cfg.MaxRetries = c.API.MaxRetries
	cfg.Timeout = time.Duration(c.API.TimeoutSeconds) * time.Second
	cfg.EnableCache = c.Cache.Enabled
	cfg.CacheDir = c.Cache.Dir
	cfg.CacheTTL = time.Duration(c.Cache.TTLSeconds) * time.Second
	cfg.ConnectorLimit = c.API.ConnectorLimit
	cfg.ConnectorLimitPerHost = c.API.ConnectorLimitPerHost
	return cfg
}
