package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"marketquotes/internal/validate"
)

type Server struct {
	Port              string `yaml:"port"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	// Development exposes internal error causes in responses.
	Development bool `yaml:"development"`
	// TrustProxy keys clients by the first X-Forwarded-For hop.
	TrustProxy bool   `yaml:"trust_proxy"`
	CORSOrigin string `yaml:"cors_origin"`
}

type Logging struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type RateLimit struct {
	Policy    string `yaml:"policy"`
	Requests  int    `yaml:"requests"`
	WindowSec int    `yaml:"window_sec"`
}

type Cache struct {
	MaxItems      int    `yaml:"max_items"`
	SweepSchedule string `yaml:"sweep_schedule"`
}

type Fetch struct {
	TimeoutMs        int `yaml:"timeout_ms"`
	BatchConcurrency int `yaml:"batch_concurrency"`
}

type Simulator struct {
	Timezone   string             `yaml:"timezone"`
	ForexRates map[string]float64 `yaml:"forex_rates"`
}

// Pacing throttles calls to one upstream. A per-minute budget wins over a
// minimum interval; zero values disable pacing.
type Pacing struct {
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute"`
	Burst                int `yaml:"burst"`
	MinRequestIntervalMs int `yaml:"min_request_interval_ms"`
}

type Yahoo struct {
	Enabled     bool     `yaml:"enabled"`
	Kinds       []string `yaml:"kinds"`
	StockSuffix string   `yaml:"stock_suffix"`
	Pacing      `yaml:",inline"`
}

type JSONPaths struct {
	Price         string `yaml:"price"`
	Change        string `yaml:"change"`
	ChangePercent string `yaml:"change_percent"`
	PreviousClose string `yaml:"previous_close"`
	Currency      string `yaml:"currency"`
	Name          string `yaml:"name"`
	Timestamp     string `yaml:"timestamp"`
}

type MarketAPI struct {
	Enabled   bool      `yaml:"enabled"`
	Name      string    `yaml:"name"`
	Endpoint  string    `yaml:"endpoint"`
	APIKey    string    `yaml:"api_key"`
	Currency  string    `yaml:"currency"`
	Kinds     []string  `yaml:"kinds"`
	TimeoutMs int       `yaml:"timeout_ms"`
	Paths     JSONPaths `yaml:"paths"`
	Pacing    `yaml:",inline"`
}

type EndpointTTL struct {
	ItemTTLSec  int `yaml:"item_ttl_sec"`
	BatchTTLSec int `yaml:"batch_ttl_sec"`
}

type Config struct {
	Server    Server                 `yaml:"server"`
	Logging   Logging                `yaml:"logging"`
	RateLimit RateLimit              `yaml:"rate_limit"`
	Cache     Cache                  `yaml:"cache"`
	Fetch     Fetch                  `yaml:"fetch"`
	Simulator Simulator              `yaml:"simulator"`
	Yahoo     Yahoo                  `yaml:"yahoo"`
	MarketAPI MarketAPI              `yaml:"marketapi"`
	Endpoints map[string]EndpointTTL `yaml:"endpoints"`
}

// Kinds accepted in yahoo.kinds and marketapi.kinds.
var Kinds = []string{"stock", "bond", "forex", "mutual_fund", "derivative"}

func Default() Config {
	return Config{
		Server:    Server{Port: "8080", RequestTimeoutSec: 10, CORSOrigin: "*"},
		Logging:   Logging{Level: "info", Format: "json", Output: "stdout"},
		RateLimit: RateLimit{Policy: "window", Requests: 100, WindowSec: 60},
		Cache:     Cache{MaxItems: 50000, SweepSchedule: "@every 1m"},
		Fetch:     Fetch{TimeoutMs: 5000, BatchConcurrency: validate.MaxBatch},
		Simulator: Simulator{Timezone: "UTC"},
		Yahoo: Yahoo{
			Enabled: true,
			Kinds:   []string{"stock", "mutual_fund", "forex"},
			Pacing:  Pacing{MaxRequestsPerMinute: 120, Burst: validate.MaxBatch},
		},
		MarketAPI: MarketAPI{
			Enabled:   false,
			Name:      "marketapi",
			Kinds:     []string{"stock", "mutual_fund"},
			TimeoutMs: 4000,
			Pacing:    Pacing{MinRequestIntervalMs: 200},
		},
		Endpoints: map[string]EndpointTTL{
			"stocks":       {ItemTTLSec: 60, BatchTTLSec: 30},
			"bonds":        {ItemTTLSec: 3600, BatchTTLSec: 300},
			"forex":        {ItemTTLSec: 300, BatchTTLSec: 60},
			"mutual-funds": {ItemTTLSec: 3600, BatchTTLSec: 300},
			"derivatives":  {ItemTTLSec: 30, BatchTTLSec: 5},
		},
	}
}

// Load reads YAML config from path on top of Default. If path is empty it
// tries config.yaml in the working directory and falls back to defaults.
// Environment variables override select fields, secrets in particular.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envString("PORT", &cfg.Server.Port)
	envInt("REQUEST_TIMEOUT_SEC", &cfg.Server.RequestTimeoutSec)
	envBool("DEVELOPMENT", &cfg.Server.Development)
	envBool("TRUST_PROXY", &cfg.Server.TrustProxy)

	envString("LOG_LEVEL", &cfg.Logging.Level)
	envString("LOG_FORMAT", &cfg.Logging.Format)
	envString("LOG_OUTPUT", &cfg.Logging.Output)

	envString("RATE_LIMIT_POLICY", &cfg.RateLimit.Policy)
	envInt("RATE_LIMIT_REQUESTS", &cfg.RateLimit.Requests)
	envInt("RATE_LIMIT_WINDOW_SEC", &cfg.RateLimit.WindowSec)

	envInt("FETCH_TIMEOUT_MS", &cfg.Fetch.TimeoutMs)
	envInt("CACHE_MAX_ITEMS", &cfg.Cache.MaxItems)
	envString("SIMULATOR_TIMEZONE", &cfg.Simulator.Timezone)

	envBool("YAHOO_ENABLED", &cfg.Yahoo.Enabled)
	envBool("MARKETAPI_ENABLED", &cfg.MarketAPI.Enabled)
	envString("MARKETAPI_ENDPOINT", &cfg.MarketAPI.Endpoint)
	envString("MARKETAPI_API_KEY", &cfg.MarketAPI.APIKey)
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// envInt ignores values that do not parse.
func envInt(key string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if x, err := strconv.Atoi(v); err == nil {
			*dst = x
		}
	}
}

func envBool(key string, dst *bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		*dst = true
	case "0", "false", "no", "n":
		*dst = false
	}
}

// Validate reports every problem it finds, joined.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.RequestTimeoutSec <= 0 {
		errs = append(errs, errors.New("server.request_timeout_sec must be greater than 0"))
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not json or text", c.Logging.Format))
	}
	switch c.RateLimit.Policy {
	case "", "window", "bucket":
	default:
		errs = append(errs, fmt.Errorf("rate_limit.policy %q is not window or bucket", c.RateLimit.Policy))
	}
	if c.RateLimit.Requests <= 0 {
		errs = append(errs, errors.New("rate_limit.requests must be greater than 0"))
	}
	if c.RateLimit.WindowSec <= 0 {
		errs = append(errs, errors.New("rate_limit.window_sec must be greater than 0"))
	}
	if c.Cache.MaxItems < 0 {
		errs = append(errs, errors.New("cache.max_items must not be negative"))
	}
	if c.Fetch.TimeoutMs <= 0 {
		errs = append(errs, errors.New("fetch.timeout_ms must be greater than 0"))
	}
	if c.Fetch.BatchConcurrency <= 0 {
		errs = append(errs, errors.New("fetch.batch_concurrency must be greater than 0"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("simulator.timezone: %w", err))
	}
	for pair, rate := range c.Simulator.ForexRates {
		if rate <= 0 {
			errs = append(errs, fmt.Errorf("simulator.forex_rates.%s must be greater than 0", pair))
		}
	}
	errs = append(errs, validKinds("yahoo.kinds", c.Yahoo.Kinds)...)
	if c.MarketAPI.Enabled {
		if c.MarketAPI.Endpoint == "" {
			errs = append(errs, errors.New("marketapi.endpoint is required when marketapi is enabled"))
		}
		errs = append(errs, validKinds("marketapi.kinds", c.MarketAPI.Kinds)...)
	}
	for name, ttl := range c.Endpoints {
		if _, ok := Default().Endpoints[name]; !ok {
			errs = append(errs, fmt.Errorf("endpoints.%s is not a known endpoint", name))
			continue
		}
		if ttl.ItemTTLSec <= 0 || ttl.BatchTTLSec <= 0 {
			errs = append(errs, fmt.Errorf("endpoints.%s TTLs must be greater than 0", name))
		}
	}
	return errors.Join(errs...)
}

func validKinds(field string, kinds []string) []error {
	var errs []error
	for _, k := range kinds {
		known := false
		for _, want := range Kinds {
			if k == want {
				known = true
				break
			}
		}
		if !known {
			errs = append(errs, fmt.Errorf("%s: unknown kind %q", field, k))
		}
	}
	return errs
}

// Location resolves the simulator's calendar time zone.
func (c Config) Location() (*time.Location, error) {
	if c.Simulator.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Simulator.Timezone)
}

func (c Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSec) * time.Second
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutMs) * time.Millisecond
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSec) * time.Second
}

// TTLs returns the configured item and batch TTLs for an endpoint and whether
// the endpoint is configured at all.
func (c Config) TTLs(endpoint string) (item, batch time.Duration, ok bool) {
	ttl, ok := c.Endpoints[endpoint]
	if !ok {
		return 0, 0, false
	}
	return time.Duration(ttl.ItemTTLSec) * time.Second, time.Duration(ttl.BatchTTLSec) * time.Second, true
}

func (p Pacing) MinInterval() time.Duration {
	return time.Duration(p.MinRequestIntervalMs) * time.Millisecond
}
