package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketquotes/internal/validate"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 100, cfg.RateLimit.Requests)
	require.Equal(t, time.Minute, cfg.RateWindow())
	require.Equal(t, 5*time.Second, cfg.FetchTimeout())

	// a full batch neither queues behind itself nor runs out of yahoo tokens
	require.Equal(t, validate.MaxBatch, cfg.Fetch.BatchConcurrency)
	require.GreaterOrEqual(t, cfg.Yahoo.Burst, validate.MaxBatch)

	item, batch, ok := cfg.TTLs("derivatives")
	require.True(t, ok)
	require.Equal(t, 30*time.Second, item)
	require.Equal(t, 5*time.Second, batch)

	_, _, ok = cfg.TTLs("crypto")
	require.False(t, ok)
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
  trust_proxy: true
rate_limit:
  policy: bucket
  requests: 20
simulator:
  timezone: Asia/Kolkata
  forex_rates:
    USDTHB: 36.5
marketapi:
  enabled: true
  endpoint: http://quotes.local
  kinds: [stock, bond]
  max_requests_per_minute: 30
  paths:
    price: data.last
endpoints:
  stocks:
    item_ttl_sec: 15
    batch_ttl_sec: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "9090", cfg.Server.Port)
	require.True(t, cfg.Server.TrustProxy)
	require.Equal(t, "bucket", cfg.RateLimit.Policy)
	require.Equal(t, 20, cfg.RateLimit.Requests)
	require.Equal(t, 60, cfg.RateLimit.WindowSec)
	require.Equal(t, 36.5, cfg.Simulator.ForexRates["USDTHB"])
	require.Equal(t, []string{"stock", "bond"}, cfg.MarketAPI.Kinds)
	require.Equal(t, 30, cfg.MarketAPI.MaxRequestsPerMinute)
	require.Equal(t, "data.last", cfg.MarketAPI.Paths.Price)

	// untouched endpoints keep their defaults
	item, _, _ := cfg.TTLs("stocks")
	require.Equal(t, 15*time.Second, item)
	item, _, _ = cfg.TTLs("bonds")
	require.Equal(t, time.Hour, item)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("RATE_LIMIT_WINDOW_SEC", "not-a-number")
	t.Setenv("MARKETAPI_ENABLED", "yes")
	t.Setenv("MARKETAPI_ENDPOINT", "http://env.local")
	t.Setenv("MARKETAPI_API_KEY", "secret")
	t.Setenv("YAHOO_ENABLED", "false")
	t.Setenv("DEVELOPMENT", "1")

	cfg, err := Load(writeConfig(t, "server:\n  port: \"9090\"\n"))
	require.NoError(t, err)

	require.Equal(t, "7000", cfg.Server.Port)
	require.Equal(t, 5, cfg.RateLimit.Requests)
	require.Equal(t, 60, cfg.RateLimit.WindowSec)
	require.True(t, cfg.MarketAPI.Enabled)
	require.Equal(t, "http://env.local", cfg.MarketAPI.Endpoint)
	require.Equal(t, "secret", cfg.MarketAPI.APIKey)
	require.False(t, cfg.Yahoo.Enabled)
	require.True(t, cfg.Server.Development)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")

	_, err = Load(writeConfig(t, "server: [unclosed"))
	require.ErrorContains(t, err, "parse config")

	_, err = Load(writeConfig(t, "rate_limit:\n  requests: 0\n"))
	require.ErrorContains(t, err, "rate_limit.requests")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := map[string]func(c *Config){
		"policy":          func(c *Config) { c.RateLimit.Policy = "leaky" },
		"window":          func(c *Config) { c.RateLimit.WindowSec = 0 },
		"timeout":         func(c *Config) { c.Fetch.TimeoutMs = -1 },
		"concurrency":     func(c *Config) { c.Fetch.BatchConcurrency = 0 },
		"timezone":        func(c *Config) { c.Simulator.Timezone = "Mars/Olympus" },
		"forex rate":      func(c *Config) { c.Simulator.ForexRates = map[string]float64{"USDINR": 0} },
		"yahoo kind":      func(c *Config) { c.Yahoo.Kinds = []string{"crypto"} },
		"marketapi url":   func(c *Config) { c.MarketAPI.Enabled = true },
		"endpoint name":   func(c *Config) { c.Endpoints["crypto"] = EndpointTTL{ItemTTLSec: 1, BatchTTLSec: 1} },
		"endpoint ttl":    func(c *Config) { c.Endpoints["bonds"] = EndpointTTL{ItemTTLSec: 60} },
		"log format":      func(c *Config) { c.Logging.Format = "xml" },
		"request timeout": func(c *Config) { c.Server.RequestTimeoutSec = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestPacing_MinInterval(t *testing.T) {
	t.Parallel()

	require.Equal(t, 200*time.Millisecond, Default().MarketAPI.MinInterval())
	require.Zero(t, Default().Yahoo.MinInterval())
}
