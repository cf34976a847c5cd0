// Package config loads the service settings from an optional YAML file, a
// .env file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/jzajpt/orderbook-aggregator-service/domain"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr         = "0.0.0.0:50051"
	DefaultMetricsAddr        = ":9090"
	DefaultFanInCapacity      = 32
	DefaultSubscriberBuffer   = 4
	DefaultStaleAfter         = 30 * time.Second
	DefaultLogLevel           = "info"
	DefaultBinanceWSURL       = "wss://stream.binance.com:9443/ws"
	DefaultBitstampWSURL      = "wss://ws.bitstamp.net"
	DefaultKucoinBaseURL      = "https://api.kucoin.com"
	DefaultKucoinPollInterval = time.Second
)

var DefaultExchanges = []string{"binance", "bitstamp"}

type Config struct {
	// Pair is the market to aggregate, e.g. "eth/btc".
	Pair             string        `yaml:"pair"`
	ListenAddr       string        `yaml:"listen_addr"`
	MetricsAddr      string        `yaml:"metrics_addr"`
	Depth            int           `yaml:"depth"`
	FanInCapacity    int           `yaml:"fan_in_capacity"`
	SubscriberBuffer int           `yaml:"subscriber_buffer"`
	StaleAfter       time.Duration `yaml:"stale_after"`
	Exchanges        []string      `yaml:"exchanges"`

	Log      LogConfig      `yaml:"log"`
	Binance  BinanceConfig  `yaml:"binance"`
	Bitstamp BitstampConfig `yaml:"bitstamp"`
	Kucoin   KucoinConfig   `yaml:"kucoin"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Debug bool   `yaml:"debug"`
}

type BinanceConfig struct {
	WSURL string `yaml:"ws_url"`
}

type BitstampConfig struct {
	WSURL string `yaml:"ws_url"`
}

type KucoinConfig struct {
	BaseURL      string        `yaml:"base_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Load reads .env (if present), then the YAML file at path (skipped when path
// is empty), then environment overrides, fills defaults and validates.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	// stale_after and metrics_addr are seeded up front: zero and empty turn
	// them off.
	cfg := &Config{StaleAfter: DefaultStaleAfter, MetricsAddr: DefaultMetricsAddr}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Default returns a config with every default filled in and no pair set.
func Default() *Config {
	cfg := &Config{StaleAfter: DefaultStaleAfter, MetricsAddr: DefaultMetricsAddr}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Depth == 0 {
		c.Depth = domain.DefaultDepthLimit
	}
	if c.FanInCapacity == 0 {
		c.FanInCapacity = DefaultFanInCapacity
	}
	if c.SubscriberBuffer == 0 {
		c.SubscriberBuffer = DefaultSubscriberBuffer
	}
	if len(c.Exchanges) == 0 {
		c.Exchanges = append([]string(nil), DefaultExchanges...)
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Binance.WSURL == "" {
		c.Binance.WSURL = DefaultBinanceWSURL
	}
	if c.Bitstamp.WSURL == "" {
		c.Bitstamp.WSURL = DefaultBitstampWSURL
	}
	if c.Kucoin.BaseURL == "" {
		c.Kucoin.BaseURL = DefaultKucoinBaseURL
	}
	if c.Kucoin.PollInterval == 0 {
		c.Kucoin.PollInterval = DefaultKucoinPollInterval
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []string

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}

	str("PAIR", &c.Pair)
	str("LISTEN_ADDR", &c.ListenAddr)
	str("METRICS_ADDR", &c.MetricsAddr)
	num("DEPTH", &c.Depth)
	num("FAN_IN_CAPACITY", &c.FanInCapacity)
	num("SUBSCRIBER_BUFFER", &c.SubscriberBuffer)
	dur("STALE_AFTER", &c.StaleAfter)
	str("LOG_LEVEL", &c.Log.Level)
	str("BINANCE_WS_URL", &c.Binance.WSURL)
	str("BITSTAMP_WS_URL", &c.Bitstamp.WSURL)
	str("KUCOIN_BASE_URL", &c.Kucoin.BaseURL)
	dur("KUCOIN_POLL_INTERVAL", &c.Kucoin.PollInterval)

	if v, ok := lookup("EXCHANGES"); ok {
		c.Exchanges = splitList(v)
	}
	if v, ok := lookup("DEBUG"); ok {
		debug, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Sprintf("DEBUG: %v", err))
		} else {
			c.Log.Debug = debug
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Pair) == "" {
		errs = append(errs, "pair: required")
	} else if _, err := domain.NewMarketSymbolFromString(c.Pair); err != nil {
		errs = append(errs, fmt.Sprintf("pair: %v", err))
	}
	if c.ListenAddr == "" {
		errs = append(errs, "listen_addr: required")
	}
	if c.Depth <= 0 {
		errs = append(errs, "depth: must be positive")
	}
	if c.FanInCapacity <= 0 {
		errs = append(errs, "fan_in_capacity: must be positive")
	}
	if c.SubscriberBuffer <= 0 {
		errs = append(errs, "subscriber_buffer: must be positive")
	}
	if c.StaleAfter < 0 {
		errs = append(errs, "stale_after: must not be negative")
	}
	if c.Kucoin.PollInterval <= 0 {
		errs = append(errs, "kucoin.poll_interval: must be positive")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level: %v", err))
	}

	seen := make(map[domain.Exchange]struct{})
	for _, name := range c.Exchanges {
		exchange, err := domain.ParseExchange(name)
		if err != nil {
			errs = append(errs, fmt.Sprintf("exchanges: %v", err))
			continue
		}
		seen[exchange] = struct{}{}
	}
	if len(seen) < 2 {
		errs = append(errs, "exchanges: at least two distinct exchanges are required")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// MarketSymbol parses Pair. Call it on a validated config.
func (c *Config) MarketSymbol() (*domain.MarketSymbol, error) {
	return domain.NewMarketSymbolFromString(c.Pair)
}

// EnabledExchanges returns the configured exchanges without duplicates, in
// the order they were listed. Unknown names are skipped.
func (c *Config) EnabledExchanges() []domain.Exchange {
	seen := make(map[domain.Exchange]struct{})
	result := make([]domain.Exchange, 0, len(c.Exchanges))
	for _, name := range c.Exchanges {
		exchange, err := domain.ParseExchange(name)
		if err != nil {
			continue
		}
		if _, ok := seen[exchange]; ok {
			continue
		}
		seen[exchange] = struct{}{}
		result = append(result, exchange)
	}
	return result
}

func splitList(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
