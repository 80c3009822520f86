package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	App struct {
		Name     string `toml:"name"`
		LogLevel string `toml:"log_level"`
	} `toml:"app"`

	Storage struct {
		// kline 分区按交易所分库: <exchange>/kline_<base>_<quote>
		Backend string `toml:"backend"`

		Mongo struct {
			URI               string `toml:"uri"`
			ConnectTimeoutSec int    `toml:"connect_timeout_sec"`
		} `toml:"mongo"`

		SQLite struct {
			Path string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			DSN string `toml:"dsn"`
		} `toml:"postgres"`
	} `toml:"storage"`

	Events struct {
		Redis struct {
			Enabled      bool   `toml:"enabled"`
			Addr         string `toml:"addr"`
			Password     string `toml:"password"`
			DB           int    `toml:"db"`
			Prefix       string `toml:"prefix"`
			TTLSeconds   int    `toml:"ttl_seconds"`
			OrderStream  string `toml:"order_stream"`
			OrderChannel string `toml:"order_channel"`
		} `toml:"redis"`

		Kafka struct {
			Enabled    bool     `toml:"enabled"`
			Brokers    []string `toml:"brokers"`
			ClientID   string   `toml:"client_id"`
			KlineTopic string   `toml:"kline_topic"`
			OrderTopic string   `toml:"order_topic"`
		} `toml:"kafka"`
	} `toml:"events"`

	Collector struct {
		Exchanges     []string `toml:"exchanges"`
		Symbols       []string `toml:"symbols"`
		Interval      string   `toml:"interval"`
		WsURL         string   `toml:"ws_url"`
		OnlyFinal     bool     `toml:"only_final"`
		StatsEverySec int      `toml:"stats_every_sec"`
	} `toml:"collector"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes a config from a TOML string (tests, embedded defaults).
func Parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) MongoConnectTimeout() time.Duration {
	return time.Duration(c.Storage.Mongo.ConnectTimeoutSec) * time.Second
}

func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Events.Redis.TTLSeconds) * time.Second
}

func (c *Config) StatsEvery() time.Duration {
	return time.Duration(c.Collector.StatsEverySec) * time.Second
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "quantstore"
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Mongo.ConnectTimeoutSec <= 0 {
		cfg.Storage.Mongo.ConnectTimeoutSec = 10
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/quantstore.db"
	}
	if cfg.Events.Redis.Prefix == "" {
		cfg.Events.Redis.Prefix = "quantstore"
	}
	if cfg.Events.Kafka.ClientID == "" {
		cfg.Events.Kafka.ClientID = cfg.App.Name
	}
	if len(cfg.Collector.Exchanges) == 0 {
		cfg.Collector.Exchanges = []string{"BINANCE"}
	}
	if cfg.Collector.Interval == "" {
		cfg.Collector.Interval = "1m"
	}
	if cfg.Collector.StatsEverySec <= 0 {
		cfg.Collector.StatsEverySec = 60
	}
}

func validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case BackendMemory, BackendSQLite:
	case BackendMongo:
		if strings.TrimSpace(cfg.Storage.Mongo.URI) == "" {
			return errors.New("storage.mongo.uri empty but backend is mongo")
		}
	case BackendPostgres:
		if strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
			return errors.New("storage.postgres.dsn empty but backend is postgres")
		}
	default:
		return fmt.Errorf("storage.backend %q unknown", cfg.Storage.Backend)
	}

	if cfg.Events.Redis.Enabled && strings.TrimSpace(cfg.Events.Redis.Addr) == "" {
		return errors.New("events.redis.addr empty but enabled")
	}
	if cfg.Events.Kafka.Enabled && len(cfg.Events.Kafka.Brokers) == 0 {
		return errors.New("events.kafka.brokers empty but enabled")
	}

	cfg.Collector.Exchanges = normalize(cfg.Collector.Exchanges)
	cfg.Collector.Symbols = normalize(cfg.Collector.Symbols)
	for _, s := range cfg.Collector.Symbols {
		if parts := strings.Split(s, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("collector.symbols: %q is not BASE/QUOTE", s)
		}
	}
	return nil
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
