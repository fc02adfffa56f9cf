// Package config loads the TOML configuration shared by the serve and watch
// commands.
//
// A minimal file:
//
//	[render]
//	kind = "news"
//
//	[source]
//	url_attr = "url"
//
//	[cache]
//	backend = "redis"
//	[cache.redis]
//	addr = "localhost:6379"
//
// Every section is optional; Default fills in the rest.
package config

import (
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/automation/pkg/cache"
	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/snapshot"
)

// Render kinds.
const (
	KindList   = "list"
	KindNews   = "news"
	KindCustom = "custom"
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Snapshot backends.
const (
	SnapshotFile  = "file"
	SnapshotCache = "cache"
)

// Config is the root of the configuration file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Render   RenderConfig   `toml:"render"`
	Channel  ChannelConfig  `toml:"channel"`
	Cache    CacheConfig    `toml:"cache"`
	Source   SourceConfig   `toml:"source"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Addr            string        `toml:"addr"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// RenderConfig selects the child kind and its markup. Template and
// TemplateFile only apply to the custom kind. An empty TargetTag picks the
// kind's own container element.
type RenderConfig struct {
	Kind         string `toml:"kind"`
	Template     string `toml:"template"`
	TemplateFile string `toml:"template_file"`
	TargetTag    string `toml:"target_tag"`
}

// ChannelConfig controls realtime channels. URLAttr names the attribute
// holding a child's ws:// or wss:// URL; empty disables channels.
type ChannelConfig struct {
	URLAttr  string `toml:"url_attr"`
	Protocol string `toml:"protocol"`
}

type CacheConfig struct {
	Backend string        `toml:"backend"`
	Dir     string        `toml:"dir"`
	TTL     time.Duration `toml:"ttl"`
	Redis   RedisConfig   `toml:"redis"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// SourceConfig controls backing-data fetch.
type SourceConfig struct {
	URLAttr     string            `toml:"url_attr"`
	Concurrency int               `toml:"concurrency"`
	Attempts    int               `toml:"attempts"`
	Timeout     time.Duration     `toml:"timeout"`
	Headers     map[string]string `toml:"headers"`
	MongoURI    string            `toml:"mongo_uri"`
}

// SnapshotConfig persists the served children across restarts. An empty ID
// disables snapshots. The cache backend stores them next to fetched data.
type SnapshotConfig struct {
	ID      string        `toml:"id"`
	Backend string        `toml:"backend"`
	Dir     string        `toml:"dir"`
	TTL     time.Duration `toml:"ttl"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Render: RenderConfig{Kind: KindList},
		Channel: ChannelConfig{
			URLAttr:  "channel",
			Protocol: "automation",
		},
		Cache: CacheConfig{
			Backend: CacheFile,
			TTL:     cache.FetchTTL,
		},
		Source: SourceConfig{
			URLAttr:     "url",
			Concurrency: 8,
			Attempts:    3,
			Timeout:     10 * time.Second,
		},
		Snapshot: SnapshotConfig{
			Backend: SnapshotFile,
			TTL:     snapshot.DefaultTTL,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over Default and validates the result. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, errors.Wrap(errors.ErrCodeNotFound, err, "config %s", path)
		}
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	if err := Decode(string(data), &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config %s", path)
	}
	return cfg, nil
}

// Decode parses TOML from data into cfg and validates it.
func Decode(data string, cfg *Config) error {
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse toml")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.New(errors.ErrCodeInvalidConfig, "unknown keys: %s", strings.Join(keys, ", "))
	}
	return cfg.Validate()
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "server.addr is required")
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server.shutdown_timeout must not be negative")
	}

	switch c.Render.Kind {
	case KindList, KindNews:
	case KindCustom:
		if (c.Render.Template == "") == (c.Render.TemplateFile == "") {
			return errors.New(errors.ErrCodeInvalidConfig, "render: custom kind needs exactly one of template or template_file")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "render.kind %q: want one of list, news, custom", c.Render.Kind)
	}

	if !slices.Contains([]string{CacheFile, CacheRedis, CacheNone}, c.Cache.Backend) {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.backend %q: want one of file, redis, none", c.Cache.Backend)
	}
	if c.Cache.Backend == CacheRedis && c.Cache.Redis.Addr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.redis.addr is required for the redis backend")
	}
	if c.Cache.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.ttl must not be negative")
	}

	if c.Source.Concurrency < 0 || c.Source.Attempts < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "source.concurrency and source.attempts must not be negative")
	}
	for k := range c.Source.Headers {
		if err := errors.ValidateAttributeKey(k); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "source.headers")
		}
	}

	if c.Snapshot.ID != "" {
		if err := snapshot.ValidateID(c.Snapshot.ID); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "snapshot.id")
		}
		if c.Snapshot.Backend != SnapshotFile && c.Snapshot.Backend != SnapshotCache {
			return errors.New(errors.ErrCodeInvalidConfig, "snapshot.backend %q: want file or cache", c.Snapshot.Backend)
		}
	}
	if c.Snapshot.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "snapshot.ttl must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "log.level %q: want debug, info, warn or error", c.Log.Level)
	}
	return nil
}

// TemplateSource returns the custom template markup, reading TemplateFile
// when set.
func (r RenderConfig) TemplateSource() (string, error) {
	if r.TemplateFile == "" {
		return r.Template, nil
	}
	data, err := os.ReadFile(r.TemplateFile)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfig, err, "read template %s", r.TemplateFile)
	}
	return string(data), nil
}
