// Package config loads settings from defaults, an optional config file and
// AMBROSIAL_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"ambrosial/internal/fetch"
	"ambrosial/internal/manifest"
	"ambrosial/internal/store"
)

const EnvPrefix = "AMBROSIAL"

// Sink names for changelog_sink and manifest_sink.
const (
	SinkNone  = "none"
	SinkFile  = "file"
	SinkKafka = "kafka"
	SinkBoth  = "both"
)

type Config struct {
	AppName        string        `mapstructure:"app_name"`
	LogLevel       string        `mapstructure:"log_level"`
	DDAV           bool          `mapstructure:"ddav"`
	OrdersURL      string        `mapstructure:"orders_url"`
	ProfileURL     string        `mapstructure:"profile_url"`
	Cookie         string        `mapstructure:"cookie"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	FetchLimit     int           `mapstructure:"fetch_limit"`
	DataDir        string        `mapstructure:"data_dir"`
	StoreFormat    string        `mapstructure:"store_format"`
	StoreFile      string        `mapstructure:"store_file"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
	ChangelogSink  string        `mapstructure:"changelog_sink"`
	ManifestSink   string        `mapstructure:"manifest_sink"`
	KafkaBootstrap string        `mapstructure:"kafka_bootstrap"`
	TopicChangelog string        `mapstructure:"topic_changelog"`
	TopicManifest  string        `mapstructure:"topic_manifest"`
	ManifestKey    string        `mapstructure:"manifest_key"`
}

var defaults = map[string]any{
	"app_name":        "ambrosial",
	"log_level":       "info",
	"ddav":            false,
	"orders_url":      fetch.DefaultOrdersURL,
	"profile_url":     fetch.DefaultProfileURL,
	"cookie":          "",
	"request_timeout": fetch.DefaultTimeout,
	"fetch_limit":     0,
	"data_dir":        "data",
	"store_format":    string(store.FormatJSON),
	"store_file":      "",
	"metrics_addr":    "",
	"changelog_sink":  SinkNone,
	"manifest_sink":   SinkFile,
	"kafka_bootstrap": "localhost:9092",
	"topic_changelog": "ambrosial.orders.changelog",
	"topic_manifest":  "ambrosial.manifest",
	"manifest_key":    manifest.DefaultKey,
}

// Load reads configFile when it is non-empty; its type follows the extension.
func Load(configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for k, d := range defaults {
		v.SetDefault(k, d)
		if err := v.BindEnv(k); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", k, err)
		}
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func (c Config) Validate() error {
	if _, err := store.ParseFormat(c.StoreFormat); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.FetchLimit < 0 {
		return fmt.Errorf("fetch_limit must not be negative, got %d", c.FetchLimit)
	}
	switch c.ChangelogSink {
	case SinkNone, SinkFile, SinkKafka, SinkBoth:
	default:
		return fmt.Errorf("changelog_sink: unknown sink %q", c.ChangelogSink)
	}
	switch c.ManifestSink {
	case SinkFile, SinkKafka, SinkBoth:
	default:
		return fmt.Errorf("manifest_sink: unknown sink %q", c.ManifestSink)
	}
	if (usesKafka(c.ChangelogSink) || usesKafka(c.ManifestSink)) && len(c.Brokers()) == 0 {
		return fmt.Errorf("kafka sink configured without kafka_bootstrap")
	}
	return nil
}

func usesKafka(sink string) bool { return sink == SinkKafka || sink == SinkBoth }
func usesFile(sink string) bool  { return sink == SinkFile || sink == SinkBoth }

// Format is the parsed store format. Call Validate first.
func (c Config) Format() store.Format {
	f, _ := store.ParseFormat(c.StoreFormat)
	return f
}

// StorePath is store_file when set, else the format's default name in data_dir.
func (c Config) StorePath() string {
	if c.StoreFile != "" {
		return c.StoreFile
	}
	return filepath.Join(c.DataDir, c.Format().DefaultName())
}

// Brokers splits kafka_bootstrap, a comma-separated host:port list.
func (c Config) Brokers() []string {
	var brokers []string
	for _, a := range strings.Split(c.KafkaBootstrap, ",") {
		if a = strings.TrimSpace(a); a != "" {
			brokers = append(brokers, a)
		}
	}
	return brokers
}
