// Package config loads and merges configuration from a TOML or YAML file and
// environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "APCUPSD_EXPORTER_"

// Duration wraps time.Duration so that both decoders accept "30s"-style
// strings.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// ExporterConfig holds the scrape side settings.
type ExporterConfig struct {
	ListenPort  int      `toml:"listen_port" yaml:"listen_port"`
	Hosts       []string `toml:"hosts" yaml:"hosts"`
	Timeout     Duration `toml:"timeout" yaml:"timeout"`
	StripUnits  bool     `toml:"strip_units" yaml:"strip_units"`
	Concurrency int      `toml:"concurrency" yaml:"concurrency"`
}

// MQTTConfig holds the optional MQTT republisher settings.
type MQTTConfig struct {
	Enabled     bool     `toml:"enabled" yaml:"enabled"`
	Broker      string   `toml:"broker" yaml:"broker"`
	Username    string   `toml:"username" yaml:"username"`
	Password    string   `toml:"password" yaml:"password"`
	ClientID    string   `toml:"client_id" yaml:"client_id"`
	TopicPrefix string   `toml:"topic_prefix" yaml:"topic_prefix"`
	Retained    bool     `toml:"retained" yaml:"retained"`
	QOS         byte     `toml:"qos" yaml:"qos"`
	TLSCACert   string   `toml:"tls_ca_cert" yaml:"tls_ca_cert"`
	Interval    Duration `toml:"interval" yaml:"interval"`
}

// Config is the top-level configuration struct.
type Config struct {
	Exporter ExporterConfig `toml:"exporter" yaml:"exporter"`
	MQTT     MQTTConfig     `toml:"mqtt" yaml:"mqtt"`
}

// Load reads config from the first existing path in paths, then applies
// environment variable overrides. Files ending in .yaml or .yml are read as
// YAML, anything else as TOML. Missing files are skipped silently; a
// malformed file returns an error. Calling Load() with no arguments returns
// pure defaults plus any env overrides.
func Load(paths ...string) (*Config, error) {
	cfg := defaults()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			if err := decodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %q: %w", path, err)
			}
			break // first found file wins
		} else if !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("checking config path %q: %w", path, statErr)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, cfg)
	default:
		_, err := toml.DecodeFile(path, cfg)
		return err
	}
}

func defaults() *Config {
	return &Config{
		Exporter: ExporterConfig{
			ListenPort: 8080,
			Hosts:      []string{"localhost:3551"},
			Timeout:    Duration{30 * time.Second},
			StripUnits: true,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "apcupsd-exporter",
			TopicPrefix: "apcupsd",
			Retained:    true,
			QOS:         1,
			Interval:    Duration{30 * time.Second},
		},
	}
}

// applyEnvOverrides copies any set APCUPSD_EXPORTER_* environment variables
// into cfg.
func applyEnvOverrides(cfg *Config) {
	if v := getenv("LISTEN_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Exporter.ListenPort = p
		} else {
			ignored("LISTEN_PORT", v, err)
		}
	}
	if v := getenv("HOSTS"); v != "" {
		cfg.Exporter.Hosts = splitList(v)
	}
	if v := getenv("TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Exporter.Timeout = Duration{d}
		} else {
			ignored("TIMEOUT", v, err)
		}
	}
	if v := getenv("STRIP_UNITS"); v != "" {
		cfg.Exporter.StripUnits = v == "true" || v == "1"
	}
	if v := getenv("CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Exporter.Concurrency = n
		} else {
			ignored("CONCURRENCY", v, err)
		}
	}
	if v := getenv("MQTT_ENABLED"); v != "" {
		cfg.MQTT.Enabled = v == "true" || v == "1"
	}
	if v := getenv("MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := getenv("MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.ClientID = v
	}
	if v := getenv("MQTT_TOPIC_PREFIX"); v != "" {
		cfg.MQTT.TopicPrefix = v
	}
	if v := getenv("MQTT_RETAINED"); v != "" {
		cfg.MQTT.Retained = v == "true" || v == "1"
	}
	if v := getenv("MQTT_QOS"); v != "" {
		if q, err := strconv.ParseUint(v, 10, 8); err == nil {
			cfg.MQTT.QOS = byte(q)
		} else {
			ignored("MQTT_QOS", v, err)
		}
	}
	if v := getenv("MQTT_TLS_CA_CERT"); v != "" {
		cfg.MQTT.TLSCACert = v
	}
	if v := getenv("MQTT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MQTT.Interval = Duration{d}
		} else {
			ignored("MQTT_INTERVAL", v, err)
		}
	}
}

func getenv(name string) string { return os.Getenv(EnvPrefix + name) }

func ignored(name, value string, err error) {
	slog.Warn("config: ignoring invalid environment value", "var", EnvPrefix+name, "value", value, "err", err)
}

// splitList splits a comma or whitespace separated list.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
