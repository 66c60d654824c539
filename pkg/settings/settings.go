// Package settings loads the engine settings from a YAML or JSON file with
// STAGEHAND_* environment overrides.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Settings is the root configuration of a Stagehand host.
type Settings struct {
	// UseSystem enables the engine. Hosts may ship the settings with the system turned off.
	UseSystem bool `yaml:"use_system" json:"use_system" env:"STAGEHAND_USE_SYSTEM"`

	StartupBlendState  domain.BlendState `yaml:"startup_blend_state" json:"startup_blend_state" env:"STAGEHAND_STARTUP_BLEND_STATE"`
	UseBlendCallbacks  bool              `yaml:"use_blend_callbacks" json:"use_blend_callbacks" env:"STAGEHAND_USE_BLEND_CALLBACKS"`
	UseSwitchCallbacks bool              `yaml:"use_switch_callbacks" json:"use_switch_callbacks" env:"STAGEHAND_USE_SWITCH_CALLBACKS"`
	ReadyThreshold     float64           `yaml:"ready_threshold" json:"ready_threshold" env:"STAGEHAND_READY_THRESHOLD"`
	TickInterval       time.Duration     `yaml:"tick_interval" json:"tick_interval" env:"STAGEHAND_TICK_INTERVAL"`
	LogLevel           string            `yaml:"log_level" json:"log_level" env:"STAGEHAND_LOG_LEVEL"`
	LogFormat          string            `yaml:"log_format" json:"log_format" env:"STAGEHAND_LOG_FORMAT"`

	// Scenes are inline scene entries. ScenesDir, when set, adds the entries of a Loam directory.
	Scenes    []domain.SceneEntry `yaml:"scenes" json:"scenes"`
	ScenesDir string              `yaml:"scenes_dir" json:"scenes_dir" env:"STAGEHAND_SCENES_DIR"`

	// InitialState is the identifier the host starts in (loaded by `stagehand run` and `serve`).
	InitialState string `yaml:"initial_state" json:"initial_state" env:"STAGEHAND_INITIAL_STATE"`

	// ParameterInitialData seeds parameter records per type name.
	ParameterInitialData map[string]map[string]any `yaml:"parameter_initial_data" json:"parameter_initial_data"`

	Store      StoreSettings      `yaml:"store" json:"store" envPrefix:"STAGEHAND_STORE_"`
	HTTP       HTTPSettings       `yaml:"http" json:"http" envPrefix:"STAGEHAND_HTTP_"`
	Metrics    MetricsSettings    `yaml:"metrics" json:"metrics" envPrefix:"STAGEHAND_METRICS_"`
	MQTT       MQTTSettings       `yaml:"mqtt" json:"mqtt" envPrefix:"STAGEHAND_MQTT_"`
	Simulation SimulationSettings `yaml:"simulation" json:"simulation" envPrefix:"STAGEHAND_SIMULATION_"`
}

// StoreSettings selects where committed states are persisted.
type StoreSettings struct {
	// Backend is one of memory, file, redis.
	Backend string        `yaml:"backend" json:"backend" env:"BACKEND"`
	Path    string        `yaml:"path" json:"path" env:"PATH"`
	Key     string        `yaml:"key" json:"key" env:"KEY"`
	Redis   RedisSettings `yaml:"redis" json:"redis" envPrefix:"REDIS_"`

	// EncryptionKey is a base64 AES-256 key. When set, snapshots are sealed before they are stored.
	EncryptionKey string   `yaml:"encryption_key" json:"encryption_key" env:"ENCRYPTION_KEY"`
	FallbackKeys  []string `yaml:"fallback_keys" json:"fallback_keys" env:"FALLBACK_KEYS" envSeparator:","`
	// MaskKeys are regular expressions; matching parameter keys are masked in stored snapshots.
	MaskKeys []string `yaml:"mask_keys" json:"mask_keys" env:"MASK_KEYS" envSeparator:","`
}

// RedisSettings contains Redis connection details.
type RedisSettings struct {
	Addr     string        `yaml:"addr" json:"addr" env:"ADDR"`
	Password string        `yaml:"password" json:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" json:"db" env:"DB"`
	Prefix   string        `yaml:"prefix" json:"prefix" env:"PREFIX"`
	TTL      time.Duration `yaml:"ttl" json:"ttl" env:"TTL"`
}

// HTTPSettings configures the JSON API.
type HTTPSettings struct {
	Addr string `yaml:"addr" json:"addr" env:"ADDR"`
}

// MetricsSettings configures the prometheus collectors.
type MetricsSettings struct {
	Enabled   bool   `yaml:"enabled" json:"enabled" env:"ENABLED"`
	Namespace string `yaml:"namespace" json:"namespace" env:"NAMESPACE"`
}

// MQTTSettings configures the lifecycle event publisher. An empty broker disables it.
type MQTTSettings struct {
	Broker      string `yaml:"broker" json:"broker" env:"BROKER"`
	ClientID    string `yaml:"client_id" json:"client_id" env:"CLIENT_ID"`
	Username    string `yaml:"username" json:"username" env:"USERNAME"`
	Password    string `yaml:"password" json:"password" env:"PASSWORD"`
	TopicPrefix string `yaml:"topic_prefix" json:"topic_prefix" env:"TOPIC_PREFIX"`
	QoS         byte   `yaml:"qos" json:"qos" env:"QOS"`
}

// SimulationSettings tune the simulated host used by the CLI.
type SimulationSettings struct {
	// Step is the progress a unit operation makes per tick.
	Step float64 `yaml:"step" json:"step" env:"STEP"`
	// BlendTicks is the duration of the simulated blend, in ticks.
	BlendTicks int `yaml:"blend_ticks" json:"blend_ticks" env:"BLEND_TICKS"`
}

// Default returns the settings used when no file is given.
func Default() *Settings {
	return &Settings{
		UseSystem:          true,
		StartupBlendState:  domain.BlendShown,
		UseBlendCallbacks:  true,
		UseSwitchCallbacks: true,
		ReadyThreshold:     domain.DefaultReadyThreshold,
		TickInterval:       domain.DefaultTickInterval,
		LogLevel:           "info",
		LogFormat:          "text",
		Store: StoreSettings{
			Backend: "memory",
			Key:     "stagehand",
			Redis: RedisSettings{
				Addr:   "localhost:6379",
				Prefix: "stagehand:",
			},
		},
		HTTP:    HTTPSettings{Addr: ":8080"},
		Metrics: MetricsSettings{Enabled: true, Namespace: "stagehand"},
		MQTT: MQTTSettings{
			ClientID:    "stagehand",
			TopicPrefix: "stagehand",
			QoS:         1,
		},
		Simulation: SimulationSettings{Step: 0.1, BlendTicks: 10},
	}
}

// Load reads the settings file at path on top of the defaults, applies the environment
// overrides and validates the result. An empty path only applies the environment.
// The format is chosen by extension: .json, otherwise YAML.
func Load(path string) (*Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading settings file: %w", err)
		}
		if err := Parse(data, filepath.Ext(path), s); err != nil {
			return nil, err
		}
		if s.ScenesDir != "" && !filepath.IsAbs(s.ScenesDir) {
			s.ScenesDir = filepath.Join(filepath.Dir(path), s.ScenesDir)
		}
	}

	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validating settings: %w", err)
	}
	return s, nil
}

// Parse decodes data into s. JSON is parsed by the YAML decoder, which accepts it
// and understands duration strings such as "16ms".
func Parse(data []byte, ext string, s *Settings) error {
	switch strings.ToLower(ext) {
	case ".json", ".yaml", ".yml", "":
	default:
		return fmt.Errorf("unsupported settings format %q", ext)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parsing settings file: %w", err)
	}
	return nil
}

// Validate checks the settings for consistency.
func (s *Settings) Validate() error {
	var errs []error
	if s.StartupBlendState != domain.BlendShown && s.StartupBlendState != domain.BlendHidden {
		errs = append(errs, fmt.Errorf("startup_blend_state must be %q or %q, got %q", domain.BlendShown, domain.BlendHidden, s.StartupBlendState))
	}
	if s.ReadyThreshold <= 0 || s.ReadyThreshold > 1 {
		errs = append(errs, fmt.Errorf("ready_threshold must be in (0,1], got %v", s.ReadyThreshold))
	}
	if s.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick_interval must be positive, got %s", s.TickInterval))
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if s.LogFormat != "" && s.LogFormat != "text" && s.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", s.LogFormat))
	}
	switch s.Store.Backend {
	case "memory":
	case "file":
		if s.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the file backend"))
		}
	case "redis":
		if s.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", s.Store.Backend))
	}
	if s.Store.EncryptionKey == "" && len(s.Store.FallbackKeys) > 0 {
		errs = append(errs, errors.New("store.fallback_keys requires store.encryption_key"))
	}
	for _, p := range s.Store.MaskKeys {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("store.mask_keys: invalid pattern %q", p))
		}
	}
	if s.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", s.MQTT.QoS))
	}
	if s.Simulation.Step <= 0 {
		errs = append(errs, fmt.Errorf("simulation.step must be positive, got %v", s.Simulation.Step))
	}
	return errors.Join(errs...)
}

// Level returns the configured slog level.
func (s *Settings) Level() slog.Level {
	lvl, _ := ParseLevel(s.LogLevel)
	return lvl
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(name string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", name)
	}
	return lvl, nil
}
