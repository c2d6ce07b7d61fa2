package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type EngineConfig struct {
	Mode            string   `yaml:"mode"` // mock, exec
	Command         string   `yaml:"command"`
	SampleRate      int      `yaml:"sample_rate"`
	Channels        int      `yaml:"channels"`
	ChunkDurationMS int      `yaml:"chunk_duration_ms"`
	Voices          []string `yaml:"voices"`
	Languages       []string `yaml:"languages"`
}

type PlaybackConfig struct {
	PlayerCommand string `yaml:"player_command"`
}

type VoicesConfig struct {
	Path string `yaml:"path"`
}

type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
}

type CloneConfig struct {
	Mode    string `yaml:"mode"` // mock, exec
	Command string `yaml:"command"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type Config struct {
	ServerName  string          `yaml:"server_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Engine      EngineConfig    `yaml:"engine"`
	Playback    PlaybackConfig  `yaml:"playback"`
	Voices      VoicesConfig    `yaml:"voices"`
	Cache       CacheConfig     `yaml:"cache"`
	Clone       CloneConfig     `yaml:"clone"`
	Bus         BusConfig       `yaml:"bus"`
}

func Default() Config {
	return Config{
		ServerName:  "ttsd",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8000,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Engine: EngineConfig{
			Mode:            "mock",
			SampleRate:      22050,
			Channels:        1,
			ChunkDurationMS: 250,
		},
		Playback: PlaybackConfig{
			PlayerCommand: "aplay -q -t raw -f S16_LE -r {sample_rate} -c {channels}",
		},
		Voices: VoicesConfig{
			Path: "./data/voices.db",
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 128,
		},
		Clone: CloneConfig{
			Mode: "mock",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServerName, "TTSD_SERVER_NAME")
	overrideString(&cfg.Environment, "TTSD_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "TTSD_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "TTSD_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "TTSD_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "TTSD_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "TTSD_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Engine.Mode, "TTSD_ENGINE_MODE")
	overrideString(&cfg.Engine.Command, "TTSD_ENGINE_COMMAND")
	overrideInt(&cfg.Engine.SampleRate, "TTSD_ENGINE_SAMPLE_RATE")
	overrideInt(&cfg.Engine.Channels, "TTSD_ENGINE_CHANNELS")
	overrideInt(&cfg.Engine.ChunkDurationMS, "TTSD_ENGINE_CHUNK_DURATION_MS")
	overrideStringSlice(&cfg.Engine.Voices, "TTSD_ENGINE_VOICES")
	overrideStringSlice(&cfg.Engine.Languages, "TTSD_ENGINE_LANGUAGES")
	overrideString(&cfg.Playback.PlayerCommand, "TTSD_PLAYBACK_PLAYER_COMMAND")
	overrideString(&cfg.Voices.Path, "TTSD_VOICES_PATH")
	overrideBool(&cfg.Cache.Enabled, "TTSD_CACHE_ENABLED")
	overrideInt(&cfg.Cache.MaxEntries, "TTSD_CACHE_MAX_ENTRIES")
	overrideString(&cfg.Clone.Mode, "TTSD_CLONE_MODE")
	overrideString(&cfg.Clone.Command, "TTSD_CLONE_COMMAND")
	overrideBool(&cfg.Bus.Enabled, "TTSD_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "TTSD_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "TTSD_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "TTSD_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "TTSD_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "TTSD_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "TTSD_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "TTSD_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "TTSD_BUS_CONNECT_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServerName == "" {
		return errors.New("server_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch cfg.Engine.Mode {
	case "mock", "exec":
	default:
		return errors.New("engine.mode must be one of mock|exec")
	}
	if cfg.Engine.Mode == "exec" && cfg.Engine.Command == "" {
		return errors.New("engine.command must be set when mode=exec")
	}
	if cfg.Engine.SampleRate <= 0 {
		return errors.New("engine.sample_rate must be positive")
	}
	if cfg.Engine.Channels <= 0 {
		return errors.New("engine.channels must be positive")
	}
	if cfg.Playback.PlayerCommand == "" {
		return errors.New("playback.player_command must not be empty")
	}
	if cfg.Voices.Path == "" {
		return errors.New("voices.path must not be empty")
	}
	if cfg.Cache.Enabled && cfg.Cache.MaxEntries <= 0 {
		return errors.New("cache.max_entries must be >= 1 when the cache is enabled")
	}
	switch cfg.Clone.Mode {
	case "mock", "exec":
	default:
		return errors.New("clone.mode must be one of mock|exec")
	}
	if cfg.Clone.Mode == "exec" && cfg.Clone.Command == "" {
		return errors.New("clone.command must be set when mode=exec")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	return nil
}
