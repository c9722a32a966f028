// Package config provides Viper-based configuration loading for the game server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// WebsocketConfig holds WebSocket acceptor settings.
type WebsocketConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// Path is the HTTP path that upgrades to a WebSocket.
	Path string `mapstructure:"path"`
	// PingInterval is how often an idle probe is sent to each client.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// PongTimeout is how long to wait for a probe answer before dropping the client.
	PongTimeout time.Duration `mapstructure:"pong_timeout"`
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ReadLimit is the maximum accepted inbound frame size in bytes.
	ReadLimit int64 `mapstructure:"read_limit"`
	// SendBuffer is the number of outbound frames queued per connection.
	SendBuffer int `mapstructure:"send_buffer"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (w WebsocketConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// GameConfig holds the shared-state rules of the world.
type GameConfig struct {
	// MaxPlayers is the number of simultaneously joined players allowed.
	MaxPlayers int `mapstructure:"max_players"`
	// SpawnX and SpawnY are the coordinates every new player starts at.
	SpawnX float64 `mapstructure:"spawn_x"`
	SpawnY float64 `mapstructure:"spawn_y"`
	// InteractRange is the maximum distance for NPC dialogue.
	InteractRange float64 `mapstructure:"interact_range"`
	// AttackRange is the maximum distance for attacking an NPC.
	AttackRange float64 `mapstructure:"attack_range"`
	// AttackDamage is the fixed health removed per attack.
	AttackDamage float64 `mapstructure:"attack_damage"`
	// WorldFile is the path to the world seed document.
	WorldFile string `mapstructure:"world_file"`
	// RebroadcastDefeat re-emits npc_defeated on every attack against an NPC at zero health.
	RebroadcastDefeat bool `mapstructure:"rebroadcast_defeat"`
}

// AdminConfig holds the gRPC health endpoint settings.
type AdminConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	GRPCHost string `mapstructure:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.GRPCHost, a.GRPCPort)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Websocket WebsocketConfig `mapstructure:"websocket"`
	Game      GameConfig      `mapstructure:"game"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateWebsocket(c.Websocket); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAdmin(c.Admin); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWebsocket(w WebsocketConfig) error {
	var errs []string
	if w.Port < 0 || w.Port > 65535 {
		errs = append(errs, fmt.Sprintf("websocket.port must be 0-65535, got %d", w.Port))
	}
	if !strings.HasPrefix(w.Path, "/") {
		errs = append(errs, fmt.Sprintf("websocket.path must start with '/', got %q", w.Path))
	}
	if w.PingInterval <= 0 {
		errs = append(errs, "websocket.ping_interval must be positive")
	}
	if w.PongTimeout <= 0 {
		errs = append(errs, "websocket.pong_timeout must be positive")
	}
	if w.WriteTimeout < 0 {
		errs = append(errs, "websocket.write_timeout must not be negative")
	}
	if w.ReadLimit < 0 {
		errs = append(errs, "websocket.read_limit must not be negative")
	}
	if w.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("websocket.send_buffer must be >= 1, got %d", w.SendBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.MaxPlayers < 1 {
		errs = append(errs, fmt.Sprintf("game.max_players must be >= 1, got %d", g.MaxPlayers))
	}
	if g.InteractRange < 0 {
		errs = append(errs, "game.interact_range must not be negative")
	}
	if g.AttackRange < 0 {
		errs = append(errs, "game.attack_range must not be negative")
	}
	if g.AttackDamage <= 0 {
		errs = append(errs, fmt.Sprintf("game.attack_damage must be > 0, got %v", g.AttackDamage))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAdmin(a AdminConfig) error {
	if !a.Enabled {
		return nil
	}
	var errs []string
	if a.GRPCHost == "" {
		errs = append(errs, "admin.grpc_host must not be empty")
	}
	if a.GRPCPort < 0 || a.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("admin.grpc_port must be 0-65535, got %d", a.GRPCPort))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// ErrNoConfigFile is returned by Load when path is empty.
var ErrNoConfigFile = errors.New("config file path must not be empty")

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, ErrNoConfigFile
	}

	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// Defaults returns the configuration built from defaults and environment
// overrides only, for running without a config file.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Defaults() (Config, error) {
	return LoadFromViper(newViper())
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	// Environment variable overrides with RUNES_ prefix
	v.SetEnvPrefix("RUNES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("websocket.host", "0.0.0.0")
	v.SetDefault("websocket.port", 1234)
	v.SetDefault("websocket.path", "/")
	v.SetDefault("websocket.ping_interval", "20s")
	v.SetDefault("websocket.pong_timeout", "10s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.read_limit", 64*1024)
	v.SetDefault("websocket.send_buffer", 64)

	v.SetDefault("game.max_players", 8)
	v.SetDefault("game.spawn_x", 100)
	v.SetDefault("game.spawn_y", 100)
	v.SetDefault("game.interact_range", 100)
	v.SetDefault("game.attack_range", 80)
	v.SetDefault("game.attack_damage", 10)
	v.SetDefault("game.world_file", "worlds/world.json")
	v.SetDefault("game.rebroadcast_defeat", true)

	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.grpc_host", "127.0.0.1")
	v.SetDefault("admin.grpc_port", 50051)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
