// Package config loads the agent daemon's TOML configuration, following the
// defaults-then-file layering the teacher uses viper for.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/spf13/viper"

	"github.com/sodove/aios-agent/pkg/apperror"
)

// ProviderConfig configures which LLM backend the daemon talks to.
type ProviderConfig struct {
	Type    string `mapstructure:"type"` // open_ai, claude, ollama
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// AgentConfig is the daemon's own runtime configuration.
type AgentConfig struct {
	SocketPath              string `mapstructure:"socket_path"`
	AuditLog                string `mapstructure:"audit_log"`
	MaxDestructivePerMinute int    `mapstructure:"max_destructive_per_minute"`
	Workspace               string `mapstructure:"workspace"`
}

// DebugConfig controls the loopback-only HTTP/WS observability surface.
type DebugConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LogConfig controls the daemon's zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full parsed configuration tree.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Debug    DebugConfig    `mapstructure:"debug"`
	Log      LogConfig      `mapstructure:"log"`
}

// DefaultPath returns ~/.config/aios/agent.toml, mirroring the original
// agent's config_path().
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "aios", "agent.toml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.type", "ollama")
	v.SetDefault("provider.model", "llama3.2")
	v.SetDefault("provider.base_url", "http://127.0.0.1:11434")

	v.SetDefault("agent.socket_path", defaultSocketPath())
	v.SetDefault("agent.audit_log", "/var/log/aios/actions.log")
	v.SetDefault("agent.max_destructive_per_minute", 3)
	v.SetDefault("agent.workspace", defaultWorkspace())

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.addr", "127.0.0.1:8787")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func defaultSocketPath() string {
	if runtime.GOOS == "linux" {
		return filepath.Join("/run/user", strconv.Itoa(os.Getuid()), "aios-agent.sock")
	}
	return "/tmp/aios-agent.sock"
}

func defaultWorkspace() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// Load reads path as TOML into a Config, falling back to defaults (and
// logging nothing — callers decide whether the fallback is worth a
// warning) when the file doesn't exist yet.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, apperror.WrapConfig("reading config file "+path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperror.WrapConfig("parsing config file "+path, err)
	}
	return &cfg, nil
}
