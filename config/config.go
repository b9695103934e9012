package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	APITypeOpenAI     = "openai"
	APITypeCompatible = "compatible"
	APITypeOllama     = "ollama"
)

const appName = "smartanychat"

// redactedKey replaces API keys in config views handed to the UI
const redactedKey = "********"

type Config struct {
	APIType       string               `toml:"api_type" json:"api_type"`
	API           map[string]APIConfig `toml:"api" json:"api"`
	Temperature   float64              `toml:"temperature" json:"temperature"`
	MaxTokens     int                  `toml:"max_tokens" json:"max_tokens"`
	KeepHistory   bool                 `toml:"keep_history" json:"keep_history"`
	Language      string               `toml:"language" json:"language"`
	StripMarkdown bool                 `toml:"strip_markdown" json:"strip_markdown"`
	CurrentRole   string               `toml:"current_role" json:"current_role"`
	Roles         []Role               `toml:"roles" json:"roles"`
	Hotkeys       HotkeysConfig        `toml:"hotkeys" json:"hotkeys"`
	Delays        DelaysConfig         `toml:"delays" json:"delays"`
	Web           WebConfig            `toml:"web" json:"web"`
	Log           LogConfig            `toml:"log" json:"log"`
}

// APIConfig is remembered per API type so switching back and forth keeps
// each backend's settings.
type APIConfig struct {
	APIKey  string `toml:"api_key" json:"api_key"`
	BaseURL string `toml:"base_url" json:"base_url"`
	Model   string `toml:"model" json:"model"`
}

type HotkeysConfig struct {
	Complete string `toml:"complete" json:"complete"`
	Continue string `toml:"continue" json:"continue"`
	Clear    string `toml:"clear" json:"clear"`
}

type WebConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	Port    int  `toml:"port" json:"port"`
}

type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	Dir    string `toml:"dir" json:"dir"`
}

// Default returns the configuration written on first start
func Default() *Config {
	return &Config{
		APIType: APITypeOpenAI,
		API: map[string]APIConfig{
			APITypeOpenAI: {
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
			},
			APITypeCompatible: {},
			APITypeOllama: {
				BaseURL: "http://localhost:11434",
				Model:   "llama3",
			},
		},
		Temperature: 0.7,
		MaxTokens:   150,
		KeepHistory: true,
		Language:    "chinese",
		CurrentRole: DefaultRoleName,
		Roles:       DefaultRoles(),
		Hotkeys: HotkeysConfig{
			Complete: `ctrl+alt+\`,
			Continue: "ctrl+alt+/",
			Clear:    "ctrl+esc",
		},
		Delays: DefaultDelays(),
		Web: WebConfig{
			Enabled: true,
			Port:    7878,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Dir returns the per-user configuration directory, creating it if needed
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}

	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Path returns the path to the configuration file
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from the TOML file at path.
// If the file doesn't exist, it creates it with default values
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cfg := Default()
	// Roles from the file replace the defaults instead of merging by index.
	cfg.Roles = nil
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path atomically
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// The file holds API keys.
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// normalize fills gaps left by hand-edited files and rejects values the
// agent cannot run with.
func (c *Config) normalize() error {
	switch c.APIType {
	case APITypeOpenAI, APITypeCompatible, APITypeOllama:
	default:
		return fmt.Errorf("unknown api_type %q", c.APIType)
	}

	if c.API == nil {
		c.API = map[string]APIConfig{}
	}
	if len(c.Roles) == 0 {
		c.Roles = DefaultRoles()
	}
	if _, ok := c.findRole(c.CurrentRole); !ok {
		c.CurrentRole = c.Roles[0].Name
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range [0, 2]", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	if c.Language == "" {
		c.Language = "chinese"
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		c.Web.Port = 7878
	}

	c.Delays.fill()
	return nil
}

// ActiveAPI returns the settings of the selected API type
func (c *Config) ActiveAPI() APIConfig {
	return c.API[c.APIType]
}

// Redacted returns a deep copy with API keys masked
func (c *Config) Redacted() *Config {
	out := c.clone()
	for name, api := range out.API {
		if api.APIKey != "" {
			api.APIKey = redactedKey
			out.API[name] = api
		}
	}
	return out
}

// KeepSecrets restores API keys that came back from the UI still masked
func (c *Config) KeepSecrets(prev *Config) {
	for name, api := range c.API {
		if api.APIKey == redactedKey {
			api.APIKey = prev.API[name].APIKey
			c.API[name] = api
		}
	}
}

func (c *Config) clone() *Config {
	out := *c
	out.API = make(map[string]APIConfig, len(c.API))
	for k, v := range c.API {
		out.API[k] = v
	}
	out.Roles = make([]Role, len(c.Roles))
	for i, r := range c.Roles {
		out.Roles[i] = r.clone()
	}
	return &out
}

// Validate checks a configuration submitted from outside the file
func (c *Config) Validate() error {
	if err := c.normalize(); err != nil {
		return err
	}
	for _, combo := range []string{c.Hotkeys.Complete, c.Hotkeys.Continue, c.Hotkeys.Clear} {
		parsed, err := ParseHotkey(combo)
		if err != nil {
			return fmt.Errorf("hotkey %q: %w", combo, err)
		}
		if _, err := parsed.Platform(); err != nil {
			return fmt.Errorf("hotkey %q: %w", combo, err)
		}
	}
	return nil
}
