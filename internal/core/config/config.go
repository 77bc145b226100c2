package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	AppName = "thinkchat"

	DefaultModel         = "gemini-2.5-flash"
	DefaultImageModel    = "imagen-4.0-generate-001"
	DefaultImageBackend  = "imagen"
	DefaultImageURLBase  = "https://image.pollinations.ai/prompt/"
	DefaultAssistantName = "THINK"
	DefaultStorageKey    = "gemini_chat_history_v1"
	DefaultLogLevel      = "info"
)

type Config struct {
	Dir string // config directory, "" when the home directory is unknown

	APIKey            string
	Model             string
	ImageModel        string
	ImageBackend      string // "imagen" or "url"
	ImageURLBase      string
	AssistantName     string
	StorageKey        string
	LogLevel          string
	SystemInstruction string // template override, "" uses the built-in one
}

type tomlConfig struct {
	APIKey        string `toml:"api_key"`
	Model         string `toml:"model"`
	ImageModel    string `toml:"image_model"`
	ImageBackend  string `toml:"image_backend"`
	ImageURLBase  string `toml:"image_url_base"`
	AssistantName string `toml:"assistant_name"`
	StorageKey    string `toml:"storage_key"`
	LogLevel      string `toml:"log_level"`
}

// Dir returns ~/.config/thinkchat
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName), nil
}

// Load reads config from ~/.config/thinkchat/
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		cfg := defaults()
		cfg.APIKey = apiKeyFromEnv()
		return cfg, nil // Use defaults
	}
	return LoadFrom(dir)
}

// LoadFrom reads config.toml, .env and system_instruction.md from dir.
// Missing or unreadable files leave the defaults in place.
func LoadFrom(dir string) (*Config, error) {
	cfg := defaults()
	cfg.Dir = dir

	// .env files never override variables already set
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	tomlPath := filepath.Join(dir, "config.toml")
	promptPath := filepath.Join(dir, "system_instruction.md")

	if _, err := os.Stat(tomlPath); err == nil {
		var tc tomlConfig
		if _, err := toml.DecodeFile(tomlPath, &tc); err == nil {
			cfg.apply(tc)
		}
	}

	if data, err := os.ReadFile(promptPath); err == nil {
		cfg.SystemInstruction = string(data)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = apiKeyFromEnv()
	}
	if cfg.ImageBackend != "imagen" && cfg.ImageBackend != "url" {
		cfg.ImageBackend = DefaultImageBackend
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Model:         DefaultModel,
		ImageModel:    DefaultImageModel,
		ImageBackend:  DefaultImageBackend,
		ImageURLBase:  DefaultImageURLBase,
		AssistantName: DefaultAssistantName,
		StorageKey:    DefaultStorageKey,
		LogLevel:      DefaultLogLevel,
	}
}

func (c *Config) apply(tc tomlConfig) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&c.APIKey, tc.APIKey)
	set(&c.Model, tc.Model)
	set(&c.ImageModel, tc.ImageModel)
	set(&c.ImageBackend, strings.ToLower(tc.ImageBackend))
	set(&c.ImageURLBase, tc.ImageURLBase)
	set(&c.AssistantName, tc.AssistantName)
	set(&c.StorageKey, tc.StorageKey)
	set(&c.LogLevel, tc.LogLevel)
}

func apiKeyFromEnv() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("API_KEY")
}

// DBPath returns the default sqlite path
func (c *Config) DBPath() string {
	if c.Dir == "" {
		return AppName + ".db"
	}
	return filepath.Join(c.Dir, "history.db")
}

// LogPath returns the log file path
func (c *Config) LogPath() string {
	if c.Dir == "" {
		return filepath.Join(os.TempDir(), AppName+".log")
	}
	return filepath.Join(c.Dir, AppName+".log")
}
