// Package config handles configuration and cookie management for muralguide.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Backend names
const (
	BackendGenAI     = "genai"
	BackendOpenAI    = "openai"
	BackendWebGemini = "webgemini"
	BackendStub      = "stub"
)

// HomeEnv overrides the configuration directory.
const HomeEnv = "MURALGUIDE_HOME"

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style" env:"MURALGUIDE_MARKDOWN_STYLE"` // "dark", "light", or path to JSON theme
	EnableEmoji      bool   `json:"enable_emoji"`
	PreserveNewLines bool   `json:"preserve_newlines"`
	TableWrap        bool   `json:"table_wrap"`
	InlineTableLinks bool   `json:"inline_table_links"`
}

// GenAIConfig configures the Gemini API backend
type GenAIConfig struct {
	APIKey          string `json:"-" env:"GEMINI_API_KEY"`
	TextModel       string `json:"text_model" env:"MURALGUIDE_GENAI_TEXT_MODEL"`
	ImageModel      string `json:"image_model" env:"MURALGUIDE_GENAI_IMAGE_MODEL"`
	MaxOutputTokens int32  `json:"max_output_tokens" env:"MURALGUIDE_GENAI_MAX_OUTPUT_TOKENS"`
}

// OpenAIConfig configures the OpenAI backend
type OpenAIConfig struct {
	APIKey     string `json:"-" env:"OPENAI_API_KEY"`
	BaseURL    string `json:"base_url,omitempty" env:"OPENAI_BASE_URL"`
	TextModel  string `json:"text_model" env:"MURALGUIDE_OPENAI_TEXT_MODEL"`
	ImageModel string `json:"image_model" env:"MURALGUIDE_OPENAI_IMAGE_MODEL"`
	ImageSize  string `json:"image_size" env:"MURALGUIDE_OPENAI_IMAGE_SIZE"`
}

// WebGeminiConfig configures the cookie-authenticated Gemini Web backend
type WebGeminiConfig struct {
	Model string `json:"model" env:"MURALGUIDE_WEBGEMINI_MODEL"`
	// BrowserRefresh names the browser cookies are re-read from when the
	// session expires. Empty disables browser refresh.
	BrowserRefresh string `json:"browser_refresh,omitempty" env:"MURALGUIDE_BROWSER_REFRESH"`
	// RefreshInterval is the cookie rotation period in seconds.
	RefreshInterval int `json:"refresh_interval" env:"MURALGUIDE_WEBGEMINI_REFRESH_INTERVAL"`
}

// ServerConfig configures the browser API server
type ServerConfig struct {
	ListenAddr string `json:"listen_addr" env:"MURALGUIDE_ADDR"`
	// SessionTTL is the idle time in seconds after which a session is dropped.
	SessionTTL     int      `json:"session_ttl" env:"MURALGUIDE_SESSION_TTL"`
	SweepSchedule  string   `json:"sweep_schedule" env:"MURALGUIDE_SWEEP_SCHEDULE"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" env:"MURALGUIDE_ALLOWED_ORIGINS" envSeparator:","`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `json:"level" env:"MURALGUIDE_LOG_LEVEL"`
	// File receives logs while the terminal UI owns the screen.
	File string `json:"file,omitempty" env:"MURALGUIDE_LOG_FILE"`
}

// Config represents the user configuration
type Config struct {
	Backend string `json:"backend" env:"MURALGUIDE_BACKEND"`
	// RequestTimeout bounds each backend call in seconds. Zero means no limit.
	RequestTimeout  int             `json:"request_timeout" env:"MURALGUIDE_REQUEST_TIMEOUT"`
	Greeting        string          `json:"greeting,omitempty" env:"MURALGUIDE_GREETING"`
	Verbose         bool            `json:"verbose" env:"MURALGUIDE_VERBOSE"`
	CopyToClipboard bool            `json:"copy_to_clipboard"`
	TUITheme        string          `json:"tui_theme,omitempty" env:"MURALGUIDE_TUI_THEME"`
	Markdown        MarkdownConfig  `json:"markdown"`
	GenAI           GenAIConfig     `json:"genai"`
	OpenAI          OpenAIConfig    `json:"openai"`
	WebGemini       WebGeminiConfig `json:"webgemini"`
	Server          ServerConfig    `json:"server"`
	Log             LogConfig       `json:"log"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Backend:        BackendGenAI,
		RequestTimeout: 120,
		TUITheme:       "laterite",
		Markdown:       DefaultMarkdownConfig(),
		GenAI: GenAIConfig{
			TextModel:       "gemini-2.5-flash",
			ImageModel:      "gemini-2.5-flash-image",
			MaxOutputTokens: 1024,
		},
		OpenAI: OpenAIConfig{
			TextModel:  "gpt-4o-mini",
			ImageModel: "dall-e-3",
			ImageSize:  "1024x1024",
		},
		WebGemini: WebGeminiConfig{
			Model:           "gemini-2.5-flash",
			RefreshInterval: 540,
		},
		Server: ServerConfig{
			ListenAddr:    "127.0.0.1:8080",
			SessionTTL:    1800,
			SweepSchedule: "@every 1m",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Backends returns the supported backend names
func Backends() []string {
	return []string{BackendGenAI, BackendOpenAI, BackendWebGemini, BackendStub}
}

// Timeout returns RequestTimeout as a duration
func (c Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// SessionTTL returns the server session idle limit as a duration
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Server.SessionTTL) * time.Second
}

// Validate checks that the configuration can build the selected backend
func (c Config) Validate() error {
	switch c.Backend {
	case BackendGenAI:
		if c.GenAI.APIKey == "" {
			return fmt.Errorf("backend %q needs GEMINI_API_KEY (or use --backend %s)", c.Backend, BackendStub)
		}
		if c.GenAI.TextModel == "" || c.GenAI.ImageModel == "" {
			return fmt.Errorf("backend %q needs both a text and an image model", c.Backend)
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("backend %q needs OPENAI_API_KEY (or use --backend %s)", c.Backend, BackendStub)
		}
		if c.OpenAI.TextModel == "" || c.OpenAI.ImageModel == "" {
			return fmt.Errorf("backend %q needs both a text and an image model", c.Backend)
		}
	case BackendWebGemini, BackendStub:
	default:
		return fmt.Errorf("unknown backend %q (available: %v)", c.Backend, Backends())
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	if c.Server.SessionTTL < 0 {
		return fmt.Errorf("server.session_ttl must not be negative")
	}
	return nil
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".muralguide"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	// 0o700: the directory holds cookies
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetCookiesPath returns the path to the cookies file
func GetCookiesPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.json"), nil
}

// LoadConfig loads the configuration file, falling back to defaults
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	configPath, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays environment variables (and a .env file in the working
// directory, when present) onto cfg. Unset variables leave values unchanged.
func ApplyEnv(cfg *Config) error {
	_ = godotenv.Load()
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// Load reads the config file and applies the environment on top of it
func Load() (Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to disk. API keys are never written.
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.json")

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
