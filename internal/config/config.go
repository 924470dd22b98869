package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for gmatbot.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Channels   ChannelsConfig   `json:"channels"`
	Corpus     CorpusConfig     `json:"corpus"`
	Render     RenderConfig     `json:"render"`
	Publish    PublishConfig    `json:"publish"`
	Journal    JournalConfig    `json:"journal"`
	Metrics    MetricsConfig    `json:"metrics"`
	Categories CategoriesConfig `json:"categories"`
}

type GeneralConfig struct {
	LogLevel           string `json:"logLevel"`
	RunMinutes         int    `json:"runMinutes"`         // total service duration per process
	PollTimeoutSeconds int    `json:"pollTimeoutSeconds"` // server-side long-poll wait
	ResumeOffset       int64  `json:"resumeOffset,omitempty"`
	Caption            string `json:"caption"`
	HelpText           string `json:"helpText,omitempty"` // empty = built-in help text
}

type ChannelsConfig struct {
	Platform string         `json:"platform"` // "zalo" | "telegram"
	Zalo     ZaloConfig     `json:"zalo"`
	Telegram TelegramConfig `json:"telegram"`
}

type ZaloConfig struct {
	Token   string `json:"token"`
	APIBase string `json:"apiBase,omitempty"` // override for tests
}

type TelegramConfig struct {
	Token string `json:"token"`
}

type CorpusConfig struct {
	BaseURL        string `json:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type RenderConfig struct {
	Width          int    `json:"width"`
	Quality        int    `json:"quality"`
	Headless       bool   `json:"headless"`
	ProfileDir     string `json:"profileDir,omitempty"` // Chrome user data directory
	TimeoutSeconds int    `json:"timeoutSeconds"`
	SettleMillis   int    `json:"settleMillis"` // wait for MathJax typesetting after load
}

type PublishConfig struct {
	Repo       string `json:"repo"` // "owner/name"
	ReleaseTag string `json:"releaseTag"`
	Token      string `json:"token"`
	APIBase    string `json:"apiBase,omitempty"`
	UploadBase string `json:"uploadBase,omitempty"`
}

type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

type CategoriesConfig struct {
	AliasFile string `json:"aliasFile,omitempty"` // optional YAML file extending the alias table
}

// DefaultConfigDir returns the default config directory (~/.gmatbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gmatbot"
	}
	return filepath.Join(home, ".gmatbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Journal.DBPath = ExpandPath(cfg.Journal.DBPath)
	cfg.Render.ProfileDir = ExpandPath(cfg.Render.ProfileDir)
	cfg.Categories.AliasFile = ExpandPath(cfg.Categories.AliasFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.RunMinutes < 1 {
		errs = append(errs, "general.runMinutes must be >= 1")
	}
	if cfg.General.PollTimeoutSeconds < 1 || cfg.General.PollTimeoutSeconds > 300 {
		errs = append(errs, "general.pollTimeoutSeconds must be between 1 and 300")
	}
	if cfg.General.ResumeOffset < 0 {
		errs = append(errs, "general.resumeOffset must be >= 0")
	}

	switch cfg.Channels.Platform {
	case "zalo", "telegram":
		// valid
	default:
		errs = append(errs, "channels.platform must be one of: zalo, telegram")
	}

	if cfg.Corpus.BaseURL == "" {
		errs = append(errs, "corpus.baseUrl must not be empty")
	}
	if cfg.Corpus.TimeoutSeconds < 1 {
		errs = append(errs, "corpus.timeoutSeconds must be >= 1")
	}

	if cfg.Render.Width < 320 || cfg.Render.Width > 4096 {
		errs = append(errs, "render.width must be between 320 and 4096")
	}
	if cfg.Render.Quality < 1 || cfg.Render.Quality > 100 {
		errs = append(errs, "render.quality must be between 1 and 100")
	}
	if cfg.Render.TimeoutSeconds < 1 {
		errs = append(errs, "render.timeoutSeconds must be >= 1")
	}

	if cfg.Publish.Repo != "" && len(strings.Split(cfg.Publish.Repo, "/")) != 2 {
		errs = append(errs, "publish.repo must have the form owner/name")
	}

	if cfg.Metrics.Port < 0 || cfg.Metrics.Port > 65535 {
		errs = append(errs, "metrics.port must be between 0 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
