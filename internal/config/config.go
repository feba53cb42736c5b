// Package config resolves settings from flags, the environment, .env files
// and an optional config.yaml in the home directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/query"
)

// ErrConfig is returned for settings that make a run impossible.
var ErrConfig = errors.New("invalid configuration")

// DefaultHomeDir is the home directory below the user's home.
const DefaultHomeDir = ".github-discussions"

// Config holds the resolved settings.
type Config struct {
	Token      string `mapstructure:"token"`
	Repository string `mapstructure:"repository"`
	OutputDir  string `mapstructure:"output_dir"`
	PageSize   int    `mapstructure:"page_size"`
	LLMReady   bool   `mapstructure:"llm_ready"`
	// ClientID is the OAuth App used by login.
	ClientID string `mapstructure:"client_id"`
	Home     string `mapstructure:"-"`
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// Home overrides GITHUB_DISCUSSIONS_HOME and the default home directory.
	Home string
	// WorkDir is searched for a .env file. Defaults to ".".
	WorkDir string
	// Flags are bound by name: token, repo, output, page-size, llm-ready,
	// client-id.
	Flags *pflag.FlagSet
}

// flag name -> config key
var flagKeys = map[string]string{
	"token":     "token",
	"repo":      "repository",
	"output":    "output_dir",
	"page-size": "page_size",
	"llm-ready": "llm_ready",
	"client-id": "client_id",
}

// Load reads .env files into the environment and resolves the
// configuration. Flags that were set win over the environment, which wins
// over config.yaml, which wins over defaults.
func Load(opts LoadOptions) (*Config, error) {
	home, err := ResolveHome(opts.Home)
	if err != nil {
		return nil, err
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = "."
	}
	// Missing files are fine; the first file to set a variable wins.
	_ = godotenv.Load(filepath.Join(workDir, ".env"))
	_ = godotenv.Load(filepath.Join(home, ".env"))

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(home)

	// Set defaults
	v.SetDefault("output_dir", ".")
	v.SetDefault("page_size", query.DefaultPageSize)
	v.SetDefault("llm_ready", true)

	// Environment variable bindings
	v.SetEnvPrefix("GITHUB_DISCUSSIONS")
	v.AutomaticEnv()
	_ = v.BindEnv("token", "GITHUB_TOKEN")
	_ = v.BindEnv("repository", "GITHUB_REPOSITORY")
	_ = v.BindEnv("output_dir", "GITHUB_DISCUSSIONS_OUTPUT_DIR")
	_ = v.BindEnv("page_size", "GITHUB_DISCUSSIONS_PAGE_SIZE")
	_ = v.BindEnv("client_id", "GITHUB_DISCUSSIONS_CLIENT_ID")

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	cfg.Home = home
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.Repository = strings.TrimSpace(cfg.Repository)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)

	if cfg.PageSize < 1 || cfg.PageSize > query.MaxPageSize {
		return nil, fmt.Errorf("%w: page size must be between 1 and %d, got %d", ErrConfig, query.MaxPageSize, cfg.PageSize)
	}
	return &cfg, nil
}

// ResolveHome returns the home directory: explicit value, then
// GITHUB_DISCUSSIONS_HOME, then ~/.github-discussions. A leading ~/ is
// expanded.
func ResolveHome(explicit string) (string, error) {
	home := explicit
	if home == "" {
		home = os.Getenv("GITHUB_DISCUSSIONS_HOME")
	}
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return ".", nil
		}
		return filepath.Join(userHome, DefaultHomeDir), nil
	}
	if strings.HasPrefix(home, "~/") {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: cannot expand %s: %v", ErrConfig, home, err)
		}
		home = filepath.Join(userHome, home[2:])
	}
	return home, nil
}

// EnvPath is the .env file in the home directory.
func (c *Config) EnvPath() string {
	return filepath.Join(c.Home, ".env")
}

// Repo parses the configured repository reference.
func (c *Config) Repo() (github.Repository, error) {
	if c.Repository == "" {
		return github.Repository{}, fmt.Errorf("%w: repository is required (use -r or GITHUB_REPOSITORY)", ErrConfig)
	}
	repo, err := github.ParseRepository(c.Repository)
	if err != nil {
		return github.Repository{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return repo, nil
}

// Validate checks the settings every network command needs.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("%w: GitHub token is required (use -t, GITHUB_TOKEN or run login)", ErrConfig)
	}
	if _, err := c.Repo(); err != nil {
		return err
	}
	return nil
}
