package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Project name used in the community heading
	Project string `yaml:"project" mapstructure:"project"`

	Repo      RepoConfig      `yaml:"repo" mapstructure:"repo"`
	GitHub    GitHubConfig    `yaml:"github" mapstructure:"github"`
	Filters   FilterConfig    `yaml:"filters" mapstructure:"filters"`
	Changelog ChangelogConfig `yaml:"changelog" mapstructure:"changelog"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

type RepoConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`
	Branch string `yaml:"branch" mapstructure:"branch"` // target branch, e.g. jetty-12.0.x
	OldTag string `yaml:"old_tag" mapstructure:"old_tag"`
	NewTag string `yaml:"new_tag" mapstructure:"new_tag"`
}

type GitHubConfig struct {
	Owner     string  `yaml:"owner" mapstructure:"owner"`
	Repo      string  `yaml:"repo" mapstructure:"repo"`
	Token     string  `yaml:"token" mapstructure:"token"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // Requests per second
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
}

type FilterConfig struct {
	ExcludedLabels   []string    `yaml:"excluded_labels" mapstructure:"excluded_labels"`
	PathExclusions   []MatchRule `yaml:"path_exclusions" mapstructure:"path_exclusions"`
	BranchExclusions []MatchRule `yaml:"branch_exclusions" mapstructure:"branch_exclusions"`
	RequireClosed    bool        `yaml:"require_closed" mapstructure:"require_closed"`
}

type ChangelogConfig struct {
	TitlePriority      string `yaml:"title_priority" mapstructure:"title_priority"` // "issue" or "pull-request"
	MaxResolveAttempts int    `yaml:"max_resolve_attempts" mapstructure:"max_resolve_attempts"`
}

type CacheConfig struct {
	Directory string `yaml:"directory" mapstructure:"directory"`
	Disabled  bool   `yaml:"disabled" mapstructure:"disabled"`
}

type OutputConfig struct {
	Directory   string `yaml:"directory" mapstructure:"directory"`
	Format      string `yaml:"format" mapstructure:"format"`
	AuthorsFile string `yaml:"authors_file" mapstructure:"authors_file"`
	Dump        bool   `yaml:"dump" mapstructure:"dump"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Repo: RepoConfig{
			Path: ".",
		},
		GitHub: GitHubConfig{
			RateLimit: 1, // GitHub allows 5,000 requests/hour
		},
		Changelog: ChangelogConfig{
			TitlePriority:      "issue",
			MaxResolveAttempts: 3,
		},
		Cache: CacheConfig{
			Directory: filepath.Join(homeDir, ".changelog", "cache"),
		},
		Output: OutputConfig{
			Directory:   "target",
			Format:      "markdown",
			AuthorsFile: "authors.yml",
			Dump:        true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file, .env files and the environment
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	setDefaults(v, cfg)

	// CHANGELOG_GITHUB_OWNER -> github.owner
	v.SetEnvPrefix("CHANGELOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".changelog")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".changelog"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg, NewKeyringManager(nil))
	cfg.Cache.Directory = expandPath(cfg.Cache.Directory)
	cfg.Output.Directory = expandPath(cfg.Output.Directory)
	cfg.Output.AuthorsFile = expandPath(cfg.Output.AuthorsFile)
	cfg.Output.SQLitePath = expandPath(cfg.Output.SQLitePath)
	cfg.Log.File = expandPath(cfg.Log.File)

	return cfg, nil
}

// setDefaults registers every leaf key so environment variables can
// override values that no config file mentions.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("project", cfg.Project)
	v.SetDefault("repo.path", cfg.Repo.Path)
	v.SetDefault("repo.branch", cfg.Repo.Branch)
	v.SetDefault("repo.old_tag", cfg.Repo.OldTag)
	v.SetDefault("repo.new_tag", cfg.Repo.NewTag)
	v.SetDefault("github.owner", cfg.GitHub.Owner)
	v.SetDefault("github.repo", cfg.GitHub.Repo)
	v.SetDefault("github.token", cfg.GitHub.Token)
	v.SetDefault("github.rate_limit", cfg.GitHub.RateLimit)
	v.SetDefault("github.base_url", cfg.GitHub.BaseURL)
	v.SetDefault("filters.excluded_labels", cfg.Filters.ExcludedLabels)
	v.SetDefault("filters.require_closed", cfg.Filters.RequireClosed)
	v.SetDefault("changelog.title_priority", cfg.Changelog.TitlePriority)
	v.SetDefault("changelog.max_resolve_attempts", cfg.Changelog.MaxResolveAttempts)
	v.SetDefault("cache.directory", cfg.Cache.Directory)
	v.SetDefault("cache.disabled", cfg.Cache.Disabled)
	v.SetDefault("output.directory", cfg.Output.Directory)
	v.SetDefault("output.format", cfg.Output.Format)
	v.SetDefault("output.authors_file", cfg.Output.AuthorsFile)
	v.SetDefault("output.dump", cfg.Output.Dump)
	v.SetDefault("output.sqlite_path", cfg.Output.SQLitePath)
	v.SetDefault("output.postgres_dsn", cfg.Output.PostgresDSN)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.json", cfg.Log.JSON)
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".changelog", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies the conventional GitHub variables.
// Token precedence: GITHUB_TOKEN, config value, OS keychain.
func applyEnvOverrides(cfg *Config, km *KeyringManager) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	} else if cfg.GitHub.Token == "" && km != nil && km.IsAvailable() {
		if keychainToken, err := km.GetGitHubToken(); err == nil && keychainToken != "" {
			cfg.GitHub.Token = keychainToken
		}
	}

	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.ParseFloat(rateLimit, 64); err == nil {
			cfg.GitHub.RateLimit = rate
		}
	}
	if url := os.Getenv("GITHUB_API_URL"); url != "" {
		cfg.GitHub.BaseURL = url
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("project", c.Project)
	v.Set("repo", c.Repo)
	v.Set("github", map[string]interface{}{
		"owner":      c.GitHub.Owner,
		"repo":       c.GitHub.Repo,
		"rate_limit": c.GitHub.RateLimit,
		"base_url":   c.GitHub.BaseURL,
	}) // the token is never written back
	v.Set("filters", c.Filters)
	v.Set("changelog", c.Changelog)
	v.Set("cache", c.Cache)
	v.Set("output", c.Output)
	v.Set("log", c.Log)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
