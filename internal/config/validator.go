package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/webtide/changelog-go/internal/errors"
	"github.com/webtide/changelog-go/internal/linking"
	"github.com/webtide/changelog-go/internal/logging"
	"github.com/webtide/changelog-go/internal/output"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	return sb.String()
}

// Err converts a failed validation into a critical configuration error
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigError(strings.TrimSpace(vr.Error()))
}

// Validate checks everything a generate run needs
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	c.validateRepo(result)
	c.validateGitHub(result)
	c.validateFilters(result)
	c.validateChangelog(result)
	c.validateOutput(result)

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		result.AddError("log.level: %v", err)
	}
	if c.Cache.Disabled {
		result.AddWarning("cache is disabled, every run queries GitHub again")
	}

	return result
}

func (c *Config) validateRepo(result *ValidationResult) {
	if c.Repo.Path == "" {
		result.AddError("repo.path is required")
	}
	if c.Repo.Branch == "" {
		result.AddError("repo.branch (target branch) is required")
	}
	if c.Repo.OldTag == "" {
		result.AddError("repo.old_tag is required")
	}
	if c.Repo.NewTag == "" {
		result.AddError("repo.new_tag is required")
	}
	if c.Repo.OldTag != "" && c.Repo.OldTag == c.Repo.NewTag {
		result.AddWarning("repo.old_tag and repo.new_tag are both %q, the range is empty", c.Repo.OldTag)
	}
}

func (c *Config) validateGitHub(result *ValidationResult) {
	if c.GitHub.Owner == "" {
		result.AddError("github.owner is required")
	}
	if c.GitHub.Repo == "" {
		result.AddError("github.repo is required")
	}
	if c.GitHub.Token == "" {
		result.AddWarning("GITHUB_TOKEN is not set. Unauthenticated requests are limited to 60 per hour.")
	}
	if c.GitHub.RateLimit < 0 {
		result.AddError("github.rate_limit must not be negative, got %v", c.GitHub.RateLimit)
	}
	if c.GitHub.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.GitHub.BaseURL); err != nil {
			result.AddError("github.base_url is invalid: %v", err)
		}
	}
}

func (c *Config) validateFilters(result *ValidationResult) {
	for _, rule := range c.Filters.PathExclusions {
		if _, err := rule.Predicate(); err != nil {
			result.AddError("filters.path_exclusions: %v", err)
		}
	}
	for _, rule := range c.Filters.BranchExclusions {
		if _, err := rule.Predicate(); err != nil {
			result.AddError("filters.branch_exclusions: %v", err)
		}
	}
}

func (c *Config) validateChangelog(result *ValidationResult) {
	if _, err := linking.ParseTitlePriority(c.Changelog.TitlePriority); err != nil {
		result.AddError("changelog.title_priority: %v", err)
	}
	if c.Changelog.MaxResolveAttempts < 1 {
		result.AddError("changelog.max_resolve_attempts must be at least 1, got %d", c.Changelog.MaxResolveAttempts)
	}
}

func (c *Config) validateOutput(result *ValidationResult) {
	if _, err := output.ParseFormat(c.Output.Format); err != nil {
		result.AddError("output.format: %v", err)
	}
	if c.Output.Directory == "" {
		result.AddError("output.directory is required")
	}
	if c.Output.PostgresDSN != "" &&
		!strings.HasPrefix(c.Output.PostgresDSN, "postgres://") &&
		!strings.HasPrefix(c.Output.PostgresDSN, "postgresql://") {
		result.AddError("output.postgres_dsn must start with postgres:// or postgresql://")
	}
}

// LinkOptions builds the pipeline options. Tags are passed through as the
// range refs; callers may replace them with resolved commit ids.
func (c *Config) LinkOptions() (linking.Options, error) {
	priority, err := linking.ParseTitlePriority(c.Changelog.TitlePriority)
	if err != nil {
		return linking.Options{}, errors.ConfigErrorf("changelog.title_priority: %v", err)
	}

	paths, err := compileRules(c.Filters.PathExclusions)
	if err != nil {
		return linking.Options{}, errors.ConfigErrorf("filters.path_exclusions: %v", err)
	}
	branches, err := compileRules(c.Filters.BranchExclusions)
	if err != nil {
		return linking.Options{}, errors.ConfigErrorf("filters.branch_exclusions: %v", err)
	}

	return linking.Options{
		Branch:             c.Repo.Branch,
		OldRef:             c.Repo.OldTag,
		NewRef:             c.Repo.NewTag,
		ExcludedLabels:     c.Filters.ExcludedLabels,
		PathExclusions:     paths,
		BranchExclusions:   branches,
		TitlePriority:      priority,
		RequireClosed:      c.Filters.RequireClosed,
		MaxResolveAttempts: c.Changelog.MaxResolveAttempts,
	}, nil
}

// LoggingConfig maps the log section onto the logging package
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig(false)
	cfg.Level = c.Log.Level
	cfg.OutputFile = c.Log.File
	cfg.JSONFormat = c.Log.JSON
	return cfg
}
