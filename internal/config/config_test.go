package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/webtide/changelog-go/internal/errors"
	"github.com/webtide/changelog-go/internal/linking"
)

const sampleConfig = `
project: Eclipse Jetty
repo:
  path: /src/jetty
  branch: jetty-12.0.x
  old_tag: jetty-12.0.1
  new_tag: jetty-12.0.2
github:
  owner: jetty
  repo: jetty.project
  rate_limit: 5
filters:
  excluded_labels: [dependencies, build]
  require_closed: true
  path_exclusions:
    - type: suffix
      value: .md
    - type: blank
  branch_exclusions:
    - type: suffix
      value: jetty-9.4.x
changelog:
  title_priority: pull-request
  max_resolve_attempts: 5
output:
  directory: out
  format: text
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	keyring.MockInit()
	t.Setenv("GITHUB_TOKEN", "")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "Eclipse Jetty", cfg.Project)
	assert.Equal(t, "jetty-12.0.x", cfg.Repo.Branch)
	assert.Equal(t, "jetty-12.0.1", cfg.Repo.OldTag)
	assert.Equal(t, "jetty", cfg.GitHub.Owner)
	assert.Equal(t, 5.0, cfg.GitHub.RateLimit)
	assert.Equal(t, []string{"dependencies", "build"}, cfg.Filters.ExcludedLabels)
	assert.True(t, cfg.Filters.RequireClosed)
	require.Len(t, cfg.Filters.PathExclusions, 2)
	assert.Equal(t, MatchRule{Type: "suffix", Value: ".md"}, cfg.Filters.PathExclusions[0])
	assert.Equal(t, "pull-request", cfg.Changelog.TitlePriority)
	assert.Equal(t, 5, cfg.Changelog.MaxResolveAttempts)
	assert.Equal(t, "text", cfg.Output.Format)

	// untouched sections keep their defaults
	assert.Equal(t, "authors.yml", cfg.Output.AuthorsFile)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	keyring.MockInit()
	t.Setenv("GITHUB_TOKEN", "ghp_from_env")
	t.Setenv("CHANGELOG_REPO_BRANCH", "jetty-12.1.x")
	t.Setenv("CHANGELOG_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "ghp_from_env", cfg.GitHub.Token)
	assert.Equal(t, "jetty-12.1.x", cfg.Repo.Branch)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestTokenFallsBackToKeychain(t *testing.T) {
	keyring.MockInit()
	t.Setenv("GITHUB_TOKEN", "")
	require.NoError(t, NewKeyringManager(nil).SetGitHubToken("ghp_from_keychain"))

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "ghp_from_keychain", cfg.GitHub.Token)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	_, err := Load(writeConfig(t, "repo: [unclosed"))
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	keyring.MockInit()
	t.Setenv("GITHUB_TOKEN", "")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	cfg.GitHub.Token = "secret"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Repo, reloaded.Repo)
	assert.Equal(t, cfg.Changelog, reloaded.Changelog)
}

func TestValidate(t *testing.T) {
	keyring.MockInit()
	t.Setenv("GITHUB_TOKEN", "")
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	result := cfg.Validate()
	assert.False(t, result.HasErrors(), result.Error())
	assert.NotEmpty(t, result.Warnings, "missing token warns")
	assert.NoError(t, result.Err())

	broken := Default()
	broken.Changelog.TitlePriority = "newest"
	broken.Changelog.MaxResolveAttempts = 0
	broken.Filters.PathExclusions = []MatchRule{{Type: "regex", Value: ".*"}}
	broken.Output.Format = "html"

	result = broken.Validate()
	require.True(t, result.HasErrors())
	msg := result.Error()
	for _, want := range []string{"repo.branch", "repo.old_tag", "repo.new_tag", "github.owner", "github.repo",
		"title_priority", "max_resolve_attempts", "path_exclusions", "output.format"} {
		assert.Contains(t, msg, want)
	}

	err = result.Err()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.True(t, errors.IsFatal(err))
}

func TestLinkOptions(t *testing.T) {
	keyring.MockInit()
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	opts, err := cfg.LinkOptions()
	require.NoError(t, err)
	assert.Equal(t, "jetty-12.0.x", opts.Branch)
	assert.Equal(t, "jetty-12.0.1", opts.OldRef)
	assert.Equal(t, linking.PriorityPullRequest, opts.TitlePriority)
	assert.Equal(t, 5, opts.MaxResolveAttempts)
	assert.True(t, opts.RequireClosed)

	require.Len(t, opts.PathExclusions, 2)
	assert.True(t, opts.PathExclusions[0]("README.md"))
	assert.False(t, opts.PathExclusions[0]("src/Main.java"))
	assert.True(t, opts.PathExclusions[1]("  "))

	require.Len(t, opts.BranchExclusions, 1)
	assert.True(t, opts.BranchExclusions[0]("refs/remotes/origin/jetty-9.4.x"))

	cfg.Filters.BranchExclusions = append(cfg.Filters.BranchExclusions, MatchRule{Type: "glob"})
	_, err = cfg.LinkOptions()
	assert.Error(t, err)
}

func TestMatchRulePredicates(t *testing.T) {
	tests := []struct {
		rule  MatchRule
		input string
		want  bool
	}{
		{MatchRule{"prefix", "documentation/"}, "documentation/index.adoc", true},
		{MatchRule{"prefix", "documentation/"}, "src/documentation/x", false},
		{MatchRule{"suffix", ".md"}, "VERSION.md", true},
		{MatchRule{"contains", "/test/"}, "jetty-core/src/test/java/A.java", true},
		{MatchRule{"equals", "pom.xml"}, "pom.xml", true},
		{MatchRule{"equals", "pom.xml"}, "jetty/pom.xml", false},
		{MatchRule{"blank", ""}, "", true},
		{MatchRule{"Blank", ""}, "x", false},
	}
	for _, tt := range tests {
		p, err := tt.rule.Predicate()
		require.NoError(t, err)
		assert.Equal(t, tt.want, p(tt.input), "%s on %q", tt.rule, tt.input)
	}
}
