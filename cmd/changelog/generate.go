package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/webtide/changelog-go/internal/authors"
	"github.com/webtide/changelog-go/internal/cache"
	"github.com/webtide/changelog-go/internal/git"
	"github.com/webtide/changelog-go/internal/github"
	"github.com/webtide/changelog-go/internal/linking"
	"github.com/webtide/changelog-go/internal/logging"
	"github.com/webtide/changelog-go/internal/output"
	"github.com/webtide/changelog-go/internal/storage"
)

var (
	genRepoPath    string
	genBranch      string
	genOldTag      string
	genNewTag      string
	genOwner       string
	genRepo        string
	genOutputDir   string
	genFormat      string
	genPriority    string
	genNoCache     bool
	genNoDump      bool
	genSQLitePath  string
	genPrintReport bool
	genSaveAuthors bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the changelog between two tags",
	Long: `Generate the changelog for the commits reachable from --new-tag but not
from --old-tag.

Examples:
  changelog generate --branch jetty-12.0.x --old-tag jetty-12.0.1 --new-tag jetty-12.0.2

  # Title changes after their pull request instead of their issue
  changelog generate --title-priority pull-request`,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genRepoPath, "repo", "", "path to the git repository")
	f.StringVar(&genBranch, "branch", "", "target branch pull requests must be merged into")
	f.StringVar(&genOldTag, "old-tag", "", "tag of the previous release")
	f.StringVar(&genNewTag, "new-tag", "", "tag of the new release")
	f.StringVar(&genOwner, "owner", "", "GitHub owner (default: parsed from the origin remote)")
	f.StringVar(&genRepo, "github-repo", "", "GitHub repository name (default: parsed from the origin remote)")
	f.StringVarP(&genOutputDir, "output", "o", "", "output directory")
	f.StringVar(&genFormat, "format", "", "report format: markdown, text or json")
	f.StringVar(&genPriority, "title-priority", "", "which record titles a change: issue or pull-request")
	f.BoolVar(&genNoCache, "no-cache", false, "do not read or write the lookup cache")
	f.BoolVar(&genNoDump, "no-dump", false, "skip the JSON record dump")
	f.StringVar(&genSQLitePath, "sqlite", "", "also store the run in this SQLite database")
	f.BoolVar(&genPrintReport, "print", false, "print the report to stdout as well")
	f.BoolVar(&genSaveAuthors, "save-authors", false, "write authors and handles discovered during the run back to the authors file")
}

func applyGenerateFlags(cmd *cobra.Command) {
	set := func(name string, dst *string, value string) {
		if cmd.Flags().Changed(name) {
			*dst = value
		}
	}
	set("repo", &cfg.Repo.Path, genRepoPath)
	set("branch", &cfg.Repo.Branch, genBranch)
	set("old-tag", &cfg.Repo.OldTag, genOldTag)
	set("new-tag", &cfg.Repo.NewTag, genNewTag)
	set("owner", &cfg.GitHub.Owner, genOwner)
	set("github-repo", &cfg.GitHub.Repo, genRepo)
	set("output", &cfg.Output.Directory, genOutputDir)
	set("format", &cfg.Output.Format, genFormat)
	set("title-priority", &cfg.Changelog.TitlePriority, genPriority)
	set("sqlite", &cfg.Output.SQLitePath, genSQLitePath)
	if genNoCache {
		cfg.Cache.Disabled = true
	}
	if genNoDump {
		cfg.Output.Dump = false
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	applyGenerateFlags(cmd)
	started := time.Now()

	reader := git.NewReader(cfg.Repo.Path, logger.WithField("component", "git"))
	if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
		if remote, err := reader.RemoteURL(ctx, "origin"); err == nil {
			if owner, repo, err := git.ParseRepoURL(remote); err == nil {
				if cfg.GitHub.Owner == "" {
					cfg.GitHub.Owner = owner
				}
				if cfg.GitHub.Repo == "" {
					cfg.GitHub.Repo = repo
				}
			}
		}
	}

	validation := cfg.Validate()
	for _, warn := range validation.Warnings {
		logger.Warn(warn)
	}
	if err := validation.Err(); err != nil {
		return err
	}

	opts, err := cfg.LinkOptions()
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	// Both tags must exist before any tracker traffic
	if opts.OldRef, err = reader.ResolveTag(ctx, cfg.Repo.OldTag); err != nil {
		return err
	}
	if opts.NewRef, err = reader.ResolveTag(ctx, cfg.Repo.NewTag); err != nil {
		return err
	}

	client, err := github.NewClient(github.Options{
		Owner:     cfg.GitHub.Owner,
		Repo:      cfg.GitHub.Repo,
		Token:     cfg.GitHub.Token,
		RateLimit: cfg.GitHub.RateLimit,
		BaseURL:   cfg.GitHub.BaseURL,
	}, logger.WithField("component", "github"))
	if err != nil {
		return err
	}

	var (
		vcs     linking.VCS     = reader
		tracker linking.Tracker = client
	)
	if !cfg.Cache.Disabled {
		store, err := cache.Open(cfg.Cache.Directory, logger.WithField("component", "cache"))
		if err != nil {
			return err
		}
		defer store.Close()
		vcs = git.NewCachedReader(reader, store, logger.WithField("component", "cache"))
		tracker = github.NewCachedTracker(client, client.Repository(), store, logger.WithField("component", "cache"))
	}

	registry, err := authors.Load(cfg.Output.AuthorsFile)
	if err != nil {
		return err
	}

	orchestrator := linking.NewOrchestrator(vcs, tracker, registry, opts, logger)
	result, err := orchestrator.Run(ctx)
	if err != nil {
		return err
	}

	if genSaveAuthors {
		if err := result.Authors.Save(cfg.Output.AuthorsFile); err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"file":    cfg.Output.AuthorsFile,
			"authors": result.Authors.Len(),
		}).Info("Saved authors")
	}

	report := output.BuildReport(cfg.Project, result.Changes)
	reportPath, err := writeReport(report, format, cmd)
	if err != nil {
		return err
	}

	run := storage.NewRun(started)
	run.Project = cfg.Project
	run.Owner = cfg.GitHub.Owner
	run.Repo = cfg.GitHub.Repo
	run.Branch = cfg.Repo.Branch
	run.OldRef = cfg.Repo.OldTag
	run.NewRef = cfg.Repo.NewTag
	run.Store = result.Store
	run.Authors = result.Authors.All()
	run.Changes = result.Changes

	if err := export(ctx, run); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"run_id":   run.ID,
		"report":   reportPath,
		"changes":  len(report.Lines),
		"thanks":   len(report.Community),
		"duration": time.Since(started).Round(time.Millisecond),
	}).Info("Changelog generated")

	if logging.IsInteractive() && !genPrintReport {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d changes to %s\n", len(report.Lines), reportPath)
	}
	return nil
}

func writeReport(report *output.Report, format output.Format, cmd *cobra.Command) (string, error) {
	var buf bytes.Buffer
	if err := output.NewFormatter(format).Format(report, &buf); err != nil {
		return "", err
	}

	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := "changelog.md"
	switch format {
	case output.FormatText:
		name = "changelog.txt"
	case output.FormatJSON:
		name = "changelog.json"
	}
	path := filepath.Join(cfg.Output.Directory, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	if genPrintReport {
		cmd.OutOrStdout().Write(buf.Bytes())
	}
	return path, nil
}

func export(ctx context.Context, run *storage.Run) error {
	var exporters []storage.Exporter

	if cfg.Output.Dump {
		exporters = append(exporters, storage.NewJSONExporter(cfg.Output.Directory))
	}
	if cfg.Output.SQLitePath != "" {
		sqlite, err := storage.NewSQLiteExporter(cfg.Output.SQLitePath, logger.WithField("component", "sqlite"))
		if err != nil {
			return err
		}
		defer sqlite.Close()
		exporters = append(exporters, sqlite)
	}
	if cfg.Output.PostgresDSN != "" {
		pg, err := storage.NewPostgresExporter(cfg.Output.PostgresDSN, logger.WithField("component", "postgres"))
		if err != nil {
			return err
		}
		defer pg.Close()
		exporters = append(exporters, pg)
	}

	if len(exporters) == 0 {
		return nil
	}
	return storage.NewMultiExporter(logger, exporters...).Export(ctx, run)
}
