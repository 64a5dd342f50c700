package linking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/webtide/changelog-go/internal/authors"
	"github.com/webtide/changelog-go/internal/errors"
	"github.com/webtide/changelog-go/internal/logging"
	"github.com/webtide/changelog-go/internal/models"
)

// ProcessingStats summarizes a complete run
type ProcessingStats struct {
	Commits        int
	Resolve        ResolveStats
	Link           LinkStats
	Changes        int
	SkippedChanges int
	Duration       time.Duration
}

// Result is everything a run produced
type Result struct {
	Store   *models.Store
	Authors *authors.Registry
	Changes []*models.Change
	Stats   ProcessingStats
}

// Orchestrator runs collection, resolution, linkage and grouping in order
type Orchestrator struct {
	vcs     VCS
	tracker Tracker
	authors *authors.Registry
	opts    Options
	log     logrus.FieldLogger
}

// NewOrchestrator creates an orchestrator. registry may be nil.
func NewOrchestrator(vcs VCS, tracker Tracker, registry *authors.Registry, opts Options, log logrus.FieldLogger) *Orchestrator {
	if registry == nil {
		registry = authors.NewRegistry()
	}
	return &Orchestrator{
		vcs:     vcs,
		tracker: tracker,
		authors: registry,
		opts:    opts,
		log:     logging.OrDiscard(log),
	}
}

// Validate reports configuration errors that must stop a run before any I/O
func (o Options) Validate() error {
	var missing []string
	if strings.TrimSpace(o.Branch) == "" {
		missing = append(missing, "branch")
	}
	if strings.TrimSpace(o.OldRef) == "" {
		missing = append(missing, "old ref")
	}
	if strings.TrimSpace(o.NewRef) == "" {
		missing = append(missing, "new ref")
	}
	if len(missing) > 0 {
		return errors.ConfigErrorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Run executes the complete pipeline
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if err := o.opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	store := models.NewStore()
	result := &Result{Store: store, Authors: o.authors}

	o.log.WithFields(logrus.Fields{
		"branch":   o.opts.Branch,
		"old":      o.opts.OldRef,
		"new":      o.opts.NewRef,
		"priority": o.opts.TitlePriority,
	}).Info("Changelog run starting")

	var lookup AuthorLookup
	if al, ok := o.tracker.(AuthorLookup); ok {
		lookup = al
	}

	collector := NewCollector(store, o.vcs, o.authors, lookup, o.log.WithField("phase", "collect"))
	commits, err := collector.Collect(ctx, o.opts.OldRef, o.opts.NewRef)
	if err != nil {
		return result, fmt.Errorf("collect phase failed: %w", err)
	}
	result.Stats.Commits = commits

	resolver := NewResolver(store, o.tracker, o.opts, o.log.WithField("phase", "resolve"))
	result.Stats.Resolve, err = resolver.Run(ctx)
	if err != nil {
		return result, fmt.Errorf("resolve phase failed: %w", err)
	}

	linker := NewLinker(store, o.vcs, o.opts, o.log.WithField("phase", "link"))
	result.Stats.Link, err = linker.Run(ctx)
	if err != nil {
		return result, fmt.Errorf("link phase failed: %w", err)
	}

	grouper := NewGrouper(store, o.opts.TitlePriority, o.log.WithField("phase", "group"))
	result.Changes = grouper.Group()

	result.Stats.Changes = len(result.Changes)
	for _, c := range result.Changes {
		if c.Skip {
			result.Stats.SkippedChanges++
		}
	}
	result.Stats.Duration = time.Since(start)

	o.log.WithFields(logrus.Fields{
		"commits":         result.Stats.Commits,
		"issues":          result.Stats.Resolve.Issues,
		"pull_requests":   result.Stats.Resolve.PullRequests,
		"invalid":         result.Stats.Resolve.Invalid,
		"changes":         result.Stats.Changes,
		"skipped_changes": result.Stats.SkippedChanges,
		"duration":        result.Stats.Duration.Round(time.Millisecond),
	}).Info("Changelog run complete")

	return result, nil
}
