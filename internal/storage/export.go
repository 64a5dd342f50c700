package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/webtide/changelog-go/internal/logging"
	"github.com/webtide/changelog-go/internal/models"
)

// Run is one changelog generation and everything it produced
type Run struct {
	ID        string
	Project   string
	Owner     string
	Repo      string
	Branch    string
	OldRef    string
	NewRef    string
	StartedAt time.Time

	Store   *models.Store
	Authors []*models.Author
	Changes []*models.Change
}

// NewRun stamps a run with a fresh id
func NewRun(startedAt time.Time) *Run {
	return &Run{ID: uuid.NewString(), StartedAt: startedAt.UTC()}
}

// Exporter persists a finished run
type Exporter interface {
	Name() string
	Export(ctx context.Context, run *Run) error
}

// MultiExporter runs several exporters concurrently. The run is only read.
type MultiExporter struct {
	exporters []Exporter
	logger    logrus.FieldLogger
}

// NewMultiExporter combines exporters
func NewMultiExporter(logger logrus.FieldLogger, exporters ...Exporter) *MultiExporter {
	return &MultiExporter{exporters: exporters, logger: logging.OrDiscard(logger)}
}

func (m *MultiExporter) Name() string { return "multi" }

// Export runs every exporter and returns the first failure
func (m *MultiExporter) Export(ctx context.Context, run *Run) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, exp := range m.exporters {
		exp := exp
		g.Go(func() error {
			start := time.Now()
			if err := exp.Export(ctx, run); err != nil {
				return fmt.Errorf("%s export failed: %w", exp.Name(), err)
			}
			m.logger.WithFields(logrus.Fields{
				"exporter": exp.Name(),
				"run_id":   run.ID,
				"duration": time.Since(start),
			}).Info("Export complete")
			return nil
		})
	}
	return g.Wait()
}
