package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"invoiceflow/internal/catalog"
	"invoiceflow/internal/model"
	"invoiceflow/internal/notify"

	"github.com/rs/zerolog"
)

// Catalog is the read side of the synchronizer the exporter needs.
type Catalog interface {
	Ready() bool
	ProjectForExport(role model.Role) []catalog.ExportRecord
}

// Recorder observes export outcomes. It is implemented by the metrics package.
type Recorder interface {
	ExportCompleted(sink string, err error)
}

// Exporter renders role-filtered workbooks of the current catalog.
type Exporter struct {
	catalog  Catalog
	sink     Sink
	notifier notify.Notifier
	recorder Recorder
	now      func() time.Time
	logger   zerolog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithNotifier reports backup outcomes to the user.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Exporter) { e.notifier = n }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Exporter) { e.recorder = r }
}

// WithClock overrides the time source used to name backups.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// NewExporter creates an exporter over the catalog. sink may be nil when
// workbooks are only streamed to callers.
func NewExporter(c Catalog, sink Sink, logger zerolog.Logger, opts ...Option) *Exporter {
	e := &Exporter{
		catalog: c,
		sink:    sink,
		now:     time.Now,
		logger:  logger.With().Str("component", "exporter").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Write renders the catalog as seen by role into w.
func (e *Exporter) Write(w io.Writer, role model.Role) error {
	if !e.catalog.Ready() {
		return model.ErrCatalogNotReady
	}
	records := e.catalog.ProjectForExport(role)
	if err := WriteWorkbook(w, catalog.ExportColumns(role), records); err != nil {
		e.logger.Error().Err(err).Str("role", string(role)).Msg("failed to render workbook")
		return err
	}
	e.logger.Debug().Str("role", string(role)).Int("products", len(records)).Msg("workbook rendered")
	return nil
}

// Export renders the catalog for role and stores it in the sink under name.
func (e *Exporter) Export(ctx context.Context, role model.Role, name string) (string, error) {
	if e.sink == nil {
		return "", fmt.Errorf("no export sink configured")
	}

	var buf bytes.Buffer
	if err := e.Write(&buf, role); err != nil {
		return "", err
	}

	location, err := e.sink.Put(ctx, name, buf.Bytes())
	if e.recorder != nil {
		e.recorder.ExportCompleted(e.sink.Name(), err)
	}
	if err != nil {
		return "", fmt.Errorf("failed to store workbook: %w", err)
	}
	return location, nil
}

// BackupName is the file name of a backup taken at t.
func BackupName(t time.Time) string {
	base := strings.TrimSuffix(FileName, ".xlsx")
	return fmt.Sprintf("%s_%s.xlsx", base, t.UTC().Format("20060102T150405Z"))
}

// Backup stores a full-cost workbook named after the current time.
func (e *Exporter) Backup(ctx context.Context) (string, error) {
	location, err := e.Export(ctx, model.RoleAdmin, BackupName(e.now()))
	if err != nil {
		e.logger.Error().Err(err).Msg("catalog backup failed")
		if e.notifier != nil {
			e.notifier.NotifyError("Inventory backup failed")
		}
		return "", err
	}

	e.logger.Info().Str("location", location).Msg("catalog backup written")
	if e.notifier != nil {
		e.notifier.NotifySuccess("Inventory backed up")
	}
	return location, nil
}

// RunBackups takes a backup every interval until ctx is cancelled. Ticks
// before the first snapshot are skipped.
func (e *Exporter) RunBackups(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		e.logger.Info().Msg("periodic backups disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info().Dur("interval", interval).Msg("periodic backups started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("periodic backups stopped")
			return
		case <-ticker.C:
			if !e.catalog.Ready() {
				e.logger.Debug().Msg("catalog not loaded yet, skipping backup")
				continue
			}
			_, _ = e.Backup(ctx)
		}
	}
}
