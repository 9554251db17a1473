package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/lead-manager/internal/domain"
	"github.com/spec-kit/lead-manager/internal/events"
	"github.com/spec-kit/lead-manager/internal/repository"
	apperrors "github.com/spec-kit/lead-manager/pkg/util/errorutil"
)

// ImportRecorder receives per-upload row counts.
type ImportRecorder interface {
	RecordImport(inserted, rejected int)
}

// Result summarizes one ingestion.
type Result struct {
	Inserted []domain.Lead
	Rejected int
}

// Pipeline turns uploaded spreadsheets into stored leads.
type Pipeline struct {
	leads        repository.LeadRepository
	dispatcher   events.Dispatcher
	recorder     ImportRecorder
	logger       *zap.Logger
	parseTimeout time.Duration
	now          func() time.Time
}

// PipelineDependencies bundles collaborators for the pipeline.
type PipelineDependencies struct {
	LeadRepo     repository.LeadRepository
	Dispatcher   events.Dispatcher
	Recorder     ImportRecorder
	Logger       *zap.Logger
	ParseTimeout time.Duration
	Clock        func() time.Time
}

// NewPipeline constructs the pipeline.
func NewPipeline(deps PipelineDependencies) *Pipeline {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		leads:        deps.LeadRepo,
		dispatcher:   deps.Dispatcher,
		recorder:     deps.Recorder,
		logger:       logger,
		parseTimeout: deps.ParseTimeout,
		now:          clock,
	}
}

// IngestStaged ingests a staged upload and deletes it on every exit path.
func (p *Pipeline) IngestStaged(ctx context.Context, staging *Staging, file StagedFile) (*Result, error) {
	defer func() {
		if err := staging.Discard(file); err != nil {
			p.logger.Warn("failed to remove staged upload", zap.String("path", file.Path), zap.Error(err))
		}
	}()

	data, err := staging.Read(file)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("read staged upload: %w", err))
	}
	return p.Ingest(ctx, data)
}

// Ingest parses data, keeps contactable rows and writes them as one batch.
func (p *Pipeline) Ingest(ctx context.Context, data []byte) (*Result, error) {
	rows, err := p.parse(ctx, data)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	candidates := make([]domain.Lead, 0, len(rows))
	for _, row := range rows {
		if lead, ok := RowToLead(row, now); ok {
			candidates = append(candidates, lead)
		}
	}
	rejected := len(rows) - len(candidates)

	if len(candidates) == 0 {
		p.record(0, rejected)
		return nil, apperrors.NewNoValidRows(rejected)
	}

	inserted, err := p.leads.InsertMany(ctx, candidates)
	if err != nil {
		return nil, apperrors.NewStoreWriteError(err)
	}

	p.record(len(inserted), rejected)
	p.logger.Info("leads imported", zap.Int("inserted", len(inserted)), zap.Int("rejected", rejected))
	if p.dispatcher != nil {
		event := events.NewEvent(events.EventLeadsImported, "", events.LeadsImportedPayload{
			Inserted: len(inserted),
			Rejected: rejected,
		})
		if err := p.dispatcher.Publish(ctx, event); err != nil {
			p.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		}
	}
	return &Result{Inserted: inserted, Rejected: rejected}, nil
}

type parseResult struct {
	rows []Row
	err  error
}

// parse runs ParseRows under the configured wall-clock bound.
func (p *Pipeline) parse(ctx context.Context, data []byte) ([]Row, error) {
	if p.parseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.parseTimeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewParseTimeout(err)
	}

	done := make(chan parseResult, 1)
	go func() {
		rows, err := ParseRows(data)
		done <- parseResult{rows: rows, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, apperrors.NewParseTimeout(ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, unsupported(res.err)
		}
		return res.rows, nil
	}
}

func unsupported(err error) error {
	if errors.Is(err, ErrLegacyWorkbook) {
		return apperrors.NewUnsupportedFormat(ErrLegacyWorkbook.Error(), err)
	}
	return apperrors.NewUnsupportedFormat("file is not a readable Excel or CSV document", err)
}

func (p *Pipeline) record(inserted, rejected int) {
	if p.recorder != nil {
		p.recorder.RecordImport(inserted, rejected)
	}
}
