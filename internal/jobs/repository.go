package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/insight/pkg/pagination"
	"github.com/JaimeStill/insight/pkg/query"
	"github.com/JaimeStill/insight/pkg/repository"
)

const (
	saveRetries   = 3
	saveBaseDelay = 50 * time.Millisecond
)

const saveSQL = `
	INSERT INTO bulk_insight_jobs(
		id, user_id, analysis_type, timeframe, data_sources, output_format, status,
		insights, execution_time_ms, confidence, data_sources_used, total_queries,
		records_analyzed, export_key, error, created_at, updated_at, completed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		insights = EXCLUDED.insights,
		execution_time_ms = EXCLUDED.execution_time_ms,
		confidence = EXCLUDED.confidence,
		data_sources_used = EXCLUDED.data_sources_used,
		total_queries = EXCLUDED.total_queries,
		records_analyzed = EXCLUDED.records_analyzed,
		export_key = EXCLUDED.export_key,
		error = EXCLUDED.error,
		updated_at = EXCLUDED.updated_at,
		completed_at = EXCLUDED.completed_at
	WHERE bulk_insight_jobs.status NOT IN ('completed', 'failed')`

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// NewRepository creates the Postgres-backed job store.
func NewRepository(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "jobs"),
		pagination: pagination,
	}
}

func (r *repo) Save(ctx context.Context, job *Job) error {
	args, err := saveArgs(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	err = repository.WithRetry(ctx, saveRetries, saveBaseDelay, func() error {
		return repository.ExecExpectOne(ctx, r.db, saveSQL, args...)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrTerminal, job.ID)
		}
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.InfoContext(ctx, "job saved", "job_id", job.ID, "status", job.Status)
	return nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Job, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	j, err := repository.QueryOne(ctx, r.db, q, args, scanJob)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &j, nil
}

func (r *repo) ListByUser(
	ctx context.Context,
	userID string,
	page pagination.PageRequest,
) (*pagination.PageResult[Job], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("UserID", userID).
		WhereSearch(page.Search, "AnalysisType", "Status")

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	jobs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanJob)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	result := pagination.NewPageResult(jobs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Active(ctx context.Context, window time.Duration) ([]Job, error) {
	cutoff := time.Now().UTC().Add(-window)

	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereIn("Status", []any{string(StatusPending), string(StatusProcessing)}).
		WhereAfter("CreatedAt", cutoff).
		Build()

	jobs, err := repository.QueryMany(ctx, r.db, q, args, scanJob)
	if err != nil {
		return nil, fmt.Errorf("query active jobs: %w", err)
	}
	return jobs, nil
}
