package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/insight/internal/agents"
	"github.com/JaimeStill/insight/internal/jobs"
	"github.com/JaimeStill/insight/internal/metrics"
	"github.com/JaimeStill/insight/internal/router"
	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/pkg/storage"
)

// DefaultConfidence is the job confidence when no analysis succeeded.
const DefaultConfidence = 85

const defaultParallelism = 4

// Router answers one question against an explicit data source.
type Router interface {
	Route(ctx context.Context, query string, explicit *sources.DataSource) router.Result
}

// Orchestrator expands bulk requests and runs their analyses.
type Orchestrator struct {
	router       Router
	jobs         jobs.System
	blobs        storage.System
	exportPrefix string
	parallelism  int
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithParallelism bounds concurrent analyses per job.
func WithParallelism(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithExport enables report export to blobs under prefix.
func WithExport(blobs storage.System, prefix string) Option {
	return func(o *Orchestrator) {
		o.blobs = blobs
		o.exportPrefix = strings.Trim(prefix, "/")
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
func New(r Router, store jobs.System, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		router:       r,
		jobs:         store,
		exportPrefix: "exports",
		parallelism:  defaultParallelism,
		now:          time.Now,
		logger:       logger.With("system", "bulk"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes every analysis of req and returns the finished job.
// When ctx is cancelled mid-run the job is left in processing and the
// context error is returned alongside the partial job.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*jobs.Job, error) {
	job, tuples, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, job, tuples, nil)
}

// Stream starts req and returns a channel of job snapshots: one after the job
// starts processing, one per finished analysis and the terminal job. The
// channel is closed when the run ends or ctx is cancelled.
func (o *Orchestrator) Stream(ctx context.Context, req Request) (<-chan *jobs.Job, error) {
	job, tuples, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	updates := make(chan *jobs.Job, 1)
	go func() {
		defer close(updates)
		publish := func(snapshot *jobs.Job) {
			select {
			case <-ctx.Done():
			case updates <- snapshot:
			}
		}
		final, err := o.execute(ctx, job, tuples, publish)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			o.logger.ErrorContext(ctx, "bulk job failed to persist", "job_id", job.ID, "error", err)
		}
		publish(final)
	}()

	return updates, nil
}

// prepare validates req, expands it and persists the pending job.
func (o *Orchestrator) prepare(ctx context.Context, req Request) (*jobs.Job, []Template, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	tuples, err := Expand(req)
	if err != nil {
		return nil, nil, err
	}

	job, err := jobs.New(req.UserID, string(req.AnalysisType), o.now())
	if err != nil {
		return nil, nil, fmt.Errorf("create job: %w", err)
	}
	job.Timeframe = string(req.Timeframe)
	job.OutputFormat = string(req.OutputFormat)
	for _, s := range req.DataSources {
		job.DataSources = append(job.DataSources, string(s))
	}

	if err := o.jobs.Save(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("save job: %w", err)
	}
	o.record(job)

	o.logger.InfoContext(ctx, "bulk job created",
		"job_id", job.ID,
		"user_id", job.UserID,
		"analysis_type", job.AnalysisType,
		"analyses", len(tuples),
	)
	return job, tuples, nil
}

func (o *Orchestrator) execute(ctx context.Context, job *jobs.Job, tuples []Template, publish func(*jobs.Job)) (*jobs.Job, error) {
	start := o.now()
	metrics.JobsActive.Inc()
	defer metrics.JobsActive.Dec()

	if err := o.transition(ctx, job, jobs.StatusProcessing); err != nil {
		o.abandon(ctx, job, err)
		return job.Clone(), err
	}
	if publish != nil {
		publish(job.Clone())
	}

	var (
		mu       sync.Mutex
		sections = make([]*jobs.InsightSection, len(tuples))
		g        errgroup.Group
	)
	g.SetLimit(o.parallelism)

	for i, t := range tuples {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			section, err := o.analyze(ctx, t)
			if err != nil {
				o.logger.WarnContext(ctx, "analysis skipped",
					"job_id", job.ID,
					"title", t.Title,
					"source", t.Source,
					"error", err,
				)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			sections[i] = section
			if publish != nil {
				snapshot := job.Clone()
				snapshot.Insights = collect(sections)
				publish(snapshot)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		o.logger.WarnContext(ctx, "bulk job abandoned", "job_id", job.ID, "error", err)
		return job.Clone(), err
	}

	job.Insights = collect(sections)
	aggregate(job)
	job.ExecutionTime = o.now().Sub(start).Milliseconds()

	next := jobs.StatusCompleted
	if len(job.Insights) == 0 && len(tuples) > 0 {
		next = jobs.StatusFailed
		job.Error = fmt.Sprintf("%s: %d of %d", ErrAllFailed, len(tuples), len(tuples))
	}

	if err := job.Transition(next, o.now()); err != nil {
		return job.Clone(), err
	}
	if next == jobs.StatusCompleted {
		o.export(ctx, job)
	}
	if err := o.save(ctx, job); err != nil {
		return job.Clone(), err
	}

	o.logger.InfoContext(ctx, "bulk job finished",
		"job_id", job.ID,
		"status", job.Status,
		"insights", len(job.Insights),
		"analyses", len(tuples),
		"duration_ms", job.ExecutionTime,
	)
	return job.Clone(), nil
}

func (o *Orchestrator) transition(ctx context.Context, job *jobs.Job, next jobs.Status) error {
	if err := job.Transition(next, o.now()); err != nil {
		return err
	}
	return o.save(ctx, job)
}

func (o *Orchestrator) save(ctx context.Context, job *jobs.Job) error {
	if err := o.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("save job %s: %w", job.Status, err)
	}
	o.record(job)
	return nil
}

// abandon records a job that could not be moved to processing as failed so
// it does not sit in pending. A second persistence failure is only logged.
func (o *Orchestrator) abandon(ctx context.Context, job *jobs.Job, cause error) {
	job.Error = cause.Error()
	if err := job.Transition(jobs.StatusFailed, o.now()); err != nil {
		o.logger.ErrorContext(ctx, "bulk job stuck", "job_id", job.ID, "status", job.Status, "error", cause)
		return
	}
	if err := o.save(ctx, job); err != nil {
		o.logger.ErrorContext(ctx, "bulk job stuck", "job_id", job.ID, "status", jobs.StatusPending, "error", err)
		return
	}
	o.logger.WarnContext(ctx, "bulk job failed to start", "job_id", job.ID, "error", cause)
}

func (o *Orchestrator) record(job *jobs.Job) {
	metrics.JobTransitions.WithLabelValues(string(job.Status)).Inc()
}

// analyze routes one templated question and converts the answer into a section.
func (o *Orchestrator) analyze(ctx context.Context, t Template) (*jobs.InsightSection, error) {
	source := t.Source
	res := o.router.Route(ctx, t.Query, &source)
	if !res.Success {
		if res.Error == "" {
			return nil, errors.New("analysis failed")
		}
		return nil, errors.New(res.Error)
	}
	return section(t, res), nil
}

func section(t Template, res router.Result) *jobs.InsightSection {
	s := &jobs.InsightSection{
		Title:           t.Title,
		Category:        t.Category,
		Priority:        t.Priority,
		Summary:         res.Response,
		Metrics:         []jobs.InsightMetric{},
		Recommendations: []string{},
		Confidence:      res.Confidence,
		SQL:             res.SQLQuery,
		DataSource:      string(res.Classification.DataSource),
		Records:         len(res.QueryResults),
	}
	if res.AgentUsed == agents.NameSimple {
		s.DataSource = string(sources.Coupa)
	}
	for _, source := range res.SourcesQueried {
		s.Sources = append(s.Sources, string(source))
	}
	s.Queries = len(s.Sources)
	if s.Queries == 0 && s.SQL != "" {
		s.Sources = []string{s.DataSource}
		s.Queries = 1
	}

	if res.Report != nil {
		if res.Report.ExecutiveSummary != "" {
			s.Summary = res.Report.ExecutiveSummary
		}
		for _, m := range res.Report.Metrics {
			s.Metrics = append(s.Metrics, jobs.InsightMetric{Label: m.Label, Value: m.Value, Raw: m.Raw})
			if m.Label == agents.MetricRecordCount {
				if n, ok := parseCount(m.Value); ok {
					s.Records = n
				}
			}
		}
		for _, r := range res.Report.Recommendations {
			s.Recommendations = append(s.Recommendations, r.Text)
		}
	}
	return s
}

func parseCount(v string) (int, bool) {
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(v), ",", ""))
	return n, err == nil
}

func collect(sections []*jobs.InsightSection) []jobs.InsightSection {
	out := make([]jobs.InsightSection, 0, len(sections))
	for _, s := range sections {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// aggregate derives the job-level figures from its sections. Data sources
// and query counts come from the statements each section actually executed.
func aggregate(job *jobs.Job) {
	job.Confidence = DefaultConfidence
	job.DataSourcesUsed = []string{}
	job.TotalQueries = 0
	job.RecordsAnalyzed = 0

	if len(job.Insights) == 0 {
		return
	}

	var total int
	for _, s := range job.Insights {
		total += s.Confidence
		for _, source := range s.Sources {
			if !slices.Contains(job.DataSourcesUsed, source) {
				job.DataSourcesUsed = append(job.DataSourcesUsed, source)
			}
		}
		job.TotalQueries += s.Queries
		job.RecordsAnalyzed += s.Records
	}
	job.Confidence = float64(total) / float64(len(job.Insights))
}
