package bulk_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/insight/internal/agents"
	"github.com/JaimeStill/insight/internal/bulk"
	"github.com/JaimeStill/insight/internal/classifier"
	"github.com/JaimeStill/insight/internal/jobs"
	"github.com/JaimeStill/insight/internal/pipeline"
	"github.com/JaimeStill/insight/internal/router"
	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/pkg/lifecycle"
	"github.com/JaimeStill/insight/pkg/pagination"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type routerFunc func(ctx context.Context, query string, explicit *sources.DataSource) router.Result

func (f routerFunc) Route(ctx context.Context, query string, explicit *sources.DataSource) router.Result {
	return f(ctx, query, explicit)
}

func answer(source sources.DataSource, confidence int, records string) router.Result {
	queried := []sources.DataSource{source}
	if source == sources.Combined {
		queried = sources.Concrete()
	}
	return router.Result{
		Success:        true,
		Response:       "answer",
		SQLQuery:       "SELECT 1",
		SourcesQueried: queried,
		AgentUsed:      string(source),
		Confidence:     confidence,
		Classification: classifier.Result{
			DataSource: source,
			Confidence: confidence,
		},
		Report: &pipeline.Report{
			ExecutiveSummary: "summary for " + string(source),
			Metrics: []pipeline.Metric{
				{Label: agents.MetricTotalAmount, Value: "$100.00", Raw: 100},
				{Label: agents.MetricRecordCount, Value: records},
			},
			Recommendations: []pipeline.Recommendation{{Horizon: "immediate", Text: "act"}},
		},
	}
}

func answering(confidence int) bulk.Router {
	return routerFunc(func(ctx context.Context, query string, explicit *sources.DataSource) router.Result {
		return answer(*explicit, confidence, "10")
	})
}

// recordingStore keeps the latest record per job and every status it saw.
type recordingStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*jobs.Job
	history []jobs.Status
}

func newStore() *recordingStore {
	return &recordingStore{jobs: make(map[uuid.UUID]*jobs.Job)}
}

func (s *recordingStore) Save(ctx context.Context, j *jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.jobs[j.ID]; ok && existing.Status.Terminal() {
		return jobs.ErrTerminal
	}
	s.jobs[j.ID] = j.Clone()
	s.history = append(s.history, j.Status)
	return nil
}

func (s *recordingStore) Find(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	return j.Clone(), nil
}

func (s *recordingStore) ListByUser(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResult[jobs.Job], error) {
	result := pagination.NewPageResult[jobs.Job](nil, 0, 1, 1)
	return &result, nil
}

func (s *recordingStore) Active(ctx context.Context, window time.Duration) ([]jobs.Job, error) {
	return nil, nil
}

func (s *recordingStore) statuses() []jobs.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]jobs.Status(nil), s.history...)
}

type memoryBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newBlobs() *memoryBlobs {
	return &memoryBlobs{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (b *memoryBlobs) Start(lc *lifecycle.Coordinator) error { return nil }

func (b *memoryBlobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *memoryBlobs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestTemplates_Comprehensive(t *testing.T) {
	var want []bulk.Template
	for _, at := range []bulk.AnalysisType{
		bulk.SpendAnalysis,
		bulk.SupplierPerformance,
		bulk.RiskAssessment,
		bulk.CostOptimization,
	} {
		list, err := bulk.Templates(at)
		require.NoError(t, err)
		require.NotEmpty(t, list)
		want = append(want, list...)
	}

	got, err := bulk.Templates(bulk.Comprehensive)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTemplates_Unknown(t *testing.T) {
	_, err := bulk.Templates("vendor_gossip")
	assert.ErrorIs(t, err, bulk.ErrInvalidRequest)
}

func TestExpand(t *testing.T) {
	t.Run("timeframe appended", func(t *testing.T) {
		tuples, err := bulk.Expand(bulk.Request{UserID: "u", AnalysisType: bulk.RiskAssessment, Timeframe: bulk.CurrentQuarter})
		require.NoError(t, err)
		for _, tp := range tuples {
			assert.True(t, strings.HasSuffix(tp.Query, " for the current quarter"), tp.Query)
		}
	})

	t.Run("custom range", func(t *testing.T) {
		tuples, err := bulk.Expand(bulk.Request{
			UserID:       "u",
			AnalysisType: bulk.SpendAnalysis,
			Timeframe:    bulk.Custom,
			DateRange: &bulk.DateRange{
				Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
			},
		})
		require.NoError(t, err)
		assert.Contains(t, tuples[0].Query, "between 2025-01-01 and 2025-03-31")
	})

	t.Run("source filter", func(t *testing.T) {
		tuples, err := bulk.Expand(bulk.Request{
			UserID:       "u",
			AnalysisType: bulk.Comprehensive,
			DataSources:  []sources.DataSource{sources.Baan},
		})
		require.NoError(t, err)
		require.NotEmpty(t, tuples)
		for _, tp := range tuples {
			assert.Equal(t, sources.Baan, tp.Source)
		}
	})

	t.Run("templates untouched", func(t *testing.T) {
		_, err := bulk.Expand(bulk.Request{UserID: "u", AnalysisType: bulk.SpendAnalysis, Timeframe: bulk.CurrentYear})
		require.NoError(t, err)
		list, _ := bulk.Templates(bulk.SpendAnalysis)
		assert.NotContains(t, list[0].Query, "current year")
	})
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  bulk.Request
		ok   bool
	}{
		{"minimal", bulk.Request{UserID: "u", AnalysisType: bulk.SpendAnalysis}, true},
		{"comprehensive", bulk.Request{UserID: "u", AnalysisType: bulk.Comprehensive, OutputFormat: bulk.FormatMarkdown}, true},
		{"missing user", bulk.Request{AnalysisType: bulk.SpendAnalysis}, false},
		{"unknown type", bulk.Request{UserID: "u", AnalysisType: "other"}, false},
		{"unknown timeframe", bulk.Request{UserID: "u", AnalysisType: bulk.SpendAnalysis, Timeframe: "next_decade"}, false},
		{"custom without range", bulk.Request{UserID: "u", AnalysisType: bulk.SpendAnalysis, Timeframe: bulk.Custom}, false},
		{"unknown source", bulk.Request{UserID: "u", AnalysisType: bulk.SpendAnalysis, DataSources: []sources.DataSource{"sap"}}, false},
		{"unknown format", bulk.Request{UserID: "u", AnalysisType: bulk.SpendAnalysis, OutputFormat: "pdf"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, bulk.ErrInvalidRequest)
			}
		})
	}
}

func TestRun_OneFailureOfFive(t *testing.T) {
	tuples, err := bulk.Templates(bulk.SpendAnalysis)
	require.NoError(t, err)
	require.Len(t, tuples, 5)
	failing := tuples[2].Query

	r := routerFunc(func(ctx context.Context, query string, explicit *sources.DataSource) router.Result {
		if query == failing {
			return router.Result{Success: false, Error: "query execution failed", AgentUsed: agents.NameSimple}
		}
		return answer(*explicit, 80, "10")
	})

	store := newStore()
	o := bulk.New(r, store, discard())

	job, err := o.Run(context.Background(), bulk.Request{UserID: "u", AnalysisType: bulk.SpendAnalysis})
	require.NoError(t, err)

	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Len(t, job.Insights, 4)
	assert.Empty(t, job.Error)
	assert.NotNil(t, job.CompletedAt)
	for _, s := range job.Insights {
		assert.NotEqual(t, tuples[2].Title, s.Title)
	}

	assert.Equal(t, []jobs.Status{jobs.StatusPending, jobs.StatusProcessing, jobs.StatusCompleted}, store.statuses())

	stored, err := store.Find(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, stored.Status)
	assert.Len(t, stored.Insights, 4)
}

func TestRun_Aggregates(t *testing.T) {
	confidence := map[sources.DataSource]int{sources.Coupa: 90, sources.Baan: 70, sources.Combined: 80}
	r := routerFunc(func(ctx context.Context, query string, explicit *sources.DataSource) router.Result {
		return answer(*explicit, confidence[*explicit], "1,200")
	})

	o := bulk.New(r, newStore(), discard())
	job, err := o.Run(context.Background(), bulk.Request{UserID: "u", AnalysisType: bulk.SpendAnalysis})
	require.NoError(t, err)

	// three coupa, one baan, one combined running a statement per source
	assert.InDelta(t, (90*3+70+80)/5.0, job.Confidence, 0.001)
	assert.Equal(t, []string{"coupa", "baan"}, job.DataSourcesUsed)
	assert.Equal(t, 6, job.TotalQueries)
	assert.Equal(t, 6000, job.RecordsAnalyzed)
	assert.GreaterOrEqual(t, job.ExecutionTime, int64(0))
}

func TestRun_SectionWithoutSourceList(t *testing.T) {
	r := routerFunc(func(ctx context.Context, query string, explicit *sources.DataSource) router.Result {
		res := answer(*explicit, 80, "1")
		res.SourcesQueried = nil
		if *explicit == sources.Baan {
			res.SQLQuery = ""
		}
		return res
	})

	o := bulk.New(r, newStore(), discard())
	job, err := o.Run(context.Background(), bulk.Request{
		UserID:       "u",
		AnalysisType: bulk.SpendAnalysis,
		DataSources:  []sources.DataSource{sources.Coupa, sources.Baan},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"coupa"}, job.DataSourcesUsed, "sections without SQL ran no statement")
	assert.Equal(t, 3, job.TotalQueries)
}

func TestRun_PreservesTemplateOrder(t *testing.T) {
	r := routerFunc(func(ctx context.Context, query string, explicit *sources.DataSource) router.Result {
		time.Sleep(time.Duration(len(query)%7) * time.Millisecond)
		return answer(*explicit, 80, "1")
	})

	o := bulk.New(r, newStore(), discard(), bulk.WithParallelism(8))
	job, err := o.Run(context.Background(), bulk.Request{UserID: "u", AnalysisType: bulk.Comprehensive})
	require.NoError(t, err)

	tuples, _ := bulk.Templates(bulk.Comprehensive)
	require.Len(t, job.Insights, len(tuples))
	for i, tp := range tuples {
		assert.Equal(t, tp.Title, job.Insights[i].Title)
		assert.Equal(t, tp.Priority, job.Insights[i].Priority)
	}
}

func TestRun_AllFailed(t *testing.T) {
	r := routerFunc(func(ctx context.Context, query string, explicit *sources.DataSource) router.Result {
		return router.Result{Success: false, Error: "no data"}
	})

	store := newStore()
	o := bulk.New(r, store, discard())
	job, err := o.Run(context.Background(), bulk.Request{UserID: "u", AnalysisType: bulk.RiskAssessment})
	require.NoError(t, err)

	assert.Equal(t, jobs.StatusFailed, job.Status)
	assert.Empty(t, job.Insights)
	assert.Contains(t, job.Error, bulk.ErrAllFailed.Error())
	assert.Equal(t, float64(bulk.DefaultConfidence), job.Confidence)
	assert.Equal(t, jobs.StatusFailed, store.statuses()[len(store.statuses())-1])
}

func TestRun_InvalidRequest(t *testing.T) {
	store := newStore()
	o := bulk.New(answering(80), store, discard())

	_, err := o.Run(context.Background(), bulk.Request{AnalysisType: bulk.SpendAnalysis})
	assert.ErrorIs(t, err, bulk.ErrInvalidRequest)
	assert.Empty(t, store.statuses())
}

func TestRun_CancelledLeavesProcessing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once

	r := routerFunc(func(rctx context.Context, query string, explicit *sources.DataSource) router.Result {
		once.Do(cancel)
		<-rctx.Done()
		return router.Result{Success: false, Error: rctx.Err().Error()}
	})

	store := newStore()
	o := bulk.New(r, store, discard(), bulk.WithParallelism(1))
	job, err := o.Run(ctx, bulk.Request{UserID: "u", AnalysisType: bulk.CostOptimization})

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, job)

	statuses := store.statuses()
	assert.Equal(t, jobs.StatusProcessing, statuses[len(statuses)-1])
	for _, s := range statuses {
		assert.False(t, s.Terminal(), "no terminal write after cancellation")
	}
}

func TestRun_Export(t *testing.T) {
	tests := []struct {
		format bulk.Format
		ext    string
		want   string
	}{
		{bulk.FormatJSON, ".json", `"analysis_type": "risk_assessment"`},
		{bulk.FormatMarkdown, ".md", "## Supplier Concentration"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			blobs := newBlobs()
			o := bulk.New(answering(80), newStore(), discard(), bulk.WithExport(blobs, "exports/"))

			job, err := o.Run(context.Background(), bulk.Request{
				UserID:       "analyst",
				AnalysisType: bulk.RiskAssessment,
				OutputFormat: tt.format,
			})
			require.NoError(t, err)

			wantKey := "exports/analyst/" + job.ID.String() + tt.ext
			assert.Equal(t, wantKey, job.ExportKey)
			require.Contains(t, blobs.objects, wantKey)
			assert.Contains(t, string(blobs.objects[wantKey]), tt.want)
		})
	}
}

func TestRun_ExportRecordsTerminalState(t *testing.T) {
	blobs := newBlobs()
	store := newStore()
	o := bulk.New(answering(80), store, discard(), bulk.WithExport(blobs, "exports"))

	job, err := o.Run(context.Background(), bulk.Request{
		UserID:       "analyst",
		AnalysisType: bulk.SpendAnalysis,
		OutputFormat: bulk.FormatJSON,
	})
	require.NoError(t, err)
	require.Equal(t, jobs.StatusCompleted, job.Status)

	var exported jobs.Job
	require.NoError(t, json.Unmarshal(blobs.objects[job.ExportKey], &exported))
	assert.Equal(t, jobs.StatusCompleted, exported.Status)
	require.NotNil(t, exported.CompletedAt)
	assert.Equal(t, job.ExportKey, exported.ExportKey)

	stored, err := store.Find(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ExportKey, stored.ExportKey)
}

func TestRun_MarkdownExportShowsStatus(t *testing.T) {
	blobs := newBlobs()
	o := bulk.New(answering(80), newStore(), discard(), bulk.WithExport(blobs, "exports"))

	job, err := o.Run(context.Background(), bulk.Request{
		UserID:       "analyst",
		AnalysisType: bulk.SpendAnalysis,
		OutputFormat: bulk.FormatMarkdown,
	})
	require.NoError(t, err)

	doc := string(blobs.objects[job.ExportKey])
	assert.Contains(t, doc, "- Status: completed")
	assert.Contains(t, doc, "- Completed: ")
}

// startFailingStore rejects the move to processing once.
type startFailingStore struct {
	*recordingStore
	failed bool
}

func (s *startFailingStore) Save(ctx context.Context, j *jobs.Job) error {
	if j.Status == jobs.StatusProcessing && !s.failed {
		s.failed = true
		return errors.New("connection reset")
	}
	return s.recordingStore.Save(ctx, j)
}

func TestRun_StartFailureMarksJobFailed(t *testing.T) {
	store := &startFailingStore{recordingStore: newStore()}
	o := bulk.New(answering(80), store, discard())

	job, err := o.Run(context.Background(), bulk.Request{UserID: "u", AnalysisType: bulk.SpendAnalysis})
	require.Error(t, err)
	assert.Equal(t, jobs.StatusFailed, job.Status)

	stored, err := store.Find(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "connection reset")
	assert.Equal(t, []jobs.Status{jobs.StatusPending, jobs.StatusFailed}, store.statuses())
}

func TestRun_NoExportWithoutStorage(t *testing.T) {
	o := bulk.New(answering(80), newStore(), discard())
	job, err := o.Run(context.Background(), bulk.Request{UserID: "u", AnalysisType: bulk.RiskAssessment, OutputFormat: bulk.FormatJSON})
	require.NoError(t, err)
	assert.Empty(t, job.ExportKey)
}

func TestStream(t *testing.T) {
	o := bulk.New(answering(80), newStore(), discard(), bulk.WithParallelism(1))

	updates, err := o.Stream(context.Background(), bulk.Request{UserID: "u", AnalysisType: bulk.SupplierPerformance})
	require.NoError(t, err)

	var snapshots []*jobs.Job
	for j := range updates {
		snapshots = append(snapshots, j)
	}

	// processing, one per analysis, terminal
	require.Len(t, snapshots, 5)
	assert.Equal(t, jobs.StatusProcessing, snapshots[0].Status)
	assert.Empty(t, snapshots[0].Insights)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, jobs.StatusProcessing, snapshots[i].Status)
		assert.Len(t, snapshots[i].Insights, i)
	}
	last := snapshots[len(snapshots)-1]
	assert.Equal(t, jobs.StatusCompleted, last.Status)
	assert.Len(t, last.Insights, 3)
}

func TestStream_InvalidRequest(t *testing.T) {
	o := bulk.New(answering(80), newStore(), discard())
	_, err := o.Stream(context.Background(), bulk.Request{UserID: "u", AnalysisType: "nope"})
	assert.ErrorIs(t, err, bulk.ErrInvalidRequest)
}
