package router_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/insight/internal/agents"
	"github.com/JaimeStill/insight/internal/classifier"
	"github.com/JaimeStill/insight/internal/executor"
	"github.com/JaimeStill/insight/internal/fallback"
	"github.com/JaimeStill/insight/internal/pipeline"
	"github.com/JaimeStill/insight/internal/router"
	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/internal/validation"
	"github.com/JaimeStill/insight/pkg/completion"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubAgent struct {
	name  string
	calls atomic.Int32
	run   func(ctx context.Context, query string, c classifier.Result) (agents.Result, error)
}

func (a *stubAgent) Name() string { return a.name }

func (a *stubAgent) Run(ctx context.Context, query string, c classifier.Result) (agents.Result, error) {
	a.calls.Add(1)
	return a.run(ctx, query, c)
}

func answering(name string, rows int) *stubAgent {
	return &stubAgent{name: name, run: func(ctx context.Context, query string, c classifier.Result) (agents.Result, error) {
		res := agents.Result{Success: true, Agent: name, Source: c.DataSource, Response: "answer from " + name, SQL: "SELECT 1"}
		for i := range rows {
			res.Rows = append(res.Rows, executor.Row{"n": i})
		}
		return res, nil
	}}
}

func failing(name string, err error) *stubAgent {
	return &stubAgent{name: name, run: func(ctx context.Context, query string, c classifier.Result) (agents.Result, error) {
		return agents.Result{}, err
	}}
}

func panicking(name string) *stubAgent {
	return &stubAgent{name: name, run: func(ctx context.Context, query string, c classifier.Result) (agents.Result, error) {
		panic("boom")
	}}
}

type fixedClassifier struct {
	result classifier.Result
	calls  atomic.Int32
}

func (c *fixedClassifier) Classify(ctx context.Context, text string) classifier.Result {
	c.calls.Add(1)
	return c.result
}

func deps(client completion.Client, exec executor.Executor) agents.Deps {
	logger := discard()
	return agents.Deps{
		Client:     client,
		Executor:   exec,
		Fallback:   fallback.New(exec, client, logger),
		Validation: validation.NewEngine(0),
		Runner:     pipeline.NewRunner(logger),
		Logger:     logger,
	}
}

func noRows() executor.Executor {
	return executor.Func(func(ctx context.Context, source sources.DataSource, sql string) ([]executor.Row, error) {
		return nil, nil
	})
}

type fixture struct {
	router *router.Router
	cls    *fixedClassifier
	coupa  *stubAgent
	baan   *stubAgent
	combo  *stubAgent
	simple *stubAgent
}

func newFixture(t *testing.T, classified sources.DataSource, opts ...func(*fixture)) *fixture {
	t.Helper()
	f := &fixture{
		cls:    &fixedClassifier{result: classifier.Result{DataSource: classified, Confidence: 72}},
		coupa:  answering("coupa", 3),
		baan:   answering("baan", 3),
		combo:  answering(agents.NameCombined, 3),
		simple: answering(agents.NameSimple, 1),
	}
	for _, opt := range opts {
		opt(f)
	}

	r, err := router.New(f.cls, deps(completion.Unavailable, noRows()), discard(),
		router.WithAgent(sources.Coupa, f.coupa),
		router.WithAgent(sources.Baan, f.baan),
		router.WithAgent(sources.Combined, f.combo),
		router.WithSimple(f.simple),
	)
	require.NoError(t, err)
	f.router = r
	return f
}

func TestRoute_ExplicitSource(t *testing.T) {
	f := newFixture(t, sources.Coupa)
	explicit := sources.Baan

	res := f.router.Route(context.Background(), "Show top suppliers by spend", &explicit)

	assert.True(t, res.Success)
	assert.Equal(t, 95, res.Confidence)
	assert.Equal(t, 95, res.Classification.Confidence)
	assert.Equal(t, sources.Baan, res.Classification.DataSource)
	assert.Equal(t, "baan", res.AgentUsed)
	assert.EqualValues(t, 1, f.baan.calls.Load())
	assert.Zero(t, f.cls.calls.Load())
}

func TestRoute_Dispatch(t *testing.T) {
	tests := []struct {
		source sources.DataSource
		agent  string
	}{
		{sources.Coupa, "coupa"},
		{sources.Baan, "baan"},
		{sources.Combined, agents.NameCombined},
		{sources.DataSource("unknown"), agents.NameSimple},
	}

	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			f := newFixture(t, tt.source)
			res := f.router.Route(context.Background(), "question", nil)

			assert.True(t, res.Success)
			assert.Equal(t, tt.agent, res.AgentUsed)
			assert.Equal(t, 72, res.Confidence)
			assert.EqualValues(t, 1, f.cls.calls.Load())
		})
	}
}

func TestRoute_SimpleFallback(t *testing.T) {
	tests := []struct {
		name  string
		agent *stubAgent
	}{
		{"error", failing("coupa", errors.New("agent crashed"))},
		{"panic", panicking("coupa")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, sources.Coupa, func(f *fixture) { f.coupa = tt.agent })

			res := f.router.Route(context.Background(), "question", nil)

			assert.True(t, res.Success)
			assert.Equal(t, agents.NameSimple, res.AgentUsed)
			assert.Equal(t, router.SimpleConfidence, res.Confidence)
			assert.EqualValues(t, 1, f.simple.calls.Load())
		})
	}
}

func TestRoute_TotalFailure(t *testing.T) {
	f := newFixture(t, sources.Baan, func(f *fixture) {
		f.baan = panicking("baan")
		f.simple = failing(agents.NameSimple, errors.New("still broken"))
	})

	res := f.router.Route(context.Background(), "question", nil)

	assert.False(t, res.Success)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, agents.NameSimple, res.AgentUsed)
	assert.Equal(t, "still broken", res.Error)
	assert.Equal(t, sources.Baan, res.Classification.DataSource)
}

func TestRoute_PipelineFailureIsNotAnError(t *testing.T) {
	f := newFixture(t, sources.Coupa, func(f *fixture) {
		f.coupa = &stubAgent{name: "coupa", run: func(ctx context.Context, query string, c classifier.Result) (agents.Result, error) {
			return agents.Result{Agent: "coupa", Stage: pipeline.StageSynthesis, Error: "query synthesis failed"}, nil
		}}
	})

	res := f.router.Route(context.Background(), "question", nil)

	assert.False(t, res.Success)
	assert.Equal(t, "coupa", res.AgentUsed)
	assert.Equal(t, 72, res.Confidence)
	assert.NotEmpty(t, res.Response)
	assert.Zero(t, f.simple.calls.Load())
}

func TestRoute_EvidenceBounded(t *testing.T) {
	f := newFixture(t, sources.Coupa, func(f *fixture) { f.coupa = answering("coupa", 25) })

	res := f.router.Route(context.Background(), "question", nil)

	assert.Len(t, res.QueryResults, 25)
	assert.Len(t, res.Evidence, fallback.EvidenceRows)
}

func TestRoute_NeverFailsWithUnavailableCompletion(t *testing.T) {
	cls := classifier.New(completion.Unavailable, time.Second, discard())
	r, err := router.New(cls, deps(completion.Unavailable, noRows()), discard())
	require.NoError(t, err)

	queries := []string{
		"Show top suppliers by spend",
		"Baan purchase orders by business unit",
		"Compare Coupa and Baan spend",
		"",
	}

	for _, q := range queries {
		t.Run(fmt.Sprintf("%q", q), func(t *testing.T) {
			res := r.Route(context.Background(), q, nil)
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Error)
			assert.NotEmpty(t, res.AgentUsed)
			assert.GreaterOrEqual(t, res.Classification.Confidence, 0)
			assert.LessOrEqual(t, res.Classification.Confidence, 100)
		})
	}
}

func TestStream_TwoEvents(t *testing.T) {
	f := newFixture(t, sources.Coupa)

	var events []router.Event
	for e := range f.router.Stream(context.Background(), "question", nil) {
		events = append(events, e)
	}

	require.Len(t, events, 2)

	assert.Equal(t, router.EventProgress, events[0].Type)
	require.NotNil(t, events[0].Classification)
	assert.Equal(t, sources.Coupa, events[0].Classification.DataSource)
	assert.Nil(t, events[0].Result)

	assert.Equal(t, router.EventFinal, events[1].Type)
	require.NotNil(t, events[1].Result)
	assert.True(t, events[1].Result.Success)
	assert.Equal(t, "coupa", events[1].Result.AgentUsed)
}

func TestStream_TotalFailureStillTwoEvents(t *testing.T) {
	f := newFixture(t, sources.Coupa, func(f *fixture) {
		f.coupa = panicking("coupa")
		f.simple = panicking(agents.NameSimple)
	})

	var events []router.Event
	for e := range f.router.Stream(context.Background(), "question", nil) {
		events = append(events, e)
	}

	require.Len(t, events, 2)
	require.NotNil(t, events[1].Result)
	assert.False(t, events[1].Result.Success)
	assert.Zero(t, events[1].Result.Confidence)
}

func TestStream_Cancelled(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, sources.Coupa, func(f *fixture) {
		f.coupa = &stubAgent{name: "coupa", run: func(ctx context.Context, query string, c classifier.Result) (agents.Result, error) {
			close(release)
			<-ctx.Done()
			return agents.Result{Agent: "coupa", Error: ctx.Err().Error()}, nil
		}}
	})

	ctx, cancel := context.WithCancel(context.Background())
	events := f.router.Stream(ctx, "question", nil)

	first := <-events
	assert.Equal(t, router.EventProgress, first.Type)

	<-release
	cancel()

	count := 0
	for range events {
		count++
	}
	assert.LessOrEqual(t, count, 1)
}

type panickingClassifier struct{}

func (panickingClassifier) Classify(ctx context.Context, text string) classifier.Result {
	panic("classifier exploded")
}

type quickClassifier struct {
	fixedClassifier
	quick atomic.Int32
}

func (c *quickClassifier) QuickClassify(ctx context.Context, text string) sources.DataSource {
	c.quick.Add(1)
	return sources.Baan
}

func withClassifier(t *testing.T, cls router.Classifier, opts ...router.Option) *router.Router {
	t.Helper()
	opts = append([]router.Option{
		router.WithAgent(sources.Coupa, answering("coupa", 2)),
		router.WithAgent(sources.Baan, answering("baan", 2)),
		router.WithAgent(sources.Combined, answering(agents.NameCombined, 2)),
		router.WithSimple(answering(agents.NameSimple, 1)),
	}, opts...)
	r, err := router.New(cls, deps(completion.Unavailable, noRows()), discard(), opts...)
	require.NoError(t, err)
	return r
}

func TestRoute_CompletionPanicDuringClassification(t *testing.T) {
	panicky := completion.Func(func(ctx context.Context, req completion.Request) (string, error) {
		panic("provider SDK nil deref")
	})
	r := withClassifier(t, classifier.New(panicky, time.Second, discard()))

	var res router.Result
	require.NotPanics(t, func() {
		res = r.Route(context.Background(), "Top Coupa suppliers by invoice spend", nil)
	})

	assert.True(t, res.Success)
	assert.Equal(t, "coupa", res.AgentUsed)
	assert.Equal(t, classifier.DefaultConfidence, res.Classification.Confidence)
}

func TestRoute_ClassifierPanicDegradesToHeuristics(t *testing.T) {
	r := withClassifier(t, panickingClassifier{})

	var res router.Result
	require.NotPanics(t, func() {
		res = r.Route(context.Background(), "Baan purchase orders by business unit", nil)
	})

	assert.True(t, res.Success)
	assert.Equal(t, "baan", res.AgentUsed)
	assert.Equal(t, sources.Baan, res.Classification.DataSource)
	assert.Equal(t, classifier.DefaultConfidence, res.Classification.Confidence)
}

func TestStream_ClassifierPanicStillTwoEvents(t *testing.T) {
	r := withClassifier(t, panickingClassifier{})

	var events []router.Event
	require.NotPanics(t, func() {
		for e := range r.Stream(context.Background(), "Baan purchase orders", nil) {
			events = append(events, e)
		}
	})

	require.Len(t, events, 2)
	assert.Equal(t, router.EventProgress, events[0].Type)
	require.NotNil(t, events[1].Result)
	assert.Equal(t, "baan", events[1].Result.AgentUsed)
}

func TestRoute_QuickRouting(t *testing.T) {
	cls := &quickClassifier{fixedClassifier: fixedClassifier{result: classifier.Result{DataSource: sources.Coupa, Confidence: 80}}}
	r := withClassifier(t, cls, router.WithQuickRouting())

	res := r.Route(context.Background(), "orders by business unit", nil)

	assert.Equal(t, int32(1), cls.quick.Load())
	assert.Zero(t, cls.calls.Load(), "full classification skipped")
	assert.Equal(t, "baan", res.AgentUsed)
	assert.Equal(t, classifier.QuickConfidence, res.Classification.Confidence)
}

func TestRoute_QuickRoutingIgnoredWithoutSupport(t *testing.T) {
	cls := &fixedClassifier{result: classifier.Result{DataSource: sources.Coupa, Confidence: 80}}
	r := withClassifier(t, cls, router.WithQuickRouting())

	res := r.Route(context.Background(), "question", nil)

	assert.Equal(t, int32(1), cls.calls.Load())
	assert.Equal(t, "coupa", res.AgentUsed)
}
