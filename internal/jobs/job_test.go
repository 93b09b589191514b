package jobs_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/JaimeStill/insight/internal/jobs"
	"github.com/JaimeStill/insight/pkg/repository"
)

var now = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	a, err := jobs.New("user-1", "spend_analysis", now)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := jobs.New("user-1", "spend_analysis", now)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if a.ID == b.ID {
		t.Error("job ids collided")
	}
	if a.Status != jobs.StatusPending {
		t.Errorf("Status = %s, want pending", a.Status)
	}
	if a.Insights == nil || a.DataSourcesUsed == nil {
		t.Error("collections should be empty, not nil")
	}
	if a.CompletedAt != nil {
		t.Error("CompletedAt set on new job")
	}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name string
		path []jobs.Status
		ok   bool
	}{
		{"pending to processing", []jobs.Status{jobs.StatusProcessing}, true},
		{"pending to failed", []jobs.Status{jobs.StatusFailed}, true},
		{"processing to completed", []jobs.Status{jobs.StatusProcessing, jobs.StatusCompleted}, true},
		{"processing to failed", []jobs.Status{jobs.StatusProcessing, jobs.StatusFailed}, true},
		{"pending to completed", []jobs.Status{jobs.StatusCompleted}, false},
		{"completed to processing", []jobs.Status{jobs.StatusProcessing, jobs.StatusCompleted, jobs.StatusProcessing}, false},
		{"failed to completed", []jobs.Status{jobs.StatusFailed, jobs.StatusCompleted}, false},
		{"processing to pending", []jobs.Status{jobs.StatusProcessing, jobs.StatusPending}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := jobs.New("user-1", "spend_analysis", now)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			var last error
			for i, s := range tt.path {
				last = j.Transition(s, now.Add(time.Duration(i+1)*time.Minute))
				if last != nil {
					break
				}
			}

			if tt.ok && last != nil {
				t.Fatalf("unexpected error: %v", last)
			}
			if !tt.ok && !errors.Is(last, jobs.ErrInvalidTransition) {
				t.Fatalf("error = %v, want ErrInvalidTransition", last)
			}
		})
	}
}

func TestTransitionStampsCompletion(t *testing.T) {
	j, _ := jobs.New("user-1", "spend_analysis", now)

	if err := j.Transition(jobs.StatusProcessing, now.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if j.CompletedAt != nil {
		t.Error("CompletedAt set before terminal state")
	}

	done := now.Add(time.Minute)
	if err := j.Transition(jobs.StatusCompleted, done); err != nil {
		t.Fatal(err)
	}
	if j.CompletedAt == nil || !j.CompletedAt.Equal(done) {
		t.Errorf("CompletedAt = %v, want %v", j.CompletedAt, done)
	}
	if !j.UpdatedAt.Equal(done) {
		t.Errorf("UpdatedAt = %v, want %v", j.UpdatedAt, done)
	}
}

func TestClone(t *testing.T) {
	j, _ := jobs.New("user-1", "spend_analysis", now)
	j.Insights = append(j.Insights, jobs.InsightSection{
		Title:   "Top suppliers",
		Metrics: []jobs.InsightMetric{{Label: "Total Amount", Value: "$10.00", Raw: 10}},
	})

	c := j.Clone()
	c.Insights[0].Metrics[0].Value = "changed"
	c.DataSourcesUsed = append(c.DataSourcesUsed, "coupa")

	if j.Insights[0].Metrics[0].Value != "$10.00" {
		t.Error("clone shares metrics with original")
	}
	if len(j.DataSourcesUsed) != 0 {
		t.Error("clone shares data sources with original")
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", jobs.ErrNotFound, http.StatusNotFound},
		{"terminal", jobs.ErrTerminal, http.StatusConflict},
		{"transition", &jobs.TransitionError{From: jobs.StatusCompleted, To: jobs.StatusProcessing}, http.StatusConflict},
		{"invalid request", jobs.ErrInvalidRequest, http.StatusBadRequest},
		{"check constraint", fmt.Errorf("%w: bulk_insight_jobs_status_check", repository.ErrConstraint), http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jobs.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
