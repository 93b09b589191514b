// Package jobs persists bulk insight jobs. The Postgres store is the single
// source of truth; the Redis layer is a read-through cache that is dropped
// whenever a store write fails.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Status is a job lifecycle state. Transitions only move forward.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a job in s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InsightMetric is one labelled figure of an insight section.
type InsightMetric struct {
	Label string  `json:"label"`
	Value string  `json:"value"`
	Raw   float64 `json:"raw"`
}

// InsightSection is the finding produced by one bulk query.
type InsightSection struct {
	Title           string          `json:"title"`
	Category        string          `json:"category"`
	Priority        string          `json:"priority"`
	Summary         string          `json:"summary"`
	Metrics         []InsightMetric `json:"metrics"`
	Recommendations []string        `json:"recommendations"`
	Confidence      int             `json:"confidence"`
	SQL             string          `json:"sql,omitempty"`
	DataSource      string          `json:"data_source"`
	Sources         []string        `json:"sources_queried,omitempty"`
	Queries         int             `json:"queries"`
	Records         int             `json:"records"`
}

// Job is a bulk insight run and its aggregate outcome.
type Job struct {
	ID              uuid.UUID        `json:"id"`
	UserID          string           `json:"user_id"`
	AnalysisType    string           `json:"analysis_type"`
	Timeframe       string           `json:"timeframe,omitempty"`
	DataSources     []string         `json:"data_sources,omitempty"`
	OutputFormat    string           `json:"output_format,omitempty"`
	Status          Status           `json:"status"`
	Insights        []InsightSection `json:"insights"`
	ExecutionTime   int64            `json:"execution_time"`
	Confidence      float64          `json:"confidence"`
	DataSourcesUsed []string         `json:"data_sources_used"`
	TotalQueries    int              `json:"total_queries"`
	RecordsAnalyzed int              `json:"records_analyzed"`
	ExportKey       string           `json:"export_key,omitempty"`
	Error           string           `json:"error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// New creates a pending job. Ids are time-ordered UUIDs.
func New(userID, analysisType string, now time.Time) (*Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	now = now.UTC()
	return &Job{
		ID:              id,
		UserID:          userID,
		AnalysisType:    analysisType,
		Status:          StatusPending,
		Insights:        []InsightSection{},
		DataSourcesUsed: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Transition moves the job to next, stamping UpdatedAt and, for terminal
// states, CompletedAt.
func (j *Job) Transition(next Status, now time.Time) error {
	if !j.Status.CanTransition(next) {
		return &TransitionError{From: j.Status, To: next}
	}
	now = now.UTC()
	j.Status = next
	j.UpdatedAt = now
	if next.Terminal() {
		j.CompletedAt = &now
	}
	return nil
}

// Clone returns a deep copy safe to hand to another goroutine.
func (j *Job) Clone() *Job {
	c := *j
	c.DataSources = append([]string(nil), j.DataSources...)
	c.DataSourcesUsed = append([]string{}, j.DataSourcesUsed...)
	c.Insights = make([]InsightSection, len(j.Insights))
	for i, s := range j.Insights {
		s.Metrics = append([]InsightMetric(nil), s.Metrics...)
		s.Recommendations = append([]string(nil), s.Recommendations...)
		s.Sources = append([]string(nil), s.Sources...)
		c.Insights[i] = s
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
