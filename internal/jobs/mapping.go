package jobs

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/JaimeStill/insight/pkg/query"
	"github.com/JaimeStill/insight/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "bulk_insight_jobs", "j").
	Project("id", "ID").
	Project("user_id", "UserID").
	Project("analysis_type", "AnalysisType").
	Project("timeframe", "Timeframe").
	Project("data_sources", "DataSources").
	Project("output_format", "OutputFormat").
	Project("status", "Status").
	Project("insights", "Insights").
	Project("execution_time_ms", "ExecutionTime").
	Project("confidence", "Confidence").
	Project("data_sources_used", "DataSourcesUsed").
	Project("total_queries", "TotalQueries").
	Project("records_analyzed", "RecordsAnalyzed").
	Project("export_key", "ExportKey").
	Project("error", "Error").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Project("completed_at", "CompletedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

func scanJob(s repository.Scanner) (Job, error) {
	var (
		j                                    Job
		sources, insights, used              []byte
		timeframe, format, exportKey, jobErr sql.NullString
		completedAt                          sql.NullTime
	)

	err := s.Scan(
		&j.ID,
		&j.UserID,
		&j.AnalysisType,
		&timeframe,
		&sources,
		&format,
		&j.Status,
		&insights,
		&j.ExecutionTime,
		&j.Confidence,
		&used,
		&j.TotalQueries,
		&j.RecordsAnalyzed,
		&exportKey,
		&jobErr,
		&j.CreatedAt,
		&j.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return j, err
	}

	j.Timeframe = timeframe.String
	j.OutputFormat = format.String
	j.ExportKey = exportKey.String
	j.Error = jobErr.String
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}

	if err := decodeJSON(sources, &j.DataSources); err != nil {
		return j, fmt.Errorf("decode data_sources: %w", err)
	}
	if err := decodeJSON(insights, &j.Insights); err != nil {
		return j, fmt.Errorf("decode insights: %w", err)
	}
	if err := decodeJSON(used, &j.DataSourcesUsed); err != nil {
		return j, fmt.Errorf("decode data_sources_used: %w", err)
	}
	if j.Insights == nil {
		j.Insights = []InsightSection{}
	}
	if j.DataSourcesUsed == nil {
		j.DataSourcesUsed = []string{}
	}

	return j, nil
}

func decodeJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func saveArgs(j *Job) ([]any, error) {
	sources, err := json.Marshal(j.DataSources)
	if err != nil {
		return nil, err
	}
	insights, err := json.Marshal(j.Insights)
	if err != nil {
		return nil, err
	}
	used, err := json.Marshal(j.DataSourcesUsed)
	if err != nil {
		return nil, err
	}

	var completedAt any
	if j.CompletedAt != nil {
		completedAt = *j.CompletedAt
	}

	return []any{
		j.ID,
		j.UserID,
		j.AnalysisType,
		nullable(j.Timeframe),
		sources,
		nullable(j.OutputFormat),
		string(j.Status),
		insights,
		j.ExecutionTime,
		j.Confidence,
		used,
		j.TotalQueries,
		j.RecordsAnalyzed,
		nullable(j.ExportKey),
		nullable(j.Error),
		j.CreatedAt,
		j.UpdatedAt,
		completedAt,
	}, nil
}
