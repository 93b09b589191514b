package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/JaimeStill/insight/internal/jobs"
)

var extensions = map[Format]string{
	FormatJSON:     ".json",
	FormatMarkdown: ".md",
}

// export writes the finished job to blob storage in the requested format. The
// job must already be terminal so the document carries its final status and
// its own export key. Failures are logged and clear the key.
func (o *Orchestrator) export(ctx context.Context, job *jobs.Job) {
	if job.OutputFormat == "" || o.blobs == nil {
		return
	}
	ext, ok := extensions[Format(job.OutputFormat)]
	if !ok {
		o.logger.WarnContext(ctx, "unknown export format", "job_id", job.ID, "format", job.OutputFormat)
		return
	}

	key := path.Join(o.exportPrefix, job.UserID, job.ID.String()+ext)
	job.ExportKey = key

	data, contentType, _, err := Render(job, Format(job.OutputFormat))
	if err != nil {
		job.ExportKey = ""
		o.logger.WarnContext(ctx, "render export failed", "job_id", job.ID, "error", err)
		return
	}

	if err := o.blobs.Put(ctx, key, data, contentType); err != nil {
		job.ExportKey = ""
		o.logger.WarnContext(ctx, "export upload failed", "job_id", job.ID, "key", key, "error", err)
		return
	}

	o.logger.InfoContext(ctx, "job exported", "job_id", job.ID, "key", key)
}

// Render serializes job in format, returning the payload, its content type
// and file extension.
func Render(job *jobs.Job, format Format) ([]byte, string, string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(job, "", "  ")
		return data, "application/json", extensions[format], err
	case FormatMarkdown:
		return []byte(markdown(job)), "text/markdown; charset=utf-8", extensions[format], nil
	}
	return nil, "", "", fmt.Errorf("%w: unknown output_format %q", ErrInvalidRequest, format)
}

func markdown(job *jobs.Job) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s report\n\n", title(job.AnalysisType))
	fmt.Fprintf(&b, "- Job: `%s`\n", job.ID)
	fmt.Fprintf(&b, "- User: %s\n", job.UserID)
	fmt.Fprintf(&b, "- Status: %s\n", job.Status)
	if job.CompletedAt != nil {
		fmt.Fprintf(&b, "- Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
	}
	if job.Timeframe != "" {
		fmt.Fprintf(&b, "- Timeframe: %s\n", strings.ReplaceAll(job.Timeframe, "_", " "))
	}
	fmt.Fprintf(&b, "- Confidence: %.0f%%\n", job.Confidence)
	fmt.Fprintf(&b, "- Data sources: %s\n", strings.Join(job.DataSourcesUsed, ", "))
	fmt.Fprintf(&b, "- Queries: %d\n", job.TotalQueries)
	fmt.Fprintf(&b, "- Records analyzed: %d\n", job.RecordsAnalyzed)

	for _, s := range job.Insights {
		fmt.Fprintf(&b, "\n## %s\n\n", s.Title)
		fmt.Fprintf(&b, "_%s · %s priority · %s · confidence %d_\n\n", s.Category, s.Priority, s.DataSource, s.Confidence)
		b.WriteString(s.Summary)
		b.WriteString("\n")

		if len(s.Metrics) > 0 {
			b.WriteString("\n| Metric | Value |\n|---|---|\n")
			for _, m := range s.Metrics {
				fmt.Fprintf(&b, "| %s | %s |\n", m.Label, m.Value)
			}
		}

		if len(s.Recommendations) > 0 {
			b.WriteString("\n")
			for _, r := range s.Recommendations {
				fmt.Fprintf(&b, "- %s\n", r)
			}
		}
	}

	return b.String()
}

func title(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
