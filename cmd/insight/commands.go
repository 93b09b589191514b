package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/insight/internal/bulk"
	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/pkg/pagination"
)

func newAskCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Route one question and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			explicit, err := parseSource(source)
			if err != nil {
				return err
			}

			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			res := s.domain.Router.Route(cmd.Context(), strings.Join(args, " "), explicit)
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "data source (coupa, baan, combined); classified when empty")
	return cmd
}

func newBulkCmd() *cobra.Command {
	var (
		user      string
		analysis  string
		timeframe string
		format    string
		from      []string
		start     string
		end       string
	)

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Run a bulk insight job and print the finished job",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := bulkRequest(user, analysis, timeframe, format, from)
			if err == nil && req.Timeframe == bulk.Custom {
				req.DateRange, err = dateRange(start, end)
				if err == nil {
					err = req.Validate()
				}
			}
			if err != nil {
				return err
			}

			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			job, err := s.domain.Bulk.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id owning the job")
	cmd.Flags().StringVar(&analysis, "type", string(bulk.Comprehensive), "analysis type")
	cmd.Flags().StringVar(&timeframe, "timeframe", "", "timeframe phrase appended to every query")
	cmd.Flags().StringVar(&format, "format", "", "export format (json, markdown)")
	cmd.Flags().StringSliceVar(&from, "sources", nil, "restrict analyses to these data sources")
	cmd.Flags().StringVar(&start, "start", "", "custom timeframe start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "custom timeframe end (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Print one bulk insight job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id: %w", err)
			}

			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			job, err := s.domain.Jobs.Find(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
}

func newJobsCmd() *cobra.Command {
	var (
		user     string
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List a user's bulk insight jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			result, err := s.domain.Jobs.ListByUser(cmd.Context(), user, pagination.PageRequest{
				Page:     page,
				PageSize: pageSize,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "page size; configured default when zero")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func parseSource(raw string) (*sources.DataSource, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := sources.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, raw)
	}
	return &d, nil
}

func bulkRequest(user, analysis, timeframe, format string, from []string) (bulk.Request, error) {
	req := bulk.Request{
		UserID:       user,
		AnalysisType: bulk.AnalysisType(analysis),
		Timeframe:    bulk.Timeframe(timeframe),
		OutputFormat: bulk.Format(format),
	}
	for _, raw := range from {
		d, err := sources.Parse(raw)
		if err != nil {
			return req, fmt.Errorf("%w: %s", err, raw)
		}
		req.DataSources = append(req.DataSources, d)
	}
	if req.Timeframe == bulk.Custom {
		return req, nil
	}
	return req, req.Validate()
}

func dateRange(start, end string) (*bulk.DateRange, error) {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return nil, fmt.Errorf("invalid --start: %w", err)
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return nil, fmt.Errorf("invalid --end: %w", err)
	}
	return &bulk.DateRange{Start: s, End: e}, nil
}
