package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wastetrack/forecast-worker/internal/domain/model"
	"github.com/wastetrack/forecast-worker/internal/service"
)

type enqueueOptions struct {
	Request model.CreateForecastJobRequest
}

type jobStatusOptions struct {
	JobID   string
	Results bool
	RawJSON bool
}

type listJobsOptions struct {
	List    model.ListJobsOptions
	RawJSON bool
}

type recomputeOptions struct {
	Request service.RecomputeRequest
	RawJSON bool
}

type migrateOptions struct {
	Timeout time.Duration
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func parseEnqueueFlags(args []string) (enqueueOptions, error) {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		jobType, from, to, actor, payload string
	)
	fs.StringVar(&jobType, "type", string(model.JobTypeDaily), "Job type: daily or weekly")
	fs.StringVar(&from, "from", "", "First target date (YYYY-MM-DD)")
	fs.StringVar(&to, "to", "", "Last target date (YYYY-MM-DD); defaults to --from")
	fs.StringVar(&actor, "actor", defaultActor(), "Who requested the job")
	fs.StringVar(&payload, "payload", "", `Optional JSON payload, e.g. '{"history_days":90}'`)

	if err := fs.Parse(args); err != nil {
		return enqueueOptions{}, err
	}

	var opts enqueueOptions
	if err := opts.Request.Type.UnmarshalText([]byte(jobType)); err != nil {
		return enqueueOptions{}, fmt.Errorf("--type: %w", err)
	}
	if from == "" {
		return enqueueOptions{}, errors.New("--from is required")
	}
	if to == "" {
		to = from
	}
	var err error
	if opts.Request.TargetFrom, err = model.ParseDate(from); err != nil {
		return enqueueOptions{}, fmt.Errorf("--from: %w", err)
	}
	if opts.Request.TargetTo, err = model.ParseDate(to); err != nil {
		return enqueueOptions{}, fmt.Errorf("--to: %w", err)
	}
	opts.Request.Actor = actor
	if payload != "" {
		opts.Request.Payload = json.RawMessage(payload)
	}
	if err := opts.Request.Validate(); err != nil {
		return enqueueOptions{}, err
	}
	return opts, nil
}

func defaultActor() string {
	if u := strings.TrimSpace(os.Getenv("USER")); u != "" {
		return u
	}
	return "forecast-admin"
}

func parseJobStatusFlags(args []string) (jobStatusOptions, error) {
	fs := flag.NewFlagSet("job-status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts jobStatusOptions
	fs.StringVar(&opts.JobID, "id", "", "Job ID")
	fs.BoolVar(&opts.Results, "results", true, "Include per-date results")
	fs.BoolVar(&opts.RawJSON, "json", false, "Print JSON instead of a table")

	if err := fs.Parse(args); err != nil {
		return jobStatusOptions{}, err
	}
	if opts.JobID == "" && fs.NArg() > 0 {
		opts.JobID = fs.Arg(0)
	}
	if strings.TrimSpace(opts.JobID) == "" {
		return jobStatusOptions{}, errors.New("--id is required")
	}
	return opts, nil
}

func parseListJobsFlags(args []string) (listJobsOptions, error) {
	fs := flag.NewFlagSet("list-jobs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		opts           listJobsOptions
		status, jobTyp string
	)
	fs.StringVar(&status, "status", "", "Filter by status: pending, running, done, failed")
	fs.StringVar(&jobTyp, "type", "", "Filter by job type: daily, weekly")
	fs.IntVar(&opts.List.Limit, "limit", 20, "Maximum rows")
	fs.IntVar(&opts.List.Offset, "offset", 0, "Rows to skip")
	fs.BoolVar(&opts.RawJSON, "json", false, "Print JSON instead of a table")

	if err := fs.Parse(args); err != nil {
		return listJobsOptions{}, err
	}
	if status != "" {
		s := model.JobStatus(strings.ToLower(status))
		if !s.Valid() {
			return listJobsOptions{}, fmt.Errorf("--status: unknown status %q", status)
		}
		opts.List.Status = &s
	}
	if jobTyp != "" {
		var t model.JobType
		if err := t.UnmarshalText([]byte(jobTyp)); err != nil {
			return listJobsOptions{}, fmt.Errorf("--type: %w", err)
		}
		opts.List.Type = &t
	}
	return opts, nil
}

func parseRecomputeFlags(args []string) (recomputeOptions, error) {
	fs := flag.NewFlagSet("recompute-ratios", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		opts      recomputeOptions
		effective string
	)
	fs.StringVar(&effective, "effective-from", "", "Epoch start date (YYYY-MM-DD)")
	fs.IntVar(&opts.Request.LookbackYears, "lookback-years", 0, "Years of history; 0 uses RATIO_LOOKBACK_YEARS")
	fs.BoolVar(&opts.Request.DryRun, "dry-run", false, "Compute and print without writing")
	fs.BoolVar(&opts.RawJSON, "json", false, "Print JSON instead of a table")

	if err := fs.Parse(args); err != nil {
		return recomputeOptions{}, err
	}
	if effective == "" {
		return recomputeOptions{}, errors.New("--effective-from is required")
	}
	d, err := model.ParseDate(effective)
	if err != nil {
		return recomputeOptions{}, fmt.Errorf("--effective-from: %w", err)
	}
	opts.Request.EffectiveFrom = d
	if opts.Request.LookbackYears < 0 {
		return recomputeOptions{}, errors.New("--lookback-years must not be negative")
	}
	return opts, nil
}

func runEnqueue(cmdCtx *commandContext, args []string) error {
	opts, err := parseEnqueueFlags(args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, func(ctx context.Context, svc *adminServices) error {
		job, err := svc.Jobs.Create(ctx, &opts.Request)
		if err != nil {
			return err
		}
		return printJSON(cmdCtx.Out, job)
	})
}

func runJobStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobStatusFlags(args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, func(ctx context.Context, svc *adminServices) error {
		job, err := svc.Jobs.Get(ctx, opts.JobID)
		if err != nil {
			return err
		}
		var results []*model.ForecastResult
		if opts.Results {
			if results, err = svc.Jobs.Results(ctx, opts.JobID); err != nil {
				return err
			}
		}
		if opts.RawJSON {
			return printJSON(cmdCtx.Out, map[string]any{"job": job, "results": results})
		}
		return printJobStatus(cmdCtx.Out, job, results)
	})
}

func runListJobs(cmdCtx *commandContext, args []string) error {
	opts, err := parseListJobsFlags(args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, func(ctx context.Context, svc *adminServices) error {
		jobs, err := svc.Jobs.List(ctx, opts.List)
		if err != nil {
			return err
		}
		if opts.RawJSON {
			return printJSON(cmdCtx.Out, jobs)
		}
		return printJobTable(cmdCtx.Out, jobs)
	})
}

func runStats(cmdCtx *commandContext, _ []string) error {
	return withServices(cmdCtx, func(ctx context.Context, svc *adminServices) error {
		stats, err := svc.Jobs.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmdCtx.Out, stats)
	})
}

func runRecomputeRatios(cmdCtx *commandContext, args []string) error {
	opts, err := parseRecomputeFlags(args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, func(ctx context.Context, svc *adminServices) error {
		res, err := svc.Ratios.Recompute(ctx, opts.Request)
		if err != nil {
			return err
		}
		if opts.RawJSON {
			return printJSON(cmdCtx.Out, res)
		}
		return printRecompute(cmdCtx.Out, res)
	})
}

func runReap(cmdCtx *commandContext, _ []string) error {
	return withServices(cmdCtx, func(ctx context.Context, svc *adminServices) error {
		reaper, err := service.NewReaperService(service.ReaperServiceOptions{
			Reclaimer: svc.Repos.Reclaimer,
			Config:    cmdCtx.Config.Reaper,
			Logger:    cmdCtx.Logger,
			Metrics:   svc.Observability.Sink,
		})
		if err != nil {
			return err
		}
		res, err := reaper.Sweep(ctx)
		if err != nil {
			return err
		}
		return writef(cmdCtx.Out, "requeued: %d\nfailed:   %d\n", res.Requeued, res.Failed)
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJobStatus(w io.Writer, job *model.ForecastJob, results []*model.ForecastResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"ID", job.ID},
		{"Type", string(job.Type)},
		{"Range", job.TargetFrom.String() + " .. " + job.TargetTo.String()},
		{"Status", string(job.Status)},
		{"Actor", job.Actor},
		{"Reclaims", strconv.Itoa(job.ReclaimCount)},
		{"Created", job.CreatedAt.UTC().Format(time.RFC3339)},
	}
	if job.StartedAt != nil {
		rows = append(rows, [2]string{"Started", job.StartedAt.UTC().Format(time.RFC3339)})
	}
	if job.FinishedAt != nil {
		rows = append(rows, [2]string{"Finished", job.FinishedAt.UTC().Format(time.RFC3339)})
	}
	if job.ErrorMessage != nil {
		rows = append(rows, [2]string{"Error", *job.ErrorMessage})
	}
	for _, r := range rows {
		if err := writef(tw, "%s:\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(results) == 0 {
		return nil
	}
	if err := writef(w, "\nResults (%d):\n", len(results)); err != nil {
		return err
	}
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "DATE\tP10\tP50\tP90\tUNIT\tMODEL\n"); err != nil {
		return err
	}
	for _, r := range results {
		if err := writef(tw, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
			r.TargetDate, optFloat(r.P10), r.P50, optFloat(r.P90), r.Unit, r.ModelVersion); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printJobTable(w io.Writer, jobs []*model.ForecastJob) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "ID\tTYPE\tFROM\tTO\tSTATUS\tACTOR\tCREATED\n"); err != nil {
		return err
	}
	for _, j := range jobs {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.Type, j.TargetFrom, j.TargetTo, j.Status, j.Actor, j.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printRecompute(w io.Writer, res *service.RecomputeResult) error {
	mode := "written"
	if res.DryRun {
		mode = "dry run, not written"
	}
	if err := writef(w, "Epoch %s from %s .. %s (%d sample days, baseline %s; %s)\n",
		res.EffectiveFrom, res.WindowFrom, res.WindowTo, res.SampleDays, res.Baseline, mode); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "DAY TYPE\tMEAN TON\tRATIO\tSAMPLES\n"); err != nil {
		return err
	}
	for _, r := range res.Ratios {
		if err := writef(tw, "%s\t%.2f\t%.4f\t%d\n", r.DayType, r.MeanTon, r.Ratio, r.SampleDays); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
