package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wastetrack/forecast-worker/internal/data/pgxutil"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

// JobAddedChannel is the LISTEN/NOTIFY channel signalled when a job is enqueued.
const JobAddedChannel = "forecast_job_added"

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// RepoConfig holds configuration options for the forecast job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// ForecastJobRepo provides Postgres operations for forecast jobs.
type ForecastJobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewForecastJobRepo creates a new ForecastJobRepo.
func NewForecastJobRepo(db *sql.DB, cfg RepoConfig) *ForecastJobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastJobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       logger.With("component", "forecast_job_repo"),
	}
}

const jobColumns = `id, job_type, target_from, target_to, status, actor, payload, error_message,
  reclaim_count, started_at, finished_at, created_at, updated_at`

// claimNextSQL moves the oldest pending job to running in one statement.
const claimNextSQL = `
  WITH cte AS (
    SELECT id FROM forecast_jobs
    WHERE status = 'pending'
    ORDER BY created_at, id
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE forecast_jobs j
  SET status = 'running',
      started_at = $1,
      updated_at = $1
  FROM cte
  WHERE j.id = cte.id AND j.status = 'pending'
  RETURNING j.id, j.job_type, j.target_from, j.target_to, j.status, j.actor, j.payload, j.error_message,
    j.reclaim_count, j.started_at, j.finished_at, j.created_at, j.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*model.ForecastJob, error) {
	var (
		job                   model.ForecastJob
		payload               []byte
		errMsg                sql.NullString
		startedAt, finishedAt sql.NullTime
	)
	if err := scanner.Scan(
		&job.ID,
		&job.Type,
		&job.TargetFrom,
		&job.TargetTo,
		&job.Status,
		&job.Actor,
		&payload,
		&errMsg,
		&job.ReclaimCount,
		&startedAt,
		&finishedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		job.Payload = append(json.RawMessage(nil), payload...)
	}
	if errMsg.Valid {
		s := errMsg.String
		job.ErrorMessage = &s
	}
	job.StartedAt = nullTimePtr(startedAt)
	job.FinishedAt = nullTimePtr(finishedAt)
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return &job, nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// Create validates req, inserts a pending job and signals JobAddedChannel in the same transaction.
// created_at defaults to clock_timestamp(), the moment the INSERT runs rather than when the
// transaction commits, so FIFO order follows statement execution order.
func (r *ForecastJobRepo) Create(ctx context.Context, req *model.CreateForecastJobRequest) (*model.ForecastJob, error) {
	if req == nil {
		return nil, errors.New("create forecast job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var payload any
	if len(req.Payload) > 0 {
		payload = []byte(req.Payload)
	}

	id := uuid.Must(uuid.NewV7()).String()

	var job *model.ForecastJob
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			row := tx.QueryRowContext(ctx, `
        INSERT INTO forecast_jobs (id, job_type, target_from, target_to, status, actor, payload)
        VALUES ($1, $2, $3, $4, 'pending', $5, $6)
        RETURNING `+jobColumns,
				id, req.Type, req.TargetFrom, req.TargetTo, req.Actor, payload)
			created, scanErr := scanJob(row)
			if scanErr != nil {
				return fmt.Errorf("insert forecast job: %w", scanErr)
			}
			if _, notifyErr := tx.ExecContext(ctx, `SELECT pg_notify($1::text, $2::text)`, JobAddedChannel, id); notifyErr != nil {
				return fmt.Errorf("send job notification: %w", notifyErr)
			}
			job = created
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ClaimNextPending atomically claims the oldest pending job. A lost race and an empty queue both
// return model.ErrNoJobsAvailable.
func (r *ForecastJobRepo) ClaimNextPending(ctx context.Context) (*model.ForecastJob, error) {
	job, err := scanJob(r.DB.QueryRowContext(ctx, claimNextSQL, r.timeProvider.Now()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNoJobsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("claim next pending: %w", err)
	}
	return job, nil
}

// MarkRunning moves a pending job to running.
func (r *ForecastJobRepo) MarkRunning(ctx context.Context, id string) error {
	if !isJobID(id) {
		return ErrJobNotFound
	}
	now := r.timeProvider.Now()
	res, err := r.DB.ExecContext(ctx, `
    UPDATE forecast_jobs
    SET status = 'running', started_at = $2, updated_at = $2
    WHERE id = $1 AND status = 'pending'
  `, id, now)
	return r.checkTransition(ctx, id, res, err, "mark running")
}

// MarkDone moves a running job to done under claim.
func (r *ForecastJobRepo) MarkDone(ctx context.Context, claim model.JobClaim) error {
	if !isJobID(claim.ID) {
		return ErrJobNotFound
	}
	now := r.timeProvider.Now()
	res, err := r.DB.ExecContext(ctx, `
    UPDATE forecast_jobs
    SET status = 'done', error_message = NULL, finished_at = $3, updated_at = $3
    WHERE id = $1 AND status = 'running' AND reclaim_count = $2
  `, claim.ID, claim.ReclaimCount, now)
	return r.checkClaimTransition(ctx, claim, res, err, "mark done")
}

// MarkFailed moves a running job to failed under claim and records errMsg.
func (r *ForecastJobRepo) MarkFailed(ctx context.Context, claim model.JobClaim, errMsg string) error {
	if !isJobID(claim.ID) {
		return ErrJobNotFound
	}
	now := r.timeProvider.Now()
	res, err := r.DB.ExecContext(ctx, `
    UPDATE forecast_jobs
    SET status = 'failed', error_message = $3, finished_at = $4, updated_at = $4
    WHERE id = $1 AND status = 'running' AND reclaim_count = $2
  `, claim.ID, claim.ReclaimCount, errMsg, now)
	return r.checkClaimTransition(ctx, claim, res, err, "mark failed")
}

// isJobID reports whether id can name a job row; other strings would fail the uuid cast in SQL.
func isJobID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// checkTransition converts a zero-row conditional update into ErrJobNotFound or ErrInvalidTransition.
func (r *ForecastJobRepo) checkTransition(ctx context.Context, id string, res sql.Result, execErr error, op string) error {
	if execErr != nil {
		return fmt.Errorf("%s: %w", op, execErr)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n > 0 {
		return nil
	}

	var status model.JobStatus
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM forecast_jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("%s lookup: %w", op, err)
	}
	return fmt.Errorf("%w: %s job %s is %s", ErrInvalidTransition, op, id, status)
}

// checkClaimTransition is checkTransition for updates fenced on reclaim_count. A running job
// whose reclaim_count moved on reports ErrClaimSuperseded.
func (r *ForecastJobRepo) checkClaimTransition(
	ctx context.Context,
	claim model.JobClaim,
	res sql.Result,
	execErr error,
	op string,
) error {
	if execErr != nil {
		return fmt.Errorf("%s: %w", op, execErr)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n > 0 {
		return nil
	}

	var (
		status       model.JobStatus
		reclaimCount int
	)
	err = r.DB.QueryRowContext(ctx,
		`SELECT status, reclaim_count FROM forecast_jobs WHERE id = $1`, claim.ID,
	).Scan(&status, &reclaimCount)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("%s lookup: %w", op, err)
	}
	if reclaimCount != claim.ReclaimCount {
		return fmt.Errorf("%w: %s job %s: claim %d, now %d (%s)",
			ErrClaimSuperseded, op, claim.ID, claim.ReclaimCount, reclaimCount, status)
	}
	return fmt.Errorf("%w: %s job %s is %s", ErrInvalidTransition, op, claim.ID, status)
}

// Heartbeat touches updated_at of a running job. It reports false when the job is no longer
// running under claim.
func (r *ForecastJobRepo) Heartbeat(ctx context.Context, claim model.JobClaim) (bool, error) {
	if !isJobID(claim.ID) {
		return false, ErrJobNotFound
	}
	res, err := r.DB.ExecContext(ctx, `
    UPDATE forecast_jobs SET updated_at = $3
    WHERE id = $1 AND status = 'running' AND reclaim_count = $2
  `, claim.ID, claim.ReclaimCount, r.timeProvider.Now())
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat rows affected: %w", err)
	}
	return n > 0, nil
}

// GetByID retrieves a forecast job by its ID.
func (r *ForecastJobRepo) GetByID(ctx context.Context, id string) (*model.ForecastJob, error) {
	if !isJobID(id) {
		return nil, ErrJobNotFound
	}
	job, err := scanJob(r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM forecast_jobs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get forecast job: %w", err)
	}
	return job, nil
}

type jobFilterQueryBuilder struct {
	query  string
	args   []any
	argIdx int
}

func (b *jobFilterQueryBuilder) addFilter(condition string, value any) {
	b.query += fmt.Sprintf(" AND %s = $%d", condition, b.argIdx)
	b.args = append(b.args, value)
	b.argIdx++
}

func buildJobListQuery(opts model.ListJobsOptions) (string, []any) {
	b := &jobFilterQueryBuilder{
		query:  `SELECT ` + jobColumns + ` FROM forecast_jobs WHERE 1=1`,
		argIdx: 1,
	}
	if opts.Status != nil {
		b.addFilter("status", string(*opts.Status))
	}
	if opts.Type != nil {
		b.addFilter("job_type", string(*opts.Type))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	offset := max(opts.Offset, 0)

	b.query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", b.argIdx, b.argIdx+1)
	b.args = append(b.args, limit, offset)
	return b.query, b.args
}

// List returns jobs newest first with optional status and type filters.
func (r *ForecastJobRepo) List(ctx context.Context, opts model.ListJobsOptions) ([]*model.ForecastJob, error) {
	query, args := buildJobListQuery(opts)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list forecast jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*model.ForecastJob, 0)
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan forecast job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forecast jobs: %w", err)
	}
	return jobs, nil
}

// Stats returns job counts per status.
func (r *ForecastJobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'pending') AS pending,
    count(*) FILTER (WHERE status = 'running') AS running,
    count(*) FILTER (WHERE status = 'done')    AS done,
    count(*) FILTER (WHERE status = 'failed')  AS failed
  FROM forecast_jobs
  `).Scan(&s.Pending, &s.Running, &s.Done, &s.Failed)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return &s, nil
}

// WaitForNotification blocks until a job is enqueued (pg_notify on JobAddedChannel) or ctx ends.
// It satisfies job.Waiter so the notifier can run without Redis.
func (r *ForecastJobRepo) WaitForNotification(ctx context.Context) error {
	quoted := pgx.Identifier{JobAddedChannel}.Sanitize()
	return pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "LISTEN "+quoted); err != nil {
			return fmt.Errorf("listen %s: %w", JobAddedChannel, err)
		}
		defer func() {
			if _, err := conn.Exec(context.WithoutCancel(ctx), "UNLISTEN "+quoted); err != nil {
				r.logger.DebugContext(ctx, "unlisten failed", "error", err)
			}
		}()
		_, err := conn.WaitForNotification(ctx)
		return err
	})
}
