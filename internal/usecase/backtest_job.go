package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RiskDesk/internal/domain/models"
	"RiskDesk/pkg/cache"
	applogger "RiskDesk/pkg/logger"
	"RiskDesk/pkg/queue"

	"github.com/google/uuid"
)

const (
	BacktestJobType    = "backtest.run"
	backtestJobName    = "backtest-runner"
	backtestJobPrefix  = "backtest:job"
	defaultJobStateTTL = 24 * time.Hour
)

// BacktestJobPayload is the queued form of an async backtest request.
type BacktestJobPayload struct {
	JobID  string                `json:"job_id"`
	Config models.BacktestConfig `json:"config"`
	Prices []models.PricePoint   `json:"prices,omitempty"`
}

// BacktestJobs submits backtests to the queue and runs them as a queue job.
// Job state lives in the cache under backtest:job:<id>.
type BacktestJobs struct {
	svc   *BacktestService
	queue queue.Enqueuer
	state cache.Service
	ttl   time.Duration
	now   func() time.Time
	l     *applogger.Logger
}

var _ queue.Job = (*BacktestJobs)(nil)

func NewBacktestJobs(svc *BacktestService, q queue.Enqueuer, state cache.Service, ttl time.Duration, l *applogger.Logger) *BacktestJobs {
	if ttl <= 0 {
		ttl = defaultJobStateTTL
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &BacktestJobs{svc: svc, queue: q, state: state, ttl: ttl, now: time.Now, l: l}
}

// Submit validates cfg, records a pending job and enqueues it.
func (j *BacktestJobs) Submit(ctx context.Context, cfg models.BacktestConfig, prices []models.PricePoint) (models.BacktestJobState, error) {
	if err := ApplyBacktestDefaults(&cfg); err != nil {
		return models.BacktestJobState{}, fmt.Errorf("apply backtest defaults: %w", err)
	}
	if err := ValidateBacktestConfig(cfg); err != nil {
		return models.BacktestJobState{}, err
	}

	id := uuid.NewString()
	st := models.BacktestJobState{ID: id, Status: models.JobPending, UpdatedAt: j.now().UTC()}
	if err := j.save(ctx, st); err != nil {
		return models.BacktestJobState{}, err
	}
	payload := BacktestJobPayload{JobID: id, Config: cfg, Prices: prices}
	if _, err := j.queue.Enqueue(ctx, BacktestJobType, payload); err != nil {
		st.Status, st.Error = models.JobFailed, "enqueue failed"
		st.UpdatedAt = j.now().UTC()
		if serr := j.save(ctx, st); serr != nil {
			j.l.Warn("backtest job state write failed", applogger.String("job_id", id), applogger.Error(serr))
		}
		return models.BacktestJobState{}, fmt.Errorf("enqueue backtest job: %w", err)
	}
	return st, nil
}

// Get returns the stored state of job id, or models.ErrNotFound.
func (j *BacktestJobs) Get(ctx context.Context, id string) (models.BacktestJobState, error) {
	st, err := cache.GetTyped[models.BacktestJobState](ctx, j.state, jobKey(id))
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.BacktestJobState{}, fmt.Errorf("backtest job %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.BacktestJobState{}, fmt.Errorf("read backtest job %s: %w", id, err)
	}
	return st, nil
}

func (j *BacktestJobs) Name() string { return backtestJobName }

func (j *BacktestJobs) Type() string { return BacktestJobType }

// Handle runs one queued backtest. Invalid configs, malformed series and missing
// history fail the job for good; anything else is returned for the queue to retry.
func (j *BacktestJobs) Handle(ctx context.Context, msg queue.Message) error {
	p, err := queue.ParsePayload[BacktestJobPayload](msg.Payload)
	if err != nil {
		return fmt.Errorf("backtest job %s: %w", msg.ID, err)
	}
	if p.JobID == "" {
		return fmt.Errorf("backtest job %s: missing job_id", msg.ID)
	}

	j.update(ctx, models.BacktestJobState{ID: p.JobID, Status: models.JobRunning})
	res, err := j.svc.Run(ctx, p.Config, p.Prices)
	if err == nil {
		summary := res.Summary()
		j.update(ctx, models.BacktestJobState{ID: p.JobID, Status: models.JobCompleted, Summary: &summary})
		return nil
	}

	j.update(ctx, models.BacktestJobState{ID: p.JobID, Status: models.JobFailed, Error: err.Error()})
	if permanentBacktestError(err) {
		j.l.Warn("backtest job failed", applogger.String("job_id", p.JobID), applogger.Error(err))
		return nil
	}
	return err
}

func permanentBacktestError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var verrs models.ValidationErrors
	var serr *models.SimulationError
	return errors.As(err, &verrs) || errors.As(err, &serr) || errors.Is(err, models.ErrNoPriceHistory)
}

func (j *BacktestJobs) update(ctx context.Context, st models.BacktestJobState) {
	st.UpdatedAt = j.now().UTC()
	if err := j.save(context.WithoutCancel(ctx), st); err != nil {
		j.l.Warn("backtest job state write failed", applogger.String("job_id", st.ID), applogger.Error(err))
	}
}

func (j *BacktestJobs) save(ctx context.Context, st models.BacktestJobState) error {
	if err := j.state.Set(ctx, jobKey(st.ID), st, j.ttl); err != nil {
		return fmt.Errorf("store backtest job %s: %w", st.ID, err)
	}
	return nil
}

func jobKey(id string) string { return cache.GenerateKey(backtestJobPrefix, id) }
