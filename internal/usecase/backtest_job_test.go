package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"RiskDesk/internal/domain/models"
	"RiskDesk/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJobs(t *testing.T) (*BacktestJobs, *fakeEnqueuer) {
	q := &fakeEnqueuer{}
	svc := NewBacktestService(NewBacktestSimulator(), newFakeMetrics(), nil)
	return NewBacktestJobs(svc, q, memoryCache(t), 0, nil), q
}

func TestBacktestJobLifecycle(t *testing.T) {
	jobs, q := newTestJobs(t)
	ctx := context.Background()

	st, err := jobs.Submit(ctx, testBacktestConfig(20), cycleSeries())
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, st.Status)
	require.NotEmpty(t, st.ID)

	require.Len(t, q.messages, 1)
	assert.Equal(t, BacktestJobType, q.messages[0].msgType)

	got, err := jobs.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, got.Status)

	err = jobs.Handle(ctx, queue.Message{ID: "msg-1", Type: BacktestJobType, Payload: q.messages[0].payload})
	require.NoError(t, err)

	got, err = jobs.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "BTCUSDT", got.Summary.Symbol)
	assert.Equal(t, models.StrategySMACross, got.Summary.Strategy)
}

func TestBacktestJobRejectsInvalidConfigOnSubmit(t *testing.T) {
	jobs, q := newTestJobs(t)
	cfg := testBacktestConfig(20)
	cfg.Symbol = ""

	_, err := jobs.Submit(context.Background(), cfg, cycleSeries())
	var verrs models.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Empty(t, q.messages)
}

func TestBacktestJobEnqueueFailure(t *testing.T) {
	jobs, q := newTestJobs(t)
	q.err = errors.New("redis down")

	_, err := jobs.Submit(context.Background(), testBacktestConfig(20), cycleSeries())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestBacktestJobMalformedSeriesFailsPermanently(t *testing.T) {
	jobs, _ := newTestJobs(t)
	ctx := context.Background()
	series := cycleSeries()
	series[3].Price = -1

	payload, err := json.Marshal(BacktestJobPayload{JobID: "job-1", Config: testBacktestConfig(20), Prices: series})
	require.NoError(t, err)
	require.NoError(t, jobs.Handle(ctx, queue.Message{ID: "m", Type: BacktestJobType, Payload: payload}))

	got, err := jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, got.Status)
	assert.Contains(t, got.Error, "step 3")
}

func TestBacktestJobBadPayload(t *testing.T) {
	jobs, _ := newTestJobs(t)
	err := jobs.Handle(context.Background(), queue.Message{ID: "m", Type: BacktestJobType})
	assert.ErrorIs(t, err, queue.ErrEmptyPayload)

	err = jobs.Handle(context.Background(), queue.Message{ID: "m", Type: BacktestJobType, Payload: json.RawMessage(`{}`)})
	assert.Error(t, err)
}

func TestBacktestJobGetUnknown(t *testing.T) {
	jobs, _ := newTestJobs(t)
	_, err := jobs.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
