package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	applogger "RiskDesk/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trace struct {
	mu     sync.Mutex
	events []string
}

func (tr *trace) add(e string) {
	tr.mu.Lock()
	tr.events = append(tr.events, e)
	tr.mu.Unlock()
}

func (tr *trace) component(name string, startErr error) Component {
	return Component{
		Name: name,
		Start: func(context.Context) error {
			tr.add("start " + name)
			return startErr
		},
		Stop: func(context.Context) error {
			tr.add("stop " + name)
			return nil
		},
	}
}

func TestRunStopsInReverseOrder(t *testing.T) {
	tr := &trace{}
	app := New(applogger.NewNop(), 0,
		Closer("db", func() error { tr.add("close db"); return nil }),
		tr.component("queue", nil),
		tr.component("http", nil),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, app.RunContext(ctx))

	assert.Equal(t, []string{
		"start queue", "start http",
		"stop http", "stop queue", "close db",
	}, tr.events)
}

func TestRunRollsBackOnStartFailure(t *testing.T) {
	tr := &trace{}
	boom := errors.New("boom")
	app := New(applogger.NewNop(), 0,
		tr.component("feed", nil),
		tr.component("consumer", boom),
		tr.component("http", nil),
	)

	err := app.RunContext(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start feed", "start consumer", "stop feed"}, tr.events)
}

func TestRunContextCancelledAfterStops(t *testing.T) {
	var runCtx context.Context
	stopSawLive := false
	app := New(applogger.NewNop(), 0, Component{
		Name:  "pipeline",
		Start: func(ctx context.Context) error { runCtx = ctx; return nil },
		Stop: func(context.Context) error {
			stopSawLive = runCtx.Err() == nil
			return errors.New("slow")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := app.RunContext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop pipeline")
	assert.True(t, stopSawLive)
	assert.ErrorIs(t, runCtx.Err(), context.Canceled)
}
