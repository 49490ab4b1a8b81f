package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/status"
)

type fakeTicker struct {
	calls int
	ctx   context.Context
}

func (f *fakeTicker) Tick(ctx context.Context) (*status.TickReport, error) {
	f.calls++
	f.ctx = ctx
	return &status.TickReport{}, nil
}

func TestTickOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := &fakeTicker{}

	report, err := tickOnce(ctx, fake)
	require.NoError(t, err)
	assert.NotNil(t, report)
	assert.Equal(t, 1, fake.calls)

	cancel()
	assert.NoError(t, fake.ctx.Err())
}

func TestTickOnce_skippedAfterSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := &fakeTicker{}

	_, err := tickOnce(ctx, fake)
	assert.ErrorIs(t, err, errTickSkipped)
	assert.Equal(t, 0, fake.calls)
}
