package status

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
)

func failedSlot(no uint, slot uint64) db.Slot {
	s := plannedSlot(no, slot, 5000)
	s.Status = db.Failed
	s.FailedReason = db.Other
	return s
}

func mintedSlot(no uint, slot uint64) db.Slot {
	s := plannedSlot(no, slot, 5000)
	s.Status = db.Minted
	return s
}

func TestAggregate_ZeroRewards(t *testing.T) {
	backend := newFakeBackend()
	backend.rewardsErr = errors.New("must not be called")
	aggregator := NewAggregator(backend)
	for _, record := range []*db.EpochRecord{newRecord(), newRecord(failedSlot(1, 100), failedSlot(2, 200))} {
		update, err := aggregator.Aggregate(context.Background(), record, nil)
		require.NoError(t, err)
		assert.True(t, update.Settled)
		assert.Equal(t, uint64(0), update.Rewards)
	}
	assert.Equal(t, 0, backend.infoCalls)
}

func TestAggregate_SumsRewardsOfEpoch(t *testing.T) {
	backend := newFakeBackend()
	backend.rewards = []chain.Reward{
		{Epoch: 350, Amount: 300_000_000},
		{Epoch: 349, Amount: 1_000_000},
		{Epoch: 350, Amount: 45_000_000},
	}
	record := newRecord(mintedSlot(1, 100), failedSlot(2, 200))
	update, err := NewAggregator(backend).Aggregate(context.Background(), record,
		&db.Pool{PoolIDBech32: ownPool, StakeAddress: "stake1own"})
	require.NoError(t, err)
	assert.True(t, update.Settled)
	assert.Equal(t, uint64(345_000_000), update.Rewards)
	assert.Empty(t, update.StakeAddress)
	assert.Equal(t, 0, backend.infoCalls)
}

func TestAggregate_DiscoversStakeAddress(t *testing.T) {
	backend := newFakeBackend()
	backend.info = &chain.PoolInfo{RewardAccount: "stake1own"}
	backend.rewards = []chain.Reward{{Epoch: 350, Amount: 5}}
	update, err := NewAggregator(backend).Aggregate(context.Background(), newRecord(mintedSlot(1, 100)),
		&db.Pool{PoolIDBech32: ownPool})
	require.NoError(t, err)
	assert.True(t, update.Settled)
	assert.Equal(t, "stake1own", update.StakeAddress)
	assert.Equal(t, 1, backend.infoCalls)
}

func TestAggregate_Pending(t *testing.T) {
	backend := newFakeBackend()
	backend.rewards = []chain.Reward{{Epoch: 349, Amount: 5}}
	pool := &db.Pool{PoolIDBech32: ownPool, StakeAddress: "stake1own"}
	aggregator := NewAggregator(backend)

	update, err := aggregator.Aggregate(context.Background(), newRecord(mintedSlot(1, 100)), pool)
	require.NoError(t, err)
	assert.False(t, update.Settled)

	backend.rewardsErr = chain.QueryError
	update, err = aggregator.Aggregate(context.Background(), newRecord(mintedSlot(1, 100)), pool)
	assert.True(t, errors.Is(err, chain.QueryError))
	assert.False(t, update.Settled)
}

func TestAggregate_UnknownStakeAddress(t *testing.T) {
	backend := newFakeBackend()
	backend.info = &chain.PoolInfo{}
	update, err := NewAggregator(backend).Aggregate(context.Background(), newRecord(mintedSlot(1, 100)), nil)
	assert.True(t, errors.Is(err, NoStakeAddressError))
	assert.False(t, update.Settled)
}
