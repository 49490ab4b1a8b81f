package blockfrost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blockfrost/blockfrost-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain"
)

type fakeAPI struct {
	failures int
	calls    int
	block    blockfrost.Block
	pool     blockfrost.Pool
	rewards  []blockfrost.AccountRewardsHistory
	delay    time.Duration
}

func (f *fakeAPI) next(ctx context.Context) error {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.calls <= f.failures {
		return errors.New("503 service unavailable")
	}
	return nil
}

func (f *fakeAPI) BlockLatest(ctx context.Context) (blockfrost.Block, error) {
	return f.block, f.next(ctx)
}

func (f *fakeAPI) BlockBySlot(ctx context.Context, _ int) (blockfrost.Block, error) {
	return f.block, f.next(ctx)
}

func (f *fakeAPI) EpochLatest(ctx context.Context) (blockfrost.Epoch, error) {
	return blockfrost.Epoch{}, f.next(ctx)
}

func (f *fakeAPI) PoolMetadata(ctx context.Context, _ string) (blockfrost.PoolMetadata, error) {
	return blockfrost.PoolMetadata{}, f.next(ctx)
}

func (f *fakeAPI) Pool(ctx context.Context, _ string) (blockfrost.Pool, error) {
	return f.pool, f.next(ctx)
}

func (f *fakeAPI) AccountRewardsHistory(ctx context.Context, _ string,
	_ blockfrost.APIQueryParams) ([]blockfrost.AccountRewardsHistory, error) {
	return f.rewards, f.next(ctx)
}

func testBlock() blockfrost.Block {
	return blockfrost.Block{
		Height:     7800000,
		Hash:       "4ea1ba291e8eef538635a53e59fddba7810d1679631cc3aed7c8e6c4091a516a",
		Slot:       71066008,
		Epoch:      362,
		EpochSlot:  45208,
		SlotLeader: "pool1pu5jlj4q9w9jlxeu370a3c9myx47md5j5m2str0naunn2q3lkdy",
	}
}

func TestQueryRetriesTransientFailures(t *testing.T) {
	fake := &fakeAPI{failures: 2, block: testBlock()}
	backend := newBackend(fake, Options{Retries: 2})

	block, err := backend.GetBlockBySlot(context.Background(), 71066008)
	require.NoError(t, err)
	assert.Equal(t, 3, fake.calls)
	assert.Equal(t, uint64(7800000), block.Height)
	assert.Equal(t, uint(362), block.Epoch)
	assert.Equal(t, uint(45208), block.SlotInEpoch)
	assert.Equal(t, testBlock().SlotLeader, block.SlotLeader)
}

func TestQueryGivesUpAfterBudget(t *testing.T) {
	fake := &fakeAPI{failures: 10}
	backend := newBackend(fake, Options{Retries: 2})

	_, err := backend.GetLatestBlock(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, chain.QueryError))
	assert.Contains(t, err.Error(), EndpointLatestBlock)
	assert.Equal(t, 3, fake.calls)
}

func TestQueryTimesOut(t *testing.T) {
	fake := &fakeAPI{delay: time.Second}
	backend := newBackend(fake, Options{Retries: 1, Timeout: 10 * time.Millisecond})

	_, err := backend.GetLatestEpoch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, chain.QueryError))
	assert.Equal(t, 2, fake.calls)
}

func TestGetPoolRewards(t *testing.T) {
	fake := &fakeAPI{rewards: []blockfrost.AccountRewardsHistory{
		{Epoch: 362, Amount: "1049876311", PoolID: "pool1pu5jlj4q9w9jlxeu370a3c9myx47md5j5m2str0naunn2q3lkdy"},
		{Epoch: 361, Amount: "not-a-number", PoolID: "pool1pu5jlj4q9w9jlxeu370a3c9myx47md5j5m2str0naunn2q3lkdy"},
	}}
	backend := newBackend(fake, Options{})

	rewards, err := backend.GetPoolRewards(context.Background(), "stake1u9ylzsgxaa6xctf4juup682ar3juj85n8tx3hthnljg47zctvm3rc")
	require.NoError(t, err)
	require.Len(t, rewards, 2)
	assert.Equal(t, chain.Reward{Epoch: 362, Amount: 1049876311, PoolID: fake.rewards[0].PoolID}, rewards[0])
	assert.Equal(t, uint(361), rewards[1].Epoch)
	assert.Equal(t, uint64(0), rewards[1].Amount)
}

func TestGetPoolInfo(t *testing.T) {
	fake := &fakeAPI{pool: blockfrost.Pool{
		PoolID:        "pool1pu5jlj4q9w9jlxeu370a3c9myx47md5j5m2str0naunn2q3lkdy",
		Hex:           "0f292fcaa02b8b2f9b3c8f9fd8e0bb21abedb692a6d5058df3ef2735",
		RewardAccount: "stake1u9ylzsgxaa6xctf4juup682ar3juj85n8tx3hthnljg47zctvm3rc",
		ActiveStake:   " 4200000000000 ",
		ActiveSize:    0.00018,
	}}
	backend := newBackend(fake, Options{})

	info, err := backend.GetPoolInfo(context.Background(), fake.pool.PoolID)
	require.NoError(t, err)
	assert.Equal(t, fake.pool.Hex, info.HexID)
	assert.Equal(t, fake.pool.RewardAccount, info.RewardAccount)
	assert.Equal(t, uint64(4200000000000), info.ActiveStake)
	assert.Equal(t, 0.00018, info.ActiveSize)
}
