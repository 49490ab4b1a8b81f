package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
)

var _ db.DB = (*Store)(nil)

const testPool = "pool1testpoolbech32"

func openTestStore(t *testing.T) *Store {
	store, err := NewSQLiteDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord() *db.EpochRecord {
	at := time.Date(2022, 7, 1, 12, 0, 0, 0, time.UTC)
	return &db.EpochRecord{
		PoolID:           "abcdef",
		PoolIDBech32:     testPool,
		Epoch:            350,
		EpochSlots:       2,
		EpochSlotsIdeal:  1.5,
		MaxPerformance:   133.33,
		ActiveStake:      12_000_000_000_000,
		TotalActiveStake: 25_000_000_000_000_000,
		AssignedSlots: []db.Slot{
			{No: 2, Slot: 200, SlotInEpoch: 20, At: at.Add(time.Minute), Epoch: 350, Status: db.Planned},
			{No: 1, Slot: 100, SlotInEpoch: 10, At: at, Epoch: 350, Status: db.Minted,
				Block: db.Known(42), BlockURL: "https://cardanoscan.io/block/42", TxCount: db.Known(3),
				Fees: db.Known(500_000)},
		},
		Status: db.EpochStatus{AssignedSlots: map[uint64]db.SlotRetryState{
			200: {FailedCount: 1},
			100: {},
		}},
	}
}

func writeRecord(t *testing.T, store *Store, record *db.EpochRecord) {
	err := store.Update(context.Background(), func(tx db.Tx) error {
		err := tx.PutPool(context.Background(), &db.Pool{PoolIDBech32: record.PoolIDBech32,
			PoolID: record.PoolID, Ticker: "TEST"})
		if err != nil {
			return err
		}
		return tx.PutEpochRecord(context.Background(), record)
	})
	require.NoError(t, err)
}

func TestStore_EpochRecordRoundTrip(t *testing.T) {
	store := openTestStore(t)
	writeRecord(t, store, testRecord())

	record, err := store.GetEpochRecord(context.Background(), db.EpochRef{PoolIDBech32: testPool, Epoch: 350})
	require.NoError(t, err)
	require.Len(t, record.AssignedSlots, 2)
	assert.Equal(t, uint(1), record.AssignedSlots[0].No)
	assert.Equal(t, uint(2), record.AssignedSlots[1].No)
	assert.Equal(t, db.Known(42), record.AssignedSlots[0].Block)
	assert.Equal(t, uint64(25_000_000_000_000_000), record.TotalActiveStake)
	assert.Equal(t, map[uint64]db.SlotRetryState{200: {FailedCount: 1}}, record.Status.AssignedSlots)
	assert.Nil(t, record.PoolRewards)

	rewards := uint64(340_000_000)
	record.PoolRewards = &rewards
	writeRecord(t, store, record)
	records, err := store.GetEpochRecords(context.Background(), testPool)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].PoolRewards)
	assert.Equal(t, rewards, *records[0].PoolRewards)
}

func TestStore_GetMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetEpochRecord(context.Background(), db.EpochRef{PoolIDBech32: testPool, Epoch: 1})
	assert.True(t, errors.Is(err, db.NotFoundError))
	_, err = store.GetPool(context.Background(), testPool)
	assert.True(t, errors.Is(err, db.NotFoundError))
	epoch, err := store.GetLatestEpoch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, epoch)
}

func TestStore_EpochRecordsDescending(t *testing.T) {
	store := openTestStore(t)
	for _, epoch := range []uint{348, 350, 349} {
		record := testRecord()
		record.Epoch = epoch
		writeRecord(t, store, record)
	}
	records, err := store.GetEpochRecords(context.Background(), testPool)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, uint(350), records[0].Epoch)
	assert.Equal(t, uint(349), records[1].Epoch)
	assert.Equal(t, uint(348), records[2].Epoch)
}

func TestStore_WorkIndex(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ref := db.EpochRef{PoolIDBech32: testPool, Epoch: 350}
	other := db.EpochRef{PoolIDBech32: "pool1other", Epoch: 350}

	err := store.Update(ctx, func(tx db.Tx) error {
		if err := tx.ReplaceUpcomingSlots(ctx, ref, []uint64{100, 200, 300}); err != nil {
			return err
		}
		if err := tx.ReplaceUpcomingSlots(ctx, other, []uint64{200}); err != nil {
			return err
		}
		return tx.PutMissingRewards(ctx, ref)
	})
	require.NoError(t, err)

	index, err := store.GetWorkIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, []db.UpcomingSlot{
		{Slot: 100, Ref: ref},
		{Slot: 200, Ref: other},
		{Slot: 200, Ref: ref},
		{Slot: 300, Ref: ref},
	}, index.UpcomingSlots)
	assert.Equal(t, map[string]db.EpochRef{ref.RewardsKey(): ref}, index.MissingPoolRewards)

	err = store.Update(ctx, func(tx db.Tx) error {
		if err := tx.DeleteUpcomingSlots(ctx, ref, 100, 200); err != nil {
			return err
		}
		return tx.DeleteMissingRewards(ctx, ref)
	})
	require.NoError(t, err)

	index, err = store.GetWorkIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, []db.UpcomingSlot{{Slot: 200, Ref: other}, {Slot: 300, Ref: ref}}, index.UpcomingSlots)
	assert.Empty(t, index.MissingPoolRewards)

	err = store.Update(ctx, func(tx db.Tx) error {
		return tx.ReplaceUpcomingSlots(ctx, ref, []uint64{400})
	})
	require.NoError(t, err)
	index, err = store.GetWorkIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, []db.UpcomingSlot{{Slot: 200, Ref: other}, {Slot: 400, Ref: ref}}, index.UpcomingSlots)
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	failure := errors.New("failure")
	err := store.Update(ctx, func(tx db.Tx) error {
		if err := tx.PutPool(ctx, &db.Pool{PoolIDBech32: testPool, PoolID: "abcdef"}); err != nil {
			return err
		}
		return failure
	})
	assert.Equal(t, failure, err)
	_, err = store.GetPool(ctx, testPool)
	assert.True(t, errors.Is(err, db.NotFoundError))
}

func TestStore_UpdateRetriesConflicts(t *testing.T) {
	store := openTestStore(t)
	store.backoff = time.Millisecond
	calls := 0
	err := store.Update(context.Background(), func(tx db.Tx) error {
		calls++
		if calls < 3 {
			return db.ConflictError
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = store.Update(context.Background(), func(tx db.Tx) error {
		calls++
		return db.ConflictError
	})
	assert.True(t, errors.Is(err, db.ConflictError))
	assert.Equal(t, store.maxAttempts, calls)
}

func TestStore_LatestEpoch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutLatestEpoch(ctx, &db.EpochInfo{Epoch: 361, BlockCount: 10}))
	require.NoError(t, store.PutLatestEpoch(ctx, &db.EpochInfo{Epoch: 362, StartTime: 1656798291}))
	epoch, err := store.GetLatestEpoch(ctx)
	require.NoError(t, err)
	assert.Equal(t, &db.EpochInfo{Epoch: 362, StartTime: 1656798291}, epoch)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "")
	assert.Error(t, err)
}
