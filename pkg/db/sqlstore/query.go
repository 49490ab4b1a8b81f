package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
)

const latestEpochName = "latestEpoch"

// queryer is implemented by both, the database handle and transactions.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func getPool(ctx context.Context, q queryer, poolIDBech32 string) (*db.Pool, error) {
	var row poolRow
	err := q.GetContext(ctx, &row, q.Rebind(`
SELECT pool_id_bech32, pool_id, ticker, stake_address FROM pools WHERE pool_id_bech32 = ?;
`), poolIDBech32)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, db.NotFoundError
	}
	if err != nil {
		log.Errorf("querying the pool '%s' failed: %s", poolIDBech32, err.Error())
		return nil, classify(err, db.ReadError)
	}
	return row.toPool(), nil
}

const selectEpochRecord = `
SELECT pool_id_bech32, epoch, pool_id, epoch_slots, epoch_slots_ideal, max_performance, active_stake,
	total_active_stake, assigned_slots, status, pool_rewards
FROM epoch_records
`

func getEpochRecord(ctx context.Context, q queryer, ref db.EpochRef) (*db.EpochRecord, error) {
	var row epochRecordRow
	err := q.GetContext(ctx, &row, q.Rebind(selectEpochRecord+`WHERE pool_id_bech32 = ? AND epoch = ?;`),
		ref.PoolIDBech32, ref.Epoch)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, db.NotFoundError
	}
	if err != nil {
		log.Errorf("querying the epoch record %s failed: %s", ref, err.Error())
		return nil, classify(err, db.ReadError)
	}
	record, err := row.toRecord()
	if err != nil {
		log.Errorf("the epoch record %s is corrupted: %s", ref, err.Error())
		return nil, db.ReadError
	}
	return record, nil
}

func (s *Store) GetPool(ctx context.Context, poolIDBech32 string) (*db.Pool, error) {
	return getPool(ctx, s.db, poolIDBech32)
}

func (s *Store) GetEpochRecord(ctx context.Context, ref db.EpochRef) (*db.EpochRecord, error) {
	return getEpochRecord(ctx, s.db, ref)
}

func (s *Store) GetEpochRecords(ctx context.Context, poolIDBech32 string) ([]db.EpochRecord, error) {
	var rows []epochRecordRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(selectEpochRecord+`
WHERE pool_id_bech32 = ?
ORDER BY epoch DESC;
`), poolIDBech32)
	if err != nil {
		log.Errorf("querying the epoch records of pool '%s' failed: %s", poolIDBech32, err.Error())
		return nil, db.ReadError
	}
	records := make([]db.EpochRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.toRecord()
		if err != nil {
			log.Errorf("the epoch record of pool '%s' is corrupted: %s", poolIDBech32, err.Error())
			return nil, db.ReadError
		}
		records = append(records, *record)
	}
	return records, nil
}

func (s *Store) GetWorkIndex(ctx context.Context) (*db.WorkIndex, error) {
	var slotRows []upcomingSlotRow
	err := s.db.SelectContext(ctx, &slotRows, `
SELECT slot, pool_id_bech32, epoch FROM upcoming_slots ORDER BY slot ASC, pool_id_bech32 ASC;
`)
	if err != nil {
		log.Errorf("querying the upcoming slots failed: %s", err.Error())
		return nil, db.ReadError
	}
	var rewardRows []missingRewardsRow
	err = s.db.SelectContext(ctx, &rewardRows, `
SELECT rewards_key, pool_id_bech32, epoch FROM missing_rewards;
`)
	if err != nil {
		log.Errorf("querying the epochs missing pool rewards failed: %s", err.Error())
		return nil, db.ReadError
	}
	index := &db.WorkIndex{
		UpcomingSlots:      make([]db.UpcomingSlot, 0, len(slotRows)),
		MissingPoolRewards: make(map[string]db.EpochRef, len(rewardRows)),
	}
	for _, row := range slotRows {
		index.UpcomingSlots = append(index.UpcomingSlots, db.UpcomingSlot{
			Slot: uint64(row.Slot),
			Ref:  db.EpochRef{PoolIDBech32: row.PoolIDBech32, Epoch: uint(row.Epoch)},
		})
	}
	for _, row := range rewardRows {
		index.MissingPoolRewards[row.RewardsKey] = db.EpochRef{
			PoolIDBech32: row.PoolIDBech32,
			Epoch:        uint(row.Epoch),
		}
	}
	return index, nil
}

func (s *Store) GetLatestEpoch(ctx context.Context) (*db.EpochInfo, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.db.Rebind(`SELECT value FROM global_data WHERE name = ?;`),
		latestEpochName)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Errorf("querying the latest epoch failed: %s", err.Error())
		return nil, db.ReadError
	}
	var epoch db.EpochInfo
	err = json.Unmarshal([]byte(value), &epoch)
	if err != nil {
		log.Errorf("the stored latest epoch is corrupted: %s", err.Error())
		return nil, db.ReadError
	}
	return &epoch, nil
}

func (s *Store) PutLatestEpoch(ctx context.Context, epoch *db.EpochInfo) error {
	value, err := json.Marshal(epoch)
	if err != nil {
		log.Errorf("encoding the latest epoch %d failed: %s", epoch.Epoch, err.Error())
		return db.WriteError
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
INSERT INTO global_data (name, value) VALUES (?, ?)
ON CONFLICT (name) DO UPDATE SET value = excluded.value;
`), latestEpochName, string(value))
	if err != nil {
		log.Errorf("writing the latest epoch %d failed: %s", epoch.Epoch, err.Error())
		return db.WriteError
	}
	return nil
}
