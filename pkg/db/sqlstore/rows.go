package sqlstore

import (
	"database/sql"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
)

type poolRow struct {
	PoolIDBech32 string `db:"pool_id_bech32"`
	PoolID       string `db:"pool_id"`
	Ticker       string `db:"ticker"`
	StakeAddress string `db:"stake_address"`
}

func (r poolRow) toPool() *db.Pool {
	return &db.Pool{
		PoolIDBech32: r.PoolIDBech32,
		PoolID:       r.PoolID,
		Ticker:       r.Ticker,
		StakeAddress: r.StakeAddress,
	}
}

type epochRecordRow struct {
	PoolIDBech32     string        `db:"pool_id_bech32"`
	Epoch            int64         `db:"epoch"`
	PoolID           string        `db:"pool_id"`
	EpochSlots       int64         `db:"epoch_slots"`
	EpochSlotsIdeal  float64       `db:"epoch_slots_ideal"`
	MaxPerformance   float64       `db:"max_performance"`
	ActiveStake      int64         `db:"active_stake"`
	TotalActiveStake int64         `db:"total_active_stake"`
	AssignedSlots    string        `db:"assigned_slots"`
	Status           string        `db:"status"`
	PoolRewards      sql.NullInt64 `db:"pool_rewards"`
}

// toRecord decodes the slot documents of the row.
func (r epochRecordRow) toRecord() (*db.EpochRecord, error) {
	record := &db.EpochRecord{
		PoolID:           r.PoolID,
		PoolIDBech32:     r.PoolIDBech32,
		Epoch:            uint(r.Epoch),
		EpochSlots:       uint(r.EpochSlots),
		EpochSlotsIdeal:  r.EpochSlotsIdeal,
		MaxPerformance:   r.MaxPerformance,
		ActiveStake:      uint64(r.ActiveStake),
		TotalActiveStake: uint64(r.TotalActiveStake),
	}
	err := json.Unmarshal([]byte(r.AssignedSlots), &record.AssignedSlots)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding the slots of %s failed", record.Ref())
	}
	err = json.Unmarshal([]byte(r.Status), &record.Status)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding the status of %s failed", record.Ref())
	}
	if record.Status.AssignedSlots == nil {
		record.Status.AssignedSlots = map[uint64]db.SlotRetryState{}
	}
	if r.PoolRewards.Valid {
		rewards := uint64(r.PoolRewards.Int64)
		record.PoolRewards = &rewards
	}
	return record, nil
}

// newEpochRecordRow encodes the given record. The slots are sorted by
// their number and empty retry states are dropped.
func newEpochRecordRow(record *db.EpochRecord) (*epochRecordRow, error) {
	record.SortSlots()
	record.PruneStatus()
	slots := record.AssignedSlots
	if slots == nil {
		slots = []db.Slot{}
	}
	slotsJSON, err := json.Marshal(slots)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding the slots of %s failed", record.Ref())
	}
	statusJSON, err := json.Marshal(record.Status)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding the status of %s failed", record.Ref())
	}
	row := &epochRecordRow{
		PoolIDBech32:     record.PoolIDBech32,
		Epoch:            int64(record.Epoch),
		PoolID:           record.PoolID,
		EpochSlots:       int64(record.EpochSlots),
		EpochSlotsIdeal:  record.EpochSlotsIdeal,
		MaxPerformance:   record.MaxPerformance,
		ActiveStake:      int64(record.ActiveStake),
		TotalActiveStake: int64(record.TotalActiveStake),
		AssignedSlots:    string(slotsJSON),
		Status:           string(statusJSON),
	}
	if record.PoolRewards != nil {
		row.PoolRewards = sql.NullInt64{Int64: int64(*record.PoolRewards), Valid: true}
	}
	return row, nil
}

type upcomingSlotRow struct {
	Slot         int64  `db:"slot"`
	PoolIDBech32 string `db:"pool_id_bech32"`
	Epoch        int64  `db:"epoch"`
}

type missingRewardsRow struct {
	RewardsKey   string `db:"rewards_key"`
	PoolIDBech32 string `db:"pool_id_bech32"`
	Epoch        int64  `db:"epoch"`
}
