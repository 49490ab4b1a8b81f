package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
)

// transaction is a db.Tx of a Store.
type transaction struct {
	tx *sqlx.Tx
}

func (s *Store) txOptions() *sql.TxOptions {
	if s.driver == DriverPostgres {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	// SQLite transactions are serializable, they are started with an
	// immediate lock.
	return nil
}

func (s *Store) Update(ctx context.Context, f func(tx db.Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.runTx(ctx, f)
		if !stderrors.Is(err, db.ConflictError) {
			return err
		}
		log.Warnf("transaction attempt %d conflicted: %s", attempt, err.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
	return err
}

// runTx runs f in a single transaction, which is committed, if f returns
// no error and rolled back otherwise.
func (s *Store) runTx(ctx context.Context, f func(tx db.Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, s.txOptions())
	if err != nil {
		log.Errorf("couldn't start a transaction: %s", err.Error())
		return classify(err, db.WriteError)
	}
	err = f(&transaction{tx: sqlTx})
	if err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	err = sqlTx.Commit()
	if err != nil {
		log.Errorf("committing the transaction failed: %s", err.Error())
		return classify(err, db.WriteError)
	}
	return nil
}

func (t *transaction) GetPool(ctx context.Context, poolIDBech32 string) (*db.Pool, error) {
	return getPool(ctx, t.tx, poolIDBech32)
}

func (t *transaction) PutPool(ctx context.Context, pool *db.Pool) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
INSERT INTO pools (pool_id_bech32, pool_id, ticker, stake_address) VALUES (?, ?, ?, ?)
ON CONFLICT (pool_id_bech32) DO UPDATE SET pool_id = excluded.pool_id, ticker = excluded.ticker,
	stake_address = excluded.stake_address;
`), pool.PoolIDBech32, pool.PoolID, pool.Ticker, pool.StakeAddress)
	if err != nil {
		log.Errorf("writing the pool '%s' failed: %s", pool.PoolIDBech32, err.Error())
		return classify(err, db.WriteError)
	}
	return nil
}

func (t *transaction) GetEpochRecord(ctx context.Context, ref db.EpochRef) (*db.EpochRecord, error) {
	return getEpochRecord(ctx, t.tx, ref)
}

func (t *transaction) PutEpochRecord(ctx context.Context, record *db.EpochRecord) error {
	row, err := newEpochRecordRow(record)
	if err != nil {
		log.Errorf("encoding the epoch record %s failed: %s", record.Ref(), err.Error())
		return db.WriteError
	}
	_, err = t.tx.NamedExecContext(ctx, `
INSERT INTO epoch_records (pool_id_bech32, epoch, pool_id, epoch_slots, epoch_slots_ideal, max_performance,
	active_stake, total_active_stake, assigned_slots, status, pool_rewards)
VALUES (:pool_id_bech32, :epoch, :pool_id, :epoch_slots, :epoch_slots_ideal, :max_performance,
	:active_stake, :total_active_stake, :assigned_slots, :status, :pool_rewards)
ON CONFLICT (pool_id_bech32, epoch) DO UPDATE SET pool_id = excluded.pool_id,
	epoch_slots = excluded.epoch_slots, epoch_slots_ideal = excluded.epoch_slots_ideal,
	max_performance = excluded.max_performance, active_stake = excluded.active_stake,
	total_active_stake = excluded.total_active_stake, assigned_slots = excluded.assigned_slots,
	status = excluded.status, pool_rewards = excluded.pool_rewards;
`, row)
	if err != nil {
		log.Errorf("writing the epoch record %s failed: %s", record.Ref(), err.Error())
		return classify(err, db.WriteError)
	}
	return nil
}

func (t *transaction) ReplaceUpcomingSlots(ctx context.Context, ref db.EpochRef, slots []uint64) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
DELETE FROM upcoming_slots WHERE pool_id_bech32 = ? AND epoch = ?;
`), ref.PoolIDBech32, ref.Epoch)
	if err != nil {
		log.Errorf("removing the upcoming slots of %s failed: %s", ref, err.Error())
		return classify(err, db.WriteError)
	}
	insert := t.tx.Rebind(`
INSERT INTO upcoming_slots (slot, pool_id_bech32, epoch) VALUES (?, ?, ?)
ON CONFLICT (slot, pool_id_bech32) DO UPDATE SET epoch = excluded.epoch;
`)
	for _, slot := range slots {
		_, err = t.tx.ExecContext(ctx, insert, slot, ref.PoolIDBech32, ref.Epoch)
		if err != nil {
			log.Errorf("registering the upcoming slot %d of %s failed: %s", slot, ref, err.Error())
			return classify(err, db.WriteError)
		}
	}
	return nil
}

func (t *transaction) DeleteUpcomingSlots(ctx context.Context, ref db.EpochRef, slots ...uint64) error {
	if len(slots) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`
DELETE FROM upcoming_slots WHERE pool_id_bech32 = ? AND slot IN (?);
`, ref.PoolIDBech32, slots)
	if err != nil {
		log.Errorf("building the removal of upcoming slots of %s failed: %s", ref, err.Error())
		return db.WriteError
	}
	_, err = t.tx.ExecContext(ctx, t.tx.Rebind(query), args...)
	if err != nil {
		log.Errorf("removing the upcoming slots %v of %s failed: %s", slots, ref, err.Error())
		return classify(err, db.WriteError)
	}
	return nil
}

func (t *transaction) PutMissingRewards(ctx context.Context, ref db.EpochRef) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
INSERT INTO missing_rewards (rewards_key, pool_id_bech32, epoch) VALUES (?, ?, ?)
ON CONFLICT (rewards_key) DO NOTHING;
`), ref.RewardsKey(), ref.PoolIDBech32, ref.Epoch)
	if err != nil {
		log.Errorf("registering the missing rewards of %s failed: %s", ref, err.Error())
		return classify(err, db.WriteError)
	}
	return nil
}

func (t *transaction) DeleteMissingRewards(ctx context.Context, ref db.EpochRef) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
DELETE FROM missing_rewards WHERE rewards_key = ?;
`), ref.RewardsKey())
	if err != nil {
		log.Errorf("removing the missing rewards of %s failed: %s", ref, err.Error())
		return classify(err, db.WriteError)
	}
	return nil
}
