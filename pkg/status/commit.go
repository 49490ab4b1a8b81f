package status

import (
	"context"
	"errors"

	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
)

// Mutation collects the outcome of the due work of one epoch record.
type Mutation struct {
	Work    Work
	Slots   *SlotUpdate
	Rewards *RewardsUpdate
	// Stale is true, if the referenced record doesn't exist.
	Stale bool
	// StaleSlots are due slots, which aren't planned in the record anymore.
	StaleSlots []uint64
}

// empty returns true, if committing the mutation wouldn't change anything.
func (m *Mutation) empty() bool {
	if m.Stale || len(m.StaleSlots) > 0 || m.Slots.Changed() {
		return false
	}
	return m.Rewards == nil || (!m.Rewards.Settled && m.Rewards.StakeAddress == "")
}

// commitResult describes the changes of a committed mutation.
type commitResult struct {
	record         *db.EpochRecord
	applied        []db.Slot
	rewardsSettled bool
	pruned         int
}

// commit applies the given mutation to the current version of the epoch
// record and prunes the work index in a single transaction.
func (m *Manager) commit(ctx context.Context, mut *Mutation) (*commitResult, error) {
	var result *commitResult
	err := m.db.Update(ctx, func(tx db.Tx) error {
		result = &commitResult{}
		ref := mut.Work.Ref
		record, err := tx.GetEpochRecord(ctx, ref)
		if errors.Is(err, db.NotFoundError) {
			result.pruned = len(mut.Work.Slots)
			return pruneStale(ctx, tx, mut.Work)
		}
		if err != nil {
			return err
		}
		result.record = record
		changed := false
		if mut.Slots.Changed() {
			result.applied = mut.Slots.Apply(record)
			changed = true
		}
		candidates := append([]uint64(nil), mut.Work.Slots...)
		for _, slot := range result.applied {
			candidates = append(candidates, slot.Slot)
		}
		prune := unplannedSlots(record, candidates)
		if len(prune) > 0 {
			err = tx.DeleteUpcomingSlots(ctx, ref, prune...)
			if err != nil {
				return err
			}
			result.pruned = len(prune)
		}
		if mut.Rewards != nil {
			if mut.Rewards.StakeAddress != "" {
				err = storeStakeAddress(ctx, tx, record, mut.Rewards.StakeAddress)
				if err != nil {
					return err
				}
			}
			if mut.Rewards.Settled {
				if record.PoolRewards == nil {
					rewards := mut.Rewards.Rewards
					record.PoolRewards = &rewards
					result.rewardsSettled = true
					changed = true
				}
				err = tx.DeleteMissingRewards(ctx, ref)
				if err != nil {
					return err
				}
			}
		}
		if changed {
			return tx.PutEpochRecord(ctx, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// pruneStale removes the work index entries of a record, which doesn't
// exist.
func pruneStale(ctx context.Context, tx db.Tx, work Work) error {
	err := tx.DeleteUpcomingSlots(ctx, work.Ref, work.Slots...)
	if err != nil {
		return err
	}
	if work.Rewards {
		return tx.DeleteMissingRewards(ctx, work.Ref)
	}
	return nil
}

// unplannedSlots returns the distinct given slots, which aren't planned in
// the given record.
func unplannedSlots(record *db.EpochRecord, slots []uint64) []uint64 {
	skip := map[uint64]bool{}
	for _, slot := range record.PlannedSlots() {
		skip[slot] = true
	}
	var unplanned []uint64
	for _, slot := range slots {
		if !skip[slot] {
			unplanned = append(unplanned, slot)
			skip[slot] = true
		}
	}
	return unplanned
}

func storeStakeAddress(ctx context.Context, tx db.Tx, record *db.EpochRecord, stakeAddress string) error {
	pool, err := tx.GetPool(ctx, record.PoolIDBech32)
	if errors.Is(err, db.NotFoundError) {
		pool = &db.Pool{PoolIDBech32: record.PoolIDBech32, PoolID: record.PoolID}
	} else if err != nil {
		return err
	}
	if pool.StakeAddress == stakeAddress {
		return nil
	}
	pool.StakeAddress = stakeAddress
	return tx.PutPool(ctx, pool)
}

// cloneRecord returns a deep copy of the given record.
func cloneRecord(record *db.EpochRecord) *db.EpochRecord {
	clone := *record
	clone.AssignedSlots = append([]db.Slot(nil), record.AssignedSlots...)
	clone.Status.AssignedSlots = make(map[uint64]db.SlotRetryState, len(record.Status.AssignedSlots))
	for slot, state := range record.Status.AssignedSlots {
		clone.Status.AssignedSlots[slot] = state
	}
	if record.PoolRewards != nil {
		rewards := *record.PoolRewards
		clone.PoolRewards = &rewards
	}
	return &clone
}
