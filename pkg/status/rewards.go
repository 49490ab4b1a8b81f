package status

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
)

// NoStakeAddressError is returned, if the reward account of a pool is
// unknown.
var NoStakeAddressError = errors.New("the stake address of the pool is unknown")

// RewardsUpdate is the outcome of aggregating the rewards of an epoch.
type RewardsUpdate struct {
	Ref db.EpochRef
	// Settled is true, if the rewards of the epoch are known.
	Settled bool
	Rewards uint64
	// StakeAddress is the newly discovered reward account of the pool. It is
	// empty, if the stored one has been used.
	StakeAddress string
}

// Aggregator computes the pool rewards of past epochs.
type Aggregator struct {
	backend chain.Backend
}

// NewAggregator creates a new aggregator querying the given backend.
func NewAggregator(backend chain.Backend) *Aggregator {
	return &Aggregator{backend: backend}
}

// Aggregate computes the rewards of the given epoch record. The rewards
// are zero, if the pool had no slot in the epoch or all slots failed.
// Otherwise, the rewards of the pool's stake address for the epoch are
// summed up. The update isn't settled, if the chain doesn't list any
// reward for the epoch yet.
//
// An error will be returned, if the stake address or the rewards couldn't
// be fetched. The returned update is never nil.
func (a *Aggregator) Aggregate(ctx context.Context, record *db.EpochRecord, pool *db.Pool) (*RewardsUpdate, error) {
	update := &RewardsUpdate{Ref: record.Ref()}
	if allFailed(record.AssignedSlots) {
		update.Settled = true
		return update, nil
	}
	stakeAddress := ""
	if pool != nil {
		stakeAddress = pool.StakeAddress
	}
	if stakeAddress == "" {
		info, err := a.backend.GetPoolInfo(ctx, record.PoolIDBech32)
		if err != nil {
			return update, err
		}
		if info.RewardAccount == "" {
			return update, NoStakeAddressError
		}
		stakeAddress = info.RewardAccount
		update.StakeAddress = stakeAddress
	}
	rewards, err := a.backend.GetPoolRewards(ctx, stakeAddress)
	if err != nil {
		return update, err
	}
	found := false
	for _, reward := range rewards {
		if reward.Epoch == record.Epoch {
			found = true
			update.Rewards += reward.Amount
		}
	}
	if !found {
		log.Infof("no rewards of %s have been distributed yet", update.Ref)
		return update, nil
	}
	update.Settled = true
	return update, nil
}

// allFailed returns true, if the given slots are empty or all of them failed.
func allFailed(slots []db.Slot) bool {
	for _, slot := range slots {
		if slot.Status != db.Failed {
			return false
		}
	}
	return true
}
