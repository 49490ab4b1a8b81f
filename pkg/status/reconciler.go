package status

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
)

// Comments of resolved slots.
const (
	commentNearBorder = "Too close to epoch border"
	commentOrphaned   = "Orphaned block"
	commentSlotBattle = "Slot battle"
)

// Reconciler resolves the outcome of assigned slots, whose time has passed.
type Reconciler struct {
	backend chain.Backend
	// NearBorderThreshold is the number of slots into an epoch, up to which
	// a slot without block is considered to be too close to the epoch
	// border.
	NearBorderThreshold uint
	// RetryBudget is the number of failed queries for a slot, which are
	// tolerated before the slot is considered to be failed.
	RetryBudget int
	// ExplorerURL is the prefix of links to minted blocks.
	ExplorerURL string
}

// NewReconciler creates a new reconciler querying the given backend with
// the default settings.
func NewReconciler(backend chain.Backend) *Reconciler {
	return &Reconciler{
		backend:             backend,
		NearBorderThreshold: 1000,
		RetryBudget:         1,
		ExplorerURL:         "https://cardanoscan.io/block/",
	}
}

// SlotUpdate is the outcome of reconciling the slots of an epoch record.
type SlotUpdate struct {
	Ref db.EpochRef
	// Resolved maps slot numbers to the resolved slot.
	Resolved map[uint64]db.Slot
	// RetryStates maps the numbers of visited slots to their new retry
	// state. An empty state clears the retry state.
	RetryStates map[uint64]db.SlotRetryState
	// Mail is the set of slot numbers, whose failure has to be reported to
	// the operators.
	Mail map[uint64]bool
	// Visited is the number of slots, which have been queried.
	Visited int
}

// Changed returns true, if this update changes the epoch record.
func (u *SlotUpdate) Changed() bool {
	return u != nil && (len(u.Resolved) > 0 || len(u.RetryStates) > 0)
}

// Apply applies this update to the given record. An outcome is only
// applied to a slot, which is still planned, and retry states are only
// kept for planned slots. The slots, which transitioned, are returned in
// the order of their number in the leader log.
func (u *SlotUpdate) Apply(record *db.EpochRecord) []db.Slot {
	if record.Status.AssignedSlots == nil {
		record.Status.AssignedSlots = map[uint64]db.SlotRetryState{}
	}
	record.SortSlots()
	var applied []db.Slot
	for i, slot := range record.AssignedSlots {
		if slot.Resolved() {
			delete(record.Status.AssignedSlots, slot.Slot)
			continue
		}
		if resolved, found := u.Resolved[slot.Slot]; found {
			record.AssignedSlots[i] = resolved
			delete(record.Status.AssignedSlots, slot.Slot)
			applied = append(applied, resolved)
			continue
		}
		if state, found := u.RetryStates[slot.Slot]; found {
			record.Status.AssignedSlots[slot.Slot] = state
		}
	}
	record.PruneStatus()
	return applied
}

// Reconcile queries the outcome of every planned slot of the given record,
// whose number is smaller than the given latest slot. The record isn't
// modified, the outcome is returned as update instead.
func (r *Reconciler) Reconcile(ctx context.Context, record *db.EpochRecord, latestSlot uint64) *SlotUpdate {
	update := &SlotUpdate{
		Ref:         record.Ref(),
		Resolved:    map[uint64]db.Slot{},
		RetryStates: map[uint64]db.SlotRetryState{},
		Mail:        map[uint64]bool{},
	}
	for _, slot := range record.AssignedSlots {
		if slot.Resolved() || slot.Slot >= latestSlot {
			continue
		}
		if ctx.Err() != nil {
			log.Warnf("reconciliation of %s has been interrupted", update.Ref)
			break
		}
		update.Visited++
		block, err := r.backend.GetBlockBySlot(ctx, slot.Slot)
		if err == nil && block.SlotLeader == "" {
			err = fmt.Errorf("block in slot %d has no slot leader", slot.Slot)
		}
		if err != nil {
			r.onFailedQuery(update, slot, record.Status.AssignedSlots[slot.Slot], err)
			continue
		}
		update.RetryStates[slot.Slot] = db.SlotRetryState{}
		if r.isOwnBlock(block, record) {
			update.Resolved[slot.Slot] = r.minted(slot, block)
			log.Infof("slot %d of %s has been minted in block %d", slot.Slot, update.Ref, block.Height)
		} else {
			update.Resolved[slot.Slot] = r.lostSlotBattle(ctx, slot, block)
			log.Infof("slot %d of %s has been lost to %s", slot.Slot, update.Ref, block.SlotLeader)
		}
	}
	return update
}

// onFailedQuery applies the retry escalation to a slot, whose block
// couldn't be queried. The slot stays planned until the retry budget is
// exhausted, then it is considered to be failed.
func (r *Reconciler) onFailedQuery(update *SlotUpdate, slot db.Slot, state db.SlotRetryState, err error) {
	if state.FailedCount < r.RetryBudget {
		state.FailedCount++
		update.RetryStates[slot.Slot] = state
		log.Warnf("querying the block of slot %d of %s failed (%d/%d): %s", slot.Slot, update.Ref,
			state.FailedCount, r.RetryBudget, err.Error())
		return
	}
	update.RetryStates[slot.Slot] = db.SlotRetryState{}
	slot.Status = db.Failed
	if slot.SlotInEpoch <= r.NearBorderThreshold {
		slot.FailedReason = db.NearBorder
		slot.Comment = commentNearBorder
	} else {
		slot.FailedReason = db.Other
		slot.Comment = commentOrphaned
	}
	slot.Block = db.NA()
	slot.BlockURL = db.NotApplicable
	slot.TxCount = db.NA()
	slot.Fees = db.NA()
	update.Resolved[slot.Slot] = slot
	update.Mail[slot.Slot] = true
	log.Errorf("slot %d of %s failed with reason %s: %s", slot.Slot, update.Ref, slot.FailedReason,
		err.Error())
}

func (r *Reconciler) isOwnBlock(block *chain.Block, record *db.EpochRecord) bool {
	return block.SlotLeader == record.PoolIDBech32 || (record.PoolID != "" && block.SlotLeader == record.PoolID)
}

func (r *Reconciler) withChainData(slot db.Slot, block *chain.Block) db.Slot {
	slot.Block = db.Known(block.Height)
	slot.BlockURL = r.ExplorerURL + strconv.FormatUint(block.Height, 10)
	slot.TxCount = db.Known(block.TxCount)
	slot.Fees = db.Known(block.Fees)
	return slot
}

func (r *Reconciler) minted(slot db.Slot, block *chain.Block) db.Slot {
	slot = r.withChainData(slot, block)
	slot.Status = db.Minted
	slot.FailedReason = ""
	slot.Comment = ""
	return slot
}

// lostSlotBattle marks the slot as lost to the leader of the given block.
// The comment names the ticker of the winner, if its metadata could be
// fetched.
func (r *Reconciler) lostSlotBattle(ctx context.Context, slot db.Slot, block *chain.Block) db.Slot {
	slot = r.withChainData(slot, block)
	slot.Status = db.Failed
	slot.FailedReason = db.SlotBattle
	pool, err := r.backend.GetPoolMetadata(ctx, block.SlotLeader)
	switch {
	case err != nil:
		log.Warnf("couldn't fetch the metadata of slot leader %s: %s", block.SlotLeader, err.Error())
		slot.Comment = commentSlotBattle
	case pool.Ticker == "":
		slot.Comment = commentSlotBattle + " (lost to private pool)"
	default:
		slot.Comment = fmt.Sprintf("%s (lost to %s)", commentSlotBattle, strings.ToUpper(pool.Ticker))
	}
	return slot
}
