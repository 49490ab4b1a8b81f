package db

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SlotStatus refers to the status of an assigned slot.
type SlotStatus string

const (
	Planned SlotStatus = "planned"
	Minted  SlotStatus = "minted"
	Failed  SlotStatus = "failed"
)

// FailedReason explains, why an assigned slot has failed.
type FailedReason string

const (
	// SlotBattle means that another pool minted the block in this slot.
	SlotBattle FailedReason = "SLOT_BATTLE"
	// NearBorder means that no block could be found for a slot close to the
	// start of the epoch.
	NearBorder FailedReason = "NEAR_BORDER"
	// Other means that no block could be found for the slot.
	Other FailedReason = "OTHER"
)

// NotApplicable is the marker for slot attributes without on-chain value.
const NotApplicable = "N/A"

// Amount is a numeric attribute of a resolved slot. It is either a number
// or explicitly not applicable.
type Amount struct {
	Value uint64
	NA    bool
}

// Known returns an applicable amount with the given value.
func Known(value uint64) *Amount {
	return &Amount{Value: value}
}

// NA returns an amount, which is not applicable.
func NA() *Amount {
	return &Amount{NA: true}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.NA {
		return []byte(strconv.Quote(NotApplicable)), nil
	}
	return []byte(strconv.FormatUint(a.Value, 10)), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == strconv.Quote(NotApplicable) {
		*a = Amount{NA: true}
		return nil
	}
	raw = strings.Trim(raw, `"`)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", string(data), err)
	}
	*a = Amount{Value: value}
	return nil
}

// Slot is a block production opportunity assigned to a pool in an epoch.
type Slot struct {
	// No is the unique number of the slot in the leader log of the epoch.
	No uint `json:"no"`
	// Slot is the slot number counted from the chain`s inception.
	Slot uint64 `json:"slot"`
	// SlotInEpoch is the slot number counted from the start of the epoch.
	SlotInEpoch uint `json:"slotInEpoch"`
	// At is the time at which the slot starts.
	At time.Time `json:"at"`
	// Epoch is the epoch for which the slot has been assigned.
	Epoch uint `json:"epoch"`
	// Status is the current status of the slot.
	Status SlotStatus `json:"status"`
	// Comment is a human readable note about the slot.
	Comment string `json:"comment,omitempty"`
	// FailedReason is only present, if the slot has failed.
	FailedReason FailedReason `json:"failedReason,omitempty"`
	// Block, BlockURL, TxCount and Fees are present, once the slot has
	// been resolved.
	Block    *Amount `json:"block,omitempty"`
	BlockURL string  `json:"blockUrl,omitempty"`
	TxCount  *Amount `json:"tx_count,omitempty"`
	Fees     *Amount `json:"fees,omitempty"`
}

// Resolved returns true, if the outcome of the slot is known.
func (s *Slot) Resolved() bool {
	return s.Status != Planned
}

// SlotRetryState tracks failed queries for a slot, which is still planned.
type SlotRetryState struct {
	FailedCount int `json:"failedCount,omitempty"`
}

// Empty returns true, if the state doesn't carry any information.
func (s SlotRetryState) Empty() bool {
	return s.FailedCount == 0
}

// EpochStatus holds the transient reconciliation state of an epoch record.
type EpochStatus struct {
	// AssignedSlots maps slot numbers to their retry state.
	AssignedSlots map[uint64]SlotRetryState `json:"assignedSlots"`
}

// EpochRecord is the leader log of a pool for one epoch together with the
// outcome of the assigned slots.
type EpochRecord struct {
	PoolID           string      `json:"poolId"`
	PoolIDBech32     string      `json:"poolIdBech32"`
	Epoch            uint        `json:"epoch"`
	EpochSlots       uint        `json:"epochSlots"`
	EpochSlotsIdeal  float64     `json:"epochSlotsIdeal"`
	MaxPerformance   float64     `json:"maxPerformance"`
	ActiveStake      uint64      `json:"activeStake"`
	TotalActiveStake uint64      `json:"totalActiveStake"`
	AssignedSlots    []Slot      `json:"assignedSlots"`
	Status           EpochStatus `json:"status"`
	PoolRewards      *uint64     `json:"poolRewards,omitempty"`
}

// Ref returns the reference of this epoch record.
func (r *EpochRecord) Ref() EpochRef {
	return EpochRef{PoolIDBech32: r.PoolIDBech32, Epoch: r.Epoch}
}

// SortSlots sorts the assigned slots by their number.
func (r *EpochRecord) SortSlots() {
	sort.SliceStable(r.AssignedSlots, func(i, j int) bool {
		return r.AssignedSlots[i].No < r.AssignedSlots[j].No
	})
}

// PruneStatus removes all empty retry states.
func (r *EpochRecord) PruneStatus() {
	if r.Status.AssignedSlots == nil {
		r.Status.AssignedSlots = map[uint64]SlotRetryState{}
		return
	}
	for slot, state := range r.Status.AssignedSlots {
		if state.Empty() {
			delete(r.Status.AssignedSlots, slot)
		}
	}
}

// PlannedSlots returns the slot numbers of all slots that are still planned.
func (r *EpochRecord) PlannedSlots() []uint64 {
	slots := make([]uint64, 0, len(r.AssignedSlots))
	for _, slot := range r.AssignedSlots {
		if !slot.Resolved() {
			slots = append(slots, slot.Slot)
		}
	}
	return slots
}

// EpochRef references the epoch record of a pool.
type EpochRef struct {
	PoolIDBech32 string
	Epoch        uint
}

const rewardsKeySeparator = "_EPOCH_"

// String returns the document path of the referenced record.
func (r EpochRef) String() string {
	return fmt.Sprintf("poolData/%s/epochs/%d", r.PoolIDBech32, r.Epoch)
}

// RewardsKey returns the key under which missing pool rewards of the
// referenced epoch are tracked.
func (r EpochRef) RewardsKey() string {
	return r.PoolIDBech32 + rewardsKeySeparator + strconv.FormatUint(uint64(r.Epoch), 10)
}

// ParseRewardsKey parses a key created by EpochRef.RewardsKey.
func ParseRewardsKey(key string) (EpochRef, error) {
	i := strings.LastIndex(key, rewardsKeySeparator)
	if i <= 0 {
		return EpochRef{}, fmt.Errorf("malformed rewards key '%s'", key)
	}
	epoch, err := strconv.ParseUint(key[i+len(rewardsKeySeparator):], 10, 32)
	if err != nil {
		return EpochRef{}, fmt.Errorf("malformed epoch in rewards key '%s': %w", key, err)
	}
	return EpochRef{PoolIDBech32: key[:i], Epoch: uint(epoch)}, nil
}

// UpcomingSlot is an unresolved slot together with the epoch record
// owning it. Two pools can be assigned to the same slot, hence the slot
// number alone doesn't identify an entry.
type UpcomingSlot struct {
	Slot uint64
	Ref  EpochRef
}

// WorkIndex lists the outstanding reconciliation work.
type WorkIndex struct {
	// UpcomingSlots lists every unresolved slot.
	UpcomingSlots []UpcomingSlot
	// MissingPoolRewards maps rewards keys of epochs, whose rewards haven't
	// been aggregated yet, to their epoch record.
	MissingPoolRewards map[string]EpochRef
}

// Pool is the parent record of all epoch records of a pool.
type Pool struct {
	PoolIDBech32 string `json:"poolIdBech32"`
	PoolID       string `json:"poolId"`
	Ticker       string `json:"ticker"`
	// StakeAddress is the reward account of the pool. It is empty, if it
	// couldn't be determined yet.
	StakeAddress string `json:"poolStakeAddress"`
}

// EpochInfo is the latest known epoch of the chain.
type EpochInfo struct {
	Epoch      uint   `json:"epoch"`
	StartTime  int64  `json:"start_time"`
	EndTime    int64  `json:"end_time"`
	BlockCount uint64 `json:"block_count"`
	TxCount    uint64 `json:"tx_count"`
}
