package plan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/notify"
)

// NearBorderWarning is the comment of planned slots close to the start of
// their epoch.
const NearBorderWarning = "[WARNING] Close to Epoch border"

// plannerMailSource is the source named in operator mails of the planner.
const plannerMailSource = "slot-planner"

// UploadedPayload is the payload of notify.EpochSlotsUploaded
// notifications.
type UploadedPayload struct {
	PoolID         string  `json:"poolId"`
	Epoch          uint    `json:"epoch"`
	EpochSlots     uint    `json:"epochSlots"`
	MaxPerformance float64 `json:"maxPerformance"`
}

// AlertPayload is the payload of notify.Alert notifications.
type AlertPayload struct {
	Message string `json:"message"`
}

// Planner turns leader logs into epoch records and registers their slots
// and rewards as outstanding work.
type Planner struct {
	backend chain.Backend
	db      db.DB
	emitter notify.Emitter
	mailer  notify.Mailer
	genesis chain.Genesis
	// NearBorderThreshold is the number of slots into an epoch, up to which
	// a planned slot gets a warning.
	NearBorderThreshold uint
}

// NewPlanner creates a new planner storing epoch records in the given
// database.
func NewPlanner(backend chain.Backend, idb db.DB, emitter notify.Emitter, mailer notify.Mailer,
	genesis chain.Genesis) *Planner {
	return &Planner{
		backend:             backend,
		db:                  idb,
		emitter:             emitter,
		mailer:              mailer,
		genesis:             genesis,
		NearBorderThreshold: 1000,
	}
}

// Submit stores the given leader log as epoch record of its pool. Slots of
// an existing record, which have already been resolved, are kept. All
// planned slots are registered as upcoming and the rewards of the epoch as
// missing. The ticker is optional, the registered one is looked up, if it
// is empty.
//
// An error wrapping InvalidError will be returned, if the leader log is
// incomplete. An error will also be returned, if the record couldn't be
// stored.
func (p *Planner) Submit(ctx context.Context, leaderLog *LeaderLog, ticker string) (*db.EpochRecord, error) {
	err := leaderLog.Validate()
	if err != nil {
		return nil, err
	}
	hexID, bech32ID, err := NormalizePoolID(leaderLog.PoolID)
	if err != nil {
		return nil, err
	}
	planned := leaderLog.toRecord(hexID, bech32ID, p.NearBorderThreshold)
	if ticker == "" {
		metadata, err := p.backend.GetPoolMetadata(ctx, bech32ID)
		if err == nil {
			ticker = metadata.Ticker
		} else {
			log.Warnf("couldn't look up the ticker of %s: %s", bech32ID, err.Error())
		}
	}
	stakeAddress := p.lookUpStakeAddress(ctx, planned, ticker)

	var stored *db.EpochRecord
	err = p.db.Update(ctx, func(tx db.Tx) error {
		pool, err := tx.GetPool(ctx, bech32ID)
		if errors.Is(err, db.NotFoundError) {
			pool = &db.Pool{PoolIDBech32: bech32ID}
		} else if err != nil {
			return err
		}
		pool.PoolID = hexID
		if ticker != "" {
			pool.Ticker = strings.ToUpper(ticker)
		}
		if stakeAddress != "" {
			pool.StakeAddress = stakeAddress
		}
		err = tx.PutPool(ctx, pool)
		if err != nil {
			return err
		}
		existing, err := tx.GetEpochRecord(ctx, planned.Ref())
		if err != nil && !errors.Is(err, db.NotFoundError) {
			return err
		}
		record := mergeRecord(planned, existing)
		err = tx.PutEpochRecord(ctx, record)
		if err != nil {
			return err
		}
		err = tx.ReplaceUpcomingSlots(ctx, record.Ref(), record.PlannedSlots())
		if err != nil {
			return err
		}
		if record.PoolRewards == nil {
			err = tx.PutMissingRewards(ctx, record.Ref())
			if err != nil {
				return err
			}
		}
		stored = record
		return nil
	})
	if err != nil {
		log.Errorf("couldn't store the leader log of %s: %s", planned.Ref(), err.Error())
		return nil, err
	}
	log.Infof("stored the leader log of %s with %d slots", stored.Ref(), len(stored.AssignedSlots))
	p.emitter.Emit(ctx, notify.EpochSlotsUploaded, notify.ToPool(bech32ID), UploadedPayload{
		PoolID:         bech32ID,
		Epoch:          stored.Epoch,
		EpochSlots:     stored.EpochSlots,
		MaxPerformance: stored.MaxPerformance,
	})
	return stored, nil
}

// lookUpStakeAddress fetches the reward account of the pool. The operators
// are mailed and the pool is alerted, if it couldn't be fetched. An empty
// address is returned in this case.
func (p *Planner) lookUpStakeAddress(ctx context.Context, record *db.EpochRecord, ticker string) string {
	info, err := p.backend.GetPoolInfo(ctx, record.PoolIDBech32)
	if err == nil && info.RewardAccount != "" {
		return info.RewardAccount
	}
	reason := "the pool has no reward account"
	if err != nil {
		reason = err.Error()
	}
	log.Warnf("couldn't look up the stake address of %s: %s", record.PoolIDBech32, reason)
	details := strings.Join([]string{
		"PoolId: " + record.PoolIDBech32,
		"Pool ticker: " + ticker,
		fmt.Sprintf("Epoch: %d", record.Epoch),
		"Reason: " + reason,
	}, ", ")
	p.mailer.SendMail(fmt.Sprintf("FAILED stake address lookup: %d/%s", record.Epoch, record.PoolIDBech32),
		"<span>"+details+"</span>", plannerMailSource, details)
	p.emitter.Emit(ctx, notify.Alert, notify.ToPool(record.PoolIDBech32), AlertPayload{
		Message: fmt.Sprintf("The stake address of the pool couldn't be determined, the rewards of epoch %d "+
			"are aggregated once it is known.", record.Epoch),
	})
	return ""
}

// FromSlotUpload creates the leader log of the next epoch out of the given
// uploaded slots. The performance figures are computed from the current
// stake of the pool.
//
// An error wrapping InvalidError will be returned, if the slots don't
// belong to exactly the epoch after the one running at the given time. An
// error will also be returned, if the stake of the pool couldn't be
// fetched.
func (p *Planner) FromSlotUpload(ctx context.Context, poolID string, slots []UploadedSlot,
	now time.Time) (*LeaderLog, error) {
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: no slot data received", InvalidError)
	}
	sorted := make([]UploadedSlot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return *sorted[i].SlotNumber < *sorted[j].SlotNumber
	})
	first := p.genesis.EpochOfSlot(*sorted[0].SlotNumber)
	last := p.genesis.EpochOfSlot(*sorted[len(sorted)-1].SlotNumber)
	if first != last {
		return nil, fmt.Errorf("%w: the slots span the epochs %d to %d", InvalidError, first, last)
	}
	next := p.genesis.EpochAt(now) + 1
	if first != next {
		return nil, fmt.Errorf("%w: the slots belong to epoch %d, but only epoch %d is accepted",
			InvalidError, first, next)
	}
	info, err := p.backend.GetPoolInfo(ctx, poolID)
	if err != nil {
		return nil, err
	}
	ideal := info.ActiveSize * float64(p.genesis.SlotsPerEpoch)
	maxPerformance := 0.0
	if ideal > 0 {
		maxPerformance = float64(len(sorted)) / ideal * 100
	}
	totalActiveStake := 0.0
	if info.ActiveSize > 0 {
		totalActiveStake = float64(info.ActiveStake) / info.ActiveSize
	}
	assigned := make([]AssignedSlot, 0, len(sorted))
	for i, slot := range sorted {
		assigned = append(assigned, AssignedSlot{
			No:          ptr(uint(i + 1)),
			Slot:        ptr(*slot.SlotNumber),
			SlotInEpoch: ptr(p.genesis.SlotInEpoch(*slot.SlotNumber)),
			At:          ptr(slot.SlotTime.UTC()),
		})
	}
	id := info.HexID
	if id == "" {
		id = poolID
	}
	return &LeaderLog{
		PoolID:           id,
		Epoch:            ptr(first),
		EpochSlots:       ptr(uint(len(assigned))),
		EpochSlotsIdeal:  ptr(ideal),
		MaxPerformance:   ptr(maxPerformance),
		ActiveStake:      ptr(float64(info.ActiveStake)),
		TotalActiveStake: ptr(totalActiveStake),
		AssignedSlots:    assigned,
	}, nil
}

// toRecord converts the validated leader log into an epoch record, whose
// slots are all planned.
func (l *LeaderLog) toRecord(hexID, bech32ID string, threshold uint) *db.EpochRecord {
	record := &db.EpochRecord{
		PoolID:           hexID,
		PoolIDBech32:     bech32ID,
		Epoch:            *l.Epoch,
		EpochSlots:       *l.EpochSlots,
		EpochSlotsIdeal:  *l.EpochSlotsIdeal,
		MaxPerformance:   *l.MaxPerformance,
		ActiveStake:      lovelace(*l.ActiveStake),
		TotalActiveStake: lovelace(*l.TotalActiveStake),
		AssignedSlots:    make([]db.Slot, 0, len(l.AssignedSlots)),
		Status:           db.EpochStatus{AssignedSlots: map[uint64]db.SlotRetryState{}},
	}
	for _, assigned := range l.AssignedSlots {
		slot := db.Slot{
			No:          *assigned.No,
			Slot:        *assigned.Slot,
			SlotInEpoch: *assigned.SlotInEpoch,
			At:          assigned.At.UTC(),
			Epoch:       record.Epoch,
			Status:      db.Planned,
		}
		if slot.SlotInEpoch <= threshold {
			slot.Comment = NearBorderWarning
		}
		record.AssignedSlots = append(record.AssignedSlots, slot)
	}
	record.SortSlots()
	return record
}

// mergeRecord returns a copy of the planned record, which keeps the
// outcome of the existing record. Resolved slots, retry states of slots
// still planned, comments and settled rewards are taken over.
func mergeRecord(planned *db.EpochRecord, existing *db.EpochRecord) *db.EpochRecord {
	record := *planned
	record.AssignedSlots = make([]db.Slot, len(planned.AssignedSlots))
	copy(record.AssignedSlots, planned.AssignedSlots)
	record.Status = db.EpochStatus{AssignedSlots: map[uint64]db.SlotRetryState{}}
	if existing == nil {
		return &record
	}
	known := make(map[uint64]db.Slot, len(existing.AssignedSlots))
	for _, slot := range existing.AssignedSlots {
		known[slot.Slot] = slot
	}
	for i, slot := range record.AssignedSlots {
		previous, found := known[slot.Slot]
		if !found {
			continue
		}
		if previous.Resolved() {
			previous.No = slot.No
			record.AssignedSlots[i] = previous
			continue
		}
		if previous.Comment != "" {
			record.AssignedSlots[i].Comment = previous.Comment
		}
		if state, found := existing.Status.AssignedSlots[slot.Slot]; found {
			record.Status.AssignedSlots[slot.Slot] = state
		}
	}
	if existing.PoolRewards != nil {
		rewards := *existing.PoolRewards
		record.PoolRewards = &rewards
	}
	record.SortSlots()
	record.PruneStatus()
	return &record
}
