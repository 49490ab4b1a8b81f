package status

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
)

// Work is the due work of a single epoch record.
type Work struct {
	Ref db.EpochRef
	// Slots are the due upcoming slots referencing the record.
	Slots []uint64
	// Rewards is true, if the pool rewards of the record are due.
	Rewards bool
}

// Partition splits the work index into work, which is due for the given
// latest slot and epoch, and work, which isn't.
type Partition struct {
	// Due lists the due work per distinct epoch record ordered by pool and
	// epoch.
	Due []Work
	// PendingSlots is the number of upcoming slots, which aren't due yet.
	PendingSlots int
	// PendingRewards is the number of epochs, whose rewards aren't due yet.
	PendingRewards int
}

// PartitionIndex partitions the given work index. A slot is due, if its
// number is smaller than the latest slot. The rewards of an epoch are due,
// if the epoch is at least lag epochs older than the latest epoch.
func PartitionIndex(index *db.WorkIndex, latestSlot uint64, latestEpoch, lag uint) *Partition {
	partition := &Partition{}
	dueSlots := map[db.EpochRef][]uint64{}
	slotRefs := mapset.NewThreadUnsafeSet[db.EpochRef]()
	for _, upcoming := range index.UpcomingSlots {
		if upcoming.Slot < latestSlot {
			dueSlots[upcoming.Ref] = append(dueSlots[upcoming.Ref], upcoming.Slot)
			slotRefs.Add(upcoming.Ref)
		} else {
			partition.PendingSlots++
		}
	}
	rewardRefs := mapset.NewThreadUnsafeSet[db.EpochRef]()
	for _, ref := range index.MissingPoolRewards {
		if ref.Epoch+lag <= latestEpoch {
			rewardRefs.Add(ref)
		} else {
			partition.PendingRewards++
		}
	}
	for _, ref := range slotRefs.Union(rewardRefs).ToSlice() {
		slots := dueSlots[ref]
		sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
		partition.Due = append(partition.Due, Work{
			Ref:     ref,
			Slots:   slots,
			Rewards: rewardRefs.Contains(ref),
		})
	}
	sort.Slice(partition.Due, func(i, j int) bool {
		a, b := partition.Due[i].Ref, partition.Due[j].Ref
		if a.PoolIDBech32 != b.PoolIDBech32 {
			return a.PoolIDBech32 < b.PoolIDBech32
		}
		return a.Epoch < b.Epoch
	})
	return partition
}
