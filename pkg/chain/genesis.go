package chain

import "time"

// Genesis holds the parameters needed to translate between slots, epochs
// and wall-clock time of a Shelley-era network.
type Genesis struct {
	// SlotsPerEpoch is the length of an epoch in slots.
	SlotsPerEpoch uint64
	// EpochOffset is the first epoch of the Shelley era.
	EpochOffset uint
	// SlotOffset is the absolute slot number at which EpochOffset starts.
	SlotOffset uint64
	// TimeOffset is the Unix time in seconds at which EpochOffset starts.
	TimeOffset int64
}

// Mainnet is the genesis of the Cardano mainnet.
var Mainnet = Genesis{
	SlotsPerEpoch: 432000,
	EpochOffset:   208,
	SlotOffset:    4492800,
	TimeOffset:    1596059091,
}

// EpochOfSlot returns the epoch to which the given absolute slot belongs.
func (g Genesis) EpochOfSlot(slot uint64) uint {
	if slot < g.SlotOffset {
		return g.EpochOffset
	}
	return uint((slot-g.SlotOffset)/g.SlotsPerEpoch) + g.EpochOffset
}

// SlotInEpoch returns the offset of the given absolute slot within its
// epoch.
func (g Genesis) SlotInEpoch(slot uint64) uint {
	if slot < g.SlotOffset {
		return 0
	}
	return uint((slot - g.SlotOffset) % g.SlotsPerEpoch)
}

// EpochAt returns the epoch that is running at the given time.
func (g Genesis) EpochAt(t time.Time) uint {
	elapsed := t.Unix() - g.TimeOffset
	if elapsed < 0 {
		return g.EpochOffset
	}
	return uint(uint64(elapsed)/g.SlotsPerEpoch) + g.EpochOffset
}

// EpochStart returns the time at which the given epoch starts.
func (g Genesis) EpochStart(epoch uint) time.Time {
	if epoch < g.EpochOffset {
		epoch = g.EpochOffset
	}
	seconds := int64(uint64(epoch-g.EpochOffset) * g.SlotsPerEpoch)
	return time.Unix(g.TimeOffset+seconds, 0).UTC()
}
