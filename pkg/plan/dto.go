package plan

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// LeaderLog is the list of slots assigned to a certain pool for a certain
// epoch together with the performance figures of the pool.
type LeaderLog struct {
	// PoolID is the id of the pool in hex or bech32 format.
	PoolID string `json:"poolId" validate:"required"`
	// Epoch is the epoch for which the leader log was created.
	Epoch *uint `json:"epoch" validate:"required"`
	// EpochSlots is the number of assigned slots.
	EpochSlots *uint `json:"epochSlots" validate:"required"`
	// EpochSlotsIdeal states the expected number of slots based on the
	// active stake of the pool.
	EpochSlotsIdeal *float64 `json:"epochSlotsIdeal" validate:"required"`
	// MaxPerformance relates the assigned number of slots to the expected
	// one in percent.
	MaxPerformance   *float64       `json:"maxPerformance" validate:"required"`
	ActiveStake      *float64       `json:"activeStake" validate:"required"`
	TotalActiveStake *float64       `json:"totalActiveStake" validate:"required"`
	AssignedSlots    []AssignedSlot `json:"assignedSlots" validate:"required,dive"`
}

// AssignedSlot is a slot that has been assigned to a pool.
type AssignedSlot struct {
	// No is the number of the slot, which is unique for the epoch.
	No *uint `json:"no" validate:"required"`
	// Slot is the slot number counted from the beginning of the chain.
	Slot *uint64 `json:"slot" validate:"required"`
	// SlotInEpoch is the slot number counted from the beginning of the epoch.
	SlotInEpoch *uint `json:"slotInEpoch" validate:"required"`
	// At is the starting time of the slot.
	At *time.Time `json:"at" validate:"required"`
}

// UploadedSlot is a slot of the next epoch as it is reported by a pool
// operator.
type UploadedSlot struct {
	SlotNumber *uint64    `json:"slotNumber" validate:"required"`
	SlotTime   *time.Time `json:"slotTime" validate:"required"`
}

var (
	// ReadError is returned, when the leader log couldn't be read while parsing.
	ReadError = errors.New("couldn't read the leader log")
	// ParsingError is returned, when an error occurred during the unmarshalling of the leader log.
	ParsingError = errors.New("couldn't parse the leader log properly")
	// InvalidError is returned, when a required field of the leader log is missing or invalid.
	InvalidError = errors.New("the leader log is invalid")
)

var validate = validator.New()

// ParseLeaderLog parses the content of the given reader into a leader log
// object and validates it. If the parsing fails, then a corresponding error
// will be returned. Otherwise, the parsed leader log is returned.
func ParseLeaderLog(reader io.Reader) (*LeaderLog, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, ReadError
	}
	var leaderLog LeaderLog
	err = json.Unmarshal(data, &leaderLog)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ParsingError, err)
	}
	err = leaderLog.Validate()
	if err != nil {
		return nil, err
	}
	return &leaderLog, nil
}

// Validate checks that all required fields of the leader log and its slots
// are present. Slot numbers and chain slots must be unique.
func (l *LeaderLog) Validate() error {
	err := validate.Struct(l)
	if err != nil {
		return fmt.Errorf("%w: %v", InvalidError, err)
	}
	numbers := mapset.NewThreadUnsafeSet[uint]()
	slots := mapset.NewThreadUnsafeSet[uint64]()
	for _, slot := range l.AssignedSlots {
		if !numbers.Add(*slot.No) {
			return fmt.Errorf("%w: slot number %d is assigned twice", InvalidError, *slot.No)
		}
		if !slots.Add(*slot.Slot) {
			return fmt.Errorf("%w: slot %d is assigned twice", InvalidError, *slot.Slot)
		}
	}
	return nil
}

// ParseSlotUpload parses the list of uploaded slots in the given reader.
// An error will be returned, if the list is empty or a slot misses a field.
func ParseSlotUpload(reader io.Reader) ([]UploadedSlot, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, ReadError
	}
	var slots []UploadedSlot
	err = json.Unmarshal(data, &slots)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ParsingError, err)
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: no slot data received", InvalidError)
	}
	for i := range slots {
		err = validate.Struct(&slots[i])
		if err != nil {
			return nil, fmt.Errorf("%w: slot %d: %v", InvalidError, i, err)
		}
	}
	return slots, nil
}

func ptr[T any](value T) *T {
	return &value
}

// lovelace rounds the given stake to whole lovelace.
func lovelace(value float64) uint64 {
	if value <= 0 || math.IsNaN(value) {
		return 0
	}
	return uint64(math.Round(value))
}
