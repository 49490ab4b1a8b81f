package status

import (
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
)

// NewBlockPayload is the payload of a notify.NewBlock notification.
type NewBlockPayload struct {
	PoolID       string          `json:"poolId"`
	Slot         uint64          `json:"slot"`
	Block        *db.Amount      `json:"block,omitempty"`
	SlotNo       uint            `json:"slotNo"`
	Status       db.SlotStatus   `json:"status"`
	Comment      string          `json:"comment"`
	BlockURL     string          `json:"blockUrl,omitempty"`
	TxCount      *db.Amount      `json:"tx_count,omitempty"`
	Fees         *db.Amount      `json:"fees,omitempty"`
	FailedReason db.FailedReason `json:"failedReason,omitempty"`
	Epoch        uint            `json:"epoch"`
	EpochData    *db.EpochRecord `json:"epochData"`
}

func newBlockPayload(record *db.EpochRecord, slot db.Slot) *NewBlockPayload {
	return &NewBlockPayload{
		PoolID:       record.PoolIDBech32,
		Slot:         slot.Slot,
		Block:        slot.Block,
		SlotNo:       slot.No,
		Status:       slot.Status,
		Comment:      slot.Comment,
		BlockURL:     slot.BlockURL,
		TxCount:      slot.TxCount,
		Fees:         slot.Fees,
		FailedReason: slot.FailedReason,
		Epoch:        slot.Epoch,
		EpochData:    record,
	}
}
