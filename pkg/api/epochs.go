package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
)

// commentRequest is the body of a comment edit.
type commentRequest struct {
	Comment string `json:"comment"`
}

func getEpochRecords(services *Services) func(router *gin.Engine) {
	return func(router *gin.Engine) {
		router.GET(getPath("pools/:pool/epochs"), func(c *gin.Context) {
			poolID, ok := poolParam(c)
			if !ok {
				return
			}
			records, err := services.DB.GetEpochRecords(c, poolID)
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, okPayload(records))
		})
	}
}

func getEpochRecord(services *Services) func(router *gin.Engine) {
	return func(router *gin.Engine) {
		router.GET(getPath("pools/:pool/epochs/:epoch"), func(c *gin.Context) {
			poolID, ok := poolParam(c)
			if !ok {
				return
			}
			epoch, ok := uintParam(c, "epoch")
			if !ok {
				return
			}
			record, err := services.DB.GetEpochRecord(c, db.EpochRef{PoolIDBech32: poolID, Epoch: epoch})
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, okPayload(record))
		})
	}
}

// postSlotComment replaces the comment of a slot. The status of the slot
// isn't touched.
func postSlotComment(services *Services) func(router *gin.Engine) {
	return func(router *gin.Engine) {
		router.POST(getPath("pools/:pool/epochs/:epoch/comment/:no"), func(c *gin.Context) {
			if !authorize(c, services) {
				return
			}
			poolID, ok := poolParam(c)
			if !ok {
				return
			}
			epoch, ok := uintParam(c, "epoch")
			if !ok {
				return
			}
			no, ok := uintParam(c, "no")
			if !ok {
				return
			}
			var request commentRequest
			if err := c.ShouldBindJSON(&request); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, errorPayload("comment couldn't be parsed"))
				return
			}
			ref := db.EpochRef{PoolIDBech32: poolID, Epoch: epoch}
			var updated db.Slot
			err := services.DB.Update(c, func(tx db.Tx) error {
				record, err := tx.GetEpochRecord(c, ref)
				if err != nil {
					return err
				}
				for i := range record.AssignedSlots {
					if record.AssignedSlots[i].No == no {
						record.AssignedSlots[i].Comment = request.Comment
						updated = record.AssignedSlots[i]
						return tx.PutEpochRecord(c, record)
					}
				}
				return fmt.Errorf("%w: slot %d of %s", db.NotFoundError, no, ref)
			})
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, okPayload(updated))
		})
	}
}
