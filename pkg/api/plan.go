package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/plan"
)

func planCreated(c *gin.Context, record *db.EpochRecord) {
	c.JSON(http.StatusCreated, okPayload(gin.H{
		"message":      "Received data processed",
		"poolIdBech32": record.PoolIDBech32,
		"epoch":        record.Epoch,
		"epochSlots":   record.EpochSlots,
	}))
}

// postLeaderLog stores a complete leader log. The ticker of the pool can
// be passed as query parameter.
func postLeaderLog(services *Services) func(router *gin.Engine) {
	return func(router *gin.Engine) {
		router.POST(getPath("plan"), func(c *gin.Context) {
			if !authorize(c, services) {
				return
			}
			reader := c.Request.Body
			defer reader.Close()
			leaderLog, err := plan.ParseLeaderLog(reader)
			if err != nil {
				abortWithError(c, err)
				return
			}
			record, err := services.Planner.Submit(c, leaderLog, c.Query("ticker"))
			if err != nil {
				abortWithError(c, err)
				return
			}
			planCreated(c, record)
		})
	}
}

// postSlotUpload stores the slots of the next epoch reported for a pool.
func postSlotUpload(services *Services) func(router *gin.Engine) {
	return func(router *gin.Engine) {
		router.POST(getPath("pools/:pool/epochs"), func(c *gin.Context) {
			if !authorize(c, services) {
				return
			}
			poolID, ok := poolParam(c)
			if !ok {
				return
			}
			reader := c.Request.Body
			defer reader.Close()
			slots, err := plan.ParseSlotUpload(reader)
			if err != nil {
				abortWithError(c, err)
				return
			}
			leaderLog, err := services.Planner.FromSlotUpload(c, poolID, slots, services.now())
			if err != nil {
				log.Warnf("rejected the slot upload of %s: %s", poolID, err.Error())
				abortWithError(c, err)
				return
			}
			record, err := services.Planner.Submit(c, leaderLog, "")
			if err != nil {
				abortWithError(c, err)
				return
			}
			planCreated(c, record)
		})
	}
}
