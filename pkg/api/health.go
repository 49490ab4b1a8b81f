package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// heartbeat returns just an "ok" status object in JSON format. It could be used
// to monitor the reachability of this application.
func heartbeat(router *gin.Engine) {
	router.GET(getPath("heartbeat"), func(c *gin.Context) {
		c.JSON(http.StatusOK, okPayload(nil))
	})
}

// getStatus reports the latest epoch, the progress of the status manager
// and the amount of outstanding work.
func getStatus(services *Services) func(router *gin.Engine) {
	return func(router *gin.Engine) {
		router.GET(getPath("status"), func(c *gin.Context) {
			latestEpoch, err := services.DB.GetLatestEpoch(c)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorPayload(err.Error()))
				return
			}
			index, err := services.DB.GetWorkIndex(c)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorPayload(err.Error()))
				return
			}
			response := gin.H{
				"latestEpoch":    latestEpoch,
				"upcomingSlots":  len(index.UpcomingSlots),
				"missingRewards": len(index.MissingPoolRewards),
			}
			if services.Status != nil {
				response["state"] = services.Status.State().String()
				response["lastTick"] = services.Status.LastReport()
				if tip := services.Status.GetTip(); tip != nil {
					response["tip"] = gin.H{
						"epoch":       tip.Epoch,
						"slot":        tip.Slot,
						"slotInEpoch": tip.SlotInEpoch,
						"height":      tip.Height,
						"hash":        tip.Hash,
					}
				}
			}
			c.JSON(http.StatusOK, okPayload(response))
		})
	}
}
