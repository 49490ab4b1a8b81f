package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/plan"
)

func okPayload(v interface{}) gin.H {
	if v == nil {
		return gin.H{
			"status":    "ok",
			"timestamp": time.Now(),
		}
	}
	return gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
		"response":  v,
	}
}

func errorPayload(message string) gin.H {
	return gin.H{
		"status":    "error",
		"message":   message,
		"timestamp": time.Now(),
	}
}

// statusOf maps the given error to the HTTP status code reported to the
// caller.
func statusOf(err error) int {
	switch {
	case errors.Is(err, plan.ReadError), errors.Is(err, plan.ParsingError), errors.Is(err, plan.InvalidError):
		return http.StatusBadRequest
	case errors.Is(err, db.NotFoundError):
		return http.StatusNotFound
	case errors.Is(err, chain.QueryError):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusOf(err), errorPayload(err.Error()))
}

// authorize checks the basic authentication of the request. The request is
// aborted and false is returned, if it isn't authorized.
func authorize(c *gin.Context, services *Services) bool {
	username, password, ok := c.Request.BasicAuth()
	if !ok || services.Auth == nil || !services.Auth.CheckAuthentication(username, password) {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			errorPayload("you aren't authorized to call this method"))
		return false
	}
	return true
}

// poolParam returns the bech32 id of the pool given as path parameter.
func poolParam(c *gin.Context) (string, bool) {
	_, bech32ID, err := plan.NormalizePoolID(c.Param("pool"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorPayload("pool id couldn't be parsed"))
		return "", false
	}
	return bech32ID, true
}

// uintParam parses the path parameter with the given name.
func uintParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorPayload(name+" couldn't be parsed"))
		return 0, false
	}
	return uint(value), true
}
