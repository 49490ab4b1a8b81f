package logging

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// InitLogging sets the level of the standard logger to the given level.
// The format is either "text" or "json". An error will be returned, if the
// level or the format is unknown.
func InitLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		return fmt.Errorf("unknown logging format '%s'", format)
	}
	log.SetLevel(lvl)
	return nil
}

// GinLoggingHook logs every request handled by gin. Scrapes of the metrics
// endpoint are only logged at debug level.
func GinLoggingHook() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		entry := log.WithFields(log.Fields{
			"client_ip": c.ClientIP(),
			"duration":  duration,
			"method":    c.Request.Method,
			"path":      c.Request.RequestURI,
			"status":    c.Writer.Status(),
		})

		switch {
		case c.Writer.Status() >= 500:
			entry.Error(c.Errors.String())
		case c.FullPath() == "/metrics":
			entry.Debug("")
		default:
			entry.Info("")
		}
	}
}
