package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/auth"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/logging"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/plan"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/status"
)

const RootPath = "stakepool"

// StatusProvider exposes the progress of the status manager.
type StatusProvider interface {
	State() status.State
	GetTip() *chain.Tip
	LastReport() *status.TickReport
}

// Services are the components the API is serving.
type Services struct {
	DB      db.DB
	Planner *plan.Planner
	Status  StatusProvider
	Auth    auth.Authenticator
	// Now returns the current time. time.Now is used, if it is nil.
	Now func() time.Time
}

func (s *Services) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// getPath assembles the path for api calls given the relative path.
// This functions returns the complete path that can be passed to the
// gin framework.
func getPath(relativePath string) string {
	return fmt.Sprintf("/%s/%s", RootPath, relativePath)
}

// routes returns a list of all routes for this api.
func routes(services *Services) []func(router *gin.Engine) {
	return []func(*gin.Engine){
		heartbeat,
		metrics,
		getStatus(services),
		getEpochRecords(services),
		getEpochRecord(services),
		postLeaderLog(services),
		postSlotUpload(services),
		postSlotComment(services),
	}
}

// NewRouter creates the gin engine serving all routes of this api.
func NewRouter(services *Services) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(logging.GinLoggingHook(), gin.Recovery())
	_ = router.SetTrustedProxies(nil)
	for _, function := range routes(services) {
		function(router)
	}
	return router
}

// Serve starts the API at the given hostname and on the given port. It
// shuts the server down gracefully, once the given context is done.
func Serve(ctx context.Context, hostname string, port int, services *Services) error {
	address := fmt.Sprintf("%s:%d", hostname, port)
	server := &http.Server{
		Addr:              address,
		Handler:           NewRouter(services),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		log.Infof("starting the API at address '%s'", address)
		errs <- server.ListenAndServe()
	}()
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	log.Infof("shutting down the API at address '%s'", address)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	if err != nil {
		return err
	}
	err = <-errs
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// metrics exposes the prometheus metrics of this application.
func metrics(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
