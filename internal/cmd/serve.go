package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/api"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/auth"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the API and reconcile the assigned slots periodically",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	authenticator, err := auth.NewCachedCredentials(cfg.Auth.Username, cfg.Auth.Password)
	if err != nil {
		return err
	}
	app, err := newApplication(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	err = app.manager.Start(cfg.Status.Schedule)
	if err != nil {
		return err
	}
	defer app.manager.Stop()
	if cfg.Loader.Enabled {
		err = app.loader.Start(cfg.Loader.Schedule)
		if err != nil {
			return err
		}
		defer app.loader.Stop()
	}

	ctx, cancel := signalContext()
	defer cancel()
	err = api.Serve(ctx, cfg.Server.Hostname, cfg.Server.Port, &api.Services{
		DB:      app.db,
		Planner: app.planner,
		Status:  app.manager,
		Auth:    authenticator,
	})
	log.Infof("shutting down, waiting for the running tick to finish")
	return err
}
