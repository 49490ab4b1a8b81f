package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/toritsejumoju/stakepoolbackup.io/internal/config"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain/blockfrost"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db/sqlstore"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/notify"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/plan"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/status"
)

// application bundles the components shared by all commands.
type application struct {
	cfg        *config.Config
	db         *sqlstore.Store
	dispatcher *notify.Dispatcher
	mailer     notify.Mailer
	smtp       *notify.SMTPMailer
	planner    *plan.Planner
	manager    *status.Manager
	loader     *plan.Loader
}

func newApplication(cfg *config.Config) (*application, error) {
	app := &application{cfg: cfg}
	var err error
	if cfg.Database.Driver == sqlstore.DriverPostgres {
		app.db, err = sqlstore.NewPostgresDB(cfg.Database.URL)
	} else {
		app.db, err = sqlstore.NewSQLiteDB(cfg.Database.Path)
	}
	if err != nil {
		return nil, err
	}
	backend, err := blockfrost.NewBlockFrostBackend(blockfrost.Options{
		ProjectID: cfg.Blockfrost.ProjectID,
		Server:    cfg.Blockfrost.Server,
		Retries:   cfg.Blockfrost.Retries,
		Backoff:   cfg.Blockfrost.Backoff,
		Timeout:   cfg.Blockfrost.Timeout,
		CacheSize: cfg.Blockfrost.CacheSize,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.dispatcher, err = newDispatcher(cfg.Notify)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.mailer = notify.LogMailer{}
	if cfg.Mail.Enabled {
		app.smtp = notify.NewSMTPMailer(cfg.SMTP())
		app.mailer = app.smtp
	}
	app.planner = plan.NewPlanner(backend, app.db, app.dispatcher, app.mailer, chain.Mainnet)
	app.planner.NearBorderThreshold = cfg.Status.NearBorderThreshold
	app.manager = status.NewManager(backend, app.db, app.dispatcher, app.mailer, cfg.StatusOptions())
	app.loader = plan.NewLoader(app.planner, app.mailer, cfg.Loader.Root)
	app.loader.MaxFailures = cfg.Loader.MaxFailures
	return app, nil
}

// newDispatcher creates the notification dispatcher with a sink for every
// configured destination.
func newDispatcher(cfg config.NotifyConfig) (*notify.Dispatcher, error) {
	var sinks []notify.Sink
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		sinks = append(sinks, notify.NewRedisQueue(client, cfg.RedisPrefix))
		log.Infof("delivering notifications to the redis queue at '%s'", cfg.RedisAddr)
	}
	if cfg.NatsURL != "" {
		publisher, err := notify.ConnectNATS(cfg.NatsURL, "stakepool-status", cfg.NatsPrefix)
		if err != nil {
			for _, sink := range sinks {
				_ = sink.Close()
			}
			return nil, err
		}
		sinks = append(sinks, publisher)
		log.Infof("publishing notifications to nats at '%s'", cfg.NatsURL)
	}
	if cfg.Log {
		sinks = append(sinks, notify.LogSink{})
	}
	return notify.NewDispatcher(cfg.Timeout, sinks...), nil
}

// Close waits for pending notifications and mails, and closes the
// database.
func (a *application) Close() {
	if a.dispatcher != nil {
		err := a.dispatcher.Close()
		if err != nil {
			log.Errorf("closing the notification sinks failed: %s", err.Error())
		}
	}
	if a.smtp != nil {
		a.smtp.Close()
	}
	if a.db != nil {
		err := a.db.Close()
		if err != nil {
			log.Errorf("closing the database failed: %s", err.Error())
		}
	}
}

// signalContext returns a context, which is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// printJSON writes the given value as indented JSON to stdout.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
