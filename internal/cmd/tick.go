package cmd

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/status"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single reconciliation tick and print its report",
	RunE:  runTick,
}

func init() {
	rootCmd.AddCommand(tickCmd)
}

// ticker runs a single reconciliation pass.
type ticker interface {
	Tick(ctx context.Context) (*status.TickReport, error)
}

// errTickSkipped is returned, if the tick hasn't been started, because a
// termination signal has been received before.
var errTickSkipped = errors.New("the tick has been skipped due to a termination signal")

// tickOnce runs a tick unless the given context is already done. A started
// tick isn't bound to the given context, it always runs to its end.
func tickOnce(ctx context.Context, t ticker) (*status.TickReport, error) {
	if ctx.Err() != nil {
		return nil, errTickSkipped
	}
	return t.Tick(context.Background())
}

func runTick(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	app, err := newApplication(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signalContext()
	defer cancel()
	report, err := tickOnce(ctx, app.manager)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		log.Warn("a termination signal has been received during the tick, it has been completed anyway")
	}
	return printJSON(report)
}
