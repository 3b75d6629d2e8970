// Command normanpd imports Norman PD daily incident summaries into a local
// database and prints the incident count per nature.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joelkehle/normanpd/internal/config"
	"github.com/joelkehle/normanpd/internal/pipeline"
	"github.com/joelkehle/normanpd/internal/store"
	"github.com/joelkehle/normanpd/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "normanpd: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags have been parsed.
type app struct {
	configPath string
	dbPath     string
	logLevel   string
	logFormat  string

	cfg    config.Config
	logger *slog.Logger
	errOut io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{errOut: errOut}
	run := &runOptions{}

	root := &cobra.Command{
		Use:   "normanpd --incidents <url>",
		Short: "Import a Norman PD daily incident summary and print counts by nature",
		Long: `normanpd downloads a Norman Police Department daily incident summary PDF,
extracts the incident table, stores every incident in a local database
(one row per incident number) and prints one "<nature>|<count>" line per
nature, busiest first.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runImport(cmd, run)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.StringVar(&a.dbPath, "db", "", "database path or DSN (default resources/normanpd.db)")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&a.logFormat, "log-format", "", "text or json")

	run.bind(root)
	root.AddCommand(
		newStatusCmd(a),
		newURLsCmd(),
		newServeCmd(a),
		newExportCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database.DSN = a.dbPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = telemetry.NewLogger(a.errOut, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(a.logger)
	return nil
}

// openStore connects to the configured database. Failures carry the
// store_init code whichever command asked.
func (a *app) openStore(ctx context.Context) (*store.SQLStore, error) {
	st, err := store.Open(ctx, store.Config{Driver: a.cfg.Database.Driver, DSN: a.cfg.DSN()})
	if err != nil {
		return nil, pipeline.NewStoreInitError(err)
	}
	a.logger.Debug("store.open", "driver", st.Driver(), "dsn", a.cfg.DSN())
	return st, nil
}

// openExistingStore opens the database and makes sure the table exists, for
// commands that read without importing.
func (a *app) openExistingStore(ctx context.Context) (*store.SQLStore, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Create(ctx); err != nil {
		st.Close()
		return nil, pipeline.NewStoreInitError(err)
	}
	return st, nil
}
