// custody operates custody accounts stored in a local database.
//
// Users lock value into a custody account and unlock it again, partially or
// fully. Every lock and unlock is executed as a 9 byte instruction against the
// account's ledger buffer; the transfers and the ledger write commit together.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/256dpi/custody"
	"github.com/256dpi/custody/config"
)

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	// parse global flags
	var configPath string
	var logLevel string
	flagSet := pflag.NewFlagSet("custody", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (default: $CUSTODY_CONFIG)")
	flagSet.StringVar(&logLevel, "log-level", "", "override the configured log level")
	flagSet.Usage = func() {
		printHelp(stderr, flagSet)
	}
	err := flagSet.Parse(args)
	if err != nil {
		return err
	}

	// check command
	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(stderr, flagSet)
		return pflag.ErrHelp
	}

	// load config
	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	// prepare logger
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	// lookup command
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", rest[0])
	}

	// open app
	app, err := openApp(cfg, logger, stdout)
	if err != nil {
		return err
	}
	defer app.close()

	return cmd(app, rest[1:])
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `custody: lock and unlock value in custody accounts.

Usage:
  custody [flags] <command> [args]

Commands:
  create <account> <authority>   create a custody account (--capacity n)
  deposit <who> <amount>         credit an external balance
  balance <who>                  print an external balance
  lock <account> <user> <amount>     lock value into custody
  unlock <account> <user> <amount>   unlock value from custody
  show <account>                 print the ledger of an account (--raw)
  journal                        print committed invocations (--start, --limit)
  relay                          publish committed invocations to kafka until interrupted

Identifiers are 64 hex characters or names hashed with BLAKE3.

Flags:
%s`, flagSet.FlagUsages())
}

type app struct {
	config  *config.Config
	logger  *slog.Logger
	out     io.Writer
	program custody.ID
	db      *custody.DB
	store   *custody.Store
	journal *custody.Journal
	cursors *custody.Cursors
	cleaner *custody.Cleaner
	runtime *custody.Runtime
	closers []func() error
}

func openApp(cfg *config.Config, logger *slog.Logger, out io.Writer) (*app, error) {
	// open db
	db, err := custody.OpenDB(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Directory, err)
	}

	// open journal
	journal, err := custody.OpenJournal(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	// prepare app
	a := &app{
		config:  cfg,
		logger:  logger,
		out:     out,
		program: custody.ResolveID(cfg.Program),
		db:      db,
		store:   custody.NewStore(db),
		journal: journal,
		cursors: custody.NewCursors(db),
	}

	// start cleaner
	if cfg.Journal.Retention > 0 {
		a.cleaner = custody.NewCleaner(journal, custody.CleanerConfig{
			Retention: cfg.Journal.Retention,
			Cursors:   a.cursors,
			Interval:  cfg.Journal.Interval,
			Errors: func(err error) {
				logger.Error("journal cleaning failed", slog.Any("error", err))
			},
		})
	}

	// prepare runtime
	a.runtime = custody.NewRuntime(a.store, custody.RuntimeConfig{
		Program: a.program,
		Journal: journal,
		Logger:  logger,
	})

	return a, nil
}

func (a *app) close() {
	// stop workers
	a.runtime.Close()
	if a.cleaner != nil {
		a.cleaner.Close()
	}

	// close publishers
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			a.logger.Warn("close failed", slog.Any("error", err))
		}
	}

	// close db
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database failed", slog.Any("error", err))
	}
}
