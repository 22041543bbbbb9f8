package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/kr/pretty"
	"github.com/spf13/pflag"

	"github.com/256dpi/custody"
	"github.com/256dpi/custody/events"
)

var commands = map[string]func(*app, []string) error{
	"create":  createCommand,
	"deposit": depositCommand,
	"balance": balanceCommand,
	"lock":    invokeCommand(custody.OpLock),
	"unlock":  invokeCommand(custody.OpUnlock),
	"show":    showCommand,
	"journal": journalCommand,
	"relay":   relayCommand,
}

func newPublisher(brokers []string, topic string) *events.Kafka {
	return events.NewKafka(brokers, topic)
}

func parseArgs(name string, args []string, want int, setup func(*pflag.FlagSet)) ([]string, error) {
	// prepare flags
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if setup != nil {
		setup(flagSet)
	}

	// parse flags
	err := flagSet.Parse(args)
	if err != nil {
		return nil, err
	}

	// check arguments
	if flagSet.NArg() != want {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", name, want, flagSet.NArg())
	}

	return flagSet.Args(), nil
}

func createCommand(a *app, args []string) error {
	// parse arguments
	capacity := a.config.Capacity
	rest, err := parseArgs("create", args, 2, func(fs *pflag.FlagSet) {
		fs.IntVar(&capacity, "capacity", capacity, "maximum number of lock entries")
	})
	if err != nil {
		return err
	}

	// create account
	account := custody.ResolveID(rest[0])
	authority := custody.ResolveID(rest[1])
	err = a.store.CreateAccount(account, a.program, authority, capacity)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "created %s (capacity %d, %d bytes)\n", account, capacity, custody.EncodedSize(capacity))

	return nil
}

func depositCommand(a *app, args []string) error {
	// parse arguments
	rest, err := parseArgs("deposit", args, 2, nil)
	if err != nil {
		return err
	}
	amount, err := custody.ParseUnits(rest[1], a.config.Decimals)
	if err != nil {
		return err
	}

	// deposit
	who := custody.ResolveID(rest[0])
	err = a.store.Deposit(who, amount)
	if err != nil {
		return err
	}

	return printBalance(a, who)
}

func balanceCommand(a *app, args []string) error {
	// parse arguments
	rest, err := parseArgs("balance", args, 1, nil)
	if err != nil {
		return err
	}

	return printBalance(a, custody.ResolveID(rest[0]))
}

func printBalance(a *app, who custody.ID) error {
	// get balance
	balance, err := a.store.Balance(who)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s %s\n", who, custody.FormatUnits(balance, a.config.Decimals))

	return nil
}

func invokeCommand(op custody.Opcode) func(*app, []string) error {
	return func(a *app, args []string) error {
		// parse arguments
		rest, err := parseArgs(op.String(), args, 3, nil)
		if err != nil {
			return err
		}
		amount, err := custody.ParseUnits(rest[2], a.config.Decimals)
		if err != nil {
			return err
		}

		// prepare context
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		// invoke
		receipt, err := a.runtime.Invoke(ctx, custody.Invocation{
			Account: custody.ResolveID(rest[0]),
			User:    custody.ResolveID(rest[1]),
			Data: custody.Instruction{
				Op:     op,
				Amount: amount,
			}.Encode(),
		})
		if err != nil {
			return fmt.Errorf("%s rejected (code %d): %w", op, custody.CodeOf(err), err)
		}

		fmt.Fprintf(a.out, "%s %s, locked %s (journal #%d)\n", op,
			custody.FormatUnits(amount, a.config.Decimals),
			custody.FormatUnits(receipt.Locked, a.config.Decimals),
			receipt.Event.Sequence)

		return nil
	}
}

func showCommand(a *app, args []string) error {
	// parse arguments
	var raw bool
	rest, err := parseArgs("show", args, 1, func(fs *pflag.FlagSet) {
		fs.BoolVar(&raw, "raw", false, "print the decoded ledger structure")
	})
	if err != nil {
		return err
	}

	// load account
	account, err := a.store.Account(custody.ResolveID(rest[0]))
	if err != nil {
		return err
	}

	// decode ledger
	ledger, err := custody.Decode(account.Data)
	if err != nil {
		return err
	}

	// print raw
	if raw {
		fmt.Fprintf(a.out, "%# v\n", pretty.Formatter(ledger))
		return nil
	}

	// get total
	total, err := ledger.Total()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "account   %s\n", account.Key)
	fmt.Fprintf(a.out, "program   %s\n", account.Program)
	fmt.Fprintf(a.out, "owner     %s\n", ledger.Owner)
	fmt.Fprintf(a.out, "entries   %d/%d\n", len(ledger.Entries), custody.MaxEntries(len(account.Data)))
	fmt.Fprintf(a.out, "total     %s\n", custody.FormatUnits(total, a.config.Decimals))
	for _, entry := range ledger.Entries {
		fmt.Fprintf(a.out, "  %s %s\n", entry.User, custody.FormatUnits(entry.Amount, a.config.Decimals))
	}

	return nil
}

func journalCommand(a *app, args []string) error {
	// parse arguments
	var start uint64
	var limit int
	_, err := parseArgs("journal", args, 0, func(fs *pflag.FlagSet) {
		fs.Uint64Var(&start, "start", 0, "first sequence to print")
		fs.IntVar(&limit, "limit", 100, "maximum number of events")
	})
	if err != nil {
		return err
	}

	// read events
	list, err := a.journal.Read(start, limit)
	if err != nil {
		return err
	}

	for _, event := range list {
		fmt.Fprintf(a.out, "#%d %s %s user %s %s locked %s\n",
			event.Sequence,
			event.ID,
			event.Op,
			custody.ID(event.User).Short(),
			custody.FormatUnits(event.Amount, a.config.Decimals),
			custody.FormatUnits(event.Locked, a.config.Decimals))
	}

	return nil
}

func relayCommand(a *app, args []string) error {
	// parse arguments
	name := "kafka"
	_, err := parseArgs("relay", args, 0, func(fs *pflag.FlagSet) {
		fs.StringVar(&name, "name", name, "name of the stored relay position")
	})
	if err != nil {
		return err
	}

	// check brokers
	if len(a.config.Events.Brokers) == 0 {
		return fmt.Errorf("relay: no brokers configured")
	}

	// prepare publisher
	publisher := newPublisher(a.config.Events.Brokers, a.config.Events.Topic)
	a.closers = append(a.closers, publisher.Close)

	// run relay
	relay := custody.NewRelay(custody.RelayConfig{
		Name:      name,
		Journal:   a.journal,
		Cursors:   a.cursors,
		Publisher: publisher,
		Logger:    a.logger,
	})

	a.logger.Info("relay started",
		slog.String("name", name),
		slog.String("topic", a.config.Events.Topic),
		slog.Uint64("head", a.journal.Head()))

	// wait for interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	<-ctx.Done()

	return relay.Close()
}
