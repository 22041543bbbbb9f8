package custody

import (
	"io"
	"log/slog"
)

// Account is a storage buffer handed over by the host for one invocation.
type Account struct {
	// The key of the account. It also identifies the account that holds the
	// locked value.
	Key ID

	// The program the account is assigned to.
	Program ID

	// The raw ledger buffer.
	Data []byte
}

// Outcome describes a successful invocation.
type Outcome struct {
	Instruction Instruction
	User        ID
	Locked      uint64
}

// Dispatcher is the entry point for invocations of a program.
type Dispatcher struct {
	program ID
	logger  *slog.Logger
}

// NewDispatcher will create and return a dispatcher for the specified program.
// A nil logger discards all output.
func NewDispatcher(program ID, logger *slog.Logger) *Dispatcher {
	// set default logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Dispatcher{
		program: program,
		logger:  logger,
	}
}

// Program returns the program identity.
func (d *Dispatcher) Program() ID {
	return d.program
}

// Invoke will execute the instruction payload on behalf of the user against the
// ledger stored in the account. The account data is only written if the
// invocation succeeds and is left untouched otherwise.
func (d *Dispatcher) Invoke(account *Account, user ID, data []byte, bank Bank) (*Outcome, error) {
	// execute
	outcome, err := d.invoke(account, user, data, bank)
	if err != nil {
		d.logger.Info("invocation rejected",
			slog.String("account", account.Key.Short()),
			slog.String("user", user.Short()),
			slog.String("code", CodeOf(err).String()),
			slog.Any("error", err))
		return nil, err
	}

	d.logger.Debug("invocation committed",
		slog.String("account", account.Key.Short()),
		slog.String("user", user.Short()),
		slog.String("op", outcome.Instruction.Op.String()),
		slog.Uint64("amount", outcome.Instruction.Amount),
		slog.Uint64("locked", outcome.Locked))

	return outcome, nil
}

func (d *Dispatcher) invoke(account *Account, user ID, data []byte, bank Bank) (*Outcome, error) {
	// check owner
	if account.Program != d.program {
		return nil, ErrIncorrectOwner
	}

	// decode ledger
	ledger, err := Decode(account.Data)
	if err != nil {
		return nil, err
	}

	// parse instruction
	ins, err := ParseInstruction(data)
	if err != nil {
		return nil, err
	}

	// prepare env
	env := Env{
		Bank:     bank,
		Custody:  account.Key,
		Capacity: MaxEntries(len(account.Data)),
	}

	// run operation
	switch ins.Op {
	case OpLock:
		err = Lock(ledger, env, user, ins.Amount)
	case OpUnlock:
		err = Unlock(ledger, env, user, ins.Amount)
	default:
		err = ErrUnknownOpcode
	}
	if err != nil {
		return nil, err
	}

	// encode into scratch buffer
	scratch := make([]byte, len(account.Data))
	err = Encode(ledger, scratch)
	if err != nil {
		return nil, err
	}

	// commit
	copy(account.Data, scratch)

	return &Outcome{
		Instruction: ins,
		User:        user,
		Locked:      ledger.Locked(user),
	}, nil
}
