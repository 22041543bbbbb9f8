package custody

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/tomb.v2"

	"github.com/256dpi/custody/events"
)

// ErrClosed is returned for invocations on a closed runtime.
var ErrClosed = errors.New("custody: runtime closed")

// Invocation is a request by a user to execute an instruction against a custody
// account.
type Invocation struct {
	Account ID
	User    ID
	Data    []byte
}

// Receipt describes a committed invocation.
type Receipt struct {
	Outcome
	Event events.Event
}

// RuntimeConfig is used to configure a runtime.
type RuntimeConfig struct {
	// The program identity. Only accounts assigned to the program can be
	// invoked.
	Program ID

	// The journal that records committed invocations.
	Journal *Journal

	// The publisher that receives committed invocations. Publishing is best
	// effort, failures are logged.
	Publisher events.Publisher

	// The timeout for a single publish.
	PublishTimeout time.Duration

	// The number of invocations that may be queued.
	Queue int

	// The logger, nil discards.
	Logger *slog.Logger
}

type job struct {
	invocation Invocation
	done       chan result
}

type result struct {
	receipt *Receipt
	err     error
}

// Runtime executes invocations one at a time. Transfers and the ledger write of
// an invocation are committed atomically.
type Runtime struct {
	store      *Store
	dispatcher *Dispatcher
	config     RuntimeConfig
	logger     *slog.Logger
	pipe       chan job
	mutex      sync.RWMutex
	closed     bool
	tomb       tomb.Tomb
}

// NewRuntime will create and return a runtime.
func NewRuntime(store *Store, config RuntimeConfig) *Runtime {
	// set defaults
	if config.Queue <= 0 {
		config.Queue = 64
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// prepare runtime
	r := &Runtime{
		store:      store,
		dispatcher: NewDispatcher(config.Program, config.Logger),
		config:     config,
		logger:     config.Logger,
		pipe:       make(chan job, config.Queue),
	}

	// run worker
	r.tomb.Go(r.worker)

	return r
}

// Invoke will queue the invocation and wait for its result. A cancelled context
// stops the wait but not an invocation that has already been dequeued.
func (r *Runtime) Invoke(ctx context.Context, invocation Invocation) (*Receipt, error) {
	// check if closed
	select {
	case <-r.tomb.Dying():
		return nil, ErrClosed
	default:
	}

	// create job
	j := job{
		invocation: invocation,
		done:       make(chan result, 1),
	}

	// queue job
	err := r.queue(ctx, j)
	if err != nil {
		return nil, err
	}

	// await result
	select {
	case res := <-j.done:
		return res.receipt, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Runtime) queue(ctx context.Context, j job) error {
	// acquire mutex
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	// check pipe
	if r.closed {
		return ErrClosed
	}

	// queue job
	select {
	case r.pipe <- j:
		return nil
	case <-r.tomb.Dying():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close will execute the queued invocations and close the runtime.
func (r *Runtime) Close() {
	// kill tomb
	r.tomb.Kill(nil)

	// close pipe
	r.mutex.Lock()
	if !r.closed {
		close(r.pipe)
		r.closed = true
	}
	r.mutex.Unlock()

	// wait for exit
	_ = r.tomb.Wait()
}

func (r *Runtime) worker() error {
	for j := range r.pipe {
		// execute invocation
		receipt, err := r.execute(j.invocation)

		// publish event
		if err == nil && r.config.Publisher != nil {
			r.publish(receipt.Event)
		}

		// yield result
		j.done <- result{
			receipt: receipt,
			err:     err,
		}
	}

	return tomb.ErrDying
}

func (r *Runtime) execute(invocation Invocation) (*Receipt, error) {
	// begin transaction
	txn := r.store.Begin()
	defer txn.Close()

	// load account
	account, err := txn.Account(invocation.Account)
	if err != nil {
		return nil, err
	}

	// dispatch, a failure discards the transfers staged in the transaction
	outcome, err := r.dispatcher.Invoke(account, invocation.User, invocation.Data, txn)
	if err != nil {
		return nil, err
	}

	// write account
	err = txn.SetAccount(account)
	if err != nil {
		return nil, err
	}

	// prepare event
	event := events.Event{
		ID:        uuid.NewString(),
		Account:   account.Key,
		User:      invocation.User,
		Op:        outcome.Instruction.Op.String(),
		Amount:    outcome.Instruction.Amount,
		Locked:    outcome.Locked,
		Timestamp: time.Now().UnixNano(),
	}

	// stage event
	if r.config.Journal != nil {
		err = r.config.Journal.Stage(txn.batch, &event)
		if err != nil {
			return nil, err
		}
	}

	// commit transaction
	err = txn.Commit()
	if err != nil {
		if r.config.Journal != nil {
			r.config.Journal.Abort(1)
		}

		r.logger.Error("commit failed",
			slog.String("account", account.Key.Short()),
			slog.Any("error", err))

		return nil, err
	}

	// commit event
	if r.config.Journal != nil {
		r.config.Journal.Commit(event)
	}

	return &Receipt{
		Outcome: *outcome,
		Event:   event,
	}, nil
}

func (r *Runtime) publish(event events.Event) {
	// prepare context
	ctx, cancel := context.WithTimeout(context.Background(), r.config.PublishTimeout)
	defer cancel()

	// publish event
	err := r.config.Publisher.Publish(ctx, event)
	if err != nil {
		r.logger.Error("publish failed",
			slog.String("id", event.ID),
			slog.Uint64("sequence", event.Sequence),
			slog.Any("error", err))
	}
}
