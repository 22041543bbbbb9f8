package custody

import (
	"context"
	"io"
	"log/slog"
	"time"

	"gopkg.in/tomb.v2"

	"github.com/256dpi/custody/events"
)

// RelayConfig is used to configure a relay.
type RelayConfig struct {
	// The name of the cursor that stores the relay position.
	Name string

	// The journal to read from.
	Journal *Journal

	// The cursors used to persist the position.
	Cursors *Cursors

	// The publisher that receives the events.
	Publisher events.Publisher

	// The amount of events to read from the journal at once.
	Batch int

	// The timeout for a single publish.
	Timeout time.Duration

	// The delay before a failed publish is retried.
	Retry time.Duration

	// The logger, nil discards.
	Logger *slog.Logger
}

// Relay publishes journal events in order and persists its position after
// every published event. Events are delivered at least once, a failed publish
// is retried until it succeeds or the relay is closed.
type Relay struct {
	config RelayConfig
	tomb   tomb.Tomb
}

// NewRelay will create and return a new relay.
func NewRelay(config RelayConfig) *Relay {
	// check name
	if config.Name == "" {
		panic("custody: missing name")
	}

	// check publisher
	if config.Publisher == nil {
		panic("custody: missing publisher")
	}

	// set defaults
	if config.Batch <= 0 {
		config.Batch = 100
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Retry <= 0 {
		config.Retry = time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// prepare relay
	r := &Relay{
		config: config,
	}

	// run worker
	r.tomb.Go(r.worker)

	return r
}

// Close will close the relay and return the error that stopped it, if any.
func (r *Relay) Close() error {
	r.tomb.Kill(nil)
	return r.tomb.Wait()
}

func (r *Relay) worker() error {
	// subscribe to notifications
	notifications := make(chan uint64, 1)
	r.config.Journal.Subscribe(notifications)
	defer r.config.Journal.Unsubscribe(notifications)

	// fetch stored position
	position, _, err := r.config.Cursors.Get(r.config.Name)
	if err != nil {
		return err
	}

	// advance position
	position++

	for {
		// check if closed
		select {
		case <-r.tomb.Dying():
			return tomb.ErrDying
		default:
		}

		// wait for notification if no new data in journal
		head := r.config.Journal.Head()
		if head < position {
			select {
			case <-notifications:
			case <-r.tomb.Dying():
				return tomb.ErrDying
			}

			continue
		}

		// read events
		list, err := r.config.Journal.Read(position, r.config.Batch)
		if err != nil {
			return err
		}

		// skip over deleted events
		if len(list) == 0 {
			position = head + 1
			continue
		}

		// publish events
		for _, event := range list {
			err = r.publish(event)
			if err != nil {
				return err
			}

			position = event.Sequence + 1
		}
	}
}

func (r *Relay) publish(event events.Event) error {
	for {
		// publish event
		ctx, cancel := context.WithTimeout(r.tomb.Context(nil), r.config.Timeout)
		err := r.config.Publisher.Publish(ctx, event)
		cancel()
		if err == nil {
			break
		}

		// check if closed
		if !r.tomb.Alive() {
			return tomb.ErrDying
		}

		r.config.Logger.Warn("relay publish failed",
			slog.String("relay", r.config.Name),
			slog.Uint64("sequence", event.Sequence),
			slog.Any("error", err))

		// wait before retry
		select {
		case <-time.After(r.config.Retry):
		case <-r.tomb.Dying():
			return tomb.ErrDying
		}
	}

	// save position
	return r.config.Cursors.Set(r.config.Name, event.Sequence)
}
