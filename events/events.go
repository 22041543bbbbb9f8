// Package events describes committed ledger invocations and publishes them to
// downstream consumers.
package events

import (
	"context"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error

	// deterministic encoding, same event same bytes
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("events: CBOR encoder initialization failed: " + err.Error())
	}

	// unknown fields are ignored
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("events: CBOR decoder initialization failed: " + err.Error())
	}
}

// Event is a committed invocation.
type Event struct {
	// The journal sequence.
	Sequence uint64 `cbor:"seq"`

	// The unique invocation id.
	ID string `cbor:"id"`

	// The custody account and the invoking user.
	Account [32]byte `cbor:"account"`
	User    [32]byte `cbor:"user"`

	// The executed operation and its amount.
	Op     string `cbor:"op"`
	Amount uint64 `cbor:"amount"`

	// The amount locked by the user after the invocation.
	Locked uint64 `cbor:"locked"`

	// The commit time in unix nanoseconds.
	Timestamp int64 `cbor:"ts"`
}

// Encode will encode the event.
func Encode(event Event) ([]byte, error) {
	return encMode.Marshal(event)
}

// Decode will decode an event.
func Decode(data []byte) (Event, error) {
	var event Event
	err := decMode.Unmarshal(data, &event)
	return event, err
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Recorder is a publisher that keeps events in memory.
type Recorder struct {
	events []Event
	mutex  sync.Mutex
}

// Publish implements the Publisher interface.
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mutex.Lock()
	r.events = append(r.events, event)
	r.mutex.Unlock()
	return nil
}

// Events returns the recorded events.
func (r *Recorder) Events() []Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]Event(nil), r.events...)
}
