package custody

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/256dpi/custody/events"
)

// Journal is an append-only log of committed invocations. Records are staged
// into the batch that commits the invocation and become visible once
// committed. Only one goroutine should stage records at the same time.
type Journal struct {
	db *DB

	receivers sync.Map

	length int
	head   uint64
	tail   uint64
	staged uint64
	mutex  sync.Mutex
}

// OpenJournal will open the journal stored in the provided db.
func OpenJournal(db *DB) (*Journal, error) {
	// create journal
	j := &Journal{
		db: db,
	}

	// init journal
	err := j.init()
	if err != nil {
		return nil, err
	}

	return j, nil
}

func (j *Journal) init() error {
	// read head
	value, ok, err := readValue(j.db, journalHeadKey)
	if err != nil {
		return err
	} else if ok && len(value) == 8 {
		j.head = binary.BigEndian.Uint64(value)
	}

	// create iterator
	iter, err := j.db.NewIter(journalBounds())
	if err != nil {
		return err
	}
	defer iter.Close()

	// count records and find tail
	var first uint64
	for iter.First(); iter.Valid(); iter.Next() {
		if j.length == 0 {
			first = splitRecordKey(iter.Key())
		}
		j.length++
	}
	err = iter.Error()
	if err != nil {
		return err
	}

	// set tail
	if j.length > 0 {
		j.tail = first - 1
	} else {
		j.tail = j.head
	}

	return nil
}

// Stage will assign the next sequence to the event and add it to the batch.
// Commit must be called once the batch has been committed or Abort if it has
// been discarded.
func (j *Journal) Stage(batch *pebble.Batch, event *events.Event) error {
	// assign sequence
	j.mutex.Lock()
	j.staged++
	event.Sequence = j.head + j.staged
	j.mutex.Unlock()

	// encode event
	value, err := events.Encode(*event)
	if err != nil {
		j.Abort(1)
		return err
	}

	// add record
	err = batch.Set(makeRecordKey(event.Sequence), value, nil)
	if err != nil {
		j.Abort(1)
		return err
	}

	// add head
	head := make([]byte, 8)
	binary.BigEndian.PutUint64(head, event.Sequence)
	err = batch.Set(journalHeadKey, head, nil)
	if err != nil {
		j.Abort(1)
		return err
	}

	return nil
}

// Abort will release the sequences of n staged events that will not be
// committed.
func (j *Journal) Abort(n int) {
	j.mutex.Lock()
	j.staged -= uint64(n)
	j.mutex.Unlock()
}

// Commit will make the committed event visible and notify receivers.
func (j *Journal) Commit(event events.Event) {
	// advance head
	j.mutex.Lock()
	j.staged--
	j.length++
	if event.Sequence > j.head {
		j.head = event.Sequence
	}
	j.mutex.Unlock()

	// send notifications to all receivers and skip full receivers
	j.receivers.Range(func(_, value interface{}) bool {
		select {
		case value.(chan<- uint64) <- event.Sequence:
		default:
		}

		return true
	})
}

// Write will stage and commit the provided events.
func (j *Journal) Write(list ...*events.Event) error {
	// prepare batch
	batch := j.db.NewBatch()
	defer batch.Close()

	// stage events
	for i, event := range list {
		err := j.Stage(batch, event)
		if err != nil {
			j.Abort(i)
			return err
		}
	}

	// commit batch
	err := batch.Commit(defaultWriteOptions)
	if err != nil {
		j.Abort(len(list))
		return err
	}

	// commit events
	for _, event := range list {
		j.Commit(*event)
	}

	return nil
}

// Read will read events from and including the specified sequence up to the
// requested amount of events.
func (j *Journal) Read(sequence uint64, amount int) ([]events.Event, error) {
	// prepare list
	list := make([]events.Event, 0, amount)

	// create iterator
	iter, err := j.db.NewIter(journalBounds())
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	// iterate until enough events have been loaded
	for iter.SeekGE(makeRecordKey(sequence)); iter.Valid() && len(list) < amount; iter.Next() {
		// decode event
		event, err := events.Decode(iter.Value())
		if err != nil {
			return nil, err
		}

		// set sequence from key
		event.Sequence = splitRecordKey(iter.Key())

		// add event
		list = append(list, event)
	}

	// check error
	err = iter.Error()
	if err != nil {
		return nil, err
	}

	return list, nil
}

// Delete will remove all events up to and including the specified sequence and
// return the number of deleted events.
func (j *Journal) Delete(sequence uint64) (int, error) {
	// get bounds
	j.mutex.Lock()
	head, tail := j.head, j.tail
	j.mutex.Unlock()

	// correct sequence if beyond head
	if sequence > head {
		sequence = head
	}

	// skip if sequence is at or below tail
	if sequence <= tail {
		return 0, nil
	}

	// prepare range
	start := makeRecordKey(tail + 1)
	end := makeRecordKey(sequence + 1)

	// count events
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return 0, err
	}
	var counter int
	for iter.First(); iter.Valid(); iter.Next() {
		counter++
	}
	err = iter.Error()
	_ = iter.Close()
	if err != nil {
		return 0, err
	}

	// delete events
	err = j.db.DeleteRange(start, end, defaultWriteOptions)
	if err != nil {
		return 0, err
	}

	// update length and tail
	j.mutex.Lock()
	j.length -= counter
	j.tail = sequence
	j.mutex.Unlock()

	return counter, nil
}

// Length will return the number of stored events.
func (j *Journal) Length() int {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return j.length
}

// Head will return the last committed sequence.
func (j *Journal) Head() uint64 {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return j.head
}

// Tail will return the last deleted sequence.
func (j *Journal) Tail() uint64 {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return j.tail
}

// Subscribe will subscribe the specified channel to new sequences committed to
// the journal. Notifications will be skipped if the specified channel is not
// writable for some reason.
func (j *Journal) Subscribe(receiver chan<- uint64) {
	j.receivers.Store(receiver, receiver)
}

// Unsubscribe will remove a previously subscribed receiver.
func (j *Journal) Unsubscribe(receiver chan<- uint64) {
	j.receivers.Delete(receiver)
}

var journalHeadKey = []byte{journalPrefix}

func journalBounds() *pebble.IterOptions {
	return &pebble.IterOptions{
		LowerBound: makeRecordKey(0),
		UpperBound: []byte{journalPrefix + 1},
	}
}

func makeRecordKey(seq uint64) []byte {
	key := make([]byte, 9)
	key[0] = journalPrefix
	binary.BigEndian.PutUint64(key[1:], seq)
	return key
}

func splitRecordKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[1:])
}
