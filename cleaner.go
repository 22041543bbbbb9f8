package custody

import (
	"time"

	"gopkg.in/tomb.v2"
)

// CleanerConfig is used to configure a cleaner.
type CleanerConfig struct {
	// The amount of events to keep available in the journal.
	Retention int

	// The cursors that must not be passed. Events that have not yet been
	// processed by all readers are kept even if beyond the retention.
	Cursors *Cursors

	// The interval of cleanings.
	Interval time.Duration

	// The callback used to yield errors.
	Errors func(error)
}

// Cleaner will periodically delete events from a journal honoring the
// configured retention. Failed cleanings are retried and the errors yielded to
// the configured callback.
type Cleaner struct {
	journal *Journal
	config  CleanerConfig

	tomb tomb.Tomb
}

// NewCleaner will create and return a new cleaner.
func NewCleaner(journal *Journal, config CleanerConfig) *Cleaner {
	// check interval
	if config.Interval <= 0 {
		panic("custody: missing interval")
	}

	// prepare cleaner
	c := &Cleaner{
		journal: journal,
		config:  config,
	}

	// run worker
	c.tomb.Go(c.worker)

	return c
}

// Close will close the cleaner.
func (c *Cleaner) Close() {
	c.tomb.Kill(nil)
	_ = c.tomb.Wait()
}

func (c *Cleaner) worker() error {
	for {
		// wait for trigger or close
		select {
		case <-time.After(c.config.Interval):
		case <-c.tomb.Dying():
			return tomb.ErrDying
		}

		// perform clean
		err := c.clean()
		if err != nil && c.config.Errors != nil {
			c.config.Errors(err)
		}
	}
}

func (c *Cleaner) clean() error {
	// skip if journal is empty or smaller than the retention
	if c.journal.Length() <= c.config.Retention {
		return nil
	}

	// sequences are contiguous, keep the last retention events
	position := c.journal.Head() - uint64(c.config.Retention)

	// keep events not yet processed by all readers
	if c.config.Cursors != nil {
		lowest, ok, err := c.config.Cursors.Min()
		if err != nil {
			return err
		} else if ok && lowest < position {
			position = lowest
		}
	}

	// delete events up to and including the calculated position
	_, err := c.journal.Delete(position)
	if err != nil {
		return err
	}

	return nil
}
