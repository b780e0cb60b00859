// Package dedupe rejects duplicate recipes within a run and against the
// persistent store.
package dedupe

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/joanies-kitchen/recipes-cli/internal/store"
)

// Deduplicator tracks fingerprints reserved during the current run and
// consults the store for fingerprints committed by prior runs. Reservation is
// an atomic test-and-set so two workers can never accept the same
// fingerprint concurrently.
type Deduplicator struct {
	store store.Store

	mu       sync.Mutex
	reserved map[string]bool
}

// New creates a Deduplicator for one run.
func New(st store.Store) *Deduplicator {
	return &Deduplicator{
		store:    st,
		reserved: make(map[string]bool),
	}
}

// CheckAndReserve returns true if the fingerprint was accepted and reserved
// for this run, false if it is a duplicate. Rejection is final for this run:
// the reservation happens before enrichment so no AI call is wasted on a
// record that will be discarded.
func (d *Deduplicator) CheckAndReserve(ctx context.Context, fingerprint string) (bool, error) {
	d.mu.Lock()
	if d.reserved[fingerprint] {
		d.mu.Unlock()
		return false, nil
	}
	// Reserve before the store lookup so concurrent workers holding the
	// same fingerprint serialize on this run's set, not on the store.
	d.reserved[fingerprint] = true
	d.mu.Unlock()

	exists, err := d.store.ExistsByFingerprint(ctx, fingerprint)
	if err != nil {
		d.release(fingerprint)
		return false, eris.Wrap(err, "dedupe: store lookup")
	}
	if exists {
		// Keep the reservation: the fingerprint is a known duplicate for
		// the remainder of the run either way.
		return false, nil
	}
	return true, nil
}

// Reserved returns how many fingerprints this run has reserved.
func (d *Deduplicator) Reserved() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reserved)
}

func (d *Deduplicator) release(fingerprint string) {
	d.mu.Lock()
	delete(d.reserved, fingerprint)
	d.mu.Unlock()
}
