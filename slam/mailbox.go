package slam

import (
	"sync"

	"github.com/rovercore/vslam"
)

// Mailbox hands observation batches from an asynchronous detector callback
// to the control loop. The detector Puts observations as they arrive; the
// control loop Swaps the pending batch out atomically before calling Update,
// so the filter never sees a batch that is still being appended to.
//
// Within one pending batch only the first observation per tag ID is kept,
// which satisfies the filter's no-duplicate-ID precondition.
type Mailbox struct {
	mu      sync.Mutex
	pending []vslam.Observation
	seen    map[int]struct{}
}

// NewMailbox creates an empty observation mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		seen: make(map[int]struct{}),
	}
}

// Put appends observations to the pending batch, dropping any whose tag ID
// is already pending.
func (m *Mailbox) Put(obs ...vslam.Observation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range obs {
		if _, ok := m.seen[o.ID]; ok {
			continue
		}
		m.seen[o.ID] = struct{}{}
		m.pending = append(m.pending, o)
	}
}

// Swap returns the pending batch and clears the mailbox. The returned slice
// is owned by the caller and will not be mutated by subsequent Puts.
func (m *Mailbox) Swap() []vslam.Observation {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := m.pending
	m.pending = nil
	m.seen = make(map[int]struct{})

	return batch
}

// Len returns the number of pending observations.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.pending)
}
