// Package progress pushes import progress to live subscribers. The registry
// is process-local; subscribers on other instances use the status endpoint,
// which reads the persisted counters.
package progress

import (
	"sync"

	"github.com/google/uuid"

	"github.com/stratix/okrimport/internal/domain"
)

const subscriberBuffer = 16

// Broadcaster fans ProgressUpdates out to per-job subscribers.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]map[chan domain.ProgressUpdate]struct{}
}

// NewBroadcaster creates an empty registry.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uuid.UUID]map[chan domain.ProgressUpdate]struct{}),
	}
}

// Subscribe registers a listener for the given job. The returned cancel
// function removes the subscription; it is safe to call more than once.
func (b *Broadcaster) Subscribe(jobID uuid.UUID) (<-chan domain.ProgressUpdate, func()) {
	ch := make(chan domain.ProgressUpdate, subscriberBuffer)

	b.mu.Lock()
	if b.subscribers[jobID] == nil {
		b.subscribers[jobID] = make(map[chan domain.ProgressUpdate]struct{})
	}
	b.subscribers[jobID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.subscribers[jobID]; ok {
				if _, present := subs[ch]; present {
					delete(subs, ch)
					close(ch)
				}
				if len(subs) == 0 {
					delete(b.subscribers, jobID)
				}
			}
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish pushes an update to every subscriber of the job. A slow subscriber
// drops the update rather than blocking the job.
func (b *Broadcaster) Publish(update domain.ProgressUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers[update.JobID] {
		select {
		case ch <- update:
		default:
		}
	}
}

// Complete delivers the final update and tears down the job's subscriptions.
// Unlike Publish, the terminal frame is never dropped: a full buffer loses
// its oldest pending update instead.
func (b *Broadcaster) Complete(update domain.ProgressUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[update.JobID]
	for ch := range subs {
		select {
		case ch <- update:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- update:
			default:
			}
		}
		close(ch)
	}
	delete(b.subscribers, update.JobID)
}

// SubscriberCount reports active subscriptions for a job.
func (b *Broadcaster) SubscriberCount(jobID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[jobID])
}
