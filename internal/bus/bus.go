// Package bus implements the in-process change-notification channel between
// the local store and its observers (budget checks, UI refresh). Delivery is
// best-effort: publishers never block, and events may be dropped when a
// subscriber falls behind. Subscribers must tolerate duplicate and
// out-of-order delivery.
package bus

import "sync"

// Topic identifies one entity collection.
type Topic string

const (
	TopicExpenses   Topic = "expenses"
	TopicIncomes    Topic = "incomes"
	TopicCategories Topic = "categories"
	TopicBudgets    Topic = "budgets"
	TopicRules      Topic = "recurring_rules"
)

// Op describes what happened to the entity.
type Op string

const (
	OpCreated  Op = "created"
	OpUpdated  Op = "updated"
	OpDeleted  Op = "deleted"
	OpRestored Op = "restored"
	OpPurged   Op = "purged"
	OpPulled   Op = "pulled"
)

// Event is one change notification.
type Event struct {
	Topic    Topic
	Op       Op
	OwnerID  string
	EntityID string
}

type subscriber struct {
	topic Topic
	ch    chan Event
}

// Bus is a fan-out broadcaster with per-subscriber buffers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers interest in a topic and returns the event channel plus
// a cancel function. buf is the channel capacity; events published while the
// buffer is full are dropped for that subscriber.
func (b *Bus) Subscribe(topic Topic, buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 16
	}
	s := &subscriber{topic: topic, ch: make(chan Event, buf)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[s]; ok {
				delete(b.subs, s)
				close(s.ch)
			}
			b.mu.Unlock()
		})
	}
	return s.ch, cancel
}

// Publish delivers e to every subscriber of its topic without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		if s.topic != e.Topic {
			continue
		}
		select {
		case s.ch <- e:
		default:
			// subscriber is behind, drop
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
	}
	b.subs = map[*subscriber]struct{}{}
}
