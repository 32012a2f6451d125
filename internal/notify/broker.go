package notify

import (
	"sync"
)

type Kind string

const KindStory Kind = "story"

type Op string

const (
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// Event describes a single change to a stored record.
type Event struct {
	Kind    Kind
	Op      Op
	StoryID uint
	OwnerID uint
}

const subscriptionBuffer = 32

// Broker fans record change events out to subscribers. Subscribers treat
// events as resync hints, so delivery is lossy under pressure: if a
// subscriber's buffer is full there is already an undrained hint queued for
// it and dropping the newest one changes nothing.
type Broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*Subscription
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]*Subscription)}
}

// Subscription is a cancellable handle on the broker's event stream.
// Cancel is safe to call more than once; C is closed after Cancel.
type Subscription struct {
	C chan Event

	id     int
	kind   Kind
	ops    map[Op]bool
	broker *Broker
	once   sync.Once
}

// Subscribe registers for events of the given kind. With no ops listed the
// subscription receives every operation.
func (b *Broker) Subscribe(kind Kind, ops ...Op) *Subscription {
	sub := &Subscription{
		C:      make(chan Event, subscriptionBuffer),
		kind:   kind,
		broker: b,
	}
	if len(ops) > 0 {
		sub.ops = make(map[Op]bool, len(ops))
		for _, op := range ops {
			sub.ops[op] = true
		}
	}

	b.mu.Lock()
	sub.id = b.nextID
	b.nextID++
	b.subs[sub.id] = sub
	b.mu.Unlock()

	return sub
}

func (s *Subscription) matches(ev Event) bool {
	if s.kind != ev.Kind {
		return false
	}
	return s.ops == nil || s.ops[ev.Op]
}

func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s.id)
		s.broker.mu.Unlock()
		close(s.C)
	})
}

// Publish delivers ev to every matching subscription without blocking.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if !sub.matches(ev) {
			continue
		}
		select {
		case sub.C <- ev:
		default:
		}
	}
}
