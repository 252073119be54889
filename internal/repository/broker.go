package repository

import (
	"sync"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
)

// Broker раздает изменения записей подписчикам внутри процесса.
type Broker struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]chan Change
}

// NewBroker создает пустой брокер
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[uint64]chan Change)}
}

// Subscribe implements ChangeFeed.
func (b *Broker) Subscribe(userID string) (<-chan Change, func()) {
	ch := make(chan Change, 1)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[uint64]chan Change)
	}
	b.subs[userID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[userID], id)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
		})
	}
	return ch, cancel
}

// Publish delivers e to every subscriber of e.UserID.
func (b *Broker) Publish(e domain.Entitlement) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[e.UserID] {
		rec := e
		offer(ch, Change{Entitlement: &rec})
	}
}

// Fail delivers err to every subscriber.
func (b *Broker) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, byID := range b.subs {
		for _, ch := range byID {
			offer(ch, Change{Err: err})
		}
	}
}

// UserIDs returns the users that currently have subscribers.
func (b *Broker) UserIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	return ids
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, byID := range b.subs {
		n += len(byID)
	}
	return n
}

// offer replaces an undelivered change with c. Callers hold b.mu, so there
// is no concurrent sender on ch.
func offer(ch chan Change, c Change) {
	select {
	case ch <- c:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- c
}
