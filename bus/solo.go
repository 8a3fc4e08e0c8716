package bus

import (
	"strings"
	"sync"
)

// SoloBus is an in-process bus for single-node deployments and tests.
type SoloBus struct {
	mu     sync.Mutex
	subs   map[string][]chan Event
	closed bool
}

func NewSoloBus() *SoloBus {
	return &SoloBus{
		subs: make(map[string][]chan Event),
	}
}

func (b *SoloBus) Publish(e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	subject := e.Subject()
	for pattern, chans := range b.subs {
		if !subjectMatch(pattern, subject) {
			continue
		}
		for _, ch := range chans {
			select {
			case ch <- e:
			default:
				// slow consumer, drop
			}
		}
	}
	return nil
}

func (b *SoloBus) Subscribe(subject string) (chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 64)
	b.subs[subject] = append(b.subs[subject], ch)
	return ch, nil
}

func (b *SoloBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.subs = nil
}

// subjectMatch supports nats-style single token wildcards, so
// "stac.item.*" matches "stac.item.created".
func subjectMatch(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	if len(pt) != len(st) {
		return false
	}
	for i := range pt {
		if pt[i] != "*" && pt[i] != st[i] {
			return false
		}
	}
	return true
}
