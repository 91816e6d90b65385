package pubsub

import (
	"context"
	"path"
	"sync"
)

type memorySub struct {
	pattern bool
	ch      chan *Event
}

// MemoryPubSub delivers events in-process. Patterns use path.Match syntax,
// which treats ':' as an ordinary character so "a:*:b" matches one segment.
type MemoryPubSub struct {
	mu   sync.RWMutex
	subs map[string]*memorySub
}

// NewMemoryPubSub returns an empty in-process bus.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: make(map[string]*memorySub)}
}

func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for key, sub := range m.subs {
		if sub.pattern {
			if ok, _ := path.Match(key, channel); !ok {
				continue
			}
		} else if key != channel {
			continue
		}
		select {
		case sub.ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return m.add(ctx, channel, false), nil
}

func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	return m.add(ctx, pattern, true), nil
}

func (m *MemoryPubSub) add(ctx context.Context, key string, pattern bool) <-chan *Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.subs[key]; ok {
		close(old.ch)
	}
	sub := &memorySub{pattern: pattern, ch: make(chan *Event, 100)}
	m.subs[key] = sub

	go func() {
		<-ctx.Done()
		m.remove(key, sub)
	}()
	return sub.ch
}

func (m *MemoryPubSub) remove(key string, sub *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.subs[key]; ok && cur == sub {
		close(cur.ch)
		delete(m.subs, key)
	}
}

func (m *MemoryPubSub) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subs[channel]; ok {
		close(sub.ch)
		delete(m.subs, channel)
	}
	return nil
}

func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, sub := range m.subs {
		close(sub.ch)
		delete(m.subs, key)
	}
	return nil
}
