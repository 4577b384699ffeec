// Package realtime turns store writes into live query updates.
//
// Writers publish a signal on a topic after a committed change. Readers subscribe to the topic and
// reload their query on every signal. Signals carry no payload and coalesce, so a slow reader sees
// the latest state instead of a backlog.
package realtime

import (
	"context"
	"sync"
)

// Bus fans change signals out to subscribers.
type Bus interface {
	Publish(ctx context.Context, topic string) error
	// Subscribe returns a channel that receives a signal after each publish on topic.
	// The channel is closed once ctx is done.
	Subscribe(ctx context.Context, topic string) (<-chan struct{}, error)
}

// Topic names used by the stores.
func NotificationsTopic(userID string) string { return "notifications:" + userID }

const (
	PostsTopic    = "posts"
	GroupsTopic   = "groups"
	MessagesTopic = "messages"
)

// MessagesChannelTopic is the topic for one chat channel.
func MessagesChannelTopic(channel string) string { return MessagesTopic + ":" + channel }

// MemoryBus is an in-process Bus.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewMemoryBus creates an empty in-process bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[chan struct{}]struct{})}
}

// Publish signals every subscriber of topic without blocking.
func (b *MemoryBus) Publish(_ context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan struct{}]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[topic], ch)
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

// Subscribers returns the number of live subscriptions on topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}
