package mq

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
)

const memoryBuffer = 64

// MemoryBackend delivers messages inside the process. A subscriber only sees
// messages published after it subscribed, and a full subscriber buffer drops
// new messages for that subscriber.
type MemoryBackend struct {
	mu     sync.Mutex
	subs   map[string][]chan Message
	seq    int
	closed bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{subs: map[string][]chan Message{}}
}

func (b *MemoryBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrClosed
	}

	b.seq++
	id := strconv.Itoa(b.seq)
	for _, ch := range b.subs[channel] {
		msg := Message{ID: id, Data: append([]byte(nil), data...), Attributes: copyAttrs(attrs)}
		select {
		case ch <- msg:
		default:
		}
	}
	return id, nil
}

func (b *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}

	ch := make(chan Message, memoryBuffer)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()
	defer b.unsubscribe(channel, ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return ErrClosed
			}
			_ = handler(ctx, msg)
		}
	}
}

// Subscribers reports how many subscribers are attached to channel.
func (b *MemoryBackend) Subscribers(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[channel])
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, list := range b.subs {
		for _, ch := range list {
			close(ch)
		}
	}
	b.subs = map[string][]chan Message{}
	return nil
}

func (b *MemoryBackend) unsubscribe(channel string, ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[channel]
	for i, c := range list {
		if c == ch {
			b.subs[channel] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func copyAttrs(attrs map[string]string) map[string]string {
	if attrs == nil {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
