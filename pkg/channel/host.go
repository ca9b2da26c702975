package channel

import (
	"context"
	"sync"
)

// Host is the embedded content's side of the boundary: postMessage into
// the content, and a subscription for text posted by the content.
type Host interface {
	PostMessage(ctx context.Context, text string) error
	Subscribe(fn func(text string)) (unsubscribe func())
}

// Loopback is an in-process Host. Native bindings call Deliver with text
// the web view posted and read the shell's replies from Outbox.
type Loopback struct {
	mu     sync.Mutex
	subs   map[int]func(string)
	nextID int
	outbox chan string
}

func NewLoopback(buffer int) *Loopback {
	return &Loopback{
		subs:   make(map[int]func(string)),
		outbox: make(chan string, buffer),
	}
}

func (l *Loopback) PostMessage(ctx context.Context, text string) error {
	select {
	case l.outbox <- text:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loopback) Subscribe(fn func(string)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// Deliver hands text from the content to every subscriber.
func (l *Loopback) Deliver(text string) {
	l.mu.Lock()
	subs := make([]func(string), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()
	for _, fn := range subs {
		fn(text)
	}
}

// Subscribers reports how many subscriptions are live.
func (l *Loopback) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// Outbox yields text posted into the content, in order.
func (l *Loopback) Outbox() <-chan string { return l.outbox }
