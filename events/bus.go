// Package events provides the in-process publish/subscribe bus that decouples
// record creation from downstream observers (dashboard event streams, future
// integrations). Publishing is synchronous fan-out in subscription order; a
// misbehaving subscriber is isolated so it cannot break recording.
package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Canonical event names surfaced by the tracker core.
const (
	NewBitDonation    = "new-bit-donation"
	NewGiftSub        = "new-gift-sub"
	NewSpinCommand    = "new-spin-command"
	SpinAlert         = "spin-alert"
	SpinStatusChanged = "spin-status-changed"
	ChatStatus        = "chat-connection-status"
)

// All lists every canonical event name, in a stable order. The SSE endpoint
// subscribes to all of them.
func All() []string {
	return []string{NewBitDonation, NewGiftSub, NewSpinCommand, SpinAlert, SpinStatusChanged, ChatStatus}
}

// Handler receives the event payload. Handlers run on the publisher's
// goroutine; keep them short.
type Handler func(payload any)

// Token identifies a subscription for later removal.
type Token string

type subscription struct {
	token   Token
	handler Handler
}

// Bus is a synchronous in-process dispatcher. The zero value is not usable;
// call NewBus.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers handler for the named event and returns a token that
// Unsubscribe accepts.
func (b *Bus) Subscribe(event string, handler Handler) Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	tok := Token(uuid.New().String())
	b.subs[event] = append(b.subs[event], subscription{token: tok, handler: handler})
	return tok
}

// Unsubscribe removes the subscription identified by token. Unknown tokens
// are a no-op.
func (b *Bus) Unsubscribe(token Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for event, subs := range b.subs {
		for i, s := range subs {
			if s.token == token {
				b.subs[event] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers payload to every current subscriber of event, in
// subscription order. A panicking subscriber is recovered and logged; the
// remaining subscribers still run and the publisher never sees the failure.
func (b *Bus) Publish(event string, payload any) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[event]))
	copy(subs, b.subs[event])
	b.mu.RUnlock()

	for _, s := range subs {
		deliver(event, s.handler, payload)
	}
}

func deliver(event string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event subscriber panicked", slog.String("event", event), slog.Any("panic", r))
		}
	}()
	h(payload)
}
