// Package server exposes the HTTP API handlers.
package server

import (
	"sync"
	"time"

	"github.com/onnwee/spin-tracker/chat"
	"github.com/onnwee/spin-tracker/config"
	"github.com/onnwee/spin-tracker/events"
	"github.com/onnwee/spin-tracker/ledger"
	"github.com/onnwee/spin-tracker/resolver"
	"github.com/onnwee/spin-tracker/store"
)

// appVersion is stamped into export archive metadata and /status.
const appVersion = "1.0.0"

// Deps carries the collaborators the handlers operate on.
type Deps struct {
	Store    *store.Store
	Ledger   *ledger.Service
	Resolver *resolver.Resolver
	Settings *config.Manager
	Bus      *events.Bus
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	deps    Deps
	started time.Time

	chatMu     sync.RWMutex
	chatStatus chat.Status
}

// NewHandlers creates a new Handlers instance with the given dependencies.
// It tracks the latest chat connection status off the bus for /status.
func NewHandlers(deps Deps) *Handlers {
	h := &Handlers{deps: deps, started: time.Now()}
	deps.Bus.Subscribe(events.ChatStatus, func(payload any) {
		status, ok := payload.(chat.Status)
		if !ok {
			return
		}
		h.chatMu.Lock()
		h.chatStatus = status
		h.chatMu.Unlock()
	})
	return h
}

func (h *Handlers) lastChatStatus() chat.Status {
	h.chatMu.RLock()
	defer h.chatMu.RUnlock()
	return h.chatStatus
}
