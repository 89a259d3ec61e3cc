package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/spin-tracker/events"
)

// sseHeartbeatInterval keeps intermediaries from timing out idle streams.
const sseHeartbeatInterval = 25 * time.Second

type sseEvent struct {
	name    string
	payload any
}

// HandleEvents streams bus events to the client using Server-Sent Events.
// Every canonical event is forwarded as "event: <name>" with a JSON data
// line, which is what the dashboard UIs subscribe to for live updates.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Bus publishing is synchronous, so the handler must never block on the
	// client: events are queued and dropped when the client can't keep up.
	queue := make(chan sseEvent, 64)
	var tokens []events.Token
	for _, name := range events.All() {
		name := name
		tokens = append(tokens, h.deps.Bus.Subscribe(name, func(payload any) {
			select {
			case queue <- sseEvent{name: name, payload: payload}:
			default:
				slog.Warn("dropping event for slow SSE client", slog.String("event", name))
			}
		}))
	}
	defer func() {
		for _, tok := range tokens {
			h.deps.Bus.Unsubscribe(tok)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ctx := r.Context()
	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": heartbeat\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-queue:
			if _, err := w.Write([]byte("event: " + ev.name + "\ndata: ")); err != nil {
				return
			}
			if err := enc.Encode(ev.payload); err != nil {
				slog.Warn("failed to encode SSE payload", slog.Any("err", err))
				return
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
