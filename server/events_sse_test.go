package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/spin-tracker/events"
	"github.com/onnwee/spin-tracker/store"
)

func TestEventsSSEStreamsBusEvents(t *testing.T) {
	mux, deps := newTestMux(t)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	// Give the handler a moment to register its subscriptions before
	// publishing.
	deadline := time.Now().Add(2 * time.Second)
	published := false
	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for !published && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
		deps.Bus.Publish(events.NewBitDonation, store.BitDonation{
			Timestamp: "2024-01-01T00:00:00.000Z", Username: "alice", Bits: 1500, SpinTriggered: true,
		})
		published = true
	}

	var gotEvent, gotData bool
	timeout := time.After(3 * time.Second)
	for !(gotEvent && gotData) {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before event arrived")
			}
			if line == "event: "+events.NewBitDonation {
				gotEvent = true
			}
			if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"alice"`) {
				gotData = true
			}
		case <-timeout:
			t.Fatalf("timed out waiting for SSE event (event=%v data=%v)", gotEvent, gotData)
		}
	}
}

func TestEventsSSEUnsubscribesOnDisconnect(t *testing.T) {
	mux, deps := newTestMux(t)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	cancel()

	// After the client is gone the handler must drop its subscriptions;
	// publishing must not panic or block.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		deps.Bus.Publish(events.SpinStatusChanged, nil)
		time.Sleep(20 * time.Millisecond)
	}
}

func TestEventsSSERejectsNonGet(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /events status = %d, want 405", rec.Code)
	}
}
