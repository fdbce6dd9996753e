package websocket

import (
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestHub(config *HubConfig) *Hub {
	return NewHub(config, zap.NewNop())
}

// TestShouldBroadcastEvent tests per-event-type broadcast gating
func TestShouldBroadcastEvent(t *testing.T) {
	hub := newTestHub(&HubConfig{
		BroadcastDetections: true,
		BroadcastRequests:   false,
		BroadcastSystem:     true,
	})

	cases := map[EventType]bool{
		EventTypeDetection:    true,
		EventTypeRequestLog:   false,
		EventTypeSystemStatus: true,
		EventTypeConnection:   true,
		EventType("unknown"):  false,
	}
	for eventType, want := range cases {
		if got := hub.shouldBroadcastEvent(eventType); got != want {
			t.Errorf("%s: expected %v, got %v", eventType, want, got)
		}
	}
}

// TestBroadcastEventQueues tests that enabled events reach the broadcast channel
func TestBroadcastEventQueues(t *testing.T) {
	hub := newTestHub(&HubConfig{BroadcastDetections: true})

	hub.BroadcastEvent(Event{Type: EventTypeDetection, Timestamp: time.Now()})
	hub.BroadcastEvent(Event{Type: EventTypeRequestLog, Timestamp: time.Now()})

	if got := len(hub.broadcast); got != 1 {
		t.Errorf("Expected 1 queued event, got %d", got)
	}
}

// TestConnectionEvents tests that register/unregister notify the other clients
func TestConnectionEvents(t *testing.T) {
	hub := newTestHub(&HubConfig{})

	watcher := &Client{ID: "watcher", Send: make(chan Event, 4)}
	hub.clients[watcher] = true

	waitEvent := func(t *testing.T) Event {
		t.Helper()
		select {
		case event := <-watcher.Send:
			return event
		case <-time.After(2 * time.Second):
			t.Fatal("Expected a connection event, got none")
			return Event{}
		}
	}

	newcomer := &Client{ID: "newcomer", Send: make(chan Event, 4)}

	t.Run("Connected", func(t *testing.T) {
		hub.registerClient(newcomer)

		event := waitEvent(t)
		if event.Type != EventTypeConnection {
			t.Fatalf("Expected connection event, got %s", event.Type)
		}
		data, ok := event.Data.(ConnectionEvent)
		if !ok || data.Action != "connected" || data.ClientID != "newcomer" {
			t.Errorf("Unexpected event data: %+v", event.Data)
		}
		if len(newcomer.Send) != 0 {
			t.Error("The new client must not receive its own connection event")
		}
	})

	t.Run("Disconnected", func(t *testing.T) {
		hub.unregisterClient(newcomer)

		event := waitEvent(t)
		data, ok := event.Data.(ConnectionEvent)
		if !ok || data.Action != "disconnected" || data.ClientID != "newcomer" {
			t.Errorf("Unexpected event data: %+v", event.Data)
		}
	})
}

// TestBroadcastToOthers tests the exclusion and subscription filters
func TestBroadcastToOthers(t *testing.T) {
	hub := newTestHub(&HubConfig{})

	sender := &Client{ID: "sender", Send: make(chan Event, 1)}
	peer := &Client{ID: "peer", Send: make(chan Event, 1)}
	filtered := &Client{
		ID:           "filtered",
		Send:         make(chan Event, 1),
		Subscription: &SubscriptionRequest{Events: []EventType{EventTypeDetection}},
	}
	hub.clients[sender] = true
	hub.clients[peer] = true
	hub.clients[filtered] = true

	hub.broadcastToOthers(Event{Type: EventTypeConnection, Timestamp: time.Now()}, sender)

	if len(sender.Send) != 0 {
		t.Error("Excluded client must not receive the event")
	}
	if len(peer.Send) != 1 {
		t.Errorf("Expected 1 event for peer, got %d", len(peer.Send))
	}
	if len(filtered.Send) != 0 {
		t.Error("Subscription filter must apply to targeted broadcasts")
	}
}

// TestCheckOrigin tests the origin allow list
func TestCheckOrigin(t *testing.T) {
	newRequest := func(origin string) *http.Request {
		req, _ := http.NewRequest("GET", "/ws", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		return req
	}

	t.Run("Wildcard", func(t *testing.T) {
		hub := newTestHub(&HubConfig{AllowedOrigins: []string{"*"}})
		if !hub.checkOrigin(newRequest("https://evil.example")) {
			t.Error("Wildcard must allow any origin")
		}
	})

	t.Run("ExactMatch", func(t *testing.T) {
		hub := newTestHub(&HubConfig{AllowedOrigins: []string{"https://dash.example"}})
		if !hub.checkOrigin(newRequest("https://dash.example")) {
			t.Error("Listed origin rejected")
		}
		if hub.checkOrigin(newRequest("https://other.example")) {
			t.Error("Unlisted origin accepted")
		}
	})

	t.Run("NoOriginHeader", func(t *testing.T) {
		hub := newTestHub(&HubConfig{AllowedOrigins: []string{"https://dash.example"}})
		if !hub.checkOrigin(newRequest("")) {
			t.Error("Requests without an Origin header must pass")
		}
	})
}

// TestSubscriptionFilter tests per-client event filtering
func TestSubscriptionFilter(t *testing.T) {
	hub := newTestHub(&HubConfig{})
	event := Event{Type: EventTypeDetection}

	unfiltered := &Client{ID: "c1"}
	if !hub.shouldSendToClient(unfiltered, event) {
		t.Error("Clients without a subscription receive everything")
	}

	subscribed := &Client{ID: "c2", Subscription: &SubscriptionRequest{
		Events: []EventType{EventTypeDetection},
	}}
	if !hub.shouldSendToClient(subscribed, event) {
		t.Error("Subscribed event type filtered out")
	}

	other := &Client{ID: "c3", Subscription: &SubscriptionRequest{
		Events: []EventType{EventTypeRequestLog},
	}}
	if hub.shouldSendToClient(other, event) {
		t.Error("Unsubscribed event type delivered")
	}
}

func TestGetStats(t *testing.T) {
	hub := newTestHub(&HubConfig{})
	stats := hub.GetStats()
	if stats.ActiveConnections != 0 || stats.TotalConnections != 0 {
		t.Errorf("Fresh hub must report zero connections: %+v", stats)
	}
}
