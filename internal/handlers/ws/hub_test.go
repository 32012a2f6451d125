package ws

import (
	"testing"
	"time"
)

func newTestClient(userID uint) *ClientConnection {
	return &ClientConnection{
		UserID:     userID,
		LastPong:   time.Now(),
		PingTicker: time.NewTicker(time.Hour),
		CloseChan:  make(chan struct{}),
	}
}

func isShutDown(c *ClientConnection) bool {
	select {
	case <-c.CloseChan:
		return true
	default:
		return false
	}
}

func TestTrackShutsDownReplacedConnection(t *testing.T) {
	hub := NewHub()

	first := newTestClient(1)
	second := newTestClient(1)
	hub.track(first)
	hub.track(second)

	if !isShutDown(first) {
		t.Error("replaced connection was not shut down")
	}
	if isShutDown(second) {
		t.Error("new connection was shut down by the reconnect")
	}
	if hub.Count() != 1 {
		t.Errorf("Count() = %d, want 1", hub.Count())
	}
	if !hub.IsOnline(1) {
		t.Error("user should be online after reconnect")
	}
}

func TestRemoveIgnoresStaleConnection(t *testing.T) {
	hub := NewHub()

	first := newTestClient(2)
	second := newTestClient(2)
	hub.track(first)
	hub.track(second)

	// The old socket's teardown runs after the reconnect swapped it out.
	// It must only shut itself down, not take the live connection offline.
	hub.Remove(first)
	if !hub.IsOnline(2) {
		t.Error("stale teardown removed the live connection")
	}

	hub.Remove(second)
	if hub.IsOnline(2) {
		t.Error("user still online after removing the live connection")
	}
	if !isShutDown(second) {
		t.Error("live connection was not shut down on removal")
	}
}

func TestIsOnline(t *testing.T) {
	hub := NewHub()

	if hub.IsOnline(5) {
		t.Error("user online before any connection")
	}

	client := newTestClient(5)
	hub.track(client)
	if !hub.IsOnline(5) {
		t.Error("user offline after connecting")
	}

	hub.Remove(client)
	if hub.IsOnline(5) {
		t.Error("user online after disconnecting")
	}
}
