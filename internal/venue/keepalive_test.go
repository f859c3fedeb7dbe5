package venue

import (
	"testing"

	"github.com/gorilla/websocket"
)

func TestTextPingPong_ConsumesPongText(t *testing.T) {
	k := NewTextPingPong()
	called := false
	consumed := k.HandleMessage(websocket.TextMessage, []byte("pong"), func() { called = true })
	if !consumed {
		t.Fatalf("expected text pong to be consumed, not passed to the venue decoder")
	}
	if !called {
		t.Fatalf("expected onPong to fire for a text pong")
	}
}

func TestTextPingPong_DoesNotConsumeMarketData(t *testing.T) {
	k := NewTextPingPong()
	consumed := k.HandleMessage(websocket.TextMessage, []byte(`{"channel":"books"}`), func() {})
	if consumed {
		t.Fatalf("expected ordinary market data messages to pass through to the decoder")
	}
}

func TestFramePingPong_NeverConsumesApplicationMessages(t *testing.T) {
	k := NewFramePingPong()
	// Binance-style pongs never reach HandleMessage at all (gorilla's pong
	// handler intercepts the control frame before ReadMessage returns); any
	// (messageType, data) pair that does reach HandleMessage must pass
	// through untouched.
	if k.HandleMessage(websocket.TextMessage, []byte("pong"), func() {}) {
		t.Fatalf("frame-based keepalive must never consume an application-level message")
	}
}
