package venue

import "github.com/gorilla/websocket"

// Keepalive encapsulates one venue's ping/pong protocol so the adapter's
// connection lifecycle never needs to know whether pongs arrive as control
// frames or in-band text messages. This is the Open Question decision from
// spec.md §9: the source treats OKX pongs as text messages and Binance
// pongs as WebSocket control frames, and mishandling either causes spurious
// reconnects every ping interval.
type Keepalive interface {
	// Install wires up any connection-level handler needed to observe
	// pongs (e.g. gorilla's SetPongHandler for control-frame pongs). onPong
	// is called whenever a pong is observed. Implementations that observe
	// pongs via HandleMessage instead may leave this a no-op.
	Install(conn *websocket.Conn, onPong func())
	// Ping sends one keep-alive ping on conn.
	Ping(conn *websocket.Conn) error
	// HandleMessage is given every inbound message before venue decoding.
	// It returns true if the message was a keep-alive message and should
	// not be passed on to the venue decoder.
	HandleMessage(messageType int, data []byte, onPong func()) bool
}

// framePingPong is the Binance-style keepalive: pings and pongs are
// WebSocket control frames handled by gorilla's connection machinery, not
// by application-level message parsing.
type framePingPong struct{}

// NewFramePingPong returns the control-frame keepalive strategy.
func NewFramePingPong() Keepalive { return framePingPong{} }

func (framePingPong) Install(conn *websocket.Conn, onPong func()) {
	conn.SetPongHandler(func(string) error {
		onPong()
		return nil
	})
}

func (framePingPong) Ping(conn *websocket.Conn) error {
	return conn.WriteMessage(websocket.PingMessage, nil)
}

func (framePingPong) HandleMessage(int, []byte, func()) bool {
	// Control frames never reach the application read loop as a
	// (messageType, data) pair from ReadMessage; gorilla intercepts them.
	return false
}

// textPingPong is the OKX-style keepalive: both ping and pong are ordinary
// text messages that arrive through the normal read loop and must be
// intercepted before venue decoding, or the decoder would try to parse
// "pong" as a market data frame on every ping interval.
type textPingPong struct{}

// NewTextPingPong returns the in-band text keepalive strategy.
func NewTextPingPong() Keepalive { return textPingPong{} }

func (textPingPong) Install(*websocket.Conn, func()) {}

func (textPingPong) Ping(conn *websocket.Conn) error {
	return conn.WriteMessage(websocket.TextMessage, []byte("ping"))
}

func (textPingPong) HandleMessage(messageType int, data []byte, onPong func()) bool {
	if messageType == websocket.TextMessage && string(data) == "pong" {
		onPong()
		return true
	}
	return false
}
