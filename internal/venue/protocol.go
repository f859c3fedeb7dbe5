package venue

import "time"

// Decoded is the result of decoding one inbound wire message. At most one
// of Book/Ticker is non-nil; Ignored is set for frames the venue sends that
// carry no market data (acks, heartbeats already consumed by Keepalive,
// subscription confirmations).
type Decoded struct {
	Book    *RawBookUpdate
	Ticker  *RawTickerUpdate
	Ignored bool
}

// Protocol encapsulates everything that differs between venues: how to
// reach the socket, how to subscribe, how to decode inbound frames, and
// which keepalive strategy applies. internal/venue/adapter.go is written
// once against this interface; binance.go and okx.go are its two
// implementations.
type Protocol interface {
	// DialURL returns the full WebSocket URL to dial. For venues that
	// compose streams into the URL itself (query-string subscription),
	// this already encodes the requested instruments.
	DialURL(cfg Config) string
	// SubscribeMessages returns JSON (or other) messages to send right
	// after connecting, for venues using in-band subscribe messages. Venues
	// that subscribe purely via DialURL return nil.
	SubscribeMessages(cfg Config) ([][]byte, error)
	// Decode parses one inbound message. messageType is the gorilla
	// websocket frame type (TextMessage/BinaryMessage).
	Decode(messageType int, data []byte, now time.Time) (Decoded, error)
	// Keepalive returns this venue's ping/pong strategy.
	Keepalive() Keepalive
}

// RESTFetcher is the degraded-mode polling contract: given one instrument,
// fetch a fresh order-book snapshot over REST. Implementations flag the
// result Source: SourceREST via normalizeBook's source parameter at the
// call site in adapter.go (pollOne, driven by restPollLoop).
type RESTFetcher interface {
	FetchBook(cfg Config, instrument InstrumentConfig, now time.Time) (*RawBookUpdate, error)
}
