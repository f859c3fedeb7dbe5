package venue

import (
	"testing"
	"time"
)

func TestOKXProtocol_DecodeBooks(t *testing.T) {
	p := NewOKXProtocol([]InstrumentConfig{{Instrument: "BTC-USDT-SWAP", VenueSymbol: "BTC-USDT-SWAP"}})
	msg := []byte(`{"arg":{"channel":"books","instId":"BTC-USDT-SWAP"},"data":[{"bids":[["100.0","1","0","1"]],"asks":[["101.0","2","0","1"]],"seqId":555,"ts":"1690000000000"}]}`)

	decoded, err := p.Decode(1, msg, time.Now())
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if decoded.Book == nil {
		t.Fatalf("expected a book update")
	}
	if decoded.Book.SequenceID != 555 {
		t.Fatalf("expected seqId 555, got %d", decoded.Book.SequenceID)
	}
	if decoded.Book.VenueTime.UnixMilli() != 1690000000000 {
		t.Fatalf("expected venue timestamp to parse from ts field")
	}
}

func TestOKXProtocol_DecodeEventIsIgnored(t *testing.T) {
	p := NewOKXProtocol([]InstrumentConfig{{Instrument: "BTC-USDT-SWAP", VenueSymbol: "BTC-USDT-SWAP"}})
	msg := []byte(`{"event":"subscribe","arg":{"channel":"books","instId":"BTC-USDT-SWAP"}}`)
	decoded, err := p.Decode(1, msg, time.Now())
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if !decoded.Ignored {
		t.Fatalf("expected a subscribe ack event to be ignored")
	}
}

func TestOKXProtocol_SubscribeMessagesCoverAllInstruments(t *testing.T) {
	p := NewOKXProtocol(nil)
	cfg := Config{Instruments: []InstrumentConfig{{Instrument: "BTC-USDT-SWAP", VenueSymbol: "BTC-USDT-SWAP"}, {Instrument: "ETH-USDT-SWAP", VenueSymbol: "ETH-USDT-SWAP"}}}
	msgs, err := p.SubscribeMessages(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected a single batched subscribe message, got %d", len(msgs))
	}
}
