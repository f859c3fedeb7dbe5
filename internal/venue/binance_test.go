package venue

import (
	"testing"
	"time"
)

func TestBinanceProtocol_DecodeDepth(t *testing.T) {
	p := NewBinanceProtocol([]InstrumentConfig{{Instrument: "BTC-USDT", VenueSymbol: "BTCUSDT"}})
	msg := []byte(`{"stream":"btcusdt@depth20@100ms","data":{"lastUpdateId":123,"bids":[["100.00","1.5"]],"asks":[["101.00","2.0"]]}}`)

	decoded, err := p.Decode(1, msg, time.Now())
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if decoded.Book == nil {
		t.Fatalf("expected a book update")
	}
	if decoded.Book.Instrument != "BTC-USDT" {
		t.Fatalf("expected instrument BTC-USDT, got %s", decoded.Book.Instrument)
	}
	if decoded.Book.SequenceID != 123 {
		t.Fatalf("expected sequence 123, got %d", decoded.Book.SequenceID)
	}
	if len(decoded.Book.Bids) != 1 || decoded.Book.Bids[0].Price != "100.00" {
		t.Fatalf("unexpected bids: %+v", decoded.Book.Bids)
	}
}

func TestBinanceProtocol_DecodeUnknownSymbolIsIgnored(t *testing.T) {
	p := NewBinanceProtocol([]InstrumentConfig{{Instrument: "BTC-USDT", VenueSymbol: "BTCUSDT"}})
	msg := []byte(`{"stream":"ethusdt@depth20@100ms","data":{}}`)
	decoded, err := p.Decode(1, msg, time.Now())
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if !decoded.Ignored {
		t.Fatalf("expected unconfigured symbol to be ignored")
	}
}

func TestBinanceProtocol_DialURLComposesStreams(t *testing.T) {
	p := NewBinanceProtocol([]InstrumentConfig{{Instrument: "BTC-USDT", VenueSymbol: "BTCUSDT"}})
	cfg := Config{WSURL: "wss://stream.binance.com:9443", Instruments: []InstrumentConfig{{Instrument: "BTC-USDT", VenueSymbol: "BTCUSDT"}}}
	url := p.DialURL(cfg)
	if url != "wss://stream.binance.com:9443/stream?streams=btcusdt@depth20@100ms/btcusdt@markPrice" {
		t.Fatalf("unexpected dial url: %s", url)
	}
}
