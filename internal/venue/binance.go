package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	xhttp "MarketSentry/pkg/http"
)

// BinanceProtocol implements Protocol for Binance-style venues: streams are
// composed into the dial URL's query string (no in-band subscribe message),
// and keep-alive pongs arrive as WebSocket control frames.
type BinanceProtocol struct {
	// symbolToInstrument maps a lower-cased venue stream symbol back to its
	// normalized instrument id.
	symbolToInstrument map[string]string
}

// NewBinanceProtocol builds a Binance protocol for the given instruments.
func NewBinanceProtocol(instruments []InstrumentConfig) *BinanceProtocol {
	m := make(map[string]string, len(instruments))
	for _, inst := range instruments {
		m[strings.ToLower(inst.VenueSymbol)] = inst.Instrument
	}
	return &BinanceProtocol{symbolToInstrument: m}
}

func (p *BinanceProtocol) DialURL(cfg Config) string {
	streams := make([]string, 0, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		streams = append(streams, fmt.Sprintf("%s@depth20@100ms", strings.ToLower(inst.VenueSymbol)))
		streams = append(streams, fmt.Sprintf("%s@markPrice", strings.ToLower(inst.VenueSymbol)))
	}
	return fmt.Sprintf("%s/stream?streams=%s", cfg.WSURL, strings.Join(streams, "/"))
}

// SubscribeMessages is empty: Binance composes its subscription entirely
// into the dial URL's query string.
func (p *BinanceProtocol) SubscribeMessages(Config) ([][]byte, error) { return nil, nil }

func (p *BinanceProtocol) Keepalive() Keepalive { return NewFramePingPong() }

type binanceEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type binanceDepthLevel [2]string

type binanceDepthPayload struct {
	LastUpdateID int64                `json:"lastUpdateId"`
	Bids         []binanceDepthLevel  `json:"bids"`
	Asks         []binanceDepthLevel  `json:"asks"`
}

type binanceMarkPricePayload struct {
	Symbol      string `json:"s"`
	MarkPrice   string `json:"p"`
	IndexPrice  string `json:"i"`
	FundingRate string `json:"r"`
	NextFunding int64  `json:"T"`
}

func (p *BinanceProtocol) Decode(messageType int, data []byte, now time.Time) (Decoded, error) {
	var env binanceEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Decoded{}, fmt.Errorf("binance: unmarshal envelope: %w", err)
	}

	parts := strings.SplitN(env.Stream, "@", 2)
	if len(parts) != 2 {
		return Decoded{Ignored: true}, nil
	}
	instrument, ok := p.symbolToInstrument[parts[0]]
	if !ok {
		return Decoded{Ignored: true}, nil
	}

	switch {
	case strings.HasPrefix(parts[1], "depth"):
		var payload binanceDepthPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return Decoded{}, fmt.Errorf("binance: unmarshal depth: %w", err)
		}
		return Decoded{Book: &RawBookUpdate{
			Instrument:    instrument,
			VenueTime:     now,
			SequenceID:    payload.LastUpdateID,
			Bids:          levelsFromPairs(payload.Bids),
			Asks:          levelsFromPairs(payload.Asks),
			DepthCaptured: len(payload.Bids),
		}}, nil
	case strings.HasPrefix(parts[1], "markPrice"):
		var payload binanceMarkPricePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return Decoded{}, fmt.Errorf("binance: unmarshal markPrice: %w", err)
		}
		next := time.UnixMilli(payload.NextFunding)
		return Decoded{Ticker: &RawTickerUpdate{
			Instrument:    instrument,
			VenueTime:     now,
			LastPrice:     payload.MarkPrice,
			MarkPrice:     &payload.MarkPrice,
			IndexPrice:    &payload.IndexPrice,
			FundingRate:   &payload.FundingRate,
			NextFundingAt: &next,
		}}, nil
	default:
		return Decoded{Ignored: true}, nil
	}
}

func levelsFromPairs(pairs []binanceDepthLevel) []RawLevel {
	levels := make([]RawLevel, 0, len(pairs))
	for _, pr := range pairs {
		levels = append(levels, RawLevel{Price: pr[0], Quantity: pr[1]})
	}
	return levels
}

// BinanceRESTFetcher implements RESTFetcher against Binance's depth REST
// endpoint, used by the adapter's degraded-mode poller.
type BinanceRESTFetcher struct {
	client *xhttp.Client
}

// NewBinanceRESTFetcher builds a fetcher over the teacher's generic
// pkg/http.Client, reused here instead of a bespoke HTTP stack.
func NewBinanceRESTFetcher() *BinanceRESTFetcher {
	return &BinanceRESTFetcher{client: xhttp.NewClient(xhttp.WithTimeout(5 * time.Second))}
}

func (f *BinanceRESTFetcher) FetchBook(cfg Config, inst InstrumentConfig, now time.Time) (*RawBookUpdate, error) {
	var payload binanceDepthPayload
	err := f.client.SendAndParse(context.Background(), &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/api/v3/depth", cfg.RESTBaseURL),
		QueryParams: map[string][]string{
			"symbol": {strings.ToUpper(inst.VenueSymbol)},
			"limit":  {"20"},
		},
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("binance REST depth for %s: %w", inst.Instrument, err)
	}
	return &RawBookUpdate{
		Instrument:    inst.Instrument,
		VenueTime:     now,
		SequenceID:    payload.LastUpdateID,
		Bids:          levelsFromPairs(payload.Bids),
		Asks:          levelsFromPairs(payload.Asks),
		DepthCaptured: len(payload.Bids),
	}, nil
}
