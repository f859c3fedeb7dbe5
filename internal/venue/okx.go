package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	xhttp "MarketSentry/pkg/http"
)

// OKXProtocol implements Protocol for OKX-style venues: subscription is a
// JSON message sent after connect, and keep-alive uses an in-band text
// "ping"/"pong" exchange rather than WebSocket control frames.
type OKXProtocol struct {
	symbolToInstrument map[string]string
}

// NewOKXProtocol builds an OKX protocol for the given instruments.
func NewOKXProtocol(instruments []InstrumentConfig) *OKXProtocol {
	m := make(map[string]string, len(instruments))
	for _, inst := range instruments {
		m[inst.VenueSymbol] = inst.Instrument
	}
	return &OKXProtocol{symbolToInstrument: m}
}

func (p *OKXProtocol) DialURL(cfg Config) string { return cfg.WSURL }

type okxSubscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type okxSubscribeMessage struct {
	Op   string             `json:"op"`
	Args []okxSubscribeArg  `json:"args"`
}

func (p *OKXProtocol) SubscribeMessages(cfg Config) ([][]byte, error) {
	args := make([]okxSubscribeArg, 0, 2*len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		args = append(args,
			okxSubscribeArg{Channel: "books", InstID: inst.VenueSymbol},
			okxSubscribeArg{Channel: "tickers", InstID: inst.VenueSymbol},
		)
	}
	msg, err := json.Marshal(okxSubscribeMessage{Op: "subscribe", Args: args})
	if err != nil {
		return nil, fmt.Errorf("okx: marshal subscribe: %w", err)
	}
	return [][]byte{msg}, nil
}

func (p *OKXProtocol) Keepalive() Keepalive { return NewTextPingPong() }

type okxDepthLevel [4]string // price, size, deprecated, orderCount

type okxBooksPayload struct {
	Arg  okxSubscribeArg `json:"arg"`
	Data []struct {
		Bids []okxDepthLevel `json:"bids"`
		Asks []okxDepthLevel `json:"asks"`
		Seq  int64           `json:"seqId"`
		TS   string          `json:"ts"`
	} `json:"data"`
}

type okxTickersPayload struct {
	Arg  okxSubscribeArg `json:"arg"`
	Data []struct {
		Last        string `json:"last"`
		IndexPrice  string `json:"idxPx"`
		Volume24h   string `json:"vol24h"`
		TS          string `json:"ts"`
	} `json:"data"`
}

func (p *OKXProtocol) Decode(messageType int, data []byte, now time.Time) (Decoded, error) {
	var probe struct {
		Event string          `json:"event"`
		Arg   okxSubscribeArg `json:"arg"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Decoded{}, fmt.Errorf("okx: unmarshal probe: %w", err)
	}
	if probe.Event != "" {
		return Decoded{Ignored: true}, nil
	}

	instrument, ok := p.symbolToInstrument[probe.Arg.InstID]
	if !ok {
		return Decoded{Ignored: true}, nil
	}

	switch probe.Arg.Channel {
	case "books":
		var payload okxBooksPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return Decoded{}, fmt.Errorf("okx: unmarshal books: %w", err)
		}
		if len(payload.Data) == 0 {
			return Decoded{Ignored: true}, nil
		}
		d := payload.Data[0]
		venueTime := parseOKXTimestamp(d.TS, now)
		return Decoded{Book: &RawBookUpdate{
			Instrument:    instrument,
			VenueTime:     venueTime,
			SequenceID:    d.Seq,
			Bids:          okxLevelsFromQuads(d.Bids),
			Asks:          okxLevelsFromQuads(d.Asks),
			DepthCaptured: len(d.Bids),
		}}, nil
	case "tickers":
		var payload okxTickersPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return Decoded{}, fmt.Errorf("okx: unmarshal tickers: %w", err)
		}
		if len(payload.Data) == 0 {
			return Decoded{Ignored: true}, nil
		}
		d := payload.Data[0]
		venueTime := parseOKXTimestamp(d.TS, now)
		return Decoded{Ticker: &RawTickerUpdate{
			Instrument: instrument,
			VenueTime:  venueTime,
			LastPrice:  d.Last,
			IndexPrice: &d.IndexPrice,
			Volume24h:  d.Volume24h,
		}}, nil
	default:
		return Decoded{Ignored: true}, nil
	}
}

func okxLevelsFromQuads(quads []okxDepthLevel) []RawLevel {
	levels := make([]RawLevel, 0, len(quads))
	for _, q := range quads {
		levels = append(levels, RawLevel{Price: q[0], Quantity: q[1]})
	}
	return levels
}

func parseOKXTimestamp(ts string, fallback time.Time) time.Time {
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fallback
	}
	return time.UnixMilli(ms)
}

// OKXRESTFetcher implements RESTFetcher against OKX's order-book REST
// endpoint.
type OKXRESTFetcher struct {
	client *xhttp.Client
}

// NewOKXRESTFetcher builds a fetcher over the teacher's generic
// pkg/http.Client.
func NewOKXRESTFetcher() *OKXRESTFetcher {
	return &OKXRESTFetcher{client: xhttp.NewClient(xhttp.WithTimeout(5 * time.Second))}
}

type okxRESTBookResponse struct {
	Data []struct {
		Bids []okxDepthLevel `json:"bids"`
		Asks []okxDepthLevel `json:"asks"`
		TS   string          `json:"ts"`
	} `json:"data"`
}

func (f *OKXRESTFetcher) FetchBook(cfg Config, inst InstrumentConfig, now time.Time) (*RawBookUpdate, error) {
	var resp okxRESTBookResponse
	err := f.client.SendAndParse(context.Background(), &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/api/v5/market/books", cfg.RESTBaseURL),
		QueryParams: map[string][]string{
			"instId": {inst.VenueSymbol},
			"sz":     {"20"},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("okx REST book for %s: %w", inst.Instrument, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("okx REST book for %s: empty response", inst.Instrument)
	}
	d := resp.Data[0]
	return &RawBookUpdate{
		Instrument:    inst.Instrument,
		VenueTime:     parseOKXTimestamp(d.TS, now),
		Bids:          okxLevelsFromQuads(d.Bids),
		Asks:          okxLevelsFromQuads(d.Asks),
		DepthCaptured: len(d.Bids),
	}, nil
}
