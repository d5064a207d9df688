// Package binance maintains a live top-of-book view over the Binance
// combined websocket stream and serves it through the quote provider
// interface. It is a thin market-data adapter: no order placement, no
// account endpoints.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/arbot/internal/domain"
)

const (
	// Market is the venue name this feed reports under.
	Market = "binance"

	// DefaultStreamURL is the public combined-stream endpoint.
	DefaultStreamURL = "wss://stream.binance.com:9443/stream"

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second

	// maxQuoteAge marks data older than this as stale; FetchQuote then
	// reports the market as down rather than serving a dead price.
	maxQuoteAge = 10 * time.Second
)

// Feed subscribes to bookTicker and partial-depth streams for a fixed set of
// symbols and keeps the most recent quote and book per symbol. Reads are
// served from that in-memory view, so FetchQuote never blocks on the network.
type Feed struct {
	streamURL string
	symbols   []string

	// streamToSymbol maps the exchange ticker ("BTCUSDT") back to the
	// normalized symbol ("BTC/USDT").
	streamToSymbol map[string]string

	mu     sync.RWMutex
	quotes map[string]domain.Quote
	books  map[string]domain.OrderBookSnapshot

	logger    *slog.Logger
	nowFn     func() time.Time
	closeOnce sync.Once
	done      chan struct{}
}

var _ domain.QuoteProvider = (*Feed)(nil)

// NewFeed creates a feed for the given normalized symbols (e.g. "BTC/USDT").
// Pass an empty streamURL to use the public endpoint.
func NewFeed(streamURL string, symbols []string, logger *slog.Logger) (*Feed, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("binance: at least one symbol is required")
	}
	if streamURL == "" {
		streamURL = DefaultStreamURL
	}

	reverse := make(map[string]string, len(symbols))
	for _, sym := range symbols {
		reverse[strings.ToUpper(strings.ReplaceAll(sym, "/", ""))] = sym
	}

	return &Feed{
		streamURL:      streamURL,
		symbols:        symbols,
		streamToSymbol: reverse,
		quotes:         make(map[string]domain.Quote),
		books:          make(map[string]domain.OrderBookSnapshot),
		logger:         logger.With(slog.String("component", "binance_feed")),
		nowFn:          time.Now,
		done:           make(chan struct{}),
	}, nil
}

// Run connects and consumes the stream until ctx is cancelled or Close is
// called. Reconnects with exponential backoff on disconnect.
func (f *Feed) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-f.done:
			return nil
		default:
		}

		f.logger.Warn("stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// Close stops the feed.
func (f *Feed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// FetchQuote serves the latest streamed top-of-book for symbol. It reports
// the market as down when no fresh data has arrived.
func (f *Feed) FetchQuote(_ context.Context, market, symbol string) (domain.Quote, error) {
	if market != Market {
		return domain.Quote{}, fmt.Errorf("binance: unknown market %q: %w", market, domain.ErrNotFound)
	}

	f.mu.RLock()
	quote, ok := f.quotes[symbol]
	f.mu.RUnlock()

	if !ok {
		return domain.Quote{}, fmt.Errorf("binance: no quote for %s yet: %w", symbol, domain.ErrMarketDown)
	}
	if f.nowFn().Sub(quote.Timestamp) > maxQuoteAge {
		return domain.Quote{}, fmt.Errorf("binance: quote for %s is stale: %w", symbol, domain.ErrMarketDown)
	}
	return quote, nil
}

// FetchBook serves the latest streamed partial depth for symbol, truncated
// to the requested number of levels per side.
func (f *Feed) FetchBook(_ context.Context, market, symbol string, depth int) (domain.OrderBookSnapshot, error) {
	if market != Market {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: unknown market %q: %w", market, domain.ErrNotFound)
	}

	f.mu.RLock()
	book, ok := f.books[symbol]
	f.mu.RUnlock()

	if !ok {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: no book for %s yet: %w", symbol, domain.ErrMarketDown)
	}
	if f.nowFn().Sub(book.Timestamp) > maxQuoteAge {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: book for %s is stale: %w", symbol, domain.ErrMarketDown)
	}

	if depth > 0 {
		if len(book.Bids) > depth {
			book.Bids = book.Bids[:depth]
		}
		if len(book.Asks) > depth {
			book.Asks = book.Asks[:depth]
		}
	}
	return book, nil
}

func (f *Feed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}

	url := f.streamURL + "?streams=" + strings.Join(f.streamNames(), "/")
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("binance: connect: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Drop the connection when ctx ends so ReadMessage unblocks.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-connCtx.Done():
		case <-f.done:
		}
		conn.Close()
	}()
	go f.pingLoop(connCtx, conn)

	f.logger.Info("stream connected", slog.Int("symbols", len(f.symbols)))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("binance: read: %w", err)
		}
		f.handleMessage(message)
	}
}

func (f *Feed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// streamNames builds the combined-stream subscription list: one bookTicker
// and one 20-level depth stream per symbol.
func (f *Feed) streamNames() []string {
	names := make([]string, 0, len(f.symbols)*2)
	for _, sym := range f.symbols {
		pair := strings.ToLower(strings.ReplaceAll(sym, "/", ""))
		names = append(names, pair+"@bookTicker", pair+"@depth20@100ms")
	}
	return names
}

// streamEnvelope is the combined-stream wrapper: {"stream": "...", "data": {...}}.
type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// bookTickerMessage is the payload of a <symbol>@bookTicker event.
type bookTickerMessage struct {
	Symbol string `json:"s"`
	BidPx  string `json:"b"`
	BidQty string `json:"B"`
	AskPx  string `json:"a"`
	AskQty string `json:"A"`
}

// depthMessage is the payload of a <symbol>@depth20 partial book event.
// Levels arrive as ["price", "qty"] string pairs.
type depthMessage struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

func (f *Feed) handleMessage(raw []byte) {
	var env streamEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return // drop unparseable frames
	}

	name, kind, ok := strings.Cut(env.Stream, "@")
	if !ok {
		return
	}
	symbol, ok := f.streamToSymbol[strings.ToUpper(name)]
	if !ok {
		return
	}

	switch {
	case kind == "bookTicker":
		f.applyBookTicker(symbol, env.Data)
	case strings.HasPrefix(kind, "depth"):
		f.applyDepth(symbol, env.Data)
	}
}

func (f *Feed) applyBookTicker(symbol string, data json.RawMessage) {
	var msg bookTickerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	bid, errB := strconv.ParseFloat(msg.BidPx, 64)
	ask, errA := strconv.ParseFloat(msg.AskPx, 64)
	if errB != nil || errA != nil || bid <= 0 || ask <= 0 {
		return
	}
	bidQty, _ := strconv.ParseFloat(msg.BidQty, 64)
	askQty, _ := strconv.ParseFloat(msg.AskQty, 64)

	quote := domain.Quote{
		Market: Market,
		Symbol: symbol,
		Bid:    bid,
		Ask:    ask,
		// bookTicker carries no trade price; mid is the closest proxy.
		Last:      (bid + ask) / 2,
		Volume:    bidQty + askQty,
		Timestamp: f.nowFn(),
	}

	f.mu.Lock()
	f.quotes[symbol] = quote
	f.mu.Unlock()
}

func (f *Feed) applyDepth(symbol string, data json.RawMessage) {
	var msg depthMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	book := domain.OrderBookSnapshot{
		Market:    Market,
		Symbol:    symbol,
		Bids:      parseLevels(msg.Bids),
		Asks:      parseLevels(msg.Asks),
		Timestamp: f.nowFn(),
	}
	if len(book.Bids) == 0 && len(book.Asks) == 0 {
		return
	}

	f.mu.Lock()
	f.books[symbol] = book
	f.mu.Unlock()
}

func parseLevels(raw [][2]string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		price, errP := strconv.ParseFloat(pair[0], 64)
		volume, errV := strconv.ParseFloat(pair[1], 64)
		if errP != nil || errV != nil || price <= 0 {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: price, Volume: volume})
	}
	return levels
}
