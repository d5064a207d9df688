package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbot/internal/domain"
)

type fakeWriter struct {
	path        string
	contentType string
	body        []byte
	err         error
}

func (w *fakeWriter) Put(_ context.Context, path string, body io.Reader, contentType string) error {
	if w.err != nil {
		return w.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	w.path = path
	w.contentType = contentType
	w.body = data
	return nil
}

func (w *fakeWriter) PutMultipart(ctx context.Context, path string, body io.Reader, _ int64) error {
	return w.Put(ctx, path, body, "")
}

type fakeOppStore struct {
	rows []domain.Candidate
	err  error
}

func (s *fakeOppStore) ListBefore(context.Context, time.Time) ([]domain.Candidate, error) {
	return s.rows, s.err
}

type fakeTradeStore struct {
	rows []domain.ExecutionResult
	err  error
}

func (s *fakeTradeStore) ListBefore(context.Context, time.Time) ([]domain.ExecutionResult, error) {
	return s.rows, s.err
}

func newTestArchiver(w domain.BlobWriter, opps OpportunityArchiveStore, trades TradeArchiveStore) *Archiver {
	return NewArchiver(w, opps, trades, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestArchiveOpportunities(t *testing.T) {
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	writer := &fakeWriter{}
	opps := &fakeOppStore{rows: []domain.Candidate{
		{ID: "a", Symbol: "BTC/USDT", BuyMarket: "binance", SellMarket: "kraken"},
		{ID: "b", Symbol: "ETH/USDT", BuyMarket: "coinbase", SellMarket: "okx"},
	}}

	a := newTestArchiver(writer, opps, &fakeTradeStore{})

	count, err := a.ArchiveOpportunities(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, "archive/opportunities/2026-08.jsonl", writer.path)
	assert.Equal(t, "application/x-ndjson", writer.contentType)

	lines := strings.Split(strings.TrimRight(string(writer.body), "\n"), "\n")
	require.Len(t, lines, 2)
	var first domain.Candidate
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "a", first.ID)
	assert.Equal(t, "BTC/USDT", first.Symbol)
}

func TestArchiveTradesEmpty(t *testing.T) {
	writer := &fakeWriter{}
	a := newTestArchiver(writer, &fakeOppStore{}, &fakeTradeStore{})

	count, err := a.ArchiveTrades(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Empty(t, writer.path, "no object should be written for an empty range")
}

func TestArchiveQueryError(t *testing.T) {
	boom := errors.New("connection refused")
	a := newTestArchiver(&fakeWriter{}, &fakeOppStore{err: boom}, &fakeTradeStore{err: boom})

	_, err := a.ArchiveOpportunities(context.Background(), time.Now())
	require.ErrorIs(t, err, boom)

	_, err = a.ArchiveTrades(context.Background(), time.Now())
	require.ErrorIs(t, err, boom)
}

func TestArchiveUploadError(t *testing.T) {
	boom := errors.New("bucket gone")
	writer := &fakeWriter{err: boom}
	trades := &fakeTradeStore{rows: []domain.ExecutionResult{{ID: "t1", Symbol: "BTC/USDT"}}}

	a := newTestArchiver(writer, &fakeOppStore{}, trades)

	_, err := a.ArchiveTrades(context.Background(), time.Now())
	require.ErrorIs(t, err, boom)
}

func TestMarshalJSONLNoHTMLEscaping(t *testing.T) {
	buf, err := marshalJSONL([]domain.ExecutionResult{{ID: "t1", Error: "price < limit"}})
	require.NoError(t, err)
	assert.True(t, bytes.Contains(buf, []byte("price < limit")))
}
