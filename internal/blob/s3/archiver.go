package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// Narrow store interfaces for the archiver: it only needs the time-ranged
// query, not the full store surface.

// OpportunityArchiveStore provides read access to opportunities for
// archival purposes.
type OpportunityArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Candidate, error)
}

// TradeArchiveStore provides read access to trades for archival purposes.
type TradeArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ExecutionResult, error)
}

// Archiver implements domain.Archiver by querying the stores for old rows,
// serialising them to JSONL, and uploading the result to the blob store.
//
// Deletion of the archived rows from the primary store is intentionally NOT
// performed here; that is a separate, explicit step executed after the
// archive has been verified.
type Archiver struct {
	writer        domain.BlobWriter
	opportunities OpportunityArchiveStore
	trades        TradeArchiveStore
	logger        *slog.Logger
}

var _ domain.Archiver = (*Archiver)(nil)

// NewArchiver creates a new Archiver.
func NewArchiver(
	writer domain.BlobWriter,
	opportunities OpportunityArchiveStore,
	trades TradeArchiveStore,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer:        writer,
		opportunities: opportunities,
		trades:        trades,
		logger:        logger.With(slog.String("component", "s3blob.archiver")),
	}
}

// ArchiveOpportunities uploads all opportunities detected before the cutoff
// to archive/opportunities/YYYY-MM.jsonl and returns how many were written.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.opportunities.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	return archive(ctx, a, "opportunities", before, rows)
}

// ArchiveTrades uploads all trades executed before the cutoff to
// archive/trades/YYYY-MM.jsonl and returns how many were written.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	return archive(ctx, a, "trades", before, rows)
}

func archive[T any](ctx context.Context, a *Archiver, kind string, before time.Time, rows []T) (int64, error) {
	if len(rows) == 0 {
		a.logger.InfoContext(ctx, "nothing to archive", slog.String("kind", kind))
		return 0, nil
	}

	buf, err := marshalJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path := archivePath(kind, before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	count := int64(len(rows))
	a.logger.InfoContext(ctx, "archive written",
		slog.String("kind", kind),
		slog.String("path", path),
		slog.Int64("rows", count))
	return count, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/opportunities/2026-08.jsonl
//	archive/trades/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON, one
// compact document per line.
func marshalJSONL[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, row := range rows {
		if err := enc.Encode(row); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
