package s3blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// multipart parts must be at least 5 MiB per the S3 API, except the last.
const minPartSize int64 = 5 * 1024 * 1024

// Writer uploads objects to the configured bucket.
type Writer struct {
	client *Client
	logger *slog.Logger
}

var _ domain.BlobWriter = (*Writer)(nil)

func NewWriter(client *Client, logger *slog.Logger) *Writer {
	return &Writer{
		client: client,
		logger: logger.With(slog.String("component", "s3blob.writer")),
	}
}

// Put uploads the body as a single object.
func (w *Writer) Put(ctx context.Context, path string, body io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(w.client.Bucket()),
		Key:    aws.String(path),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := w.client.S3().PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3blob: put %s: %w", path, err)
	}
	w.logger.DebugContext(ctx, "object stored", slog.String("path", path))
	return nil
}

// PutMultipart streams the body through the SDK's concurrent uploader.
// partSize below the S3 minimum is clamped to 5 MiB.
func (w *Writer) PutMultipart(ctx context.Context, path string, body io.Reader, partSize int64) error {
	if partSize < minPartSize {
		partSize = minPartSize
	}
	uploader := manager.NewUploader(w.client.S3(), func(u *manager.Uploader) {
		u.PartSize = partSize
	})
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.client.Bucket()),
		Key:    aws.String(path),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("s3blob: multipart put %s: %w", path, err)
	}
	w.logger.DebugContext(ctx, "multipart object stored",
		slog.String("path", path),
		slog.Int64("part_size", partSize))
	return nil
}
