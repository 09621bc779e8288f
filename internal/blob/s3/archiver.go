package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// multipartWriter is implemented by writers that can split large uploads.
type multipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, contentType string, partSize int64) error
}

// AuditArchiver implements domain.Archiver. It copies audit rows older than
// the cutoff to a JSONL object and, when a pruner is attached, deletes them
// from the primary store once the object is confirmed present.
type AuditArchiver struct {
	writer  domain.BlobWriter
	checker domain.BlobChecker
	audit   domain.AuditStore
	pruner  domain.AuditPruner
	logger  *slog.Logger
}

// NewAuditArchiver creates an AuditArchiver. checker may be nil, in which
// case rows are never pruned.
func NewAuditArchiver(writer domain.BlobWriter, checker domain.BlobChecker, audit domain.AuditStore, logger *slog.Logger) *AuditArchiver {
	return &AuditArchiver{
		writer:  writer,
		checker: checker,
		audit:   audit,
		logger:  logger.With(slog.String("component", "audit_archiver")),
	}
}

// SetPruner enables deleting archived rows.
func (a *AuditArchiver) SetPruner(p domain.AuditPruner) { a.pruner = p }

// ArchiveAudit uploads every entry before the cutoff and returns how many
// were archived.
func (a *AuditArchiver) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		a.logger.InfoContext(ctx, "nothing to archive", slog.Time("before", before))
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if mp, ok := a.writer.(multipartWriter); ok && int64(len(buf)) > minPartSize {
		err = mp.PutMultipart(ctx, path, bytes.NewReader(buf), jsonlContentType, minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}

	count := int64(len(entries))
	detail := map[string]any{
		"path":   path,
		"count":  count,
		"before": before.UTC().Format(time.RFC3339),
	}

	if a.pruner != nil && a.checker != nil {
		ok, err := a.checker.Exists(ctx, path)
		if err != nil {
			return count, fmt.Errorf("s3blob: archive audit verify: %w", err)
		}
		if !ok {
			return count, fmt.Errorf("s3blob: archive audit verify %s: %w", path, domain.ErrNotFound)
		}
		pruned, err := a.pruner.DeleteBefore(ctx, before)
		if err != nil {
			return count, fmt.Errorf("s3blob: archive audit prune: %w", err)
		}
		detail["pruned"] = pruned
	}

	a.logger.InfoContext(ctx, "audit archived",
		slog.String("path", path),
		slog.Int64("count", count),
	)
	if err := a.audit.Log(ctx, "archive.audit", detail); err != nil {
		return count, fmt.Errorf("s3blob: archive audit log: %w", err)
	}
	return count, nil
}

// archivePath partitions archives by the month of the cutoff and names them
// after the cutoff itself so repeated runs never overwrite each other:
//
//	archive/audit/2025-01/20250131T000000Z.jsonl
func archivePath(kind string, before time.Time) string {
	b := before.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, b.Format("2006-01"), b.Format("20060102T150405Z"))
}

func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*AuditArchiver)(nil)
