package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

type memBlobs struct {
	objects map[string][]byte
	putErr  error
}

func (m *memBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[path] = b
	return nil
}

func (m *memBlobs) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

type memAudit struct {
	entries []domain.AuditEntry
	logged  []string
	deleted []time.Time
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.logged = append(a.logged, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return a.entries, nil
}

func (a *memAudit) ListBefore(_ context.Context, before time.Time) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range a.entries {
		if e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *memAudit) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	a.deleted = append(a.deleted, before)
	var n int64
	for _, e := range a.entries {
		if e.CreatedAt.Before(before) {
			n++
		}
	}
	return n, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchivePath(t *testing.T) {
	cutoff := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "archive/audit/2025-01/20250131T000000Z.jsonl", archivePath("audit", cutoff))
}

func TestArchiveAudit(t *testing.T) {
	cutoff := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	audit := &memAudit{entries: []domain.AuditEntry{
		{ID: 1, Event: "wizard.created", Detail: map[string]any{"session_id": "s1"}, CreatedAt: cutoff.Add(-48 * time.Hour)},
		{ID: 2, Event: "offer.submitted", Detail: map[string]any{"offer_id": "o1"}, CreatedAt: cutoff.Add(-time.Hour)},
		{ID: 3, Event: "wizard.created", CreatedAt: cutoff.Add(time.Hour)},
	}}
	blobs := &memBlobs{}
	a := NewAuditArchiver(blobs, blobs, audit, testLogger())
	a.SetPruner(audit)

	n, err := a.ArchiveAudit(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	obj, ok := blobs.objects["archive/audit/2025-02/20250201T000000Z.jsonl"]
	require.True(t, ok)

	var events []string
	sc := bufio.NewScanner(bytes.NewReader(obj))
	for sc.Scan() {
		var e domain.AuditEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		events = append(events, e.Event)
	}
	assert.Equal(t, []string{"wizard.created", "offer.submitted"}, events)
	assert.Equal(t, []time.Time{cutoff}, audit.deleted)
	assert.Equal(t, []string{"archive.audit"}, audit.logged)
}

func TestArchiveAuditWithoutPrunerKeepsRows(t *testing.T) {
	cutoff := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	audit := &memAudit{entries: []domain.AuditEntry{{ID: 1, Event: "wizard.created", CreatedAt: cutoff.Add(-time.Hour)}}}
	blobs := &memBlobs{}

	n, err := NewAuditArchiver(blobs, nil, audit, testLogger()).ArchiveAudit(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Empty(t, audit.deleted)
}

func TestArchiveAuditNothingToDo(t *testing.T) {
	audit := &memAudit{}
	blobs := &memBlobs{}
	n, err := NewAuditArchiver(blobs, blobs, audit, testLogger()).ArchiveAudit(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, blobs.objects)
	assert.Empty(t, audit.logged)
}

func TestArchiveAuditUploadFailureDoesNotPrune(t *testing.T) {
	cutoff := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	audit := &memAudit{entries: []domain.AuditEntry{{ID: 1, Event: "wizard.created", CreatedAt: cutoff.Add(-time.Hour)}}}
	blobs := &memBlobs{putErr: errors.New("bucket gone")}
	a := NewAuditArchiver(blobs, blobs, audit, testLogger())
	a.SetPruner(audit)

	_, err := a.ArchiveAudit(context.Background(), cutoff)
	require.Error(t, err)
	assert.Empty(t, audit.deleted)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("e2.example.com", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("http://minio:9000", true))
}
