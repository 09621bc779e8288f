package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchiver struct {
	before time.Time
	n      int64
	err    error
}

func (f *fakeArchiver) ArchiveAudit(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return f.n, f.err
}

func newRunner(a *fakeArchiver, days int) *Runner {
	r := NewRunner(a, days, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestRunUsesRetentionCutoff(t *testing.T) {
	a := &fakeArchiver{n: 42}
	r := newRunner(a, 30)

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), a.before)
}

func TestRunWrapsArchiverError(t *testing.T) {
	boom := errors.New("s3 unavailable")
	r := newRunner(&fakeArchiver{err: boom}, 90)

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "2024-12-31T12:00:00Z")
}

func TestParseCron(t *testing.T) {
	_, err := ParseCron("0 3 * *")
	assert.Error(t, err)
	_, err = ParseCron("61 3 * * *")
	assert.ErrorContains(t, err, "61 3 * * *")

	s, err := ParseCron("0 3 1 * *")
	require.NoError(t, err)

	next := s.Next(time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC), next)

	next = s.Next(time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC), next, "next is strictly after")
}

func TestScheduleListsAndWeekdays(t *testing.T) {
	s, err := ParseCron("15,45 * * * 1")
	require.NoError(t, err)

	// 2025-01-05 is a Sunday.
	next := s.Next(time.Date(2025, 1, 5, 23, 50, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 1, 6, 0, 15, 0, 0, time.UTC), next)

	next = s.Next(next)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 45, 0, 0, time.UTC), next)
}

func TestRunCronRejectsBadExpression(t *testing.T) {
	r := newRunner(&fakeArchiver{}, 1)
	assert.Error(t, r.RunCron(context.Background(), "every day"))
}

func TestRunCronStopsOnCancel(t *testing.T) {
	r := newRunner(&fakeArchiver{}, 1)
	r.now = time.Now
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, r.RunCron(ctx, "0 3 * * *"))
}
