package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/p2p?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "p2p", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://u:p@db:6543/p2p?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, Database: "p2p", User: "u", Password: "p", SSLMode: "require"}))
	assert.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: " postgres://explicit ", Host: "ignored"}))
}

func TestListQuery(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	q, args := listQuery("SELECT * FROM audit_log", nil, nil, domain.ListOpts{})
	assert.Equal(t, "SELECT * FROM audit_log ORDER BY created_at DESC, id DESC", q)
	assert.Empty(t, args)

	q, args = listQuery("SELECT * FROM offer_submissions",
		[]string{"user_id = $1"}, []any{"u1"},
		domain.ListOpts{Since: &since, Limit: 10, Offset: 20})
	assert.Equal(t,
		"SELECT * FROM offer_submissions WHERE user_id = $1 AND created_at >= $2 ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4",
		q)
	assert.Equal(t, []any{"u1", since, 10, 20}, args)
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_audit_log.sql", "002_offer_submissions.sql"}, names)
}
