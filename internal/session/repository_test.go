package session

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

// A session is inserted before its token exists, so the hash column must
// receive the literal empty string. Encoding it as SQL NULL would violate
// the NOT NULL constraint on token_hash and break every login.
func TestInsertArgsEmptyTokenHash(t *testing.T) {
	sess := &Session{
		ID:            "s1",
		UserID:        "u1",
		CurrentRoleID: "r1",
		Permissions:   []string{"orders.read"},
		ExpiresAt:     time.Now().Add(time.Hour),
		LastActivity:  time.Now(),
		CreatedAt:     time.Now(),
	}

	args := insertArgs(sess)
	require.Len(t, args, 11)
	require.Equal(t, "", args[4], "unbound token hash must stay a plain string")
}

func TestInsertArgsBoundTokenHash(t *testing.T) {
	sess := &Session{ID: "s1", UserID: "u1", TokenHash: "abc123"}

	args := insertArgs(sess)
	require.Equal(t, "abc123", args[4])
}

func TestInsertArgsOptionalColumns(t *testing.T) {
	sess := &Session{ID: "s1", UserID: "u1", IPAddress: "10.0.0.9"}

	args := insertArgs(sess)
	require.Equal(t, pgtype.Text{String: "10.0.0.9", Valid: true}, args[8])
	require.Equal(t, pgtype.Text{}, args[9], "empty user agent stores as NULL")
}

func TestOptionalText(t *testing.T) {
	require.False(t, optionalText("").Valid)
	require.Equal(t, pgtype.Text{String: "x", Valid: true}, optionalText("x"))
}
