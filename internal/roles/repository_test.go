package roles

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestDuplicateActiveRole(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "uq_user_roles_active_tenant"}

	require.True(t, duplicateActiveRole(dup))
	require.True(t, duplicateActiveRole(fmt.Errorf("exec insert: %w", dup)),
		"wrapped driver errors must still match")

	require.False(t, duplicateActiveRole(&pgconn.PgError{Code: "23505", ConstraintName: "sessions_pkey"}))
	require.False(t, duplicateActiveRole(fmt.Errorf("connection reset")))
	require.False(t, duplicateActiveRole(nil))
}
