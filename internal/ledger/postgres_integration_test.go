package ledger

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/standproj/pkg/types"
)

// TestPostgresRoundTrip runs against a live server when
// STANDPROJ_TEST_POSTGRES_DSN is set.
func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("STANDPROJ_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STANDPROJ_TEST_POSTGRES_DSN not set")
	}
	b := NewBackend(nil)
	require.NoError(t, b.Attach(t.Context(), types.LedgerConfig{Driver: types.LedgerPostgres, DSN: dsn}))
	t.Cleanup(func() { require.NoError(t, b.Detach()) })

	id := uuid.NewString()
	require.NoError(t, b.BeginProjection(t.Context(), id, types.Parameters{}))
	require.NoError(t, b.Sink(id).WriteTable(t.Context(), table("42", types.StratumPrimary, 2000, 2010)))

	rows, err := b.YieldRows(t.Context(), id)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
