package migrate

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/db"
)

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"up": Up, " DOWN ": Down, "Reset": Reset} {
		got, err := ParseDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "sideways", "up1"} {
		_, err := ParseDirection(in)
		assert.Error(t, err, in)
	}
}

func TestRun_RejectsBadInput(t *testing.T) {
	_, err := Run("", Up)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	_, err = Run("postgres://localhost/test", Direction("both"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "direction")

	_, err = Run("://localhost/test", Up)
	assert.Error(t, err)
}

// Each version must ship both halves so Down and Reset can always run.
func TestMigrationFS_Paired(t *testing.T) {
	entries, err := fs.ReadDir(db.MigrationFS, "migrations")
	require.NoError(t, err)
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		if v, ok := strings.CutSuffix(name, ".up.sql"); ok {
			ups[v] = true
		}
		if v, ok := strings.CutSuffix(name, ".down.sql"); ok {
			downs[v] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestMigrationFS_FinalizationConstraints(t *testing.T) {
	b, err := fs.ReadFile(db.MigrationFS, "migrations/000001_tenants.up.sql")
	require.NoError(t, err)
	sql := string(b)
	assert.Contains(t, sql, "registration_finalizations")
	assert.Contains(t, sql, "organizations_active_slug_key")
}
