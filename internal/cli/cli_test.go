package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront-core/internal/cleanup"
	"github.com/joao-fontenele/storefront-core/internal/satellite"
)

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"migrate", "reconcile", "cleanup", "broadcast"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "--format", "yaml", "cleanup", "--db", filepath.Join(t.TempDir(), "s.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestMigrateCommand_RejectsUnknownSubcommand(t *testing.T) {
	_, err := execute(t, "migrate", "sideways")
	require.Error(t, err)
}

type fakeMigrator struct {
	upErr   error
	version uint
	nilVer  bool
	steps   []int
}

func (m *fakeMigrator) Up() error {
	if m.upErr == nil {
		m.version = 4
	}
	return m.upErr
}

func (m *fakeMigrator) Steps(n int) error {
	m.steps = append(m.steps, n)
	m.version--
	return nil
}

func (m *fakeMigrator) Version() (uint, bool, error) {
	if m.nilVer {
		return 0, false, migrate.ErrNilVersion
	}
	return m.version, false, nil
}

func TestRunMigrate(t *testing.T) {
	t.Run("up applies pending migrations", func(t *testing.T) {
		res, err := runMigrate(&fakeMigrator{}, "up")
		require.NoError(t, err)
		assert.Equal(t, MigrationResult{Command: "up", Changed: true, Version: 4}, res)
	})

	t.Run("up without pending migrations is not an error", func(t *testing.T) {
		res, err := runMigrate(&fakeMigrator{upErr: migrate.ErrNoChange, version: 4}, "up")
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Equal(t, uint(4), res.Version)
	})

	t.Run("down rolls back one step", func(t *testing.T) {
		m := &fakeMigrator{version: 4}
		res, err := runMigrate(m, "down")
		require.NoError(t, err)
		assert.Equal(t, []int{-1}, m.steps)
		assert.Equal(t, uint(3), res.Version)
	})

	t.Run("version on an empty database", func(t *testing.T) {
		res, err := runMigrate(&fakeMigrator{nilVer: true}, "version")
		require.NoError(t, err)
		assert.Zero(t, res.Version)

		var out bytes.Buffer
		printMigration(&out, res)
		assert.Equal(t, "no migrations applied yet\n", out.String())
	})

	t.Run("surfaces failures", func(t *testing.T) {
		_, err := runMigrate(&fakeMigrator{upErr: errors.New("dirty database")}, "up")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dirty database")
	})
}

func TestCleanupCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "satellite.db")
	store, err := satellite.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := execute(t, "--format", "json", "cleanup", "--db", path)
	require.NoError(t, err)

	var res cleanup.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, cleanup.Result{}, res)

	out, err = execute(t, "cleanup", "--db", path)
	require.NoError(t, err)
	assert.Equal(t, "removed 0 chat states, 0 views, 0 actions\n", out)
}

func TestBroadcastCommand_ValidatesTarget(t *testing.T) {
	_, err := execute(t, "broadcast", "--target", "gold", "--text", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid target")
}
