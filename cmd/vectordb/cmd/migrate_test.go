package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorlib/vectordb/internal/config"
	"github.com/vectorlib/vectordb/internal/domain"
	"github.com/vectorlib/vectordb/internal/store"
)

func TestRunMigrate_CopiesLibrariesBetweenBackends(t *testing.T) {
	dir := t.TempDir()
	cfg := config.New()
	cfg.JSONPath = filepath.Join(dir, "data.json")
	cfg.SQLitePath = filepath.Join(dir, "data.db")

	src, err := store.NewJSONRepository(cfg.JSONPath)
	require.NoError(t, err)
	lib := &domain.Library{ID: uuid.New(), Name: "physics"}
	require.NoError(t, src.Add(lib))
	require.NoError(t, src.Close())

	cmd := newMigrateCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	require.NoError(t, runMigrate(cmd, cfg, "json", "sqlite"))
	assert.Contains(t, buf.String(), "migrated 1 libraries from json to sqlite")

	dst, err := store.NewSQLiteRepository(cfg.SQLitePath)
	require.NoError(t, err)
	defer dst.Close()

	got, found, err := dst.Get(lib.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, lib.Name, got.Name)
}

func TestRunMigrate_RequiresFromAndTo(t *testing.T) {
	cmd := newMigrateCmd()
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	assert.Error(t, err)
}
