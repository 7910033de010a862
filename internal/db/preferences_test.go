package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPreferencesDefaults(t *testing.T) {
	database := SetupTestDB(t)
	defer CleanupTestDB(t, database)

	p, err := database.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, DefaultPreferences(), p)
}

func TestSaveAndLoadPreferences(t *testing.T) {
	database := SetupTestDB(t)
	defer CleanupTestDB(t, database)

	want := Preferences{View: ViewTable, SortBy: "category", SortOrder: "asc", PageSize: 25}
	require.NoError(t, database.SavePreferences(want))

	got, err := database.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Overwrite one more time to exercise the upsert
	want.View = ViewCards
	require.NoError(t, database.SavePreferences(want))
	got, err = database.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, ViewCards, got.View)
}

func TestPreferencesSanitize(t *testing.T) {
	p := Preferences{View: "grid", SortBy: "body", SortOrder: "up", PageSize: 10000}.Sanitize()
	assert.Equal(t, DefaultPreferences(), p)
}

func TestCorruptStoredPreferencesFallBack(t *testing.T) {
	database := SetupTestDB(t)
	defer CleanupTestDB(t, database)

	require.NoError(t, database.SetSetting("view", "mosaic"))
	require.NoError(t, database.SetSetting("page_size", "lots"))
	require.NoError(t, database.SetSetting("sort_by", "subject"))

	p, err := database.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, ViewCards, p.View)
	assert.Equal(t, 100, p.PageSize)
	assert.Equal(t, "subject", p.SortBy)
}

func TestSettings(t *testing.T) {
	database := SetupTestDB(t)
	defer CleanupTestDB(t, database)

	v, err := database.GetSetting("missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, database.SetSetting("theme", "dark"))
	require.NoError(t, database.SetSetting("theme", "light"))
	v, err = database.GetSetting("theme")
	require.NoError(t, err)
	assert.Equal(t, "light", v)
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "console.db")

	database, err := Open(path)
	require.NoError(t, err)
	defer CleanupTestDB(t, database)

	require.NoError(t, database.SavePreferences(DefaultPreferences()))
	assert.FileExists(t, path)
}
