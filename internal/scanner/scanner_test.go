package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
}

func TestScanFindsUploadableFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.json")
	writeFile(t, root, "a.EML")
	writeFile(t, root, "notes.txt")
	writeFile(t, root, "nested/deeper/c.json")
	writeFile(t, root, ".cache/hidden.json")

	files, err := NewScanner(root).Scan()
	require.NoError(t, err)

	assert.Equal(t, []string{"a.EML", "b.json", "nested/deeper/c.json"}, files)
}

func TestScanEmptyDirectory(t *testing.T) {
	files, err := NewScanner(t.TempDir()).Scan()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestScanMissingDirectory(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "missing")).Scan()
	assert.Error(t, err)
}

func TestScanRejectsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "single.json")

	_, err := NewScanner(filepath.Join(root, "single.json")).Scan()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestCountAndResolve(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x/one.json")
	writeFile(t, root, "two.eml")

	s := NewScanner(root)
	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, filepath.Join(root, "x", "one.json"), s.Resolve("x/one.json"))
	assert.Equal(t, root, s.GetRootPath())
}

func TestUploadable(t *testing.T) {
	assert.True(t, Uploadable("batch.json"))
	assert.True(t, Uploadable("MAIL.Eml"))
	assert.False(t, Uploadable("readme.md"))
	assert.False(t, Uploadable("json"))
}
