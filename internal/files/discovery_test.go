package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
}

func TestFindWorkbooks(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "omie")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested.xlsx"), 0755))

	for _, name := range []string{"b_20230102.xlsx", "a_20230101.XLSX", "~$b_20230102.xlsx", "notes.txt", "old.xls"} {
		touch(t, dir, name)
	}

	found, err := NewDiscovery(base).FindWorkbooks("omie")
	require.NoError(t, err)

	var names []string
	for _, f := range found {
		names = append(names, f.Name)
		assert.Equal(t, filepath.Join(dir, f.Name), f.Path)
	}
	assert.Equal(t, []string{"a_20230101.XLSX", "b_20230102.xlsx"}, names)
}

func TestFindWorkbooks_AbsoluteDir(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "x.xlsx")

	found, err := NewDiscovery("/nonexistent").FindWorkbooks(dir)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, filepath.Join(dir, "x.xlsx"), found[0].Path)
}

func TestFindWorkbooks_MissingDir(t *testing.T) {
	_, err := NewDiscovery(t.TempDir()).FindWorkbooks("missing")
	require.Error(t, err)
}
