package files

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "report.json")

	err := WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, `{"ok":true}`)
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
	assert.Equal(t, []string{"report.json"}, dirEntries(t, filepath.Dir(path)))
}

func TestWriteFileAtomic_FailureKeepsOldContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "panel.csv")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	boom := errors.New("boom")
	err := WriteFileAtomic(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	require.ErrorIs(t, err, boom)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
	assert.Equal(t, []string{"panel.csv"}, dirEntries(t, dir), "temp file is removed")
}

func TestAtomicFile_CommitTwice(t *testing.T) {
	f, err := CreateAtomic(filepath.Join(t.TempDir(), "a.txt"))
	require.NoError(t, err)
	require.NoError(t, f.Commit())
	require.Error(t, f.Commit())
	f.Abort()
}

func TestReplaceFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "main_panel.parquet")

	tmp, err := TempPathFor(target)
	require.NoError(t, err)
	assert.Equal(t, ".parquet", filepath.Ext(tmp))
	assert.NoFileExists(t, tmp)

	require.NoError(t, os.WriteFile(tmp, []byte("PAR1"), 0644))
	require.NoError(t, ReplaceFile(tmp, target))

	assert.NoFileExists(t, tmp)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "PAR1", string(data))
}
