package fsmediator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotnfs/internal/handle"
)

func TestOpenDir_SynthesizesDotEntries(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	m := New(root)
	var dirs handle.DirTable

	id, err := m.OpenDir(&dirs, "/")
	require.NoError(t, err)

	dh := dirs.Get(id)
	require.NotNil(t, dh)
	require.Len(t, dh.Entries, 3)
	assert.Equal(t, ".", dh.Entries[0].Name)
	assert.Equal(t, "..", dh.Entries[1].Name)
	assert.True(t, dh.Entries[0].IsSpecial)
	assert.Equal(t, "a.txt", dh.Entries[2].Name)
}

func TestReadDir_AdvancesCursor(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("x"), 0o644))
	m := New(root)
	var dirs handle.DirTable

	id, err := m.OpenDir(&dirs, "/")
	require.NoError(t, err)
	dh := dirs.Get(id)

	first := m.ReadDir(dh, 2)
	assert.Len(t, first, 2)
	rest := m.ReadDir(dh, 100)
	assert.Len(t, rest, 2) // 4 total entries including "." and ".."
}

func TestOpenDirExtended_FiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("xx"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.log"), []byte("x"), 0o644))
	m := New(root)
	var dirs handle.DirTable

	id, err := m.OpenDirExtended(&dirs, "/", "*.txt", SortByName, false)
	require.NoError(t, err)
	dh := dirs.Get(id)
	require.Len(t, dh.Entries, 2)
	assert.Equal(t, "a.txt", dh.Entries[0].Name)
	assert.Equal(t, "b.txt", dh.Entries[1].Name)
	for _, e := range dh.Entries {
		assert.False(t, e.IsSpecial)
	}
}

func TestMkdirRmdir(t *testing.T) {
	root := t.TempDir()
	m := New(root)

	require.NoError(t, m.Mkdir("/newdir"))
	fi, err := os.Stat(filepath.Join(root, "newdir"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	require.NoError(t, m.Rmdir("/newdir"))
	_, err = os.Stat(filepath.Join(root, "newdir"))
	assert.True(t, os.IsNotExist(err))
}
