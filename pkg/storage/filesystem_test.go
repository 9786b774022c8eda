package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveReadDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read("published_timetable.json")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save("published_timetable.json", []byte(`{"a":1}`)))
	require.NoError(t, store.Save("published_timetable.json", []byte(`{"a":2}`)))

	data, err := store.Read("published_timetable.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(store.Path("published_timetable.json")))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	require.NoError(t, store.Delete("published_timetable.json"))
	require.NoError(t, store.Delete("published_timetable.json"))
	_, err = store.Read("published_timetable.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Save("../outside.json", []byte("{}")))
	_, err = store.Read("/etc/passwd")
	assert.Error(t, err)
}
