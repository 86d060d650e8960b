package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	level, err := NewLevelDB(filepath.Join(t.TempDir(), "leveldb"))
	require.NoError(t, err)
	boltDB, err := NewBoltDB(filepath.Join(t.TempDir(), "bolt.db"))
	require.NoError(t, err)
	dbs := map[string]Database{
		"memory":  NewMemDB(),
		"leveldb": level,
		"bolt":    boltDB,
	}
	for _, db := range dbs {
		t.Cleanup(db.Close)
	}
	return dbs
}

func TestDatabaseRoundTrip(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := []byte("escrow/record/abc")

			_, err := db.Get(key)
			require.ErrorIs(t, err, ErrKeyNotFound)
			has, err := db.Has(key)
			require.NoError(t, err)
			require.False(t, has)

			require.NoError(t, db.Put(key, []byte("v1")))
			got, err := db.Get(key)
			require.NoError(t, err)
			require.Equal(t, []byte("v1"), got)

			has, err = db.Has(key)
			require.NoError(t, err)
			require.True(t, has)

			// Put replaces atomically.
			require.NoError(t, db.Put(key, []byte("v2")))
			got, err = db.Get(key)
			require.NoError(t, err)
			require.Equal(t, []byte("v2"), got)
		})
	}
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("original")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'X'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("original"), again)
}
