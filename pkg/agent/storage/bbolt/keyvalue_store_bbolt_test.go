package agentbbolt

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ritmofit/agent/pkg/log/multislogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func setupDB(t *testing.T) *bbolt.DB {
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "test.db"), 0600, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

func Test_GetSet(t *testing.T) {
	t.Parallel()

	store, err := NewStore(multislogger.NewNopLogger(), setupDB(t), "get_set")
	require.NoError(t, err)

	// missing keys read back as nil without error
	v, err := store.Get([]byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, store.Set([]byte("one"), []byte("first")))
	require.NoError(t, store.Set([]byte("two"), []byte("second")))

	v, err = store.Get([]byte("one"))
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), v)

	// overwrites are visible on the next read
	require.NoError(t, store.Set([]byte("one"), []byte("new_first")))
	v, err = store.Get([]byte("one"))
	require.NoError(t, err)
	assert.Equal(t, []byte("new_first"), v)

	numKeys, err := store.NumKeys()
	require.NoError(t, err)
	assert.Equal(t, 2, numKeys)
}

func Test_SetBlankKey(t *testing.T) {
	t.Parallel()

	store, err := NewStore(multislogger.NewNopLogger(), setupDB(t), "blank_key")
	require.NoError(t, err)

	require.Error(t, store.Set(nil, []byte("value")))
	require.Error(t, store.Set([]byte(""), []byte("value")))
}

func Test_Delete(t *testing.T) {
	t.Parallel()

	store, err := NewStore(multislogger.NewNopLogger(), setupDB(t), "delete")
	require.NoError(t, err)

	require.NoError(t, store.Set([]byte("one"), []byte("first")))
	require.NoError(t, store.Set([]byte("two"), []byte("second")))
	require.NoError(t, store.Set([]byte("three"), []byte("third")))

	require.NoError(t, store.Delete([]byte("one"), []byte("three")))

	v, err := store.Get([]byte("one"))
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = store.Get([]byte("two"))
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), v)

	// deleting a nonexistent key is not an error
	require.NoError(t, store.Delete([]byte("never_existed")))

	numKeys, err := store.NumKeys()
	require.NoError(t, err)
	assert.Equal(t, 1, numKeys)
}

func Test_DeleteByPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		keys         []string
		prefix       string
		expectedKeys []string
	}{
		{
			name:         "removes only prefixed keys",
			keys:         []string{"cache_one", "cache_two", "other", "cach"},
			prefix:       "cache_",
			expectedKeys: []string{"cach", "other"},
		},
		{
			name:         "no matches leaves store untouched",
			keys:         []string{"alpha", "beta"},
			prefix:       "cache_",
			expectedKeys: []string{"alpha", "beta"},
		},
		{
			name:         "empty prefix removes everything",
			keys:         []string{"alpha", "beta"},
			prefix:       "",
			expectedKeys: []string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, err := NewStore(multislogger.NewNopLogger(), setupDB(t), tt.name)
			require.NoError(t, err)

			for i, k := range tt.keys {
				require.NoError(t, store.Set([]byte(k), []byte(fmt.Sprintf("value_%d", i))))
			}

			require.NoError(t, store.DeleteByPrefix([]byte(tt.prefix)))

			remaining := make([]string, 0)
			require.NoError(t, store.ForEach(func(k, v []byte) error {
				remaining = append(remaining, string(k))
				return nil
			}))

			assert.ElementsMatch(t, tt.expectedKeys, remaining)
		})
	}
}

func Test_ForEach(t *testing.T) {
	t.Parallel()

	store, err := NewStore(multislogger.NewNopLogger(), setupDB(t), "for_each")
	require.NoError(t, err)

	expected := map[string]string{
		"one":   "first",
		"two":   "second",
		"three": "third",
	}
	for k, v := range expected {
		require.NoError(t, store.Set([]byte(k), []byte(v)))
	}

	seen := make(map[string]string)
	require.NoError(t, store.ForEach(func(k, v []byte) error {
		seen[string(k)] = string(v)
		return nil
	}))

	assert.Equal(t, expected, seen)
}

func Test_NilStore(t *testing.T) {
	t.Parallel()

	var store *bboltKeyValueStore

	_, err := store.Get([]byte("key"))
	require.Error(t, err)
	require.Error(t, store.Set([]byte("key"), []byte("value")))
	require.Error(t, store.Delete([]byte("key")))
	require.Error(t, store.DeleteByPrefix([]byte("key")))
}
