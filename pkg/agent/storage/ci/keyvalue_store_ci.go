package storageci

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	agentbbolt "github.com/ritmofit/agent/pkg/agent/storage/bbolt"
	"github.com/ritmofit/agent/pkg/agent/storage/inmemory"
	"github.com/ritmofit/agent/pkg/agent/types"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

const (
	dbTestFileName = "test.db"
)

// NewStore returns a bbolt-backed store in a temp directory, or an in-memory
// store when running in CI.
func NewStore(t *testing.T, slogger *slog.Logger, bucketName string) (types.KVStore, error) {
	if os.Getenv("CI") == "true" {
		return inmemory.NewStore(), nil
	}

	return agentbbolt.NewStore(slogger, SetupDB(t), bucketName)
}

// SetupDB is used for creating bbolt databases for testing
func SetupDB(t *testing.T) *bbolt.DB {
	db, err := bbolt.Open(filepath.Join(t.TempDir(), dbTestFileName), 0600, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}
