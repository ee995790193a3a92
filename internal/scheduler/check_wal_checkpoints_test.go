package scheduler

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aristath/sharpe/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckWALCheckpointsJob_Name(t *testing.T) {
	job := NewCheckWALCheckpointsJob(zerolog.Nop())
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_Run_NoDatabases(t *testing.T) {
	job := NewCheckWALCheckpointsJob(zerolog.Nop(), nil, nil)
	assert.NoError(t, job.Run()) // nil databases are skipped
}

func TestCheckWALCheckpointsJob_Run(t *testing.T) {
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "client_data.db"),
		Profile: database.ProfileCache,
		Name:    "client_data",
	})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	for i := 0; i < 50; i++ {
		_, err := db.Conn().Exec(
			"INSERT INTO ticker_quotes (ticker, data, expires_at) VALUES (?, ?, ?)",
			fmt.Sprintf("T%d", i), "{}", 0,
		)
		require.NoError(t, err)
	}

	job := NewCheckWALCheckpointsJob(zerolog.Nop(), db)
	assert.NoError(t, job.Run())
}
