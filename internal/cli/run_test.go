package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stratosim/internal/results"
)

func TestRun_ExecutesProgram(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "results.db")

	out, err := execute(t, "run", "--db", dbPath, writeProgram(t, validProgram))
	require.NoError(t, err)
	assert.Contains(t, out, "result row(s) written")

	store, err := results.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	// 1 scenario x 1 trial x 2 years x 1 substance.
	var count int
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM results").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestRun_RequiresDBFlag(t *testing.T) {
	_, err := execute(t, "run", writeProgram(t, validProgram))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestRun_InvalidProgramFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "results.db")

	_, err := execute(t, "run", "--db", dbPath, writeProgram(t, invalidProgram))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "program invalid")
}

func TestRun_MissingProgramFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "results.db")

	_, err := execute(t, "run", "--db", dbPath, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_JSONOutput(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "results.db")

	out, err := execute(t, "--format", "json", "run", "--db", dbPath, writeProgram(t, validProgram))
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Data.RunID)
	assert.Equal(t, 2, resp.Data.Rows)
}
