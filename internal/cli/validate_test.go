package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validProgram = `startYear: 1
endYear: 2
trials: 1
scenarios:
  - name: baseline
    commands:
      - op: enable
        application: domestic refrigeration
        substance: HFC-134a
        stream: domestic
      - op: set
        application: domestic refrigeration
        substance: HFC-134a
        stream: domestic
        value: 100 kg
`

const invalidProgram = `startYear: 5
endYear: 2
scenarios:
  - name: baseline
    commands:
      - op: teleport
        application: domestic refrigeration
        substance: HFC-134a
`

func writeProgram(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidate_ValidProgram(t *testing.T) {
	out, err := execute(t, "validate", writeProgram(t, validProgram))
	require.NoError(t, err)
	assert.Contains(t, out, "program valid: 1 scenario(s), 1 trial(s) each, years 1-2, 2 command(s)")
}

func TestValidate_InvalidProgramListsViolations(t *testing.T) {
	out, err := execute(t, "validate", writeProgram(t, invalidProgram))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "Error [INVALID_PROGRAM]")
	assert.Contains(t, out, "endYear 2 is before startYear 5")
	assert.Contains(t, out, `unknown op "teleport"`)
}

func TestValidate_MissingFile(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [UNREADABLE]")
}

func TestValidate_JSONOutput(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", writeProgram(t, validProgram))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Scenarios)
	assert.Equal(t, 2, resp.Data.Commands)
}

func TestValidate_JSONViolations(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", writeProgram(t, invalidProgram))
	require.Error(t, err)

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string   `json:"code"`
			Details []string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "INVALID_PROGRAM", resp.Error.Code)
	assert.Len(t, resp.Error.Details, 2)
}
