package cli

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceIntoSQLite slices a plain trace of n entries into a fresh database.
func sliceIntoSQLite(t *testing.T, runID string, n, capacity int) (string, SliceResult) {
	t.Helper()
	_, path := plainTrace(t, n)
	dbPath := filepath.Join(t.TempDir(), "slices.db")
	result := sliceJSON(t, runID, path,
		"--capacity", strconv.Itoa(capacity), "--sink", "sqlite", "--sink-path", dbPath)
	return dbPath, result
}

func TestInspect_ListRuns(t *testing.T) {
	dbPath, _ := sliceIntoSQLite(t, "run-1", 5, 2)

	out, err := executeCommand(t, nil, "inspect", "--db", dbPath, "--format", "json")
	require.NoError(t, err)

	_, data, _ := decodeResponse(t, out)
	var list RunList
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, "run-1", list.Runs[0].ID)
	assert.Equal(t, "complete", list.Runs[0].Status)
	assert.Equal(t, 3, list.Runs[0].Slices)
	assert.Equal(t, 2, list.Runs[0].Capacity)
}

func TestInspect_EmptyStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	out, err := executeCommand(t, nil, "inspect", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found.")
}

func TestInspect_RunDetail(t *testing.T) {
	dbPath, sliced := sliceIntoSQLite(t, "run-2", 5, 2)

	out, err := executeCommand(t, nil, "inspect", "--db", dbPath, "run-2", "--format", "json")
	require.NoError(t, err)

	_, data, _ := decodeResponse(t, out)
	var detail RunDetail
	require.NoError(t, json.Unmarshal(data, &detail))
	assert.Equal(t, "run-2", detail.Run.ID)
	require.Len(t, detail.Slices, 3)
	for i, rec := range detail.Slices {
		assert.Equal(t, i, rec.Index)
		assert.Equal(t, sliced.Slices[i].Size, rec.EntryCount)
		assert.Equal(t, sliced.Slices[i].Keccak, rec.Keccak)
	}
}

func TestInspect_RunDetailText(t *testing.T) {
	dbPath, _ := sliceIntoSQLite(t, "run-3", 3, 2)

	out, err := executeCommand(t, nil, "inspect", "--db", dbPath, "run-3")
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-3 (complete): k=18 capacity=2")
	assert.Contains(t, out, "[0] 2 entries, eid 1..2")
	assert.Contains(t, out, "[1] 1 entries, eid 3..3")
}

func TestInspect_FindByKeccak(t *testing.T) {
	dbPath, sliced := sliceIntoSQLite(t, "run-4", 6, 2)
	target := sliced.Slices[1]

	out, err := executeCommand(t, nil, "inspect", "--db", dbPath, "--keccak", target.Keccak, "--format", "json")
	require.NoError(t, err)

	_, data, _ := decodeResponse(t, out)
	var detail RunDetail
	require.NoError(t, json.Unmarshal(data, &detail))
	assert.Equal(t, "run-4", detail.Run.ID)
	require.Len(t, detail.Slices, 1)
	assert.Equal(t, 1, detail.Slices[0].Index)
	assert.Equal(t, target.Keccak, detail.Slices[0].Keccak)
}

func TestInspect_NotFound(t *testing.T) {
	dbPath, _ := sliceIntoSQLite(t, "run-5", 2, 2)

	t.Run("run", func(t *testing.T) {
		_, err := executeCommand(t, nil, "inspect", "--db", dbPath, "no-such-run")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})

	t.Run("keccak", func(t *testing.T) {
		_, err := executeCommand(t, nil, "inspect", "--db", dbPath, "--keccak", "00")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})
}

func TestInspect_RequiresDB(t *testing.T) {
	_, err := executeCommand(t, nil, "inspect")
	require.Error(t, err)
}
