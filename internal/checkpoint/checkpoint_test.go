package checkpoint

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"auditgraph/internal/artifact"
	"auditgraph/internal/reporter"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	cp := &Checkpoint{
		Reporter: &reporter.State{
			Descriptors: map[string]map[string]artifact.Identity{
				"100": {"3": artifact.File("/tmp/x")},
			},
			PidToMemAddress: map[string]uint64{"100": 0xdeadbeef},
			LastTimestamp:   "1700000000.123",
		},
		EventFilter:    FilterState{HashName: "fnv1a", Data: []byte{1, 2, 3}},
		ArtifactFilter: FilterState{HashName: "md5", Data: []byte{4, 5, 6}},
	}
	require.NoError(t, Save(path, cp))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, schemaVersion, loaded.Version)
	require.NotEmpty(t, loaded.SavedAt)
	require.Equal(t, "1700000000.123", loaded.Reporter.LastTimestamp)
	require.Equal(t, uint64(0xdeadbeef), loaded.Reporter.PidToMemAddress["100"])
	require.Equal(t, "/tmp/x", loaded.Reporter.Descriptors["100"]["3"].Path)
	require.Equal(t, "fnv1a", loaded.EventFilter.HashName)
	require.Equal(t, []byte{1, 2, 3}, loaded.EventFilter.Data)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	data, err := json.Marshal(map[string]any{"version": schemaVersion + 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = Load(path)
	require.Error(t, err)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}
