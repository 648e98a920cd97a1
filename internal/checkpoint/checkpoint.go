package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"auditgraph/internal/logger"
	"auditgraph/internal/reporter"
)

// schemaVersion is bumped whenever the on-disk layout changes. Loading
// refuses versions it does not know.
const schemaVersion = 1

// ErrNotFound is returned when no checkpoint exists at the given path.
var ErrNotFound = errors.New("checkpoint not found")

// FilterState carries one serialized bloom filter together with the
// name of the key hash it was built with. Restoring into a cache with
// a different hash would silence the filter, so the name is validated.
type FilterState struct {
	HashName string `json:"hash_name"`
	Data     []byte `json:"data"`
}

// Checkpoint is the full persisted state of a run: the reporter's
// bookkeeping plus the membership filters of both bounded caches. The
// spilled cache entries themselves live in the backing stores and are
// not duplicated here.
type Checkpoint struct {
	Version        int             `json:"version"`
	SavedAt        string          `json:"saved_at"`
	Reporter       *reporter.State `json:"reporter"`
	EventFilter    FilterState     `json:"event_filter"`
	ArtifactFilter FilterState     `json:"artifact_filter"`
}

// Save writes the checkpoint atomically: to a temp file in the same
// directory, then renamed over the destination.
func Save(path string, cp *Checkpoint) error {
	cp.Version = schemaVersion
	cp.SavedAt = time.Now().UTC().Format(time.RFC3339)

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	if err := encoder.Encode(cp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp checkpoint file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move checkpoint into place: %w", err)
	}

	logger.Infof("Checkpoint saved: %s", path)
	return nil
}

// Load reads a checkpoint from disk. A missing file returns
// ErrNotFound so callers can treat a first run as a cold start.
func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version != schemaVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d, expected %d", cp.Version, schemaVersion)
	}
	return &cp, nil
}
