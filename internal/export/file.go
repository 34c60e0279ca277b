package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteSnapshotFile writes an issue batch to disk as indented JSON,
// creating parent directories as needed. The write goes through a temp
// file and rename so a crash never leaves a half-written snapshot.
func WriteSnapshotFile(path string, batch IssueBatch) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("export: resolving %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return fmt.Errorf("export: creating directory for %s: %w", absPath, err)
	}

	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Errorf("export: encoding snapshot: %w", err)
	}

	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("export: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, absPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("export: renaming snapshot into place: %w", err)
	}
	return nil
}
