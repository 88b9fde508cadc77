package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// currentIndexVersion is the serialized index schema version. Bumping
// it requires adding an explicit migration in Load; unknown versions
// are rejected, never guessed at.
const currentIndexVersion = 1

// ErrUnsupportedVersion wraps version mismatches from Load.
type ErrUnsupportedVersion struct {
	Found int
}

func (e *ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("unsupported index version %d (supported up to %d)", e.Found, currentIndexVersion)
}

// Save writes the index as JSON, atomically via a temp file rename.
func Save(idx *StructuralIndex, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace index: %w", err)
	}

	log.Debug("Saved structural index", "path", path, "bytes", len(data))
	return nil
}

// Load reads an index, migrating older versions forward and rejecting
// newer ones.
func Load(path string) (*StructuralIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	// Peek at the version before decoding the full document.
	var peek struct {
		IndexMetadata struct {
			Version int `json:"version"`
		} `json:"index_metadata"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}

	switch peek.IndexMetadata.Version {
	case currentIndexVersion:
		var idx StructuralIndex
		if err := json.Unmarshal(data, &idx); err != nil {
			return nil, fmt.Errorf("failed to parse index: %w", err)
		}
		return &idx, nil
	default:
		return nil, &ErrUnsupportedVersion{Found: peek.IndexMetadata.Version}
	}
}
