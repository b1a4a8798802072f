package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"funneldash/internal/funnel"
	"funneldash/internal/logging"
)

const funnelsFileName = "funnels.json"

// JSONFilePersistence stores funnels as a single JSON document under the
// configured data directory. It is the default backend.
type JSONFilePersistence struct {
	path string
}

// NewJSONFilePersistence builds a file backend rooted at dataDir, creating
// the directory if needed.
func NewJSONFilePersistence(dataDir string) (*JSONFilePersistence, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory '%s': %w", dataDir, err)
	}
	return &JSONFilePersistence{path: filepath.Join(dataDir, funnelsFileName)}, nil
}

// Load reads the persisted funnel set. A missing file means no data.
func (p *JSONFilePersistence) Load() ([]funnel.CreatorFunnel, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []funnel.CreatorFunnel{}, nil
		}
		return nil, fmt.Errorf("reading '%s': %w", p.path, err)
	}
	var funnels []funnel.CreatorFunnel
	if err := json.Unmarshal(data, &funnels); err != nil {
		logging.Logf(logging.Warning, "Persisted funnel file %s is corrupt, ignoring: %v", p.path, err)
		return []funnel.CreatorFunnel{}, nil
	}
	return funnels, nil
}

// Save writes the funnel set atomically via a temp file rename.
func (p *JSONFilePersistence) Save(funnels []funnel.CreatorFunnel) error {
	data, err := json.MarshalIndent(funnels, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling funnels: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing '%s': %w", tmp, err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("replacing '%s': %w", p.path, err)
	}
	return nil
}

// Clear removes the persisted file. Absence is not an error.
func (p *JSONFilePersistence) Clear() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing '%s': %w", p.path, err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (p *JSONFilePersistence) Close() error { return nil }
