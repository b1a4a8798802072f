package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const uploadsFileName = "uploads.json"

// Upload record statuses.
const (
	UploadProcessed = "processed"
	UploadFailed    = "failed"
)

// UploadRecord is one entry in the upload history.
type UploadRecord struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"createdAt"`
	Files            []string  `json:"files"`
	CreatorsDetected int       `json:"creatorsDetected"`
	Status           string    `json:"status"`
}

// UploadLog is a JSON-file-backed history of processed batches, newest
// first.
type UploadLog struct {
	mu   sync.Mutex
	path string
}

// NewUploadLog builds an upload log persisted under dataDir.
func NewUploadLog(dataDir string) (*UploadLog, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory '%s': %w", dataDir, err)
	}
	return &UploadLog{path: filepath.Join(dataDir, uploadsFileName)}, nil
}

func (l *UploadLog) load() []UploadRecord {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return []UploadRecord{}
	}
	var records []UploadRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return []UploadRecord{}
	}
	return records
}

// Append records a finished batch at the head of the log.
func (l *UploadLog) Append(files []string, creatorsDetected int, status string) (UploadRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := UploadRecord{
		ID:               "upl_" + uuid.NewString(),
		CreatedAt:        time.Now().UTC(),
		Files:            files,
		CreatorsDetected: creatorsDetected,
		Status:           status,
	}
	records := append([]UploadRecord{rec}, l.load()...)
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return UploadRecord{}, fmt.Errorf("marshaling upload log: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return UploadRecord{}, fmt.Errorf("writing '%s': %w", l.path, err)
	}
	return rec, nil
}

// List returns the upload history, newest first.
func (l *UploadLog) List() []UploadRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}
