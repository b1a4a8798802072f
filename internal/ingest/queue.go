// Package ingest runs the upload-to-funnel pipeline: a persisted job queue,
// the per-file processing stages, an upload log, and upload inspection.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"funneldash/internal/logging"
)

const queueFileName = "ingestQueue.json"

// Job statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Pipeline steps, in execution order.
const (
	StepQueued          = "queued"
	StepDetectingSchema = "detecting_schema"
	StepMappingColumns  = "mapping_columns"
	StepAutoFixing      = "auto_fixing"
	StepNormalizing     = "normalizing"
	StepBuildingFunnels = "building_funnels"
	StepLoggingUpload   = "logging_upload"
	StepComplete        = "complete"
	StepError           = "error"
)

// Job is one queued ingestion batch. Files holds paths to the stored
// uploads this batch covers.
type Job struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	Files            []string  `json:"files"`
	Status           string    `json:"status"`
	Progress         int       `json:"progress"`
	Step             string    `json:"step"`
	Errors           []string  `json:"errors"`
	CreatorsDetected int       `json:"creatorsDetected"`
}

// Queue is a JSON-file-backed job queue. Jobs are stored newest first. All
// methods are safe for concurrent use.
type Queue struct {
	mu   sync.Mutex
	path string
}

// NewQueue builds a queue persisted under dataDir.
func NewQueue(dataDir string) (*Queue, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory '%s': %w", dataDir, err)
	}
	return &Queue{path: filepath.Join(dataDir, queueFileName)}, nil
}

// load reads the queue file. A missing or corrupt file yields an empty
// queue rather than an error so a bad file never wedges ingestion.
func (q *Queue) load() []Job {
	data, err := os.ReadFile(q.path)
	if err != nil {
		return []Job{}
	}
	var jobs []Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		logging.Logf(logging.Warning, "Queue file %s is corrupt, starting empty: %v", q.path, err)
		return []Job{}
	}
	return jobs
}

func (q *Queue) save(jobs []Job) error {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling queue: %w", err)
	}
	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing '%s': %w", tmp, err)
	}
	if err := os.Rename(tmp, q.path); err != nil {
		return fmt.Errorf("replacing '%s': %w", q.path, err)
	}
	return nil
}

// Enqueue creates a pending job for the given stored files and prepends it
// to the queue.
func (q *Queue) Enqueue(files []string) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	job := Job{
		ID:        "ing_" + uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Files:     files,
		Status:    StatusPending,
		Progress:  0,
		Step:      StepQueued,
		Errors:    []string{},
	}
	jobs := append([]Job{job}, q.load()...)
	if err := q.save(jobs); err != nil {
		return Job{}, err
	}
	logging.Logf(logging.Info, "Enqueued ingest job %s with %d file(s)", job.ID, len(files))
	return job, nil
}

// List returns every job, newest first.
func (q *Queue) List() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load()
}

// Get returns one job by ID.
func (q *Queue) Get(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.load() {
		if j.ID == id {
			return j, true
		}
	}
	return Job{}, false
}

// Patch carries the mutable fields of a job update. Nil fields are left
// unchanged.
type Patch struct {
	Status           *string
	Step             *string
	Progress         *int
	Errors           []string
	CreatorsDetected *int
}

// Update applies a patch to the identified job and persists the queue. The
// updated job is returned.
func (q *Queue) Update(id string, patch Patch) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := q.load()
	for i := range jobs {
		if jobs[i].ID != id {
			continue
		}
		if patch.Status != nil {
			jobs[i].Status = *patch.Status
		}
		if patch.Step != nil {
			jobs[i].Step = *patch.Step
		}
		if patch.Progress != nil {
			jobs[i].Progress = *patch.Progress
		}
		if patch.Errors != nil {
			jobs[i].Errors = dedupe(patch.Errors)
		}
		if patch.CreatorsDetected != nil {
			jobs[i].CreatorsDetected = *patch.CreatorsDetected
		}
		jobs[i].UpdatedAt = time.Now().UTC()
		if err := q.save(jobs); err != nil {
			return Job{}, err
		}
		return jobs[i], nil
	}
	return Job{}, fmt.Errorf("job '%s' not found", id)
}

// NextPending returns the most recently enqueued pending job.
func (q *Queue) NextPending() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.load() {
		if j.Status == StatusPending {
			return j, true
		}
	}
	return Job{}, false
}

// dedupe removes duplicate strings while preserving first-seen order.
func dedupe(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
