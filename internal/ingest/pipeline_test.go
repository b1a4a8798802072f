package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"funneldash/internal/config"
	"funneldash/internal/identity"
	"funneldash/internal/store"
)

func newTestEnv(t *testing.T, cfg config.IngestConfig) (*Runner, *store.FunnelStore, string) {
	t.Helper()
	dir := t.TempDir()

	q, err := NewQueue(dir)
	if err != nil {
		t.Fatal(err)
	}
	ul, err := NewUploadLog(dir)
	if err != nil {
		t.Fatal(err)
	}
	p, err := store.NewJSONFilePersistence(dir)
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.New(p)
	if err != nil {
		t.Fatal(err)
	}
	runner, err := NewRunner(q, ul, st, identity.DefaultRoster(), cfg)
	if err != nil {
		t.Fatalf("NewRunner() error: %v", err)
	}
	return runner, st, dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestRunEndToEnd ingests one CSV through every stage and checks the job,
// the store, and the upload log.
func TestRunEndToEnd(t *testing.T) {
	runner, st, dir := newTestEnv(t, config.IngestConfig{})

	csv := "creator,clicks,dpv,orders,revenue\n" +
		"@nickimonroe,100,80,10,500\n" +
		"@nickimonroe,50,40,5,250\n" +
		"@sarahchen,30,20,2,100\n"
	file := writeFile(t, dir, "analytics.csv", csv)

	job, err := runner.Queue.Enqueue([]string{file})
	if err != nil {
		t.Fatal(err)
	}

	done, err := runner.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if done.Status != StatusDone || done.Step != StepComplete || done.Progress != 100 {
		t.Errorf("finished job = %+v", done)
	}
	if done.CreatorsDetected != 2 {
		t.Errorf("creatorsDetected = %d, want 2", done.CreatorsDetected)
	}

	if !st.HasReal() || st.Mode() != store.ModeReal {
		t.Error("store did not flip to real after ingest")
	}
	funnels := st.Active()
	if len(funnels) != 2 {
		t.Fatalf("store holds %d funnels, want 2", len(funnels))
	}
	// Handles resolve through the roster to canonical profiles.
	if funnels[0].CreatorID != "creator-alpha" || funnels[0].CreatorName != "Nicki Monroe" {
		t.Errorf("first funnel = %s/%s", funnels[0].CreatorID, funnels[0].CreatorName)
	}

	uploads := runner.Uploads.List()
	if len(uploads) != 1 || uploads[0].Status != UploadProcessed || uploads[0].CreatorsDetected != 2 {
		t.Errorf("upload log = %+v", uploads)
	}
}

// TestRunAutoFixWarnings verifies repair warnings surface on the job.
func TestRunAutoFixWarnings(t *testing.T) {
	runner, _, dir := newTestEnv(t, config.IngestConfig{})

	csv := "creator,clicks,orders,revenue\n@nickimonroe,10,-3,-50\n"
	file := writeFile(t, dir, "broken.csv", csv)
	job, _ := runner.Queue.Enqueue([]string{file})

	done, err := runner.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if done.Status != StatusDone {
		t.Fatalf("job status = %s, want done", done.Status)
	}

	wantWarnings := map[string]bool{
		"Found negative revenue; clamped to 0.": false,
		"Found negative orders; clamped to 0.":  false,
	}
	for _, e := range done.Errors {
		if _, ok := wantWarnings[e]; ok {
			wantWarnings[e] = true
		}
	}
	for w, seen := range wantWarnings {
		if !seen {
			t.Errorf("job errors missing warning %q: %v", w, done.Errors)
		}
	}
}

// TestRunSkipsUndecodableFile verifies a bad file is skipped while the rest
// of the batch still processes.
func TestRunSkipsUndecodableFile(t *testing.T) {
	runner, st, dir := newTestEnv(t, config.IngestConfig{OnError: config.OnErrorSkip})

	bad := writeFile(t, dir, "empty.csv", "   \n  ")
	good := writeFile(t, dir, "good.csv", "creator,clicks,orders\n@sarahchen,10,1\n")
	job, _ := runner.Queue.Enqueue([]string{bad, good})

	done, err := runner.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if done.Status != StatusDone {
		t.Errorf("job status = %s, want done", done.Status)
	}

	foundSkip := false
	for _, e := range done.Errors {
		if strings.Contains(e, "empty.csv") {
			foundSkip = true
		}
	}
	if !foundSkip {
		t.Errorf("job errors missing skip notice: %v", done.Errors)
	}
	if !st.HasReal() {
		t.Error("good file should still produce funnels")
	}
}

// TestRunHaltsOnDecodeError verifies halt mode fails the job on the first
// undecodable file.
// TestRunFailsWhenNothingDecodes verifies a batch in which every file
// fails to decode ends failed, not as an empty success.
func TestRunFailsWhenNothingDecodes(t *testing.T) {
	runner, st, dir := newTestEnv(t, config.IngestConfig{OnError: config.OnErrorSkip})

	bad := writeFile(t, dir, "bad.csv", "   \n  ")
	job, _ := runner.Queue.Enqueue([]string{bad})

	done, err := runner.Run(context.Background(), job)
	if err == nil {
		t.Fatal("Run() expected error for all-undecodable batch")
	}
	if done.Status != StatusFailed {
		t.Errorf("job status = %s, want failed", done.Status)
	}
	if done.Step != StepError {
		t.Errorf("job step = %s, want error", done.Step)
	}

	foundSkip, foundBatch := false, false
	for _, e := range done.Errors {
		if strings.Contains(e, "bad.csv") {
			foundSkip = true
		}
		if strings.Contains(e, "no files parsed successfully") {
			foundBatch = true
		}
	}
	if !foundSkip || !foundBatch {
		t.Errorf("job errors = %v, want skip notice and batch failure", done.Errors)
	}
	if st.HasReal() {
		t.Error("failed batch must not flip the store to real")
	}
}

func TestRunHaltsOnDecodeError(t *testing.T) {
	runner, st, dir := newTestEnv(t, config.IngestConfig{OnError: config.OnErrorHalt})

	bad := writeFile(t, dir, "empty.csv", "")
	job, _ := runner.Queue.Enqueue([]string{bad})

	done, err := runner.Run(context.Background(), job)
	if err == nil {
		t.Fatal("Run() on undecodable file in halt mode, want error")
	}
	if done.Status != StatusFailed || done.Step != StepError || done.Progress != 100 {
		t.Errorf("failed job = %+v", done)
	}
	if st.HasReal() {
		t.Error("no funnels should be merged on failure")
	}
}

// TestRunFilterDropsRows verifies the configured row filter excludes rows
// before funnels are built.
func TestRunFilterDropsRows(t *testing.T) {
	runner, st, dir := newTestEnv(t, config.IngestConfig{Filter: "clicks >= 50"})

	csv := "creator,clicks,orders\n@nickimonroe,100,5\n@sarahchen,10,1\n"
	file := writeFile(t, dir, "analytics.csv", csv)
	job, _ := runner.Queue.Enqueue([]string{file})

	if _, err := runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	funnels := st.Active()
	if len(funnels) != 1 {
		t.Fatalf("store holds %d funnels, want 1 after filtering", len(funnels))
	}
	if funnels[0].CreatorName != "Nicki Monroe" {
		t.Errorf("surviving funnel = %s", funnels[0].CreatorName)
	}
}

// TestRunNext verifies queue draining picks the pending job and reports
// when none remain.
func TestRunNext(t *testing.T) {
	runner, _, dir := newTestEnv(t, config.IngestConfig{})

	if _, found, err := runner.RunNext(context.Background()); err != nil || found {
		t.Errorf("RunNext() on empty queue = found %v, err %v", found, err)
	}

	file := writeFile(t, dir, "a.csv", "creator,clicks,orders\n@mayarod,5,1\n")
	if _, err := runner.Queue.Enqueue([]string{file}); err != nil {
		t.Fatal(err)
	}

	job, found, err := runner.RunNext(context.Background())
	if err != nil || !found {
		t.Fatalf("RunNext() = found %v, err %v", found, err)
	}
	if job.Status != StatusDone {
		t.Errorf("job status = %s, want done", job.Status)
	}

	if _, found, _ := runner.RunNext(context.Background()); found {
		t.Error("RunNext() found a job after the queue drained")
	}
}

// TestNewRunnerBadFilter verifies an invalid filter expression fails fast.
func TestNewRunnerBadFilter(t *testing.T) {
	dir := t.TempDir()
	q, _ := NewQueue(dir)
	ul, _ := NewUploadLog(dir)
	p, _ := store.NewJSONFilePersistence(dir)
	st, _ := store.New(p)

	if _, err := NewRunner(q, ul, st, nil, config.IngestConfig{Filter: "clicks >==("}); err == nil {
		t.Error("NewRunner() with malformed filter, want error")
	}
}
