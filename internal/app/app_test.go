package app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestUsage verifies the help text covers every flag.
func TestUsage(t *testing.T) {
	var buf bytes.Buffer
	NewAppRunner().Usage(&buf)
	out := buf.String()
	for _, flagName := range []string{"-config", "-loglevel", "-serve", "-ingest", "-reset", "-dry-run", "-help"} {
		if !strings.Contains(out, flagName) {
			t.Errorf("usage text missing %s", flagName)
		}
	}
}

// TestRunHelp verifies -help prints usage and exits cleanly.
func TestRunHelp(t *testing.T) {
	if err := NewAppRunner().Run([]string{"-help"}); err != nil {
		t.Errorf("Run(-help) error = %v", err)
	}
}

// TestRunBadFlag verifies unknown flags report a usage error.
func TestRunBadFlag(t *testing.T) {
	err := NewAppRunner().Run([]string{"-definitely-not-a-flag"})
	if !errors.Is(err, ErrUsage) {
		t.Errorf("Run(bad flag) error = %v, want ErrUsage", err)
	}
}

// TestRunExplicitConfigMissing verifies an explicitly named but absent
// config file is an error, while the default path silently falls back.
func TestRunExplicitConfigMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	err := NewAppRunner().Run([]string{"-config=" + missing, "-reset"})
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Run(missing explicit config) error = %v, want ErrConfigNotFound", err)
	}
}

// TestRunReset verifies the reset workflow against a scratch data
// directory.
func TestRunReset(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "funneldash.yaml")
	cfgYAML := "dataDir: " + filepath.Join(dir, "data") + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := NewAppRunner().Run([]string{"-config=" + cfgPath, "-reset"}); err != nil {
		t.Errorf("Run(-reset) error = %v", err)
	}
}

// TestRunIngestWithFiles verifies positional file arguments are
// enqueued and processed.
func TestRunIngestWithFiles(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	cfgPath := filepath.Join(dir, "funneldash.yaml")
	cfgYAML := "dataDir: " + dataDir + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	csvPath := filepath.Join(dir, "report.csv")
	csvData := "creator,link clicks,orders,revenue\n@nickimonroe,100,4,250\n"
	if err := os.WriteFile(csvPath, []byte(csvData), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := NewAppRunner().Run([]string{"-config=" + cfgPath, "-ingest", csvPath}); err != nil {
		t.Fatalf("Run(-ingest file) error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "funnels.json")); err != nil {
		t.Errorf("expected persisted funnels after ingest: %v", err)
	}
}

// TestRunIngestMissingFile verifies a nonexistent positional file is an
// error before anything is enqueued.
func TestRunIngestMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "funneldash.yaml")
	cfgYAML := "dataDir: " + filepath.Join(dir, "data") + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	err := NewAppRunner().Run([]string{"-config=" + cfgPath, "-ingest", filepath.Join(dir, "absent.csv")})
	if err == nil {
		t.Error("Run(-ingest missing file) expected error")
	}
}

// TestRunIngestEmptyQueue verifies the drain workflow succeeds with no
// pending jobs.
func TestRunIngestEmptyQueue(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "funneldash.yaml")
	cfgYAML := "dataDir: " + filepath.Join(dir, "data") + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := NewAppRunner().Run([]string{"-config=" + cfgPath, "-ingest"}); err != nil {
		t.Errorf("Run(-ingest) error = %v", err)
	}
}
