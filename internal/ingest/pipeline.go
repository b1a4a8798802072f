package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Knetic/govaluate"

	"funneldash/internal/autofix"
	"funneldash/internal/config"
	"funneldash/internal/decode"
	"funneldash/internal/funnel"
	"funneldash/internal/identity"
	"funneldash/internal/logging"
	"funneldash/internal/mapping"
	"funneldash/internal/metrics"
	"funneldash/internal/schema"
	"funneldash/internal/store"
)

// Progress checkpoints reported as the pipeline advances.
const (
	progressStart    = 5
	progressMapping  = 20
	progressAutoFix  = 40
	progressRows     = 60
	progressFunnels  = 80
	progressUpload   = 90
	progressComplete = 100
)

// Runner executes queued ingest jobs. A single Runner instance processes
// jobs one at a time; the store's own locking protects the merge.
type Runner struct {
	Queue   *Queue
	Uploads *UploadLog
	Store   *store.FunnelStore
	Roster  []identity.CreatorProfile
	filter  *govaluate.EvaluableExpression
	onError string
}

// NewRunner wires a pipeline runner. The ingest filter expression, when
// configured, is compiled once up front.
func NewRunner(q *Queue, ul *UploadLog, st *store.FunnelStore, roster []identity.CreatorProfile, cfg config.IngestConfig) (*Runner, error) {
	r := &Runner{Queue: q, Uploads: ul, Store: st, Roster: roster, onError: cfg.OnError}
	if r.onError == "" {
		r.onError = config.OnErrorSkip
	}
	if cfg.Filter != "" {
		expr, err := govaluate.NewEvaluableExpression(cfg.Filter)
		if err != nil {
			return nil, fmt.Errorf("compiling ingest filter '%s': %w", cfg.Filter, err)
		}
		r.filter = expr
	}
	return r, nil
}

// RunNext picks the next pending job and runs it. The bool result reports
// whether a job was found.
func (r *Runner) RunNext(ctx context.Context) (Job, bool, error) {
	job, ok := r.Queue.NextPending()
	if !ok {
		return Job{}, false, nil
	}
	done, err := r.Run(ctx, job)
	return done, true, err
}

// Run executes one job through every pipeline stage. Stage transitions and
// errors are persisted to the queue as they happen so job status polling
// reflects live progress. Decode failures on individual files skip that
// file unless onError is halt.
func (r *Runner) Run(ctx context.Context, job Job) (Job, error) {
	start := time.Now()

	current, err := r.update(job.ID, Patch{
		Status:   ptr(StatusRunning),
		Step:     ptr(StepDetectingSchema),
		Progress: ptrInt(progressStart),
		Errors:   []string{},
	})
	if err != nil {
		return Job{}, err
	}

	current, runErr := r.process(ctx, current)
	if runErr != nil {
		metrics.IngestJobsTotal.WithLabelValues(StatusFailed).Inc()
		failed, _ := r.update(current.ID, Patch{
			Status:   ptr(StatusFailed),
			Step:     ptr(StepError),
			Progress: ptrInt(progressComplete),
			Errors:   append(current.Errors, runErr.Error()),
		})
		logging.Logf(logging.Error, "Ingest job %s failed: %v", job.ID, runErr)
		return failed, runErr
	}

	metrics.IngestJobsTotal.WithLabelValues(StatusDone).Inc()
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	logging.Logf(logging.Info, "Ingest job %s complete in %s", job.ID, time.Since(start).Round(time.Millisecond))
	return current, nil
}

func (r *Runner) process(ctx context.Context, current Job) (Job, error) {
	var all []mapping.NormalizedRow
	decoded := 0

	for _, file := range current.Files {
		if err := ctx.Err(); err != nil {
			return current, fmt.Errorf("ingest cancelled: %w", err)
		}

		table, err := r.decodeFile(file)
		if err != nil {
			metrics.FilesDecodedTotal.WithLabelValues("failed").Inc()
			if r.onError == config.OnErrorHalt {
				return current, fmt.Errorf("decoding '%s': %w", file, err)
			}
			logging.Logf(logging.Warning, "Skipping file %s: %v", file, err)
			current, err = r.update(current.ID, Patch{
				Errors: append(current.Errors, fmt.Sprintf("Could not decode %s; file skipped.", filepath.Base(file))),
			})
			if err != nil {
				return current, err
			}
			continue
		}
		metrics.FilesDecodedTotal.WithLabelValues("ok").Inc()
		decoded++

		detection := schema.Detect(table.Columns)
		logging.Logf(logging.Debug, "File %s detected as %s (%.2f)", file, detection.Platform, detection.Confidence)

		current, err = r.update(current.ID, Patch{Step: ptr(StepMappingColumns), Progress: ptrInt(progressMapping)})
		if err != nil {
			return current, err
		}

		m := mapping.Infer(table.Columns)
		normalized := mapping.Apply(table.Rows, m, detection.Platform)

		current, err = r.update(current.ID, Patch{Step: ptr(StepAutoFixing), Progress: ptrInt(progressAutoFix)})
		if err != nil {
			return current, err
		}

		fixed := autofix.Fix(normalized)
		if len(fixed.Warnings) > 0 {
			current, err = r.update(current.ID, Patch{Errors: append(current.Errors, fixed.Warnings...)})
			if err != nil {
				return current, err
			}
		}

		rows, err := r.filterRows(fixed.FixedRows)
		if err != nil {
			return current, err
		}
		rows = r.resolveCreators(rows)
		all = append(all, rows...)
	}

	// Skipping individual files keeps a batch alive, but a batch in which
	// nothing decoded is a failure, not an empty success.
	if len(current.Files) > 0 && decoded == 0 {
		return current, errors.New("no files parsed successfully")
	}

	metrics.RowsNormalizedTotal.Add(float64(len(all)))

	current, err := r.update(current.ID, Patch{Step: ptr(StepNormalizing), Progress: ptrInt(progressRows)})
	if err != nil {
		return current, err
	}

	funnels := r.remapCreatorIDs(funnel.BuildFromRows(all))
	creatorsDetected := len(funnels)

	current, err = r.update(current.ID, Patch{
		Step:             ptr(StepBuildingFunnels),
		Progress:         ptrInt(progressFunnels),
		CreatorsDetected: ptrInt(creatorsDetected),
	})
	if err != nil {
		return current, err
	}

	if err := r.Store.Merge(funnels); err != nil {
		return current, err
	}

	current, err = r.update(current.ID, Patch{Step: ptr(StepLoggingUpload), Progress: ptrInt(progressUpload)})
	if err != nil {
		return current, err
	}
	if _, err := r.Uploads.Append(current.Files, creatorsDetected, UploadProcessed); err != nil {
		return current, err
	}

	return r.update(current.ID, Patch{
		Status:   ptr(StatusDone),
		Step:     ptr(StepComplete),
		Progress: ptrInt(progressComplete),
	})
}

// decodeFile reads a stored upload and decodes it by extension.
func (r *Runner) decodeFile(path string) (*decode.RawTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return decode.ForFilename(path, data)
}

// filterRows applies the configured row filter. Rows the filter rejects
// are dropped; evaluation errors follow the onError policy.
func (r *Runner) filterRows(rows []mapping.NormalizedRow) ([]mapping.NormalizedRow, error) {
	if r.filter == nil {
		return rows, nil
	}
	out := rows[:0:0]
	for _, row := range rows {
		params := map[string]interface{}{
			"creator":  row.Creator,
			"clicks":   row.Clicks,
			"dpv":      row.DPV,
			"atc":      row.ATC,
			"orders":   row.Orders,
			"revenue":  row.Revenue,
			"platform": string(row.Platform),
		}
		result, err := r.filter.Evaluate(params)
		if err != nil {
			if r.onError == config.OnErrorHalt {
				return nil, fmt.Errorf("evaluating ingest filter: %w", err)
			}
			logging.Logf(logging.Warning, "Skipping row, filter evaluation failed: %v", err)
			continue
		}
		keep, ok := result.(bool)
		if !ok {
			if r.onError == config.OnErrorHalt {
				return nil, fmt.Errorf("ingest filter returned non-boolean result %v", result)
			}
			continue
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

// resolveCreators canonicalizes row creator strings against the roster so
// the same person reported under a handle, tracking ID, or misspelled name
// aggregates into one funnel.
func (r *Runner) resolveCreators(rows []mapping.NormalizedRow) []mapping.NormalizedRow {
	if len(r.Roster) == 0 {
		return rows
	}
	byID := map[string]identity.CreatorProfile{}
	for _, p := range r.Roster {
		byID[p.ID] = p
	}
	for i := range rows {
		if rows[i].Creator == "" {
			continue
		}
		match := identity.Match(rows[i].Creator, r.Roster)
		if match.CreatorID == "" {
			continue
		}
		if p, ok := byID[match.CreatorID]; ok {
			rows[i].Creator = p.Name
		}
	}
	return rows
}

// remapCreatorIDs rewrites funnel creator IDs to roster IDs where the
// creator name resolves to a known profile.
func (r *Runner) remapCreatorIDs(funnels []funnel.CreatorFunnel) []funnel.CreatorFunnel {
	if len(r.Roster) == 0 {
		return funnels
	}
	for i := range funnels {
		for _, p := range r.Roster {
			if p.Name == funnels[i].CreatorName {
				funnels[i].CreatorID = p.ID
				break
			}
		}
	}
	return funnels
}

func (r *Runner) update(id string, patch Patch) (Job, error) {
	job, err := r.Queue.Update(id, patch)
	if err != nil {
		return Job{}, fmt.Errorf("updating job '%s': %w", id, err)
	}
	return job, nil
}

func ptr(s string) *string { return &s }
func ptrInt(i int) *int    { return &i }
