// Package autofix applies conservative repairs to normalized rows: clamping
// negative monetary and count values, undoing obviously swapped funnel
// columns, and backfilling missing creator names from the raw source row.
package autofix

import (
	"strings"

	"funneldash/internal/logging"
	"funneldash/internal/mapping"
)

// Warning messages attached to a Result. Each appears at most once no
// matter how many rows triggered it.
const (
	warnNegativeRevenue = "Found negative revenue; clamped to 0."
	warnNegativeOrders  = "Found negative orders; clamped to 0."
	warnSwappedClicks   = "Detected DPV much larger than clicks; swapped clicks and DPV for some rows."
	warnInferredCreator = "Inferred missing creator from raw data for some rows."
)

// dpvSwapRatio is the threshold beyond which detail page views exceeding
// clicks is treated as a column swap rather than organic traffic.
const dpvSwapRatio = 10

// creatorFallbackKeys are raw column names checked, in order, when a row
// carries no mapped creator value.
var creatorFallbackKeys = []string{"creator", "influencer", "publisher", "handle", "creator_name"}

// Result holds the repaired rows, the deduplicated set of warnings, and a
// confidence score that decays with the fraction of fields touched.
type Result struct {
	FixedRows  []mapping.NormalizedRow `json:"fixedRows"`
	Warnings   []string                `json:"warnings"`
	Confidence float64                 `json:"confidence"`
}

// Fix repairs the given rows without mutating the input slice. Repairs are
// per-row and order-independent, so fixing is idempotent: running Fix on
// its own output produces no further changes.
func Fix(rows []mapping.NormalizedRow) Result {
	fixed := make([]mapping.NormalizedRow, len(rows))
	copy(fixed, rows)

	warnings := map[string]bool{}
	touched := 0

	for i := range fixed {
		row := &fixed[i]

		if row.Revenue < 0 {
			row.Revenue = 0
			warnings[warnNegativeRevenue] = true
			touched++
		}
		if row.Orders < 0 {
			row.Orders = 0
			warnings[warnNegativeOrders] = true
			touched++
		}
		if row.DPV > 0 && row.Clicks > 0 && row.DPV > row.Clicks*dpvSwapRatio {
			row.Clicks, row.DPV = row.DPV, row.Clicks
			warnings[warnSwappedClicks] = true
			touched++
		}
		if row.Creator == "" {
			if inferred := inferCreator(row.Raw); inferred != "" {
				row.Creator = inferred
				warnings[warnInferredCreator] = true
				touched++
			}
		}
	}

	ordered := make([]string, 0, len(warnings))
	for _, w := range []string{warnNegativeRevenue, warnNegativeOrders, warnSwappedClicks, warnInferredCreator} {
		if warnings[w] {
			ordered = append(ordered, w)
		}
	}
	for _, w := range ordered {
		logging.Logf(logging.Warning, "autofix: %s", w)
	}

	confidence := 1.0
	if len(fixed) > 0 {
		confidence = 1 - float64(touched)/float64(len(fixed)*3)
		if confidence < 0 {
			confidence = 0
		}
	}

	return Result{FixedRows: fixed, Warnings: ordered, Confidence: confidence}
}

// inferCreator scans the raw row for any creator-like key holding a
// non-empty value. Keys are matched case-insensitively.
func inferCreator(raw map[string]string) string {
	if raw == nil {
		return ""
	}
	for _, key := range creatorFallbackKeys {
		if v, ok := raw[key]; ok && v != "" {
			return v
		}
	}
	for k, v := range raw {
		if v == "" {
			continue
		}
		lk := strings.ToLower(k)
		for _, key := range creatorFallbackKeys {
			if lk == key {
				return v
			}
		}
	}
	return ""
}
