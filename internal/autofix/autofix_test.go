package autofix

import (
	"reflect"
	"testing"

	"funneldash/internal/mapping"
)

// TestFixCleanInput verifies clean rows pass through untouched with full
// confidence and no warnings.
func TestFixCleanInput(t *testing.T) {
	rows := []mapping.NormalizedRow{
		{Creator: "nicki", Clicks: 100, DPV: 80, Orders: 5, Revenue: 250},
		{Creator: "sarah", Clicks: 50, DPV: 40, Orders: 2, Revenue: 90},
	}

	got := Fix(rows)
	if !reflect.DeepEqual(got.FixedRows, rows) {
		t.Errorf("Fix() modified clean rows: %+v", got.FixedRows)
	}
	if len(got.Warnings) != 0 {
		t.Errorf("Fix() warnings = %v, want none", got.Warnings)
	}
	if got.Confidence != 1.0 {
		t.Errorf("Fix() confidence = %v, want 1.0", got.Confidence)
	}
}

// TestFixEmptyInput verifies zero rows yield full confidence.
func TestFixEmptyInput(t *testing.T) {
	got := Fix(nil)
	if got.Confidence != 1.0 {
		t.Errorf("Fix() confidence = %v, want 1.0", got.Confidence)
	}
	if len(got.FixedRows) != 0 || len(got.Warnings) != 0 {
		t.Errorf("Fix() on empty input = %+v", got)
	}
}

// TestFixRepairs tests each repair rule and its warning message.
func TestFixRepairs(t *testing.T) {
	testCases := []struct {
		name        string
		row         mapping.NormalizedRow
		check       func(t *testing.T, fixed mapping.NormalizedRow)
		wantWarning string
	}{
		{
			name: "negative revenue clamped",
			row:  mapping.NormalizedRow{Creator: "nicki", Revenue: -50},
			check: func(t *testing.T, fixed mapping.NormalizedRow) {
				if fixed.Revenue != 0 {
					t.Errorf("revenue = %v, want 0", fixed.Revenue)
				}
			},
			wantWarning: "Found negative revenue; clamped to 0.",
		},
		{
			name: "negative orders clamped",
			row:  mapping.NormalizedRow{Creator: "nicki", Orders: -3},
			check: func(t *testing.T, fixed mapping.NormalizedRow) {
				if fixed.Orders != 0 {
					t.Errorf("orders = %v, want 0", fixed.Orders)
				}
			},
			wantWarning: "Found negative orders; clamped to 0.",
		},
		{
			name: "swapped clicks and dpv",
			row:  mapping.NormalizedRow{Creator: "nicki", Clicks: 10, DPV: 500},
			check: func(t *testing.T, fixed mapping.NormalizedRow) {
				if fixed.Clicks != 500 || fixed.DPV != 10 {
					t.Errorf("clicks/dpv = %v/%v, want 500/10", fixed.Clicks, fixed.DPV)
				}
			},
			wantWarning: "Detected DPV much larger than clicks; swapped clicks and DPV for some rows.",
		},
		{
			name: "creator inferred from raw",
			row: mapping.NormalizedRow{
				Creator: "",
				Raw:     map[string]string{"influencer": "sarah", "clicks": "10"},
			},
			check: func(t *testing.T, fixed mapping.NormalizedRow) {
				if fixed.Creator != "sarah" {
					t.Errorf("creator = %q, want sarah", fixed.Creator)
				}
			},
			wantWarning: "Inferred missing creator from raw data for some rows.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Fix([]mapping.NormalizedRow{tc.row})
			if len(got.FixedRows) != 1 {
				t.Fatalf("Fix() returned %d rows, want 1", len(got.FixedRows))
			}
			tc.check(t, got.FixedRows[0])
			if len(got.Warnings) != 1 || got.Warnings[0] != tc.wantWarning {
				t.Errorf("Fix() warnings = %v, want [%s]", got.Warnings, tc.wantWarning)
			}
			if got.Confidence >= 1.0 {
				t.Errorf("Fix() confidence = %v, want < 1.0 after repair", got.Confidence)
			}
		})
	}
}

// TestFixSwapThreshold verifies DPV within ten times clicks is left alone.
func TestFixSwapThreshold(t *testing.T) {
	row := mapping.NormalizedRow{Clicks: 10, DPV: 100}
	got := Fix([]mapping.NormalizedRow{row})
	if got.FixedRows[0].Clicks != 10 || got.FixedRows[0].DPV != 100 {
		t.Errorf("Fix() swapped at the threshold boundary: %+v", got.FixedRows[0])
	}
}

// TestFixWarningsDeduplicated verifies a warning appears once even when
// many rows trigger it.
func TestFixWarningsDeduplicated(t *testing.T) {
	rows := []mapping.NormalizedRow{
		{Revenue: -1}, {Revenue: -2}, {Revenue: -3},
	}
	got := Fix(rows)
	if len(got.Warnings) != 1 {
		t.Errorf("Fix() warnings = %v, want exactly one", got.Warnings)
	}
}

// TestFixIdempotent verifies fixing already-fixed rows changes nothing.
func TestFixIdempotent(t *testing.T) {
	rows := []mapping.NormalizedRow{
		{Creator: "nicki", Clicks: 10, DPV: 500, Revenue: -5},
		{Creator: "", Orders: -2, Raw: map[string]string{"handle": "@sarahchen"}},
	}
	first := Fix(rows)
	second := Fix(first.FixedRows)
	if !reflect.DeepEqual(second.FixedRows, first.FixedRows) {
		t.Errorf("Fix() not idempotent: %+v vs %+v", second.FixedRows, first.FixedRows)
	}
	if len(second.Warnings) != 0 {
		t.Errorf("Fix() second pass warnings = %v, want none", second.Warnings)
	}
	if second.Confidence != 1.0 {
		t.Errorf("Fix() second pass confidence = %v, want 1.0", second.Confidence)
	}
}

// TestFixConfidenceDecay verifies confidence decreases with the fraction of
// touched fields and clamps at zero.
func TestFixConfidenceDecay(t *testing.T) {
	rows := []mapping.NormalizedRow{{Revenue: -1, Orders: -1, Clicks: 1, DPV: 100}}
	got := Fix(rows)
	// Three repairs over one row: 1 - 3/(1*3) = 0.
	if got.Confidence != 0 {
		t.Errorf("Fix() confidence = %v, want 0", got.Confidence)
	}
}
