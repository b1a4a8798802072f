package schema

import "testing"

// TestDetect tests platform detection weights and reasons across typical
// export headers.
func TestDetect(t *testing.T) {
	testCases := []struct {
		name           string
		columns        []string
		wantPlatform   Platform
		wantConfidence float64
	}{
		{
			name:           "amazon asin column dominates",
			columns:        []string{"ASIN", "Revenue", "TrackingID"},
			wantPlatform:   PlatformAmazon,
			wantConfidence: 0.6,
		},
		{
			name:           "amazon full signal",
			columns:        []string{"asin", "units ordered", "earnings"},
			wantPlatform:   PlatformAmazon,
			wantConfidence: 1.0,
		},
		{
			name:           "instagram impressions and reach",
			columns:        []string{"Post ID", "Impressions", "Reach", "Likes"},
			wantPlatform:   PlatformInstagram,
			wantConfidence: 0.5,
		},
		{
			name:           "instagram profile visits",
			columns:        []string{"profile visits", "impressions"},
			wantPlatform:   PlatformInstagram,
			wantConfidence: 0.5,
		},
		{
			name:           "ltk keyword",
			columns:        []string{"ltk_product", "publisher", "clicks"},
			wantPlatform:   PlatformLTK,
			wantConfidence: 0.6,
		},
		{
			name:           "rewardstyle keyword",
			columns:        []string{"rewardstyle_id", "commission"},
			wantPlatform:   PlatformLTK,
			wantConfidence: 0.4,
		},
		{
			name:           "no signal",
			columns:        []string{"date", "value", "notes"},
			wantPlatform:   PlatformUnknown,
			wantConfidence: 0,
		},
		{
			name:           "empty columns",
			columns:        []string{},
			wantPlatform:   PlatformUnknown,
			wantConfidence: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Detect(tc.columns)
			if got.Platform != tc.wantPlatform {
				t.Errorf("Detect() platform = %s, want %s", got.Platform, tc.wantPlatform)
			}
			if diff := got.Confidence - tc.wantConfidence; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Detect() confidence = %v, want %v", got.Confidence, tc.wantConfidence)
			}
			if tc.wantPlatform == PlatformUnknown {
				if len(got.Reasons) != 1 || got.Reasons[0] != "No clear signal." {
					t.Errorf("Detect() reasons = %v, want [No clear signal.]", got.Reasons)
				}
			} else if len(got.Reasons) == 0 {
				t.Error("Detect() returned no reasons for a detected platform")
			}
		})
	}
}

// TestDetectConfidenceClamped verifies confidence never exceeds 1 even when
// every keyword for a platform is present.
func TestDetectConfidenceClamped(t *testing.T) {
	got := Detect([]string{"asin", "units ordered", "ordered items", "earnings", "commission"})
	if got.Platform != PlatformAmazon {
		t.Fatalf("Detect() platform = %s, want amazon", got.Platform)
	}
	if got.Confidence > 1 {
		t.Errorf("Detect() confidence = %v, want <= 1", got.Confidence)
	}
}
