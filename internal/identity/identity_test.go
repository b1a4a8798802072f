package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func testRoster() []CreatorProfile {
	return []CreatorProfile{
		{
			ID:          "creator-alpha",
			Name:        "Nicki Monroe",
			Handles:     []string{"@nickimonroe"},
			TrackingIDs: []string{"nickimonroe-20"},
			LTKNames:    []string{"Nicki Monroe"},
		},
		{
			ID:          "creator-beta",
			Name:        "Sarah Chen",
			Handles:     []string{"@sarahchen"},
			TrackingIDs: []string{"sarahchen-20"},
			LTKNames:    []string{"Sarah Chen Style"},
		},
	}
}

// TestNormalize tests identifier normalization.
func TestNormalize(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"Nicki Monroe", "nickimonroe"},
		{"@nickimonroe", "nickimonroe"},
		{"SARAH_CHEN!", "sarahchen"},
		{"", ""},
		{"---", ""},
	}
	for _, tc := range testCases {
		if got := normalize(tc.input); got != tc.want {
			t.Errorf("normalize(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

// TestMatchCascade tests the resolution cascade: tracking IDs beat LTK
// names beat handles beat fuzzy.
func TestMatchCascade(t *testing.T) {
	roster := testRoster()

	testCases := []struct {
		name           string
		text           string
		wantCreatorID  string
		wantSource     string
		wantConfidence float64
	}{
		{
			name:           "tracking id exact",
			text:           "nickimonroe-20",
			wantCreatorID:  "creator-alpha",
			wantSource:     SourceAmazon,
			wantConfidence: 1.0,
		},
		{
			name:           "ltk name exact",
			text:           "Sarah Chen Style",
			wantCreatorID:  "creator-beta",
			wantSource:     SourceLTK,
			wantConfidence: 0.95,
		},
		{
			name:           "handle exact",
			text:           "@sarahchen",
			wantCreatorID:  "creator-beta",
			wantSource:     SourceInstagram,
			wantConfidence: 0.9,
		},
		{
			name:          "fuzzy close misspelling",
			text:          "Nicki Monro",
			wantCreatorID: "creator-alpha",
			wantSource:    SourceFuzzy,
		},
		{
			name:           "no match",
			text:           "completely unrelated person",
			wantCreatorID:  "",
			wantSource:     SourceNone,
			wantConfidence: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Match(tc.text, roster)
			if got.CreatorID != tc.wantCreatorID {
				t.Errorf("Match() creatorID = %q, want %q", got.CreatorID, tc.wantCreatorID)
			}
			if got.Source != tc.wantSource {
				t.Errorf("Match() source = %q, want %q", got.Source, tc.wantSource)
			}
			if tc.wantSource == SourceFuzzy {
				if got.Confidence <= 0.6 || got.Confidence >= 1 {
					t.Errorf("Match() fuzzy confidence = %v, want in (0.6, 1)", got.Confidence)
				}
			} else if got.Confidence != tc.wantConfidence {
				t.Errorf("Match() confidence = %v, want %v", got.Confidence, tc.wantConfidence)
			}
		})
	}
}

// TestMatchTrackingIDOutranksFuzzy verifies a contained tracking ID wins
// even when another profile's name is a closer fuzzy match.
func TestMatchTrackingIDOutranksFuzzy(t *testing.T) {
	roster := []CreatorProfile{
		{ID: "decoy", Name: "order from nickimonroe campaign"},
		{ID: "target", Name: "Someone Else", TrackingIDs: []string{"nickimonroe-20"}},
	}
	got := Match("order from nickimonroe-20 campaign", roster)
	if got.CreatorID != "target" || got.Source != SourceAmazon || got.Confidence != 1.0 {
		t.Errorf("Match() = %+v, want tracking ID match on target with confidence 1", got)
	}
}

// TestMatchContainment verifies identifiers embedded in longer free text
// still resolve through the exact cascade.
func TestMatchContainment(t *testing.T) {
	roster := testRoster()

	testCases := []struct {
		name           string
		text           string
		wantCreatorID  string
		wantSource     string
		wantConfidence float64
	}{
		{
			name:           "tracking id inside order note",
			text:           "Order placed via tag nickimonroe-20 last week",
			wantCreatorID:  "creator-alpha",
			wantSource:     SourceAmazon,
			wantConfidence: 1.0,
		},
		{
			name:           "ltk name inside brand string",
			wantCreatorID:  "creator-beta",
			text:           "Collab: Sarah Chen Style x Nordstrom",
			wantSource:     SourceLTK,
			wantConfidence: 0.95,
		},
		{
			name:           "handle inside caption",
			text:           "New reel up! follow @sarahchen for more",
			wantCreatorID:  "creator-beta",
			wantSource:     SourceInstagram,
			wantConfidence: 0.9,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Match(tc.text, roster)
			if got.CreatorID != tc.wantCreatorID || got.Source != tc.wantSource || got.Confidence != tc.wantConfidence {
				t.Errorf("Match(%q) = %+v, want {%s %v %s}", tc.text, got, tc.wantCreatorID, tc.wantConfidence, tc.wantSource)
			}
		})
	}
}

// TestMatchSkipsEmptyIdentifiers verifies identifiers that normalize to
// nothing never match arbitrary text.
func TestMatchSkipsEmptyIdentifiers(t *testing.T) {
	roster := []CreatorProfile{
		{ID: "blank", Name: "Blank", TrackingIDs: []string{"---"}, Handles: []string{"@"}},
	}
	got := Match("completely unrelated person", roster)
	if got.Source != SourceNone || got.CreatorID != "" {
		t.Errorf("Match() = %+v, want no match", got)
	}
}

// TestLevenshtein tests the edit distance computation.
func TestLevenshtein(t *testing.T) {
	testCases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"same", "same", 0},
	}
	for _, tc := range testCases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

// TestFuzzyScore verifies the similarity scale and that the normalized
// query length sets the denominator while the token length stays raw.
func TestFuzzyScore(t *testing.T) {
	if got := FuzzyScore("nicki", "nicki"); got != 1 {
		t.Errorf("FuzzyScore(identical) = %v, want 1", got)
	}
	if got := FuzzyScore("", ""); got != 0 {
		t.Errorf("FuzzyScore(empty) = %v, want 0", got)
	}
	// Punctuation in the query is stripped before the length is taken, so
	// a noisy query scores exactly like its bare form.
	plain := FuzzyScore("nicki", "nicky")
	noisy := FuzzyScore("n-i-c-k-i", "nicky")
	if noisy != plain {
		t.Errorf("FuzzyScore noisy query = %v, plain = %v; want equal", noisy, plain)
	}
	// The token keeps its raw length. "n_i_c_k_y" is 9 characters, one
	// edit from "nicki" after normalization: 1 - 1/9.
	if got, want := FuzzyScore("nicki", "n_i_c_k_y"), 1-1.0/9; got != want {
		t.Errorf("FuzzyScore(punctuated token) = %v, want %v", got, want)
	}
}

// TestLoadRoster tests roster file loading and fallbacks.
func TestLoadRoster(t *testing.T) {
	t.Run("empty path uses builtin", func(t *testing.T) {
		roster, err := LoadRoster("")
		if err != nil {
			t.Fatalf("LoadRoster() unexpected error: %v", err)
		}
		if len(roster) == 0 {
			t.Error("LoadRoster() built-in roster is empty")
		}
	})

	t.Run("missing file uses builtin", func(t *testing.T) {
		roster, err := LoadRoster(filepath.Join(t.TempDir(), "absent.json"))
		if err != nil {
			t.Fatalf("LoadRoster() unexpected error: %v", err)
		}
		if len(roster) == 0 {
			t.Error("LoadRoster() built-in roster is empty")
		}
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "roster.json")
		data, _ := json.Marshal(testRoster())
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
		roster, err := LoadRoster(path)
		if err != nil {
			t.Fatalf("LoadRoster() unexpected error: %v", err)
		}
		if len(roster) != 2 || roster[0].ID != "creator-alpha" {
			t.Errorf("LoadRoster() = %+v", roster)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "roster.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadRoster(path); err == nil {
			t.Error("LoadRoster() on malformed file, want error")
		}
	})
}
