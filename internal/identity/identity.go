// Package identity resolves free-form creator strings from uploaded files
// against a roster of known creator profiles. Resolution runs a cascade of
// exact identifier checks before falling back to fuzzy name matching.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"funneldash/internal/logging"
)

// Match sources, strongest first. TrackingIDs are unambiguous Amazon
// attribution tags; LTK display names and Instagram handles are close
// behind; fuzzy is a last resort.
const (
	SourceAmazon    = "amazon"
	SourceLTK       = "ltk"
	SourceInstagram = "instagram"
	SourceFuzzy     = "fuzzy"
	SourceNone      = "none"
)

// fuzzyAcceptThreshold is the minimum similarity for a fuzzy match to be
// accepted. Anything at or below it resolves to no match.
const fuzzyAcceptThreshold = 0.6

// CreatorProfile is one roster entry. Every identifier list is optional.
type CreatorProfile struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Handles     []string `json:"handles,omitempty"`
	TrackingIDs []string `json:"trackingIds,omitempty"`
	LTKNames    []string `json:"ltkNames,omitempty"`
}

// MatchResult reports the resolved creator, how confident the resolution
// is, and which cascade stage produced it. CreatorID is empty when no
// match was found.
type MatchResult struct {
	CreatorID  string  `json:"creatorId,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// normalize lowercases the input and strips every non-alphanumeric rune,
// so "Jane_Doe!" and "janedoe" compare equal.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// levenshtein computes the edit distance between two strings using the
// standard two-row dynamic programming table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// FuzzyScore returns a similarity in [0,1] between a query and a roster
// token. The edit distance runs over normalized forms; the denominator is
// the longer of the normalized query and the raw token, so punctuation in
// the query does not inflate the score.
func FuzzyScore(a, b string) float64 {
	na := normalize(a)
	maxLen := len(na)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	d := levenshtein(na, normalize(b))
	score := 1 - float64(d)/float64(maxLen)
	if score < 0 {
		score = 0
	}
	return score
}

// containsAnyNormalized reports whether the normalized text contains any
// list entry after normalization. Entries that normalize to nothing are
// skipped. Containment, not equality: identifiers embedded in longer free
// text (a caption, a product link) still resolve.
func containsAnyNormalized(norm string, list []string) bool {
	for _, item := range list {
		if tok := normalize(item); tok != "" && strings.Contains(norm, tok) {
			return true
		}
	}
	return false
}

// Match resolves text against the roster. Containment of an exact
// identifier wins in priority order: tracking IDs, then LTK names, then
// handles. When no identifier is contained, the best fuzzy score across
// every identifier and the display name is taken, and accepted only above
// the fuzzy threshold.
func Match(text string, roster []CreatorProfile) MatchResult {
	norm := normalize(text)

	for _, p := range roster {
		if containsAnyNormalized(norm, p.TrackingIDs) {
			return MatchResult{CreatorID: p.ID, Confidence: 1.0, Source: SourceAmazon}
		}
	}
	for _, p := range roster {
		if containsAnyNormalized(norm, p.LTKNames) {
			return MatchResult{CreatorID: p.ID, Confidence: 0.95, Source: SourceLTK}
		}
	}
	for _, p := range roster {
		if containsAnyNormalized(norm, p.Handles) {
			return MatchResult{CreatorID: p.ID, Confidence: 0.9, Source: SourceInstagram}
		}
	}

	bestID, bestScore := "", 0.0
	for _, p := range roster {
		tokens := make([]string, 0, 1+len(p.Handles)+len(p.TrackingIDs)+len(p.LTKNames))
		tokens = append(tokens, p.Name)
		tokens = append(tokens, p.Handles...)
		tokens = append(tokens, p.TrackingIDs...)
		tokens = append(tokens, p.LTKNames...)
		for _, tok := range tokens {
			if s := FuzzyScore(text, tok); s > bestScore {
				bestID, bestScore = p.ID, s
			}
		}
	}
	if bestScore > fuzzyAcceptThreshold {
		return MatchResult{CreatorID: bestID, Confidence: bestScore, Source: SourceFuzzy}
	}
	return MatchResult{Confidence: 0, Source: SourceNone}
}

// DefaultRoster returns the built-in demonstration roster used when no
// roster file is configured.
func DefaultRoster() []CreatorProfile {
	return []CreatorProfile{
		{
			ID:          "creator-alpha",
			Name:        "Nicki Monroe",
			Handles:     []string{"@nickimonroe", "nickimonroe"},
			TrackingIDs: []string{"nickimonroe-20", "nicki-igreel-20", "nicki-fb-20"},
			LTKNames:    []string{"Nicki Monroe"},
		},
		{
			ID:          "creator-beta",
			Name:        "Sarah Chen",
			Handles:     []string{"@sarahchen", "sarahchen"},
			TrackingIDs: []string{"sarahchen-20"},
			LTKNames:    []string{"Sarah Chen Style"},
		},
		{
			ID:          "creator-gamma",
			Name:        "Maya Rodriguez",
			Handles:     []string{"@mayarod", "mayarod"},
			TrackingIDs: []string{"mayarod-20"},
			LTKNames:    []string{"Maya Rodriguez"},
		},
	}
}

// LoadRoster reads creator profiles from a JSON file. A missing path falls
// back to the built-in roster; a malformed file is an error.
func LoadRoster(path string) ([]CreatorProfile, error) {
	if path == "" {
		return DefaultRoster(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Logf(logging.Warning, "Roster file %q not found, using built-in roster", path)
			return DefaultRoster(), nil
		}
		return nil, fmt.Errorf("reading roster file '%s': %w", path, err)
	}
	var roster []CreatorProfile
	if err := json.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("parsing roster file '%s': %w", path, err)
	}
	if len(roster) == 0 {
		return nil, fmt.Errorf("roster file '%s' contains no profiles", path)
	}
	logging.Logf(logging.Info, "Loaded %d creator profiles from %s", len(roster), path)
	return roster, nil
}
