// Package schema classifies a table's probable source platform from its
// column names alone, using weighted keyword heuristics.
package schema

import "strings"

// Platform is the detected source platform tag.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformLTK       Platform = "ltk"
	PlatformAmazon    Platform = "amazon"
	PlatformUnknown   Platform = "unknown"
)

// DetectionResult carries the winning platform, a [0,1] confidence, and the
// human-readable signals that contributed to the score. It is never mutated
// after creation.
type DetectionResult struct {
	Platform   Platform `json:"platform"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

func anyContains(cols []string, substr string) bool {
	for _, c := range cols {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}

func anyContainsBoth(cols []string, a, b string) bool {
	for _, c := range cols {
		if strings.Contains(c, a) && strings.Contains(c, b) {
			return true
		}
	}
	return false
}

// Detect scores the column list against each known platform's signal
// keywords and returns the highest-scoring platform. All scores zero yields
// PlatformUnknown with confidence 0. Deterministic and side-effect free.
func Detect(columns []string) DetectionResult {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = strings.ToLower(c)
	}

	var reasons []string
	var instagramScore, ltkScore, amazonScore float64

	if anyContains(cols, "impressions") {
		instagramScore += 0.3
		reasons = append(reasons, `Found "impressions" -> Instagram`)
	}
	if anyContains(cols, "reach") {
		instagramScore += 0.2
		reasons = append(reasons, `Found "reach" -> Instagram`)
	}
	if anyContainsBoth(cols, "profile", "visits") {
		instagramScore += 0.2
		reasons = append(reasons, `Found "profile visits" -> Instagram`)
	}

	if anyContains(cols, "ltk") || anyContains(cols, "rewardstyle") {
		ltkScore += 0.4
		reasons = append(reasons, `Found "ltk"/"rewardstyle" -> LTK`)
	}
	if anyContains(cols, "publisher") {
		ltkScore += 0.2
		reasons = append(reasons, `Found "publisher" -> LTK`)
	}

	if anyContains(cols, "asin") {
		amazonScore += 0.6
		reasons = append(reasons, `Found "asin" -> Amazon`)
	}
	if anyContains(cols, "ordered") || anyContains(cols, "units") {
		amazonScore += 0.2
		reasons = append(reasons, `Found "ordered"/"units" -> Amazon`)
	}
	if anyContains(cols, "earnings") || anyContains(cols, "commission") {
		amazonScore += 0.2
		reasons = append(reasons, `Found "earnings"/"commission" -> Amazon`)
	}

	best := PlatformInstagram
	bestScore := instagramScore
	if ltkScore > bestScore {
		best, bestScore = PlatformLTK, ltkScore
	}
	if amazonScore > bestScore {
		best, bestScore = PlatformAmazon, amazonScore
	}

	if bestScore == 0 {
		return DetectionResult{Platform: PlatformUnknown, Confidence: 0, Reasons: []string{"No clear signal."}}
	}

	confidence := bestScore
	if confidence > 1 {
		confidence = 1
	}
	return DetectionResult{Platform: best, Confidence: confidence, Reasons: reasons}
}
