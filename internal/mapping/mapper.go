// Package mapping infers which raw column feeds each canonical funnel field
// and applies the inferred mapping to raw rows, producing normalized rows.
package mapping

import (
	"strconv"
	"strings"

	"funneldash/internal/schema"
)

// Canonical field names used as keys in PerColumn confidence maps.
const (
	FieldCreator   = "creator"
	FieldProductID = "productId"
	FieldClicks    = "clicks"
	FieldDPV       = "dpv"
	FieldATC       = "atc"
	FieldOrders    = "orders"
	FieldRevenue   = "revenue"
)

// Keyword lexicons per canonical field. A column scores 1.0 on exact
// case-insensitive match with any keyword, 0.7 on substring containment.
var (
	creatorKeywords   = []string{"creator", "influencer", "publisher", "handle", "creator_name"}
	productIDKeywords = []string{"asin", "sku", "product", "product_id"}
	clicksKeywords    = []string{"click", "clicks", "sessions", "click_through"}
	dpvKeywords       = []string{"detail_page_view", "detail page view", "dpv", "pageview", "page_view"}
	atcKeywords       = []string{"add_to_cart", "add to cart", "atc", "adds to cart"}
	ordersKeywords    = []string{"order", "orders", "purchases", "units ordered"}
	revenueKeywords   = []string{"revenue", "earnings", "commission", "amount"}
)

// ColumnMapping records, for each canonical field, which source column feeds
// it (empty string when no mapping was found), plus per-field and overall
// confidence scores in [0,1].
type ColumnMapping struct {
	CreatorCol   string             `json:"creatorCol,omitempty"`
	ProductIDCol string             `json:"productIdCol,omitempty"`
	ClicksCol    string             `json:"clicksCol,omitempty"`
	DPVCol       string             `json:"dpvCol,omitempty"`
	ATCCol       string             `json:"atcCol,omitempty"`
	OrdersCol    string             `json:"ordersCol,omitempty"`
	RevenueCol   string             `json:"revenueCol,omitempty"`
	Confidence   float64            `json:"confidence"`
	PerColumn    map[string]float64 `json:"perColumnConfidence"`
}

// NormalizedRow is one raw row after mapping and numeric coercion. The
// original row mapping is retained for fallback inference downstream.
type NormalizedRow struct {
	Creator   string            `json:"creator,omitempty"`
	ProductID string            `json:"productId,omitempty"`
	Clicks    float64           `json:"clicks"`
	DPV       float64           `json:"dpv"`
	ATC       float64           `json:"atc"`
	Orders    float64           `json:"orders"`
	Revenue   float64           `json:"revenue"`
	Platform  schema.Platform   `json:"platform"`
	Raw       map[string]string `json:"-"`
}

// findBestColumn scores every column against the candidate keywords and
// returns the best column and its score. Ties keep the first column in
// source order.
func findBestColumn(columns []string, candidates []string) (string, float64) {
	bestCol, bestScore := "", 0.0
	for _, col := range columns {
		lc := strings.ToLower(col)
		score := 0.0
		for _, cand := range candidates {
			if lc == cand {
				if score < 1 {
					score = 1
				}
			} else if strings.Contains(lc, cand) {
				if score < 0.7 {
					score = 0.7
				}
			}
		}
		if score > bestScore {
			bestCol, bestScore = col, score
		}
	}
	return bestCol, bestScore
}

// Infer builds a ColumnMapping for the given column list. The overall
// confidence is the mean of the non-zero per-field scores (0 when nothing
// matched). Infer is deterministic and idempotent.
func Infer(columns []string) ColumnMapping {
	creatorCol, creatorScore := findBestColumn(columns, creatorKeywords)
	productIDCol, productIDScore := findBestColumn(columns, productIDKeywords)
	clicksCol, clicksScore := findBestColumn(columns, clicksKeywords)
	dpvCol, dpvScore := findBestColumn(columns, dpvKeywords)
	atcCol, atcScore := findBestColumn(columns, atcKeywords)
	ordersCol, ordersScore := findBestColumn(columns, ordersKeywords)
	revenueCol, revenueScore := findBestColumn(columns, revenueKeywords)

	perColumn := map[string]float64{
		FieldCreator:   creatorScore,
		FieldProductID: productIDScore,
		FieldClicks:    clicksScore,
		FieldDPV:       dpvScore,
		FieldATC:       atcScore,
		FieldOrders:    ordersScore,
		FieldRevenue:   revenueScore,
	}

	sum, nonZero := 0.0, 0
	for _, s := range perColumn {
		if s > 0 {
			sum += s
			nonZero++
		}
	}
	avg := 0.0
	if nonZero > 0 {
		avg = sum / float64(nonZero)
	}
	if avg > 1 {
		avg = 1
	}

	return ColumnMapping{
		CreatorCol:   creatorCol,
		ProductIDCol: productIDCol,
		ClicksCol:    clicksCol,
		DPVCol:       dpvCol,
		ATCCol:       atcCol,
		OrdersCol:    ordersCol,
		RevenueCol:   revenueCol,
		Confidence:   avg,
		PerColumn:    perColumn,
	}
}

// ToNumber coerces a raw cell value to a float64 by stripping every
// character that is not a digit, decimal point, or minus sign, then parsing.
// Invalid or empty input yields 0. This is the single numeric coercion rule
// used everywhere normalization happens.
func ToNumber(v string) float64 {
	var cleaned strings.Builder
	for _, r := range v {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			cleaned.WriteRune(r)
		}
	}
	n, err := strconv.ParseFloat(cleaned.String(), 64)
	if err != nil {
		return 0
	}
	return n
}

// lookup reads a mapped column from a raw row, falling back to the
// lowercase key variant. An empty column name yields "".
func lookup(raw map[string]string, col string) string {
	if col == "" {
		return ""
	}
	if v, ok := raw[col]; ok && v != "" {
		return v
	}
	if v, ok := raw[strings.ToLower(col)]; ok {
		return v
	}
	return raw[col]
}

// Apply maps every raw row through the inferred mapping, coercing numeric
// fields and tagging each row with the detected platform. Absent columns
// yield empty or zero fields; Apply never fails.
func Apply(rows []map[string]string, m ColumnMapping, platform schema.Platform) []NormalizedRow {
	out := make([]NormalizedRow, 0, len(rows))
	for _, raw := range rows {
		out = append(out, NormalizedRow{
			Creator:   lookup(raw, m.CreatorCol),
			ProductID: lookup(raw, m.ProductIDCol),
			Clicks:    ToNumber(lookup(raw, m.ClicksCol)),
			DPV:       ToNumber(lookup(raw, m.DPVCol)),
			ATC:       ToNumber(lookup(raw, m.ATCCol)),
			Orders:    ToNumber(lookup(raw, m.OrdersCol)),
			Revenue:   ToNumber(lookup(raw, m.RevenueCol)),
			Platform:  platform,
			Raw:       raw,
		})
	}
	return out
}
