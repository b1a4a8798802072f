package funnel

import "funneldash/internal/decode"

// ExtractAmazonItems reads item records from a decoded Amazon earnings
// export. Amazon reports arrive as zipped XML, so the table columns carry
// the original attribute names verbatim.
func ExtractAmazonItems(table decode.RawTable) []AmazonItemMetric {
	out := []AmazonItemMetric{}
	for _, row := range table.Rows {
		out = append(out, AmazonItemMetric{
			ASIN:         row["ASIN"],
			Title:        row["title"],
			Revenue:      cellNumber(row, "Revenue"),
			AdFees:       cellNumber(row, "AdFees"),
			ItemsShipped: cellNumber(row, "ItemsShipped"),
			TrackingID:   row["TrackingID"],
			Category:     row["Category"],
			DateShipped:  row["DateShipped"],
		})
	}
	return out
}
