package funnel

import (
	"strconv"
	"strings"

	"funneldash/internal/decode"
)

// columnByFragment returns the first column whose lowercase name contains
// the fragment, or "" when none does.
func columnByFragment(columns []string, fragment string) string {
	for _, c := range columns {
		if strings.Contains(strings.ToLower(c), fragment) {
			return c
		}
	}
	return ""
}

// cellNumber parses a numeric cell after stripping currency symbols and
// thousands separators. Missing or malformed cells yield 0.
func cellNumber(row map[string]string, col string) float64 {
	if col == "" {
		return 0
	}
	v := strings.NewReplacer("$", "", ",", "").Replace(row[col])
	if v == "" {
		return 0
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return n
}

func cellString(row map[string]string, col string) string {
	if col == "" {
		return ""
	}
	return row[col]
}

// ExtractInstagram reads Instagram post metrics from a decoded export.
// Columns are located by header fragment so minor export variations still
// parse. Rows without a post ID are skipped.
func ExtractInstagram(table decode.RawTable) []InstagramPostMetric {
	postIDCol := columnByFragment(table.Columns, "post id")
	captionCol := columnByFragment(table.Columns, "caption")
	if captionCol == "" {
		captionCol = columnByFragment(table.Columns, "description")
	}
	impressionsCol := columnByFragment(table.Columns, "impressions")
	reachCol := columnByFragment(table.Columns, "reach")
	linkClicksCol := columnByFragment(table.Columns, "link clicks")
	savesCol := columnByFragment(table.Columns, "saves")
	likesCol := columnByFragment(table.Columns, "likes")

	out := []InstagramPostMetric{}
	for _, row := range table.Rows {
		postID := cellString(row, postIDCol)
		if postID == "" {
			continue
		}
		out = append(out, InstagramPostMetric{
			PostID:      postID,
			Caption:     cellString(row, captionCol),
			Impressions: cellNumber(row, impressionsCol),
			Reach:       cellNumber(row, reachCol),
			LinkClicks:  cellNumber(row, linkClicksCol),
			Saves:       cellNumber(row, savesCol),
			Likes:       cellNumber(row, likesCol),
		})
	}
	return out
}
