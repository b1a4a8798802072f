package ingest

import (
	"fmt"
	"strings"
)

// FileColumns pairs an uploaded file name with its detected header columns,
// as submitted for inspection before ingestion is committed.
type FileColumns struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

const inspectAllOK = "All files look structurally OK. If something is off, try checking date ranges or making sure platforms match (IG / LTK / Amazon)."

// Inspect checks uploaded file headers for structural problems and returns
// human-readable suggestions. A clean set of files yields a single
// all-clear message.
func Inspect(files []FileColumns) []string {
	suggestions := []string{}

	for _, f := range files {
		if len(f.Columns) == 0 {
			suggestions = append(suggestions, fmt.Sprintf(
				"File %q has no detected columns. Make sure it's a CSV export, not an XLSX screenshot.", f.Name))
			continue
		}

		hasCreator, hasClick, hasOrder := false, false, false
		for _, c := range f.Columns {
			lc := strings.ToLower(c)
			if strings.Contains(lc, "creator") || strings.Contains(lc, "influencer") {
				hasCreator = true
			}
			if strings.Contains(lc, "click") {
				hasClick = true
			}
			if strings.Contains(lc, "order") || strings.Contains(lc, "purchases") {
				hasOrder = true
			}
		}

		if !hasCreator {
			suggestions = append(suggestions, fmt.Sprintf(
				"File %q is missing a clear creator column. Add a \"creator_name\" column if possible.", f.Name))
		}
		if !hasClick {
			suggestions = append(suggestions, fmt.Sprintf(
				"File %q has no click metrics. For funnels, include \"clicks\" or \"sessions\".", f.Name))
		}
		if !hasOrder {
			suggestions = append(suggestions, fmt.Sprintf(
				"File %q has no order/purchase column. Add \"orders\" or \"purchases\" so we can build funnels.", f.Name))
		}
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, inspectAllOK)
	}
	return suggestions
}
