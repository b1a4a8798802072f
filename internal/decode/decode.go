package decode

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"funneldash/internal/logging"

	"github.com/xuri/excelize/v2"
)

// Sentinel decode errors. Callers treat any error from this package as fatal
// for the single file only; a batch skips the file and continues.
var (
	ErrEmptyInput = errors.New("decode: empty input")
	ErrNoHeader   = errors.New("decode: missing header line")
)

// RawTable is the ephemeral columns+rows shape every decoder produces.
// Rows map column name to the raw cell string; no coercion happens here.
type RawTable struct {
	Columns []string
	Rows    []map[string]string
}

// ForFilename decodes file content, dispatching on the filename extension.
// ZIP archives are treated as wrapped attribute-style XML (marketplace fee
// exports), .xlsx as a spreadsheet, .xml as bare attribute-style markup, and
// everything else as CSV text.
func ForFilename(name string, data []byte) (*RawTable, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip":
		return ArchiveXML(data)
	case ".xlsx":
		return XLSX(data)
	case ".xml":
		return attributeXML(string(data))
	default:
		return CSV(string(data))
	}
}

// CSV decodes delimited text into a RawTable. The first non-blank line is the
// header. Fields are split quote-aware (a comma inside double quotes does not
// split) and surrounding quotes are stripped.
func CSV(text string) (*RawTable, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}

	var lines []string
	for _, l := range strings.Split(trimmed, "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	if len(lines) == 0 {
		return nil, ErrNoHeader
	}

	columns := splitCSVLine(lines[0])
	if len(columns) == 0 {
		return nil, ErrNoHeader
	}

	rows := make([]map[string]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		values := splitCSVLine(line)
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(values) {
				row[col] = values[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	logging.Logf(logging.Debug, "Decoded CSV: %d columns, %d rows", len(columns), len(rows))
	return &RawTable{Columns: columns, Rows: rows}, nil
}

// splitCSVLine splits one CSV line on commas outside double quotes, trims
// whitespace, and strips one pair of surrounding quotes per field.
func splitCSVLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == ',' && !inQuotes:
			fields = append(fields, cleanField(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, cleanField(cur.String()))
	return fields
}

func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

// attrPairRe matches one name="value" attribute pair.
var attrPairRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)="([^"]*)"`)

// selfClosingRe matches a self-closing element tag with its attribute blob.
var selfClosingRe = regexp.MustCompile(`<([A-Za-z_][A-Za-z0-9_]*)\b([^>]*?)/>`)

// ArchiveXML unpacks the single entry of a ZIP archive and decodes the
// attribute-style markup inside it. Marketplace fee exports ship this way.
func ArchiveXML(data []byte) (*RawTable, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("decode: failed to open archive: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("decode: archive has no entries: %w", ErrEmptyInput)
	}

	entry := zr.File[0]
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("decode: failed to open archive entry '%s': %w", entry.Name, err)
	}
	defer rc.Close()

	xmlBytes, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("decode: failed to read archive entry '%s': %w", entry.Name, err)
	}

	logging.Logf(logging.Debug, "Unpacked archive entry '%s' (%d bytes)", entry.Name, len(xmlBytes))
	return attributeXML(string(xmlBytes))
}

// attributeXML extracts one row per self-closing element carrying name="value"
// attribute pairs. This is deliberately pattern matching, not a full XML
// parse: attribute order does not matter and absent attributes default to the
// empty string.
func attributeXML(text string) (*RawTable, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	matches := selfClosingRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("decode: no attribute rows found: %w", ErrNoHeader)
	}

	var columns []string
	seen := make(map[string]bool)
	rows := make([]map[string]string, 0, len(matches))

	for _, m := range matches {
		attrs := attrPairRe.FindAllStringSubmatch(m[2], -1)
		if len(attrs) == 0 {
			continue
		}
		row := make(map[string]string, len(attrs))
		for _, a := range attrs {
			name, value := a[1], a[2]
			row[name] = value
			if !seen[name] {
				seen[name] = true
				columns = append(columns, name)
			}
		}
		rows = append(rows, row)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("decode: no attribute rows found: %w", ErrNoHeader)
	}

	// Backfill absent attributes so every row carries every column.
	for _, row := range rows {
		for _, col := range columns {
			if _, ok := row[col]; !ok {
				row[col] = ""
			}
		}
	}

	logging.Logf(logging.Debug, "Decoded attribute markup: %d columns, %d rows", len(columns), len(rows))
	return &RawTable{Columns: columns, Rows: rows}, nil
}

// XLSX decodes the active sheet of a spreadsheet into a RawTable. The first
// row is the header; short rows are padded with empty strings.
func XLSX(data []byte) (*RawTable, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: failed to open spreadsheet: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logging.Logf(logging.Error, "Failed to close spreadsheet: %v", cerr)
		}
	}()

	sheetName := f.GetSheetName(f.GetActiveSheetIndex())
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	if sheetName == "" {
		return nil, fmt.Errorf("decode: spreadsheet contains no sheets: %w", ErrEmptyInput)
	}

	rawRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("decode: failed to read sheet '%s': %w", sheetName, err)
	}
	if len(rawRows) == 0 {
		return nil, ErrNoHeader
	}

	var columns []string
	for _, h := range rawRows[0] {
		columns = append(columns, strings.TrimSpace(h))
	}
	if len(columns) == 0 {
		return nil, ErrNoHeader
	}

	rows := make([]map[string]string, 0, len(rawRows)-1)
	for _, raw := range rawRows[1:] {
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(raw) {
				row[col] = strings.TrimSpace(raw[i])
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	logging.Logf(logging.Debug, "Decoded sheet '%s': %d columns, %d rows", sheetName, len(columns), len(rows))
	return &RawTable{Columns: columns, Rows: rows}, nil
}
