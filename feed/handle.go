// Package feed holds the data records that flow through a digest job and
// the CSV codecs for reading handle lists and tweet payloads.
package feed

import (
	"bytes"
	"encoding/csv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/ChineseLsh/x-feed-digest/errors"
)

// HandleRecord is one row of a subscriber's handle list. Only Handle is
// required; the profile fields enrich the fetch prompt when present.
type HandleRecord struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Followers   string `json:"followers,omitempty"`
	Following   string `json:"following,omitempty"`
}

var handleColumns = map[string]bool{
	"handle":      true,
	"username":    true,
	"screen_name": true,
	"user":        true,
}

// ParseHandleCSV reads an uploaded handle list. Files come from spreadsheet
// exports in the wild, so this tolerates UTF-8 BOMs, GBK/GB18030/Latin-1
// encodings, tab and semicolon delimiters, and headerless single-column
// lists.
func ParseHandleCSV(data []byte) ([]HandleRecord, error) {
	text := decodeWithFallback(data)
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("handle list is empty")
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = detectDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse handle list")
	}
	if len(rows) == 0 {
		return nil, errors.New("handle list is empty")
	}

	cols := headerColumns(rows[0])
	dataRows := rows
	if cols != nil {
		dataRows = rows[1:]
	} else {
		// Headerless list: first column is the handle
		cols = map[string]int{"handle": 0}
	}

	seen := make(map[string]bool)
	var records []HandleRecord
	for _, row := range dataRows {
		rec := HandleRecord{
			Handle:      normalizeHandle(field(row, cols, "handle")),
			DisplayName: field(row, cols, "display_name"),
			Bio:         field(row, cols, "bio"),
			Followers:   field(row, cols, "followers"),
			Following:   field(row, cols, "following"),
		}
		if rec.Handle == "" || seen[strings.ToLower(rec.Handle)] {
			continue
		}
		seen[strings.ToLower(rec.Handle)] = true
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, errors.New("handle list contains no usable handles")
	}
	return records, nil
}

// headerColumns maps canonical field names to column indexes when the first
// row looks like a header, or returns nil for headerless data.
func headerColumns(header []string) map[string]int {
	cols := make(map[string]int)
	foundHandle := false
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))
		switch {
		case handleColumns[key]:
			cols["handle"] = i
			foundHandle = true
		case key == "display_name" || key == "name" || key == "nickname":
			cols["display_name"] = i
		case key == "bio" || key == "description":
			cols["bio"] = i
		case key == "followers" || key == "followers_count":
			cols["followers"] = i
		case key == "following" || key == "following_count":
			cols["following"] = i
		}
	}
	if !foundHandle {
		return nil
	}
	return cols
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func normalizeHandle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "@")
	return s
}

// detectDelimiter picks the delimiter that splits the first line into the
// most fields. Comma wins ties.
func detectDelimiter(text string) rune {
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}
	best := ','
	bestCount := strings.Count(firstLine, ",")
	for _, cand := range []rune{'\t', ';'} {
		if n := strings.Count(firstLine, string(cand)); n > bestCount {
			best = cand
			bestCount = n
		}
	}
	return best
}

// decodeWithFallback converts spreadsheet exports that are not UTF-8.
// GB18030 is a superset of GBK but some files only round-trip under one of
// them, so both are tried before the Latin-1 catch-all.
func decodeWithFallback(data []byte) string {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data)
	}
	for _, enc := range []encoding.Encoding{
		simplifiedchinese.GBK,
		simplifiedchinese.GB18030,
		charmap.ISO8859_1,
	} {
		if out, err := enc.NewDecoder().Bytes(data); err == nil {
			return string(out)
		}
	}
	return string(data)
}
