package domain

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// headerInvalidRe matches any character not allowed in a normalized column name.
	headerInvalidRe = regexp.MustCompile(`[^a-z0-9_]`)
	// underscoreRunRe collapses repeated underscores.
	underscoreRunRe = regexp.MustCompile(`_+`)

	utf8BOM = []byte{0xEF, 0xBB, 0xBF}

	// delimiterCandidates are tried in order; earlier entries win ties.
	delimiterCandidates = []rune{',', '\t', '|', ';'}
)

// ParseError describes a problem with one row (Row > 0) or a whole file
// (Row == 0). Parsing continues past row errors.
type ParseError struct {
	File    string `json:"file,omitempty"`
	Row     int    `json:"row,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (e ParseError) Error() string {
	switch {
	case e.Row > 0 && e.File != "":
		return fmt.Sprintf("%s row %d: %s", e.File, e.Row, e.Message)
	case e.Row > 0:
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	default:
		return e.Message
	}
}

// ParseResult is the output of a parse: rows in source order, the recognized
// columns, and any errors collected along the way.
type ParseResult struct {
	Rows    []Row
	Columns []string
	Errors  []ParseError
}

// WithFile stamps every error with the given file name.
func (r ParseResult) WithFile(name string) ParseResult {
	for i := range r.Errors {
		r.Errors[i].File = name
	}
	return r
}

// NormalizeHeader trims and lowercases a column name, replaces anything
// outside [a-z0-9_] with "_", collapses runs of "_" and strips leading and
// trailing "_".
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = headerInvalidRe.ReplaceAllString(h, "_")
	h = underscoreRunRe.ReplaceAllString(h, "_")
	return strings.Trim(h, "_")
}

// normalizeHeaders normalizes a header row. Empty names become column_N and
// duplicates get a numeric suffix so no column is silently overwritten.
func normalizeHeaders(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := NormalizeHeader(h)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "_" + strconv.Itoa(n+1)
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}

// DetectDelimiter picks the candidate delimiter that occurs most often in the
// first non-empty line. Comma is the default.
func DetectDelimiter(data []byte) rune {
	line := firstLine(data)
	best, bestCount := ',', 0
	for _, d := range delimiterCandidates {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func firstLine(data []byte) string {
	for len(data) > 0 {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		if s := strings.TrimSpace(string(line)); s != "" {
			return s
		}
	}
	return ""
}

// ParseCSV parses delimited text into rows. A header line is required.
// Malformed rows are reported in Errors and skipped or kept partially; the
// parse never aborts on a single bad row.
func ParseCSV(data []byte) ParseResult {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return ParseResult{Errors: []ParseError{{Message: "empty input"}}}
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = DetectDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return ParseResult{Errors: []ParseError{{Message: fmt.Sprintf("read header: %v", err)}}}
	}

	res := ParseResult{Columns: normalizeHeaders(header)}
	rowNum := 0
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			rowNum++
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				res.Errors = append(res.Errors, ParseError{Row: rowNum, Line: pe.Line, Message: pe.Err.Error()})
				continue
			}
			res.Errors = append(res.Errors, ParseError{Message: fmt.Sprintf("read rows: %v", err)})
			break
		}
		if blankFields(fields) {
			continue
		}
		rowNum++
		line, _ := r.FieldPos(0)

		if len(fields) != len(res.Columns) {
			res.Errors = append(res.Errors, ParseError{
				Row:     rowNum,
				Line:    line,
				Message: fmt.Sprintf("expected %d fields, got %d", len(res.Columns), len(fields)),
			})
		}

		row := make(Row, len(res.Columns))
		for i, col := range res.Columns {
			if i < len(fields) {
				row[col] = ParseValue(fields[i])
			} else {
				row[col] = Null()
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res
}

func blankFields(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ParseJSON parses either {"data": [...]} or a bare array of flat objects.
// Keys are normalized like CSV headers. Column order is sorted because JSON
// objects carry no order.
func ParseJSON(data []byte) ParseResult {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return ParseResult{Errors: []ParseError{{Message: "empty input"}}}
	}

	items, err := jsonItems(data)
	if err != nil {
		return ParseResult{Errors: []ParseError{{Message: err.Error()}}}
	}

	var res ParseResult
	colSet := make(map[string]struct{})
	for i, item := range items {
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			res.Errors = append(res.Errors, ParseError{Row: i + 1, Message: "not a JSON object"})
			continue
		}
		row := make(Row, len(obj))
		for k, v := range obj {
			name := NormalizeHeader(k)
			if name == "" {
				continue
			}
			row[name] = valueFromJSON(v)
			colSet[name] = struct{}{}
		}
		res.Rows = append(res.Rows, row)
	}

	res.Columns = make([]string, 0, len(colSet))
	for c := range colSet {
		res.Columns = append(res.Columns, c)
	}
	sort.Strings(res.Columns)
	return res
}

func jsonItems(data []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if envelope.Data == nil {
		return nil, errors.New(`decode json: expected an array or an object with a "data" array`)
	}
	return envelope.Data, nil
}
