package ingest

import (
	"fmt"
	"strings"
)

// FieldSeparator splits the fields of one chapter line.
const FieldSeparator = ";"

// Accepted field counts per line.
const (
	minFields = 2
	maxFields = 3
)

// ParseError describes a malformed input line. It is reported inline and
// never turns into a job failure.
type ParseError struct {
	LineNumber int
	Raw        string
	Fields     int
	Reason     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.LineNumber, e.Reason, e.Raw)
}

// ParsedLine is either a valid chapter line or a line-level error.
type ParsedLine struct {
	// LineNumber is 1-based and counts blank lines.
	LineNumber int
	Raw        string

	// Sequence numbers valid lines from the caller's offset; 0 for errors.
	Sequence    int
	Title       string
	VolumeLabel string
	URL         string

	Err *ParseError
}

// Valid reports whether the line parsed into a chapter.
func (p ParsedLine) Valid() bool {
	return p.Err == nil
}

// ParseChapterLines parses "Title ; Volume ; URL" or "Title ; URL" lines.
//
// Blank lines are skipped. A line with a field count other than 2 or 3, or
// with an empty field, becomes an error entry and parsing continues. Valid
// lines are numbered seqOffset+1, seqOffset+2, ... in input order. Duplicate
// URLs are kept; deduplication is up to the caller.
func ParseChapterLines(text string, seqOffset int) []ParsedLine {
	var out []ParsedLine
	seq := seqOffset

	for i, raw := range strings.Split(text, "\n") {
		raw = strings.TrimRight(raw, "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		lineNo := i + 1
		fields := strings.Split(raw, FieldSeparator)
		for k := range fields {
			fields[k] = strings.TrimSpace(fields[k])
		}

		if perr := checkFields(lineNo, raw, fields); perr != nil {
			out = append(out, ParsedLine{LineNumber: lineNo, Raw: raw, Err: perr})
			continue
		}

		seq++
		line := ParsedLine{LineNumber: lineNo, Raw: raw, Sequence: seq, Title: fields[0]}
		if len(fields) == maxFields {
			line.VolumeLabel = fields[1]
			line.URL = fields[2]
		} else {
			line.URL = fields[1]
		}
		out = append(out, line)
	}

	return out
}

func checkFields(lineNo int, raw string, fields []string) *ParseError {
	if len(fields) < minFields || len(fields) > maxFields {
		return &ParseError{
			LineNumber: lineNo,
			Raw:        raw,
			Fields:     len(fields),
			Reason:     fmt.Sprintf("expected 2 or 3 fields separated by %q, got %d", FieldSeparator, len(fields)),
		}
	}
	for k, f := range fields {
		if f == "" {
			return &ParseError{
				LineNumber: lineNo,
				Raw:        raw,
				Fields:     len(fields),
				Reason:     fmt.Sprintf("field %d is empty", k+1),
			}
		}
	}
	return nil
}

// ValidLines returns the valid entries in input order.
func ValidLines(lines []ParsedLine) []ParsedLine {
	var out []ParsedLine
	for _, l := range lines {
		if l.Valid() {
			out = append(out, l)
		}
	}
	return out
}

// Errors returns the parse errors in input order.
func Errors(lines []ParsedLine) []*ParseError {
	var out []*ParseError
	for _, l := range lines {
		if !l.Valid() {
			out = append(out, l.Err)
		}
	}
	return out
}

// FormatChapterLine renders a chapter back into the input format.
func FormatChapterLine(title, volumeLabel, url string) string {
	sep := " " + FieldSeparator + " "
	if volumeLabel == "" {
		return title + sep + url
	}
	return title + sep + volumeLabel + sep + url
}
