// Package labreport turns the plain text of a lab-report document into a
// structured, categorized set of measurements.
//
// Parsing is line oriented. Each line is first classified (which section
// is active, whether the imaging section has started), then matched
// against the result grammars, and the fields of a match are normalized
// into numbers, units and reference ranges. After the walk a calculated
// glomerular filtration rate may be appended to the biochemistry bucket.
//
// Parse holds no state between calls and is safe for concurrent use.
package labreport

import (
	"errors"
	"fmt"
	"strings"
)

// ErrParseFailed marks a document whose parse aborted. It is distinct from
// a document that parsed cleanly but yielded nothing (ParseResult.Empty).
var ErrParseFailed = errors.New("lab report parse failed")

// ParseError describes an aborted parse.
type ParseError struct {
	Line  int
	Cause string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", ErrParseFailed, e.Line, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrParseFailed, e.Cause)
}

func (e *ParseError) Unwrap() error { return ErrParseFailed }

// extract files one classified line. A variable so the step can be stubbed.
var extract = extractLine

// Parse extracts the structured result from text. The profile feeds the
// filtration-rate estimate only.
func Parse(text string, p Profile) (res *ParseResult, err error) {
	line := 0
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &ParseError{Line: line, Cause: fmt.Sprint(r)}
		}
	}()

	text = strings.ReplaceAll(text, "\r\n", "\n")
	res = newParseResult()
	res.Meta = extractMeta(text)

	for i, lc := range Classify(text) {
		line = i + 1
		extract(lc, res)
	}
	line = 0

	if err := appendEGFR(res, p); err != nil {
		return nil, err
	}
	return res, nil
}
