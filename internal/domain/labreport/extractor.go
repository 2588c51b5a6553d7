package labreport

import (
	"regexp"
	"strings"
)

// Both bullet glyphs mark a result line; the hollow one is used for nested
// items but extraction treats them alike.
var (
	referencedResult = regexp.MustCompile(`[○●]\s*(.*?):\s*(.*?)\s*\(Referência:\s*(.*?)\)`)
	imagingResult    = regexp.MustCompile(`[○●]\s*(.*?):\s*(.*)`)

	subjectNamePattern    = regexp.MustCompile(`Nome:\s*(.*)`)
	collectionDatePattern = regexp.MustCompile(`Data da Coleta:\s*(.*)`)
)

type referencedMatch struct {
	Name      string
	Value     string
	Reference string
}

type imagingMatch struct {
	Name        string
	Description string
}

func matchReferenced(line string) (referencedMatch, bool) {
	m := referencedResult.FindStringSubmatch(line)
	if m == nil {
		return referencedMatch{}, false
	}
	return referencedMatch{
		Name:      strings.TrimSpace(m[1]),
		Value:     strings.TrimSpace(m[2]),
		Reference: strings.TrimSpace(m[3]),
	}, true
}

func matchImaging(line string) (imagingMatch, bool) {
	m := imagingResult.FindStringSubmatch(line)
	if m == nil {
		return imagingMatch{}, false
	}
	return imagingMatch{
		Name:        strings.TrimSpace(m[1]),
		Description: strings.TrimSpace(m[2]),
	}, true
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractMeta(text string) ReportMeta {
	return ReportMeta{
		SubjectName:    firstGroup(subjectNamePattern, text),
		CollectionDate: firstGroup(collectionDatePattern, text),
	}
}

// extractLine files the result found on one classified line, if any.
func extractLine(lc LineContext, r *ParseResult) {
	if lc.Consumed || lc.Line == "" {
		return
	}
	if m, ok := matchReferenced(lc.Line); ok {
		r.Results[lc.Category] = append(r.Results[lc.Category], newMeasurement(m.Name, m.Value, m.Reference))
		return
	}
	if !lc.InImaging {
		return
	}
	if m, ok := matchImaging(lc.Line); ok {
		r.Imaging = append(r.Imaging, ImagingFinding{Name: m.Name, Value: m.Description})
	}
}
