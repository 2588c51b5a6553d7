package labreport

import "strings"

const (
	imagingMarker    = "EXAMES DE IMAGEM:"
	hematologyMarker = "Hemograma:"
)

var biochemistryKeywords = []string{
	"Proteínas Totais", "Bilirrubinas:", "Ureia:", "Creatinina:",
	"Cálcio:", "Potássio:", "Fósforo:", "Bicarbonato:",
	"Ferro Sérico:", "Fosfatase Alcalina:",
}

var hormonalKeywords = []string{"Testosterona", "PSA", "Paratormônio"}

// sectionState is the mutable context carried from line to line.
type sectionState struct {
	category  Category
	inImaging bool
}

func newSectionState() sectionState {
	return sectionState{category: CategoryOther}
}

// trigger is one row of the classification table. When match holds, apply
// updates the state; consume stops any further processing of the line.
type trigger struct {
	match   func(line string) bool
	apply   func(s *sectionState)
	consume bool
}

// triggers are evaluated in order and the first match wins.
var triggers = []trigger{
	{
		match:   containsToken(imagingMarker),
		apply:   func(s *sectionState) { s.inImaging = true },
		consume: true,
	},
	{
		match:   containsToken(hematologyMarker),
		apply:   func(s *sectionState) { s.category = CategoryHematology },
		consume: true,
	},
	{
		match: containsAny(biochemistryKeywords),
		apply: func(s *sectionState) { s.category = CategoryBiochemistry },
	},
	{
		match: containsAny(hormonalKeywords),
		apply: func(s *sectionState) { s.category = CategoryHormonal },
	},
}

func containsToken(tok string) func(string) bool {
	return func(line string) bool { return strings.Contains(line, tok) }
}

func containsAny(keywords []string) func(string) bool {
	return func(line string) bool {
		for _, k := range keywords {
			if strings.Contains(line, k) {
				return true
			}
		}
		return false
	}
}

// classify advances the state for line and reports whether the line should
// still be handed to the extractor.
func (s *sectionState) classify(line string) bool {
	for _, t := range triggers {
		if t.match(line) {
			t.apply(s)
			return !t.consume
		}
	}
	return true
}

// LineContext is the classification of a single document line.
type LineContext struct {
	Line      string
	Category  Category
	InImaging bool
	Consumed  bool
}

// Classify walks text line by line and returns the category context active
// at each line.
func Classify(text string) []LineContext {
	lines := strings.Split(text, "\n")
	out := make([]LineContext, 0, len(lines))
	state := newSectionState()
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		extract := state.classify(line)
		out = append(out, LineContext{
			Line:      line,
			Category:  state.category,
			InImaging: state.inImaging,
			Consumed:  !extract,
		})
	}
	return out
}
