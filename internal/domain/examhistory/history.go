package examhistory

import (
	"sort"
	"sync"
)

// History is an ordered, de-duplicated set of exams, most recent first.
// It is owned by the caller; the zero value is ready to use.
type History struct {
	mu    sync.RWMutex
	exams []*Exam
}

// NewHistory builds a History from exams in any order. Exams without a
// collection date, unparseable dates and repeated dates are dropped.
func NewHistory(exams []*Exam) *History {
	h := &History{}
	for _, e := range exams {
		h.Add(e)
	}
	return h
}

// Add inserts e unless it has no collection date or its date is already
// present. It reports whether e was added. A date that does not parse is an
// error. e itself is never modified; an exam without CollectedOn is stored
// as a copy with the parsed date filled in.
func (h *History) Add(e *Exam) (bool, error) {
	if e == nil || e.CollectionDate == "" {
		return false, nil
	}
	on, err := ParseCollectionDate(e.CollectionDate)
	if err != nil {
		return false, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, x := range h.exams {
		if x.CollectionDate == e.CollectionDate {
			return false, nil
		}
	}
	if e.CollectedOn.IsZero() {
		cp := *e
		cp.CollectedOn = on
		e = &cp
	}
	h.exams = append(h.exams, e)
	sort.SliceStable(h.exams, func(i, j int) bool {
		return h.exams[i].CollectedOn.After(h.exams[j].CollectedOn)
	})
	return true, nil
}

// Exams returns a copy of the exams, most recent first.
func (h *History) Exams() []*Exam {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Exam, len(h.exams))
	copy(out, h.exams)
	return out
}

// Latest returns the most recent exam, or nil when empty.
func (h *History) Latest() *Exam {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.exams) == 0 {
		return nil
	}
	return h.exams[0]
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.exams)
}
