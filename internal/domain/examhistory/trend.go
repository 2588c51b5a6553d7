package examhistory

import (
	"errors"
	"sort"
	"time"

	"github.com/labreport/labreport/internal/domain/labreport"
)

// MinTrendPoints is the smallest series worth plotting.
const MinTrendPoints = 2

var ErrInsufficientData = errors.New("not enough data points for a trend")

// Point is one dated value of a metric.
type Point struct {
	Date  string    `json:"date"`
	On    time.Time `json:"-"`
	Value float64   `json:"value"`
}

// Trend is the time series of one metric together with the reference range
// of its most recent measurement, when that range is usable.
type Trend struct {
	Category  labreport.Category `json:"category"`
	Name      string             `json:"name"`
	Unit      string             `json:"unit"`
	Points    []Point            `json:"points"`
	Reference *labreport.Range   `json:"reference,omitempty"`
}

// Series collects the numeric value of (category, name) from each exam.
// Exams lacking the metric or a number are skipped and only the first exam
// seen for a collection date counts. Points come back oldest first.
func Series(exams []*Exam, category labreport.Category, name string) ([]Point, error) {
	seen := make(map[string]bool, len(exams))
	var pts []Point
	for _, e := range exams {
		if e == nil || e.Result == nil || seen[e.CollectionDate] {
			continue
		}
		m, ok := e.Result.Find(category, name)
		if !ok || !m.HasNumericValue() {
			continue
		}
		on := e.CollectedOn
		if on.IsZero() {
			var err error
			if on, err = ParseCollectionDate(e.CollectionDate); err != nil {
				continue
			}
		}
		seen[e.CollectionDate] = true
		pts = append(pts, Point{Date: e.CollectionDate, On: on, Value: *m.NumericValue})
	}
	if len(pts) < MinTrendPoints {
		return nil, ErrInsufficientData
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].On.Before(pts[j].On) })
	return pts, nil
}

// BuildTrend assembles the series of (category, name) across exams. The
// unit and reference come from the most recent exam carrying the metric.
func BuildTrend(exams []*Exam, category labreport.Category, name string) (*Trend, error) {
	pts, err := Series(exams, category, name)
	if err != nil {
		return nil, err
	}
	t := &Trend{Category: category, Name: name, Points: pts}

	var latest *Exam
	var latestM labreport.Measurement
	for _, e := range exams {
		if e == nil || e.Result == nil {
			continue
		}
		m, ok := e.Result.Find(category, name)
		if !ok || !m.HasNumericValue() {
			continue
		}
		if latest == nil || e.CollectedOn.After(latest.CollectedOn) {
			latest, latestM = e, m
		}
	}
	if latest != nil {
		t.Unit = latestM.Unit
		if rng, ok := labreport.ParseRange(latestM.Reference); ok {
			t.Reference = &rng
		}
	}
	return t, nil
}

// Metric identifies a plottable measurement.
type Metric struct {
	Category labreport.Category `json:"category"`
	Name     string             `json:"name"`
	Unit     string             `json:"unit"`
}

// AvailableMetrics lists the numeric measurements of current that can be
// charted: those also present with a number in some exam of history, and
// every biochemistry item. Order follows the report.
func AvailableMetrics(current *labreport.ParseResult, history []*Exam) []Metric {
	if current == nil {
		return nil
	}
	var out []Metric
	seen := map[Metric]bool{}
	for _, c := range labreport.MeasurementCategories {
		for _, m := range current.Measurements(c) {
			if !m.HasNumericValue() {
				continue
			}
			if c != labreport.CategoryBiochemistry && !hasHistory(history, c, m.Name) {
				continue
			}
			mt := Metric{Category: c, Name: m.Name, Unit: m.Unit}
			if !seen[mt] {
				seen[mt] = true
				out = append(out, mt)
			}
		}
	}
	return out
}

func hasHistory(history []*Exam, c labreport.Category, name string) bool {
	for _, e := range history {
		if e == nil || e.Result == nil {
			continue
		}
		if m, ok := e.Result.Find(c, name); ok && m.HasNumericValue() {
			return true
		}
	}
	return false
}
