// Package chart renders metric time series as self-contained ECharts HTML.
package chart

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var ErrNoData = errors.New("chart: no data points")

// ContentSecurityPolicy admits the ECharts script host and the inline
// bootstrap script of a rendered page.
const ContentSecurityPolicy = "default-src 'none'; " +
	"script-src 'unsafe-inline' https://go-echarts.github.io; " +
	"style-src 'unsafe-inline'; img-src data:; frame-ancestors 'none'"

// Series is a single named line. Labels and Values are parallel and already
// in display order. RefMin and RefMax draw dashed reference lines when set.
type Series struct {
	Title  string
	Unit   string
	Labels []string
	Values []float64
	RefMin *float64
	RefMax *float64
}

// Line renders s as an HTML page holding one line chart.
func Line(s Series) ([]byte, error) {
	if len(s.Values) == 0 {
		return nil, ErrNoData
	}
	if len(s.Labels) != len(s.Values) {
		return nil, fmt.Errorf("chart: %d labels for %d values", len(s.Labels), len(s.Values))
	}

	data := make([]opts.LineData, 0, len(s.Values))
	for _, v := range s.Values {
		data = append(data, opts.LineData{Value: v})
	}

	title := s.Title
	if s.Unit != "" {
		title = fmt.Sprintf("%s (%s)", s.Title, s.Unit)
	}

	yMin, yMax := axisBounds(s)
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Data"}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: fmt.Sprintf("Valor (%s)", s.Unit),
			Min:  yMin,
			Max:  yMax,
		}),
	)

	seriesOpts := []charts.SeriesOpts{
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
	}

	var refLines []interface{}
	if s.RefMin != nil {
		refLines = append(refLines, opts.MarkLineNameYAxisItem{Name: "Ref Min", YAxis: *s.RefMin})
	}
	if s.RefMax != nil {
		refLines = append(refLines, opts.MarkLineNameYAxisItem{Name: "Ref Max", YAxis: *s.RefMax})
	}
	if len(refLines) > 0 {
		seriesOpts = append(seriesOpts, func(ss *charts.SingleSeries) {
			ss.MarkLines = &opts.MarkLines{
				Data: refLines,
				MarkLineStyle: opts.MarkLineStyle{
					Symbol: []string{"none", "none"},
					LineStyle: &opts.LineStyle{
						Color: "rgba(192, 0, 0, 0.6)",
						Type:  "dashed",
						Width: 1.5,
					},
				},
			}
		})
	}

	line.SetXAxis(s.Labels).
		AddSeries(s.Title, data).
		SetSeriesOptions(seriesOpts...)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, fmt.Errorf("chart: render: %w", err)
	}
	return buf.Bytes(), nil
}

// axisBounds widens the y axis so both the data and the reference lines are
// visible. It returns nils, leaving the axis automatic, when no reference is
// set.
func axisBounds(s Series) (interface{}, interface{}) {
	if s.RefMin == nil || s.RefMax == nil {
		return nil, nil
	}
	lo, hi := *s.RefMin, *s.RefMax
	for _, v := range s.Values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	pad := (hi - lo) * 0.1
	return lo - pad, hi + pad
}
