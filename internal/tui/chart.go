package tui

import (
	"path/filepath"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/evtxcsv/internal/model"
)

const maxChartLabel = 12

var (
	barOKStyle     = lipgloss.NewStyle().Foreground(ColorAccent)
	barFailedStyle = lipgloss.NewStyle().Foreground(ColorRed)
)

// renderCountsChart draws one bar per converted file, sized by its event
// count. Failed files get an empty red bar.
func renderCountsChart(res model.BatchResult, width, height int) string {
	if res.Len() == 0 || width < 10 || height < 3 {
		return ""
	}
	names := res.Names()
	barWidth := max(1, min(6, (width-len(names))/len(names)))

	bc := barchart.New(width, height,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(barWidth),
	)
	for _, name := range names {
		r := res.Files[name]
		v := barchart.BarValue{Name: "events", Value: float64(r.Events), Style: barOKStyle}
		if r.Failed() {
			v = barchart.BarValue{Name: "failed", Value: 0, Style: barFailedStyle}
		}
		bc.Push(barchart.BarData{
			Label:  chartLabel(name, barWidth),
			Values: []barchart.BarValue{v},
		})
	}
	bc.Draw()
	return bc.View()
}

func chartLabel(name string, width int) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	limit := min(maxChartLabel, max(1, width))
	if len(stem) > limit {
		return stem[:limit]
	}
	return stem
}
