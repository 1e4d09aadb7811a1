package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/linemap/pkg/linemap"
)

const (
	chartWidth  = "100%"
	chartHeight = "500px"
	seriesDepth = "include depth"
)

// DepthChart plots the include depth at every record boundary of m.
func DepthChart(m *linemap.Mapper) *charts.Line {
	records := m.Records()

	labels := make([]string, len(records))
	data := make([]opts.LineData, len(records))

	for i, rec := range records {
		labels[i] = strconv.Itoa(rec.Line)
		data[i] = opts.LineData{Value: rec.Stack.Depth(), Name: rec.Stack.Last().String()}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Include depth of " + m.Source(),
			Subtitle: fmt.Sprintf("%d lines, %d records", m.Lines(), len(records)),
			Left:     "center",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}, opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "flattened line"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "depth"}),
	)

	line.SetXAxis(labels)
	line.AddSeries(seriesDepth, data,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.2)}),
	)

	return line
}

// WriteDepthChart renders DepthChart(m) as a standalone HTML page.
func WriteDepthChart(w io.Writer, m *linemap.Mapper) error {
	err := DepthChart(m).Render(w)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}
