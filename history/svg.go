// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package history

import (
	"bytes"
	"fmt"

	mg "github.com/erkkah/margaid"
	"github.com/gomlx/seqtrain/support/xslices"
	"github.com/pkg/errors"
)

// Chart holds the series of all metrics that share one metric type, and
// hence one Y axis.
type Chart struct {
	MetricType string

	// PerName maps a metric name to its series.
	PerName map[string]*mg.Series

	// allPoints collects every point of every series, to configure the axes.
	allPoints *mg.Series
}

// Charts groups the points of a run into one Chart per metric type, sorted
// by type name.
func Charts(rawPoints []Point) []*Chart {
	perType := make(map[string]*Chart)
	for _, p := range rawPoints {
		chart, found := perType[p.MetricType]
		if !found {
			chart = &Chart{
				MetricType: p.MetricType,
				PerName:    make(map[string]*mg.Series),
				allPoints:  mg.NewSeries(),
			}
			perType[p.MetricType] = chart
		}
		series, found := chart.PerName[p.MetricName]
		if !found {
			series = mg.NewSeries(mg.Titled(p.MetricName))
			chart.PerName[p.MetricName] = series
		}
		value := mg.MakeValue(p.Step, p.Value)
		series.Add(value)
		chart.allPoints.Add(value)
	}
	return xslices.Map(xslices.SortedKeys(perType), func(metricType string) *Chart {
		return perType[metricType]
	})
}

// RenderSVG renders the chart as a line plot to SVG, one line per metric.
func (c *Chart) RenderSVG(width, height int) (string, error) {
	allSeries := make([]*mg.Series, 0, len(c.PerName))
	for _, name := range xslices.SortedKeys(c.PerName) {
		allSeries = append(allSeries, c.PerName[name])
	}
	diagram := mg.New(width, height,
		mg.WithAutorange(mg.XAxis, allSeries...),
		mg.WithAutorange(mg.YAxis, allSeries...),
		mg.WithInset(70),
		mg.WithPadding(2),
		mg.WithColorScheme(90),
		mg.WithBackgroundColor("#f8f8f8"),
	)
	for _, series := range allSeries {
		diagram.Line(series, mg.UsingAxes(mg.XAxis, mg.YAxis), mg.UsingMarker("square"), mg.UsingStrokeWidth(2))
	}
	diagram.Axis(c.allPoints, mg.XAxis, diagram.ValueTicker('f', 0, 10), false, "Steps")
	diagram.Axis(c.allPoints, mg.YAxis, diagram.ValueTicker('f', 3, 10), true, c.MetricType)
	diagram.Frame()
	if c.MetricType != "" {
		diagram.Title(fmt.Sprintf("%s metrics", c.MetricType))
	}
	diagram.Legend(mg.BottomLeft)

	buf := bytes.NewBuffer(nil)
	if err := diagram.Render(buf); err != nil {
		return "", errors.Wrapf(err, "failed to render chart for %q", c.MetricType)
	}
	return buf.String(), nil
}
