// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package history

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePoints() []Point {
	return []Point{
		{MetricName: "Train: loss", Short: "T/loss", MetricType: "loss", Epoch: 0, Step: 10, Value: 2.5},
		{MetricName: "Valid: loss", Short: "V/loss", MetricType: "loss", Epoch: 0, Step: 10, Value: 2.7},
		{MetricName: "Valid: accuracy", Short: "V/acc", MetricType: "accuracy", Epoch: 0, Step: 10, Value: 0.1},
		{MetricName: "Train: loss", Short: "T/loss", MetricType: "loss", Epoch: 1, Step: 20, Value: 1.9},
		{MetricName: "Valid: loss", Short: "V/loss", MetricType: "loss", Epoch: 1, Step: 20, Value: 2.2},
		{MetricName: "Valid: accuracy", Short: "V/acc", MetricType: "accuracy", Epoch: 1, Step: 20, Value: 0.3},
	}
}

func TestWriteAndLoadPoints(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), TrainingPlotFileName)
	writer, errReport := CreatePointsWriter(filePath)
	for _, p := range samplePoints() {
		writer <- p
	}
	close(writer)
	require.NoError(t, <-errReport)

	loaded, err := LoadPoints(filePath)
	require.NoError(t, err)
	require.Len(t, loaded, 6)
	assert.Equal(t, samplePoints(), loaded)

	// Appending a second run keeps the existing points.
	writer, errReport = CreatePointsWriter(filePath)
	writer <- Point{MetricName: "Train: loss", Short: "T/loss", MetricType: "loss", Epoch: 2, Step: 30, Value: 1.5}
	close(writer)
	require.NoError(t, <-errReport)
	loaded, err = LoadPoints(filePath)
	require.NoError(t, err)
	assert.Len(t, loaded, 7)
}

func TestPoints(t *testing.T) {
	points := NewPoints(samplePoints())
	require.Len(t, points, 2)

	// Names sorted by metric type, then name.
	assert.Equal(t, []string{"Valid: accuracy", "Train: loss", "Valid: loss"}, points.MetricsNames())

	table := points.TableForMetrics()
	assert.Contains(t, table, "Step")
	assert.Contains(t, table, "Valid: accuracy")
	assert.Contains(t, table, "2.500000")

	points.Filter(func(p Point) bool { return p.MetricType == "loss" })
	assert.Equal(t, []string{"Train: loss", "Valid: loss"}, points.MetricsNames())
	assert.Len(t, points.Extract(), 4)
}

func TestCharts(t *testing.T) {
	charts := Charts(samplePoints())
	require.Len(t, charts, 2)
	assert.Equal(t, "accuracy", charts[0].MetricType)
	assert.Equal(t, "loss", charts[1].MetricType)
	require.Len(t, charts[1].PerName, 2)

	svg, err := charts[1].RenderSVG(800, 400)
	require.NoError(t, err)
	assert.True(t, strings.Contains(svg, "<svg"))
}
