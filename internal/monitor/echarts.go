package monitor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/trajectory.report/internal/track"
)

// RenderHTML writes an interactive scatter chart of the tracker's current
// tracks, one series per track, points carrying their frame index for
// tooltips.
func RenderHTML(t *track.Tracker, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Trajectories"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "x"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "y"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	for i, tr := range t.Tracks() {
		data := make([]opts.ScatterData, 0, len(tr))
		for _, detIdx := range tr {
			frame, pos := t.Detection(detIdx)
			y := 0.0
			if len(pos) > 1 {
				y = pos[1]
			}
			data = append(data, opts.ScatterData{Value: []interface{}{pos[0], y, frame}})
		}
		scatter.AddSeries(fmt.Sprintf("track %d", i), data)
	}

	path := filepath.Join(outDir, "trajectories.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()
	if err := scatter.Render(f); err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}
	return path, nil
}
