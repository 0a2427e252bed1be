// Package monitor renders tracking results for visual inspection: a static
// PNG of the reconstructed trajectories and an interactive HTML chart.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/trajectory.report/internal/track"
)

// palette cycles through line colours for successive tracks.
var palette = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
}

// RenderPNG writes a 2D trajectory plot for the tracker's current tracks.
// The first two position dimensions are plotted; higher dimensions are
// ignored.
func RenderPNG(t *track.Tracker, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	p := plot.New()
	p.Title.Text = "Trajectories"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	for i, tr := range t.Tracks() {
		xys := make(plotter.XYs, 0, len(tr))
		for _, detIdx := range tr {
			_, pos := t.Detection(detIdx)
			xy := plotter.XY{X: pos[0]}
			if len(pos) > 1 {
				xy.Y = pos[1]
			}
			xys = append(xys, xy)
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return "", fmt.Errorf("track %d line: %w", i, err)
		}
		c := palette[i%len(palette)]
		line.Color = c
		points.Color = c
		p.Add(line, points)
	}

	path := filepath.Join(outDir, "trajectories.png")
	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save plot: %w", err)
	}
	return path, nil
}
