package telemetry

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/gwillem/linetrace/pkg/tracer"
)

var (
	reflectanceColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	targetColor      = color.RGBA{R: 127, G: 127, B: 127, A: 255}
	turnColor        = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	speedColor       = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// SavePlot renders reflectance against the set point on top and the
// commanded turn rate and speed below, and writes a PNG to filename.
func SavePlot(ticks []tracer.Tick, target float64, title, filename string) error {
	if len(ticks) == 0 {
		return errors.New("no ticks to plot")
	}

	refPts := make(plotter.XYs, len(ticks))
	targetPts := make(plotter.XYs, 2)
	turnPts := make(plotter.XYs, len(ticks))
	speedPts := make(plotter.XYs, len(ticks))
	for i, t := range ticks {
		x := t.At.Seconds()
		refPts[i] = plotter.XY{X: x, Y: t.Reflectance}
		turnPts[i] = plotter.XY{X: x, Y: t.TurnRate}
		speedPts[i] = plotter.XY{X: x, Y: t.Speed}
	}
	targetPts[0] = plotter.XY{X: refPts[0].X, Y: target}
	targetPts[1] = plotter.XY{X: refPts[len(refPts)-1].X, Y: target}

	// Create plot for reflectance
	pRef := plot.New()
	pRef.Title.Text = title
	pRef.X.Label.Text = "Time (s)"
	pRef.Y.Label.Text = "Reflectance (%)"
	if err := addLine(pRef, "reflectance", refPts, reflectanceColor); err != nil {
		return err
	}
	if err := addLine(pRef, "target", targetPts, targetColor); err != nil {
		return err
	}

	// Create plot for the drive commands
	pCmd := plot.New()
	pCmd.X.Label.Text = "Time (s)"
	pCmd.Y.Label.Text = "deg/s, mm/s"
	if err := addLine(pCmd, "turn rate", turnPts, turnColor); err != nil {
		return err
	}
	if err := addLine(pCmd, "speed", speedPts, speedColor); err != nil {
		return err
	}

	for _, p := range []*plot.Plot{pRef, pCmd} {
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10
	}

	img := vgimg.New(14*vg.Inch, 8*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 2,
		Cols: 1,
		PadY: vg.Points(12),
	}
	canvases := plot.Align([][]*plot.Plot{{pRef}, {pCmd}}, tiles, dc)
	pRef.Draw(canvases[0][0])
	pCmd.Draw(canvases[1][0])

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	pngc := vgimg.PngCanvas{Canvas: img}
	if _, err := pngc.WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}

func addLine(p *plot.Plot, label string, pts plotter.XYs, c color.Color) error {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(label, line)
	return nil
}
