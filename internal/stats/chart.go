package stats

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"melodyevo/internal/model"
)

var (
	bestLineColor    = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	averageLineColor = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff}
)

// WriteFitnessChart plots best and average fitness per generation. The
// image format follows the file extension.
func WriteFitnessChart(path, title string, history []model.GenerationStats) error {
	if len(history) == 0 {
		return fmt.Errorf("fitness history is empty")
	}
	best := make(plotter.XYs, len(history))
	avg := make(plotter.XYs, len(history))
	for i, s := range history {
		best[i] = plotter.XY{X: float64(s.Generation), Y: s.BestFitness}
		avg[i] = plotter.XY{X: float64(s.Generation), Y: s.AverageFitness}
	}

	p := plot.New()
	p.Title.Text = "Fitness evolution"
	if title != "" {
		p.Title.Text += " (" + title + ")"
	}
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Fitness"
	p.Add(plotter.NewGrid())

	bestLine, err := plotter.NewLine(best)
	if err != nil {
		return fmt.Errorf("best line: %w", err)
	}
	bestLine.Color = bestLineColor
	bestLine.Width = vg.Points(2)

	avgLine, err := plotter.NewLine(avg)
	if err != nil {
		return fmt.Errorf("average line: %w", err)
	}
	avgLine.Color = averageLineColor
	avgLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(bestLine, avgLine)
	p.Legend.Add("best", bestLine)
	p.Legend.Add("average", avgLine)
	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save chart %s: %w", path, err)
	}
	return nil
}
