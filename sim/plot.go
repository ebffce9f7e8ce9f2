package sim

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// NewTrajectoryPlot creates a plot of a simulation run from three sources:
// truth:     the true robot trajectory, one (x, y) row per cycle
// estimated: the estimated robot trajectory, one (x, y) row per cycle
// landmarks: the true landmark map
// It returns error if either trajectory is nil or has fewer than 2 columns.
func NewTrajectoryPlot(truth, estimated *mat.Dense, landmarks []Landmark) (*plot.Plot, error) {
	if truth == nil || estimated == nil {
		return nil, fmt.Errorf("invalid trajectory data supplied")
	}

	if _, c := truth.Dims(); c < 2 {
		return nil, fmt.Errorf("invalid truth data dimensions")
	}
	if _, c := estimated.Dims(); c < 2 {
		return nil, fmt.Errorf("invalid estimate data dimensions")
	}

	p := plot.New()

	p.Title.Text = "EKF-SLAM"
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	truthLine, err := plotter.NewLine(makePoints(truth))
	if err != nil {
		return nil, err
	}
	truthLine.Color = color.RGBA{R: 255, B: 128, A: 255}

	p.Add(truthLine)
	p.Legend.Add("truth", truthLine)

	estLine, err := plotter.NewLine(makePoints(estimated))
	if err != nil {
		return nil, err
	}
	estLine.Color = color.RGBA{R: 169, G: 169, B: 169, A: 255}
	estLine.Dashes = []vg.Length{vg.Points(3), vg.Points(2)}

	p.Add(estLine)
	p.Legend.Add("estimated", estLine)

	lmData := make(plotter.XYs, len(landmarks))
	for i, lm := range landmarks {
		lmData[i].X = lm.X
		lmData[i].Y = lm.Y
	}
	lmScatter, err := plotter.NewScatter(lmData)
	if err != nil {
		return nil, err
	}
	lmScatter.GlyphStyle.Color = color.RGBA{G: 255, A: 255}
	lmScatter.Shape = draw.PyramidGlyph{}
	lmScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(lmScatter)
	p.Legend.Add("landmarks", lmScatter)

	return p, nil
}

func makePoints(m *mat.Dense) plotter.XYs {
	r, _ := m.Dims()
	pts := make(plotter.XYs, r)
	for i := 0; i < r; i++ {
		pts[i].X = m.At(i, 0)
		pts[i].Y = m.At(i, 1)
	}

	return pts
}
