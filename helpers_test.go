package tuner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// quietLogger discards everything.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// classLabels returns 20 "a", 20 "b" and 10 "c" labels, interleaved.
func classLabels() []string {
	labels := make([]string, 0, 50)
	for i := 0; i < 20; i++ {
		labels = append(labels, "a", "b")
	}

	for i := 0; i < 10; i++ {
		labels = append(labels, "c")
	}

	return labels
}

// classBlocks builds two blocks whose first columns separate the classes.
func classBlocks(labels []string) BlockSet {
	rng := rand.New(rand.NewSource(7))
	offset := map[string]float64{"a": 0, "b": 3, "c": 6}

	build := func(cols int) *mat.Dense {
		m := mat.NewDense(len(labels), cols, nil)
		for i, l := range labels {
			for j := 0; j < cols; j++ {
				v := rng.NormFloat64()
				if j < 3 {
					v += offset[l]
				}

				m.Set(i, j, v)
			}
		}

		return m
	}

	return BlockSet{
		{Name: "b1", Data: build(10)},
		{Name: "b2", Data: build(6)},
	}
}

// regressionData returns one block and a response linear in its first column.
func regressionData(n int) (BlockSet, Outcome) {
	rng := rand.New(rand.NewSource(11))

	m := mat.NewDense(n, 4, nil)
	y := make([]float64, n)

	for i := 0; i < n; i++ {
		for j := 0; j < 4; j++ {
			m.Set(i, j, rng.NormFloat64())
		}

		y[i] = 2*m.At(i, 0) + 0.1*rng.NormFloat64()
	}

	return BlockSet{{Name: "x", Data: m}}, ContinuousOutcome(y...)
}

// centroidModel predicts the class whose centroid is closest over the first
// KeepX columns of every block.
type centroidModel struct {
	keep      map[string]int
	classes   []string
	centroids [][]float64
}

func features(blocks BlockSet, keep map[string]int, row int) []float64 {
	var x []float64
	for _, b := range blocks {
		for j := 0; j < keep[b.Name]; j++ {
			x = append(x, b.Data.At(row, j))
		}
	}

	return x
}

func fitCentroids(_ context.Context, blocks BlockSet, y Outcome, p FitParams) (Model, error) {
	if blocks.Rows() == 0 {
		return nil, errors.New("no training rows")
	}

	sums := make(map[string][]float64)
	counts := make(map[string]int)

	var classes []string

	for i, l := range y.Labels {
		x := features(blocks, p.KeepX, i)
		if _, ok := sums[l]; !ok {
			sums[l] = make([]float64, len(x))
			classes = append(classes, l)
		}

		for j, v := range x {
			sums[l][j] += v
		}

		counts[l]++
	}

	m := &centroidModel{keep: p.KeepX, classes: classes}
	for _, c := range classes {
		centroid := sums[c]
		for j := range centroid {
			centroid[j] /= float64(counts[c])
		}

		m.centroids = append(m.centroids, centroid)
	}

	return m, nil
}

func predictCentroids(_ context.Context, model Model, blocks BlockSet) (Outcome, error) {
	m := model.(*centroidModel)

	labels := make([]string, blocks.Rows())
	for i := range labels {
		x := features(blocks, m.keep, i)

		best := math.Inf(1)
		for c, centroid := range m.centroids {
			var d float64
			for j := range x {
				d += (x[j] - centroid[j]) * (x[j] - centroid[j])
			}

			if d < best {
				best = d
				labels[i] = m.classes[c]
			}
		}
	}

	return CategoricalOutcome(labels...), nil
}

// centroidAdapter is a nearest-centroid classifier.
func centroidAdapter() AdapterFuncs {
	return AdapterFuncs{FitFunc: fitCentroids, PredictFunc: predictCentroids}
}

type lineModel struct {
	alpha, beta float64
	column      int
}

// lineAdapter fits y = alpha + beta·x on column NComp-1 of the single block.
func lineAdapter() AdapterFuncs {
	return AdapterFuncs{
		FitFunc: func(_ context.Context, blocks BlockSet, y Outcome, p FitParams) (Model, error) {
			col := p.NComp - 1
			x := mat.Col(nil, col, blocks[0].Data)
			alpha, beta := stat.LinearRegression(x, y.Values, nil, false)

			return lineModel{alpha: alpha, beta: beta, column: col}, nil
		},
		PredictFunc: func(_ context.Context, model Model, blocks BlockSet) (Outcome, error) {
			m := model.(lineModel)
			x := mat.Col(nil, m.column, blocks[0].Data)

			pred := make([]float64, len(x))
			for i, v := range x {
				pred[i] = m.alpha + m.beta*v
			}

			return ContinuousOutcome(pred...), nil
		},
	}
}

// classConfig returns a quiet, seeded block.splsda configuration.
func classConfig(adapter Adapter) Config {
	config := DefaultConfig()
	config.Method = Bind(MethodBlockSPLSDA, adapter)
	config.Seed = 42
	config.Logger = quietLogger()

	return config
}

func classSpace() SearchSpace {
	return SearchSpace{
		NComp: []int{1, 2},
		KeepX: map[string][]int{"b1": {1, 3}, "b2": {2, 6}},
	}
}
