package tuner

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/mat"
)

//////
// Helper functions.
//////

// Helper function used by PI and EI to compute the cumulative distribution
// function of the standard normal distribution.
//
// Returns:
// - Probability that a standard normal random variable is less than x.
func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// Helper function used by EI to compute the probability density function
// of the standard normal distribution.
//
// Returns:
// - Value of the standard normal PDF at x.
func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}

// toFloats converts a slice of numbers to a new slice of float64 values.
// The input is not modified.
func toFloats[T constraints.Integer | constraints.Float](xs []T) []float64 {
	floats := make([]float64, len(xs))
	for i, v := range xs {
		floats[i] = float64(v)
	}

	return floats
}

// minMax returns the smallest and largest element of a non-empty slice.
func minMax[T constraints.Integer | constraints.Float](xs []T) (lo, hi T) {
	lo, hi = xs[0], xs[0]
	for _, v := range xs[1:] {
		if v < lo {
			lo = v
		}

		if v > hi {
			hi = v
		}
	}

	return lo, hi
}

// subsetRows copies the given rows of m, in the given order, into a new dense
// matrix. m is only read.
func subsetRows(m mat.Matrix, rows []int) *mat.Dense {
	_, c := m.Dims()
	if len(rows) == 0 || c == 0 {
		return &mat.Dense{}
	}

	out := mat.NewDense(len(rows), c, nil)

	row := make([]float64, c)
	for i, r := range rows {
		mat.Row(row, r, m)
		out.SetRow(i, row)
	}

	return out
}

// subset returns a new block set holding the given rows of every block.
func (bs BlockSet) subset(rows []int) BlockSet {
	out := make(BlockSet, len(bs))
	for i, b := range bs {
		out[i] = Block{Name: b.Name, Data: subsetRows(b.Data, rows)}
	}

	return out
}

// subset returns a new outcome holding the given samples.
func (o Outcome) subset(idx []int) Outcome {
	if o.Labels != nil {
		labels := make([]string, len(idx))
		for i, j := range idx {
			labels[i] = o.Labels[j]
		}

		return Outcome{Labels: labels}
	}

	values := make([]float64, len(idx))
	for i, j := range idx {
		values[i] = o.Values[j]
	}

	return Outcome{Values: values}
}

// Digest fingerprints block names, shapes and values with xxhash. Used to
// check that a run left the caller's data untouched.
func (bs BlockSet) Digest() uint64 {
	h := xxhash.New()

	var buf [8]byte

	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}

	for _, b := range bs {
		_, _ = h.WriteString(b.Name)

		if b.Data == nil {
			put(0)

			continue
		}

		r, c := b.Data.Dims()
		put(uint64(r))
		put(uint64(c))

		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				put(math.Float64bits(b.Data.At(i, j)))
			}
		}
	}

	return h.Sum64()
}

// Digest fingerprints the outcome values with xxhash.
func (o Outcome) Digest() uint64 {
	h := xxhash.New()

	for _, l := range o.Labels {
		_, _ = h.WriteString(l)
		_, _ = h.Write([]byte{0})
	}

	var buf [8]byte
	for _, v := range o.Values {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}

	return h.Sum64()
}

// errorRate is the share of mismatched labels.
func errorRate(observed, predicted []string) float64 {
	if len(observed) == 0 {
		return math.NaN()
	}

	wrong := 0
	for i := range observed {
		if observed[i] != predicted[i] {
			wrong++
		}
	}

	return float64(wrong) / float64(len(observed))
}

// rmse is the root mean squared error over pairs without NaN.
func rmse(observed, predicted []float64) float64 {
	var (
		sum float64
		n   int
	)

	for i := range observed {
		if math.IsNaN(observed[i]) || math.IsNaN(predicted[i]) {
			continue
		}

		d := observed[i] - predicted[i]
		sum += d * d
		n++
	}

	if n == 0 {
		return math.NaN()
	}

	return math.Sqrt(sum / float64(n))
}

// higherIsBetter lists metric names where larger values are better. Every
// other metric is treated as an error (lower is better).
var higherIsBetter = map[string]bool{
	MetricQ2:   true,
	"r2":       true,
	"accuracy": true,
	"auc":      true,
	"cor":      true,
}

// worstValue is the penalty recorded for a metric on a failed fold.
func worstValue(metric string) float64 {
	switch {
	case metric == MetricErrorRate:
		return 1
	case higherIsBetter[metric]:
		return math.Inf(-1)
	default:
		return math.Inf(1)
	}
}
