package tuner

import "math"

//////
// Const, vars, types.
//////

// defaultKernelWidth suits combination vectors scaled to [0, 1].
const defaultKernelWidth = 0.25

// gaussianProcess is a kernel-regression surrogate of the tuning objective.
// It predicts the objective of an untested combination from the combinations
// already cross-validated. Bayes search drives it from a single goroutine.
//
// Fields:
// - X: Observed combination vectors, each dimension scaled to [0, 1]
// - Y: Observed objective (lower is better) for each vector
// - sigma: Kernel width
type gaussianProcess struct {
	X [][]float64
	Y []float64

	sigma float64
}

//////
// Methods.
//////

// RBFKernel measures the similarity of two combination vectors:
//
//	k(x1, x2) = exp(-sum((x1 - x2)^2) / (2 * sigma^2))
//
// Returns 1.0 for identical points and values close to 0.0 for distant ones.
// Panics if the vectors have different lengths.
func (gp *gaussianProcess) RBFKernel(x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		panic("input vectors must have the same length")
	}

	var sum float64

	for i := range x1 {
		diff := x1[i] - x2[i]

		sum += diff * diff
	}

	return math.Exp(-sum / (2 * gp.sigma * gp.sigma))
}

// Predict estimates the objective and its uncertainty at x.
//
// Returns:
// - mean: Kernel-weighted average of the observed objectives
// - variance: 1 - k², with k the similarity to the closest observation
//
// Returns (0, 1) if no observations exist.
func (gp *gaussianProcess) Predict(x []float64) (mean, variance float64) {
	if len(gp.X) == 0 {
		return 0, 1
	}

	var (
		weighted, total float64
		closest         float64
	)

	for i := range gp.X {
		k := gp.RBFKernel(x, gp.X[i])

		weighted += k * gp.Y[i]
		total += k

		if k > closest {
			closest = k
		}
	}

	// Far from every observation: fall back to the plain average.
	if total < minVariance {
		weighted = 0
		for _, y := range gp.Y {
			weighted += y
		}

		return weighted / float64(len(gp.Y)), 1
	}

	return weighted / total, math.Max(1-closest*closest, 0)
}

// Update adds an observation. x is copied.
func (gp *gaussianProcess) Update(x []float64, y float64) {
	newX := make([]float64, len(x))
	copy(newX, x)

	gp.X = append(gp.X, newX)
	gp.Y = append(gp.Y, y)
}

//////
// Factory.
//////

// newGaussianProcess creates an empty model with the given kernel width.
// Non-positive widths fall back to defaultKernelWidth.
func newGaussianProcess(sigma float64) *gaussianProcess {
	if sigma <= 0 {
		sigma = defaultKernelWidth
	}

	return &gaussianProcess{sigma: sigma}
}
