package tuner

import (
	"math"
	"math/rand"
)

//////
// Acquisition functions for the bayes search mode.
// Each function scores a candidate combination from the model's predicted
// objective (lower is better) and its uncertainty. The candidate with the
// lowest score is cross-validated next.
//////

// AcquisitionFunc scores a candidate combination.
//
// Parameters:
// - mean: Predicted objective at the candidate (lower is better)
// - variance: Uncertainty of that prediction
// - params: Additional parameters needed by specific acquisition functions
//
// Returns:
// - float64: Acquisition value (lower values indicate more promising points)
//
// Implementations must be safe to call with zero variance.
type AcquisitionFunc func(mean, variance float64, params AcquisitionParams) float64

// AcquisitionParams holds parameters used by the acquisition functions.
type AcquisitionParams struct {
	// Beta weighs uncertainty in UCB. Higher values explore more.
	// Typical values range from 0.1 to 5.0, with 2.0 being a good default.
	Beta float64

	// Xi is the minimum improvement PI and EI look for.
	// Typical values range from 0.01 to 0.1.
	Xi float64

	// BestSoFar is the best (lowest) objective seen so far. Updated by the
	// tuner before every iteration.
	BestSoFar float64

	// RandomState is the generator used by Thompson sampling. If nil, the
	// tuner supplies one derived from Config.Seed.
	RandomState *rand.Rand
}

// minVariance keeps the divisions in PI and EI finite.
const minVariance = 1e-12

// UCB implements the (lower) confidence bound: mean - Beta·σ.
//
// Example:
//
//	params := AcquisitionParams{Beta: 2.0}
//	value := UCB(0.25, 0.04, params)
func UCB(mean, variance float64, params AcquisitionParams) float64 {
	return mean - params.Beta*math.Sqrt(math.Max(variance, 0))
}

// ProbabilityOfImprovement scores a candidate by the probability that it does
// NOT improve on BestSoFar by at least Xi, so that lower stays better.
//
// Example:
//
//	params := AcquisitionParams{BestSoFar: 0.2, Xi: 0.01}
//	p := ProbabilityOfImprovement(0.18, 0.01, params)
func ProbabilityOfImprovement(mean, variance float64, params AcquisitionParams) float64 {
	z := (mean - params.BestSoFar + params.Xi) / math.Sqrt(math.Max(variance, minVariance))

	return normalCDF(z)
}

// ExpectedImprovement returns the negated expected improvement over
// BestSoFar - Xi.
//
// Example:
//
//	params := AcquisitionParams{BestSoFar: 0.2, Xi: 0.01}
//	ei := ExpectedImprovement(0.18, 0.01, params)
func ExpectedImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(math.Max(variance, minVariance))

	improvement := params.BestSoFar - params.Xi - mean
	z := improvement / sigma

	return -(improvement*normalCDF(z) + sigma*normalPDF(z))
}

// ThompsonSampling draws one sample from the predicted distribution.
//
// Warning:
// - params.RandomState must not be nil.
func ThompsonSampling(mean, variance float64, params AcquisitionParams) float64 {
	return mean + math.Sqrt(math.Max(variance, 0))*params.RandomState.NormFloat64()
}
