package tuner

import "math"

// Q2 computes the predictive R² of continuous predictions:
//
//	Q2 = 1 - SS_res / SS_tot
//	SS_res = Σ (y_true - y_pred)²
//	SS_tot = Σ (y_true - mean(y_true))²
//
// Pairs where either value is NaN are ignored. A perfect prediction returns
// exactly 1; predicting the mean of y_true everywhere returns 0.
//
// Returns:
// - float64: The score, or -Inf when it is undefined (SS_tot == 0, no usable
// pairs, length mismatch) or not finite
func Q2(yTrue, yPred []float64) float64 {
	if len(yTrue) != len(yPred) {
		return math.Inf(-1)
	}

	var (
		sum float64
		n   int
	)

	for i := range yTrue {
		if math.IsNaN(yTrue[i]) || math.IsNaN(yPred[i]) {
			continue
		}

		sum += yTrue[i]
		n++
	}

	if n == 0 {
		return math.Inf(-1)
	}

	mean := sum / float64(n)

	var ssRes, ssTot float64

	for i := range yTrue {
		if math.IsNaN(yTrue[i]) || math.IsNaN(yPred[i]) {
			continue
		}

		r := yTrue[i] - yPred[i]
		t := yTrue[i] - mean
		ssRes += r * r
		ssTot += t * t
	}

	q2 := 1 - ssRes/ssTot
	if math.IsNaN(q2) || math.IsInf(q2, 0) {
		return math.Inf(-1)
	}

	return q2
}

// Q2Categorical is the Q2 adaptation used for class labels. The agreement
// indicator (1 where the predicted label equals the observed one, else 0) is
// used as both the observed and the predicted series of Q2.
//
// Experimental: comparing the agreement series with itself yields 1 whenever
// predictions are partly right and -Inf when they are all right or all wrong.
// It carries little information and should not be read as a predictive R².
func Q2Categorical(yTrue, yPred []string) float64 {
	if len(yTrue) != len(yPred) {
		return math.Inf(-1)
	}

	agreement := make([]float64, len(yTrue))
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			agreement[i] = 1
		}
	}

	return Q2(agreement, agreement)
}

// q2Score dispatches on the outcome kind. Mismatched kinds score -Inf.
func q2Score(observed, predicted Outcome) float64 {
	if observed.Kind() != predicted.Kind() {
		return math.Inf(-1)
	}

	if observed.Kind() == Categorical {
		return Q2Categorical(observed.Labels, predicted.Labels)
	}

	return Q2(observed.Values, predicted.Values)
}
