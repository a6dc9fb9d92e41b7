package tuner

import (
	"context"
	"math"
)

// failurePenalty replaces non-finite objectives so the surrogate model stays
// finite. It is far above any error rate and any useful negated Q2.
const failurePenalty = 1e6

// bayes runs the Gaussian-process guided search.
//
// How it works:
// 1. Evaluates an initial random design of Bayes.InitialSamples combinations
// 2. For each further step:
//   - Draws Bayes.NumCandidates random combinations
//   - Predicts their objective with the surrogate model
//   - Cross-validates the one with the lowest acquisition value
//   - Feeds the observed objective back into the model
//
// 3. Stops after min(NRandom, grid size) evaluations or when ctx is done
//
// The objective is error_rate_mean for classification and -q2_score_mean for
// regression; lower is better.
func (t *tuning) bayes(ctx context.Context) (records []ResultRecord, complete bool) {
	cfg := t.config.Bayes
	blocks := t.space.Blocks()

	budget := t.config.NRandom
	if total := t.space.GridSize(); budget > total {
		budget = total
	}

	initial := cfg.InitialSamples
	if initial < 1 {
		initial = 1
	}

	if initial > budget {
		initial = budget
	}

	rng := randomSource(t.config.Seed, 1)

	t.sendProgress(PhaseGeneratingCombinations, 0, budget, nil, math.NaN())

	design, err := Generate(t.space, SearchBayes, initial, rng)
	if err != nil {
		return nil, false
	}

	acq := cfg.AcqParams
	acq.BestSoFar = math.MaxFloat64

	if acq.RandomState == nil {
		acq.RandomState = randomSource(t.config.Seed, 2)
	}

	scale := newCombinationScale(t.space, blocks)
	gp := newGaussianProcess(defaultKernelWidth)

	t.total = budget
	records = make([]ResultRecord, 0, budget)

	for i := 0; i < budget; i++ {
		if ctx.Err() != nil {
			return records, false
		}

		var next Combination

		if i < len(design) {
			next = design[i]
		} else {
			bestAcquisition := math.MaxFloat64

			for j := 0; j < cfg.NumCandidates; j++ {
				candidate := randomCombination(t.space, blocks, rng)

				mean, variance := gp.Predict(scale.vector(candidate))

				acquisition := cfg.AcquisitionFunc(mean, variance, acq)
				if j == 0 || acquisition < bestAcquisition {
					bestAcquisition = acquisition
					next = candidate
				}
			}
		}

		rec := t.evaluate(ctx, i, next)
		records = append(records, rec)

		objective := t.objective(rec)
		gp.Update(scale.vector(next), objective)

		if objective < acq.BestSoFar {
			acq.BestSoFar = objective
		}
	}

	return records, true
}

// objective maps a row to the minimised quantity.
func (t *tuning) objective(rec ResultRecord) float64 {
	method := t.config.Method.Method

	v := rec.Mean(method.PrimaryMetric())
	if method.Task() == Regression {
		v = -v
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return failurePenalty
	}

	return v
}

// combinationScale maps combinations to vectors in [0, 1]^d, one dimension
// for ncomp and one per block, using the candidate ranges of the space.
type combinationScale struct {
	lo, hi []float64
}

func newCombinationScale(space SearchSpace, blocks []string) combinationScale {
	s := combinationScale{
		lo: make([]float64, len(blocks)+1),
		hi: make([]float64, len(blocks)+1),
	}

	lo, hi := minMax(space.NComp)
	s.lo[0], s.hi[0] = float64(lo), float64(hi)

	for i, name := range blocks {
		lo, hi := minMax(space.KeepX[name])
		s.lo[i+1], s.hi[i+1] = float64(lo), float64(hi)
	}

	return s
}

// vector scales a combination. Dimensions with a single candidate map to 0.
func (s combinationScale) vector(c Combination) []float64 {
	raw := make([]int, 0, len(c.KeepX)+1)
	raw = append(raw, c.NComp)

	for _, k := range c.KeepX {
		raw = append(raw, k.Keep)
	}

	x := toFloats(raw)
	for i := range x {
		if span := s.hi[i] - s.lo[i]; span > 0 {
			x[i] = (x[i] - s.lo[i]) / span
		} else {
			x[i] = 0
		}
	}

	return x
}
