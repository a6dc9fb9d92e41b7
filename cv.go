package tuner

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// FitFunc trains a model on the training rows of one fold. Parameters of the
// combination under test are bound by the caller.
type FitFunc func(ctx context.Context, blocks BlockSet, outcome Outcome) (Model, error)

// PredictFunc predicts the test rows of one fold.
type PredictFunc func(ctx context.Context, model Model, blocks BlockSet) (Outcome, error)

// EvalFunc scores the predictions of one fold.
type EvalFunc func(observed, predicted Outcome) (Metrics, error)

// CVResult holds the outcome of cross-validating one combination.
type CVResult struct {
	// PerFold holds the metrics of every fold, in fold order.
	PerFold []Metrics

	// Aggregated holds mean, SD and raw values per metric.
	Aggregated map[string]Aggregate

	// Failed counts the folds that recorded penalty metrics.
	Failed int

	// Diagnostics lists fold failures and the single-fold SD warning.
	Diagnostics []Diagnostic
}

// RunCV cross-validates one fitted configuration over the given folds.
//
// Parameters:
// - ctx: Passed to fit and predict
// - blocks: The full block set (read only)
// - outcome: The full outcome (read only)
// - folds: Fold assignment over the block rows
// - fit, predict, eval: The model collaborator
//
// Returns:
// - CVResult: Per-fold and aggregated metrics
//
// How it works:
// 1. For each fold, the fold indices form the test set and all other indices,
// ascending, the train set
// 2. Every block and the outcome are copied row-wise into train and test views
// 3. fit -> predict -> eval run on those views; q2_score is computed here
// 4. A failing fold (error or panic in any of the three steps, or a prediction
// length mismatch) records penalty metrics and a FoldFailed diagnostic; the
// remaining folds still run
//
// Important notes:
// - Never aborts: the result always has one entry per fold
// - Penalty metrics: error_rate = 1 for categorical outcomes, q2_score = -Inf,
// and the worst value of every other metric seen on successful folds.
func RunCV(
	ctx context.Context,
	blocks BlockSet,
	outcome Outcome,
	folds FoldAssignment,
	fit FitFunc,
	predict PredictFunc,
	eval EvalFunc,
) CVResult {
	res := CVResult{PerFold: make([]Metrics, folds.Len())}

	failed := make([]bool, folds.Len())
	seen := map[string]struct{}{MetricQ2: {}}

	if outcome.Kind() == Categorical {
		seen[MetricErrorRate] = struct{}{}
	}

	for i := range folds.Folds {
		metrics, err := runFold(ctx, blocks, outcome, folds, i, fit, predict, eval)
		if err != nil {
			failed[i] = true
			res.Failed++

			d := newDiagnostic(FoldFailed, "%v", err)
			d.Fold = i
			res.Diagnostics = append(res.Diagnostics, d)

			continue
		}

		for name := range metrics {
			seen[name] = struct{}{}
		}

		res.PerFold[i] = metrics
	}

	// Penalties are filled in last so failed folds carry every metric name
	// observed on the successful ones.
	for i := range res.PerFold {
		if !failed[i] {
			continue
		}

		penalty := make(Metrics, len(seen))
		for name := range seen {
			penalty[name] = worstValue(name)
		}

		res.PerFold[i] = penalty
	}

	res.Aggregated = AggregateMetrics(res.PerFold)

	if folds.Len() == 1 {
		res.Diagnostics = append(res.Diagnostics, newDiagnostic(SDUnavailable,
			"only one fold, standard deviations are not available"))
	}

	return res
}

// runFold evaluates fold i. Panics in the collaborator are turned into errors.
func runFold(
	ctx context.Context,
	blocks BlockSet,
	outcome Outcome,
	folds FoldAssignment,
	i int,
	fit FitFunc,
	predict PredictFunc,
	eval EvalFunc,
) (metrics Metrics, err error) {
	stage := "fit"

	defer func() {
		if r := recover(); r != nil {
			err = &FoldError{Fold: i, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	trainIdx, testIdx := folds.Split(i)

	model, err := fit(ctx, blocks.subset(trainIdx), outcome.subset(trainIdx))
	if err != nil {
		return nil, &FoldError{Fold: i, Stage: stage, Err: err}
	}

	stage = "predict"

	testOutcome := outcome.subset(testIdx)

	predicted, err := predict(ctx, model, blocks.subset(testIdx))
	if err != nil {
		return nil, &FoldError{Fold: i, Stage: stage, Err: err}
	}

	if predicted.Len() != len(testIdx) {
		return nil, &FoldError{
			Fold:  i,
			Stage: stage,
			Err:   fmt.Errorf("%w: %d test rows, %d predictions", ErrPredictionShape, len(testIdx), predicted.Len()),
		}
	}

	stage = "evaluate"

	scored, err := eval(testOutcome, predicted)
	if err != nil {
		return nil, &FoldError{Fold: i, Stage: stage, Err: err}
	}

	metrics = make(Metrics, len(scored)+1)
	for name, v := range scored {
		metrics[name] = v
	}

	metrics[MetricQ2] = q2Score(testOutcome, predicted)

	return metrics, nil
}

// AggregateMetrics turns per-fold metrics into mean, sample standard deviation
// and raw values per metric name. A metric missing on a fold is skipped for
// that fold. With a single value the SD is NaN (not available).
func AggregateMetrics(perFold []Metrics) map[string]Aggregate {
	names := make(map[string]struct{})
	for _, m := range perFold {
		for name := range m {
			names[name] = struct{}{}
		}
	}

	out := make(map[string]Aggregate, len(names))
	for name := range names {
		values := make([]float64, 0, len(perFold))
		for _, m := range perFold {
			if v, ok := m[name]; ok {
				values = append(values, v)
			}
		}

		a := Aggregate{Mean: stat.Mean(values, nil), SD: math.NaN(), Values: values}
		if len(values) > 1 {
			a.SD = stat.StdDev(values, nil)
		}

		out[name] = a
	}

	return out
}
