package tuner

import (
	"context"
	"fmt"
	"strings"
)

//////
// Model kinds.
//////

// Method is the closed set of supported model kinds.
type Method int

const (
	// MethodSPLS is single-table sparse PLS regression.
	MethodSPLS Method = iota + 1

	// MethodSPLSDA is single-table sparse PLS discriminant analysis.
	MethodSPLSDA

	// MethodBlockSPLS is multi-block sparse PLS regression.
	MethodBlockSPLS

	// MethodBlockSPLSDA is multi-block sparse PLS discriminant analysis.
	MethodBlockSPLSDA
)

// Task is what a method predicts.
type Task int

const (
	// Classification methods predict class labels and are ranked by
	// error_rate (lower is better).
	Classification Task = iota

	// Regression methods predict numeric responses and are ranked by
	// q2_score (higher is better).
	Regression
)

// Metric names produced or consumed by the tuner.
const (
	MetricErrorRate = "error_rate"
	MetricQ2        = "q2_score"
	MetricRMSE      = "rmse"
)

var methodNames = map[Method]string{
	MethodSPLS:        "spls",
	MethodSPLSDA:      "splsda",
	MethodBlockSPLS:   "block.spls",
	MethodBlockSPLSDA: "block.splsda",
}

// ParseMethod resolves a method name such as "block.splsda".
func ParseMethod(name string) (Method, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for m, s := range methodNames {
		if s == n {
			return m, nil
		}
	}

	return 0, &ValidationError{
		Arg:        "method",
		Constraint: fmt.Sprintf("unsupported method %q", name),
	}
}

// String implements fmt.Stringer.
func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}

	return fmt.Sprintf("Method(%d)", int(m))
}

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	_, ok := methodNames[m]

	return ok
}

// Task returns what the method predicts.
func (m Method) Task() Task {
	if m == MethodSPLSDA || m == MethodBlockSPLSDA {
		return Classification
	}

	return Regression
}

// OutcomeKind returns the outcome kind the method requires.
func (m Method) OutcomeKind() OutcomeKind {
	if m.Task() == Classification {
		return Categorical
	}

	return Continuous
}

// MultiBlock reports whether the method accepts more than one block.
func (m Method) MultiBlock() bool {
	return m == MethodBlockSPLS || m == MethodBlockSPLSDA
}

// PrimaryMetric returns the metric rows are ranked by.
func (m Method) PrimaryMetric() string {
	if m.Task() == Classification {
		return MetricErrorRate
	}

	return MetricQ2
}

//////
// External collaborator.
//////

// Model is an opaque fitted model produced by an Adapter.
type Model any

// FitParams holds the parameters of one combination as handed to Fit.
type FitParams struct {
	NComp int

	// KeepX maps block name to keep-count.
	KeepX map[string]int

	// Options is Config.Options, passed through unchanged.
	Options map[string]any
}

// Adapter is the model-fitting collaborator bound to a Method.
//
// Implementations must not modify the blocks or outcomes they receive and must
// be safe for concurrent use when Config.Workers > 1.
type Adapter interface {
	// Fit trains a model on the given blocks and outcome.
	Fit(ctx context.Context, blocks BlockSet, outcome Outcome, params FitParams) (Model, error)

	// Predict returns one prediction per row of blocks.
	Predict(ctx context.Context, model Model, blocks BlockSet) (Outcome, error)

	// Evaluate scores predictions against the observed outcome. It must
	// return error_rate for classification and at least one continuous error
	// metric (such as rmse) for regression. A fold whose Evaluate misses it
	// counts as failed. q2_score is always computed by the tuner itself.
	Evaluate(observed, predicted Outcome) (Metrics, error)
}

// AdapterFuncs turns three functions into an Adapter. A nil Evaluate falls
// back to DefaultEvaluate.
type AdapterFuncs struct {
	FitFunc      func(ctx context.Context, blocks BlockSet, outcome Outcome, params FitParams) (Model, error)
	PredictFunc  func(ctx context.Context, model Model, blocks BlockSet) (Outcome, error)
	EvaluateFunc func(observed, predicted Outcome) (Metrics, error)
}

// Fit implements Adapter.
func (a AdapterFuncs) Fit(ctx context.Context, blocks BlockSet, outcome Outcome, params FitParams) (Model, error) {
	return a.FitFunc(ctx, blocks, outcome, params)
}

// Predict implements Adapter.
func (a AdapterFuncs) Predict(ctx context.Context, model Model, blocks BlockSet) (Outcome, error) {
	return a.PredictFunc(ctx, model, blocks)
}

// Evaluate implements Adapter.
func (a AdapterFuncs) Evaluate(observed, predicted Outcome) (Metrics, error) {
	if a.EvaluateFunc == nil {
		return DefaultEvaluate(observed, predicted)
	}

	return a.EvaluateFunc(observed, predicted)
}

// BoundMethod is a Method together with the adapter that fits it.
type BoundMethod struct {
	Method  Method
	Adapter Adapter
}

// Bind attaches an adapter to a method.
func Bind(method Method, adapter Adapter) BoundMethod {
	return BoundMethod{Method: method, Adapter: adapter}
}

// DefaultEvaluate computes error_rate for categorical outcomes and rmse for
// continuous ones. Missing continuous values are skipped pairwise.
func DefaultEvaluate(observed, predicted Outcome) (Metrics, error) {
	if observed.Len() != predicted.Len() {
		return nil, fmt.Errorf("%w: %d observed, %d predicted", ErrPredictionShape, observed.Len(), predicted.Len())
	}

	if observed.Kind() == Categorical {
		if predicted.Kind() != Categorical {
			return nil, fmt.Errorf("%w: expected labels", ErrPredictionShape)
		}

		return Metrics{MetricErrorRate: errorRate(observed.Labels, predicted.Labels)}, nil
	}

	if predicted.Kind() != Continuous {
		return nil, fmt.Errorf("%w: expected numeric values", ErrPredictionShape)
	}

	return Metrics{MetricRMSE: rmse(observed.Values, predicted.Values)}, nil
}
