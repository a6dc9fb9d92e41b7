package tuner

import (
	"log/slog"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

//////
// Data blocks and outcome.
//////

// Block is one data table (samples × features) among several tables that
// share the same sample rows.
//
// Fields:
// - Name: Unique block name, used in keepX maps and result columns
// - Data: The table itself; rows are samples, columns are features
//
// Usage:
//
//	genes := Block{Name: "genes", Data: mat.NewDense(50, 200, geneValues)}
type Block struct {
	// Name identifies the block. Must be unique inside a BlockSet.
	Name string

	// Data holds the samples × features values. It is never written to.
	Data mat.Matrix
}

// BlockSet is an ordered collection of blocks sharing identical row count and
// row order: row i of every block describes the same sample.
//
// The set is owned by the caller. The tuner only reads row subsets of it.
type BlockSet []Block

// Names returns the block names in set order.
func (bs BlockSet) Names() []string {
	names := make([]string, len(bs))
	for i, b := range bs {
		names[i] = b.Name
	}

	return names
}

// Rows returns the row count of the first block, or 0 for an empty set.
func (bs BlockSet) Rows() int {
	if len(bs) == 0 || bs[0].Data == nil {
		return 0
	}

	r, _ := bs[0].Data.Dims()

	return r
}

// Block returns the block with the given name.
func (bs BlockSet) Block(name string) (Block, bool) {
	for _, b := range bs {
		if b.Name == name {
			return b, true
		}
	}

	return Block{}, false
}

// OutcomeKind tells whether an outcome is categorical or continuous.
type OutcomeKind int

const (
	// Categorical outcomes hold class labels.
	Categorical OutcomeKind = iota

	// Continuous outcomes hold numeric responses.
	Continuous
)

// String implements fmt.Stringer.
func (k OutcomeKind) String() string {
	switch k {
	case Categorical:
		return "categorical"
	case Continuous:
		return "continuous"
	default:
		return "unknown"
	}
}

// Outcome is the response shared by every block, aligned 1:1 with block rows.
// Exactly one of Labels or Values is set.
//
// Predictions returned by an Adapter use the same type.
type Outcome struct {
	// Labels holds class labels for categorical outcomes.
	Labels []string

	// Values holds numeric responses for continuous outcomes. NaN marks a
	// missing value.
	Values []float64
}

// CategoricalOutcome builds a categorical outcome from labels.
func CategoricalOutcome(labels ...string) Outcome {
	return Outcome{Labels: labels}
}

// ContinuousOutcome builds a continuous outcome from values.
func ContinuousOutcome(values ...float64) Outcome {
	return Outcome{Values: values}
}

// Kind reports the outcome kind. An outcome with labels is categorical.
func (o Outcome) Kind() OutcomeKind {
	if o.Labels != nil {
		return Categorical
	}

	return Continuous
}

// Len returns the number of samples in the outcome.
func (o Outcome) Len() int {
	if o.Labels != nil {
		return len(o.Labels)
	}

	return len(o.Values)
}

//////
// Folds, metrics, results.
//////

// FoldAssignment is a partition of the sample indices {0..N-1} into folds.
// Every index appears in exactly one fold; indices inside a fold are sorted.
//
// The assignment is computed once per tuning run and shared read-only by all
// parameter combinations so that they are compared on the same splits.
type FoldAssignment struct {
	// Folds holds one sorted index set per fold.
	Folds [][]int

	// Requested is the fold count asked for, before clamping.
	Requested int

	// Stratified reports whether class-stratified dealing was applied.
	Stratified bool

	// Seed is the seed the assignment was drawn with.
	Seed int64
}

// Len returns the effective number of folds.
func (fa FoldAssignment) Len() int {
	return len(fa.Folds)
}

// Metrics maps a metric name (e.g. "error_rate", "q2_score") to its value for
// one fold of one combination.
type Metrics map[string]float64

// Aggregate summarises one metric across folds.
type Aggregate struct {
	// Mean is the arithmetic mean across folds.
	Mean float64

	// SD is the sample standard deviation across folds. It is NaN ("not
	// available") when only one fold exists.
	SD float64

	// Values holds the raw per-fold values in fold order.
	Values []float64
}

// HasSD reports whether SD is available.
func (a Aggregate) HasSD() bool {
	return len(a.Values) > 1 && !math.IsNaN(a.SD)
}

// BlockKeep is the keep-count for one block.
type BlockKeep struct {
	Block string
	Keep  int
}

// Combination is one tested parameter setting: a component count plus one
// keep-count per block, in block order.
type Combination struct {
	NComp int
	KeepX []BlockKeep
}

// KeepMap returns the keep-counts keyed by block name.
func (c Combination) KeepMap() map[string]int {
	m := make(map[string]int, len(c.KeepX))
	for _, k := range c.KeepX {
		m[k.Block] = k.Keep
	}

	return m
}

// Params flattens the combination into result-table columns: "ncomp" and one
// "keepX_<block>" per block.
func (c Combination) Params() map[string]int {
	p := make(map[string]int, len(c.KeepX)+1)
	p[ColumnNComp] = c.NComp

	for _, k := range c.KeepX {
		p[keepXColumn(k.Block)] = k.Keep
	}

	return p
}

// ResultRecord is one row of the result table: the parameters of a tested
// combination and its aggregated metrics.
type ResultRecord struct {
	// Index is the combination position in generation order.
	Index int

	Combination Combination

	// Metrics holds the aggregate of every metric produced for this row.
	Metrics map[string]Aggregate
}

// Mean returns the mean of the named metric, or NaN when absent.
func (r ResultRecord) Mean(metric string) float64 {
	a, ok := r.Metrics[metric]
	if !ok {
		return math.NaN()
	}

	return a.Mean
}

// CVSettings records how cross-validation was run.
type CVSettings struct {
	// RequestedFolds is the fold count asked for.
	RequestedFolds int

	// Folds is the effective fold count after clamping and dropping.
	Folds int

	Stratified bool
	Seed       int64

	// FoldDigest fingerprints the fold assignment. Two runs with the same
	// digest were evaluated on the same splits.
	FoldDigest uint64
}

// Status tells whether every generated combination was evaluated.
type Status int

const (
	// StatusComplete means every generated combination was evaluated.
	StatusComplete Status = iota

	// StatusIncomplete means the context ended before all combinations ran.
	StatusIncomplete
)

// String implements fmt.Stringer.
func (s Status) String() string {
	if s == StatusIncomplete {
		return "incomplete"
	}

	return "complete"
}

// TuneResult is what Tune returns.
type TuneResult struct {
	// RunID uniquely identifies this tuning run.
	RunID string

	Table ResultTable

	// Best is the selected row. Zero when no row was evaluated.
	Best ResultRecord

	Method     Method
	SearchType SearchType
	CV         CVSettings
	Status     Status

	// Folds is the shared fold assignment used by every combination.
	Folds FoldAssignment

	// Diagnostics lists every non-fatal warning raised during the run.
	Diagnostics []Diagnostic
}

//////
// Progress and configuration.
//////

// Phases reported through ProgressUpdate.
const (
	PhaseValidating             = "Validating"
	PhaseGeneratingCombinations = "GeneratingCombinations"
	PhaseEvaluatingCombination  = "EvaluatingCombination"
	PhaseAggregating            = "Aggregating"
	PhaseDone                   = "Done"
)

// ProgressUpdate represents the current state of a tuning run.
type ProgressUpdate struct {
	// Phase is one of the Phase* constants.
	Phase string

	// CurrentIteration is the number of combinations evaluated so far.
	CurrentIteration int

	// TotalIterations is the number of combinations to evaluate.
	TotalIterations int

	// CurrentParams holds the flattened parameters of the last evaluated
	// combination.
	CurrentParams map[string]int

	// CurrentScore is the primary-metric mean of the last evaluated
	// combination.
	CurrentScore float64

	// CurrentBestParams holds the parameters of the best row so far.
	CurrentBestParams map[string]int

	// CurrentBestScore holds the primary-metric mean of the best row so far.
	// NaN until the first row is evaluated.
	CurrentBestScore float64
}

// BayesConfig holds the settings of the Gaussian-process guided search mode.
type BayesConfig struct {
	// InitialSamples is the size of the random design evaluated before the
	// model starts suggesting combinations.
	// Recommended range: 3-10
	InitialSamples int

	// NumCandidates is the number of random candidates scored by the model
	// per iteration. Only the most promising one is cross-validated.
	// Recommended range: 20-200
	NumCandidates int

	// AcquisitionFunc decides which candidate is most promising. See
	// AcquisitionFunc for the built-in options.
	AcquisitionFunc AcquisitionFunc

	// AcqParams holds the parameters for the acquisition function.
	AcqParams AcquisitionParams
}

// Config holds all settings of a tuning run.
//
// Usage example:
//
//	config := DefaultConfig()
//	config.Method = Bind(MethodBlockSPLSDA, myAdapter)
//	config.Search = SearchRandom
//	config.NRandom = 20
//	config.Seed = 42
//
//	result, err := Tune(ctx, config, blocks, outcome, space)
type Config struct {
	// Method is the model kind together with its bound adapter.
	Method BoundMethod

	// Search selects grid, random or bayes search.
	Search SearchType

	// NRandom is the number of combinations drawn in random mode and the
	// evaluation budget in bayes mode. Capped at the grid size.
	NRandom int

	// Folds is the requested number of cross-validation folds (>= 2).
	Folds int

	// Stratified deals each class round-robin over the folds. Only applies
	// to categorical outcomes.
	Stratified bool

	// Seed drives fold construction and combination sampling. Two runs with
	// the same seed and inputs produce the same folds and combinations.
	Seed int64

	// Workers is the number of combinations evaluated concurrently. 0 or 1
	// means sequential.
	Workers int

	// Options is passed through to the adapter's Fit call unchanged.
	Options map[string]any

	// Bayes configures SearchBayes.
	Bayes BayesConfig

	// Logger receives warnings and run events. If nil, slog.Default() is
	// used.
	Logger *slog.Logger

	// ProgressChan is used to send progress updates during tuning.
	// If nil, no updates will be sent.
	ProgressChan chan<- ProgressUpdate
}

// randomSource returns a fresh generator for the given stream of a seed.
// Streams keep fold construction and combination sampling independent.
func randomSource(seed int64, stream int64) *rand.Rand {
	return rand.New(rand.NewSource(seed + stream*0x9E3779B9))
}
