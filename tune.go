package tuner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

//////
// Exported functionalities.
//////

// DefaultConfig returns a default configuration. Method must still be set.
func DefaultConfig() Config {
	return Config{
		Search:     SearchGrid,
		NRandom:    10,
		Folds:      5,
		Stratified: true,
		Seed:       time.Now().UnixNano(),
		Workers:    1,
		Bayes: BayesConfig{
			InitialSamples:  5,
			NumCandidates:   50,
			AcquisitionFunc: UCB,
			AcqParams: AcquisitionParams{
				Beta:      2.0,
				Xi:        0.01,
				BestSoFar: math.MaxFloat64,
			},
		},
		ProgressChan: nil, // Default to no progress updates.
	}
}

// Tune searches the component count and per-block keep-counts of a block
// sPLS / sPLS-DA model by cross-validation and reports the best setting.
//
// Parameters:
// - ctx: Ends the search early when done; evaluated rows are kept
// - config: Method, search mode, folds, seed and workers
// - blocks: Aligned data blocks (read only)
// - outcome: Shared outcome (read only)
// - space: Candidate ncomp and keepX values. BlockOrder must be empty or
// match the block-set order
//
// Returns:
// - *TuneResult: Result table, best row, settings and diagnostics. Returned
// (partial) also when ErrNoResults is returned
// - error: A *ValidationError for invalid input (nothing is fitted), or
// ErrNoResults when the context ended before any combination was evaluated
//
// Usage example:
//
//	config := DefaultConfig()
//	config.Method = Bind(MethodBlockSPLSDA, adapter)
//	config.Seed = 42
//
//	result, err := Tune(ctx, config, BlockSet{
//	    {Name: "mrna", Data: mrna},
//	    {Name: "protein", Data: protein},
//	}, CategoricalOutcome(subtypes...), SearchSpace{
//	    NComp: []int{1, 2, 3},
//	    KeepX: map[string][]int{"mrna": {10, 20}, "protein": {5, 10}},
//	})
//
// How it works:
// 1. Validates every input
// 2. Builds the fold assignment once; all combinations share it
// 3. Generates combinations (grid, random) or lets the bayes model pick them
// 4. Cross-validates each combination through the bound adapter; failing folds
// get penalty metrics instead of aborting the search
// 5. Builds the result table and selects the best row
//
// Important notes:
// - Blocks and outcome are never modified
// - With Workers > 1, grid and random combinations run concurrently; the
// result table is identical to a sequential run
// - Every combination that was started yields a row, even if all its folds
// failed
// - Grid search is limited to MaxGridSize combinations.
func Tune(ctx context.Context, config Config, blocks BlockSet, outcome Outcome, space SearchSpace) (*TuneResult, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &tuning{
		config:    config,
		blocks:    blocks,
		outcome:   outcome,
		logger:    logger,
		bestScore: math.NaN(),
	}

	t.sendProgress(PhaseValidating, 0, 0, nil, math.NaN())

	if err := validate(config, blocks, outcome, space); err != nil {
		return nil, err
	}

	// Combinations and result columns follow the block-set order.
	space.BlockOrder = blocks.Names()
	t.space = space

	folds, diags, err := BuildFolds(outcome, config.Folds, config.Stratified, config.Seed)
	if err != nil {
		return nil, err
	}

	t.folds = folds

	result := &TuneResult{
		RunID:      uuid.NewString(),
		Method:     config.Method.Method,
		SearchType: config.Search,
		Folds:      folds,
		CV: CVSettings{
			RequestedFolds: folds.Requested,
			Folds:          folds.Len(),
			Stratified:     folds.Stratified,
			Seed:           config.Seed,
			FoldDigest:     folds.Digest(),
		},
		Diagnostics: diags,
	}

	log := logger.With(slog.String("run_id", result.RunID))
	t.logger = log

	logDiagnostics(ctx, log, diags)
	log.Info("tuning started",
		slog.String("method", config.Method.Method.String()),
		slog.String("search", config.Search.String()),
		slog.Int("folds", folds.Len()),
		slog.Int("grid_size", space.GridSize()))

	var (
		records  []ResultRecord
		complete bool
	)

	if config.Search == SearchBayes {
		records, complete = t.bayes(ctx)
	} else {
		t.sendProgress(PhaseGeneratingCombinations, 0, 0, nil, math.NaN())

		combos, err := Generate(space, config.Search, config.NRandom, randomSource(config.Seed, 1))
		if err != nil {
			return nil, err
		}

		records, complete = t.evaluateAll(ctx, combos)
	}

	t.sendProgress(PhaseAggregating, len(records), len(records), nil, math.NaN())

	result.Table = NewResultTable(space.BlockOrder, records)

	// Workers finish in any order; report diagnostics by combination.
	slices.SortStableFunc(t.diagnostics, func(a, b Diagnostic) int {
		return a.Combination - b.Combination
	})

	result.Diagnostics = append(result.Diagnostics, t.diagnostics...)

	if !complete {
		d := newDiagnostic(Incomplete, "context ended after %d evaluated combinations: %v", len(records), context.Cause(ctx))
		result.Status = StatusIncomplete
		result.Diagnostics = append(result.Diagnostics, d)
		logDiagnostics(ctx, log, []Diagnostic{d})
	}

	best, err := SelectBest(result.Table, config.Method.Method)
	if err != nil {
		return result, err
	}

	result.Best = best

	log.Info("tuning finished",
		slog.Int("evaluated", result.Table.Len()),
		slog.String("status", result.Status.String()),
		slog.Any("best", best.Combination.Params()),
		slog.Float64(config.Method.Method.PrimaryMetric(), best.Mean(config.Method.Method.PrimaryMetric())))

	t.sendProgress(PhaseDone, result.Table.Len(), result.Table.Len(), best.Combination.Params(),
		best.Mean(config.Method.Method.PrimaryMetric()))

	return result, nil
}

//////
// Orchestration.
//////

// tuning holds the shared, read-only state of one Tune call plus the
// mutex-guarded progress bookkeeping.
type tuning struct {
	config  Config
	blocks  BlockSet
	outcome Outcome
	space   SearchSpace
	folds   FoldAssignment
	logger  *slog.Logger

	// mu protects the fields below.
	mu          sync.Mutex
	evaluated   int
	total       int
	bestParams  map[string]int
	bestScore   float64
	diagnostics []Diagnostic
}

// evaluate cross-validates combination i and returns its row.
func (t *tuning) evaluate(ctx context.Context, i int, c Combination) ResultRecord {
	adapter := t.config.Method.Adapter
	method := t.config.Method.Method

	params := FitParams{
		NComp:   c.NComp,
		KeepX:   c.KeepMap(),
		Options: t.config.Options,
	}

	fit := func(ctx context.Context, blocks BlockSet, outcome Outcome) (Model, error) {
		return adapter.Fit(ctx, blocks, outcome, params)
	}

	eval := func(observed, predicted Outcome) (Metrics, error) {
		m, err := adapter.Evaluate(observed, predicted)
		if err != nil {
			return nil, err
		}

		if err := checkPrimaryMetric(method, m); err != nil {
			return nil, err
		}

		return m, nil
	}

	cv := RunCV(ctx, t.blocks, t.outcome, t.folds, fit, adapter.Predict, eval)

	for j := range cv.Diagnostics {
		cv.Diagnostics[j].Combination = i
	}

	logDiagnostics(ctx, t.logger, cv.Diagnostics)

	rec := ResultRecord{Index: i, Combination: c, Metrics: cv.Aggregated}

	t.logger.Debug("combination evaluated",
		slog.Int("combination", i),
		slog.Any("params", c.Params()),
		slog.Int("failed_folds", cv.Failed),
		slog.Float64(method.PrimaryMetric(), rec.Mean(method.PrimaryMetric())))

	t.record(rec, cv.Diagnostics)

	return rec
}

// checkPrimaryMetric fails when Evaluate left out the primary error metric:
// error_rate for classification, or any metric besides q2_score for
// regression.
func checkPrimaryMetric(method Method, m Metrics) error {
	if method.Task() == Classification {
		if _, ok := m[MetricErrorRate]; !ok {
			return fmt.Errorf("evaluate did not report %s", MetricErrorRate)
		}

		return nil
	}

	for name := range m {
		if name != MetricQ2 {
			return nil
		}
	}

	return fmt.Errorf("evaluate reported no continuous error metric (such as %s)", MetricRMSE)
}

// evaluateAll runs every combination, sequentially or on a worker pool, and
// returns the evaluated rows in combination order. complete is false when the
// context ended before every combination was started.
func (t *tuning) evaluateAll(ctx context.Context, combos []Combination) (records []ResultRecord, complete bool) {
	t.total = len(combos)

	slots := make([]ResultRecord, len(combos))
	done := make([]bool, len(combos))

	workers := t.config.Workers
	if workers > len(combos) {
		workers = len(combos)
	}

	if workers <= 1 {
		for i, c := range combos {
			if ctx.Err() != nil {
				break
			}

			slots[i] = t.evaluate(ctx, i, c)
			done[i] = true
		}
	} else {
		jobs := make(chan int)

		var wg sync.WaitGroup

		for w := 0; w < workers; w++ {
			wg.Add(1)

			go func() {
				defer wg.Done()

				for i := range jobs {
					slots[i] = t.evaluate(ctx, i, combos[i])
					done[i] = true
				}
			}()
		}

	dispatch:
		for i := range combos {
			if ctx.Err() != nil {
				break
			}

			select {
			case <-ctx.Done():
				break dispatch
			case jobs <- i:
			}
		}

		close(jobs)
		wg.Wait()
	}

	complete = true
	records = make([]ResultRecord, 0, len(combos))

	for i := range slots {
		if !done[i] {
			complete = false

			continue
		}

		records = append(records, slots[i])
	}

	return records, complete
}

// record updates the progress bookkeeping and sends a progress update.
func (t *tuning) record(rec ResultRecord, diags []Diagnostic) {
	method := t.config.Method.Method
	score := rec.Mean(method.PrimaryMetric())

	t.mu.Lock()
	t.evaluated++
	t.diagnostics = append(t.diagnostics, diags...)

	if better(score, t.bestScore, method.Task() == Classification) {
		t.bestScore = score
		t.bestParams = rec.Combination.Params()
	}

	evaluated, total := t.evaluated, t.total
	t.mu.Unlock()

	t.sendProgress(PhaseEvaluatingCombination, evaluated, total, rec.Combination.Params(), score)
}

// sendProgress sends a non-blocking progress update when a channel is set.
func (t *tuning) sendProgress(phase string, iteration, total int, params map[string]int, score float64) {
	if t.config.ProgressChan == nil {
		return
	}

	t.mu.Lock()
	update := ProgressUpdate{
		Phase:             phase,
		CurrentIteration:  iteration,
		TotalIterations:   total,
		CurrentParams:     params,
		CurrentScore:      score,
		CurrentBestParams: t.bestParams,
		CurrentBestScore:  t.bestScore,
	}
	t.mu.Unlock()

	select {
	case t.config.ProgressChan <- update:
	default:
		// Skip update if channel is full.
	}
}
