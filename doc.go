// Package tuner tunes multi-block sparse PLS and PLS-DA models by
// cross-validation. Given several aligned data blocks and a shared outcome, it
// searches the number of components (ncomp) and the number of variables kept
// per block (keepX), estimates out-of-sample performance on K folds, and
// reports the best setting.
//
// # Features
//
//   - Fold construction: stratified (per-class round-robin) or plain
//     (contiguous chunks of one shuffle), deterministic for a given seed
//   - Cross-validation: every block is row-sliced into independent copies;
//     failing folds get penalty metrics instead of aborting the search
//   - Q2: predictive R² computed by the tuner for every fold
//   - Search modes: full grid, random draws capped at the grid size, and a
//     Gaussian-process guided mode (bayes)
//   - Concurrency: optional worker pool over combinations
//   - Deadlines: a done context stops new evaluations and returns the rows
//     evaluated so far, marked incomplete
//   - Diagnostics: non-fatal warnings are returned with the result and logged
//     through log/slog
//
// # Model adapters
//
// Fitting and prediction are delegated to an Adapter bound to one of the
// supported methods (spls, splsda, block.spls, block.splsda):
//
//	adapter := AdapterFuncs{
//	    FitFunc: func(ctx context.Context, b BlockSet, y Outcome, p FitParams) (Model, error) {
//	        return fitBlockSPLSDA(b, y, p.NComp, p.KeepX)
//	    },
//	    PredictFunc: func(ctx context.Context, m Model, b BlockSet) (Outcome, error) {
//	        return m.(*myModel).predict(b)
//	    },
//	}
//
//	config := DefaultConfig()
//	config.Method = Bind(MethodBlockSPLSDA, adapter)
//
// Classification methods are ranked by the mean error_rate (lower is better),
// regression methods by the mean q2_score (higher is better).
//
// # Search modes
//
// 1. Grid: every combination of the candidate values.
//
//	config.Search = SearchGrid
//
// 2. Random: NRandom independent draws, with replacement, never more than the
// grid size.
//
//	config.Search = SearchRandom
//	config.NRandom = 20
//
// 3. Bayes: an initial random design followed by combinations picked by an
// acquisition function (UCB, ProbabilityOfImprovement, ExpectedImprovement or
// ThompsonSampling) over a kernel surrogate of the objective. NRandom is the
// evaluation budget.
//
//	config.Search = SearchBayes
//	config.NRandom = 15
//	config.Bayes.AcquisitionFunc = ExpectedImprovement
//
// # Q2 for class labels
//
// For categorical outcomes Q2Categorical applies the Q2 formula to the label
// agreement indicator compared with itself. The value is kept for
// comparability with existing results but is experimental: it carries little
// information and is not a predictive R².
//
// # Errors
//
// Invalid input is reported before any computation as a *ValidationError
// wrapping ErrInvalidInput. Fold failures never surface as errors; they show up
// as penalty values (error_rate = 1, q2_score = -Inf) and FoldFailed
// diagnostics.
package tuner
