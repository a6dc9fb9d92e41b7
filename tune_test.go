package tuner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestTuneGridClassification(t *testing.T) {
	labels := classLabels()
	blocks := classBlocks(labels)
	outcome := CategoricalOutcome(labels...)

	result, err := Tune(context.Background(), classConfig(centroidAdapter()), blocks, outcome, classSpace())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, StatusComplete, result.Status)
	assert.Equal(t, SearchGrid, result.SearchType)
	assert.Equal(t, MethodBlockSPLSDA, result.Method)
	assert.Equal(t, 8, result.Table.Len())
	assert.Equal(t, 5, result.CV.Folds)
	assert.True(t, result.CV.Stratified)
	assert.Equal(t, result.Folds.Digest(), result.CV.FoldDigest)

	for _, col := range []string{"ncomp", "keepX_b1", "keepX_b2", "error_rate_mean", "error_rate_sd", "q2_score_mean"} {
		assert.Contains(t, result.Table.Columns(), col)
	}

	for i := range result.Table.Rows {
		assert.LessOrEqual(t, result.Best.Mean(MetricErrorRate), result.Table.Rows[i].Mean(MetricErrorRate))
	}

	assert.Less(t, result.Best.Mean(MetricErrorRate), 0.2)
}

func TestTuneLeavesInputsUntouched(t *testing.T) {
	labels := classLabels()
	blocks := classBlocks(labels)
	outcome := CategoricalOutcome(labels...)

	blocksBefore := blocks.Digest()
	outcomeBefore := outcome.Digest()

	config := classConfig(centroidAdapter())
	config.Search = SearchRandom
	config.NRandom = 5

	_, err := Tune(context.Background(), config, blocks, outcome, classSpace())
	require.NoError(t, err)

	assert.Equal(t, blocksBefore, blocks.Digest())
	assert.Equal(t, outcomeBefore, outcome.Digest())
}

func TestTuneRejectsMismatchedBlocks(t *testing.T) {
	labels := classLabels()
	blocks := classBlocks(labels)
	blocks[1].Data = mat.NewDense(10, 6, nil)

	var fits int32

	adapter := centroidAdapter()
	adapter.FitFunc = func(ctx context.Context, b BlockSet, y Outcome, p FitParams) (Model, error) {
		atomic.AddInt32(&fits, 1)

		return fitCentroids(ctx, b, y, p)
	}

	result, err := Tune(context.Background(), classConfig(adapter), blocks, CategoricalOutcome(labels...), classSpace())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "blocks", verr.Arg)
	assert.Zero(t, atomic.LoadInt32(&fits))
}

func TestTuneValidation(t *testing.T) {
	labels := classLabels()
	blocks := classBlocks(labels)
	outcome := CategoricalOutcome(labels...)
	regBlocks, regOutcome := regressionData(20)

	cases := []struct {
		name   string
		arg    string
		mutate func(c *Config, b *BlockSet, y *Outcome, s *SearchSpace)
	}{
		{"short outcome", "outcome", func(_ *Config, _ *BlockSet, y *Outcome, _ *SearchSpace) {
			*y = CategoricalOutcome(labels[:10]...)
		}},
		{"unsupported method", "method", func(c *Config, _ *BlockSet, _ *Outcome, _ *SearchSpace) {
			c.Method.Method = Method(42)
		}},
		{"continuous outcome for classification", "outcome", func(_ *Config, _ *BlockSet, y *Outcome, _ *SearchSpace) {
			*y = ContinuousOutcome(make([]float64, len(labels))...)
		}},
		{"nil adapter", "adapter", func(c *Config, _ *BlockSet, _ *Outcome, _ *SearchSpace) {
			c.Method.Adapter = nil
		}},
		{"single-block method", "blocks", func(c *Config, _ *BlockSet, _ *Outcome, _ *SearchSpace) {
			c.Method.Method = MethodSPLSDA
		}},
		{"no ncomp", "ncomp", func(_ *Config, _ *BlockSet, _ *Outcome, s *SearchSpace) {
			s.NComp = nil
		}},
		{"zero ncomp", "ncomp", func(_ *Config, _ *BlockSet, _ *Outcome, s *SearchSpace) {
			s.NComp = []int{0, 1}
		}},
		{"missing block candidates", "keepX", func(_ *Config, _ *BlockSet, _ *Outcome, s *SearchSpace) {
			s.KeepX = map[string][]int{"b1": {1}}
		}},
		{"unknown block candidates", "keepX", func(_ *Config, _ *BlockSet, _ *Outcome, s *SearchSpace) {
			s.KeepX = map[string][]int{"b1": {1}, "b3": {1}}
		}},
		{"keepX above features", "keepX", func(_ *Config, _ *BlockSet, _ *Outcome, s *SearchSpace) {
			s.KeepX = map[string][]int{"b1": {1}, "b2": {7}}
		}},
		{"keepX zero", "keepX", func(_ *Config, _ *BlockSet, _ *Outcome, s *SearchSpace) {
			s.KeepX = map[string][]int{"b1": {0}, "b2": {1}}
		}},
		{"unsupported search", "search", func(c *Config, _ *BlockSet, _ *Outcome, _ *SearchSpace) {
			c.Search = SearchType(7)
		}},
		{"random without draws", "nRandom", func(c *Config, _ *BlockSet, _ *Outcome, _ *SearchSpace) {
			c.Search = SearchRandom
			c.NRandom = 0
		}},
		{"one fold", "folds", func(c *Config, _ *BlockSet, _ *Outcome, _ *SearchSpace) {
			c.Folds = 1
		}},
		{"duplicate block", "blocks", func(_ *Config, b *BlockSet, _ *Outcome, _ *SearchSpace) {
			*b = BlockSet{(*b)[0], (*b)[0]}
		}},
		{"single class", "outcome", func(_ *Config, _ *BlockSet, y *Outcome, _ *SearchSpace) {
			same := make([]string, len(labels))
			for i := range same {
				same[i] = "a"
			}

			*y = CategoricalOutcome(same...)
		}},
		{"block order differs", "blockOrder", func(_ *Config, _ *BlockSet, _ *Outcome, s *SearchSpace) {
			s.BlockOrder = []string{"b2", "b1"}
		}},
		{"regression on labels", "outcome", func(c *Config, b *BlockSet, y *Outcome, s *SearchSpace) {
			c.Method = Bind(MethodSPLS, lineAdapter())
			*b = regBlocks
			*y = CategoricalOutcome(make([]string, regOutcome.Len())...)
			*s = SearchSpace{NComp: []int{1}, KeepX: map[string][]int{"x": {1}}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := classConfig(centroidAdapter())
			b := append(BlockSet(nil), blocks...)
			y := outcome
			s := classSpace()

			tc.mutate(&config, &b, &y, &s)

			_, err := Tune(context.Background(), config, b, y, s)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.arg, verr.Arg, verr.Error())
		})
	}
}

// manyBlocks returns 20 blocks of 10 features over 12 rows, an outcome tied to
// the first column of the first block and a space of 10^20 combinations.
func manyBlocks() (BlockSet, Outcome, SearchSpace) {
	const rows, cols = 12, 10

	blocks := make(BlockSet, 20)
	space := SearchSpace{NComp: []int{1}, KeepX: make(map[string][]int, len(blocks))}

	for b := range blocks {
		data := mat.NewDense(rows, cols, nil)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				data.Set(i, j, float64((i*7+j*3+b)%11))
			}
		}

		name := fmt.Sprintf("b%02d", b)
		blocks[b] = Block{Name: name, Data: data}
		space.KeepX[name] = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	}

	y := mat.Col(nil, 0, blocks[0].Data)
	for i := range y {
		y[i] = 2*y[i] + 1
	}

	return blocks, ContinuousOutcome(y...), space
}

func TestTuneRejectsOversizedGrid(t *testing.T) {
	blocks, outcome, space := manyBlocks()
	require.Equal(t, math.MaxInt, space.GridSize())

	config := DefaultConfig()
	config.Method = Bind(MethodBlockSPLS, lineAdapter())
	config.Seed = 5
	config.Logger = quietLogger()

	_, err := Tune(context.Background(), config, blocks, outcome, space)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "search", verr.Arg)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	// Large but not saturated.
	for name := range space.KeepX {
		space.KeepX[name] = []int{1}
	}

	space.KeepX["b00"] = []int{1, 2}
	space.NComp = make([]int, MaxGridSize)

	for i := range space.NComp {
		space.NComp[i] = 1
	}

	_, err = Tune(context.Background(), config, blocks, outcome, space)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "search", verr.Arg)

	// Random search samples the same space without enumerating it.
	_, _, space = manyBlocks()
	config.Search = SearchRandom
	config.NRandom = 3

	result, err := Tune(context.Background(), config, blocks, outcome, space)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Table.Len())
}

func TestTunePenalizesFailingCombinations(t *testing.T) {
	labels := classLabels()
	blocks := classBlocks(labels)

	adapter := centroidAdapter()
	adapter.FitFunc = func(ctx context.Context, b BlockSet, y Outcome, p FitParams) (Model, error) {
		if p.NComp == 2 {
			return nil, errors.New("too many components")
		}

		return fitCentroids(ctx, b, y, p)
	}

	result, err := Tune(context.Background(), classConfig(adapter), blocks, CategoricalOutcome(labels...), classSpace())
	require.NoError(t, err)

	// Every combination yields a row, failing ones with worst-case metrics.
	require.Equal(t, 8, result.Table.Len())

	for _, r := range result.Table.Rows {
		if r.Combination.NComp == 2 {
			assert.Equal(t, 1.0, r.Mean(MetricErrorRate))
			assert.True(t, math.IsInf(r.Mean(MetricQ2), -1))
		} else {
			assert.Less(t, r.Mean(MetricErrorRate), 1.0)
		}
	}

	assert.Equal(t, 1, result.Best.Combination.NComp)
	assert.True(t, HasDiagnostic(result.Diagnostics, FoldFailed))

	for _, d := range result.Diagnostics {
		if d.Code == FoldFailed {
			assert.Equal(t, 2, result.Table.Rows[d.Combination].Combination.NComp)
			assert.GreaterOrEqual(t, d.Fold, 0)
		}
	}
}

func TestTuneEvaluateMustReportErrorRate(t *testing.T) {
	labels := classLabels()

	adapter := centroidAdapter()
	adapter.EvaluateFunc = func(observed, predicted Outcome) (Metrics, error) {
		return Metrics{"accuracy": 0.5}, nil
	}

	result, err := Tune(context.Background(), classConfig(adapter), classBlocks(labels), CategoricalOutcome(labels...), classSpace())
	require.NoError(t, err)

	for _, r := range result.Table.Rows {
		assert.Equal(t, 1.0, r.Mean(MetricErrorRate))
	}
}

func TestTuneEvaluateMustReportContinuousError(t *testing.T) {
	blocks, outcome := regressionData(30)

	adapter := lineAdapter()
	adapter.EvaluateFunc = func(observed, predicted Outcome) (Metrics, error) {
		return Metrics{MetricQ2: 1}, nil
	}

	config := DefaultConfig()
	config.Method = Bind(MethodSPLS, adapter)
	config.Seed = 9
	config.Logger = quietLogger()

	space := SearchSpace{NComp: []int{1, 2}, KeepX: map[string][]int{"x": {2}}}

	result, err := Tune(context.Background(), config, blocks, outcome, space)
	require.NoError(t, err)
	require.Equal(t, 2, result.Table.Len())

	for _, r := range result.Table.Rows {
		assert.True(t, math.IsInf(r.Mean(MetricQ2), -1))
	}

	assert.True(t, HasDiagnostic(result.Diagnostics, FoldFailed))
}

func TestTuneWorkersMatchSequential(t *testing.T) {
	labels := classLabels()
	blocks := classBlocks(labels)
	outcome := CategoricalOutcome(labels...)

	sequential := classConfig(centroidAdapter())
	sequential.Search = SearchRandom
	sequential.NRandom = 6

	parallel := sequential
	parallel.Workers = 4

	a, err := Tune(context.Background(), sequential, blocks, outcome, classSpace())
	require.NoError(t, err)

	b, err := Tune(context.Background(), parallel, blocks, outcome, classSpace())
	require.NoError(t, err)

	// fmt prints NaN consistently where reflect-based equality would not.
	assert.Equal(t, fmt.Sprint(a.Table), fmt.Sprint(b.Table))
	assert.Equal(t, a.Best.Index, b.Best.Index)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestTuneStopsWhenContextEnds(t *testing.T) {
	labels := classLabels()
	blocks := classBlocks(labels)
	outcome := CategoricalOutcome(labels...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter := centroidAdapter()
	adapter.FitFunc = func(ctx context.Context, b BlockSet, y Outcome, p FitParams) (Model, error) {
		cancel()

		return fitCentroids(ctx, b, y, p)
	}

	result, err := Tune(ctx, classConfig(adapter), blocks, outcome, classSpace())
	require.NoError(t, err)

	assert.Equal(t, StatusIncomplete, result.Status)
	assert.Equal(t, 1, result.Table.Len())
	assert.True(t, HasDiagnostic(result.Diagnostics, Incomplete))
	assert.Equal(t, 0, result.Best.Index)
}

func TestTuneCancelledBeforeStart(t *testing.T) {
	labels := classLabels()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Tune(ctx, classConfig(centroidAdapter()), classBlocks(labels), CategoricalOutcome(labels...), classSpace())
	assert.True(t, errors.Is(err, ErrNoResults))
	require.NotNil(t, result)
	assert.Equal(t, StatusIncomplete, result.Status)
	assert.Zero(t, result.Table.Len())
}

func TestTuneRegression(t *testing.T) {
	blocks, outcome := regressionData(40)

	config := DefaultConfig()
	config.Method = Bind(MethodSPLS, lineAdapter())
	config.Seed = 3
	config.Logger = quietLogger()

	space := SearchSpace{NComp: []int{1, 2, 3}, KeepX: map[string][]int{"x": {2, 4}}}

	result, err := Tune(context.Background(), config, blocks, outcome, space)
	require.NoError(t, err)

	// Stratification does not apply to a continuous outcome.
	assert.True(t, HasDiagnostic(result.Diagnostics, StratificationIgnored))
	assert.False(t, result.CV.Stratified)

	// Only column 0 carries signal, which the adapter uses for ncomp = 1.
	assert.Equal(t, 1, result.Best.Combination.NComp)
	assert.Greater(t, result.Best.Mean(MetricQ2), 0.9)
	assert.Contains(t, result.Table.MetricNames, MetricRMSE)
}

func TestTuneBayes(t *testing.T) {
	labels := classLabels()
	blocks := classBlocks(labels)
	outcome := CategoricalOutcome(labels...)

	config := classConfig(centroidAdapter())
	config.Search = SearchBayes
	config.NRandom = 6
	config.Bayes.InitialSamples = 3
	config.Bayes.NumCandidates = 10

	result, err := Tune(context.Background(), config, blocks, outcome, classSpace())
	require.NoError(t, err)
	assert.Equal(t, 6, result.Table.Len())
	assert.Equal(t, SearchBayes, result.SearchType)

	// The budget never exceeds the grid.
	config.NRandom = 50
	config.Bayes.AcquisitionFunc = ExpectedImprovement

	result, err = Tune(context.Background(), config, blocks, outcome, classSpace())
	require.NoError(t, err)
	assert.Equal(t, 8, result.Table.Len())
}

func TestTuneProgressChannel(t *testing.T) {
	labels := classLabels()

	config := classConfig(centroidAdapter())

	progressChan := make(chan ProgressUpdate, 32)
	config.ProgressChan = progressChan

	_, err := Tune(context.Background(), config, classBlocks(labels), CategoricalOutcome(labels...), classSpace())
	require.NoError(t, err)
	close(progressChan)

	var (
		phases    []string
		updates   []ProgressUpdate
		evaluated int
	)

	for update := range progressChan {
		phases = append(phases, update.Phase)
		updates = append(updates, update)
		if update.Phase == PhaseEvaluatingCombination {
			evaluated++
			assert.Equal(t, 8, update.TotalIterations)
		}
	}

	assert.Equal(t, 8, evaluated)
	assert.Equal(t, PhaseValidating, phases[0])
	assert.Equal(t, PhaseDone, phases[len(phases)-1])

	// No best row yet while validating.
	assert.True(t, math.IsNaN(updates[0].CurrentBestScore))
	assert.Nil(t, updates[0].CurrentBestParams)

	last := updates[len(updates)-1]
	assert.False(t, math.IsNaN(last.CurrentBestScore))
	assert.Less(t, last.CurrentBestScore, 0.2)
}
