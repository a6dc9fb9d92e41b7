package tuner

import (
	"math"

	"golang.org/x/exp/slices"
)

// validate checks every input of Tune. It returns the first violation as a
// *ValidationError.
func validate(config Config, blocks BlockSet, outcome Outcome, space SearchSpace) error {
	if err := validateBlocks(blocks); err != nil {
		return err
	}

	if err := validateOutcome(config.Method.Method, blocks, outcome); err != nil {
		return err
	}

	if err := validateMethod(config.Method, blocks, outcome); err != nil {
		return err
	}

	if err := validateSpace(space, blocks); err != nil {
		return err
	}

	switch {
	case !config.Search.Valid():
		return invalid("search", "unsupported search type %v", config.Search)
	case config.Search == SearchGrid && space.GridSize() > MaxGridSize:
		return invalid("search", "grid has %s combinations, grid search allows at most %d; use random or bayes search",
			gridSizeString(space.GridSize()), MaxGridSize)
	case config.Search != SearchGrid && config.NRandom < 1:
		return invalid("nRandom", "%v search needs at least 1 draw, got %d", config.Search, config.NRandom)
	case config.Folds < 2:
		return invalid("folds", "need at least 2 folds, got %d", config.Folds)
	case config.Workers < 0:
		return invalid("workers", "must not be negative, got %d", config.Workers)
	}

	if config.Search == SearchBayes {
		if config.Bayes.AcquisitionFunc == nil {
			return invalid("bayes", "acquisition function is required")
		}

		if config.Bayes.NumCandidates < 1 {
			return invalid("bayes", "need at least 1 candidate per iteration, got %d", config.Bayes.NumCandidates)
		}
	}

	return nil
}

func validateBlocks(blocks BlockSet) error {
	if len(blocks) == 0 {
		return invalid("blocks", "need at least one block")
	}

	names := make(map[string]struct{}, len(blocks))
	rows := -1

	for i, b := range blocks {
		if b.Name == "" {
			return invalid("blocks", "block %d has no name", i)
		}

		if _, dup := names[b.Name]; dup {
			return invalid("blocks", "duplicate block name %q", b.Name)
		}

		names[b.Name] = struct{}{}

		if b.Data == nil {
			return invalid("blocks", "block %q has no data", b.Name)
		}

		r, c := b.Data.Dims()
		if r == 0 || c == 0 {
			return invalid("blocks", "block %q is empty (%d×%d)", b.Name, r, c)
		}

		if rows >= 0 && r != rows {
			return invalid("blocks", "block %q has %d rows, block %q has %d", b.Name, r, blocks[0].Name, rows)
		}

		rows = r
	}

	return nil
}

func validateOutcome(method Method, blocks BlockSet, outcome Outcome) error {
	if outcome.Labels != nil && outcome.Values != nil {
		return invalid("outcome", "set either labels or values, not both")
	}

	if outcome.Len() != blocks.Rows() {
		return invalid("outcome", "has %d samples, blocks have %d rows", outcome.Len(), blocks.Rows())
	}

	if outcome.Kind() == Continuous {
		for _, v := range outcome.Values {
			if math.IsInf(v, 0) {
				return invalid("outcome", "values must be finite or NaN")
			}
		}
	}

	if method.Valid() && method.Task() == Classification && outcome.Kind() == Categorical {
		classes := make(map[string]struct{})
		for _, l := range outcome.Labels {
			classes[l] = struct{}{}
		}

		if len(classes) < 2 {
			return invalid("outcome", "classification needs at least 2 classes, got %d", len(classes))
		}
	}

	return nil
}

func validateMethod(bound BoundMethod, blocks BlockSet, outcome Outcome) error {
	m := bound.Method

	switch {
	case !m.Valid():
		return invalid("method", "unsupported method %v", m)
	case bound.Adapter == nil:
		return invalid("adapter", "method %v has no adapter", m)
	case outcome.Kind() != m.OutcomeKind():
		return invalid("outcome", "method %v needs a %v outcome, got %v", m, m.OutcomeKind(), outcome.Kind())
	case !m.MultiBlock() && len(blocks) != 1:
		return invalid("blocks", "method %v takes a single block, got %d", m, len(blocks))
	}

	return nil
}

func validateSpace(space SearchSpace, blocks BlockSet) error {
	if len(space.NComp) == 0 {
		return invalid("ncomp", "need at least one component count")
	}

	for _, n := range space.NComp {
		if n < 1 {
			return invalid("ncomp", "component counts must be positive, got %d", n)
		}
	}

	for name := range space.KeepX {
		if _, ok := blocks.Block(name); !ok {
			return invalid("keepX", "candidates for unknown block %q", name)
		}
	}

	if len(space.KeepX) != len(blocks) {
		return invalid("keepX", "has candidates for %d blocks, block set has %d", len(space.KeepX), len(blocks))
	}

	for _, b := range blocks {
		candidates, ok := space.KeepX[b.Name]
		if !ok {
			return invalid("keepX", "no candidates for block %q", b.Name)
		}

		if len(candidates) == 0 {
			return invalid("keepX", "block %q has an empty candidate list", b.Name)
		}

		_, features := b.Data.Dims()
		for _, k := range candidates {
			if k < 1 || k > features {
				return invalid("keepX", "block %q: keep-count %d outside [1, %d]", b.Name, k, features)
			}
		}
	}

	if len(space.BlockOrder) > 0 && !slices.Equal(space.BlockOrder, blocks.Names()) {
		return invalid("blockOrder", "must be empty or match the block set order %v, got %v", blocks.Names(), space.BlockOrder)
	}

	return nil
}
