package tuner

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"golang.org/x/exp/slices"
)

// SearchType selects how the combination space is explored.
type SearchType int

const (
	// SearchGrid evaluates the full Cartesian product.
	SearchGrid SearchType = iota + 1

	// SearchRandom evaluates independent random draws from the space.
	SearchRandom

	// SearchBayes evaluates combinations suggested by a Gaussian-process
	// model of the primary metric.
	SearchBayes
)

var searchNames = map[SearchType]string{
	SearchGrid:   "grid",
	SearchRandom: "random",
	SearchBayes:  "bayes",
}

// ParseSearchType resolves "grid", "random" or "bayes".
func ParseSearchType(name string) (SearchType, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for s, v := range searchNames {
		if v == n {
			return s, nil
		}
	}

	return 0, invalid("search", "unsupported search type %q", name)
}

// String implements fmt.Stringer.
func (s SearchType) String() string {
	if v, ok := searchNames[s]; ok {
		return v
	}

	return fmt.Sprintf("SearchType(%d)", int(s))
}

// Valid reports whether s is a supported search type.
func (s SearchType) Valid() bool {
	_, ok := searchNames[s]

	return ok
}

// SearchSpace holds the candidate values of every tuned parameter.
//
// Usage example:
//
//	space := SearchSpace{
//	    NComp: []int{1, 2, 3},
//	    KeepX: map[string][]int{
//	        "genes":    {10, 25, 50},
//	        "proteins": {5, 10},
//	    },
//	}
type SearchSpace struct {
	// NComp lists candidate component counts.
	NComp []int

	// KeepX lists candidate keep-counts per block name.
	KeepX map[string][]int

	// BlockOrder fixes the block order of combinations and result columns.
	// If empty, block names are sorted. Tune requires it to be empty or equal
	// to the block-set order, and fills it with the block-set order.
	BlockOrder []string
}

// Blocks returns the block order used for combinations.
func (s SearchSpace) Blocks() []string {
	if len(s.BlockOrder) > 0 {
		return s.BlockOrder
	}

	names := make([]string, 0, len(s.KeepX))
	for name := range s.KeepX {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// MaxGridSize caps the number of combinations a grid search may enumerate.
const MaxGridSize = 1 << 20

// GridSize returns |NComp| × Π|KeepX[b]|, saturating at math.MaxInt.
func (s SearchSpace) GridSize() int {
	size := len(s.NComp)
	for _, name := range s.Blocks() {
		n := len(s.KeepX[name])
		if n == 0 || size == 0 {
			return 0
		}

		if size > math.MaxInt/n {
			return math.MaxInt
		}

		size *= n
	}

	return size
}

// Generate produces the combinations to evaluate.
//
// Parameters:
// - space: Candidate values
// - search: SearchGrid, SearchRandom or SearchBayes
// - nRandom: Number of random draws (random and bayes modes)
// - rng: Random source for random draws; unused in grid mode
//
// Returns:
// - []Combination: In grid mode the full product with ncomp varying fastest,
// then blocks in block order. In random mode min(nRandom, GridSize()) draws,
// sampled with replacement and not de-duplicated. In bayes mode the same draws
// as random mode; they seed the model
// - error: A *ValidationError for an unsupported search type, nRandom < 1, or
// a grid larger than MaxGridSize in grid mode
//
// Usage example:
//
//	combos, err := Generate(space, SearchRandom, 20, rand.New(rand.NewSource(42)))
func Generate(space SearchSpace, search SearchType, nRandom int, rng *rand.Rand) ([]Combination, error) {
	blocks := space.Blocks()
	total := space.GridSize()

	switch search {
	case SearchGrid:
		if total > MaxGridSize {
			return nil, invalid("search", "grid has %s combinations, grid search allows at most %d", gridSizeString(total), MaxGridSize)
		}

		return gridCombinations(space, blocks, total), nil
	case SearchRandom, SearchBayes:
		if nRandom < 1 {
			return nil, invalid("nRandom", "need at least 1 draw, got %d", nRandom)
		}

		n := nRandom
		if n > total {
			n = total
		}

		combos := make([]Combination, n)
		for i := range combos {
			combos[i] = randomCombination(space, blocks, rng)
		}

		return combos, nil
	default:
		return nil, invalid("search", "unsupported search type %v", search)
	}
}

func gridSizeString(size int) string {
	if size == math.MaxInt {
		return fmt.Sprintf("more than %d", math.MaxInt)
	}

	return fmt.Sprint(size)
}

// gridCombinations enumerates the Cartesian product as a mixed-radix counter.
func gridCombinations(space SearchSpace, blocks []string, total int) []Combination {
	combos := make([]Combination, 0, total)

	radix := make([]int, len(blocks)+1)
	radix[0] = len(space.NComp)

	for i, name := range blocks {
		radix[i+1] = len(space.KeepX[name])
	}

	digits := make([]int, len(radix))
	for n := 0; n < total; n++ {
		c := Combination{
			NComp: space.NComp[digits[0]],
			KeepX: make([]BlockKeep, len(blocks)),
		}

		for i, name := range blocks {
			c.KeepX[i] = BlockKeep{Block: name, Keep: space.KeepX[name][digits[i+1]]}
		}

		combos = append(combos, c)

		for d := range digits {
			digits[d]++
			if digits[d] < radix[d] {
				break
			}

			digits[d] = 0
		}
	}

	return combos
}

// randomCombination draws one value per parameter independently.
func randomCombination(space SearchSpace, blocks []string, rng *rand.Rand) Combination {
	c := Combination{
		NComp: space.NComp[rng.Intn(len(space.NComp))],
		KeepX: make([]BlockKeep, len(blocks)),
	}

	for i, name := range blocks {
		candidates := space.KeepX[name]
		c.KeepX[i] = BlockKeep{Block: name, Keep: candidates[rng.Intn(len(candidates))]}
	}

	return c
}
