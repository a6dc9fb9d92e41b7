package tuner

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/slices"
)

// BuildFolds partitions the outcome's sample indices into k folds.
//
// Parameters:
// - outcome: The outcome vector; only its length and, in stratified mode, its
// labels are used
// - k: Requested number of folds (>= 2)
// - stratified: Deal each class round-robin over the folds
// - seed: Seed of the shuffles
//
// Returns:
// - FoldAssignment: Sorted index sets, one per non-empty fold
// - []Diagnostic: Non-fatal warnings (clamping, dropped folds, ignored
// stratification)
// - error: A *ValidationError when k < 2 or fewer than 2 samples exist
//
// Usage example:
//
//	folds, diags, err := BuildFolds(CategoricalOutcome(labels...), 5, true, 42)
//
// How it works:
// 1. Clamps k to the sample count
// 2. Stratified: per class (sorted labels), shuffles the class members and
// deals them over the folds. The dealing position carries over between
// classes, so fold sizes differ by at most one
// 3. Plain: shuffles all indices once and cuts them into k contiguous chunks;
// the first N mod k chunks take one extra sample
// 4. Sorts every fold and drops empty ones
//
// Important notes:
// - Deterministic: the generator is created from seed on every call
// - A class with fewer members than folds cannot reach every fold.
func BuildFolds(outcome Outcome, k int, stratified bool, seed int64) (FoldAssignment, []Diagnostic, error) {
	n := outcome.Len()

	if k < 2 {
		return FoldAssignment{}, nil, invalid("folds", "need at least 2 folds, got %d", k)
	}

	if n < 2 {
		return FoldAssignment{}, nil, invalid("outcome", "need at least 2 samples for cross-validation, got %d", n)
	}

	var diags []Diagnostic

	requested := k
	if k > n {
		diags = append(diags, newDiagnostic(MoreFoldsThanSamples,
			"requested %d folds for %d samples, using %d folds", k, n, n))
		k = n
	}

	if stratified && outcome.Kind() != Categorical {
		diags = append(diags, newDiagnostic(StratificationIgnored,
			"stratified folds need a categorical outcome, using plain folds"))
		stratified = false
	}

	rng := randomSource(seed, 0)

	var folds [][]int
	if stratified {
		folds = stratifiedFolds(outcome.Labels, k, rng.Shuffle)
	} else {
		folds = contiguousFolds(rng.Perm(n), k)
	}

	kept := folds[:0]
	for i, f := range folds {
		if len(f) == 0 {
			diags = append(diags, newDiagnostic(EmptyFoldDropped, "fold %d received no samples", i))

			continue
		}

		slices.Sort(f)
		kept = append(kept, f)
	}

	return FoldAssignment{
		Folds:      kept,
		Requested:  requested,
		Stratified: stratified,
		Seed:       seed,
	}, diags, nil
}

// contiguousFolds cuts a permutation into k near-equal chunks.
func contiguousFolds(perm []int, k int) [][]int {
	n := len(perm)
	size := n / k
	remainder := n % k

	folds := make([][]int, k)

	idx := 0
	for i := 0; i < k; i++ {
		m := size
		if i < remainder {
			m++
		}

		folds[i] = make([]int, m)
		copy(folds[i], perm[idx:idx+m])
		idx += m
	}

	return folds
}

// stratifiedFolds deals every class's shuffled members round-robin over k
// folds.
func stratifiedFolds(labels []string, k int, shuffle func(n int, swap func(i, j int))) [][]int {
	byClass := make(map[string][]int)
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}

	classes := make([]string, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}

	slices.Sort(classes)

	folds := make([][]int, k)

	cursor := 0
	for _, c := range classes {
		members := append([]int(nil), byClass[c]...)
		shuffle(len(members), func(i, j int) {
			members[i], members[j] = members[j], members[i]
		})

		for _, idx := range members {
			folds[cursor] = append(folds[cursor], idx)
			cursor = (cursor + 1) % k
		}
	}

	return folds
}

// Digest fingerprints the fold assignment with xxhash. Equal assignments have
// equal digests.
func (fa FoldAssignment) Digest() uint64 {
	h := xxhash.New()

	var buf [8]byte
	for _, f := range fa.Folds {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(f)))
		_, _ = h.Write(buf[:])

		for _, idx := range f {
			binary.LittleEndian.PutUint64(buf[:], uint64(idx))
			_, _ = h.Write(buf[:])
		}
	}

	return h.Sum64()
}

// Split returns the test indices of fold i and the complementary train indices,
// both ascending.
func (fa FoldAssignment) Split(i int) (train, test []int) {
	test = fa.Folds[i]

	inTest := make(map[int]struct{}, len(test))
	for _, idx := range test {
		inTest[idx] = struct{}{}
	}

	total := 0
	for _, f := range fa.Folds {
		total += len(f)
	}

	train = make([]int, 0, total-len(test))
	for idx := 0; idx < total; idx++ {
		if _, ok := inTest[idx]; !ok {
			train = append(train, idx)
		}
	}

	return train, test
}
