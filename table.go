package tuner

import (
	"math"
	"strings"

	"golang.org/x/exp/slices"
)

// Column names of the result table.
const (
	ColumnNComp = "ncomp"

	keepXPrefix = "keepX_"
	meanSuffix  = "_mean"
	sdSuffix    = "_sd"
)

func keepXColumn(block string) string {
	return keepXPrefix + block
}

// ResultTable holds one row per evaluated combination with a column set that
// is the same for every row.
type ResultTable struct {
	// Blocks is the block order of the keepX columns.
	Blocks []string

	// MetricNames is the sorted union of metric names over all rows.
	MetricNames []string

	// Rows are in combination order.
	Rows []ResultRecord
}

// NewResultTable builds a table from records. Metric names are collected
// across all rows so that the column set is stable.
func NewResultTable(blocks []string, rows []ResultRecord) ResultTable {
	seen := make(map[string]struct{})
	for _, r := range rows {
		for name := range r.Metrics {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	slices.Sort(names)

	return ResultTable{Blocks: blocks, MetricNames: names, Rows: rows}
}

// Len returns the number of rows.
func (t ResultTable) Len() int {
	return len(t.Rows)
}

// Columns returns the column names: "ncomp", one "keepX_<block>" per block,
// then "<metric>_mean" and "<metric>_sd" per metric.
func (t ResultTable) Columns() []string {
	cols := make([]string, 0, 1+len(t.Blocks)+2*len(t.MetricNames))
	cols = append(cols, ColumnNComp)

	for _, b := range t.Blocks {
		cols = append(cols, keepXColumn(b))
	}

	for _, m := range t.MetricNames {
		cols = append(cols, m+meanSuffix, m+sdSuffix)
	}

	return cols
}

// Value returns a cell. Unknown columns and missing metrics read NaN with
// ok == false; an unavailable SD reads NaN with ok == true.
func (t ResultTable) Value(row int, column string) (v float64, ok bool) {
	if row < 0 || row >= len(t.Rows) {
		return math.NaN(), false
	}

	r := t.Rows[row]

	if column == ColumnNComp {
		return float64(r.Combination.NComp), true
	}

	if block, found := strings.CutPrefix(column, keepXPrefix); found {
		for _, k := range r.Combination.KeepX {
			if k.Block == block {
				return float64(k.Keep), true
			}
		}

		return math.NaN(), false
	}

	for _, suffix := range []string{meanSuffix, sdSuffix} {
		metric, found := strings.CutSuffix(column, suffix)
		if !found {
			continue
		}

		a, exists := r.Metrics[metric]
		if !exists {
			return math.NaN(), false
		}

		if suffix == meanSuffix {
			return a.Mean, true
		}

		return a.SD, true
	}

	return math.NaN(), false
}

// SelectBest picks the best row of the table for the method.
//
// Classification methods take the row with the smallest error_rate mean,
// regression methods the row with the largest q2_score mean. Ties keep the
// earliest row. Rows whose score is NaN only win when every row is NaN.
//
// Returns:
// - ResultRecord: The selected row
// - error: ErrNoResults for an empty table
func SelectBest(table ResultTable, method Method) (ResultRecord, error) {
	if len(table.Rows) == 0 {
		return ResultRecord{}, ErrNoResults
	}

	metric := method.PrimaryMetric()
	lowerIsBetter := method.Task() == Classification

	best := 0
	bestScore := table.Rows[0].Mean(metric)

	for i, r := range table.Rows[1:] {
		score := r.Mean(metric)
		if better(score, bestScore, lowerIsBetter) {
			best = i + 1
			bestScore = score
		}
	}

	return table.Rows[best], nil
}

// better reports whether a strictly beats b.
func better(a, b float64, lowerIsBetter bool) bool {
	if math.IsNaN(a) {
		return false
	}

	if math.IsNaN(b) {
		return true
	}

	if lowerIsBetter {
		return a < b
	}

	return a > b
}
