package cleaning

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cyderes/olist-finalizer/internal/models"
	"github.com/cyderes/olist-finalizer/internal/table"
)

// ErrNotNumeric is returned when a column that must be numeric holds text.
var ErrNotNumeric = errors.New("value is not numeric")

// FillReport describes the null fill applied to one column.
type FillReport struct {
	Column string
	Median float64
	Filled int
}

// FillProductMedians replaces nulls in each product measure column with the
// median of that column's observed values.
func FillProductMedians(products *table.Table) ([]FillReport, error) {
	if err := requireColumns(products, models.ProductMeasureColumns...); err != nil {
		return nil, err
	}
	reports := make([]FillReport, 0, len(models.ProductMeasureColumns))
	for _, col := range models.ProductMeasureColumns {
		r, err := FillMedian(products, col)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// FillMedian fills nulls in a single column with the column median. An
// all-null column yields a NaN median, which is written as an empty cell.
//
// A column of integers with no nulls is left as is. Any other column is a
// float column and every cell is rewritten in float form, so 40 becomes 40.0.
func FillMedian(t *table.Table, column string) (FillReport, error) {
	cells, err := t.Column(column)
	if err != nil {
		return FillReport{}, err
	}

	observed := make([]float64, 0, len(cells))
	for i, c := range cells {
		f, ok := table.ParseFloat(c)
		if !ok {
			return FillReport{}, fmt.Errorf("%s row %d: %q: %w", column, i+1, c, ErrNotNumeric)
		}
		if !math.IsNaN(f) {
			observed = append(observed, f)
		}
	}

	report := FillReport{Column: column, Median: Median(observed)}
	if isIntegerColumn(cells) {
		return report, nil
	}

	fill := table.FormatFloat(report.Median)
	for i, c := range cells {
		if table.IsNull(c) {
			cells[i] = fill
			report.Filled++
			continue
		}
		f, _ := table.ParseFloat(c)
		cells[i] = table.FormatFloat(f)
	}
	return report, t.SetColumn(column, cells)
}

func isIntegerColumn(cells []string) bool {
	for _, c := range cells {
		if _, err := strconv.ParseInt(strings.TrimSpace(c), 10, 64); err != nil {
			return false
		}
	}
	return true
}

// Median returns the median of xs, or NaN when xs is empty. xs is not modified.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func requireColumns(t *table.Table, columns ...string) error {
	for _, col := range columns {
		if _, err := t.ColumnIndex(col); err != nil {
			return err
		}
	}
	return nil
}
