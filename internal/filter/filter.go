// Package filter reduces a dataset to the rows a row selector asks for.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paveg/kwdata/internal/common"
	"github.com/paveg/kwdata/internal/dataset"
	"github.com/paveg/kwdata/internal/errors"
	"github.com/paveg/kwdata/internal/expr"
)

// Selector tokens
const (
	All  = "ALL"
	None = "NONE"
)

// Options steer how selectors are interpreted
type Options struct {
	// IndexBase is the number of the first row in an index list
	IndexBase int
	// NoneSelectsNothing makes NONE select zero rows instead of all rows
	NoneSelectsNothing bool
}

// ReduceRows returns the rows of ds picked by selector.
//
// A nil selector, ALL or NONE keeps every row (NONE keeps none with
// NoneSelectsNothing). A deferred expression keeps the rows for which it
// yields true. Anything else is a comma-separated list of row labels, and
// rows are returned in the order listed.
func ReduceRows(ds *dataset.Dataset, selector any, ev *expr.Evaluator, opts Options) (*dataset.Dataset, error) {
	if selector == nil {
		return ds, nil
	}

	if ev.IsDeferred(selector) {
		return byExpression(ds, selector.(string), ev)
	}

	text, ok := selector.(string)
	if !ok {
		if common.IsIntegerType(selector) {
			text = common.FormatValue(selector)
		} else {
			return nil, errors.NewParseError("ReduceRows",
				fmt.Sprintf("the row selector of type %s could not be interpreted as row selection", common.TypeName(selector)), nil)
		}
	}

	switch {
	case strings.EqualFold(strings.TrimSpace(text), All):
		return ds, nil
	case strings.EqualFold(strings.TrimSpace(text), None):
		if opts.NoneSelectsNothing {
			return ds.Filter(make([]bool, ds.Len()))
		}
		return ds, nil
	}

	labels, err := parseLabels(text, opts.IndexBase)
	if err != nil {
		return nil, err
	}

	present := make(map[int]bool, ds.Len())
	for _, label := range ds.Index() {
		present[label] = true
	}
	var missing []int
	for _, label := range labels {
		if !present[label] {
			missing = append(missing, label+opts.IndexBase)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewRangeError("ReduceRows", missing)
	}
	return ds.Take(labels)
}

func parseLabels(text string, base int) ([]int, error) {
	tokens := strings.Split(text, ",")
	labels := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return nil, errors.NewParseError("ReduceRows",
				"the passed row value could not be interpreted as row selection", err).
				WithHint(fmt.Sprintf("use %s, %s, a deferred expression or a comma-separated list of row numbers", All, None))
		}
		labels = append(labels, n-base)
	}
	return labels, nil
}

func byExpression(ds *dataset.Dataset, src string, ev *expr.Evaluator) (*dataset.Dataset, error) {
	results, err := ev.EvaluateEach(ds, src)
	if err != nil {
		return nil, err
	}

	mask := make([]bool, len(results))
	for i, result := range results {
		keep, ok := result.(bool)
		if !ok {
			return nil, errors.NewTypeError("ReduceRows", "",
				fmt.Sprintf("the row selection %q should evaluate to inclusion (True) or exclusion (False), found %s for row %d",
					ev.Strip(src), common.TypeName(result), ds.Index()[i]))
		}
		mask[i] = keep
	}
	return ds.Filter(mask)
}
