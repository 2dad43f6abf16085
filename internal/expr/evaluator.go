package expr

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/paveg/kwdata/internal/dataset"
	"github.com/paveg/kwdata/internal/errors"
	"github.com/paveg/kwdata/internal/parallel"
	"github.com/rs/zerolog"
)

// Evaluator resolves deferred cells of a dataset
type Evaluator struct {
	indicator     string
	caseSensitive bool
	logger        zerolog.Logger
	pool          *parallel.WorkerPool
}

// EvaluatorOption configures an Evaluator
type EvaluatorOption func(*Evaluator)

// WithWorkerPool spreads the rows of large datasets over pool. Without a
// pool rows are evaluated one after another.
func WithWorkerPool(pool *parallel.WorkerPool) EvaluatorOption {
	return func(e *Evaluator) { e.pool = pool }
}

// NewEvaluator creates an evaluator for cells starting with indicator.
// Unless caseSensitive, a name in an expression also matches a column that
// differs only in case.
func NewEvaluator(indicator string, caseSensitive bool, logger zerolog.Logger, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		indicator:     indicator,
		caseSensitive: caseSensitive,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Indicator returns the prefix that marks deferred cells
func (e *Evaluator) Indicator() string {
	return e.indicator
}

// IsDeferred reports whether v is a deferred expression
func (e *Evaluator) IsDeferred(v any) bool {
	s, ok := v.(string)
	return ok && e.indicator != "" && strings.HasPrefix(s, e.indicator)
}

// Strip removes the indicator from a deferred expression
func (e *Evaluator) Strip(s string) string {
	return strings.TrimPrefix(s, e.indicator)
}

// Evaluate returns a copy of ds with every deferred cell resolved. Rows
// without deferred cells are copied as they are. Rows are independent, so
// the error reported is the one of the first failing row.
func (e *Evaluator) Evaluate(ds *dataset.Dataset) (*dataset.Dataset, error) {
	resolved, err := parallel.ProcessIndexed(context.Background(), e.pool, ds.Records(),
		func(_ int, row dataset.Row) (dataset.Row, error) {
			if !e.hasDeferred(row) {
				return row, nil
			}
			return e.EvaluateRow(row)
		})
	if err != nil {
		return nil, err
	}

	out := ds.Clone()
	columns := out.Columns()
	for i, row := range resolved {
		for _, col := range columns {
			out.Set(i, col, row[col])
		}
	}
	return out, nil
}

// EvaluateEach evaluates src once against every row of ds and returns the
// results by row position.
func (e *Evaluator) EvaluateEach(ds *dataset.Dataset, src string) ([]any, error) {
	return parallel.ProcessIndexed(context.Background(), e.pool, ds.Records(),
		func(_ int, row dataset.Row) (any, error) {
			return e.EvaluateIn(row, src)
		})
}

func (e *Evaluator) hasDeferred(row dataset.Row) bool {
	for _, v := range row {
		if e.IsDeferred(v) {
			return true
		}
	}
	return false
}

// EvaluateRow returns a copy of row with every deferred cell resolved
func (e *Evaluator) EvaluateRow(row dataset.Row) (dataset.Row, error) {
	scope := e.newScope(row)
	out := row.Copy()

	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, col := range keys {
		if !e.IsDeferred(row[col]) {
			continue
		}
		v, err := scope.resolve(col)
		if err != nil {
			return nil, err
		}
		out[col] = v
	}
	return out, nil
}

// EvaluateIn evaluates a single expression against row. The indicator is
// optional. Deferred cells the expression refers to are resolved first.
func (e *Evaluator) EvaluateIn(row dataset.Row, src string) (any, error) {
	return e.newScope(row).eval("", e.Strip(src))
}

func (e *Evaluator) newScope(row dataset.Row) *rowScope {
	return &rowScope{
		ev:       e,
		row:      row,
		resolved: map[string]any{},
		visiting: map[string]bool{},
	}
}

// rowScope holds the bindings resolved for one row. It is never shared
// between rows.
type rowScope struct {
	ev       *Evaluator
	row      dataset.Row
	resolved map[string]any
	visiting map[string]bool
	chain    []string
}

func (s *rowScope) column(name string) (string, bool) {
	if _, ok := s.row[name]; ok {
		return name, true
	}
	if s.ev.caseSensitive {
		return "", false
	}
	for col := range s.row {
		if strings.EqualFold(col, name) {
			return col, true
		}
	}
	return "", false
}

func (s *rowScope) resolve(col string) (any, error) {
	if v, ok := s.resolved[col]; ok {
		return v, nil
	}

	raw := s.row[col]
	if !s.ev.IsDeferred(raw) {
		s.resolved[col] = raw
		return raw, nil
	}

	if s.visiting[col] {
		start := slices.Index(s.chain, col)
		cycle := append(slices.Clone(s.chain[start:]), col)
		return nil, errors.NewCircularDependencyError("Evaluate", cycle)
	}

	s.visiting[col] = true
	s.chain = append(s.chain, col)
	defer func() {
		delete(s.visiting, col)
		s.chain = s.chain[:len(s.chain)-1]
	}()

	v, err := s.eval(col, s.ev.Strip(raw.(string)))
	if err != nil {
		return nil, err
	}
	s.resolved[col] = v
	return v, nil
}

func (s *rowScope) eval(col, src string) (any, error) {
	compiled, err := Compile(src)
	if err != nil {
		return nil, errors.NewEvaluationError("Evaluate", col, strings.TrimSpace(src), err)
	}

	vars := make(map[string]any, len(compiled.deps))
	for _, dep := range compiled.deps {
		name, ok := s.column(dep)
		if !ok {
			if IsBuiltin(dep) {
				continue
			}
			return nil, errors.NewUnresolvableReferenceError("Evaluate", col, dep)
		}
		v, err := s.resolve(name)
		if err != nil {
			return nil, err
		}
		vars[dep] = v
	}

	result, err := compiled.Eval(vars)
	if err != nil {
		return nil, errors.NewEvaluationError("Evaluate", col, compiled.src, err)
	}
	if s.ev.IsDeferred(result) {
		return nil, errors.NewEvaluationError("Evaluate", col, compiled.src,
			fmt.Errorf("result %q starts with the deferred marker %q", result, s.ev.indicator))
	}

	s.ev.logger.Debug().Str("column", col).Str("expression", compiled.src).Interface("result", result).Msg("resolved deferred cell")
	return result, nil
}
