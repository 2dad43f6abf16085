// Package loader assembles the data a keyword runs on. It binds positional
// arguments to the keyword's mandatory parameters, applies setting
// overrides, loads inline or file data, broadcasts scalar arguments as
// columns, selects rows, parses date-time literals and resolves deferred
// expressions.
package loader

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
	"github.com/paveg/kwdata/internal/common"
	"github.com/paveg/kwdata/internal/dataset"
	"github.com/paveg/kwdata/internal/datetime"
	"github.com/paveg/kwdata/internal/errors"
	"github.com/paveg/kwdata/internal/expr"
	"github.com/paveg/kwdata/internal/filter"
	"github.com/paveg/kwdata/internal/io"
	"github.com/paveg/kwdata/internal/parallel"
	"github.com/paveg/kwdata/internal/settings"
	"github.com/paveg/kwdata/internal/validation"
	"github.com/rs/zerolog"
)

// Reserved argument names
const (
	KeyData     = "DATA"
	KeyDataFile = "DATA_FILE"
	KeyRows     = "ROWS"
)

// Signatures provides the keyword signatures the loader binds against
type Signatures interface {
	GetMandatoryFields(name string) ([]string, error)
	GetOptionalFields(name string) (map[string]any, error)
	GetAllKeywords() []string
}

// Loader resolves keyword data
type Loader struct {
	signatures Signatures
	store      *settings.Store
	logger     zerolog.Logger
	parserOpts []datetime.Option
	pool       *parallel.WorkerPool
}

// Option configures a Loader
type Option func(*Loader)

// WithDateOptions passes options to the date-time parser of every call
func WithDateOptions(opts ...datetime.Option) Option {
	return func(l *Loader) { l.parserOpts = append(l.parserOpts, opts...) }
}

// WithWorkerPool sets the pool large datasets are evaluated on
func WithWorkerPool(pool *parallel.WorkerPool) Option {
	return func(l *Loader) { l.pool = pool }
}

// New creates a loader. Rows are evaluated on one worker per CPU unless
// another pool is given.
func New(signatures Signatures, store *settings.Store, logger zerolog.Logger, opts ...Option) *Loader {
	l := &Loader{
		signatures: signatures,
		store:      store,
		logger:     logger,
		pool:       parallel.NewWorkerPool(0),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GetData resolves the data for one call of keyword name. It returns nil
// without error when the call carries no data at all.
func (l *Loader) GetData(name string, args []any, kwargs map[string]any) (*dataset.Dataset, error) {
	log := l.logger.With().Str("call_id", uuid.NewString()).Str("keyword", name).Logger()
	s := l.store.Get()

	named, err := normalizeKeys(kwargs, s, name)
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		if err := l.bindPositional(name, args, named, s); err != nil {
			return nil, err
		}
	}

	if err := l.applyOverrides(named, s, log); err != nil {
		return nil, err
	}
	s = l.store.Get()

	selector, hasSelector := take(named, s.NormalizeName(KeyRows))
	rawData, _ := take(named, s.NormalizeName(KeyData))
	rawFile, _ := take(named, s.NormalizeName(KeyDataFile))

	ds, err := l.source(rawData, rawFile, s, log)
	if err != nil {
		return nil, err
	}

	ev := expr.NewEvaluator(s.EvalIndicator, s.CaseSensitive, log, expr.WithWorkerPool(l.pool))

	switch {
	case ds != nil:
		for _, key := range slices.Sorted(maps.Keys(named)) {
			ds.Assign(key, named[key])
		}
		if hasSelector {
			log.Debug().Interface("rows", selector).Msg("selecting rows")
		}
		ds, err = filter.ReduceRows(ds, selector, ev, filter.Options{
			IndexBase:          s.RowIndexBase,
			NoneSelectsNothing: s.NoneSelectsNoRows,
		})
		if err != nil {
			return nil, withKeyword(err, name)
		}
	case len(named) > 0:
		ds = dataset.FromArgs(named)
	default:
		log.Debug().Msg("call carries no data")
		return nil, nil
	}

	parser, err := datetime.NewParser(s.DateTimeOrder, s.TimeZone,
		append([]datetime.Option{datetime.WithLogger(log)}, l.parserOpts...)...)
	if err != nil {
		return nil, err
	}
	ds = ds.MapValues(func(_ string, v any) any {
		return parser.ParseOrReturn(v, s.EvalIndicator)
	})

	ds, err = ev.Evaluate(ds)
	if err != nil {
		return nil, withKeyword(err, name)
	}

	log.Debug().Int("rows", ds.Len()).Strs("columns", ds.Columns()).Msg("resolved keyword data")
	return ds, nil
}

func normalizeKeys(kwargs map[string]any, s settings.Settings, keyword string) (map[string]any, error) {
	named := make(map[string]any, len(kwargs))
	origin := make(map[string]string, len(kwargs))
	for _, key := range slices.Sorted(maps.Keys(kwargs)) {
		norm := s.NormalizeName(key)
		if prev, ok := origin[norm]; ok {
			return nil, errors.NewDuplicateArgumentError("GetData", keyword, norm).
				WithHint(fmt.Sprintf("arguments %q and %q resolve to the same name", prev, key))
		}
		origin[norm] = key
		named[norm] = kwargs[key]
	}
	return named, nil
}

func (l *Loader) bindPositional(name string, args []any, named map[string]any, s settings.Settings) error {
	mandatory, err := l.signatures.GetMandatoryFields(name)
	if err != nil {
		if errors.KindOf(err) == errors.KindNotFound {
			return withHint(err, fmt.Sprintf("registered keywords: %s", strings.Join(l.signatures.GetAllKeywords(), ", ")))
		}
		return err
	}

	var unbound []string
	for _, field := range mandatory {
		if _, given := named[s.NormalizeName(field)]; !given {
			unbound = append(unbound, s.NormalizeName(field))
		}
	}
	if len(args) > len(unbound) {
		return errors.NewArgumentCountError("GetData", name, len(args), len(unbound))
	}
	for i, arg := range args {
		named[unbound[i]] = arg
	}
	return nil
}

func (l *Loader) applyOverrides(named map[string]any, s settings.Settings, log zerolog.Logger) error {
	if s.SettingPrefix == "" {
		return nil
	}
	overrides := map[string]any{}
	for key, value := range named {
		if strings.HasPrefix(key, s.SettingPrefix) {
			overrides[strings.TrimPrefix(key, s.SettingPrefix)] = value
			delete(named, key)
		}
	}
	if len(overrides) == 0 {
		return nil
	}
	if err := l.store.Update(overrides); err != nil {
		return err
	}
	for _, key := range slices.Sorted(maps.Keys(overrides)) {
		log.Info().Str("setting", key).Interface("value", overrides[key]).Msg("applied setting override")
	}
	return nil
}

// source picks the dataset the call starts from. File data replaces inline
// data when both are given.
func (l *Loader) source(rawData, rawFile any, s settings.Settings, log zerolog.Logger) (*dataset.Dataset, error) {
	var ds *dataset.Dataset
	var err error

	if rawData != nil {
		ds, err = toDataset(rawData)
		if err != nil {
			return nil, err
		}
		if ds != nil {
			log.Debug().Int("rows", ds.Len()).Msg("using inline data")
		}
	}

	if rawFile != nil {
		path, ok := rawFile.(string)
		if !ok {
			return nil, errors.NewTypeError("GetData", KeyDataFile,
				fmt.Sprintf("expected a file path, found %s", common.TypeName(rawFile)))
		}
		if ds != nil {
			log.Debug().Str("file", path).Msg("file data replaces inline data")
		}
		ds, err = io.LoadFile(path, s.CSVSep)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("file", path).Int("rows", ds.Len()).Msg("loaded data file")
	}

	if ds == nil {
		return nil, nil
	}
	return ds.RenameColumns(s.NormalizeName)
}

func toDataset(raw any) (*dataset.Dataset, error) {
	switch v := raw.(type) {
	case *dataset.Dataset:
		if v == nil {
			return nil, nil
		}
		return v.Clone(), nil
	case dataset.Dataset:
		return v.Clone(), nil
	case []map[string]any:
		return dataset.FromRecords(v), nil
	case []dataset.Row:
		return dataset.FromRecords(v), nil
	case map[string][]any:
		return dataset.FromColumns(v)
	case arrow.Record:
		return dataset.FromRecord(v)
	default:
		return nil, errors.NewTypeError("GetData", KeyData,
			fmt.Sprintf("expected a dataset, records, columns or an Arrow record, found %s", common.TypeName(raw)))
	}
}

func take(m map[string]any, key string) (any, bool) {
	v, ok := m[key]
	delete(m, key)
	return v, ok
}

func withKeyword(err error, keyword string) error {
	if de, ok := err.(*errors.DataError); ok && de.Keyword == "" {
		return de.WithKeyword(keyword)
	}
	return err
}

func withHint(err error, hint string) error {
	if de, ok := err.(*errors.DataError); ok && de.Hint == "" {
		return de.WithHint(hint)
	}
	return err
}

// ValidateData checks that every mandatory field of keyword name is a column
// of ds. A nil dataset has no columns.
func (l *Loader) ValidateData(ds *dataset.Dataset, name string) error {
	mandatory, err := l.signatures.GetMandatoryFields(name)
	if err != nil {
		return err
	}

	var provider validation.ColumnProvider
	if ds != nil {
		provider = ds
	}
	caseSensitive := l.store.Get().CaseSensitive

	return validation.NewCompoundValidator(
		validation.NewMandatoryFieldsValidator(provider, name, caseSensitive, mandatory...),
	).Validate()
}

// ApplyDefaults adds every optional field of keyword name that ds lacks as a
// column holding the declared default. With no data the defaults form a
// single row.
func (l *Loader) ApplyDefaults(ds *dataset.Dataset, name string) (*dataset.Dataset, error) {
	optional, err := l.signatures.GetOptionalFields(name)
	if err != nil {
		return nil, err
	}
	if ds == nil {
		if len(optional) == 0 {
			return nil, nil
		}
		return dataset.FromArgs(optional), nil
	}

	caseSensitive := l.store.Get().CaseSensitive
	out := ds.Clone()
	for _, field := range slices.Sorted(maps.Keys(optional)) {
		if !hasColumn(out, field, caseSensitive) {
			out.Assign(field, optional[field])
		}
	}
	return out, nil
}

func hasColumn(ds *dataset.Dataset, name string, caseSensitive bool) bool {
	if ds.HasColumn(name) {
		return true
	}
	if caseSensitive {
		return false
	}
	return slices.ContainsFunc(ds.Columns(), func(col string) bool {
		return strings.EqualFold(col, name)
	})
}
