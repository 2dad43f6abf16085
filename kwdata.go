// Package kwdata resolves the data a test keyword runs on. Keyword
// signatures are registered by name, calls are bound against them, and the
// resulting rows are loaded, filtered, and evaluated before the keyword's
// handler is invoked. This package is the sole public API of the module.
package kwdata

import (
	"context"
	"fmt"
	goio "io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/paveg/kwdata/internal/dataset"
	"github.com/paveg/kwdata/internal/datetime"
	"github.com/paveg/kwdata/internal/errors"
	dataio "github.com/paveg/kwdata/internal/io"
	"github.com/paveg/kwdata/internal/loader"
	"github.com/paveg/kwdata/internal/logging"
	"github.com/paveg/kwdata/internal/registry"
	"github.com/paveg/kwdata/internal/settings"
	"github.com/rs/zerolog"
)

type (
	// Dataset is an ordered table of rows with labelled indices.
	Dataset = dataset.Dataset
	// Row maps column names to values.
	Row = dataset.Row
	// Keyword is a registered keyword signature.
	Keyword = registry.Keyword
	// Param is a declared keyword parameter.
	Param = registry.Param
	// Handler runs a keyword against its resolved data.
	Handler = registry.Handler
	// Settings is the runtime configuration.
	Settings = settings.Settings
	// DataError is the error type returned by every operation.
	DataError = errors.DataError
)

// Errors matched with errors.Is against any error of the same kind.
var (
	ErrArgumentCount         = errors.ErrArgumentCount
	ErrDuplicateArgument     = errors.ErrDuplicateArgument
	ErrNotSupported          = errors.ErrNotSupported
	ErrMissingFields         = errors.ErrMissingFields
	ErrParse                 = errors.ErrParse
	ErrRange                 = errors.ErrRange
	ErrType                  = errors.ErrType
	ErrUnresolvableReference = errors.ErrUnresolvableReference
	ErrCircularDependency    = errors.ErrCircularDependency
	ErrEvaluation            = errors.ErrEvaluation
	ErrNotFound              = errors.ErrNotFound
	ErrInvalidDefinition     = errors.ErrInvalidDefinition
	ErrInvalidSetting        = errors.ErrInvalidSetting
)

// Mandatory declares a parameter without default.
func Mandatory(name string) Param { return registry.Mandatory(name) }

// Optional declares a parameter with a default value.
func Optional(name string, def any) Param { return registry.Optional(name, def) }

// DefaultSettings returns the default configuration.
func DefaultSettings() Settings { return settings.Defaults() }

// Framework ties the settings, the keyword registry and the data loader
// together.
type Framework struct {
	store    *settings.Store
	registry *registry.Registry
	loader   *loader.Loader
	logger   zerolog.Logger
}

type frameworkConfig struct {
	settings    *Settings
	logger      *zerolog.Logger
	logOutput   goio.Writer
	dateOptions []datetime.Option
}

// Option configures a Framework.
type Option func(*frameworkConfig)

// WithSettings starts the framework from s instead of the defaults.
func WithSettings(s Settings) Option {
	return func(c *frameworkConfig) { c.settings = &s }
}

// WithLogger replaces the logger built from the LOG_LEVEL and LOG_FORMAT
// settings.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *frameworkConfig) { c.logger = &logger }
}

// WithLogOutput sets where the settings-built logger writes. Defaults to
// stderr.
func WithLogOutput(w goio.Writer) Option {
	return func(c *frameworkConfig) { c.logOutput = w }
}

// WithClock sets the clock relative date components are resolved against.
func WithClock(now func() time.Time) Option {
	return func(c *frameworkConfig) {
		c.dateOptions = append(c.dateOptions, datetime.WithNow(now))
	}
}

// WithInputLocation sets the zone of date-time literals that name none.
func WithInputLocation(loc *time.Location) Option {
	return func(c *frameworkConfig) {
		c.dateOptions = append(c.dateOptions, datetime.WithInputLocation(loc))
	}
}

// New creates a framework. Keyword manifests found under the LOCATIONS
// setting are registered right away.
func New(opts ...Option) (*Framework, error) {
	cfg := &frameworkConfig{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(cfg)
	}

	initial := settings.Defaults()
	if cfg.settings != nil {
		initial = cfg.settings.Clone()
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	store := settings.NewStore(initial)

	logger := logging.New(logging.Options{
		Level:  initial.LogLevel,
		Format: initial.LogFormat,
		Output: cfg.logOutput,
	})
	if cfg.logger != nil {
		logger = *cfg.logger
	}

	reg := registry.New(store, logger)
	f := &Framework{
		store:    store,
		registry: reg,
		loader:   loader.New(reg, store, logger, loader.WithDateOptions(cfg.dateOptions...)),
		logger:   logger,
	}

	if len(initial.Locations) > 0 {
		if _, err := f.Discover(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Register adds a keyword signature.
func (f *Framework) Register(kw Keyword) error {
	return f.registry.Register(kw)
}

// Bind attaches a handler to a registered keyword.
func (f *Framework) Bind(name string, h Handler) error {
	return f.registry.Bind(name, h)
}

// Discover registers the keywords declared in the manifests found under the
// LOCATIONS setting and returns how many were added.
func (f *Framework) Discover() (int, error) {
	locations := f.store.Get().Locations
	n, err := f.registry.Discover(locations)
	if err != nil {
		return n, fmt.Errorf("discovering keywords: %w", err)
	}
	f.logger.Debug().Strs("locations", locations).Int("keywords", n).Msg("discovered keywords")
	return n, nil
}

// GetData resolves the data of one call of keyword name. Positional args
// bind to the keyword's mandatory parameters not given in kwargs. A call
// that carries no data returns nil.
func (f *Framework) GetData(name string, args []any, kwargs map[string]any) (*Dataset, error) {
	return f.loader.GetData(name, args, kwargs)
}

// ValidateData checks that data holds every mandatory field of keyword name.
func (f *Framework) ValidateData(data *Dataset, name string) error {
	return f.loader.ValidateData(data, name)
}

// ApplyDefaults adds the optional parameters of keyword name that data
// lacks, holding their defaults. Without data the defaults form one row.
func (f *Framework) ApplyDefaults(data *Dataset, name string) (*Dataset, error) {
	return f.loader.ApplyDefaults(data, name)
}

// RunKeyword resolves the data of a call, fills in optional defaults,
// validates it and hands it to the keyword's handler.
func (f *Framework) RunKeyword(ctx context.Context, name string, args []any, kwargs map[string]any) error {
	kw, err := f.registry.Lookup(name)
	if err != nil {
		return err
	}
	if kw.Handler == nil {
		return errors.NewNotSupportedError("RunKeyword", fmt.Sprintf("keyword %q without a handler", kw.Name))
	}

	data, err := f.loader.GetData(kw.Name, args, kwargs)
	if err != nil {
		return err
	}
	data, err = f.ApplyDefaults(data, kw.Name)
	if err != nil {
		return err
	}
	if err := f.loader.ValidateData(data, kw.Name); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	f.logger.Debug().Str("keyword", kw.Name).Msg("running keyword")
	return kw.Handler(ctx, data)
}

// UpdateSettings applies overrides to the current settings. Nothing changes
// when an override is invalid.
func (f *Framework) UpdateSettings(overrides map[string]any) error {
	return f.store.Update(overrides)
}

// Settings returns a copy of the current settings.
func (f *Framework) Settings() Settings {
	return f.store.Get()
}

// KeywordNames lists the registered keywords in sorted order.
func (f *Framework) KeywordNames() []string {
	return f.registry.GetAllKeywords()
}

// KeywordArguments lists the parameters of a keyword. In robot mode
// mandatory parameters render as NAME=() and optional ones as NAME=default.
func (f *Framework) KeywordArguments(name string, robotMode bool) ([]string, error) {
	return f.registry.KeywordArguments(name, robotMode)
}

// KeywordDocumentation returns the documentation of a keyword.
func (f *Framework) KeywordDocumentation(name string) (string, error) {
	return f.registry.Documentation(name)
}

// LoadCSV reads a data file, splitting delimited files on the CSV_SEP
// setting.
func (f *Framework) LoadCSV(path string) (*Dataset, error) {
	return dataio.LoadFile(path, f.store.Get().CSVSep)
}

// WriteCSV writes data with a header row, separated by the CSV_SEP setting.
func (f *Framework) WriteCSV(w goio.Writer, data *Dataset) error {
	options := dataio.DefaultCSVOptions()
	options.Delimiter, _ = utf8.DecodeRuneInString(f.store.Get().CSVSep)
	return dataio.NewCSVWriter(w, options).Write(data)
}
