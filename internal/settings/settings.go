// Package settings provides the process-wide configuration that steers keyword
// data resolution: the deferred-expression indicator, the delimiter of data
// files, the prefix that turns keyword arguments into setting overrides, name
// case handling and date parsing order.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/paveg/kwdata/internal/common"
	"github.com/paveg/kwdata/internal/errors"
	"gopkg.in/yaml.v3"
)

// Recognized setting keys
const (
	KeyEvalIndicator     = "EVAL_INDICATOR"
	KeyCSVSep            = "CSV_SEP"
	KeySettingPrefix     = "SETTING_PREFIX"
	KeyCaseSensitive     = "CASE_SENSITIVE"
	KeyLocations         = "LOCATIONS"
	KeyDateTimeOrder     = "DEFAULT_DATE_TIME_ORDER"
	KeyRowIndexBase      = "ROW_INDEX_BASE"
	KeyNoneSelectsNoRows = "NONE_SELECTS_NO_ROWS"
	KeyTimeZone          = "TIME_ZONE"
	KeyLogLevel          = "LOG_LEVEL"
	KeyLogFormat         = "LOG_FORMAT"

	// KeyConfigFile names a YAML or JSON file whose settings are applied
	// before the other overrides of the same update.
	KeyConfigFile = "CONFIG_FILE"
)

// Default setting values
const (
	DefaultEvalIndicator = "ev:"
	DefaultCSVSep        = ","
	DefaultSettingPrefix = "-"
	DefaultTimeZone      = "UTC"
	DefaultLogLevel      = "warn"
	DefaultLogFormat     = "json"

	envPrefix = "KWDATA_"
)

// DefaultDateTimeOrder is the positional order of date-time components
var DefaultDateTimeOrder = []string{"year", "month", "day", "hour", "minute", "second"}

// Settings represents the configuration for keyword data resolution
type Settings struct {
	EvalIndicator     string   `json:"EVAL_INDICATOR" yaml:"EVAL_INDICATOR" validate:"required"`                                                // Prefix marking a deferred expression
	CSVSep            string   `json:"CSV_SEP" yaml:"CSV_SEP" validate:"len=1"`                                                                 // Field delimiter of delimited data files
	SettingPrefix     string   `json:"SETTING_PREFIX" yaml:"SETTING_PREFIX" validate:"required"`                                                // Prefix turning an argument into a setting override
	CaseSensitive     bool     `json:"CASE_SENSITIVE" yaml:"CASE_SENSITIVE"`                                                                    // Compare argument and column names case-sensitively
	Locations         []string `json:"LOCATIONS" yaml:"LOCATIONS"`                                                                              // Directories or files holding keyword manifests
	DateTimeOrder     []string `json:"DEFAULT_DATE_TIME_ORDER" yaml:"DEFAULT_DATE_TIME_ORDER" validate:"len=6,unique,dive,oneof=year month day hour minute second"` // Positional order of date components
	RowIndexBase      int      `json:"ROW_INDEX_BASE" yaml:"ROW_INDEX_BASE" validate:"oneof=0 1"`                                               // Numbering of row selector indices
	NoneSelectsNoRows bool     `json:"NONE_SELECTS_NO_ROWS" yaml:"NONE_SELECTS_NO_ROWS"`                                                        // Row selector NONE yields zero rows instead of all
	TimeZone          string   `json:"TIME_ZONE" yaml:"TIME_ZONE" validate:"required,timezone"`                                                 // Zone parsed date-times are converted to
	LogLevel          string   `json:"LOG_LEVEL" yaml:"LOG_LEVEL" validate:"oneof=trace debug info warn error disabled"`                        // Minimum level of emitted log events
	LogFormat         string   `json:"LOG_FORMAT" yaml:"LOG_FORMAT" validate:"oneof=json console"`                                              // Log output format

	// Extra holds overrides that are not recognized settings, such as
	// per-test variables set through prefixed keyword arguments.
	Extra map[string]any `json:"-" yaml:"-"`
}

// Defaults returns a new Settings value with default values
func Defaults() Settings {
	return Settings{
		EvalIndicator:     DefaultEvalIndicator,
		CSVSep:            DefaultCSVSep,
		SettingPrefix:     DefaultSettingPrefix,
		CaseSensitive:     false,
		Locations:         []string{},
		DateTimeOrder:     slices.Clone(DefaultDateTimeOrder),
		RowIndexBase:      0,
		NoneSelectsNoRows: false,
		TimeZone:          DefaultTimeZone,
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
		Extra:             map[string]any{},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate validates the settings and returns an error if invalid
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validating settings: %w", err)
	}
	fe := verrs[0]
	key := strings.SplitN(fe.Namespace(), ".", 2)
	name := fe.Field()
	if len(key) == 2 {
		name = key[1]
	}
	return errors.NewInvalidSettingError("Validate", name, describeRule(fe))
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "len":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be exactly %s character(s) long", fe.Param())
		}
		return fmt.Sprintf("must hold exactly %s elements", fe.Param())
	case "unique":
		return "must not contain duplicates"
	case "oneof":
		return fmt.Sprintf("value %v is not one of [%s]", fe.Value(), fe.Param())
	case "timezone":
		return fmt.Sprintf("%v is not a known time zone", fe.Value())
	default:
		return fmt.Sprintf("failed the %q rule", fe.Tag())
	}
}

// Clone returns a deep copy of the settings
func (s Settings) Clone() Settings {
	c := s
	c.Locations = slices.Clone(s.Locations)
	c.DateTimeOrder = slices.Clone(s.DateTimeOrder)
	c.Extra = make(map[string]any, len(s.Extra))
	for k, v := range s.Extra {
		c.Extra[k] = v
	}
	return c
}

// NormalizeName folds a field or argument name to the canonical case used
// for comparisons. Names are left untouched when settings are case-sensitive.
func (s Settings) NormalizeName(name string) string {
	if s.CaseSensitive {
		return name
	}
	return strings.ToUpper(name)
}

// Value returns the current value of a recognized or extra setting
func (s Settings) Value(key string) (any, bool) {
	key = strings.ToUpper(key)
	switch key {
	case KeyEvalIndicator:
		return s.EvalIndicator, true
	case KeyCSVSep:
		return s.CSVSep, true
	case KeySettingPrefix:
		return s.SettingPrefix, true
	case KeyCaseSensitive:
		return s.CaseSensitive, true
	case KeyLocations:
		return slices.Clone(s.Locations), true
	case KeyDateTimeOrder:
		return slices.Clone(s.DateTimeOrder), true
	case KeyRowIndexBase:
		return s.RowIndexBase, true
	case KeyNoneSelectsNoRows:
		return s.NoneSelectsNoRows, true
	case KeyTimeZone:
		return s.TimeZone, true
	case KeyLogLevel:
		return s.LogLevel, true
	case KeyLogFormat:
		return s.LogFormat, true
	}
	v, ok := s.Extra[key]
	return v, ok
}

// Apply returns base with overrides applied and validated. Keys are
// case-insensitive. Recognized keys must carry values of the setting's type;
// unrecognized keys are kept in Extra. A CONFIG_FILE key loads that file
// first so that explicit overrides win.
func Apply(base Settings, overrides map[string]any) (Settings, error) {
	next := base.Clone()

	upper := make(map[string]any, len(overrides))
	for k, v := range overrides {
		upper[strings.ToUpper(k)] = v
	}

	if file, ok := upper[KeyConfigFile]; ok {
		delete(upper, KeyConfigFile)
		path, isString := file.(string)
		if !isString {
			return Settings{}, typeError(KeyConfigFile, "string", file)
		}
		fileValues, err := readFile(path)
		if err != nil {
			return Settings{}, err
		}
		for k, v := range fileValues {
			k = strings.ToUpper(k)
			if _, explicit := upper[k]; !explicit && k != KeyConfigFile {
				upper[k] = v
			}
		}
	}

	keys := make([]string, 0, len(upper))
	for k := range upper {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := next.set(k, upper[k]); err != nil {
			return Settings{}, err
		}
	}

	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	return next, nil
}

func (s *Settings) set(key string, value any) error {
	var err error
	switch key {
	case KeyEvalIndicator:
		s.EvalIndicator, err = asString(key, value)
	case KeyCSVSep:
		s.CSVSep, err = asString(key, value)
	case KeySettingPrefix:
		s.SettingPrefix, err = asString(key, value)
	case KeyCaseSensitive:
		s.CaseSensitive, err = asBool(key, value)
	case KeyLocations:
		s.Locations, err = asStringList(key, value)
	case KeyDateTimeOrder:
		var order []string
		order, err = asStringList(key, value)
		for i := range order {
			order[i] = strings.ToLower(order[i])
		}
		s.DateTimeOrder = order
	case KeyRowIndexBase:
		s.RowIndexBase, err = asInt(key, value)
	case KeyNoneSelectsNoRows:
		s.NoneSelectsNoRows, err = asBool(key, value)
	case KeyTimeZone:
		s.TimeZone, err = asString(key, value)
	case KeyLogLevel:
		var level string
		level, err = asString(key, value)
		s.LogLevel = strings.ToLower(level)
	case KeyLogFormat:
		var format string
		format, err = asString(key, value)
		s.LogFormat = strings.ToLower(format)
	default:
		if s.Extra == nil {
			s.Extra = map[string]any{}
		}
		s.Extra[key] = value
	}
	return err
}

func typeError(key, expected string, value any) error {
	return errors.NewTypeError("UpdateSettings", "",
		fmt.Sprintf("setting %s has an incorrect type (should be %s, found was: %s)", key, expected, common.TypeName(value)))
}

func asString(key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", typeError(key, "string", value)
	}
	return s, nil
}

func asBool(key string, value any) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, typeError(key, "bool", value)
	}
	return b, nil
}

func asInt(key string, value any) (int, error) {
	if !common.IsIntegerType(value) && !common.IsFloatType(value) {
		return 0, typeError(key, "int", value)
	}
	i, err := common.ToInt64(value)
	if err != nil {
		return 0, typeError(key, "int", value)
	}
	return int(i), nil
}

func asStringList(key string, value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return slices.Clone(v), nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, typeError(key, "list of strings", value)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, typeError(key, "list", value)
	}
}

func readFile(filename string) (map[string]any, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading settings file %s: %w", filename, err)
	}

	values := map[string]any{}
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &values)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &values)
	default:
		return nil, errors.NewNotSupportedError("LoadFromFile", fmt.Sprintf("settings file format %q", ext))
	}

	if err != nil {
		return nil, errors.NewParseError("LoadFromFile",
			fmt.Sprintf("the settings file %s could not be parsed", filename), err)
	}
	return values, nil
}

// LoadFromFile loads settings from a YAML or JSON file on top of the defaults
func LoadFromFile(filename string) (Settings, error) {
	values, err := readFile(filename)
	if err != nil {
		return Settings{}, err
	}
	delete(values, KeyConfigFile)
	return Apply(Defaults(), values)
}

// LoadFromEnv loads settings from KWDATA_* environment variables on top of
// the defaults. Values that cannot be parsed for their setting are ignored.
func LoadFromEnv() Settings {
	s := Defaults()

	if val := os.Getenv(envPrefix + KeyEvalIndicator); val != "" {
		s.EvalIndicator = val
	}
	if val := os.Getenv(envPrefix + KeyCSVSep); val != "" {
		s.CSVSep = val
	}
	if val := os.Getenv(envPrefix + KeySettingPrefix); val != "" {
		s.SettingPrefix = val
	}
	if val := os.Getenv(envPrefix + KeyCaseSensitive); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			s.CaseSensitive = parsed
		}
	}
	if val := os.Getenv(envPrefix + KeyLocations); val != "" {
		s.Locations = filepath.SplitList(val)
	}
	if val := os.Getenv(envPrefix + KeyDateTimeOrder); val != "" {
		order := strings.Split(strings.ToLower(val), ",")
		for i := range order {
			order[i] = strings.TrimSpace(order[i])
		}
		s.DateTimeOrder = order
	}
	if val := os.Getenv(envPrefix + KeyRowIndexBase); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			s.RowIndexBase = parsed
		}
	}
	if val := os.Getenv(envPrefix + KeyNoneSelectsNoRows); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			s.NoneSelectsNoRows = parsed
		}
	}
	if val := os.Getenv(envPrefix + KeyTimeZone); val != "" {
		s.TimeZone = val
	}
	if val := os.Getenv(envPrefix + KeyLogLevel); val != "" {
		s.LogLevel = strings.ToLower(val)
	}
	if val := os.Getenv(envPrefix + KeyLogFormat); val != "" {
		s.LogFormat = strings.ToLower(val)
	}

	return s
}

// Store holds one Settings value that is replaced only through Update or
// Replace. Readers always receive a copy.
type Store struct {
	mu      sync.RWMutex
	current Settings
}

// NewStore creates a store holding s
func NewStore(s Settings) *Store {
	return &Store{current: s.Clone()}
}

// Get returns a copy of the current settings
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current.Clone()
}

// Update applies overrides to the current settings. On error the store is
// left unchanged.
func (st *Store) Update(overrides map[string]any) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	next, err := Apply(st.current, overrides)
	if err != nil {
		return err
	}
	st.current = next
	return nil
}

// Replace validates s and installs it as the current settings
func (st *Store) Replace(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = s.Clone()
	return nil
}

// Reset restores the default settings
func (st *Store) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = Defaults()
}

var global = NewStore(Defaults())

// Global returns the process-wide settings store
func Global() *Store {
	return global
}
