// Package datetime turns date and date-time literals found in keyword data
// into time values. Besides the usual ISO forms it accepts component lists
// split on ". , : /" or space, ordered by a configurable order. A component
// written with a sign is relative to the current time and a space-separated
// zone name such as Europe/Amsterdam sets the zone of the literal.
package datetime

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/paveg/kwdata/internal/errors"
	"github.com/rs/zerolog"
)

// Component names accepted in a date-time order
const (
	Year   = "year"
	Month  = "month"
	Day    = "day"
	Hour   = "hour"
	Minute = "minute"
	Second = "second"
)

var (
	componentNames = []string{Year, Month, Day, Hour, Minute, Second}
	separators     = regexp.MustCompile(`[.,: /]`)

	// Layouts tried before falling back to component splitting. Fractional
	// seconds are accepted after the seconds field of every layout.
	isoLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05-0700",
		"2006-01-02T15:04:05-0700",
	}
	localLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
)

// Parser parses date-time literals
type Parser struct {
	order  []string
	input  *time.Location
	output *time.Location
	now    func() time.Time
	logger zerolog.Logger

	// zone name -> *time.Location, nil when the name is not a zone
	zones sync.Map
}

// Option configures a Parser
type Option func(*Parser)

// WithNow sets the clock relative components are resolved against
func WithNow(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// WithInputLocation sets the zone of literals that name none. Defaults to
// the local zone.
func WithInputLocation(loc *time.Location) Option {
	return func(p *Parser) { p.input = loc }
}

// WithLogger sets the logger parse decisions are traced to
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

// NewParser creates a parser for the given component order whose results are
// converted to outputZone.
func NewParser(order []string, outputZone string, opts ...Option) (*Parser, error) {
	normalized := make([]string, len(order))
	for i, name := range order {
		normalized[i] = strings.ToLower(strings.TrimSpace(name))
	}
	if len(normalized) != len(componentNames) {
		return nil, errors.NewInvalidSettingError("NewParser", "DEFAULT_DATE_TIME_ORDER",
			fmt.Sprintf("the order of date-time components is incomplete (%d != 6)", len(normalized)))
	}
	for _, name := range componentNames {
		if !slices.Contains(normalized, name) {
			return nil, errors.NewInvalidSettingError("NewParser", "DEFAULT_DATE_TIME_ORDER",
				fmt.Sprintf("the order must contain each of %s", strings.Join(componentNames, ", ")))
		}
	}

	output, err := time.LoadLocation(outputZone)
	if err != nil {
		return nil, errors.NewInvalidSettingError("NewParser", "TIME_ZONE", err.Error())
	}

	p := &Parser{
		order:  normalized,
		input:  time.Local,
		output: output,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Parse converts a literal into a time in the output zone
func (p *Parser) Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(p.output), nil
		}
	}

	loc := p.input
	fields := strings.Fields(s)
	for i, field := range fields {
		if !strings.ContainsFunc(field, unicode.IsLetter) {
			continue
		}
		// The first field holding letters names the zone.
		named := p.zone(field)
		if named == nil {
			break
		}
		loc = named
		s = strings.Join(slices.Delete(fields, i, i+1), " ")
		break
	}
	tokens := separators.Split(s, -1)

	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(p.output), nil
		}
	}

	t, err := p.fromComponents(tokens, loc)
	if err != nil {
		return time.Time{}, errors.NewParseError("ParseDate",
			fmt.Sprintf("%q is neither a valid date nor date-time", s), err)
	}

	p.logger.Debug().Str("input", s).Time("result", t).Msg("parsed date-time literal")
	return t.In(p.output), nil
}

// zone resolves a zone name, caching both hits and misses. Only fields
// shaped like IANA names or abbreviations reach the zone database.
func (p *Parser) zone(name string) *time.Location {
	if !looksLikeZone(name) {
		return nil
	}
	if cached, ok := p.zones.Load(name); ok {
		return cached.(*time.Location)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		p.logger.Debug().Str("zone", name).Err(err).Msg("unknown zone")
		loc = nil
	}
	p.zones.Store(name, loc)
	return loc
}

func looksLikeZone(name string) bool {
	if strings.Contains(name, "/") {
		return true
	}
	return !strings.ContainsFunc(name, func(r rune) bool {
		return !unicode.IsUpper(r) && !unicode.IsDigit(r) && r != '+' && r != '-' && r != '_'
	})
}

func (p *Parser) fromComponents(tokens []string, loc *time.Location) (time.Time, error) {
	if len(tokens) < 3 {
		return time.Time{}, fmt.Errorf("at least a year, month and day must be given")
	}
	if len(tokens) > len(p.order)+1 {
		return time.Time{}, fmt.Errorf("too many components (%d)", len(tokens))
	}

	values := make([]int, len(tokens))
	relative := false
	for i, tok := range tokens {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return time.Time{}, fmt.Errorf("component %q is not a number", tok)
		}
		values[i] = v
		if i < len(p.order) && isRelative(tok) {
			relative = true
		}
	}

	parts := map[string]int{}
	if relative {
		now := p.now().In(loc)
		for i, tok := range tokens {
			if i < len(p.order) && isRelative(tok) {
				now = addUnit(now, p.order[i], values[i])
			}
		}
		for i, tok := range tokens {
			if i < len(p.order) && isRelative(tok) {
				values[i] = component(now, p.order[i])
			}
		}
	}
	for i, v := range values {
		if i < len(p.order) {
			parts[p.order[i]] = v
		}
	}

	var micro int
	if len(values) > len(p.order) {
		micro = values[len(p.order)]
	}

	t := time.Date(parts[Year], time.Month(parts[Month]), parts[Day],
		parts[Hour], parts[Minute], parts[Second], micro*int(time.Microsecond), loc)

	if t.Year() != parts[Year] || int(t.Month()) != parts[Month] || t.Day() != parts[Day] ||
		t.Hour() != parts[Hour] || t.Minute() != parts[Minute] || t.Second() != parts[Second] {
		return time.Time{}, fmt.Errorf("components out of range")
	}
	return t, nil
}

func isRelative(tok string) bool {
	return strings.HasPrefix(tok, "+") || strings.HasPrefix(tok, "-")
}

func component(t time.Time, name string) int {
	switch name {
	case Year:
		return t.Year()
	case Month:
		return int(t.Month())
	case Day:
		return t.Day()
	case Hour:
		return t.Hour()
	case Minute:
		return t.Minute()
	default:
		return t.Second()
	}
}

// addUnit adds n units to t. Adding years or months keeps the day within the
// target month, so January 31st plus one month is the last day of February.
func addUnit(t time.Time, unit string, n int) time.Time {
	switch unit {
	case Year:
		return addMonths(t, 12*n)
	case Month:
		return addMonths(t, n)
	case Day:
		return t.AddDate(0, 0, n)
	case Hour:
		return t.Add(time.Duration(n) * time.Hour)
	case Minute:
		return t.Add(time.Duration(n) * time.Minute)
	default:
		return t.Add(time.Duration(n) * time.Second)
	}
}

func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	first = first.AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := min(t.Day(), last)
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// ParseOrReturn parses strings that hold a date-time literal. Any other value,
// including strings that do not parse and deferred expressions starting with
// skipPrefix, is returned unchanged.
func (p *Parser) ParseOrReturn(value any, skipPrefix string) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if skipPrefix != "" && strings.HasPrefix(s, skipPrefix) {
		return value
	}
	t, err := p.Parse(s)
	if err != nil {
		return value
	}
	return t
}

// Range returns the times from start stepping size units at a time. Exactly
// one of till (exclusive) or through (inclusive) must be given. Bounds may be
// times or literals. Units may be singular or plural.
func (p *Parser) Range(from, till, through any, size int, unit string) ([]time.Time, error) {
	if (till == nil) == (through == nil) {
		return nil, errors.NewTypeError("DateRange", "", "supply exactly one of till or through")
	}
	if size <= 0 {
		return nil, errors.NewTypeError("DateRange", "", fmt.Sprintf("step size must be positive, got %d", size))
	}

	name := strings.TrimSuffix(strings.ToLower(unit), "s")
	if !slices.Contains(componentNames, name) {
		return nil, errors.NewTypeError("DateRange", "",
			fmt.Sprintf("unit %q is not a valid time unit (use one of: %s)", unit, strings.Join(componentNames, ", ")))
	}

	start, err := p.bound(from)
	if err != nil {
		return nil, err
	}
	inclusive := through != nil
	stopValue := till
	if inclusive {
		stopValue = through
	}
	stop, err := p.bound(stopValue)
	if err != nil {
		return nil, err
	}

	var out []time.Time
	for i := 0; ; i++ {
		current := addUnit(start, name, i*size)
		if current.After(stop) || (!inclusive && current.Equal(stop)) {
			break
		}
		out = append(out, current)
	}

	p.logger.Debug().Time("from", start).Time("stop", stop).Int("count", len(out)).Msg("created date range")
	return out, nil
}

func (p *Parser) bound(v any) (time.Time, error) {
	switch b := v.(type) {
	case time.Time:
		return b.In(p.output), nil
	case string:
		return p.Parse(b)
	default:
		return time.Time{}, errors.NewTypeError("DateRange", "", fmt.Sprintf("cannot use %T as a date bound", v))
	}
}
