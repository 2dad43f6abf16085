// Package registry holds keyword signatures: the ordered mandatory
// parameters and the optional parameters with their defaults, together with
// the handler a keyword is dispatched to.
package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/paveg/kwdata/internal/common"
	"github.com/paveg/kwdata/internal/dataset"
	"github.com/paveg/kwdata/internal/errors"
	"github.com/paveg/kwdata/internal/settings"
	"github.com/rs/zerolog"
)

// Handler runs a keyword against its resolved data
type Handler func(ctx context.Context, data *dataset.Dataset) error

// Param is a declared keyword parameter
type Param struct {
	Name     string
	Default  any
	Optional bool
}

// Mandatory declares a parameter without default
func Mandatory(name string) Param {
	return Param{Name: name}
}

// Optional declares a parameter with a default value
func Optional(name string, def any) Param {
	return Param{Name: name, Default: def, Optional: true}
}

// Keyword is a registered keyword signature
type Keyword struct {
	Name    string
	Params  []Param
	Doc     string
	Handler Handler
}

// Registry maps keyword names to their signatures
type Registry struct {
	mu       sync.RWMutex
	keywords map[string]*Keyword
	store    *settings.Store
	logger   zerolog.Logger
}

// New creates an empty registry. Name comparisons follow the case
// sensitivity of the store's settings at the time of each call.
func New(store *settings.Store, logger zerolog.Logger) *Registry {
	return &Registry{
		keywords: map[string]*Keyword{},
		store:    store,
		logger:   logger,
	}
}

// Register adds a keyword. Mandatory parameters must precede optional ones
// and parameter names must be unique.
func (r *Registry) Register(kw Keyword) error {
	if strings.TrimSpace(kw.Name) == "" {
		return errors.NewInvalidDefinitionError("Register", kw.Name, "keyword name must not be empty")
	}

	s := r.store.Get()
	seen := map[string]bool{}
	optionalSeen := false
	for _, p := range kw.Params {
		if strings.TrimSpace(p.Name) == "" {
			return errors.NewInvalidDefinitionError("Register", kw.Name, "parameter name must not be empty")
		}
		name := s.NormalizeName(p.Name)
		if seen[name] {
			return errors.NewInvalidDefinitionError("Register", kw.Name,
				fmt.Sprintf("parameter %s is declared more than once", p.Name))
		}
		seen[name] = true

		if p.Optional {
			optionalSeen = true
		} else if optionalSeen {
			return errors.NewInvalidDefinitionError("Register", kw.Name,
				fmt.Sprintf("mandatory parameter %s follows an optional parameter", p.Name))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.find(kw.Name, s.CaseSensitive); exists {
		return errors.NewInvalidDefinitionError("Register", kw.Name, "keyword is already registered")
	}

	stored := kw
	stored.Params = slices.Clone(kw.Params)
	r.keywords[kw.Name] = &stored

	r.logger.Debug().Str("keyword", kw.Name).Int("params", len(kw.Params)).Msg("registered keyword")
	return nil
}

// Bind attaches the handler of a registered keyword
func (r *Registry) Bind(name string, h Handler) error {
	caseSensitive := r.store.Get().CaseSensitive

	r.mu.Lock()
	defer r.mu.Unlock()

	kw, ok := r.find(name, caseSensitive)
	if !ok {
		return errors.NewNotFoundError("Bind", name)
	}
	kw.Handler = h
	return nil
}

func (r *Registry) find(name string, caseSensitive bool) (*Keyword, bool) {
	if kw, ok := r.keywords[name]; ok {
		return kw, true
	}
	if caseSensitive {
		return nil, false
	}
	for key, kw := range r.keywords {
		if strings.EqualFold(key, name) {
			return kw, true
		}
	}
	return nil, false
}

// Lookup returns a copy of the named keyword
func (r *Registry) Lookup(name string) (Keyword, error) {
	caseSensitive := r.store.Get().CaseSensitive

	r.mu.RLock()
	defer r.mu.RUnlock()

	kw, ok := r.find(name, caseSensitive)
	if !ok {
		return Keyword{}, errors.NewNotFoundError("Lookup", name)
	}
	out := *kw
	out.Params = slices.Clone(kw.Params)
	return out, nil
}

// GetMandatoryFields returns the mandatory parameter names in declaration
// order, normalized to the configured case.
func (r *Registry) GetMandatoryFields(name string) ([]string, error) {
	kw, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	s := r.store.Get()

	fields := []string{}
	for _, p := range kw.Params {
		if !p.Optional {
			fields = append(fields, s.NormalizeName(p.Name))
		}
	}
	return fields, nil
}

// GetOptionalFields returns the optional parameter names with their
// defaults, normalized to the configured case.
func (r *Registry) GetOptionalFields(name string) (map[string]any, error) {
	kw, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	s := r.store.Get()

	fields := map[string]any{}
	for _, p := range kw.Params {
		if p.Optional {
			fields[s.NormalizeName(p.Name)] = p.Default
		}
	}
	return fields, nil
}

// GetConditionalFields is reserved for fields required depending on other
// fields. No keyword declares any yet.
func (r *Registry) GetConditionalFields(name string) (map[string]any, error) {
	if _, err := r.Lookup(name); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

// GetAllKeywords returns the registered keyword names in sorted order
func (r *Registry) GetAllKeywords() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.keywords))
	for name := range r.keywords {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// KeywordArguments lists the parameters of a keyword in declaration order.
// In robot mode mandatory parameters render as NAME=() and optional ones as
// NAME=default; otherwise only names are listed.
func (r *Registry) KeywordArguments(name string, robotMode bool) ([]string, error) {
	kw, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, len(kw.Params))
	for _, p := range kw.Params {
		switch {
		case !robotMode:
			args = append(args, p.Name)
		case p.Optional:
			args = append(args, fmt.Sprintf("%s=%s", p.Name, common.FormatValue(p.Default)))
		default:
			args = append(args, p.Name+"=()")
		}
	}
	return args, nil
}

// Documentation returns the documentation of a keyword
func (r *Registry) Documentation(name string) (string, error) {
	kw, err := r.Lookup(name)
	if err != nil {
		return "", err
	}
	return kw.Doc, nil
}
