package registry_test

import (
	"context"
	"testing"

	"github.com/paveg/kwdata/internal/dataset"
	"github.com/paveg/kwdata/internal/errors"
	"github.com/paveg/kwdata/internal/registry"
	"github.com/paveg/kwdata/internal/settings"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*registry.Registry, *settings.Store) {
	t.Helper()
	store := settings.NewStore(settings.Defaults())
	reg := registry.New(store, zerolog.Nop())

	require.NoError(t, reg.Register(registry.Keyword{
		Name: "keyword_1",
		Doc:  "Does the first thing.",
		Params: []registry.Param{
			registry.Mandatory("x"),
			registry.Mandatory("y"),
			registry.Mandatory("z"),
		},
	}))
	require.NoError(t, reg.Register(registry.Keyword{
		Name: "keyword_2",
		Params: []registry.Param{
			registry.Mandatory("x"),
			registry.Optional("y", "default"),
			registry.Optional("z", nil),
		},
	}))
	return reg, store
}

func TestRegister(t *testing.T) {
	reg, _ := newRegistry(t)

	tests := []struct {
		name string
		kw   registry.Keyword
	}{
		{"empty name", registry.Keyword{Name: " "}},
		{"duplicate keyword", registry.Keyword{Name: "KEYWORD_1"}},
		{"empty parameter", registry.Keyword{Name: "k", Params: []registry.Param{registry.Mandatory("")}}},
		{"duplicate parameter", registry.Keyword{Name: "k", Params: []registry.Param{
			registry.Mandatory("a"), registry.Mandatory("A"),
		}}},
		{"mandatory after optional", registry.Keyword{Name: "k", Params: []registry.Param{
			registry.Optional("a", 1), registry.Mandatory("b"),
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.kw)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidDefinition)
		})
	}
}

func TestFields(t *testing.T) {
	reg, store := newRegistry(t)

	mandatory, err := reg.GetMandatoryFields("keyword_2")
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, mandatory)

	optional, err := reg.GetOptionalFields("keyword_2")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Y": "default", "Z": nil}, optional)

	conditional, err := reg.GetConditionalFields("keyword_2")
	require.NoError(t, err)
	assert.Empty(t, conditional)

	t.Run("case sensitive names", func(t *testing.T) {
		require.NoError(t, store.Update(map[string]any{"CASE_SENSITIVE": true}))
		defer store.Reset()

		mandatory, err := reg.GetMandatoryFields("keyword_1")
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y", "z"}, mandatory)

		_, err = reg.GetMandatoryFields("KEYWORD_1")
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("unknown keyword", func(t *testing.T) {
		for _, get := range []func(string) error{
			func(n string) error { _, err := reg.GetMandatoryFields(n); return err },
			func(n string) error { _, err := reg.GetOptionalFields(n); return err },
			func(n string) error { _, err := reg.GetConditionalFields(n); return err },
			func(n string) error { _, err := reg.Documentation(n); return err },
		} {
			assert.ErrorIs(t, get("nope"), errors.ErrNotFound)
		}
	})
}

func TestLookupIgnoresCase(t *testing.T) {
	reg, _ := newRegistry(t)

	kw, err := reg.Lookup("Keyword_1")
	require.NoError(t, err)
	assert.Equal(t, "keyword_1", kw.Name)

	kw.Params[0].Name = "mutated"
	again, err := reg.Lookup("keyword_1")
	require.NoError(t, err)
	assert.Equal(t, "x", again.Params[0].Name)
}

func TestGetAllKeywords(t *testing.T) {
	reg, _ := newRegistry(t)
	assert.Equal(t, []string{"keyword_1", "keyword_2"}, reg.GetAllKeywords())
}

func TestKeywordArguments(t *testing.T) {
	reg, _ := newRegistry(t)

	robot, err := reg.KeywordArguments("keyword_2", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"x=()", "y=default", "z="}, robot)

	plain, err := reg.KeywordArguments("keyword_2", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, plain)
}

func TestDocumentation(t *testing.T) {
	reg, _ := newRegistry(t)

	doc, err := reg.Documentation("keyword_1")
	require.NoError(t, err)
	assert.Equal(t, "Does the first thing.", doc)
}

func TestBind(t *testing.T) {
	reg, _ := newRegistry(t)

	called := false
	require.NoError(t, reg.Bind("KEYWORD_1", func(context.Context, *dataset.Dataset) error {
		called = true
		return nil
	}))

	kw, err := reg.Lookup("keyword_1")
	require.NoError(t, err)
	require.NotNil(t, kw.Handler)
	require.NoError(t, kw.Handler(context.Background(), nil))
	assert.True(t, called)

	assert.ErrorIs(t, reg.Bind("nope", nil), errors.ErrNotFound)
}
