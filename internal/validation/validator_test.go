package validation_test

import (
	stderrors "errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/paveg/kwdata/internal/dataset"
	"github.com/paveg/kwdata/internal/errors"
	"github.com/paveg/kwdata/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMandatoryFieldsValidator(t *testing.T) {
	ds := dataset.FromArgs(map[string]any{"X": 1, "y": 2})

	tests := []struct {
		name          string
		data          validation.ColumnProvider
		caseSensitive bool
		fields        []string
		missing       string
	}{
		{name: "all present", data: ds, fields: []string{"X", "Y"}},
		{name: "case folded match", data: ds, fields: []string{"x"}},
		{name: "case sensitive mismatch", data: ds, caseSensitive: true, fields: []string{"Y"}, missing: "Y"},
		{name: "every missing field named", data: ds, fields: []string{"X", "A", "B"}, missing: "A, B"},
		{name: "no data", data: nil, fields: []string{"X", "Y"}, missing: "X, Y"},
		{name: "no fields", data: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.ValidateMandatoryFields(tt.data, "keyword_1", tt.caseSensitive, tt.fields...)
			if tt.missing == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrMissingFields)
			assert.Contains(t, err.Error(), "mandatory fields missing from data: "+tt.missing)
			assert.Contains(t, err.Error(), "keyword_1")
		})
	}
}

func TestMissingFieldsAggregation(t *testing.T) {
	err := validation.ValidateMandatoryFields(nil, "k", false, "A", "B", "C")
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, stderrors.As(err, &merr))
	assert.Len(t, merr.Errors, 3)
}

type failing struct{ err error }

func (f failing) Validate() error { return f.err }

func TestCompoundValidator(t *testing.T) {
	first := stderrors.New("first")

	v := validation.NewCompoundValidator(failing{}, failing{err: first}, failing{err: stderrors.New("second")})
	assert.Equal(t, first, v.Validate())

	assert.NoError(t, validation.NewCompoundValidator().Validate())
}
