// Package validation checks resolved keyword data against what a keyword
// requires before it is handed to the keyword.
package validation

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/paveg/kwdata/internal/errors"
)

// Validator interface for input validation
type Validator interface {
	Validate() error
}

// ColumnProvider interface for types that provide column information
type ColumnProvider interface {
	HasColumn(name string) bool
	Columns() []string
}

// MandatoryFieldsValidator checks that every mandatory field is a column
type MandatoryFieldsValidator struct {
	data          ColumnProvider
	keyword       string
	fields        []string
	caseSensitive bool
}

// NewMandatoryFieldsValidator creates a validator for the mandatory fields of
// a keyword. A nil data provider has no columns.
func NewMandatoryFieldsValidator(data ColumnProvider, keyword string, caseSensitive bool, fields ...string) *MandatoryFieldsValidator {
	return &MandatoryFieldsValidator{
		data:          data,
		keyword:       keyword,
		fields:        fields,
		caseSensitive: caseSensitive,
	}
}

// Validate reports every absent field at once
func (v *MandatoryFieldsValidator) Validate() error {
	var result *multierror.Error
	var missing []string

	for _, field := range v.fields {
		if v.has(field) {
			continue
		}
		missing = append(missing, field)
		result = multierror.Append(result, fmt.Errorf("mandatory field %s is missing", field))
	}

	if result == nil {
		return nil
	}
	return errors.NewMissingFieldsError("ValidateData", v.keyword, missing, result.ErrorOrNil())
}

func (v *MandatoryFieldsValidator) has(field string) bool {
	if v.data == nil {
		return false
	}
	if v.data.HasColumn(field) {
		return true
	}
	if v.caseSensitive {
		return false
	}
	for _, col := range v.data.Columns() {
		if strings.EqualFold(col, field) {
			return true
		}
	}
	return false
}

// CompoundValidator combines multiple validators
type CompoundValidator struct {
	validators []Validator
}

// NewCompoundValidator creates a validator that checks multiple conditions
func NewCompoundValidator(validators ...Validator) *CompoundValidator {
	return &CompoundValidator{
		validators: validators,
	}
}

// Validate runs all validators and returns the first error encountered
func (v *CompoundValidator) Validate() error {
	for _, validator := range v.validators {
		if err := validator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMandatoryFields is a convenience function for mandatory field validation
func ValidateMandatoryFields(data ColumnProvider, keyword string, caseSensitive bool, fields ...string) error {
	return NewMandatoryFieldsValidator(data, keyword, caseSensitive, fields...).Validate()
}
