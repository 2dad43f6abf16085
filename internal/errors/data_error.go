// Package errors provides the error taxonomy shared by keyword data
// resolution. Every failure surfaced by the loader, the row filter, the
// expression evaluator and the registry is a *DataError carrying a Kind, the
// operation that failed and, where it applies, the keyword and column.
package errors

import (
	"fmt"
	"strings"
)

// Kind classifies a DataError.
type Kind int

const (
	KindUnknown Kind = iota
	KindArgumentCount
	KindDuplicateArgument
	KindNotSupported
	KindMissingFields
	KindParse
	KindRange
	KindType
	KindUnresolvableReference
	KindCircularDependency
	KindEvaluation
	KindNotFound
	KindInvalidDefinition
	KindInvalidSetting
)

var kindNames = map[Kind]string{
	KindUnknown:               "unknown",
	KindArgumentCount:         "argument-count",
	KindDuplicateArgument:     "duplicate-argument",
	KindNotSupported:          "not-supported",
	KindMissingFields:         "missing-fields",
	KindParse:                 "parse",
	KindRange:                 "range",
	KindType:                  "type",
	KindUnresolvableReference: "unresolvable-reference",
	KindCircularDependency:    "circular-dependency",
	KindEvaluation:            "evaluation",
	KindNotFound:              "not-found",
	KindInvalidDefinition:     "invalid-definition",
	KindInvalidSetting:        "invalid-setting",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// DataError represents a failure of a keyword data operation
type DataError struct {
	Kind    Kind   // Failure class
	Op      string // Operation name (e.g., "GetData", "ReduceRows", "Evaluate")
	Keyword string // Keyword name if applicable
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Hint    string // Optional remediation hint
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *DataError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(" operation failed")
	if e.Keyword != "" {
		fmt.Fprintf(&b, " for keyword '%s'", e.Keyword)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " on column '%s'", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Hint != "" {
		b.WriteString(" (Hint: ")
		b.WriteString(e.Hint)
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap returns the underlying cause for error wrapping support
func (e *DataError) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking for errors.Is().
// A target that only carries a Kind (such as the Err* sentinels) matches
// every error of that kind.
func (e *DataError) Is(target error) bool {
	t, ok := target.(*DataError)
	if !ok {
		return false
	}
	if t.Op == "" && t.Keyword == "" && t.Column == "" && t.Message == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op && e.Keyword == t.Keyword &&
		e.Column == t.Column && e.Message == t.Message
}

// WithHint returns a copy of the error carrying a remediation hint
func (e *DataError) WithHint(hint string) *DataError {
	c := *e
	c.Hint = hint
	return &c
}

// WithKeyword returns a copy of the error attributed to a keyword
func (e *DataError) WithKeyword(keyword string) *DataError {
	c := *e
	c.Keyword = keyword
	return &c
}

// Sentinels for errors.Is matching by kind
var (
	ErrArgumentCount         = &DataError{Kind: KindArgumentCount}
	ErrDuplicateArgument     = &DataError{Kind: KindDuplicateArgument}
	ErrNotSupported          = &DataError{Kind: KindNotSupported}
	ErrMissingFields         = &DataError{Kind: KindMissingFields}
	ErrParse                 = &DataError{Kind: KindParse}
	ErrRange                 = &DataError{Kind: KindRange}
	ErrType                  = &DataError{Kind: KindType}
	ErrUnresolvableReference = &DataError{Kind: KindUnresolvableReference}
	ErrCircularDependency    = &DataError{Kind: KindCircularDependency}
	ErrEvaluation            = &DataError{Kind: KindEvaluation}
	ErrNotFound              = &DataError{Kind: KindNotFound}
	ErrInvalidDefinition     = &DataError{Kind: KindInvalidDefinition}
	ErrInvalidSetting        = &DataError{Kind: KindInvalidSetting}
)

// KindOf reports the Kind of the first DataError in err's chain.
func KindOf(err error) Kind {
	for err != nil {
		if de, ok := err.(*DataError); ok {
			return de.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return KindUnknown
		}
		err = u.Unwrap()
	}
	return KindUnknown
}

// Common error constructors for consistent error creation

// NewArgumentCountError creates an error for surplus positional arguments
func NewArgumentCountError(op, keyword string, given, accepted int) *DataError {
	return &DataError{
		Kind:    KindArgumentCount,
		Op:      op,
		Keyword: keyword,
		Message: fmt.Sprintf("%d positional arguments given but only %d mandatory parameters can be bound", given, accepted),
	}
}

// NewDuplicateArgumentError creates an error for an argument supplied twice
func NewDuplicateArgumentError(op, keyword, name string) *DataError {
	return &DataError{
		Kind:    KindDuplicateArgument,
		Op:      op,
		Keyword: keyword,
		Column:  name,
		Message: "argument supplied more than once",
	}
}

// NewNotSupportedError creates an error for unimplemented features or formats
func NewNotSupportedError(op, what string) *DataError {
	return &DataError{
		Kind:    KindNotSupported,
		Op:      op,
		Message: fmt.Sprintf("%s is not supported", what),
	}
}

// NewMissingFieldsError creates an error naming every absent mandatory field
func NewMissingFieldsError(op, keyword string, fields []string, cause error) *DataError {
	return &DataError{
		Kind:    KindMissingFields,
		Op:      op,
		Keyword: keyword,
		Message: fmt.Sprintf("mandatory fields missing from data: %s", strings.Join(fields, ", ")),
		Cause:   cause,
	}
}

// NewParseError creates an error for input that cannot be interpreted
func NewParseError(op, message string, cause error) *DataError {
	return &DataError{
		Kind:    KindParse,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

// NewRangeError creates an error for requested rows absent from a dataset
func NewRangeError(op string, indices []int) *DataError {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = fmt.Sprint(idx)
	}
	return &DataError{
		Kind:    KindRange,
		Op:      op,
		Message: fmt.Sprintf("requested rows not present in data: %s", strings.Join(parts, ", ")),
	}
}

// NewTypeError creates an error for values of an unexpected type
func NewTypeError(op, column, message string) *DataError {
	return &DataError{
		Kind:    KindType,
		Op:      op,
		Column:  column,
		Message: message,
	}
}

// NewUnresolvableReferenceError creates an error for an expression naming
// something that is neither a column of its row nor a builtin
func NewUnresolvableReferenceError(op, column, name string) *DataError {
	return &DataError{
		Kind:    KindUnresolvableReference,
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("name '%s' is not defined in the row", name),
	}
}

// NewCircularDependencyError creates an error for expressions depending on themselves
func NewCircularDependencyError(op string, chain []string) *DataError {
	column := ""
	if len(chain) > 0 {
		column = chain[0]
	}
	return &DataError{
		Kind:    KindCircularDependency,
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("circular expression dependency: %s", strings.Join(chain, " -> ")),
	}
}

// NewEvaluationError creates an error for an expression that failed to evaluate
func NewEvaluationError(op, column, expression string, cause error) *DataError {
	return &DataError{
		Kind:    KindEvaluation,
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("evaluating %q: %v", expression, cause),
		Cause:   cause,
	}
}

// NewNotFoundError creates an error for an unknown keyword
func NewNotFoundError(op, keyword string) *DataError {
	return &DataError{
		Kind:    KindNotFound,
		Op:      op,
		Keyword: keyword,
		Message: "keyword is not registered",
	}
}

// NewInvalidDefinitionError creates an error for malformed keyword declarations
func NewInvalidDefinitionError(op, keyword, message string) *DataError {
	return &DataError{
		Kind:    KindInvalidDefinition,
		Op:      op,
		Keyword: keyword,
		Message: message,
	}
}

// NewInvalidSettingError creates an error for a setting value that fails validation
func NewInvalidSettingError(op, setting, message string) *DataError {
	return &DataError{
		Kind:    KindInvalidSetting,
		Op:      op,
		Message: fmt.Sprintf("setting %s: %s", setting, message),
	}
}
