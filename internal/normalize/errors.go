package normalize

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrUnknownSchema is the sentinel wrapped by UnknownSchemaError.
	ErrUnknownSchema = eris.New("normalize: unknown schema")

	// ErrRowFiltered marks rows a source deliberately excludes (private DOE
	// facilities, DOI rows with no announced funding). They are counted
	// separately from errors.
	ErrRowFiltered = eris.New("normalize: row filtered")
)

// SchemaError reports a row that lacks the fields needed to identify a project.
type SchemaError struct {
	Schema string
	File   string
	Row    int
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("normalize: %s row %d in %s: %s", e.Schema, e.Row, e.File, e.Reason)
}

// UnknownSchemaError reports an input whose schema could not be resolved,
// either because no schema matches its name or because its header lacks
// columns the schema requires.
type UnknownSchemaError struct {
	Source  string
	Schema  string
	Missing []string
}

func (e *UnknownSchemaError) Error() string {
	if e.Schema == "" {
		return fmt.Sprintf("normalize: no schema matches %q", e.Source)
	}
	return fmt.Sprintf("normalize: %s header for %q is missing columns: %s",
		e.Schema, e.Source, strings.Join(e.Missing, ", "))
}

func (e *UnknownSchemaError) Unwrap() error {
	return ErrUnknownSchema
}

// FieldError reports a value that could not be parsed in strict mode.
type FieldError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("normalize: row %d field %s=%q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
