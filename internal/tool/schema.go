package tool

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError reports that a tool call's arguments failed schema
// validation.
type ValidationError struct {
	ToolName string
	Errors   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %s", e.ToolName, strings.Join(e.Errors, "; "))
}

// ValidateArgs checks raw arguments against a tool's JSON Schema, returning
// a *ValidationError describing every violation when invalid.
func ValidateArgs(t Tool, args json.RawMessage) error {
	schema := t.Schema()
	if len(schema) == 0 {
		return nil
	}

	schemaLoader := gojsonschema.NewBytesLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed for tool %q: %w", t.Name(), err)
	}

	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return &ValidationError{ToolName: t.Name(), Errors: errs}
	}

	return nil
}
