// Package schema validates configuration files against the embedded
// JSON schema.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/lambda-feedback/respawn/util"
)

//go:embed config.json
var configSchema json.RawMessage
var configSchemaLoader = gojsonschema.NewBytesLoader(configSchema)

type Schema struct {
	schema *gojsonschema.Schema
}

func New() (*Schema, error) {
	schema, err := gojsonschema.NewSchema(configSchemaLoader)
	if err != nil {
		return nil, err
	}

	return &Schema{schema: schema}, nil
}

// MustNew is like New, but panics if the embedded schema is invalid.
func MustNew() *Schema {
	return util.Must(New())
}

// ValidationError lists the violations of a configuration file.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Errors, "; "))
}

func (s *Schema) Validate(data map[string]any) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return err
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}

	return &ValidationError{Errors: violations}
}
