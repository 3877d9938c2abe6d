package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ArgValidator checks tool arguments against the tool's declared schema.
type ArgValidator struct{}

// NewArgValidator creates a new validator.
func NewArgValidator() *ArgValidator {
	return &ArgValidator{}
}

// Validate checks args against schema. An empty schema always passes.
func (v *ArgValidator) Validate(schema []byte, args map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("arguments are not JSON encodable: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
