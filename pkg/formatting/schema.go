package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaViolation is returned when parsed content does not satisfy its JSON schema.
var ErrSchemaViolation = errors.New("response violates schema")

// Schema is a JSON schema document expressed as a Go map.
type Schema map[string]any

// ParseValid extracts JSON from content, validates it against schema and
// unmarshals it into T. A nil schema skips validation.
func ParseValid[T any](content string, schema Schema) (T, error) {
	var result T

	raw, err := extractJSON(content)
	if err != nil {
		return result, err
	}

	if schema != nil {
		if err := Validate(raw, schema); err != nil {
			return result, err
		}
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return result, nil
}

// Validate checks a JSON document against schema.
func Validate(raw []byte, schema Schema) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(map[string]any(schema)),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(errs, "; "))
	}
	return nil
}

// JSON renders schema as indented JSON for inclusion in prompts.
func (s Schema) JSON() string {
	data, err := json.MarshalIndent(map[string]any(s), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
