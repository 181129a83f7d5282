package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"admissions-workers/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON Schema for job variables.
type Schema struct {
	schema *gojsonschema.Schema
}

// ValidationError is one failed constraint.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// MustCompile compiles a schema literal and panics if it is malformed.
// Worker schemas are package-level constants.
func MustCompile(schemaJSON string) *Schema {
	s, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

func Compile(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// Check returns every constraint the document violates, sorted by field.
func (s *Schema) Check(document interface{}) ([]ValidationError, error) {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}

	out := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		field := re.Field()
		// required errors point at the parent; name the missing property instead
		if prop, ok := re.Details()["property"].(string); ok && re.Type() == "required" {
			if field == "(root)" {
				field = prop
			} else {
				field = field + "." + prop
			}
		}
		out = append(out, ValidationError{Field: field, Message: re.Description(), Code: strings.ToUpper(re.Type())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out, nil
}

// Validate returns an InvalidInput error listing the violations, or nil.
func (s *Schema) Validate(document interface{}) error {
	violations, err := s.Check(document)
	if err != nil {
		return errors.NewInvalidInputError(err.Error())
	}
	if len(violations) == 0 {
		return nil
	}
	return errors.NewInvalidInputError(strings.Join(Messages(violations), "; ")).
		WithMetadata("fields", Fields(violations))
}

// Messages renders violations as "field: message".
func Messages(violations []ValidationError) []string {
	out := make([]string, len(violations))
	for i, v := range violations {
		out[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return out
}

func Fields(violations []ValidationError) []string {
	out := make([]string, len(violations))
	for i, v := range violations {
		out[i] = v.Field
	}
	return out
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
)

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhone accepts E.164 numbers, the only form SNS delivers SMS to.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}
