// Package validate implements the payload-schema predicate the broker
// core treats as a plug-in: Validate(payload, schema) -> bool, and the
// registration-time structural gate the "validate_event_def" feature
// flag enables.
package validate

import (
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"
)

// Predicate is the plug-in signature the broker core consumes.
type Predicate func(payload, schema string) bool

// Default is the payload validator: it compiles schema as a JSON
// Schema document and validates payload against it. Malformed JSON or
// an uncompilable schema on either side is treated as invalid.
func Default(payload, schema string) bool {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	payloadLoader := gojsonschema.NewStringLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, payloadLoader)
	if err != nil {
		return false
	}
	return result.Valid()
}

// schemaNode mirrors the recursive JSON-Schema-like shape ValidateEventDefinition
// enumerates: type, properties, required.
type schemaNode struct {
	Type       string                `json:"type"`
	Properties map[string]schemaNode `json:"properties"`
	Required   []string              `json:"required"`
}

// ValidateEventDefinition enforces the structural checks §4.3 requires
// when the validate_event_def feature flag is enabled: the root must
// be an object, and every property must declare type ∈ {string,
// number, object}, with object properties validated recursively. This
// is a narrower business rule than "is this a well-formed JSON
// Schema" — it restricts the registrable type vocabulary on purpose,
// so it is enforced directly rather than delegated to a general-purpose
// schema compiler.
func ValidateEventDefinition(schema string) error {
	var node schemaNode
	if err := json.Unmarshal([]byte(schema), &node); err != nil {
		return errInvalid("payload schema is not valid JSON")
	}
	return validateNode(node, true)
}

func validateNode(node schemaNode, isRoot bool) error {
	if isRoot && node.Type != "object" {
		return errInvalid("root schema must declare type \"object\"")
	}

	for name, prop := range node.Properties {
		switch prop.Type {
		case "string", "number":
			// leaf types need nothing further
		case "object":
			if prop.Properties == nil {
				return errInvalid("property " + name + " of type object must declare properties")
			}
			if prop.Required == nil {
				return errInvalid("property " + name + " of type object must declare required")
			}
			if err := validateNode(prop, false); err != nil {
				return err
			}
		default:
			return errInvalid("property " + name + " has unsupported type " + prop.Type)
		}
	}
	return nil
}

type validationError struct{ message string }

func (e *validationError) Error() string { return e.message }

func errInvalid(message string) error {
	return &validationError{message: message}
}
