package validate

import "testing"

func TestDefaultValidPayload(t *testing.T) {
	schema := `{"type":"object","properties":{"name":{"type":"string"},"age":{"type":"number"}},"required":["name"]}`
	payload := `{"name":"ferris","age":12}`

	if !Default(payload, schema) {
		t.Fatalf("expected payload to match schema")
	}
}

func TestDefaultMissingRequiredField(t *testing.T) {
	schema := `{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`
	payload := `{"age":12}`

	if Default(payload, schema) {
		t.Fatalf("expected payload missing required field to be rejected")
	}
}

func TestDefaultWrongLeafType(t *testing.T) {
	schema := `{"type":"object","properties":{"age":{"type":"number"}},"required":["age"]}`
	payload := `{"age":"twelve"}`

	if Default(payload, schema) {
		t.Fatalf("expected payload with wrong leaf type to be rejected")
	}
}

func TestDefaultNestedObject(t *testing.T) {
	schema := `{
		"type":"object",
		"properties":{
			"address":{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}
		},
		"required":["address"]
	}`
	valid := `{"address":{"city":"remoria"}}`
	invalid := `{"address":{}}`

	if !Default(valid, schema) {
		t.Fatalf("expected nested object payload to match")
	}
	if Default(invalid, schema) {
		t.Fatalf("expected nested object missing required field to be rejected")
	}
}

func TestDefaultMalformedJSON(t *testing.T) {
	schema := `{"type":"object"}`

	if Default("not json", schema) {
		t.Fatalf("expected malformed payload JSON to be rejected")
	}
	if Default(`{}`, "not json") {
		t.Fatalf("expected malformed schema JSON to be rejected")
	}
}

func TestValidateEventDefinitionRootMustBeObject(t *testing.T) {
	if err := ValidateEventDefinition(`{"type":"string"}`); err == nil {
		t.Fatalf("expected error for non-object root schema")
	}
}

func TestValidateEventDefinitionAcceptsRecursiveObjects(t *testing.T) {
	schema := `{
		"type":"object",
		"properties":{
			"billing":{"type":"object","properties":{"currency":{"type":"string"}},"required":["currency"]}
		},
		"required":["billing"]
	}`
	if err := ValidateEventDefinition(schema); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateEventDefinitionRejectsUnsupportedLeafType(t *testing.T) {
	schema := `{"type":"object","properties":{"tags":{"type":"array"}},"required":["tags"]}`
	if err := ValidateEventDefinition(schema); err == nil {
		t.Fatalf("expected error for unsupported leaf type")
	}
}

func TestValidateEventDefinitionRequiresPropertiesOnNestedObject(t *testing.T) {
	schema := `{"type":"object","properties":{"billing":{"type":"object"}},"required":["billing"]}`
	if err := ValidateEventDefinition(schema); err == nil {
		t.Fatalf("expected error when nested object omits properties")
	}
}
