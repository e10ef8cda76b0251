package llm

// ItemFields lists the record keys in spreadsheet column order.
var ItemFields = []string{"Category", "Name", "Value", "Description"}

// BuildResponseSchema returns the output-shape constraint sent to Gemini
// (OpenAPI subset, upper-case type names): an array of objects with the four
// string fields, all required.
func BuildResponseSchema() map[string]any {
	props := map[string]any{}
	for _, f := range ItemFields {
		props[f] = map[string]any{"type": "STRING"}
	}
	return map[string]any{
		"type": "ARRAY",
		"items": map[string]any{
			"type":       "OBJECT",
			"properties": props,
			"required":   requiredFields(),
		},
	}
}

// BuildValidationSchema returns the same shape as a JSON Schema, used to
// validate the model output locally before accepting it.
func BuildValidationSchema() map[string]any {
	props := map[string]any{}
	for _, f := range ItemFields {
		props[f] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           props,
			"required":             requiredFields(),
		},
	}
}

// order the model sees
func requiredFields() []string {
	return []string{"Name", "Value", "Category", "Description"}
}
