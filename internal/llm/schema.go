package llm

// BuildMenuJSONSchema returns the menu output contract as a JSON-Schema
// (draft 2020-12 subset) generic map. It is embedded in the structuring
// prompt and enforced locally by the sanitizer.
//
// Per-dish validation stops at the Dish shape: extra keys are tolerated
// here and dropped on decode; deeper semantic checks are a caller concern.
func BuildMenuJSONSchema() map[string]any {
	dish := map[string]any{
		"type":     "object",
		"required": []string{"name"},
		"properties": map[string]any{
			"name":                     map[string]any{"type": "string", "minLength": 1},
			"price":                    map[string]any{"type": []string{"number", "null"}},
			"description":              map[string]any{"type": []string{"string", "null"}},
			"ai_suggested_description": map[string]any{"type": []string{"string", "null"}},
		},
	}

	category := map[string]any{
		"type":     "object",
		"required": []string{"category", "dishes"},
		"properties": map[string]any{
			"category": map[string]any{"type": "string", "minLength": 1},
			"dishes":   map[string]any{"type": "array", "items": dish},
		},
	}

	return map[string]any{
		"type":     "object",
		"required": []string{"menu"},
		"properties": map[string]any{
			"menu": map[string]any{"type": "array", "items": category},
		},
	}
}
