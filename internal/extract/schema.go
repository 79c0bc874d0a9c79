package extract

// BuildConditionsJSONSchema returns the JSON-Schema the extractor's reply
// must satisfy: a list of category objects, each with labeled items, each
// item with conditions carrying content and a non-empty pages list. We
// validate locally; the prompt states the same contract.
func BuildConditionsJSONSchema() map[string]any {
	condition := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string", "minLength": 1},
			"section": map[string]any{"type": "string"},
			"pages": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "integer", "minimum": 1},
				"minItems": 1,
			},
			// Optional per-page polygon geometry.
			"bbox": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "number"},
				},
			},
		},
		"required": []string{"content", "pages"},
	}

	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"label": map[string]any{"type": "string"},
			"conditions": map[string]any{
				"type":  "array",
				"items": condition,
			},
		},
		"required": []string{"label", "conditions"},
	}

	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": map[string]any{"type": "string", "minLength": 1},
				"items": map[string]any{
					"type":  "array",
					"items": item,
				},
			},
			"required": []string{"category", "items"},
		},
	}
}
