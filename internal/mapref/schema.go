package mapref

// BuildMappingJSONSchema returns the JSON-Schema the mapper's reply must
// satisfy. Index range checks are input-dependent and run separately; the
// schema only pins structure.
func BuildMappingJSONSchema() map[string]any {
	matchedBlock := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"block_index": map[string]any{"type": "integer", "minimum": 0},
			"type":        map[string]any{"type": "string"},
		},
		"required": []string{"block_index", "type"},
	}

	condition := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string"},
			"blocks": map[string]any{
				"type":  "array",
				"items": matchedBlock,
			},
		},
		"required": []string{"blocks"},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"num_blocks":     map[string]any{"type": "integer", "minimum": 0},
			"num_conditions": map[string]any{"type": "integer", "minimum": 0},
			"conditions": map[string]any{
				"type":  "array",
				"items": condition,
			},
		},
		"required": []string{"num_blocks", "num_conditions", "conditions"},
	}
}
