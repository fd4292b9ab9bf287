package translator

import "poe-router/internal/models"

// NormalizeTools folds the legacy "functions" declaration into the canonical
// tool list. When functions are present they replace any supplied tools.
func NormalizeTools(tools []models.Tool, functions []models.FunctionDefinition) []models.Tool {
	if len(functions) == 0 {
		if len(tools) == 0 {
			return []models.Tool{}
		}
		return tools
	}

	out := make([]models.Tool, 0, len(functions))
	for _, fn := range functions {
		out = append(out, models.Tool{Type: "function", Function: fn})
	}
	return out
}
