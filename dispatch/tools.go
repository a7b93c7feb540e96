package dispatch

// Tool is an operation described in the OpenAI function-calling format.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the function part of a Tool.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

// ToolParameters is the JSON Schema of a function's arguments.
type ToolParameters struct {
	Type       string                  `json:"type"`
	Properties map[string]ToolProperty `json:"properties"`
	Required   []string                `json:"required"`
}

// ToolProperty describes one argument.
type ToolProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// ToolDefinitions describes every registered operation, built from the same schemas
// Dispatch validates against.
func ToolDefinitions() []Tool {
	tools := make([]Tool, 0, len(registry))
	for _, op := range registry {
		params := ToolParameters{
			Type:       "object",
			Properties: make(map[string]ToolProperty, len(op.Fields)),
			Required:   []string{},
		}
		for _, f := range op.Fields {
			params.Properties[f.Name] = ToolProperty{
				Type:        string(f.Kind),
				Description: f.Description,
				Default:     f.Default,
			}
			if f.Required {
				params.Required = append(params.Required, f.Name)
			}
		}
		tools = append(tools, Tool{
			Type: "function",
			Function: ToolFunction{
				Name:        op.Name,
				Description: op.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}
