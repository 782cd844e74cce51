package llm

// ChatCompletionRequest is the body posted to an upstream
// /chat/completions endpoint.
type ChatCompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`

	// Temperature is omitted for models that reject the parameter.
	Temperature *float64 `json:"temperature,omitempty"`
}

// NewStreamingRequest builds a streaming request carrying the system prompt
// followed by the user prompt. A nil temperature leaves the field out.
func NewStreamingRequest(model, system, user string, temperature *float64) *ChatCompletionRequest {
	return &ChatCompletionRequest{
		Model: model,
		Messages: []Message{
			NewTextMessage(RoleSystem, system),
			NewTextMessage(RoleUser, user),
		},
		Stream:      true,
		Temperature: temperature,
	}
}

// ProcessRequest is the body accepted by the proxy's /api/process endpoint.
type ProcessRequest struct {
	Prompt   string `json:"prompt"`
	Model    string `json:"model"`
	Reasoner bool   `json:"reasoner"`
}
