// Package llm holds the wire types exchanged with OpenAI-compatible chat
// completion upstreams and the error envelope returned by bpmnchat servers.
package llm

// Message roles understood by chat completion upstreams.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewTextMessage creates a message with the given role and text.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Content: text}
}
