// Package types defines the shared types used across all auricle packages.
//
// These types form the lingua franca between the audio pipeline, the session
// controller, the chat providers, and the archive. They are intentionally
// minimal — each package defines its own domain types, but cross-cutting data
// structures live here to avoid circular imports.
package types

// Conversation roles. The assistant role covers every machine-generated turn,
// regardless of which responder produced it.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is a single entry in a conversation history: one utterance by one
// party. Histories are append-only and ordered; within an exchange the user
// turn always precedes the assistant turn.
type Turn struct {
	// Role is one of "user", "assistant", or "system".
	Role string

	// Content is the text of the turn. For user turns this is the transcript
	// of the spoken utterance; for assistant turns it is the responder output.
	Content string
}

// UserTurn is shorthand for a Turn with the user role.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn is shorthand for a Turn with the assistant role.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}
