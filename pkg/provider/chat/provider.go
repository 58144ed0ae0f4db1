// Package chat defines the response-generation boundary of the assistant.
//
// A Responder turns a transcribed user utterance plus the running dialogue
// history into a single assistant reply. The interface is deliberately
// batch-shaped: the session controller hands over one finished utterance at a
// time and waits for one complete answer, so streaming surfaces are left to
// the concrete implementations.
//
// Implementations live in subpackages:
//
//   - chat/openai: the OpenAI chat completions API via the official SDK.
//   - chat/anyllm: any backend supported by github.com/mozilla-ai/any-llm-go
//     (Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, llama.cpp, ...).
//   - chat/rules: a deterministic offline rule table, useful without network
//     access or credentials.
//   - chat/mock: a scriptable implementation for tests.
package chat

import (
	"context"

	"github.com/auriclehq/auricle/pkg/types"
)

// Responder produces an assistant reply for one user utterance.
type Responder interface {
	// Respond generates a reply to text given the prior dialogue history.
	// History is ordered oldest first and does not yet contain text itself;
	// implementations decide how much of it to replay to their backend.
	//
	// The returned reply must be non-empty on success. Cancellation and
	// per-request deadlines are honored through ctx.
	Respond(ctx context.Context, text string, history []types.Turn) (string, error)
}
