package llm

import "context"

// Reply is one generated assistant response.
type Reply struct {
	Text string

	// Degraded is true when the text is canned fallback content rather
	// than model output.
	Degraded bool
}

// Client generates chat replies, follow-up questions, input suggestions,
// and embeddings. The live implementation talks to the model service; the
// fallback implementation serves deterministic canned content.
type Client interface {
	// GenerateReply produces the assistant reply for a fully assembled
	// prompt (memory context plus the current message).
	GenerateReply(ctx context.Context, prompt string) (*Reply, error)

	// GenerateFollowups produces up to maxN follow-up questions the user
	// might ask next, given the exchange that just happened.
	GenerateFollowups(ctx context.Context, userInput, reply string, maxN int) ([]string, error)

	// GenerateSuggestions completes a partial user input into up to maxN
	// full suggested messages.
	GenerateSuggestions(ctx context.Context, partial string, maxN int) ([]string, error)

	// Embed converts text into an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)
}
