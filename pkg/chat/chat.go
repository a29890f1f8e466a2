// Package chat provides the conversation model client for kibo.
//
// The package abstracts "look at a picture and talk about it" behind a small
// Client interface with two implementations: OpenAIClient speaks to any
// OpenAI-compatible chat-completion endpoint with vision and tool support,
// and Scripted produces canned replies offline so the toy keeps working
// without network access or credentials.
//
// Example usage:
//
//	client, _ := chat.NewOpenAIClient(
//	    chat.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    chat.WithModel("gpt-4o-mini"),
//	)
//	defer client.Close()
//
//	reply, _ := client.StartConversation(ctx, imageDataURL)
//	// reply.Text is the opening line, reply.Color an optional background color
package chat

import "context"

// Client is the conversation model interface.
// Both the live endpoint client and the scripted fallback implement it.
type Client interface {
	// StartConversation sends the image with the opening prompt and returns
	// the assistant's first reply.
	StartConversation(ctx context.Context, imageURL string) (*Reply, error)

	// ContinueConversation replays the full turn history and returns the
	// next assistant reply.
	ContinueConversation(ctx context.Context, turns []Turn) (*Reply, error)

	// Close releases any resources held by the client.
	Close() error
}

// Reply is the assistant's answer for one exchange.
type Reply struct {
	// Text is the spoken reply.
	Text string

	// Color is an optional background color command (hex or CSS color name).
	// Empty means no color change was requested.
	Color string
}
