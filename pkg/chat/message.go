package chat

// Role defines turn roles in a conversation.
type Role string

const (
	// RoleSystem is for system instructions.
	RoleSystem Role = "system"

	// RoleUser is for the child's turns.
	RoleUser Role = "user"

	// RoleAssistant is for kibo's replies.
	RoleAssistant Role = "assistant"
)

// Turn is one dialogue message. Turns are append-only: the full ordered
// history is replayed verbatim to the model on every exchange.
type Turn struct {
	// Role identifies the speaker.
	Role Role

	// Content is the text content of the turn.
	Content string

	// ImageURL carries the picture on the opening user turn.
	// Either a data URL or an https URL; empty on all later turns.
	ImageURL string
}

// NewUserTurn creates a plain user turn.
func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// NewImageTurn creates the opening user turn carrying the picture.
func NewImageTurn(content, imageURL string) Turn {
	return Turn{Role: RoleUser, Content: content, ImageURL: imageURL}
}

// NewAssistantTurn creates an assistant turn.
func NewAssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// LatestUserText returns the content of the most recent user turn,
// or "" if the history has none.
func LatestUserText(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			return turns[i].Content
		}
	}
	return ""
}
