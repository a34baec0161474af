package domain

// Conversation roles understood by the upstream provider.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ChatMessage is a single conversation turn sent upstream.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the inbound body of POST /chat.
type ChatRequest struct {
	Message *string `json:"message"`
}

// ChatResponse is the outbound body of a successful POST /chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// Completion describes one upstream completion call.
type Completion struct {
	Model       string
	Temperature float64
	Messages    []ChatMessage
}
