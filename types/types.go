package types

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

type Request struct {
	Model           string    `json:"model,omitempty"`
	SystemPrompt    string    `json:"systemPrompt,omitempty"`
	Messages        []Message `json:"messages"`
	MaxOutputTokens int       `json:"maxOutputTokens,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"inputTokens,omitempty"`
	OutputTokens int `json:"outputTokens,omitempty"`
	TotalTokens  int `json:"totalTokens,omitempty"`
}

// Add accumulates other into u. A nil other is a no-op.
func (u *Usage) Add(other *Usage) {
	if u == nil || other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

type Response struct {
	Message Message `json:"message"`
	Usage   *Usage  `json:"usage,omitempty"`
}
