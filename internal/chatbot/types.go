package chatbot

// Message roles accepted on the wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Page describes the page the visitor is chatting from.
type Page struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ContextChunk is a retrieved fragment of site content plus its similarity
// score and provenance metadata. It is read-only from the pipeline's
// perspective.
type ContextChunk struct {
	ID           string
	Content      string
	Source       string
	PageTitle    string
	SectionTitle string
	Metadata     map[string]interface{}
	Similarity   float64
}

// URL returns the chunk's page URL when the indexer recorded one.
func (c ContextChunk) URL() string {
	if c.Metadata == nil {
		return ""
	}
	if u, ok := c.Metadata["url"].(string); ok {
		return u
	}
	return ""
}

// Source is the provenance record surfaced to the chat widget.
type Source struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	Title      string  `json:"title"`
	Section    string  `json:"section,omitempty"`
	URL        string  `json:"url,omitempty"`
	Similarity float64 `json:"similarity"`
}

// Usage captures token accounting reported by the completion model.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the parsed reply from the chat completion endpoint.
type Completion struct {
	Reply string
	Model string
	Usage Usage
}

// Request is one incoming chat exchange from the widget.
type Request struct {
	SessionID string    `json:"sessionId"`
	VisitorID string    `json:"visitorId"`
	Messages  []Message `json:"messages"`
	Page      *Page     `json:"page"`
	Referrer  string    `json:"referrer"`
	UserAgent string    `json:"userAgent"`
}

// Response is what the widget receives back.
type Response struct {
	Reply     string   `json:"reply"`
	SessionID string   `json:"sessionId"`
	Sources   []Source `json:"sources"`
}

// Turn is the unit handed to the transcript store: the user message and
// whichever assistant reply was produced, plus session bootstrap data.
type Turn struct {
	SessionID        string
	VisitorID        string
	Page             *Page
	Referrer         string
	UserAgent        string
	UserMessage      Message
	AssistantMessage Message
	Sources          []Source
	Model            string
	Usage            Usage
}
