package llmstream

// Message roles understood by every provider.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// DefaultMaxTokens is the completion budget sent with every request.
const DefaultMaxTokens = 4096

// DefaultTemperature is the sampling temperature used when none is configured.
const DefaultTemperature = 0.7

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelEntry is one row of the model catalog.
// Several entries may share the same Provider instance.
type ModelEntry struct {
	ID          string
	DisplayName string
	Provider    Provider
}

// Request is a fully built provider request, ready for a Transport.
type Request struct {
	Model    string
	Provider string
	URL      string
	Headers  map[string]string
	Body     []byte
}
