package store

// Conversation is an append-only chat thread owned by exactly one user.
type Conversation struct {
	ID        int32
	UID       string
	CreatorID int32
	Title     string
	CreatedTs int64
	UpdatedTs int64
}

type FindConversation struct {
	ID        *int32
	UID       *string
	CreatorID *int32
}

type UpdateConversation struct {
	ID        int32
	Title     *string
	UpdatedTs *int64
}

type DeleteConversation struct {
	ID int32
}

// MessageRole identifies the author of a message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "USER"
	MessageRoleAssistant MessageRole = "ASSISTANT"
)

// Message is immutable once created.
type Message struct {
	ID               int32
	UID              string
	ConversationID   int32
	Role             MessageRole
	Content          string
	GeneratedCommand string
	Confidence       *float64
	CreatedTs        int64
}

type FindMessage struct {
	ID             *int32
	ConversationID *int32
	Role           *MessageRole
	Limit          *int
}

type DeleteMessage struct {
	ConversationID *int32
}
