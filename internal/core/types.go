package core

import (
	"time"
)

const (
	AppName    = "tuskmem"
	AppVersion = "0.1.0"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message types recorded in MessageMetadata.MessageType
const (
	MessageTypeText  = "text"
	MessageTypeCode  = "code"
	MessageTypeHTML  = "html"
	MessageTypeQuery = "query"
)

type MessageMetadata struct {
	Source      string `json:"source,omitempty"`
	ParsedBy    string `json:"parsedBy,omitempty"`
	RawLength   int    `json:"rawLength"`
	MessageType string `json:"messageType,omitempty"`
}

// Message is one utterance. Content always holds the full text.
type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	Timestamp      time.Time       `json:"timestamp"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	Metadata       MessageMetadata `json:"metadata"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Messages  []Message `json:"messages"`
}

// RawConversation is what a source reader hands to the pipeline before parsing.
type RawConversation struct {
	ConversationID string    `json:"conversationId"`
	WorkspaceID    string    `json:"workspaceId,omitempty"`
	Source         string    `json:"source"`
	Timestamp      time.Time `json:"timestamp"`
	LastModified   time.Time `json:"lastModified"`
	RawData        string    `json:"rawData"`
}

func IsKnownRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}
