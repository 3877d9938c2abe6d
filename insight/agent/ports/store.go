package agentports

import (
	"context"
	"time"
)

// Turn represents a conversational exchange.
type Turn struct {
	Role      string         `json:"role"` // "user" | "assistant"
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"timestamp"`
}

// ConversationStore persists conversation turns and tool artifacts.
type ConversationStore interface {
	SaveTurn(ctx context.Context, conversationID string, turn Turn) error
	LoadTurns(ctx context.Context, conversationID string, k int) ([]Turn, error) // last-k turns, oldest first
	AppendToolArtifact(ctx context.Context, conversationID, name string, payload []byte) error
}
