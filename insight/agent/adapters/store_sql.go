package adapters

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

// SQLConversationStore implements ConversationStore over the migrated state database.
type SQLConversationStore struct {
	db *sql.DB
}

// NewSQLConversationStore creates a new conversation store.
func NewSQLConversationStore(db *sql.DB) *SQLConversationStore {
	return &SQLConversationStore{db: db}
}

// SaveTurn saves a conversation turn to the database.
func (s *SQLConversationStore) SaveTurn(ctx context.Context, conversationID string, turn ports.Turn) error {
	turnJSON, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversation_turns (conversation_id, turn_data, created_at) VALUES (?, ?, ?)`,
		conversationID, string(turnJSON), createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}

	return nil
}

// LoadTurns loads the last k turns for a conversation, oldest first.
func (s *SQLConversationStore) LoadTurns(ctx context.Context, conversationID string, k int) ([]ports.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT turn_data FROM conversation_turns
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, conversationID, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []ports.Turn
	for rows.Next() {
		var turnJSON string
		if err := rows.Scan(&turnJSON); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}

		var turn ports.Turn
		if err := json.Unmarshal([]byte(turnJSON), &turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}

		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}

	// Reverse to get chronological order (oldest first)
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

// AppendToolArtifact records an artifact (chart or report path) produced by a tool.
func (s *SQLConversationStore) AppendToolArtifact(ctx context.Context, conversationID, name string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_artifacts (conversation_id, tool_name, payload, created_at) VALUES (?, ?, ?, ?)`,
		conversationID, name, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save tool artifact: %w", err)
	}
	return nil
}

// Artifact is one recorded tool output.
type Artifact struct {
	Tool      string `json:"tool"`
	Payload   string `json:"payload"`
	CreatedAt string `json:"created_at"`
}

// ListArtifacts returns the artifacts of a conversation, oldest first.
func (s *SQLConversationStore) ListArtifacts(ctx context.Context, conversationID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tool_name, payload, created_at FROM tool_artifacts WHERE conversation_id = ? ORDER BY id`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Tool, &a.Payload, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Ensure SQLConversationStore implements the ConversationStore interface.
var _ ports.ConversationStore = (*SQLConversationStore)(nil)
