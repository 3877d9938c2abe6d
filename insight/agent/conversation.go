package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// DefaultMaxHistory is the number of turns a session retains.
	DefaultMaxHistory = 50

	noHistory = "No previous conversation."
)

// ErrNoStore is returned by Restore when turns are not persisted.
var ErrNoStore = errors.New("conversation store not configured")

// SessionInfo describes the active session. Active is false before the first
// turn and after Clear.
type SessionInfo struct {
	Active       bool      `json:"-"`
	SessionID    string    `json:"session_id"`
	StartTime    time.Time `json:"start_time"`
	MessageCount int       `json:"message_count"`
	Duration     float64   `json:"duration_seconds"`
}

// MarshalJSON renders an inactive session as {"status":"no_active_session"}.
func (s SessionInfo) MarshalJSON() ([]byte, error) {
	if !s.Active {
		return json.Marshal(map[string]string{"status": "no_active_session"})
	}
	type info SessionInfo
	return json.Marshal(info(s))
}

// Conversation is the bounded, ordered turn history of one session.
type Conversation struct {
	mu         sync.Mutex
	turns      []ports.Turn
	maxHistory int
	sessionID  string
	startTime  time.Time

	store  ports.ConversationStore // optional
	logger zerolog.Logger
	now    func() time.Time
}

// NewConversation creates an empty conversation. A maxHistory below 1 uses
// DefaultMaxHistory; store may be nil.
func NewConversation(maxHistory int, store ports.ConversationStore, logger zerolog.Logger) *Conversation {
	if maxHistory < 1 {
		maxHistory = DefaultMaxHistory
	}
	return &Conversation{
		maxHistory: maxHistory,
		store:      store,
		logger:     logger.With().Str("component", "conversation").Logger(),
		now:        time.Now,
	}
}

func (c *Conversation) newSessionID(t time.Time) string {
	return fmt.Sprintf("%s_%s", t.Format("20060102_150405"), uuid.NewString()[:8])
}

// Append records a turn, starting a session when none is active. Persistence
// failures are logged and otherwise ignored.
func (c *Conversation) Append(ctx context.Context, role, content string, metadata map[string]any) ports.Turn {
	c.mu.Lock()
	now := c.now()
	if c.sessionID == "" {
		c.sessionID = c.newSessionID(now)
		c.startTime = now
		c.logger.Info().Str("session_id", c.sessionID).Msg("Started new session")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	turn := ports.Turn{Role: role, Content: content, Metadata: metadata, CreatedAt: now}
	c.turns = append(c.turns, turn)
	if over := len(c.turns) - c.maxHistory; over > 0 {
		c.turns = append([]ports.Turn(nil), c.turns[over:]...)
	}
	sessionID := c.sessionID
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SaveTurn(ctx, sessionID, turn); err != nil {
			c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to persist turn")
		}
	}
	return turn
}

// Window returns the last n turns, oldest first.
func (c *Conversation) Window(n int) []ports.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window(n)
}

func (c *Conversation) window(n int) []ports.Turn {
	if n <= 0 || len(c.turns) == 0 {
		return nil
	}
	if n > len(c.turns) {
		n = len(c.turns)
	}
	return append([]ports.Turn(nil), c.turns[len(c.turns)-n:]...)
}

// FormattedHistory renders the last n turns as "User: ..." and
// "Assistant: ..." lines.
func (c *Conversation) FormattedHistory(n int) string {
	recent := c.Window(n)
	if len(recent) == 0 {
		return noHistory
	}
	lines := make([]string, len(recent))
	for i, t := range recent {
		role := "Assistant"
		if t.Role == RoleUser {
			role = "User"
		}
		lines[i] = role + ": " + t.Content
	}
	return strings.Join(lines, "\n")
}

// Turns returns a copy of the whole history.
func (c *Conversation) Turns() []ports.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ports.Turn(nil), c.turns...)
}

// Clear drops the history and ends the session.
func (c *Conversation) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
	c.sessionID = ""
	c.startTime = time.Time{}
	c.logger.Info().Msg("Cleared conversation")
}

// Info reports on the active session.
func (c *Conversation) Info() SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == "" {
		return SessionInfo{}
	}
	return SessionInfo{
		Active:       true,
		SessionID:    c.sessionID,
		StartTime:    c.startTime,
		MessageCount: len(c.turns),
		Duration:     c.now().Sub(c.startTime).Seconds(),
	}
}

// Restore replaces the history with the persisted turns of sessionID and
// continues that session.
func (c *Conversation) Restore(ctx context.Context, sessionID string) error {
	if c.store == nil {
		return ErrNoStore
	}
	turns, err := c.store.LoadTurns(ctx, sessionID, c.maxHistory)
	if err != nil {
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = turns
	c.sessionID = sessionID
	c.startTime = c.now()
	if len(turns) > 0 {
		c.startTime = turns[0].CreatedAt
	}
	c.logger.Info().Str("session_id", sessionID).Int("turns", len(turns)).Msg("Restored session")
	return nil
}
