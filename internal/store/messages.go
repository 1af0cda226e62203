package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a chat conversation. Messages are append-only.
type Message struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId,omitempty"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Metadata  string `json:"metadata,omitempty"` // JSON
	CreatedAt int64  `json:"createdAt"`          // unix ms
}

// ListMessages returns a user's messages in chronological order. When
// projectID is non-empty the listing is scoped to that project's conversation.
func (s *Store) ListMessages(userID, projectID string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
	SELECT id, user_id, project_id, role, content, metadata, created_at
	FROM messages WHERE user_id = ?`
	args := []interface{}{userID}

	if projectID != "" {
		query += ` AND project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m := &Message{}
		var projID, metadata sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &projID, &m.Role, &m.Content,
			&metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.ProjectID = projID.String
		m.Metadata = metadata.String
		messages = append(messages, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// CreateMessage appends a message and returns it.
func (s *Store) CreateMessage(m *Message) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UnixMilli()

	_, err := s.db.Exec(`
	INSERT INTO messages (id, user_id, project_id, role, content, metadata, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID,
		sql.NullString{String: m.ProjectID, Valid: m.ProjectID != ""},
		m.Role, m.Content,
		sql.NullString{String: m.Metadata, Valid: m.Metadata != ""},
		m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return m, nil
}
