package store

import (
	"database/sql"
	"fmt"
	"time"
)

// User represents an account. Identity comes from the auth layer; this row
// carries profile fields only.
type User struct {
	ID              string `json:"id"`
	Email           string `json:"email,omitempty"`
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	CreatedAt       int64  `json:"createdAt"` // unix ms
	UpdatedAt       int64  `json:"updatedAt"` // unix ms
}

// GetUser retrieves a user by ID. Returns nil, nil when not found.
func (s *Store) GetUser(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := &User{}
	var email, first, last, avatar sql.NullString
	err := s.db.QueryRow(`
	SELECT id, email, first_name, last_name, profile_image_url, created_at, updated_at
	FROM users WHERE id = ?`, id).Scan(
		&u.ID, &email, &first, &last, &avatar, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.Email = email.String
	u.FirstName = first.String
	u.LastName = last.String
	u.ProfileImageURL = avatar.String
	return u, nil
}

// UpsertUser inserts a user or refreshes their profile fields.
func (s *Store) UpsertUser(u *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if u.CreatedAt == 0 {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err := s.db.Exec(`
	INSERT INTO users (id, email, first_name, last_name, profile_image_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		email = excluded.email,
		first_name = excluded.first_name,
		last_name = excluded.last_name,
		profile_image_url = excluded.profile_image_url,
		updated_at = excluded.updated_at`,
		u.ID,
		sql.NullString{String: u.Email, Valid: u.Email != ""},
		sql.NullString{String: u.FirstName, Valid: u.FirstName != ""},
		sql.NullString{String: u.LastName, Valid: u.LastName != ""},
		sql.NullString{String: u.ProfileImageURL, Valid: u.ProfileImageURL != ""},
		u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return u, nil
}

// EnsureUser creates a bare user row if one does not exist. The auth layer
// calls this so that foreign keys hold for first-time callers.
func (s *Store) EnsureUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	_, err := s.db.Exec(`
	INSERT INTO users (id, created_at, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(id) DO NOTHING`, id, now, now)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}
