package store

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Tip is a piece of advice shown to users, grouped by category.
type Tip struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Category  string `json:"category"`
	Icon      string `json:"icon,omitempty"`
	Order     int    `json:"order"`
	IsActive  bool   `json:"isActive"`
	CreatedAt int64  `json:"createdAt"` // unix ms
	UpdatedAt int64  `json:"updatedAt"` // unix ms
}

// TipUpdate carries optional fields for UpdateTip.
type TipUpdate struct {
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	Category *string `json:"category,omitempty"`
	Icon     *string `json:"icon,omitempty"`
	Order    *int    `json:"order,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// seedTip is the YAML shape for tip seed files.
type seedTip struct {
	Title    string `yaml:"title"`
	Content  string `yaml:"content"`
	Category string `yaml:"category"`
	Icon     string `yaml:"icon"`
	Order    int    `yaml:"order"`
}

// ListTips returns active tips, optionally scoped to a category, sorted by
// explicit order then recency.
func (s *Store) ListTips(category string) ([]*Tip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
	SELECT id, title, content, category, icon, ord, is_active, created_at, updated_at
	FROM tips WHERE is_active = 1`
	args := []interface{}{}

	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY ord, created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tips: %w", err)
	}
	defer rows.Close()

	var tips []*Tip
	for rows.Next() {
		t := &Tip{}
		var icon sql.NullString
		if err := rows.Scan(&t.ID, &t.Title, &t.Content, &t.Category, &icon,
			&t.Order, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tip: %w", err)
		}
		t.Icon = icon.String
		tips = append(tips, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tips: %w", err)
	}

	return tips, nil
}

// GetTip retrieves a tip by ID. Returns nil, nil when not found.
func (s *Store) GetTip(id string) (*Tip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := &Tip{}
	var icon sql.NullString
	err := s.db.QueryRow(`
	SELECT id, title, content, category, icon, ord, is_active, created_at, updated_at
	FROM tips WHERE id = ?`, id).Scan(
		&t.ID, &t.Title, &t.Content, &t.Category, &icon,
		&t.Order, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tip: %w", err)
	}

	t.Icon = icon.String
	return t, nil
}

// CreateTip inserts a tip and returns it.
func (s *Store) CreateTip(t *Tip) (*Tip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createTipLocked(t)
}

func (s *Store) createTipLocked(t *Tip) (*Tip, error) {
	now := time.Now().UnixMilli()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Category == "" {
		t.Category = "general"
	}
	t.IsActive = true
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.Exec(`
	INSERT INTO tips (id, title, content, category, icon, ord, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Content, t.Category,
		sql.NullString{String: t.Icon, Valid: t.Icon != ""},
		t.Order, t.IsActive, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create tip: %w", err)
	}

	return t, nil
}

// UpdateTip applies the given updates. Returns nil, nil when not found.
func (s *Store) UpdateTip(id string, upd TipUpdate) (*Tip, error) {
	s.mu.Lock()

	query := `UPDATE tips SET updated_at = ?`
	args := []interface{}{time.Now().UnixMilli()}

	if upd.Title != nil {
		query += `, title = ?`
		args = append(args, *upd.Title)
	}
	if upd.Content != nil {
		query += `, content = ?`
		args = append(args, *upd.Content)
	}
	if upd.Category != nil {
		query += `, category = ?`
		args = append(args, *upd.Category)
	}
	if upd.Icon != nil {
		query += `, icon = ?`
		args = append(args, *upd.Icon)
	}
	if upd.Order != nil {
		query += `, ord = ?`
		args = append(args, *upd.Order)
	}
	if upd.IsActive != nil {
		query += `, is_active = ?`
		args = append(args, *upd.IsActive)
	}

	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to update tip: %w", err)
	}
	rows, err := result.RowsAffected()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}

	return s.GetTip(id)
}

// DeleteTip removes a tip.
func (s *Store) DeleteTip(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM tips WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete tip: %w", err)
	}
	return nil
}

// SeedTips loads tips from a YAML file. Seeding only runs against an empty
// tips table so restarts do not duplicate rows.
func (s *Store) SeedTips(path string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tips`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tips: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read tips seed: %w", err)
	}

	var seeds []seedTip
	if err := yaml.Unmarshal(raw, &seeds); err != nil {
		return 0, fmt.Errorf("failed to parse tips seed: %w", err)
	}

	inserted := 0
	for _, seed := range seeds {
		if seed.Title == "" || seed.Content == "" {
			continue
		}
		_, err := s.createTipLocked(&Tip{
			Title:    seed.Title,
			Content:  seed.Content,
			Category: seed.Category,
			Icon:     seed.Icon,
			Order:    seed.Order,
		})
		if err != nil {
			return inserted, err
		}
		inserted++
	}

	s.logger.Info().Int("count", inserted).Msg("tips seeded")
	return inserted, nil
}
