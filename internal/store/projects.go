package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Project statuses.
const (
	ProjectActive    = "active"
	ProjectCompleted = "completed"
	ProjectArchived  = "archived"
)

// Project represents a user-owned project.
type Project struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	CreatedAt   int64  `json:"createdAt"` // unix ms
	UpdatedAt   int64  `json:"updatedAt"` // unix ms
}

// ProjectUpdate carries optional fields for UpdateProject.
type ProjectUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// ListProjects returns all projects owned by a user, most recently updated first.
func (s *Store) ListProjects(userID string) ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT id, user_id, name, description, status, progress, created_at, updated_at
	FROM projects WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p := &Project{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Status,
			&p.Progress, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// GetProject retrieves a project by ID. Returns nil, nil when not found.
func (s *Store) GetProject(id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := &Project{}
	err := s.db.QueryRow(`
	SELECT id, user_id, name, description, status, progress, created_at, updated_at
	FROM projects WHERE id = ?`, id).Scan(
		&p.ID, &p.UserID, &p.Name, &p.Description, &p.Status,
		&p.Progress, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return p, nil
}

// CreateProject inserts a new project and returns it.
func (s *Store) CreateProject(userID, name, description string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	p := &Project{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		Status:      ProjectActive,
		Progress:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.Exec(`
	INSERT INTO projects (id, user_id, name, description, status, progress, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.Description, p.Status, p.Progress, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return p, nil
}

// UpdateProject applies the given updates. Returns nil, nil when not found.
func (s *Store) UpdateProject(id string, upd ProjectUpdate) (*Project, error) {
	s.mu.Lock()

	query := `UPDATE projects SET updated_at = ?`
	args := []interface{}{time.Now().UnixMilli()}

	if upd.Name != nil {
		query += `, name = ?`
		args = append(args, *upd.Name)
	}
	if upd.Description != nil {
		query += `, description = ?`
		args = append(args, *upd.Description)
	}
	if upd.Status != nil {
		query += `, status = ?`
		args = append(args, *upd.Status)
	}

	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	rows, err := result.RowsAffected()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}

	return s.GetProject(id)
}

// DeleteProject removes a project; tasks and messages cascade.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}
