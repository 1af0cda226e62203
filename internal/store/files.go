package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// File represents an uploaded file record. The bytes live in object storage;
// this row holds metadata and any extracted text.
type File struct {
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	ProjectID     string `json:"projectId,omitempty"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Size          int64  `json:"size"`
	ObjectPath    string `json:"objectPath"`
	ExtractedText string `json:"extractedText,omitempty"`
	IsProcessed   bool   `json:"isProcessed"`
	CreatedAt     int64  `json:"createdAt"` // unix ms
	UpdatedAt     int64  `json:"updatedAt"` // unix ms
}

// FileUpdate carries optional fields for UpdateFile.
type FileUpdate struct {
	ProjectID     *string
	ExtractedText *string
	IsProcessed   *bool
}

const fileColumns = `id, user_id, project_id, name, type, size, object_path,
	extracted_text, is_processed, created_at, updated_at`

func scanFile(scan func(dest ...interface{}) error) (*File, error) {
	f := &File{}
	var projectID, extracted sql.NullString

	err := scan(&f.ID, &f.UserID, &projectID, &f.Name, &f.Type, &f.Size,
		&f.ObjectPath, &extracted, &f.IsProcessed, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}

	f.ProjectID = projectID.String
	f.ExtractedText = extracted.String
	return f, nil
}

// ListFiles returns all of a user's files, newest first.
func (s *Store) ListFiles(userID string) ([]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT `+fileColumns+` FROM files
	WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	return collectFiles(rows)
}

// ListProjectFiles returns files attached to a project, newest first.
func (s *Store) ListProjectFiles(projectID string) ([]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT `+fileColumns+` FROM files
	WHERE project_id = ? ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project files: %w", err)
	}
	defer rows.Close()

	return collectFiles(rows)
}

func collectFiles(rows *sql.Rows) ([]*File, error) {
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}
	return files, nil
}

// GetFile retrieves a file record by ID. Returns nil, nil when not found.
func (s *Store) GetFile(id string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := scanFile(s.db.QueryRow(`
	SELECT `+fileColumns+` FROM files WHERE id = ?`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return f, nil
}

// CreateFile inserts a file record and returns it.
func (s *Store) CreateFile(f *File) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err := s.db.Exec(`
	INSERT INTO files (id, user_id, project_id, name, type, size, object_path,
		extracted_text, is_processed, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserID,
		sql.NullString{String: f.ProjectID, Valid: f.ProjectID != ""},
		f.Name, f.Type, f.Size, f.ObjectPath,
		sql.NullString{String: f.ExtractedText, Valid: f.ExtractedText != ""},
		f.IsProcessed, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return f, nil
}

// UpdateFile applies the given updates. Returns nil, nil when not found.
func (s *Store) UpdateFile(id string, upd FileUpdate) (*File, error) {
	s.mu.Lock()

	query := `UPDATE files SET updated_at = ?`
	args := []interface{}{time.Now().UnixMilli()}

	if upd.ProjectID != nil {
		query += `, project_id = ?`
		args = append(args, sql.NullString{String: *upd.ProjectID, Valid: *upd.ProjectID != ""})
	}
	if upd.ExtractedText != nil {
		query += `, extracted_text = ?`
		args = append(args, *upd.ExtractedText)
	}
	if upd.IsProcessed != nil {
		query += `, is_processed = ?`
		args = append(args, *upd.IsProcessed)
	}

	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to update file: %w", err)
	}
	rows, err := result.RowsAffected()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}

	return s.GetFile(id)
}

// DeleteFile removes a file record.
func (s *Store) DeleteFile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
