package store

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Task statuses.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Task represents a unit of work inside a project.
type Task struct {
	ID           string `json:"id"`
	ProjectID    string `json:"projectId"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	AgentType    string `json:"agentType,omitempty"`
	Result       string `json:"result,omitempty"`
	Inputs       string `json:"inputs,omitempty"`  // JSON
	Outputs      string `json:"outputs,omitempty"` // JSON
	ErrorMessage string `json:"errorMessage,omitempty"`
	RetryCount   int    `json:"retryCount"`
	Order        int    `json:"order"`
	CreatedAt    int64  `json:"createdAt"` // unix ms
	UpdatedAt    int64  `json:"updatedAt"` // unix ms
	CompletedAt  int64  `json:"completedAt,omitempty"`
}

// TaskUpdate carries optional fields for UpdateTask.
type TaskUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Result      *string `json:"result,omitempty"`
	Order       *int    `json:"order,omitempty"`
}

const taskColumns = `id, project_id, title, description, status, priority, agent_type,
	result, inputs, outputs, error_message, retry_count, ord, created_at, updated_at, completed_at`

func scanTask(scan func(dest ...interface{}) error) (*Task, error) {
	t := &Task{}
	var desc, agentType, result, inputs, outputs, errMsg sql.NullString
	var completedAt sql.NullInt64

	err := scan(
		&t.ID, &t.ProjectID, &t.Title, &desc, &t.Status, &t.Priority, &agentType,
		&result, &inputs, &outputs, &errMsg, &t.RetryCount, &t.Order,
		&t.CreatedAt, &t.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Description = desc.String
	t.AgentType = agentType.String
	t.Result = result.String
	t.Inputs = inputs.String
	t.Outputs = outputs.String
	t.ErrorMessage = errMsg.String
	t.CompletedAt = completedAt.Int64
	return t, nil
}

// recomputeProgressTx resets a project's derived progress percentage from its
// task list, inside the caller's transaction so task mutation and recompute
// commit atomically. A project with no tasks has progress 0.
func recomputeProgressTx(tx *sql.Tx, projectID string, now int64) error {
	var total, completed int
	err := tx.QueryRow(`
	SELECT COUNT(*), COALESCE(SUM(status = 'completed'), 0)
	FROM tasks WHERE project_id = ?`, projectID).Scan(&total, &completed)
	if err != nil {
		return fmt.Errorf("failed to count tasks: %w", err)
	}

	progress := 0
	if total > 0 {
		progress = int(math.Round(float64(completed) / float64(total) * 100))
	}

	_, err = tx.Exec(`UPDATE projects SET progress = ?, updated_at = ? WHERE id = ?`,
		progress, now, projectID)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// ListTasks returns a project's tasks ordered by explicit order then recency.
func (s *Store) ListTasks(projectID string) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT `+taskColumns+` FROM tasks
	WHERE project_id = ? ORDER BY ord, created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// GetRecentTasks returns the user's most recently updated tasks across all
// their projects.
func (s *Store) GetRecentTasks(userID string, limit int) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
	SELECT t.id, t.project_id, t.title, t.description, t.status, t.priority, t.agent_type,
	       t.result, t.inputs, t.outputs, t.error_message, t.retry_count, t.ord,
	       t.created_at, t.updated_at, t.completed_at
	FROM tasks t
	INNER JOIN projects p ON t.project_id = p.id
	WHERE p.user_id = ?
	ORDER BY t.updated_at DESC
	LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// GetTask retrieves a task by ID. Returns nil, nil when not found.
func (s *Store) GetTask(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := scanTask(s.db.QueryRow(`
	SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return t, nil
}

// CreateTask inserts a task and recomputes the project's progress in the same
// transaction.
func (s *Store) CreateTask(t *Task) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	if t.Priority == "" {
		t.Priority = PriorityNormal
	}
	t.CreatedAt = now
	t.UpdatedAt = now

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
	INSERT INTO tasks (id, project_id, title, description, status, priority, agent_type,
		result, inputs, outputs, error_message, retry_count, ord, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title,
		sql.NullString{String: t.Description, Valid: t.Description != ""},
		t.Status, t.Priority,
		sql.NullString{String: t.AgentType, Valid: t.AgentType != ""},
		sql.NullString{String: t.Result, Valid: t.Result != ""},
		sql.NullString{String: t.Inputs, Valid: t.Inputs != ""},
		sql.NullString{String: t.Outputs, Valid: t.Outputs != ""},
		sql.NullString{String: t.ErrorMessage, Valid: t.ErrorMessage != ""},
		t.RetryCount, t.Order, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := recomputeProgressTx(tx, t.ProjectID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return t, nil
}

// UpdateTask applies the given updates and recomputes the project's progress
// in the same transaction. Returns nil, nil when not found.
func (s *Store) UpdateTask(id string, upd TaskUpdate) (*Task, error) {
	s.mu.Lock()

	now := time.Now().UnixMilli()

	tx, err := s.db.Begin()
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var projectID string
	err = tx.QueryRow(`SELECT project_id FROM tasks WHERE id = ?`, id).Scan(&projectID)
	if err == sql.ErrNoRows {
		tx.Rollback()
		s.mu.Unlock()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	query := `UPDATE tasks SET updated_at = ?`
	args := []interface{}{now}

	if upd.Title != nil {
		query += `, title = ?`
		args = append(args, *upd.Title)
	}
	if upd.Description != nil {
		query += `, description = ?`
		args = append(args, *upd.Description)
	}
	if upd.Status != nil {
		query += `, status = ?`
		args = append(args, *upd.Status)
		if *upd.Status == TaskCompleted {
			query += `, completed_at = ?`
			args = append(args, now)
		}
	}
	if upd.Priority != nil {
		query += `, priority = ?`
		args = append(args, *upd.Priority)
	}
	if upd.Result != nil {
		query += `, result = ?`
		args = append(args, *upd.Result)
	}
	if upd.Order != nil {
		query += `, ord = ?`
		args = append(args, *upd.Order)
	}

	query += ` WHERE id = ?`
	args = append(args, id)

	if _, err := tx.Exec(query, args...); err != nil {
		tx.Rollback()
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if err := recomputeProgressTx(tx, projectID, now); err != nil {
		tx.Rollback()
		s.mu.Unlock()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	s.mu.Unlock()

	return s.GetTask(id)
}

// DeleteTask removes a task and recomputes the project's progress in the same
// transaction. Deleting an unknown task is a no-op.
func (s *Store) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var projectID string
	err = tx.QueryRow(`SELECT project_id FROM tasks WHERE id = ?`, id).Scan(&projectID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if err := recomputeProgressTx(tx, projectID, time.Now().UnixMilli()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
