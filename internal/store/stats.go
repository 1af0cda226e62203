package store

import (
	"fmt"
)

// DashboardStats summarizes a user's activity for the dashboard.
type DashboardStats struct {
	TotalProjects  int `json:"totalProjects"`
	CompletedTasks int `json:"completedTasks"`
	TotalFiles     int `json:"totalFiles"`
	AIUsage        int `json:"aiUsage"` // total chat messages
}

// GetDashboardStats computes counts across the user's projects, tasks, files
// and chat messages.
func (s *Store) GetDashboardStats(userID string) (*DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &DashboardStats{}

	err := s.db.QueryRow(`SELECT COUNT(*) FROM projects WHERE user_id = ?`, userID).
		Scan(&stats.TotalProjects)
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}

	err = s.db.QueryRow(`
	SELECT COUNT(*) FROM tasks t
	INNER JOIN projects p ON t.project_id = p.id
	WHERE p.user_id = ? AND t.status = 'completed'`, userID).
		Scan(&stats.CompletedTasks)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed tasks: %w", err)
	}

	err = s.db.QueryRow(`SELECT COUNT(*) FROM files WHERE user_id = ?`, userID).
		Scan(&stats.TotalFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}

	err = s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE user_id = ?`, userID).
		Scan(&stats.AIUsage)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	return stats, nil
}
