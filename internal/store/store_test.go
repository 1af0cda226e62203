package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.EnsureUser(id))
}

func TestNew_CreatesSchema(t *testing.T) {
	s := newTestStore(t)

	tables := []string{"users", "projects", "tasks", "files", "messages", "tips", "meta"}
	for _, table := range tables {
		var count int
		err := s.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestProject_CRUD(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "user-1")

	p, err := s.CreateProject("user-1", "حملة التسويق", "وصف")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, ProjectActive, p.Status)
	assert.Equal(t, 0, p.Progress)

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "حملة التسويق", got.Name)

	name := "Marketing Q3"
	status := ProjectCompleted
	updated, err := s.UpdateProject(p.ID, ProjectUpdate{Name: &name, Status: &status})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Marketing Q3", updated.Name)
	assert.Equal(t, ProjectCompleted, updated.Status)

	list, err := s.ListProjects("user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteProject(p.ID))
	gone, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestProject_UpdateNotFound(t *testing.T) {
	s := newTestStore(t)

	name := "x"
	p, err := s.UpdateProject("nonexistent", ProjectUpdate{Name: &name})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestTask_CreateRecomputesProgress(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "user-1")
	p, err := s.CreateProject("user-1", "Sales Dashboard", "")
	require.NoError(t, err)

	_, err = s.CreateTask(&Task{ProjectID: p.ID, Title: "first"})
	require.NoError(t, err)

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Progress)

	// One of two tasks completed -> 50
	done, err := s.CreateTask(&Task{ProjectID: p.ID, Title: "second"})
	require.NoError(t, err)
	status := TaskCompleted
	_, err = s.UpdateTask(done.ID, TaskUpdate{Status: &status})
	require.NoError(t, err)

	got, err = s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Progress)
}

func TestTask_UpdateSetsCompletedAt(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "user-1")
	p, err := s.CreateProject("user-1", "P", "")
	require.NoError(t, err)

	task, err := s.CreateTask(&Task{ProjectID: p.ID, Title: "t"})
	require.NoError(t, err)
	assert.Zero(t, task.CompletedAt)

	status := TaskCompleted
	updated, err := s.UpdateTask(task.ID, TaskUpdate{Status: &status})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Greater(t, updated.CompletedAt, int64(0))

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
}

func TestTask_DeleteLastTaskResetsProgress(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "user-1")
	p, err := s.CreateProject("user-1", "P", "")
	require.NoError(t, err)

	task, err := s.CreateTask(&Task{ProjectID: p.ID, Title: "only"})
	require.NoError(t, err)

	status := TaskCompleted
	_, err = s.UpdateTask(task.ID, TaskUpdate{Status: &status})
	require.NoError(t, err)

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)

	// Deleting the last task must reset progress to 0, not divide by zero.
	require.NoError(t, s.DeleteTask(task.ID))

	got, err = s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Progress)
}

func TestTask_RoundingProgress(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "user-1")
	p, err := s.CreateProject("user-1", "P", "")
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 3; i++ {
		task, err := s.CreateTask(&Task{ProjectID: p.ID, Title: "t"})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	status := TaskCompleted
	_, err = s.UpdateTask(ids[0], TaskUpdate{Status: &status})
	require.NoError(t, err)

	// 1/3 -> 33
	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 33, got.Progress)

	_, err = s.UpdateTask(ids[1], TaskUpdate{Status: &status})
	require.NoError(t, err)

	// 2/3 -> 67
	got, err = s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 67, got.Progress)
}

func TestTask_GetRecent(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "user-1")
	seedUser(t, s, "user-2")

	mine, err := s.CreateProject("user-1", "Mine", "")
	require.NoError(t, err)
	theirs, err := s.CreateProject("user-2", "Theirs", "")
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		_, err := s.CreateTask(&Task{ProjectID: mine.ID, Title: "mine"})
		require.NoError(t, err)
	}
	_, err = s.CreateTask(&Task{ProjectID: theirs.ID, Title: "theirs"})
	require.NoError(t, err)

	recent, err := s.GetRecentTasks("user-1", 5)
	require.NoError(t, err)
	assert.Len(t, recent, 5)
	for _, task := range recent {
		assert.Equal(t, "mine", task.Title)
	}
}

func TestTask_DeleteUnknownIsNoop(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.DeleteTask("nonexistent"))
}

func TestMessages_AppendAndScope(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "user-1")
	p, err := s.CreateProject("user-1", "P", "")
	require.NoError(t, err)

	_, err = s.CreateMessage(&Message{UserID: "user-1", Role: RoleUser, Content: "مرحبا"})
	require.NoError(t, err)
	_, err = s.CreateMessage(&Message{
		UserID: "user-1", ProjectID: p.ID, Role: RoleAssistant,
		Content: "أهلاً", Metadata: `{"intent":{"intent":"general_query"}}`,
	})
	require.NoError(t, err)

	all, err := s.ListMessages("user-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := s.ListMessages("user-1", p.ID)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, RoleAssistant, scoped[0].Role)
	assert.Contains(t, scoped[0].Metadata, "general_query")
}

func TestFiles_CRUD(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "user-1")

	f, err := s.CreateFile(&File{
		UserID:     "user-1",
		Name:       "report.pdf",
		Type:       "application/pdf",
		Size:       1024,
		ObjectPath: ".private/123-report.pdf",
	})
	require.NoError(t, err)
	assert.False(t, f.IsProcessed)

	text := "extracted text"
	processed := true
	updated, err := s.UpdateFile(f.ID, FileUpdate{ExtractedText: &text, IsProcessed: &processed})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.IsProcessed)
	assert.Equal(t, "extracted text", updated.ExtractedText)

	list, err := s.ListFiles("user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteFile(f.ID))
	gone, err := s.GetFile(f.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestDashboardStats(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "user-1")

	p, err := s.CreateProject("user-1", "P", "")
	require.NoError(t, err)

	task, err := s.CreateTask(&Task{ProjectID: p.ID, Title: "t"})
	require.NoError(t, err)
	status := TaskCompleted
	_, err = s.UpdateTask(task.ID, TaskUpdate{Status: &status})
	require.NoError(t, err)

	_, err = s.CreateFile(&File{UserID: "user-1", Name: "f", Type: "text/plain", ObjectPath: "x"})
	require.NoError(t, err)
	_, err = s.CreateMessage(&Message{UserID: "user-1", Role: RoleUser, Content: "hi"})
	require.NoError(t, err)

	stats, err := s.GetDashboardStats("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalProjects)
	assert.Equal(t, 1, stats.CompletedTasks)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, 1, stats.AIUsage)
}

func TestTips_SeedOnlyOnce(t *testing.T) {
	s := newTestStore(t)

	seedPath := filepath.Join(t.TempDir(), "tips.yaml")
	seed := `
- title: "نظم مشاريعك"
  content: "قسم العمل الكبير إلى مهام صغيرة"
  category: projects
  order: 1
- title: "استخدم المساعد"
  content: "اطلب من المساعد إنشاء المهام تلقائياً"
  category: chat
  order: 2
`
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0o644))

	n, err := s.SeedTips(seedPath)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Second run must not duplicate.
	n, err = s.SeedTips(seedPath)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	tips, err := s.ListTips("projects")
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.Equal(t, "نظم مشاريعك", tips[0].Title)
}

func TestTips_CRUD(t *testing.T) {
	s := newTestStore(t)

	tip, err := s.CreateTip(&Tip{Title: "t", Content: "c"})
	require.NoError(t, err)
	assert.Equal(t, "general", tip.Category)
	assert.True(t, tip.IsActive)

	active := false
	updated, err := s.UpdateTip(tip.ID, TipUpdate{IsActive: &active})
	require.NoError(t, err)
	require.NotNil(t, updated)

	// Inactive tips are hidden from listings.
	tips, err := s.ListTips("")
	require.NoError(t, err)
	assert.Empty(t, tips)

	require.NoError(t, s.DeleteTip(tip.ID))
}

func TestUsers_Upsert(t *testing.T) {
	s := newTestStore(t)

	u, err := s.UpsertUser(&User{ID: "user-1", Email: "a@example.com", FirstName: "Amina"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", u.ID)

	u2, err := s.UpsertUser(&User{ID: "user-1", Email: "b@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", u2.Email)

	got, err := s.GetUser("user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b@example.com", got.Email)
}
