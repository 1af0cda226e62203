package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/nabdhq/nabd/internal/chat"
	"github.com/nabdhq/nabd/internal/fileagent"
	"github.com/nabdhq/nabd/internal/health"
	"github.com/nabdhq/nabd/internal/metrics"
	"github.com/nabdhq/nabd/internal/objectstore"
	"github.com/nabdhq/nabd/internal/store"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	store      *store.Store
	dispatcher *chat.Dispatcher
	agent      *fileagent.Agent
	objects    objectstore.Storage
	checker    *health.Checker
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	st *store.Store,
	dispatcher *chat.Dispatcher,
	agent *fileagent.Agent,
	objects objectstore.Storage,
	checker *health.Checker,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		store:      st,
		dispatcher: dispatcher,
		agent:      agent,
		objects:    objects,
		checker:    checker,
		metrics:    m,
		logger:     logger.With().Str("component", "handlers").Logger(),
	}
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if h.checker == nil {
		return c.JSON(fiber.Map{"status": "ready"})
	}

	results := h.checker.RunAll(c.Context())
	for _, s := range results {
		if s == health.StatusDown {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not_ready",
				"checks": results,
			})
		}
	}
	return c.JSON(fiber.Map{"status": "ready", "checks": results})
}

// GetAuthUser handles GET /api/auth/user.
func (h *Handlers) GetAuthUser(c *fiber.Ctx) error {
	user, err := h.store.GetUser(userID(c))
	if err != nil {
		return err
	}
	if user == nil {
		return errorJSON(c, fiber.StatusNotFound, "User not found")
	}
	return c.JSON(user)
}

// GetDashboardStats handles GET /api/dashboard/stats.
func (h *Handlers) GetDashboardStats(c *fiber.Ctx) error {
	stats, err := h.store.GetDashboardStats(userID(c))
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// ---- Projects ----

// CreateProjectRequest is the body for POST /api/projects.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListProjects handles GET /api/projects.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	projects, err := h.store.ListProjects(userID(c))
	if err != nil {
		return err
	}
	if projects == nil {
		projects = []*store.Project{}
	}
	return c.JSON(projects)
}

// GetProject handles GET /api/projects/:id.
func (h *Handlers) GetProject(c *fiber.Ctx) error {
	project, err := h.store.GetProject(c.Params("id"))
	if err != nil {
		return err
	}
	if project == nil {
		return errorJSON(c, fiber.StatusNotFound, "Project not found")
	}
	return c.JSON(project)
}

// CreateProject handles POST /api/projects.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var req CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "invalid request body")
	}
	if req.Name == "" {
		return validationError(c, "name is required")
	}

	project, err := h.store.CreateProject(userID(c), req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(project)
}

// UpdateProject handles PATCH /api/projects/:id.
func (h *Handlers) UpdateProject(c *fiber.Ctx) error {
	var upd store.ProjectUpdate
	if err := c.BodyParser(&upd); err != nil {
		return validationError(c, "invalid request body")
	}

	project, err := h.store.UpdateProject(c.Params("id"), upd)
	if err != nil {
		return err
	}
	if project == nil {
		return errorJSON(c, fiber.StatusNotFound, "Project not found")
	}
	return c.JSON(project)
}

// DeleteProject handles DELETE /api/projects/:id.
func (h *Handlers) DeleteProject(c *fiber.Ctx) error {
	if err := h.store.DeleteProject(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ---- Tasks ----

// CreateTaskRequest is the body for POST /api/projects/:projectID/tasks.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	Order       int    `json:"order"`
}

// ListProjectTasks handles GET /api/projects/:projectID/tasks.
func (h *Handlers) ListProjectTasks(c *fiber.Ctx) error {
	tasks, err := h.store.ListTasks(c.Params("projectID"))
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []*store.Task{}
	}
	return c.JSON(tasks)
}

// GetRecentTasks handles GET /api/tasks/recent.
func (h *Handlers) GetRecentTasks(c *fiber.Ctx) error {
	tasks, err := h.store.GetRecentTasks(userID(c), c.QueryInt("limit", 10))
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []*store.Task{}
	}
	return c.JSON(tasks)
}

// CreateTask handles POST /api/projects/:projectID/tasks.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	projectID := c.Params("projectID")
	project, err := h.store.GetProject(projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return errorJSON(c, fiber.StatusNotFound, "Project not found")
	}

	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "invalid request body")
	}
	if req.Title == "" {
		return validationError(c, "title is required")
	}

	task, err := h.store.CreateTask(&store.Task{
		ProjectID:   projectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Order:       req.Order,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// UpdateTask handles PATCH /api/tasks/:id.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	var upd store.TaskUpdate
	if err := c.BodyParser(&upd); err != nil {
		return validationError(c, "invalid request body")
	}

	task, err := h.store.UpdateTask(c.Params("id"), upd)
	if err != nil {
		return err
	}
	if task == nil {
		return errorJSON(c, fiber.StatusNotFound, "Task not found")
	}
	return c.JSON(task)
}

// DeleteTask handles DELETE /api/tasks/:id.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	if err := h.store.DeleteTask(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ---- Messages ----

// ListMessages handles GET /api/messages.
func (h *Handlers) ListMessages(c *fiber.Ctx) error {
	messages, err := h.store.ListMessages(userID(c), "")
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []*store.Message{}
	}
	return c.JSON(messages)
}

// ListProjectMessages handles GET /api/projects/:projectID/messages.
func (h *Handlers) ListProjectMessages(c *fiber.Ctx) error {
	messages, err := h.store.ListMessages(userID(c), c.Params("projectID"))
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []*store.Message{}
	}
	return c.JSON(messages)
}

// ---- Tips ----

// CreateTipRequest is the body for POST /api/tips.
type CreateTipRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
	Icon     string `json:"icon"`
	Order    int    `json:"order"`
}

// ListTips handles GET /api/tips.
func (h *Handlers) ListTips(c *fiber.Ctx) error {
	tips, err := h.store.ListTips(c.Query("category"))
	if err != nil {
		return err
	}
	if tips == nil {
		tips = []*store.Tip{}
	}
	return c.JSON(tips)
}

// GetTip handles GET /api/tips/:id.
func (h *Handlers) GetTip(c *fiber.Ctx) error {
	tip, err := h.store.GetTip(c.Params("id"))
	if err != nil {
		return err
	}
	if tip == nil {
		return errorJSON(c, fiber.StatusNotFound, "Tip not found")
	}
	return c.JSON(tip)
}

// CreateTip handles POST /api/tips.
func (h *Handlers) CreateTip(c *fiber.Ctx) error {
	var req CreateTipRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "invalid request body")
	}
	if req.Title == "" || req.Content == "" {
		return validationError(c, "title and content are required")
	}

	tip, err := h.store.CreateTip(&store.Tip{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		Icon:     req.Icon,
		Order:    req.Order,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(tip)
}

// UpdateTip handles PATCH /api/tips/:id.
func (h *Handlers) UpdateTip(c *fiber.Ctx) error {
	var upd store.TipUpdate
	if err := c.BodyParser(&upd); err != nil {
		return validationError(c, "invalid request body")
	}

	tip, err := h.store.UpdateTip(c.Params("id"), upd)
	if err != nil {
		return err
	}
	if tip == nil {
		return errorJSON(c, fiber.StatusNotFound, "Tip not found")
	}
	return c.JSON(tip)
}

// DeleteTip handles DELETE /api/tips/:id.
func (h *Handlers) DeleteTip(c *fiber.Ctx) error {
	if err := h.store.DeleteTip(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
