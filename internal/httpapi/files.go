package httpapi

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nabdhq/nabd/internal/store"
)

// IssueUploadRequest is the body for POST /api/objects/upload.
type IssueUploadRequest struct {
	FileName string `json:"fileName"`
}

// CreateFileRequest is the body for POST /api/files.
type CreateFileRequest struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	ProjectID  string `json:"projectId"`
	ObjectPath string `json:"objectPath"`
}

// ListFiles handles GET /api/files.
func (h *Handlers) ListFiles(c *fiber.Ctx) error {
	files, err := h.store.ListFiles(userID(c))
	if err != nil {
		return err
	}
	if files == nil {
		files = []*store.File{}
	}
	return c.JSON(files)
}

// ListProjectFiles handles GET /api/projects/:projectID/files.
func (h *Handlers) ListProjectFiles(c *fiber.Ctx) error {
	files, err := h.store.ListProjectFiles(c.Params("projectID"))
	if err != nil {
		return err
	}
	if files == nil {
		files = []*store.File{}
	}
	return c.JSON(files)
}

// IssueUpload handles POST /api/objects/upload.
func (h *Handlers) IssueUpload(c *fiber.Ctx) error {
	var req IssueUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "invalid request body")
	}
	if req.FileName == "" {
		req.FileName = fmt.Sprintf("file-%d", time.Now().UnixMilli())
	}

	ticket, err := h.objects.IssueUpload(req.FileName)
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

// PutObject handles PUT /api/objects/*. The upload URL issued by
// IssueUpload points here.
func (h *Handlers) PutObject(c *fiber.Ctx) error {
	objectPath := c.Params("*")
	if objectPath == "" {
		return validationError(c, "object path is required")
	}

	if err := h.objects.Put(objectPath, c.Body()); err != nil {
		return validationError(c, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateFile handles POST /api/files. Text extraction runs in the background
// so the request never waits on it.
func (h *Handlers) CreateFile(c *fiber.Ctx) error {
	var req CreateFileRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "invalid request body")
	}
	if req.Name == "" || req.ObjectPath == "" {
		return validationError(c, "name and objectPath are required")
	}

	file, err := h.store.CreateFile(&store.File{
		UserID:     userID(c),
		ProjectID:  req.ProjectID,
		Name:       req.Name,
		Type:       req.Type,
		Size:       req.Size,
		ObjectPath: req.ObjectPath,
	})
	if err != nil {
		return err
	}

	if h.agent != nil {
		go h.agent.ProcessFile(file.ID)
	}

	return c.Status(fiber.StatusCreated).JSON(file)
}

// AnalyzeFile handles GET /api/files/:id/analyze.
func (h *Handlers) AnalyzeFile(c *fiber.Ctx) error {
	if h.agent == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "File analysis is not available")
	}

	analysis, err := h.agent.AnalyzeFile(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if analysis == "" {
		return errorJSON(c, fiber.StatusNotFound, "File not found or could not be analyzed")
	}
	return c.JSON(fiber.Map{"analysis": analysis})
}

// SearchFiles handles GET /api/files/search?q=.
func (h *Handlers) SearchFiles(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Search query is required")
	}

	results, err := h.agent.SearchFiles(userID(c), query)
	if err != nil {
		return err
	}
	return c.JSON(results)
}

// DeleteFile handles DELETE /api/files/:id. Deleting an unknown file is a
// no-op, matching the idempotent 204 contract.
func (h *Handlers) DeleteFile(c *fiber.Ctx) error {
	file, err := h.store.GetFile(c.Params("id"))
	if err != nil {
		return err
	}
	if file != nil {
		if err := h.objects.Delete(file.ObjectPath); err != nil {
			h.logger.Warn().Err(err).Str("object_path", file.ObjectPath).Msg("failed to delete object")
		}
		if err := h.store.DeleteFile(file.ID); err != nil {
			return err
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}
