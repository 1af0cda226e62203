package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nabdhq/nabd/internal/chat"
)

// ChatRequest is the body for the chat endpoints.
type ChatRequest struct {
	Message string `json:"message"`
}

// Chat handles POST /api/chat.
func (h *Handlers) Chat(c *fiber.Ctx) error {
	return h.dispatch(c, "")
}

// ProjectChat handles POST /api/projects/:projectID/chat.
func (h *Handlers) ProjectChat(c *fiber.Ctx) error {
	return h.dispatch(c, c.Params("projectID"))
}

func (h *Handlers) dispatch(c *fiber.Ctx, projectID string) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil || req.Message == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Message is required")
	}

	start := time.Now()
	result, err := h.dispatcher.Dispatch(c.Context(), userID(c), projectID, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrProjectNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Project not found")
		}
		if h.metrics != nil {
			h.metrics.RecordDispatch("unknown", "error")
		}
		return err
	}

	if h.metrics != nil {
		h.metrics.RecordDispatch(string(result.Intent.Kind), "ok")
		h.metrics.ObserveDispatch(time.Since(start).Seconds())
	}

	return c.JSON(result)
}
