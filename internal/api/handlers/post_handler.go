package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/postpilot/scheduler/internal/platform"
	"github.com/postpilot/scheduler/internal/queue"
	"github.com/postpilot/scheduler/internal/service"
	"github.com/postpilot/scheduler/internal/transfer"
)

type PostHandler struct {
	s   service.ScheduleService
	enq queue.Enqueuer
}

func NewPostHandler(s service.ScheduleService, enq queue.Enqueuer) *PostHandler {
	return &PostHandler{s: s, enq: enq}
}

func (h *PostHandler) SchedulePost(c *fiber.Ctx) error {
	brandID := GetBrandID(c)

	var req transfer.ScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	result, delay, err := h.s.Schedule(c.Context(), brandID, &req)
	if err != nil {
		var pe *platform.Error
		if errors.As(err, &pe) && pe.Kind == platform.KindValidation {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": pe.Message,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// The jobs table is the source of truth; a failed enqueue is repaired
	// by the due-job sweep, so the response does not depend on it.
	for _, itemID := range result.PostItemIDs {
		payload := queue.PublishItemPayload{PostItemID: itemID}
		if err := queue.EnqueuePublishItem(h.enq, payload, delay); err != nil {
			slog.Error("error enqueueing publish task", "post_item_id", itemID, "err", err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":       "Post scheduled successfully",
		"post_id":       result.PostID,
		"post_item_ids": result.PostItemIDs,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	brandID := GetBrandID(c)
	postID := c.QueryInt("id", 0)

	if postID != 0 {
		post, items, err := h.s.PostInfo(c.Context(), brandID, int64(postID))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to get post",
			})
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"post":  post,
			"items": items,
		})
	}

	posts, err := h.s.List(c.Context(), brandID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) ListHistory(c *fiber.Ctx) error {
	brandID := GetBrandID(c)

	records, err := h.s.History(c.Context(), brandID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posting history",
		})
	}

	return c.Status(fiber.StatusOK).JSON(records)
}

func (h *PostHandler) CancelPost(c *fiber.Ctx) error {
	brandID := GetBrandID(c)
	postID := c.QueryInt("id", 0)

	if err := h.s.Cancel(c.Context(), brandID, int64(postID)); err != nil {
		var pe *platform.Error
		if errors.As(err, &pe) && pe.Kind == platform.KindValidation {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": pe.Message,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to cancel post",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
