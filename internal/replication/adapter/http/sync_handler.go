package http

import (
	"context"
	"strconv"

	"pos-replicator/internal/replication/usecase"
	"pos-replicator/internal/shared/contextkeys"
	"pos-replicator/internal/shared/errors"
	"pos-replicator/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
)

// MaxPassesLimit caps the limit query parameter of the pass history endpoint.
const MaxPassesLimit = 500

// SyncHandler exposes replication status and manual control over HTTP.
type SyncHandler struct {
	SyncUC usecase.ReplicationUsecase
	Log    logger.Logger
}

// NewSyncHandler creates a handler.
func NewSyncHandler(uc usecase.ReplicationUsecase, log logger.Logger) *SyncHandler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &SyncHandler{SyncUC: uc, Log: log.WithComponent("sync-http")}
}

// RegisterRoutes mounts the handler under router, typically /api/v1.
func (h *SyncHandler) RegisterRoutes(router fiber.Router) {
	group := router.Group("/sync")
	group.Get("/status", h.GetStatus)
	group.Post("/run", h.RunPass)
	group.Post("/seed", h.SeedReplica)
	group.Get("/passes", h.ListPasses)
}

func (h *SyncHandler) GetStatus(c *fiber.Ctx) error {
	return c.JSON(h.SyncUC.GetStatus())
}

// RunPass triggers a pass and waits for it. Skipped passes are still a 200 with
// skipped=true and the reason.
func (h *SyncHandler) RunPass(c *fiber.Ctx) error {
	ctx := requestContext(c)
	h.Log.WithContext(ctx).Info("Manual sync pass requested")

	result := h.SyncUC.RunPass(ctx)
	return c.JSON(result)
}

func (h *SyncHandler) SeedReplica(c *fiber.Ctx) error {
	ctx := requestContext(c)
	h.Log.WithContext(ctx).Info("Manual replica seed requested")

	result := h.SyncUC.SeedReplica(ctx)
	return c.JSON(result)
}

func (h *SyncHandler) ListPasses(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return h.errorResponse(c, errors.NewValidationError("limit must be a positive integer").
				WithCode("invalid_limit").
				WithDetail("limit", raw))
		}
		limit = min(n, MaxPassesLimit)
	}

	entries, err := h.SyncUC.RecentPasses(requestContext(c), limit)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"passes": entries, "count": len(entries)})
}

func (h *SyncHandler) errorResponse(c *fiber.Ctx, err error) error {
	log := h.Log.WithContext(requestContext(c))
	switch {
	case errors.IsValidation(err):
		log.Debugf("Rejected request: %v", err)
	case errors.IsNotConnected(err):
		log.Warnf("Dependency unavailable: %v", err)
	default:
		log.Errorf("Request failed: %v", err)
	}
	return c.Status(errors.HTTPStatus(err)).JSON(fiber.Map{
		"error":   errors.CodeOf(err, "request_failed"),
		"message": err.Error(),
	})
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if id := c.Get(fiber.HeaderXRequestID); id != "" {
		ctx = context.WithValue(ctx, contextkeys.RequestIDKey, id)
	}
	return ctx
}
