package api

import (
	"errors"
	"time"

	"github.com/derbyfab/derby-tickets/internal/audit"
	"github.com/derbyfab/derby-tickets/internal/middlewares"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"
	"gorm.io/gorm"
)

// SecurityHandler serves the staff-only security dashboard endpoints.
type SecurityHandler struct {
	auditMgr *audit.Manager
}

func NewSecurityHandler(auditMgr *audit.Manager) *SecurityHandler {
	return &SecurityHandler{auditMgr}
}

// GetSummary aggregates the security posture over a trailing window.
// The window defaults to 24 hours, overridable with ?hours=N.
func (h *SecurityHandler) GetSummary(ctx *fiber.Ctx) error {
	hours := cast.ToInt(ctx.Query("hours"))
	summary, err := h.auditMgr.SecuritySummary(ctx.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(summary))
}

// GetEvents lists security events filtered by the query parameters
// eventType, severity, username, unresolved and limit.
func (h *SecurityHandler) GetEvents(ctx *fiber.Ctx) error {
	filter := audit.EventFilter{
		EventType:  ctx.Query("eventType"),
		Severity:   ctx.Query("severity"),
		Username:   ctx.Query("username"),
		Unresolved: cast.ToBool(ctx.Query("unresolved")),
		Limit:      cast.ToInt(ctx.Query("limit")),
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if hours := cast.ToInt(ctx.Query("hours")); hours > 0 {
		filter.Since = time.Now().Add(-time.Duration(hours) * time.Hour)
	}

	events, err := h.auditMgr.ListSecurityEvents(ctx.Context(), filter)
	if err != nil {
		return err
	}
	resp := make([]securityEventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, securityEventResponse{
			ID:          ev.ID,
			EventType:   ev.EventType,
			Severity:    ev.Severity,
			Timestamp:   ev.Timestamp,
			Username:    ev.UsernameAttempted,
			IPAddress:   ev.IPAddress,
			Description: ev.Description,
			Resolved:    ev.Resolved,
			Metadata:    ev.Metadata,
		})
	}
	return ctx.JSON(NewDataResponse(resp))
}

// PostResolveEvent marks one security event handled by the caller.
func (h *SecurityHandler) PostResolveEvent(ctx *fiber.Ctx) error {
	eventID, err := cast.ToUint64E(ctx.Params("id"))
	if err != nil || eventID == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid event id")
	}
	var req resolveEventRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	resolver := middlewares.CurrentUser(ctx)
	err = h.auditMgr.ResolveSecurityEvent(ctx.Context(), eventID, resolver, req.Notes)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Event not found or already resolved")
	}
	if err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// GetSessions lists active sessions with their long-running flag.
func (h *SecurityHandler) GetSessions(ctx *fiber.Ctx) error {
	limit := cast.ToInt(ctx.Query("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	sessions, err := h.auditMgr.ListActiveSessions(ctx.Context(), limit)
	if err != nil {
		return err
	}
	resp := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, sessionResponse{
			SessionKey:   s.SessionKey,
			UserID:       s.UserID,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity,
			IPAddress:    s.IPAddress,
			LongRunning:  s.IsLongRunning(),
		})
	}
	return ctx.JSON(NewDataResponse(resp))
}
