package middlewares

import (
	"log/slog"
	"strings"

	"github.com/derbyfab/derby-tickets/internal/audit"
	"github.com/derbyfab/derby-tickets/internal/common"
	"github.com/derbyfab/derby-tickets/internal/security"
	"github.com/derbyfab/derby-tickets/model"
	"github.com/gofiber/fiber/v2"
)

// SecurityMonitor inspects every request for suspicious patterns and
// tracks error response rates per IP. Detection never fails a request.
func SecurityMonitor(securityMgr *security.Manager, auditMgr *audit.Manager) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		clientIP := common.ClientIP(ctx)
		userAgent := ctx.Get(fiber.HeaderUserAgent)

		indicators := securityMgr.DetectSuspiciousPatterns(ctx.Context(), clientIP, userAgent, CurrentUser(ctx))
		if len(indicators) > 0 {
			securityMgr.TrackSuspiciousRequest(ctx.Context(), clientIP, indicators)
			event := &model.SecurityEvent{
				EventType:         model.EventTypeSuspiciousActivity,
				Severity:          model.SeverityMedium,
				UsernameAttempted: clientIP,
				IPAddress:         clientIP,
				UserAgent:         userAgent,
				Description:       "Suspicious request: " + strings.Join(indicators, "; "),
				Metadata: map[string]any{
					"path":       ctx.Path(),
					"indicators": indicators,
				},
			}
			if user := CurrentUser(ctx); user != nil {
				event.UserID = &user.ID
				event.UsernameAttempted = ""
			}
			if err := auditMgr.RecordEvent(ctx.Context(), event); err != nil {
				slog.Error("Failed to record suspicious activity event", "ip", clientIP, "error", err)
			}
		}

		err := ctx.Next()

		status := ctx.Response().StatusCode()
		if err != nil || status >= fiber.StatusInternalServerError {
			securityMgr.TrackErrorResponse(ctx.Context(), clientIP)
		}
		return err
	}
}
