package common

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ClientIP returns the originating client address, preferring the first
// X-Forwarded-For entry over the directly connecting address.
func ClientIP(ctx *fiber.Ctx) string {
	if xff := ctx.Get(fiber.HeaderXForwardedFor); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	return ctx.IP()
}
