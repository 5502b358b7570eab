package middlewares

import (
	"errors"
	"strings"

	"github.com/derbyfab/derby-tickets/internal/auth"
	"github.com/derbyfab/derby-tickets/internal/users"
	"github.com/derbyfab/derby-tickets/model"
	"github.com/gofiber/fiber/v2"
)

const (
	userContextKey   = "authUser"
	claimsContextKey = "authClaims"
)

// TokenAuth authenticates requests with a Bearer access token. The
// token is only honored while the session it was minted for is still
// active, so ending a session revokes its tokens immediately.
func TokenAuth(tokens *auth.TokenService, loginService *auth.LoginService, userService *users.UserService) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		header := ctx.Get(fiber.HeaderAuthorization)
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing access token")
		}

		claims, err := tokens.ParseAccessToken(tokenString)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}

		if _, err := loginService.VerifySession(ctx.Context(), claims.SessionKey); err != nil {
			switch {
			case errors.Is(err, auth.ErrSessionNotFound):
				return fiber.NewError(fiber.StatusUnauthorized, "Session not found")
			case errors.Is(err, auth.ErrSessionEnded):
				return fiber.NewError(fiber.StatusUnauthorized, "Session has ended")
			default:
				return err
			}
		}

		userID, err := claims.UserID()
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}
		user, err := userService.GetUserByID(ctx.Context(), userID)
		if errors.Is(err, users.ErrUserNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "Unknown user")
		}
		if err != nil {
			return err
		}
		if !user.IsActive {
			return fiber.NewError(fiber.StatusForbidden, "Account disabled")
		}

		ctx.Locals(userContextKey, user)
		ctx.Locals(claimsContextKey, claims)
		return ctx.Next()
	}
}

// RequireStaff gates handlers to staff or superuser accounts. Must run
// after TokenAuth.
func RequireStaff() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		user := CurrentUser(ctx)
		if user == nil || (!user.IsStaff && !user.IsSuperuser) {
			return fiber.NewError(fiber.StatusForbidden, "Staff access required")
		}
		return ctx.Next()
	}
}

// CurrentUser returns the authenticated user set by TokenAuth, nil for
// unauthenticated requests.
func CurrentUser(ctx *fiber.Ctx) *model.User {
	user, _ := ctx.Locals(userContextKey).(*model.User)
	return user
}

// CurrentClaims returns the token claims set by TokenAuth.
func CurrentClaims(ctx *fiber.Ctx) *auth.AccessClaims {
	claims, _ := ctx.Locals(claimsContextKey).(*auth.AccessClaims)
	return claims
}
