package api

import (
	"errors"

	"github.com/derbyfab/derby-tickets/internal/auth"
	"github.com/derbyfab/derby-tickets/internal/common"
	"github.com/derbyfab/derby-tickets/internal/middlewares"
	"github.com/derbyfab/derby-tickets/internal/security"
	"github.com/gofiber/fiber/v2"
)

// Failure codes returned to API clients alongside the HTTP status.
const (
	failureCodeInvalidCredentials = "INVALID_CREDENTIALS"
	failureCodeLockedOut          = "LOCKED_OUT"
	failureCodeDomainNotAllowed   = "DOMAIN_NOT_ALLOWED"
)

type AuthHandler struct {
	loginService *auth.LoginService
	tokens       *auth.TokenService
}

func NewAuthHandler(loginService *auth.LoginService, tokens *auth.TokenService) *AuthHandler {
	return &AuthHandler{
		loginService: loginService,
		tokens:       tokens,
	}
}

// PostLogin runs the audited login flow and opens a session on success.
func (h *AuthHandler) PostLogin(ctx *fiber.Ctx) error {
	var req loginRequest
	if err := ctx.BodyParser(&req); err != nil || req.Username == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing username or password")
	}

	clientIP := common.ClientIP(ctx)
	userAgent := ctx.Get(fiber.HeaderUserAgent)

	result, err := h.loginService.Login(ctx.Context(), req.Username, req.Password, clientIP, userAgent)
	if errors.Is(err, security.ErrIdentifierEmpty) {
		return fiber.NewError(fiber.StatusBadRequest, "Missing username or password")
	}
	if err != nil {
		return err
	}

	if !result.Success {
		code := failureCodeInvalidCredentials
		status := fiber.StatusUnauthorized
		switch {
		case !result.DomainValid:
			code = failureCodeDomainNotAllowed
			status = fiber.StatusForbidden
		case result.LockedOut:
			code = failureCodeLockedOut
			status = fiber.StatusForbidden
		}
		return ctx.Status(status).JSON(NewDataResponse(loginFailureResponse{
			Code:              code,
			Message:           result.Reason,
			AttemptsRemaining: result.AttemptsRemaining,
		}))
	}

	_, token, err := h.loginService.OpenSession(ctx.Context(), h.tokens, result.User, req.Username, clientIP, userAgent)
	if err != nil {
		return err
	}

	return ctx.JSON(NewDataResponse(loginSuccessResponse{
		User: userInfoResponse{
			UserID:   result.User.ID,
			Username: result.User.Username,
			FullName: result.User.FullName,
			Email:    result.User.Email,
			IsStaff:  result.User.IsStaff,
		},
		AccessToken: token,
	}))
}

// PostLogout ends the session bound to the presented token.
func (h *AuthHandler) PostLogout(ctx *fiber.Ctx) error {
	claims := middlewares.CurrentClaims(ctx)
	if claims == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing access token")
	}
	if err := h.loginService.CloseSession(ctx.Context(), claims); err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
