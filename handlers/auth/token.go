package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursemart-api/utils/middleware"
	"github.com/sahilchouksey/coursemart-api/utils/response"
)

// RefreshTokenRequest represents a token refresh request
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshToken rotates the refresh token and issues a new pair
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req RefreshTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.FromError(c, err)
	}

	tokens, err := h.accounts.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, tokens)
}

// Logout revokes the current access token
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	if err := h.accounts.Logout(c.UserContext(), claims); err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Logged out successfully", nil)
}

// LogoutAll invalidates every token the current user holds
func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	if err := h.accounts.LogoutAll(c.UserContext(), userID); err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Logged out from all sessions", nil)
}
