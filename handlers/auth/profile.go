package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursemart-api/utils/middleware"
	"github.com/sahilchouksey/coursemart-api/utils/response"
)

// Me returns the authenticated user's profile
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	user, err := h.accounts.Profile(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, NewUserResponse(user))
}
