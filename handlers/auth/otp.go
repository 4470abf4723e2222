package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursemart-api/utils/response"
)

// VerifyOTPRequest carries the emailed code
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// ResendOTPRequest asks for a fresh code
type ResendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyOTP activates the account and returns a token pair
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req VerifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.FromError(c, err)
	}

	result, err := h.accounts.VerifyChallenge(c.UserContext(), req.Email, req.Code)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Email verified successfully", AuthResponse{
		User:         NewUserResponse(result.User),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		ExpiresIn:    result.Tokens.ExpiresIn,
	})
}

// ResendOTP issues a new code once the cooldown has elapsed
func (h *AuthHandler) ResendOTP(c *fiber.Ctx) error {
	var req ResendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.FromError(c, err)
	}

	info, err := h.accounts.ResendChallenge(c.UserContext(), req.Email)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "A new OTP has been sent to your email", info)
}
