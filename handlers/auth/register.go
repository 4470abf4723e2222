package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursemart-api/model"
	"github.com/sahilchouksey/coursemart-api/services"
	"github.com/sahilchouksey/coursemart-api/utils/apperror"
	"github.com/sahilchouksey/coursemart-api/utils/middleware"
	"github.com/sahilchouksey/coursemart-api/utils/response"
	"github.com/sahilchouksey/coursemart-api/utils/validation"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	accounts             *services.AccountService
	bruteForceProtection *middleware.BruteForceProtection
	validator            *validation.Validator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accounts *services.AccountService, bruteForceProtection *middleware.BruteForceProtection, validator *validation.Validator) *AuthHandler {
	return &AuthHandler{
		accounts:             accounts,
		bruteForceProtection: bruteForceProtection,
		validator:            validator,
	}
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	Name     string `json:"name" validate:"omitempty,max=255"`
	Role     string `json:"role,omitempty"` // Optional, defaults to STUDENT
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID         uint             `json:"id"`
	Email      string           `json:"email"`
	Name       string           `json:"name"`
	Role       model.Role       `json:"role"`
	Status     model.UserStatus `json:"status"`
	VerifiedAt *time.Time       `json:"verified_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// NewUserResponse converts a user model into its public representation
func NewUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		Name:       user.Name,
		Role:       user.Role,
		Status:     user.Status,
		VerifiedAt: user.VerifiedAt,
		CreatedAt:  user.CreatedAt,
	}
}

// Register handles user registration. New and still-pending emails get the same answer.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.FromError(c, err)
	}

	role, ok := model.ParseRole(req.Role)
	if !ok || role == model.RoleAdmin {
		return response.FromError(c, apperror.Validation("Validation failed", "role must be one of STUDENT INSTRUCTOR"))
	}

	info, err := h.accounts.Register(c.UserContext(), services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     validation.SanitizeString(req.Name),
		Role:     role,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Registration successful. Please verify your email with the OTP sent.", info)
}
