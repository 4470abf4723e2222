package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursemart-api/model"
	"github.com/sahilchouksey/coursemart-api/repository"
	"github.com/sahilchouksey/coursemart-api/utils/auth"
	"github.com/sahilchouksey/coursemart-api/utils/authz"
	"github.com/sahilchouksey/coursemart-api/utils/response"
)

// TokenValidator parses access tokens
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// RevocationChecker reports blacklisted token ids
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	tokens  TokenValidator
	revoked RevocationChecker
	users   repository.UserRepository
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(tokens TokenValidator, revoked RevocationChecker, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:  tokens,
		revoked: revoked,
		users:   users,
	}
}

// authenticate resolves the bearer token into claims and the current user.
// The returned message is suitable for a 401 response.
func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (*auth.Claims, *model.User, string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return nil, nil, "Missing authorization token", nil
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, nil, "Invalid authorization format", nil
	}

	claims, err := m.tokens.ValidateToken(parts[1])
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, nil, "Token has expired", nil
		}
		return nil, nil, "Invalid token", nil
	}

	if claims.TokenType != auth.TokenTypeAccess {
		return nil, nil, "Invalid token type", nil
	}

	isRevoked, err := m.revoked.IsTokenRevoked(c.UserContext(), claims.ID)
	if err != nil {
		return nil, nil, "", err
	}
	if isRevoked {
		return nil, nil, "Token has been revoked", nil
	}

	// Load user and verify token version
	user, err := m.users.GetByID(c.UserContext(), claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, "User not found", nil
	}
	if err != nil {
		return nil, nil, "", err
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, nil, "Token has been invalidated", nil
	}

	return claims, user, "", nil
}

func setLocals(c *fiber.Ctx, claims *auth.Claims, user *model.User) {
	c.Locals("user_id", user.ID)
	c.Locals("user_email", user.Email)
	c.Locals("user_role", user.Role)
	c.Locals("claims", claims)
	c.Locals("user", user)
	c.Locals("token_jti", claims.ID)
}

// Required is middleware that requires a valid JWT token
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, user, reason, err := m.authenticate(c)
		if err != nil {
			return response.InternalServerError(c, "Failed to verify token")
		}
		if reason != "" {
			return response.Unauthorized(c, reason)
		}

		setLocals(c, claims, user)
		return c.Next()
	}
}

// Optional is middleware that allows requests with or without a token
func (m *AuthMiddleware) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, user, reason, err := m.authenticate(c)
		if err == nil && reason == "" {
			setLocals(c, claims, user)
		}
		return c.Next()
	}
}

// RequireRole is middleware that requires one of the given roles. Use after Required.
func (m *AuthMiddleware) RequireRole(roles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := GetUser(c)
		if !ok {
			return response.Forbidden(c, "Access denied")
		}
		if !authz.HasRole(user, roles...) {
			return response.Forbidden(c, "Insufficient permissions")
		}
		return c.Next()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("user_id").(uint)
	return id, ok
}

// GetUserRole extracts user role from context
func GetUserRole(c *fiber.Ctx) (model.Role, bool) {
	role, ok := c.Locals("user_role").(model.Role)
	return role, ok
}

// GetUser extracts full user object from context
func GetUser(c *fiber.Ctx) (*model.User, bool) {
	u, ok := c.Locals("user").(*model.User)
	return u, ok && u != nil
}

// GetClaims extracts full claims from context
func GetClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals("claims").(*auth.Claims)
	return claims, ok && claims != nil
}

// GetTokenJTI extracts the token JTI from context
func GetTokenJTI(c *fiber.Ctx) (string, bool) {
	jti, ok := c.Locals("token_jti").(string)
	return jti, ok
}
