package enrollment

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursemart-api/services"
	"github.com/sahilchouksey/coursemart-api/utils/middleware"
	"github.com/sahilchouksey/coursemart-api/utils/response"
)

// EnrollmentHandler serves the caller's own enrollments
type EnrollmentHandler struct {
	settlement *services.SettlementService
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(settlement *services.SettlementService) *EnrollmentHandler {
	return &EnrollmentHandler{settlement: settlement}
}

// ListMyEnrollments handles GET /api/v1/enrollments/me
func (h *EnrollmentHandler) ListMyEnrollments(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	enrollments, err := h.settlement.ListMyEnrollments(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, enrollments)
}
