package course

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursemart-api/utils/middleware"
	"github.com/sahilchouksey/coursemart-api/utils/response"
)

// EnrollFree handles POST /api/v1/courses/:id/enroll for courses priced at zero
func (h *CourseHandler) EnrollFree(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	id, ok := parseCourseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	enrollment, err := h.settlement.EnrollFree(c.UserContext(), userID, id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Enrolled successfully", enrollment)
}

// CourseEnrollments handles GET /api/v1/courses/:id/enrollments
func (h *CourseHandler) CourseEnrollments(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	id, ok := parseCourseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	enrollments, err := h.settlement.GetCourseEnrollments(c.UserContext(), user, id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, enrollments)
}

// CoursePayments handles GET /api/v1/courses/:id/payments
func (h *CourseHandler) CoursePayments(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	id, ok := parseCourseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	payments, err := h.settlement.GetCoursePayments(c.UserContext(), user, id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, payments)
}
