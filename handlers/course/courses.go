package course

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursemart-api/services"
	"github.com/sahilchouksey/coursemart-api/utils/middleware"
	"github.com/sahilchouksey/coursemart-api/utils/response"
	"github.com/sahilchouksey/coursemart-api/utils/validation"
	"github.com/shopspring/decimal"
)

// CourseHandler handles course-related requests
type CourseHandler struct {
	courses    *services.CourseService
	settlement *services.SettlementService
	validator  *validation.Validator
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(courses *services.CourseService, settlement *services.SettlementService, validator *validation.Validator) *CourseHandler {
	return &CourseHandler{
		courses:    courses,
		settlement: settlement,
		validator:  validator,
	}
}

// CreateCourseRequest represents the request body for creating a course
type CreateCourseRequest struct {
	Title       string           `json:"title" validate:"required,min=3,max=255"`
	Description string           `json:"description" validate:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price"`
	Capacity    *int             `json:"capacity" validate:"omitempty,min=0"`
	Published   *bool            `json:"published"`
}

// UpdateCourseRequest represents the request body for updating a course
type UpdateCourseRequest struct {
	Title       *string          `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price"`
	Capacity    *int             `json:"capacity" validate:"omitempty,min=0"`
	Published   *bool            `json:"published"`
}

func parseCourseID(c *fiber.Ctx) (uint, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return 0, false
	}
	return uint(id), true
}

// ListCourses handles GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	page, limit := response.NormalizePage(c.QueryInt("page", 1), c.QueryInt("limit", 10))
	search := validation.SanitizeString(c.Query("search", ""))

	result, err := h.courses.ListCourses(c.UserContext(), page, limit, search)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Paginated(c, result.Courses, response.CalculatePagination(page, limit, result.Total))
}

// GetCourse handles GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	id, ok := parseCourseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	// Anonymous callers are allowed; owners also see their drafts
	actor, _ := middleware.GetUser(c)

	course, err := h.courses.GetCourse(c.UserContext(), actor, id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, course)
}

// CreateCourse handles POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.FromError(c, err)
	}

	title := validation.SanitizeString(req.Title)
	description := validation.SanitizeString(req.Description)

	course, err := h.courses.CreateCourse(c.UserContext(), user, services.CourseInput{
		Title:       &title,
		Description: &description,
		Price:       req.Price,
		Capacity:    req.Capacity,
		Published:   req.Published,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Course created successfully", course)
}

// UpdateCourse handles PUT /api/v1/courses/:id
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	id, ok := parseCourseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	var req UpdateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.FromError(c, err)
	}

	if req.Title != nil {
		title := validation.SanitizeString(*req.Title)
		req.Title = &title
	}
	if req.Description != nil {
		description := validation.SanitizeString(*req.Description)
		req.Description = &description
	}

	course, err := h.courses.UpdateCourse(c.UserContext(), user, id, services.CourseInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Capacity:    req.Capacity,
		Published:   req.Published,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Course updated successfully", course)
}

// DeleteCourse handles DELETE /api/v1/courses/:id
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	id, ok := parseCourseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	if err := h.courses.DeleteCourse(c.UserContext(), user, id); err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Course deleted successfully", nil)
}
