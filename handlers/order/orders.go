package order

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursemart-api/services"
	"github.com/sahilchouksey/coursemart-api/utils/middleware"
	"github.com/sahilchouksey/coursemart-api/utils/response"
	"github.com/sahilchouksey/coursemart-api/utils/validation"
)

// OrderHandler handles paid course checkout
type OrderHandler struct {
	settlement *services.SettlementService
	validator  *validation.Validator
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(settlement *services.SettlementService, validator *validation.Validator) *OrderHandler {
	return &OrderHandler{
		settlement: settlement,
		validator:  validator,
	}
}

// CreateOrderRequest represents the request body for starting a checkout
type CreateOrderRequest struct {
	CourseID uint `json:"course_id" validate:"required,min=1"`
}

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.FromError(c, err)
	}

	payment, err := h.settlement.CreateOrder(c.UserContext(), userID, req.CourseID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Order created. Approve the payment to complete enrollment.", payment)
}

// CaptureOrder handles POST /api/v1/orders/:orderId/capture
func (h *OrderHandler) CaptureOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	orderID := strings.TrimSpace(c.Params("orderId"))
	if orderID == "" {
		return response.BadRequest(c, "Order ID is required")
	}

	result, err := h.settlement.CaptureOrder(c.UserContext(), orderID, userID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Payment captured and enrollment activated", result)
}

// ListMyPayments handles GET /api/v1/payments/me
func (h *OrderHandler) ListMyPayments(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	payments, err := h.settlement.ListMyPayments(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, payments)
}
