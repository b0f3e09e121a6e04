package handlers

import (
	"log"

	"vinted/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// PaymentHandler handles payment capture.
type PaymentHandler struct {
	service  *services.PaymentService
	validate *validator.Validate
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the payment route.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/pay", h.HandlePay)
}

// OfferData is the listing as the buyer saw it when paying.
type OfferData struct {
	ID    string  `json:"_id" validate:"required"`
	Price float64 `json:"product_price" validate:"gt=0"`
}

// PayRequest represents the request body of /pay.
type PayRequest struct {
	StripeToken string    `json:"stripeToken" validate:"required"`
	UserToken   string    `json:"userToken" validate:"required"`
	OfferData   OfferData `json:"offerData"`
}

// HandlePay charges the buyer and marks the listing sold. Upstream failures
// are reported as 400 on this route.
func (h *PaymentHandler) HandlePay(c *fiber.Ctx) error {
	var req PayRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing pay request body: %v", err)
		return failure(c, fiber.StatusBadRequest, services.MsgPaymentFailed)
	}
	if err := h.validate.Struct(req); err != nil {
		return failure(c, fiber.StatusBadRequest, services.MsgPurchaseRefused)
	}

	charge, err := h.service.Pay(c.UserContext(), services.PayInput{
		StripeToken: req.StripeToken,
		UserToken:   req.UserToken,
		ListingID:   req.OfferData.ID,
		Price:       req.OfferData.Price,
	})
	if err != nil {
		if services.KindOf(err) == services.KindUpstream {
			log.Printf("Payment failed: %v", err)
			return failure(c, fiber.StatusBadRequest, services.MsgPaymentFailed)
		}
		return respondError(c, err)
	}

	return success(c, fiber.StatusOK, charge)
}
