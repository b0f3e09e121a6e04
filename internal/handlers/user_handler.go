package handlers

import (
	"log"

	"vinted/internal/models"
	"vinted/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// UserHandler handles HTTP requests for accounts.
type UserHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(authService *services.AuthService) *UserHandler {
	return &UserHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the account routes with the Fiber app.
func (h *UserHandler) RegisterRoutes(router fiber.Router) {
	userRoutes := router.Group("/user")
	userRoutes.Post("/signup", h.HandleSignup)
	userRoutes.Post("/login", h.HandleLogin)
	userRoutes.Get("/:token", h.HandleProfile)
}

// SignupRequest represents the request body for signup.
type SignupRequest struct {
	Username   string `json:"username" validate:"required,min=5"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=10"`
	Newsletter bool   `json:"newsletter"`
}

var signupMessages = map[string]string{
	"Username": "You must provide a valid username (5 chars at least)",
	"Email":    "You must provide a valid email",
	"Password": services.MsgPasswordTooShort,
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

var loginMessages = map[string]string{
	"Email":    "You must provide a valid email",
	"Password": "You must provide a valid password",
}

// sessionResponse is returned by signup and login.
type sessionResponse struct {
	ID      string         `json:"_id"`
	Token   string         `json:"token"`
	Account models.Profile `json:"account"`
}

func newSessionResponse(acct *models.Account) sessionResponse {
	return sessionResponse{ID: acct.ID, Token: acct.Token, Account: acct.Profile}
}

// HandleSignup handles new account registration.
func (h *UserHandler) HandleSignup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing signup request body: %v", err)
		return failure(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := h.validate.Struct(req); err != nil {
		return failure(c, fiber.StatusBadRequest, validationMessage(err, signupMessages, "Validation failed"))
	}

	acct, err := h.authService.Signup(c.UserContext(), services.SignupInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		Newsletter: req.Newsletter,
	})
	if err != nil {
		return respondError(c, err)
	}

	return success(c, fiber.StatusCreated, newSessionResponse(acct))
}

// HandleLogin checks credentials and returns the account's session token.
func (h *UserHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing login request body: %v", err)
		return failure(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := h.validate.Struct(req); err != nil {
		return failure(c, fiber.StatusBadRequest, validationMessage(err, loginMessages, "Validation failed"))
	}

	acct, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return success(c, fiber.StatusOK, newSessionResponse(acct))
}

// HandleProfile returns the public profile owning a session token.
func (h *UserHandler) HandleProfile(c *fiber.Ctx) error {
	acct, err := h.authService.Profile(c.UserContext(), c.Params("token"))
	if err != nil {
		return respondError(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{
		"userId":   acct.ID,
		"username": acct.Profile.Username,
	})
}
