package middleware

import (
	"log"

	"vinted/internal/models"
	"vinted/internal/services"

	"github.com/gofiber/fiber/v2"
)

const accountKey = "account"

// AuthRequired is a Fiber middleware that resolves the bearer token of the
// request to an account and stores it in the context.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		acct, err := authService.Resolve(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			log.Printf("Authentication failed for %s %s: %v", c.Method(), c.Path(), err)
			status := fiber.StatusUnauthorized
			message := services.MsgUnauthorized
			if services.KindOf(err) != services.KindUnauthenticated {
				status = fiber.StatusInternalServerError
				message = "Something went wrong"
			}
			return c.Status(status).JSON(fiber.Map{
				"success": false,
				"message": message,
			})
		}

		c.Locals(accountKey, acct)
		return c.Next()
	}
}

// AccountFromContext returns the account stored by AuthRequired.
func AccountFromContext(c *fiber.Ctx) (*models.Account, bool) {
	acct, ok := c.Locals(accountKey).(*models.Account)
	return acct, ok && acct != nil
}
