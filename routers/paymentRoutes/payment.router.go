package paymentRoutes

import (
	controllers "coursepay/controllers/payment"

	"github.com/gofiber/fiber/v2"
)

// SetupPaymentRoutes sets up the gateway-facing payment routes.
// The callback is authenticated by its hash, not by JWT: the caller is
// the gateway, not a user.
func SetupPaymentRoutes(app *fiber.App) {
	group := app.Group("/payment")

	group.Post("/callback", controllers.HandleCallback)
}
