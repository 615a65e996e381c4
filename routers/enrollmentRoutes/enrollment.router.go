package enrollmentRoutes

import (
	controllers "coursepay/controllers/enrollment"
	"coursepay/middleware"
	validators "coursepay/validators/enrollment"

	"github.com/gofiber/fiber/v2"
)

// SetupEnrollmentRoutes sets up all user-facing enrollment routes
func SetupEnrollmentRoutes(app *fiber.App) {
	group := app.Group("/enrollment")

	// Purchase intent for one schedule (free or paid path)
	group.Post("/schedule/:scheduleId", middleware.JWTMiddleware, validators.RequestEnrollment(), controllers.RequestEnrollment)

	// Cancellation and the read-only refund quote shown before it
	group.Post("/:id/cancel", middleware.JWTMiddleware, validators.EnrollmentID(), controllers.CancelEnrollment)
	group.Get("/:id/refund-quote", middleware.JWTMiddleware, validators.EnrollmentID(), controllers.PreviewCancel)

	// Account page listing
	group.Get("/", middleware.JWTMiddleware, controllers.GetEnrollments)
}
