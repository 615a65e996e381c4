package enrollmentValidator

import (
	"coursepay/middleware"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// RequestEnrollment validates the schedule id param and the purchase
// body. Phone format itself is normalized and checked again by the
// signer; this only rejects obviously broken input at the boundary.
func RequestEnrollment() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheduleIDStr := strings.TrimSpace(c.Params("scheduleId"))
		if scheduleIDStr == "" {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Schedule ID is required!", nil)
		}

		scheduleID, err := strconv.Atoi(scheduleIDStr)
		if err != nil || scheduleID <= 0 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid Schedule ID!", nil)
		}

		reqData := new(struct {
			Phone string `json:"phone" validate:"omitempty,min=9,max=20"`
		})
		if len(c.Body()) > 0 {
			if err := c.BodyParser(reqData); err != nil {
				return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
			}
		}

		if err := validate.Struct(reqData); err != nil {
			errors := map[string]string{"phone": "Phone must be a plausible mobile number!"}
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("scheduleID", uint(scheduleID))
		c.Locals("validatedEnrollment", reqData)
		return c.Next()
	}
}

// EnrollmentID validates the enrollment id param for cancel/preview.
func EnrollmentID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		idStr := strings.TrimSpace(c.Params("id"))
		if idStr == "" {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Enrollment ID is required!", nil)
		}

		id, err := strconv.Atoi(idStr)
		if err != nil || id <= 0 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid Enrollment ID!", nil)
		}

		c.Locals("enrollmentID", uint(id))
		return c.Next()
	}
}
