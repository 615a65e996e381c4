package controllers

import (
	"errors"

	"coursepay/database"
	"coursepay/ledger"
	"coursepay/middleware"
	"coursepay/models"

	"github.com/gofiber/fiber/v2"
)

// Ledger is injected at route setup.
var Ledger *ledger.Ledger

// statusForLedgerError maps the ledger's error taxonomy to HTTP codes.
func statusForLedgerError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidContactInfo):
		return fiber.StatusBadRequest
	case errors.Is(err, ledger.ErrAlreadyEnrolled),
		errors.Is(err, ledger.ErrScheduleClosed),
		errors.Is(err, ledger.ErrAlreadyTerminal):
		return fiber.StatusConflict
	case errors.Is(err, ledger.ErrGatewayRejected):
		return fiber.StatusBadGateway
	case errors.Is(err, ledger.ErrGatewayUnreachable):
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusInternalServerError
}

// RequestEnrollment handles a purchase intent for one schedule. Free
// courses confirm immediately; paid courses answer with the gateway's
// follow-up payment URL.
func RequestEnrollment(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	scheduleID := c.Locals("scheduleID").(uint)
	// Tags must match the validator's literal exactly; they are part of
	// the type identity the assertion checks.
	reqData, ok := c.Locals("validatedEnrollment").(*struct {
		Phone string `json:"phone" validate:"omitempty,min=9,max=20"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	phone := reqData.Phone
	if phone == "" {
		phone = user.Mobile
	}

	result, err := Ledger.RequestEnrollment(userID, scheduleID, user.Name, phone)
	if err != nil {
		return middleware.JsonResponse(c, statusForLedgerError(err), false, err.Error(), nil)
	}

	if result.BillURL == "" {
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrolled in course successfully!", fiber.Map{
			"enrollment": result.Enrollment,
		})
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Payment requested. Complete it at the bill URL.", fiber.Map{
		"enrollment": result.Enrollment,
		"billUrl":    result.BillURL,
	})
}

// CancelEnrollment ends an enrollment and reports the computed refund.
func CancelEnrollment(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	enrollmentID := c.Locals("enrollmentID").(uint)

	result, err := Ledger.Cancel(enrollmentID, userID)
	if err != nil {
		return middleware.JsonResponse(c, statusForLedgerError(err), false, err.Error(), nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollment cancelled.", fiber.Map{
		"enrollment":   result.Enrollment,
		"refundRate":   result.RefundRate,
		"refundAmount": result.RefundAmount,
		"reason":       result.Reason,
	})
}

// PreviewCancel quotes the refund for an enrollment without mutating
// anything, so the UI can show it before the user confirms.
func PreviewCancel(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	enrollmentID := c.Locals("enrollmentID").(uint)

	quote, err := Ledger.PreviewCancel(enrollmentID, userID)
	if err != nil {
		return middleware.JsonResponse(c, statusForLedgerError(err), false, err.Error(), nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Refund quote computed.", fiber.Map{
		"refundRate":   quote.Rate(),
		"refundAmount": quote.Amount,
		"reason":       quote.Reason,
	})
}

// GetEnrollments returns the caller's enrollments, newest first.
func GetEnrollments(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)

	enrollments, total, err := Ledger.ListEnrollments(userID, page, limit)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch enrollments!", nil)
	}

	response := fiber.Map{
		"enrollments": enrollments,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollments fetched successfully!", response)
}
