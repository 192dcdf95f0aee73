// Package handlers exposes the HTTP surface over the ledger engine.
package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/autolink/internal/ledger"
)

// mapLedgerError translates ledger failures into HTTP errors. Anything
// outside the taxonomy bubbles up to fiber's error handler as a 500.
func mapLedgerError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrAlreadyClosed),
		errors.Is(err, ledger.ErrAlreadyPaid),
		errors.Is(err, ledger.ErrDuplicateIdentity):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrNoRecipients):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrInvalidCode),
		errors.Is(err, ledger.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return err
	}
}
