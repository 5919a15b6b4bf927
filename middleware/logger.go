package middleware

import (
	"time"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/utils"
	"github.com/gofiber/fiber/v2"
)

// RequestLogger prints one colored access line per request.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		utils.LogRequest(c.Method(), c.OriginalURL(), status, time.Since(start))
		return err
	}
}
