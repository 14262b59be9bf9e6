package handlers

import (
	"strconv"

	"menupay/internal/middleware"
	"menupay/internal/models"

	"github.com/gofiber/fiber/v2"
)

func businessID(c *fiber.Ctx) uint {
	id, _ := c.Locals(middleware.LocalsBusiness).(uint)
	return id
}

func claimsFrom(c *fiber.Ctx) *models.UserClaims {
	claims, _ := c.Locals(middleware.LocalsClaims).(*models.UserClaims)
	return claims
}

func uintParam(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
