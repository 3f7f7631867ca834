package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	WalletAddressHeader = "X-Wallet-Address"
	UserRolesHeader     = "X-User-Roles"

	walletLocal = "wallet_address"
	rolesLocal  = "user_roles"
)

// WalletContextMiddleware attaches the wallet address and roles the gateway
// resolved for the caller. Routes behind it require a wallet.
func WalletContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		wallet := strings.ToLower(strings.TrimSpace(c.Get(WalletAddressHeader)))
		if wallet == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing " + WalletAddressHeader + ": request must come through the gateway with wallet context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get(UserRolesHeader), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, strings.ToLower(r))
			}
		}

		c.Locals(walletLocal, wallet)
		c.Locals(rolesLocal, roles)
		return c.Next()
	}
}

// Wallet returns the address set by WalletContextMiddleware
func Wallet(c *fiber.Ctx) string {
	w, _ := c.Locals(walletLocal).(string)
	return w
}

func HasRole(c *fiber.Ctx, role string) bool {
	roles, _ := c.Locals(rolesLocal).([]string)
	for _, r := range roles {
		if r == strings.ToLower(role) {
			return true
		}
	}
	return false
}

// RequireRole rejects callers without role; use after WalletContextMiddleware
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !HasRole(c, role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden",
			})
		}
		return c.Next()
	}
}
