package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/livecast-io/livecast-api/internal/utils"
)

// Capabilities granted to authenticated users, resolved from the role claim.
const (
	CapChatSend      = "chat.send"
	CapGiftSend      = "gift.send"
	CapGiftPurchase  = "gift.purchase"
	CapWalletRead    = "wallet.read"
	CapEarningsRead  = "earnings.read"
	CapCatalogManage = "catalog.manage"
)

// AuthorizationContext carries the capability set for one request. It is
// resolved once after token validation so handlers never inspect role strings.
type AuthorizationContext struct {
	UserID       string
	Role         string
	capabilities map[string]struct{}
}

// Can reports whether the request holds the capability.
func (a *AuthorizationContext) Can(capability string) bool {
	if a == nil {
		return false
	}
	_, ok := a.capabilities[capability]
	return ok
}

var roleCapabilities = map[string][]string{
	"viewer":  {CapChatSend, CapGiftSend, CapGiftPurchase, CapWalletRead},
	"creator": {CapChatSend, CapGiftSend, CapGiftPurchase, CapWalletRead, CapEarningsRead},
	"admin":   {CapChatSend, CapGiftSend, CapGiftPurchase, CapWalletRead, CapEarningsRead, CapCatalogManage},
}

// ResolveAuthorization builds the AuthorizationContext from the validated
// token claims. Unknown roles resolve to the viewer capability set.
func ResolveAuthorization() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserIDFromCtx(c)
		if userID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		role := ""
		if value := c.Locals("user_role"); value != nil {
			if str, ok := value.(string); ok {
				role = strings.ToLower(strings.TrimSpace(str))
			}
		}

		grants, ok := roleCapabilities[role]
		if !ok {
			role = "viewer"
			grants = roleCapabilities[role]
		}

		capabilities := make(map[string]struct{}, len(grants))
		for _, grant := range grants {
			capabilities[grant] = struct{}{}
		}

		c.Locals("authorization", &AuthorizationContext{
			UserID:       userID,
			Role:         role,
			capabilities: capabilities,
		})

		return c.Next()
	}
}

// RequireCapability guards a route behind one capability.
func RequireCapability(capability string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !AuthorizationFromCtx(c).Can(capability) {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// AuthorizationFromCtx returns the resolved capability set, or nil when the
// request never passed through ResolveAuthorization.
func AuthorizationFromCtx(c *fiber.Ctx) *AuthorizationContext {
	if value := c.Locals("authorization"); value != nil {
		if auth, ok := value.(*AuthorizationContext); ok {
			return auth
		}
	}
	return nil
}
