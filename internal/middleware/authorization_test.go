package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func authorizedApp(userID, role string, capability string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
		}
		if role != "" {
			c.Locals("user_role", role)
		}
		return c.Next()
	})
	app.Use(ResolveAuthorization())
	app.Use(RequireCapability(capability))
	app.Get("/guarded", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireCapabilityAllowsGrantedRole(t *testing.T) {
	app := authorizedApp("admin-1", "admin", CapCatalogManage)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireCapabilityRejectsMissingGrant(t *testing.T) {
	app := authorizedApp("viewer-1", "viewer", CapCatalogManage)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestResolveAuthorizationRequiresUser(t *testing.T) {
	app := authorizedApp("", "viewer", CapChatSend)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestResolveAuthorizationDefaultsUnknownRoleToViewer(t *testing.T) {
	app := authorizedApp("user-1", "wizard", CapChatSend)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	forbidden := authorizedApp("user-1", "wizard", CapEarningsRead)
	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	resp, err = forbidden.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
