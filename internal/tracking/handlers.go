package tracking

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the session query surface. Mutations flow through the
// realtime channel; REST only reads, except for the administrative delete.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Get("/sessions/active", func(c *fiber.Ctx) error {
		sessions, err := svc.ActiveSessions(c.Context(), orgID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"sessions": sessions})
	})

	r.Get("/beatplans/:beatPlanId/session", func(c *fiber.Ctx) error {
		sess, err := svc.CurrentSession(c.Context(), orgID(c), c.Params("beatPlanId"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(sess)
	})

	r.Get("/beatplans/:beatPlanId/sessions", func(c *fiber.Ctx) error {
		sessions, err := svc.History(c.Context(), orgID(c), c.Params("beatPlanId"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"sessions": sessions})
	})

	r.Get("/sessions/:id/locations", func(c *fiber.Ctx) error {
		points, err := svc.Breadcrumbs(c.Context(), orgID(c), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"locations": points})
	})

	r.Get("/sessions/:id/location", func(c *fiber.Ctx) error {
		point, err := svc.CurrentLocation(c.Context(), orgID(c), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"currentLocation": point})
	})

	r.Get("/sessions/:id/summary", func(c *fiber.Ctx) error {
		sum, err := svc.SessionSummary(c.Context(), orgID(c), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(sum)
	})

	r.Delete("/sessions/:id", func(c *fiber.Ctx) error {
		if role, _ := c.Locals("role").(string); role != "admin" {
			return fiber.NewError(fiber.StatusForbidden, "admin role required")
		}
		if err := svc.DeleteSession(c.Context(), orgID(c), c.Params("id")); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func orgID(c *fiber.Ctx) string {
	org, _ := c.Locals("org_id").(string)
	return org
}

func httpError(err error) *fiber.Error {
	return fiber.NewError(HTTPStatus(err), err.Error())
}
