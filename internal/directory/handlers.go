package directory

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Directory
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Name == "" || !ValidType(req.Type) {
			return fiber.NewError(fiber.StatusBadRequest, "name and a valid type (party|site|prospect) required")
		}
		req.OrganizationID, _ = c.Locals("org_id").(string)
		d, err := svc.Create(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(d)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		org, _ := c.Locals("org_id").(string)
		dirs, err := svc.List(c.Context(), org)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"directories": dirs})
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		org, _ := c.Locals("org_id").(string)
		d, err := svc.Get(c.Context(), org, c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "directory not found")
		}
		return c.JSON(d)
	})
}
