package beatplan

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req BeatPlan
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name required")
		}
		req.OrganizationID, _ = c.Locals("org_id").(string)
		req.CreatedBy, _ = c.Locals("user_id").(string)
		plan, err := svc.Create(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(plan)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		org, _ := c.Locals("org_id").(string)
		plan, err := svc.Get(c.Context(), org, c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "beat plan not found")
		}
		return c.JSON(plan)
	})

	r.Post("/:id/assignees", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			UserID string `json:"userId"`
		}
		if err := c.BodyParser(&body); err != nil || body.UserID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "userId required")
		}
		assignment, err := svc.Assign(c.Context(), c.Params("id"), body.UserID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(assignment)
	})

	r.Get("/:id/assignees", authMiddleware, func(c *fiber.Ctx) error {
		assignments, err := svc.Assignees(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"assignees": assignments})
	})

	r.Post("/:id/stops", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			DirectoryID string `json:"directoryId"`
			Position    int    `json:"position"`
		}
		if err := c.BodyParser(&body); err != nil || body.DirectoryID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "directoryId required")
		}
		ref, err := svc.AddStop(c.Context(), StopRef{
			BeatPlanID:  c.Params("id"),
			DirectoryID: body.DirectoryID,
			Position:    body.Position,
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(ref)
	})

	r.Get("/:id/stops", authMiddleware, func(c *fiber.Ctx) error {
		org, _ := c.Locals("org_id").(string)
		stops, err := svc.Stops(c.Context(), org, c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"stops": stops})
	})
}
