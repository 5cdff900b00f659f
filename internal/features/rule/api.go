package rule

import (
	"go-adrules/internal/api"
	"go-adrules/internal/config"
	"go-adrules/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type RuleApi struct {
	controller *RuleController
	config     *config.Config
}

func NewRuleApi(controller *RuleController, config *config.Config) api.Route {
	return &RuleApi{
		controller: controller,
		config:     config,
	}
}

func (h *RuleApi) Setup(app *fiber.App) {
	rules := app.Group("/api/rules", middleware.AuthMiddleware(h.config.SkipAuth))

	rules.Get("/", h.controller.ListRules)
	rules.Post("/", h.controller.CreateRule)
	rules.Get("/:id", h.controller.GetRule)
	rules.Put("/:id", h.controller.UpdateRule)
	rules.Delete("/:id", h.controller.DeleteRule)
	rules.Post("/:id/toggle", h.controller.ToggleRule)
	rules.Post("/:id/run", h.controller.RunRule)
	rules.Get("/:id/logs", h.controller.GetRuleLogs)

	scheduler := app.Group("/api/scheduler", middleware.AuthMiddleware(h.config.SkipAuth))

	scheduler.Get("/", h.controller.GetSchedulerStatus)
	scheduler.Post("/toggle", h.controller.ToggleScheduler)
}
