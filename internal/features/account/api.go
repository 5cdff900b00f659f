package account

import (
	"go-adrules/internal/api"
	"go-adrules/internal/config"
	"go-adrules/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AccountApi struct {
	controller *AccountController
	config     *config.Config
}

func NewAccountApi(controller *AccountController, config *config.Config) api.Route {
	return &AccountApi{
		controller: controller,
		config:     config,
	}
}

func (h *AccountApi) Setup(app *fiber.App) {
	group := app.Group("/api/accounts", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Get("/", h.controller.ListAccounts)
	group.Post("/", h.controller.LinkAccount)
	group.Get("/:id", h.controller.GetAccount)
	group.Put("/:id", h.controller.UpdateAccount)
	group.Delete("/:id", h.controller.UnlinkAccount)
}
