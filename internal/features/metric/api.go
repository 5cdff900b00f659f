package metric

import (
	"go-adrules/internal/api"
	"go-adrules/internal/config"
	"go-adrules/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type MetricApi struct {
	controller *MetricController
	config     *config.Config
}

func NewMetricApi(controller *MetricController, config *config.Config) api.Route {
	return &MetricApi{
		controller: controller,
		config:     config,
	}
}

func (h *MetricApi) Setup(app *fiber.App) {
	group := app.Group("/api/metrics", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Get("/", h.controller.ListMetrics)
	group.Post("/custom", h.controller.CreateCustomMetric)
	group.Delete("/custom/:id", h.controller.DeleteCustomMetric)
}
