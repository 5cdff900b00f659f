package report

import (
	"go-adrules/internal/api"
	"go-adrules/internal/config"
	"go-adrules/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReportApi struct {
	controller *ReportController
	config     *config.Config
}

func NewReportApi(controller *ReportController, config *config.Config) api.Route {
	return &ReportApi{
		controller: controller,
		config:     config,
	}
}

func (h *ReportApi) Setup(app *fiber.App) {
	group := app.Group("/api/reports", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Get("/rule-runs.xlsx", h.controller.ExportRunLogs)
}
