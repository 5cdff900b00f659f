package metric

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type MetricController struct {
	Service CatalogService
}

func NewMetricController(service CatalogService) *MetricController {
	return &MetricController{Service: service}
}

// ListMetrics godoc
// @Summary List metric catalog
// @Description List all metrics usable in rule conditions (built-in + custom)
// @Tags metrics
// @Produce json
// @Success 200 {array} Definition
// @Failure 500 {object} map[string]interface{}
// @Router /api/metrics [get]
func (c *MetricController) ListMetrics(ctx *fiber.Ctx) error {
	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	defs, err := c.Service.Catalog(ctxt)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(defs)
}

// CreateCustomMetric godoc
// @Summary Create custom metric
// @Description Create a user-authored formula metric
// @Tags metrics
// @Accept json
// @Produce json
// @Param metric body CustomMetric true "Custom Metric"
// @Success 201 {object} CustomMetric
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/metrics/custom [post]
func (c *MetricController) CreateCustomMetric(ctx *fiber.Ctx) error {
	var m CustomMetric
	if err := ctx.BodyParser(&m); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Service.CreateCustom(ctxt, &m); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.Status(fiber.StatusCreated).JSON(m)
}

// DeleteCustomMetric godoc
// @Summary Delete custom metric
// @Tags metrics
// @Param id path string true "Metric ID"
// @Success 204 {object} nil
// @Failure 500 {object} map[string]interface{}
// @Router /api/metrics/custom/{id} [delete]
func (c *MetricController) DeleteCustomMetric(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	ctxt, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Service.DeleteCustom(ctxt, id); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}
