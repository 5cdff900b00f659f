package report

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

type ReportController struct {
	Service ReportService
}

func NewReportController(service ReportService) *ReportController {
	return &ReportController{Service: service}
}

// ExportRunLogs godoc
// @Summary Export rule run history
// @Description Download run history as an .xlsx workbook
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param rule_id query string false "Limit to one rule"
// @Param limit query int false "Max entries" default(500)
// @Success 200 {file} binary
// @Failure 500 {object} map[string]interface{}
// @Router /api/reports/rule-runs.xlsx [get]
func (c *ReportController) ExportRunLogs(ctx *fiber.Ctx) error {
	limit, _ := strconv.Atoi(ctx.Query("limit", "500"))

	ctxt, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, filename, err := c.Service.ExportRunLogs(ctxt, ctx.Query("rule_id"), limit)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	ctx.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return ctx.Send(data)
}
