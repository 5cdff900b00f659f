package rule

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

type RuleController struct {
	Service   RuleService
	Scheduler *Scheduler
}

func NewRuleController(service RuleService, scheduler *Scheduler) *RuleController {
	return &RuleController{Service: service, Scheduler: scheduler}
}

// ListRules godoc
// @Summary List rules
// @Description List all rules with advisory next-run times
// @Tags rules
// @Produce json
// @Success 200 {array} RuleView
// @Failure 500 {object} map[string]interface{}
// @Router /api/rules [get]
func (c *RuleController) ListRules(ctx *fiber.Ctx) error {
	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rules, err := c.Service.List(ctxt)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(rules)
}

// GetRule godoc
// @Summary Get rule
// @Tags rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} RuleView
// @Failure 404 {object} map[string]interface{}
// @Router /api/rules/{id} [get]
func (c *RuleController) GetRule(ctx *fiber.Ctx) error {
	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r, err := c.Service.Get(ctxt, ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if r == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Rule not found"})
	}

	return ctx.JSON(r)
}

// CreateRule godoc
// @Summary Create rule
// @Tags rules
// @Accept json
// @Produce json
// @Param rule body Rule true "Rule"
// @Success 201 {object} Rule
// @Failure 400 {object} map[string]interface{}
// @Router /api/rules [post]
func (c *RuleController) CreateRule(ctx *fiber.Ctx) error {
	var r Rule
	if err := ctx.BodyParser(&r); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Service.Create(ctxt, &r); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.Status(fiber.StatusCreated).JSON(r)
}

// UpdateRule godoc
// @Summary Update rule
// @Tags rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param rule body Rule true "Rule"
// @Success 200 {object} Rule
// @Failure 400 {object} map[string]interface{}
// @Router /api/rules/{id} [put]
func (c *RuleController) UpdateRule(ctx *fiber.Ctx) error {
	var r Rule
	if err := ctx.BodyParser(&r); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Service.Update(ctxt, ctx.Params("id"), &r); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(r)
}

// DeleteRule godoc
// @Summary Delete rule
// @Tags rules
// @Param id path string true "Rule ID"
// @Success 204 {object} nil
// @Failure 500 {object} map[string]interface{}
// @Router /api/rules/{id} [delete]
func (c *RuleController) DeleteRule(ctx *fiber.Ctx) error {
	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Service.Delete(ctxt, ctx.Params("id")); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

// ToggleRule godoc
// @Summary Toggle rule active flag
// @Tags rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} Rule
// @Failure 400 {object} map[string]interface{}
// @Router /api/rules/{id}/toggle [post]
func (c *RuleController) ToggleRule(ctx *fiber.Ctx) error {
	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r, err := c.Service.Toggle(ctxt, ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(r)
}

// RunRule godoc
// @Summary Run rule now
// @Description Execute the rule immediately, bypassing its schedule
// @Tags rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} RunResult
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/rules/{id}/run [post]
func (c *RuleController) RunRule(ctx *fiber.Ctx) error {
	// manual runs wait for the whole execution, so the timeout is generous
	ctxt, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := c.Service.RunNow(ctxt, ctx.Params("id"))
	if err != nil {
		if err == ErrRuleInFlight {
			return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(result)
}

// GetRuleLogs godoc
// @Summary List rule run logs
// @Tags rules
// @Produce json
// @Param id path string true "Rule ID"
// @Param limit query int false "Max entries" default(50)
// @Success 200 {array} RunLog
// @Failure 500 {object} map[string]interface{}
// @Router /api/rules/{id}/logs [get]
func (c *RuleController) GetRuleLogs(ctx *fiber.Ctx) error {
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))

	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logs, err := c.Service.Logs(ctxt, ctx.Params("id"), limit)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(logs)
}

// GetSchedulerStatus godoc
// @Summary Scheduler status
// @Tags scheduler
// @Produce json
// @Success 200 {object} SchedulerStatus
// @Failure 500 {object} map[string]interface{}
// @Router /api/scheduler [get]
func (c *RuleController) GetSchedulerStatus(ctx *fiber.Ctx) error {
	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, err := c.Scheduler.Status(ctxt)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(status)
}

// ToggleScheduler godoc
// @Summary Toggle the global scheduler pause flag
// @Tags scheduler
// @Accept json
// @Produce json
// @Success 200 {object} SchedulerStatus
// @Failure 500 {object} map[string]interface{}
// @Router /api/scheduler/toggle [post]
func (c *RuleController) ToggleScheduler(ctx *fiber.Ctx) error {
	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, err := c.Scheduler.Status(ctxt)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if err := c.Scheduler.SetPaused(ctxt, !status.Paused); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	status, err = c.Scheduler.Status(ctxt)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(status)
}
