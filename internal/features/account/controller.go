package account

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type AccountController struct {
	Service AccountService
}

func NewAccountController(service AccountService) *AccountController {
	return &AccountController{Service: service}
}

// ListAccounts godoc
// @Summary List linked ad accounts
// @Tags accounts
// @Produce json
// @Success 200 {array} AdAccount
// @Failure 500 {object} map[string]interface{}
// @Router /api/accounts [get]
func (c *AccountController) ListAccounts(ctx *fiber.Ctx) error {
	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	accounts, err := c.Service.List(ctxt)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(accounts)
}

// GetAccount godoc
// @Summary Get linked ad account
// @Tags accounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} AdAccount
// @Failure 404 {object} map[string]interface{}
// @Router /api/accounts/{id} [get]
func (c *AccountController) GetAccount(ctx *fiber.Ctx) error {
	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := c.Service.Get(ctxt, ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if a == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
	}

	return ctx.JSON(a)
}

// LinkAccount godoc
// @Summary Link an ad account
// @Description Store an ad account and verify its token against the Graph API
// @Tags accounts
// @Accept json
// @Produce json
// @Param account body AdAccount true "Ad Account"
// @Success 201 {object} AdAccount
// @Failure 400 {object} map[string]interface{}
// @Router /api/accounts [post]
func (c *AccountController) LinkAccount(ctx *fiber.Ctx) error {
	var a AdAccount
	if err := ctx.BodyParser(&a); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	// token verification calls the Graph API, give it room
	ctxt, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := c.Service.Link(ctxt, &a); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.Status(fiber.StatusCreated).JSON(a)
}

// UpdateAccount godoc
// @Summary Update a linked ad account
// @Tags accounts
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param account body AdAccount true "Fields to update"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/accounts/{id} [put]
func (c *AccountController) UpdateAccount(ctx *fiber.Ctx) error {
	var a AdAccount
	if err := ctx.BodyParser(&a); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ctxt, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := c.Service.Update(ctxt, ctx.Params("id"), &a); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{"message": "Account updated"})
}

// UnlinkAccount godoc
// @Summary Unlink an ad account
// @Tags accounts
// @Param id path string true "Account ID"
// @Success 204 {object} nil
// @Failure 500 {object} map[string]interface{}
// @Router /api/accounts/{id} [delete]
func (c *AccountController) UnlinkAccount(ctx *fiber.Ctx) error {
	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Service.Unlink(ctxt, ctx.Params("id")); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}
