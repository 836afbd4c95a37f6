package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/videogen-ai/videogen/internal/pkg/auth"
	"github.com/videogen-ai/videogen/internal/pkg/credits"
	"github.com/videogen-ai/videogen/internal/pkg/statistics"
	"github.com/videogen-ai/videogen/internal/pkg/usercontext"
	"github.com/videogen-ai/videogen/internal/pkg/utils"
)

type UserController struct {
	auth   *auth.Service
	ledger *credits.Ledger
	stats  *statistics.Service
}

func NewUserController(authSvc *auth.Service, ledger *credits.Ledger, stats *statistics.Service) *UserController {
	return &UserController{auth: authSvc, ledger: ledger, stats: stats}
}

// HandleMe - GET /api/user/me
func (uc *UserController) HandleMe(c *fiber.Ctx) error {
	user, err := uc.auth.Me(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user": fiber.Map{
			"id":            user.ID,
			"email":         user.Email,
			"fullName":      user.FullName,
			"emailVerified": user.EmailVerified,
			"avatarUrl":     utils.GravatarURL(user.Email, 0),
			"createdAt":     user.CreatedAt,
		},
	})
}

// HandleCredits - GET /api/user/credits
func (uc *UserController) HandleCredits(c *fiber.Ctx) error {
	balance, err := uc.ledger.Balance(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"credits": balance})
}

// HandleTransactions - GET /api/user/transactions?limit=
func (uc *UserController) HandleTransactions(c *fiber.Ctx) error {
	txs, err := uc.ledger.History(c.UserContext(), usercontext.GetUserID(c), c.QueryInt("limit", credits.DefaultHistoryLimit))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"transactions": txs})
}

// HandleStats - GET /api/user/stats
func (uc *UserController) HandleStats(c *fiber.Ctx) error {
	stats, err := uc.stats.ForUser(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}
