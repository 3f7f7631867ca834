package handlers

import (
	"strings"

	"affiliate-engine/logger"
	"affiliate-engine/middleware"
	"affiliate-engine/models"
	"affiliate-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// userFilter reads the listing filter from the query string
func userFilter(c *fiber.Ctx) services.UserFilter {
	return services.UserFilter{
		RoleFilter:     c.Query("role"),
		LevelFilter:    c.QueryInt("level", 0),
		IncludeNetwork: c.QueryBool("network", false),
		Search:         c.Query("search"),
		Limit:          c.QueryInt("limit", services.DefaultUsersLimit),
		Offset:         c.QueryInt("offset", 0),
	}
}

// SetupAffiliateRoutes mounts the dashboard endpoints. Every route acts on
// the caller's own wallet.
func SetupAffiliateRoutes(app *fiber.App, svc *services.AffiliateService, l logrus.FieldLogger) {
	log := logger.Component(l, "affiliate-http")
	g := app.Group("/affiliate", middleware.WalletContextMiddleware())

	g.Get("/metrics", func(c *fiber.Ctx) error {
		m, err := svc.GetAffiliateMetrics(c.UserContext(), middleware.Wallet(c))
		if err != nil {
			return respondError(c, log, "failed to compute affiliate metrics", err)
		}
		return c.JSON(m)
	})

	g.Get("/network-metrics", func(c *fiber.Ctx) error {
		m, err := svc.GetNetworkMetrics(c.UserContext(), middleware.Wallet(c))
		if err != nil {
			return respondError(c, log, "failed to compute network metrics", err)
		}
		return c.JSON(m)
	})

	g.Get("/users", func(c *fiber.Ctx) error {
		f := userFilter(c)
		if f.LevelFilter < 0 || f.LevelFilter > services.MaxNetworkDepth {
			return badRequest(c, "level must be between 1 and 5", nil)
		}
		if role := strings.TrimSpace(f.RoleFilter); role != "" && !strings.EqualFold(role, "all") {
			if _, ok := models.ParseRoleTier(role); !ok {
				return badRequest(c, "role must be one of NOMAD, PRO, ROYAL or ALL", nil)
			}
		}
		page, err := svc.GetAffiliateUsers(c.UserContext(), middleware.Wallet(c), f)
		if err != nil {
			return respondError(c, log, "failed to list affiliate users", err)
		}
		return c.JSON(page)
	})

	g.Get("/commissions", func(c *fiber.Ctx) error {
		data, err := svc.GetCommissionData(c.UserContext(), middleware.Wallet(c))
		if err != nil {
			return respondError(c, log, "failed to load commissions", err)
		}
		return c.JSON(data)
	})

	g.Get("/sponsor", func(c *fiber.Ctx) error {
		info, err := svc.GetSponsorInfo(c.UserContext(), middleware.Wallet(c))
		if err != nil {
			return respondError(c, log, "failed to load sponsor", err)
		}
		return c.JSON(fiber.Map{"sponsor": info})
	})

	g.Get("/code", func(c *fiber.Ctx) error {
		rc, err := svc.GetDefaultReferralCode(c.UserContext(), middleware.Wallet(c))
		if err != nil {
			return respondError(c, log, "failed to load referral code", err)
		}
		return c.JSON(rc)
	})

	g.Post("/code", func(c *fiber.Ctx) error {
		var body struct {
			Vanity string `json:"vanity"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return badRequest(c, "invalid request body", err)
			}
		}
		rc, err := svc.GetOrCreateReferralCode(c.UserContext(), middleware.Wallet(c), body.Vanity)
		if err != nil {
			return respondError(c, log, "failed to create referral code", err)
		}
		return c.JSON(rc)
	})

	g.Get("/code/stats", func(c *fiber.Ctx) error {
		stats, err := svc.GetReferralStats(c.UserContext(), middleware.Wallet(c))
		if err != nil {
			return respondError(c, log, "failed to load referral stats", err)
		}
		return c.JSON(stats)
	})

	g.Post("/export", func(c *fiber.Ctx) error {
		res, err := svc.ExportAffiliateUsers(c.UserContext(), middleware.Wallet(c), userFilter(c))
		if err != nil {
			return respondError(c, log, "failed to export affiliate users", err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})
}
