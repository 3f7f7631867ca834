package handlers

import (
	"strings"

	"affiliate-engine/logger"
	"affiliate-engine/middleware"
	"affiliate-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type redeemRequest struct {
	Code string `json:"code"`
}

type clickRequest struct {
	Code        string `json:"code"`
	VisitorID   string `json:"visitor_id"`
	LandingPath string `json:"landing_path"`
}

type convertRequest struct {
	SessionID string `json:"session_id"`
}

// SetupReferralRoutes mounts code validation, click tracking and redemption.
// Validation and clicks happen before sign-in and need no wallet.
func SetupReferralRoutes(app *fiber.App, svc *services.AffiliateService, l logrus.FieldLogger) {
	log := logger.Component(l, "referral-http")
	wallet := middleware.WalletContextMiddleware()
	g := app.Group("/referral")

	g.Get("/validate/:code", func(c *fiber.Ctx) error {
		v, err := svc.ValidateReferralCode(c.UserContext(), c.Params("code"))
		if err != nil {
			return respondError(c, log, "failed to validate referral code", err)
		}
		return c.JSON(v)
	})

	g.Post("/click", func(c *fiber.Ctx) error {
		var req clickRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		if strings.TrimSpace(req.Code) == "" {
			return badRequest(c, "code is required", nil)
		}
		session, err := svc.TrackReferralClick(c.UserContext(), req.Code, services.ClickMeta{
			VisitorID:   req.VisitorID,
			LandingPath: req.LandingPath,
			UserAgent:   c.Get(fiber.HeaderUserAgent),
			ClientIP:    c.IP(),
		})
		if err != nil {
			return respondError(c, log, "failed to track referral click", err)
		}
		return c.Status(fiber.StatusCreated).JSON(session)
	})

	g.Post("/redeem", wallet, func(c *fiber.Ctx) error {
		var req redeemRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		rel, err := svc.ProcessReferralCode(c.UserContext(), req.Code, middleware.Wallet(c))
		if err != nil {
			return respondError(c, log, "failed to process referral code", err)
		}
		return c.Status(fiber.StatusCreated).JSON(rel)
	})

	g.Post("/redeem-default", wallet, func(c *fiber.Ctx) error {
		rel, err := svc.ProcessAdminDefaultReferral(c.UserContext(), middleware.Wallet(c))
		if err != nil {
			return respondError(c, log, "failed to apply default referral", err)
		}
		return c.JSON(rel)
	})

	g.Post("/session/convert", wallet, func(c *fiber.Ctx) error {
		var req convertRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		if strings.TrimSpace(req.SessionID) == "" {
			return badRequest(c, "session_id is required", nil)
		}
		rel, err := svc.ProcessReferralFromSession(c.UserContext(), req.SessionID, middleware.Wallet(c))
		if err != nil {
			return respondError(c, log, "failed to convert referral session", err)
		}
		return c.Status(fiber.StatusCreated).JSON(rel)
	})

	// codes are immutable once issued
	immutable := func(op services.CodeOperation) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if err := services.ValidateReferralCodeImmutability(op); err != nil {
				return respondError(c, log, "referral code operation rejected", err)
			}
			return c.SendStatus(fiber.StatusNoContent)
		}
	}
	g.Put("/codes/:code", immutable(services.CodeOpUpdate))
	g.Patch("/codes/:code", immutable(services.CodeOpUpdate))
	g.Delete("/codes/:code", immutable(services.CodeOpDelete))
}

// SetupAdminRoutes mounts operator endpoints; callers need the admin role
func SetupAdminRoutes(app *fiber.App, svc *services.AffiliateService, l logrus.FieldLogger) {
	log := logger.Component(l, "admin-http")
	g := app.Group("/admin", middleware.WalletContextMiddleware(), middleware.RequireRole("admin"))

	g.Post("/housekeeping", func(c *fiber.Ctx) error {
		res, err := svc.RunHousekeeping(c.UserContext())
		if err != nil {
			return respondError(c, log, "housekeeping failed", err)
		}
		return c.JSON(res)
	})
}
