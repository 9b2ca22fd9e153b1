package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"backoffice_notifier/internal/app"
	"backoffice_notifier/internal/infra/config"
	"backoffice_notifier/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server exposes the trigger boundary: one endpoint per engine for the
// external scheduler, a manual send-now endpoint for operators, the rule
// upsert used by the configuration screens, plus health and metrics.
type Server struct {
	echo         *echo.Echo
	cfg          *config.AppConfig
	ruleSvc      *app.RuleService
	thresholdSvc *app.ThresholdService
	billingSvc   *app.BillingService
	ruleAdmin    *app.RuleAdminService
	logger       *logrus.Logger
}

func NewServer(
	cfg *config.AppConfig,
	ruleSvc *app.RuleService,
	thresholdSvc *app.ThresholdService,
	billingSvc *app.BillingService,
	ruleAdmin *app.RuleAdminService,
	store RateLimitStore, // nil = in-memory fixed window
	logger *logrus.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:         e,
		cfg:          cfg,
		ruleSvc:      ruleSvc,
		thresholdSvc: thresholdSvc,
		billingSvc:   billingSvc,
		ruleAdmin:    ruleAdmin,
		logger:       logger,
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	policy := RateLimitPolicy{
		Name:   "notify:trigger",
		Window: time.Minute,
		Limit:  cfg.TriggerRateLimit,
		Key:    func(c echo.Context) string { return c.RealIP() },
	}
	var limiter echo.MiddlewareFunc
	if store != nil {
		limiter = RateLimitWithStore(policy, store)
	} else {
		limiter = RateLimit(policy)
	}

	triggers := e.Group("/api/notify", limiter, s.requireSecret)
	triggers.POST("/rules/run", s.handleRunRules)
	triggers.POST("/thresholds/run", s.handleRunThresholds)
	triggers.POST("/renewals/run", s.handleRunRenewals)
	triggers.PUT("/rules", s.handleUpsertRule)

	manual := e.Group("/api/notify", limiter, s.requireOperator)
	manual.POST("/rules/send-now", s.handleSendNow)

	return s
}

func (s *Server) Start() error {
	return s.echo.Start(s.cfg.HTTPAddr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requireSecret guards scheduler-triggered endpoints with the shared secret,
// accepted as a header or query parameter. Outside production-like
// environments the check is waived for local development.
func (s *Server) requireSecret(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.cfg.IsProductionLike() {
			return next(c)
		}
		got := c.Request().Header.Get("X-Trigger-Secret")
		if got == "" {
			got = c.QueryParam("secret")
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.TriggerSecret)) != 1 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid trigger secret"})
		}
		return next(c)
	}
}

// requireOperator guards the interactive manual-send endpoint. The fronting
// back-office authenticates the operator and forwards the identity.
func (s *Server) requireOperator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.cfg.IsProductionLike() {
			return next(c)
		}
		if c.Request().Header.Get("X-Operator-Email") == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "operator identity required"})
		}
		return next(c)
	}
}

func (s *Server) respondRun(c echo.Context, engine string, summary *app.RunSummary, err error) error {
	if err != nil {
		metrics.ObserveRun(engine, "error", 0, 0, 0)
		s.logger.Errorf("Run failed (engine=%s): %v", engine, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	metrics.ObserveRun(engine, "ok", summary.Sent, summary.Skipped, summary.Failures)
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleRunRules(c echo.Context) error {
	summary, err := s.ruleSvc.RunAutomatic(c.Request().Context())
	return s.respondRun(c, "rules", summary, err)
}

func (s *Server) handleRunThresholds(c echo.Context) error {
	summary, err := s.thresholdSvc.Run(c.Request().Context())
	return s.respondRun(c, "thresholds", summary, err)
}

func (s *Server) handleRunRenewals(c echo.Context) error {
	summary, err := s.billingSvc.Run(c.Request().Context())
	return s.respondRun(c, "renewals", summary, err)
}

type sendNowRequest struct {
	TaskTitle string `json:"task_title"`
	Target    string `json:"target"`
}

func (s *Server) handleSendNow(c echo.Context) error {
	var req sendNowRequest
	if err := c.Bind(&req); err != nil || req.TaskTitle == "" || req.Target == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "task_title and target are required"})
	}
	summary, err := s.ruleSvc.SendNow(c.Request().Context(), req.TaskTitle, req.Target)
	return s.respondRun(c, "manual", summary, err)
}

func (s *Server) handleUpsertRule(c echo.Context) error {
	var in app.UpsertRuleInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed rule payload"})
	}
	rule, err := s.ruleAdmin.Upsert(c.Request().Context(), in)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"id": rule.ID})
}
