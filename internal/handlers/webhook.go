package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/atendoapp/atendo/internal/identity"
	"github.com/atendoapp/atendo/internal/instance"
	"github.com/atendoapp/atendo/internal/webhook"
)

// WebhookHandler is the single inbound entry point for provider events.
type WebhookHandler struct {
	instances *instance.Service
	router    *webhook.Router
	logger    *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, instances *instance.Service, router *webhook.Router) *WebhookHandler {
	return &WebhookHandler{
		instances: instances,
		router:    router,
		logger:    log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook/:instance", h.Handle)
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Handle receives one provider event, resolves the instance by name and
// hands the raw body to the router.
func (h *WebhookHandler) Handle(c echo.Context) error {
	name := strings.TrimSpace(c.Param("instance"))
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "instance name is required")
	}

	ctx := c.Request().Context()
	inst, err := h.instances.GetByName(ctx, name)
	if errors.Is(err, instance.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "instance not found")
	}
	if err != nil {
		h.logger.Error("instance lookup failed", slog.String("instance", name), slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "instance lookup failed"})
	}

	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read body")
	}

	if err := h.router.Process(ctx, inst, raw); err != nil {
		switch {
		case errors.Is(err, webhook.ErrBadPayload):
			return echo.NewHTTPError(http.StatusBadRequest, "unparsable event payload")
		case errors.Is(err, identity.ErrMissingChatID), errors.Is(err, identity.ErrMissingGroupID):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("event processing failed",
				slog.String("instance", name), slog.Any("error", err))
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}
