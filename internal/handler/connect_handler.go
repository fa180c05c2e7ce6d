package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/agency-crm/internal/handler/dto"
	"github.com/yourusername/agency-crm/internal/middleware"
	"github.com/yourusername/agency-crm/internal/service"
)

// ConnectFlow is implemented by service.ConnectService.
type ConnectFlow interface {
	StartLink(ctx context.Context, userID, clientID string) (string, error)
	CompleteLink(ctx context.Context, in service.CallbackInput) (*service.LinkResult, error)
}

// ConnectHandler serves the provider authorization round trip.
type ConnectHandler struct {
	flow   ConnectFlow
	logger *zap.Logger
}

func NewConnectHandler(flow ConnectFlow, logger *zap.Logger) *ConnectHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectHandler{flow: flow, logger: logger}
}

// Start redirects the authenticated user to the provider's consent dialog.
// GET /connect/start?client_id=
func (h *ConnectHandler) Start(c *gin.Context) {
	redirect, err := h.flow.StartLink(c.Request.Context(), middleware.UserID(c), c.Query("client_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, redirect)
}

// Callback completes the link. Success is always a redirect, failure always JSON.
// GET /connect/callback?code=&state=
func (h *ConnectHandler) Callback(c *gin.Context) {
	res, err := h.flow.CompleteLink(c.Request.Context(), service.CallbackInput{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorReason:      c.Query("error_reason"),
		ErrorDescription: c.Query("error_description"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, res.RedirectURL)
}

func (h *ConnectHandler) writeError(c *gin.Context, err error) {
	c.Header("Cache-Control", "no-store")

	var cErr *service.ConnectError
	if !errors.As(err, &cErr) {
		h.logger.Error("Unclassified connect error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: string(service.KindInternal)})
		return
	}
	_ = c.Error(err)
	c.JSON(cErr.Kind.HTTPStatus(), dto.ErrorResponse{
		Error:   string(cErr.Kind),
		Details: cErr.Details,
		Row:     cErr.Row,
	})
}
