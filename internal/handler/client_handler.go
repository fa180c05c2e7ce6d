package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/agency-crm/internal/domain/entity"
	"github.com/yourusername/agency-crm/internal/handler/dto"
	"github.com/yourusername/agency-crm/internal/middleware"
	apperrors "github.com/yourusername/agency-crm/internal/pkg/errors"
)

// ClientContextKey holds the validated :id of client routes.
const ClientContextKey = "client_id"

// ClientReader is implemented by service.ClientService.
type ClientReader interface {
	ListClients(ctx context.Context, userID string) ([]entity.Client, error)
	ListAccounts(ctx context.Context, userID, clientID string) ([]entity.ConnectedAccount, error)
}

type ClientHandler struct {
	clients ClientReader
	logger  *zap.Logger
}

func NewClientHandler(clients ClientReader, logger *zap.Logger) *ClientHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientHandler{clients: clients, logger: logger}
}

// ListClients GET /api/clients
func (h *ClientHandler) ListClients(c *gin.Context) {
	clients, err := h.clients.ListClients(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewClientResponses(clients))
}

// ListAccounts GET /api/clients/:id/accounts
func (h *ClientHandler) ListAccounts(c *gin.Context) {
	clientID := c.GetString(ClientContextKey)
	if clientID == "" {
		clientID = c.Param("id")
	}
	accounts, err := h.clients.ListAccounts(c.Request.Context(), middleware.UserID(c), clientID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewConnectedAccountResponses(accounts))
}

func (h *ClientHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_parameter", Details: "invalid client id"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "client_not_found"})
	default:
		h.logger.Error("Client read failed", zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal_error"})
	}
}
