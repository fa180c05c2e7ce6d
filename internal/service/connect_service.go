package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/agency-crm/internal/domain/entity"
	"github.com/yourusername/agency-crm/internal/domain/repository"
	apperrors "github.com/yourusername/agency-crm/internal/pkg/errors"
	"github.com/yourusername/agency-crm/internal/provider/meta"
	"github.com/yourusername/agency-crm/pkg/oauthstate"
)

// ProviderClient is the subset of the Graph API the connect flow needs.
type ProviderClient interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*meta.Token, error)
	ListManagedPages(ctx context.Context, userToken string) ([]meta.Page, error)
	LinkedInstagramAccount(ctx context.Context, pageID, pageToken string) (string, error)
}

// CallbackInput is what the provider sends back to the redirect URI.
type CallbackInput struct {
	Code             string
	State            string
	Error            string
	ErrorReason      string
	ErrorDescription string
}

// LinkResult describes the accounts written by a successful callback.
type LinkResult struct {
	ClientID    string
	Primary     *entity.ConnectedAccount
	Secondary   *entity.ConnectedAccount
	RedirectURL string
}

// ConnectService starts provider authorization for a client and completes it on callback.
type ConnectService struct {
	provider    ProviderClient
	signer      *oauthstate.Signer
	clients     repository.ClientRepository
	accounts    repository.ConnectedAccountRepository
	nonces      repository.StateNonceRepository
	stateMaxAge time.Duration
	appBaseURL  string
	logger      *zap.Logger

	now      func() time.Time
	newNonce func() string
}

// NewConnectService wires the connect flow. Every dependency is required.
func NewConnectService(
	provider ProviderClient,
	signer *oauthstate.Signer,
	clients repository.ClientRepository,
	accounts repository.ConnectedAccountRepository,
	nonces repository.StateNonceRepository,
	stateMaxAge time.Duration,
	appBaseURL string,
	logger *zap.Logger,
) (*ConnectService, error) {
	if provider == nil {
		return nil, newConnectError(KindConfiguration, "provider client is not configured", nil)
	}
	if signer == nil {
		return nil, newConnectError(KindConfiguration, "state signer is not configured", nil)
	}
	if clients == nil || accounts == nil || nonces == nil {
		return nil, newConnectError(KindConfiguration, "repositories are required", nil)
	}
	if stateMaxAge <= 0 {
		return nil, newConnectError(KindConfiguration, "state max age must be positive", nil)
	}
	if _, err := url.ParseRequestURI(appBaseURL); err != nil {
		return nil, newConnectError(KindConfiguration, "app base url is invalid", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectService{
		provider:    provider,
		signer:      signer,
		clients:     clients,
		accounts:    accounts,
		nonces:      nonces,
		stateMaxAge: stateMaxAge,
		appBaseURL:  strings.TrimRight(appBaseURL, "/"),
		logger:      logger.With(zap.String("component", "connect_service")),
		now:         time.Now,
		newNonce:    uuid.NewString,
	}, nil
}

// StartLink returns the provider authorization URL for linking clientID on behalf of userID.
func (s *ConnectService) StartLink(ctx context.Context, userID, clientID string) (string, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return "", newConnectError(KindMissingParameters, "client_id is required", nil)
	}
	if _, err := uuid.Parse(clientID); err != nil {
		return "", newConnectError(KindClientNotFound, nil, err)
	}

	if _, err := s.clients.GetAccessible(ctx, userID, clientID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", newConnectError(KindClientNotFound, nil, err)
		}
		return "", newConnectError(KindInternal, nil, fmt.Errorf("failed to load client: %w", err))
	}

	state, err := s.signer.Sign(oauthstate.LinkRequest{
		TargetEntityID: clientID,
		InitiatedBy:    userID,
		Nonce:          s.newNonce(),
		IssuedAt:       s.now().UTC(),
	})
	if err != nil {
		return "", newConnectError(KindConfiguration, nil, err)
	}

	s.logger.Info("Starting provider authorization",
		zap.String("client_id", clientID),
		zap.String("user_id", userID))
	return s.provider.AuthCodeURL(state), nil
}

// CompleteLink runs the callback: verify state, exchange the code, discover the page and its
// linked Instagram account, then persist both in one transaction. Nothing is retried.
func (s *ConnectService) CompleteLink(ctx context.Context, in CallbackInput) (*LinkResult, error) {
	if in.Error != "" {
		s.logger.Info("Provider denied authorization",
			zap.String("error", in.Error),
			zap.String("error_reason", in.ErrorReason))
		return nil, newConnectError(KindProviderDenied, map[string]string{
			"error":             in.Error,
			"error_reason":      in.ErrorReason,
			"error_description": in.ErrorDescription,
		}, nil)
	}
	if in.Code == "" || in.State == "" {
		return nil, newConnectError(KindMissingParameters, "code and state are required", nil)
	}

	req, err := s.verifyState(ctx, in.State)
	if err != nil {
		return nil, s.fail(err, "")
	}
	log := s.logger.With(zap.String("client_id", req.TargetEntityID))

	token, err := s.provider.ExchangeCode(ctx, in.Code)
	if err != nil {
		return nil, s.fail(providerError(KindTokenExchangeFailed, err), req.TargetEntityID)
	}

	pages, err := s.provider.ListManagedPages(ctx, token.AccessToken)
	if err != nil {
		return nil, s.fail(providerError(KindEntityDiscoveryFailed, err), req.TargetEntityID)
	}
	page, ok := selectPage(pages)
	if !ok {
		return nil, s.fail(newConnectError(KindNoEntitiesFound, "the authorizing user manages no pages", nil), req.TargetEntityID)
	}
	log.Info("Selected page",
		zap.String("page_id", page.ID),
		zap.Int("pages_total", len(pages)))

	linkedAt := s.now().UTC()
	primary := &entity.ConnectedAccount{
		ClientID:    req.TargetEntityID,
		Platform:    entity.PlatformFacebook,
		ExternalID:  page.ID,
		DisplayName: page.Name,
		AccessToken: page.AccessToken,
		LinkedAt:    linkedAt,
	}

	var secondary *entity.ConnectedAccount
	igID, err := s.provider.LinkedInstagramAccount(ctx, page.ID, page.AccessToken)
	switch {
	case err != nil:
		log.Warn("Linked account discovery failed, skipping",
			zap.String("kind", string(KindSecondaryDiscoveryFailed)),
			zap.String("page_id", page.ID),
			zap.Error(err))
	case igID != "":
		// The Instagram business account is operated through the page token.
		secondary = &entity.ConnectedAccount{
			ClientID:    req.TargetEntityID,
			Platform:    entity.PlatformInstagram,
			ExternalID:  igID,
			AccessToken: page.AccessToken,
			LinkedAt:    linkedAt,
		}
	}

	if err := s.persist(ctx, primary, secondary); err != nil {
		return nil, s.fail(err, req.TargetEntityID)
	}

	log.Info("Accounts linked",
		zap.String("page_id", page.ID),
		zap.Bool("instagram_linked", secondary != nil))

	return &LinkResult{
		ClientID:    req.TargetEntityID,
		Primary:     primary,
		Secondary:   secondary,
		RedirectURL: s.successURL(req.TargetEntityID),
	}, nil
}

// verifyState authenticates the state, redeems its nonce and re-checks that the initiating
// user may still link the target.
func (s *ConnectService) verifyState(ctx context.Context, state string) (*oauthstate.LinkRequest, error) {
	req, err := s.signer.Verify(state)
	if err != nil {
		if errors.Is(err, oauthstate.ErrExpired) {
			return nil, newConnectError(KindBadState, "state expired", err)
		}
		return nil, newConnectError(KindBadState, "state signature invalid", err)
	}
	if req.InitiatedBy == "" || req.Nonce == "" {
		return nil, newConnectError(KindBadState, "state is incomplete", nil)
	}

	fresh, err := s.nonces.Consume(ctx, req.Nonce, s.stateMaxAge)
	if err != nil {
		return nil, newConnectError(KindInternal, nil, fmt.Errorf("failed to redeem state nonce: %w", err))
	}
	if !fresh {
		return nil, newConnectError(KindBadState, "state already used", nil)
	}

	if _, err := s.clients.GetAccessible(ctx, req.InitiatedBy, req.TargetEntityID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, newConnectError(KindBadState, "target no longer authorized", err)
		}
		return nil, newConnectError(KindInternal, nil, fmt.Errorf("failed to load client: %w", err))
	}
	return req, nil
}

func (s *ConnectService) persist(ctx context.Context, primary, secondary *entity.ConnectedAccount) error {
	row := RowPrimary
	err := s.accounts.Transaction(ctx, func(repo repository.ConnectedAccountRepository) error {
		if err := repo.Upsert(ctx, primary); err != nil {
			return err
		}
		if secondary == nil {
			return nil
		}
		row = RowSecondary
		return repo.Upsert(ctx, secondary)
	})
	if err != nil {
		cErr := newConnectError(KindPersistenceFailed, nil, err)
		cErr.Row = row
		return cErr
	}
	return nil
}

func (s *ConnectService) successURL(clientID string) string {
	return s.appBaseURL + "/clients/" + url.PathEscape(clientID) + "?connected=1"
}

// fail logs a terminal failure once and returns it unchanged.
func (s *ConnectService) fail(err error, clientID string) error {
	var cErr *ConnectError
	if !errors.As(err, &cErr) {
		cErr = newConnectError(KindInternal, nil, err)
	}
	fields := []zap.Field{
		zap.String("kind", string(cErr.Kind)),
		zap.Error(cErr.Err),
	}
	if clientID != "" {
		fields = append(fields, zap.String("client_id", clientID))
	}
	if cErr.Row != "" {
		fields = append(fields, zap.String("row", cErr.Row))
	}
	if cErr.Kind.HTTPStatus() >= 500 {
		s.logger.Error("Connect callback failed", fields...)
	} else {
		s.logger.Warn("Connect callback rejected", fields...)
	}
	return cErr
}

// selectPage returns the first page, in provider order, that can be linked.
func selectPage(pages []meta.Page) (meta.Page, bool) {
	for _, p := range pages {
		if p.ID != "" && p.AccessToken != "" {
			return p, true
		}
	}
	return meta.Page{}, false
}

// providerError classifies an upstream failure. The provider's raw body becomes the details.
func providerError(kind ErrorKind, err error) *ConnectError {
	if errors.Is(err, meta.ErrTimeout) {
		return newConnectError(KindProviderTimeout, nil, err)
	}
	var apiErr *meta.APIError
	if errors.As(err, &apiErr) {
		var details interface{}
		if apiErr.Body != "" {
			details = apiErr.Body
		} else if apiErr.Message != "" {
			details = apiErr.Message
		}
		return newConnectError(kind, details, err)
	}
	return newConnectError(kind, nil, err)
}
