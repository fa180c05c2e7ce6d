// Package meta talks to the Facebook Graph API: authorization URLs, code exchange,
// page discovery and the Instagram business account linked to a page.
package meta

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/yourusername/agency-crm/internal/config"
)

// linkedAccountField is the page field that points at the linked Instagram business account.
const linkedAccountField = "instagram_business_account"

const (
	maxErrorBody   = 2048
	maxSuccessBody = 1 << 20
)

// ErrTimeout is returned when the provider did not answer within the request timeout.
var ErrTimeout = errors.New("provider request timed out")

// APIError is a non-success answer from the provider. Body holds the raw upstream payload.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
	Message    string
	Type       string
	Code       int
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("meta %s: status=%d %s (%s/%d)", e.Op, e.StatusCode, e.Message, e.Type, e.Code)
	}
	return fmt.Sprintf("meta %s: status=%d body=%s", e.Op, e.StatusCode, e.Body)
}

// Token is the user access token obtained from the code exchange.
type Token struct {
	AccessToken string
	ExpiresAt   *time.Time
}

// Page is a business entity the authorizing user manages.
type Page struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

// Client is the real Graph API implementation.
type Client struct {
	oauth      *oauth2.Config
	graphURL   string
	appSecret  string
	httpClient *http.Client
}

// NewClient builds a Client from the app registration. It fails if the registration is incomplete.
func NewClient(cfg config.MetaConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	authBase := strings.TrimRight(cfg.AuthURL, "/")
	if cfg.APIVersion != "" {
		authBase += "/" + cfg.APIVersion
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authBase + "/dialog/oauth",
				TokenURL:  cfg.GraphEndpoint() + "/oauth/access_token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		graphURL:   cfg.GraphEndpoint(),
		appSecret:  cfg.AppSecret,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// AuthCodeURL returns the provider dialog URL carrying state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for a user access token. Codes are single-use,
// so the call is never retried.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: token exchange: %v", ErrTimeout, err)
		}
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) {
			apiErr := &APIError{Op: "token exchange", Body: truncate(string(rErr.Body))}
			if rErr.Response != nil {
				apiErr.StatusCode = rErr.Response.StatusCode
			}
			fillGraphError(apiErr, rErr.Body)
			return nil, apiErr
		}
		return nil, fmt.Errorf("meta token exchange failed: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, &APIError{Op: "token exchange", StatusCode: http.StatusOK, Message: "access_token missing from response"}
	}

	result := &Token{AccessToken: tok.AccessToken}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		result.ExpiresAt = &expiry
	}
	return result, nil
}

// ListManagedPages returns the pages the token owner manages, in provider order.
func (c *Client) ListManagedPages(ctx context.Context, userToken string) ([]Page, error) {
	var payload struct {
		Data []Page `json:"data"`
	}
	query := url.Values{}
	query.Set("fields", "id,name,access_token")
	if err := c.get(ctx, "list pages", "/me/accounts", userToken, query, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// LinkedInstagramAccount returns the id of the Instagram business account linked to the page,
// or "" when the page has none.
func (c *Client) LinkedInstagramAccount(ctx context.Context, pageID, pageToken string) (string, error) {
	var payload map[string]json.RawMessage
	query := url.Values{}
	query.Set("fields", linkedAccountField)
	if err := c.get(ctx, "linked account", "/"+url.PathEscape(pageID), pageToken, query, &payload); err != nil {
		return "", err
	}
	raw, ok := payload[linkedAccountField]
	if !ok || string(raw) == "null" {
		return "", nil
	}
	var linked struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &linked); err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", linkedAccountField, err)
	}
	return linked.ID, nil
}

func (c *Client) get(ctx context.Context, op, path, token string, query url.Values, dest interface{}) error {
	query.Set("access_token", token)
	query.Set("appsecret_proof", c.appSecretProof(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.graphURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create meta %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
		}
		return fmt.Errorf("meta %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
		fillGraphError(apiErr, body)
		return apiErr
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSuccessBody)).Decode(dest); err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
		}
		return fmt.Errorf("failed to decode meta %s response: %w", op, err)
	}
	return nil
}

// appSecretProof signs the token with the app secret, as Graph API recommends for server calls.
func (c *Client) appSecretProof(token string) string {
	mac := hmac.New(sha256.New, []byte(c.appSecret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func fillGraphError(apiErr *APIError, body []byte) {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		apiErr.Message = envelope.Error.Message
		apiErr.Type = envelope.Error.Type
		apiErr.Code = envelope.Error.Code
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
