package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/agency-crm/internal/domain/entity"
	"github.com/yourusername/agency-crm/internal/middleware"
	apperrors "github.com/yourusername/agency-crm/internal/pkg/errors"
	"github.com/yourusername/agency-crm/internal/service"
)

const (
	testUserID   = "5d2c1b0a-8e7f-4a6b-9c3d-2e1f0a9b8c7d"
	testClientID = "0b7a4c4e-3f1d-4f0e-9d55-6f2f4a1c9e01"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockConnectFlow struct {
	mock.Mock
}

func (m *MockConnectFlow) StartLink(ctx context.Context, userID, clientID string) (string, error) {
	args := m.Called(ctx, userID, clientID)
	return args.String(0), args.Error(1)
}

func (m *MockConnectFlow) CompleteLink(ctx context.Context, in service.CallbackInput) (*service.LinkResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LinkResult), args.Error(1)
}

// asUser stands in for RequireAuth.
func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Next()
	}
}

func connectRouter(flow ConnectFlow) *gin.Engine {
	h := NewConnectHandler(flow, nil)
	r := gin.New()
	r.GET("/connect/start", asUser(testUserID), h.Start)
	r.GET("/connect/callback", h.Callback)
	return r
}

func parseJSONResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Response body should be valid JSON: %s", w.Body.String())
	return resp
}

func serve(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestConnectStart_RedirectsToProvider(t *testing.T) {
	flow := new(MockConnectFlow)
	flow.On("StartLink", mock.Anything, testUserID, testClientID).
		Return("https://www.facebook.com/v19.0/dialog/oauth?client_id=app&state=s", nil)

	w := serve(connectRouter(flow), "/connect/start?client_id="+testClientID)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://www.facebook.com/v19.0/dialog/oauth?client_id=app&state=s", w.Header().Get("Location"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	flow.AssertExpectations(t)
}

func TestConnectStart_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"missing client", &service.ConnectError{Kind: service.KindMissingParameters, Details: "client_id is required"}, http.StatusBadRequest, "missing_parameters"},
		{"not found", &service.ConnectError{Kind: service.KindClientNotFound}, http.StatusNotFound, "client_not_found"},
		{"misconfigured", &service.ConnectError{Kind: service.KindConfiguration}, http.StatusInternalServerError, "configuration_error"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := new(MockConnectFlow)
			flow.On("StartLink", mock.Anything, testUserID, mock.Anything).Return("", tt.err)

			w := serve(connectRouter(flow), "/connect/start")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Empty(t, w.Header().Get("Location"))
			assert.Equal(t, tt.wantKind, parseJSONResponse(t, w)["error"])
		})
	}
}

func TestConnectCallback_Success(t *testing.T) {
	flow := new(MockConnectFlow)
	flow.On("CompleteLink", mock.Anything, service.CallbackInput{Code: "c0de", State: "st.ate"}).
		Return(&service.LinkResult{
			ClientID:    testClientID,
			RedirectURL: "https://crm.example.com/clients/" + testClientID + "?connected=1",
		}, nil)

	w := serve(connectRouter(flow), "/connect/callback?code=c0de&state=st.ate")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://crm.example.com/clients/"+testClientID+"?connected=1", w.Header().Get("Location"))
}

func TestConnectCallback_PassesProviderDenial(t *testing.T) {
	flow := new(MockConnectFlow)
	in := service.CallbackInput{
		State:            "st.ate",
		Error:            "access_denied",
		ErrorReason:      "user_denied",
		ErrorDescription: "Permissions error",
	}
	flow.On("CompleteLink", mock.Anything, in).Return(nil, &service.ConnectError{
		Kind:    service.KindProviderDenied,
		Details: map[string]string{"error": "access_denied"},
	})

	w := serve(connectRouter(flow), "/connect/callback?state=st.ate&error=access_denied&error_reason=user_denied&error_description=Permissions+error")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := parseJSONResponse(t, w)
	assert.Equal(t, "provider_denied", resp["error"])
	assert.Equal(t, map[string]interface{}{"error": "access_denied"}, resp["details"])
}

func TestConnectCallback_ErrorsAreJSON(t *testing.T) {
	tests := []struct {
		name       string
		err        *service.ConnectError
		wantStatus int
		wantRow    interface{}
	}{
		{"bad state", &service.ConnectError{Kind: service.KindBadState, Details: "state signature invalid"}, http.StatusBadRequest, nil},
		{"exchange failed", &service.ConnectError{Kind: service.KindTokenExchangeFailed, Details: `{"error":{"code":100}}`}, http.StatusBadGateway, nil},
		{"timeout", &service.ConnectError{Kind: service.KindProviderTimeout}, http.StatusGatewayTimeout, nil},
		{"no pages", &service.ConnectError{Kind: service.KindNoEntitiesFound}, http.StatusUnprocessableEntity, nil},
		{"persistence", &service.ConnectError{Kind: service.KindPersistenceFailed, Row: service.RowSecondary}, http.StatusInternalServerError, "secondary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := new(MockConnectFlow)
			flow.On("CompleteLink", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := serve(connectRouter(flow), "/connect/callback?code=c&state=s")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Empty(t, w.Header().Get("Location"))
			assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

			resp := parseJSONResponse(t, w)
			assert.Equal(t, string(tt.err.Kind), resp["error"])
			assert.Equal(t, tt.wantRow, resp["row"])
		})
	}
}

// ============================================================================
// Client read side
// ============================================================================

type stubClientReader struct {
	clients  []entity.Client
	accounts []entity.ConnectedAccount
	err      error
}

func (s *stubClientReader) ListClients(ctx context.Context, userID string) ([]entity.Client, error) {
	return s.clients, s.err
}

func (s *stubClientReader) ListAccounts(ctx context.Context, userID, clientID string) ([]entity.ConnectedAccount, error) {
	return s.accounts, s.err
}

func clientRouter(reader ClientReader) *gin.Engine {
	h := NewClientHandler(reader, nil)
	r := gin.New()
	api := r.Group("/api", asUser(testUserID))
	api.GET("/clients", h.ListClients)
	api.GET("/clients/:id/accounts", middleware.ExtractUUIDParam("id", ClientContextKey), h.ListAccounts)
	return r
}

func TestClientHandler_ListAccountsOmitsTokens(t *testing.T) {
	reader := &stubClientReader{accounts: []entity.ConnectedAccount{{
		ID:          "acc-1",
		ClientID:    testClientID,
		Platform:    entity.PlatformFacebook,
		ExternalID:  "page-1",
		DisplayName: "Acme",
		AccessToken: "page-token",
	}}}

	w := serve(clientRouter(reader), "/api/clients/"+testClientID+"/accounts")

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "page-token")
	assert.Contains(t, w.Body.String(), `"platform":"facebook"`)
}

func TestClientHandler_Errors(t *testing.T) {
	w := serve(clientRouter(&stubClientReader{err: apperrors.ErrNotFound}), "/api/clients/"+testClientID+"/accounts")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(clientRouter(&stubClientReader{}), "/api/clients/not-a-uuid/accounts")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(clientRouter(&stubClientReader{err: errors.New("db down")}), "/api/clients")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestClientHandler_ListClients(t *testing.T) {
	reader := &stubClientReader{clients: []entity.Client{{ID: testClientID, Name: "Acme"}}}

	w := serve(clientRouter(reader), "/api/clients")

	require.Equal(t, http.StatusOK, w.Code)
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Acme", got[0]["name"])
}

func TestHealthz(t *testing.T) {
	r := gin.New()
	r.GET("/healthz", NewHealthHandler(
		HealthCheck{Name: "postgres", Check: func(context.Context) error { return nil }},
	).Healthz)
	assert.Equal(t, http.StatusOK, serve(r, "/healthz").Code)

	r = gin.New()
	r.GET("/healthz", NewHealthHandler(
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("refused") }},
	).Healthz)
	w := serve(r, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", parseJSONResponse(t, w)["status"])
}
