package dto

import (
	"time"

	"github.com/yourusername/agency-crm/internal/domain/entity"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
	Row     string      `json:"row,omitempty"`
}

// ClientResponse is a client as listed for the caller.
type ClientResponse struct {
	ID        string    `json:"id"`
	AgencyID  string    `json:"agency_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ConnectedAccountResponse never carries the access token.
type ConnectedAccountResponse struct {
	ID          string    `json:"id"`
	Platform    string    `json:"platform"`
	ExternalID  string    `json:"external_id"`
	DisplayName string    `json:"display_name"`
	LinkedAt    time.Time `json:"linked_at"`
}

func NewClientResponses(clients []entity.Client) []ClientResponse {
	out := make([]ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, ClientResponse{ID: c.ID, AgencyID: c.AgencyID, Name: c.Name, CreatedAt: c.CreatedAt})
	}
	return out
}

func NewConnectedAccountResponses(accounts []entity.ConnectedAccount) []ConnectedAccountResponse {
	out := make([]ConnectedAccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, ConnectedAccountResponse{
			ID:          a.ID,
			Platform:    string(a.Platform),
			ExternalID:  a.ExternalID,
			DisplayName: a.DisplayName,
			LinkedAt:    a.LinkedAt,
		})
	}
	return out
}
