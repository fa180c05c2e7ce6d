package service

import (
	"fmt"
	"net/http"
)

// ErrorKind is the stable, machine-readable name of a connect flow failure.
type ErrorKind string

const (
	KindMissingParameters        ErrorKind = "missing_parameters"
	KindProviderDenied           ErrorKind = "provider_denied"
	KindBadState                 ErrorKind = "bad_state"
	KindClientNotFound           ErrorKind = "client_not_found"
	KindConfiguration            ErrorKind = "configuration_error"
	KindTokenExchangeFailed      ErrorKind = "token_exchange_failed"
	KindEntityDiscoveryFailed    ErrorKind = "entity_discovery_failed"
	KindProviderTimeout          ErrorKind = "provider_timeout"
	KindNoEntitiesFound          ErrorKind = "no_entities_found"
	KindSecondaryDiscoveryFailed ErrorKind = "secondary_discovery_failed"
	KindPersistenceFailed        ErrorKind = "persistence_failed"
	KindInternal                 ErrorKind = "internal_error"
)

// Rows named by persistence failures.
const (
	RowPrimary   = "primary"
	RowSecondary = "secondary"
)

// HTTPStatus maps a kind to the status code the API answers with.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindMissingParameters, KindProviderDenied, KindBadState:
		return http.StatusBadRequest
	case KindClientNotFound:
		return http.StatusNotFound
	case KindNoEntitiesFound:
		return http.StatusUnprocessableEntity
	case KindTokenExchangeFailed, KindEntityDiscoveryFailed, KindSecondaryDiscoveryFailed:
		return http.StatusBadGateway
	case KindProviderTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ConnectError is a terminal failure of the connect flow.
type ConnectError struct {
	Kind ErrorKind
	// Details is safe to show to the caller: a short reason or the provider's raw error body.
	Details interface{}
	// Row names the ConnectedAccount row that failed to persist.
	Row string
	Err error
}

func newConnectError(kind ErrorKind, details interface{}, err error) *ConnectError {
	return &ConnectError{Kind: kind, Details: details, Err: err}
}

func (e *ConnectError) Error() string {
	msg := string(e.Kind)
	if e.Row != "" {
		msg += " (" + e.Row + " row)"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Details != nil {
		return fmt.Sprintf("%s: %v", msg, e.Details)
	}
	return msg
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
