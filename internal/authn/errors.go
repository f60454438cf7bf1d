package authn

import (
	"errors"
	"net/http"
)

// Resolution failure taxonomy. Handlers translate these 1:1 into HTTP status
// codes via HTTPStatus; the gate itself knows nothing about HTTP.
var (
	// ErrUnauthenticated indicates no valid caller identity.
	ErrUnauthenticated = errors.New("authn: unauthenticated")
	// ErrAccountNotFound indicates the identity resolved but has no backing record.
	ErrAccountNotFound = errors.New("authn: account not found")
	// ErrNoFirmAssigned indicates a valid account lacking the required tenant
	// association. Deliberately distinct from ErrUnauthenticated: the caller
	// did authenticate, the account is incompletely configured.
	ErrNoFirmAssigned = errors.New("authn: no firm assigned")
	// ErrForbidden indicates a known, firm-bound caller lacking permission.
	ErrForbidden = errors.New("authn: forbidden")
	// ErrResolutionFailed indicates an unexpected backing-store failure.
	ErrResolutionFailed = errors.New("authn: resolution failed")
)

// HTTPStatus maps a resolution error to its wire status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrAccountNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNoFirmAssigned), errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
