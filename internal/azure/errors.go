package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
)

var (
	ErrInvalidCredentials = errors.New("azure credentials rejected")
	ErrTenantNotFound     = errors.New("azure tenant not found")
	ErrForbidden          = errors.New("azure app lacks required permissions")
	ErrUserNotFound       = errors.New("azure user not found")
	ErrConsentDenied      = errors.New("admin consent was not granted")
	ErrUnavailable        = errors.New("microsoft graph unavailable")
)

// AADSTS codes seen during the client-credentials token request. Longer
// codes come first so a prefix never shadows them.
var tokenErrorCodes = []struct {
	code string
	err  error
}{
	{"AADSTS7000215", ErrInvalidCredentials},
	{"AADSTS7000222", ErrInvalidCredentials},
	{"AADSTS900023", ErrTenantNotFound},
	{"AADSTS700016", ErrInvalidCredentials},
	{"AADSTS90002", ErrTenantNotFound},
	{"AADSTS65001", ErrForbidden},
}

// mapError translates token and OData failures into package errors, keeping
// the original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var odataErr *odataerrors.ODataError
	if errors.As(err, &odataErr) {
		code := ""
		if e := odataErr.GetErrorEscaped(); e != nil {
			code = deref(e.GetCode())
		}
		switch {
		case odataErr.ResponseStatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, code)
		case odataErr.ResponseStatusCode == http.StatusForbidden || code == "Authorization_RequestDenied":
			return fmt.Errorf("%w: %s", ErrForbidden, code)
		case odataErr.ResponseStatusCode == http.StatusNotFound || code == "Request_ResourceNotFound":
			return fmt.Errorf("%w: %s", ErrUserNotFound, code)
		case odataErr.ResponseStatusCode >= 500:
			return fmt.Errorf("%w: %d %s", ErrUnavailable, odataErr.ResponseStatusCode, code)
		}
		return err
	}

	var authErr *azidentity.AuthenticationFailedError
	msg := err.Error()
	if errors.As(err, &authErr) || strings.Contains(msg, "AADSTS") {
		for _, tc := range tokenErrorCodes {
			if strings.Contains(msg, tc.code) {
				return fmt.Errorf("%w: %s", tc.err, tc.code)
			}
		}
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	return err
}
