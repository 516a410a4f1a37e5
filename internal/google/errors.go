package google

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// ErrUnauthorized means no usable credential exists for the user: none was
// stored, or refreshing it failed. The remedy is a new authorization.
var ErrUnauthorized = errors.New("authorization required")

// ProviderError is a request rejected by a Google service.
type ProviderError struct {
	Service string
	Op      string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status reported by the provider, or 0.
func (e *ProviderError) StatusCode() int {
	var apiErr *googleapi.Error
	if errors.As(e.Err, &apiErr) {
		return apiErr.Code
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(e.Err, &retrieveErr) && retrieveErr.Response != nil {
		return retrieveErr.Response.StatusCode
	}
	return 0
}

// WrapAPIError classifies an error returned by a Google API call. Token
// failures and HTTP 401 responses become ErrUnauthorized; everything else
// becomes a *ProviderError.
func WrapAPIError(service, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnauthorized) {
		return err
	}
	perr := &ProviderError{Service: service, Op: op, Err: err}
	if perr.StatusCode() == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", ErrUnauthorized, perr)
	}
	return perr
}

// IsStatus reports whether err carries a provider error with the given HTTP status.
func IsStatus(err error, code int) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.StatusCode() == code
}
