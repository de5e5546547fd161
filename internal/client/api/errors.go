package api

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/ordersync/internal/common"
)

// StatusError is a non-2xx answer of the remote. It matches the sync failure
// taxonomy through errors.Is.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Code, http.StatusText(e.Code), e.Body)
}

// Unwrap classifies the status: timeouts, throttling and 5xx are transient;
// every other status is a rejection.
func (e *StatusError) Unwrap() []error {
	switch {
	case e.Code == http.StatusRequestTimeout, e.Code == http.StatusTooManyRequests, e.Code >= 500:
		return []error{common.ErrTransientNetwork}
	case e.Code == http.StatusUnauthorized:
		return []error{common.ErrRemoteRejected, common.ErrUnauthorized}
	case e.Code == http.StatusNotFound:
		return []error{common.ErrRemoteRejected, common.ErrRemoteNotFound}
	default:
		return []error{common.ErrRemoteRejected}
	}
}
