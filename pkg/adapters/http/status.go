package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aretw0/meshwork/pkg/domain"
)

// statusTable is ordered: the first sentinel found in the chain decides.
var statusTable = []struct {
	err    error
	status int
}{
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrServiceNotFound, http.StatusNotFound},
	{domain.ErrActionNotFound, http.StatusNotFound},
	{domain.ErrInvalidParams, http.StatusBadRequest},
	{domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
	{domain.ErrNodeStopped, http.StatusServiceUnavailable},
	{domain.ErrRemoteTimeout, http.StatusGatewayTimeout},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
	{domain.ErrUnreachable, http.StatusBadGateway},
}

// StatusFor maps a call failure to an HTTP status code.
func StatusFor(err error) int {
	for _, entry := range statusTable {
		if errors.Is(err, entry.err) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}
