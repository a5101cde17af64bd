package http

import (
	"net/http"

	"github.com/fwojciec/pluck"
)

// codes maps application error codes to HTTP status codes.
var codes = map[string]int{
	pluck.ECONFLICT:     http.StatusConflict,
	pluck.ECREDENTIAL:   http.StatusPreconditionFailed,
	pluck.EEXTRACT:      http.StatusBadGateway,
	pluck.EINTERNAL:     http.StatusInternalServerError,
	pluck.EINVALID:      http.StatusBadRequest,
	pluck.ENOTFOUND:     http.StatusNotFound,
	pluck.EUNAUTHORIZED: http.StatusUnauthorized,
}

// ErrorStatusCode returns the HTTP status code for an application error code.
func ErrorStatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}
