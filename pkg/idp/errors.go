package idp

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// OAuth2 error codes (RFC 6749).
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeInvalidGrant   = "invalid_grant"
	ErrorCodeInvalidToken   = "invalid_token"
	ErrorCodeServerError    = "server_error"
)

// Error is a non-2xx response from the provider.
type Error struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Body        string `json:"-"`
}

func (e *Error) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("idp: %s (HTTP %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("idp: %s: %s (HTTP %d)", e.Code, e.Description, e.StatusCode)
}

// parseErrorResponse turns an error body into *Error, falling back to the
// HTTP status when the body is not an OAuth2 error document.
func parseErrorResponse(status int, body []byte) *Error {
	e := &Error{StatusCode: status, Body: string(body)}

	var doc struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &doc); err == nil && doc.Error != "" {
		e.Code = doc.Error
		e.Description = doc.ErrorDescription
		return e
	}

	switch status {
	case http.StatusUnauthorized:
		e.Code = ErrorCodeInvalidToken
	case http.StatusBadRequest:
		e.Code = ErrorCodeInvalidRequest
	default:
		e.Code = ErrorCodeServerError
	}
	e.Description = fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	return e
}
