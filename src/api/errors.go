package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// The detail string the platform sends with a 401 when a token is missing,
// expired, or belongs to nobody.
const InvalidCredentialsDetail = "Could not validate credentials"

var (
	ErrInvalidCredentials = errors.New("the API rejected the session token")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrTooManyRequests    = errors.New("too many requests")
)

// Error is a non-2xx response from the platform API.
type Error struct {
	Operation  string
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: API responded %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: API responded %d: %s", e.Operation, e.StatusCode, e.Detail)
}

// Is lets callers match on the sentinel errors with errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidCredentials:
		return e.StatusCode == http.StatusUnauthorized && e.Detail == InvalidCredentialsDetail
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrTooManyRequests:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// IsInvalidCredentials reports whether err means the stored token is no good
// and the user has to log in again.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// FastAPI sends {"detail": "..."} for raised errors and
// {"detail": [{"loc": [...], "msg": "..."}]} for request validation errors.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var detail string
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
		return detail
	}

	var validationErrors []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &validationErrors); err == nil {
		var msgs []string
		for _, ve := range validationErrors {
			if ve.Msg != "" {
				msgs = append(msgs, ve.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	return string(envelope.Detail)
}
