package api

import (
	"context"
	"errors"
	"net/http"
)

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*SignupResponse, error) {
	var res SignupResponse
	err := c.callJSON(ctx, "Signup", http.MethodPost, "/api/signup", req, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var res LoginResponse
	err := c.callJSON(ctx, "Login", http.MethodPost, "/api/login", req, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CheckEmailAvailable returns ErrConflict when the address is already
// registered. The platform signals that with a plain 400.
func (c *Client) CheckEmailAvailable(ctx context.Context, email string) error {
	err := c.callJSON(ctx, "Check Email", http.MethodGet, "/api/emailcheck/"+pathEscape(email), nil, nil)
	var apiErr *Error
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusConflict) {
		return ErrConflict
	}
	return err
}

func (c *Client) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) error {
	return c.callJSON(ctx, "Request Password Reset", http.MethodPost, "/api/newpassword", req, nil)
}

// ResendVerification asks the platform to mail the verification link again.
// The platform caps how often that can happen and answers {"data": "fail"}
// once the cap is hit; that comes back as ErrTooManyRequests.
func (c *Client) ResendVerification(ctx context.Context, email string) error {
	var res envelope[string]
	err := c.callJSON(ctx, "Resend Verification", http.MethodGet, "/api/emailconfirm/message/"+pathEscape(email), nil, &res)
	if err != nil {
		return err
	}
	if res.Data == "fail" {
		return ErrTooManyRequests
	}
	return nil
}
