package api

import (
	"context"
	"net/http"

	"github.com/matheus3301/chatline/internal/model"
)

// Credentials is the login body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the signup body.
type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login signs in. A token in the response is stored by the client.
func (c *Client) Login(ctx context.Context, creds Credentials) (model.User, error) {
	return send[model.User](ctx, c, http.MethodPost, "/auth/login", creds)
}

// Signup creates an account and signs in.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (model.User, error) {
	return send[model.User](ctx, c, http.MethodPost, "/auth/signup", req)
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/logout"}, nil)
}

// CheckAuth returns the user the current token belongs to.
func (c *Client) CheckAuth(ctx context.Context) (model.User, error) {
	return get[model.User](ctx, c, "/auth/check", nil)
}

// PushToken is the device registration body.
type PushToken struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// RegisterPushToken registers a device for push notifications.
func (c *Client) RegisterPushToken(ctx context.Context, pt PushToken) error {
	return c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/notifications/token",
		body:      pt,
		keepToken: true,
	}, nil)
}
