package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"dailydigest/internal/domain"
)

// Register creates an account.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	body, err := jsonBody(reg)
	if err != nil {
		return nil, err
	}
	var user domain.User
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/register",
		body:        body,
		contentType: "application/json",
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for a token. The backend takes an OAuth2
// password form, so credentials go form-encoded with the email as username.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.Token, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var token domain.Token
	err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, &token)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Me returns the user the stored token belongs to.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
