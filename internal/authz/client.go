// Package authz is the client for the external auth service. Token issuance
// and the module/permission model live there; this service only asks
// "is this token valid" and "what can it do with module X".
package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("token is invalid or expired")
	ErrAccessDenied = errors.New("access to module denied")
)

type Permissions struct {
	CanView   bool `json:"can_view"`
	CanCreate bool `json:"can_create"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

type Access struct {
	HasAccess   bool        `json:"has_access"`
	Permissions Permissions `json:"permissions"`
}

type UserInfo struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Client talks to the auth service over HTTP. It is constructed once per
// process and injected into whatever needs it, never held as a package
// global.
type Client struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

func NewClient(baseURL, serviceToken string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// VerifyToken checks a user token and returns the user it belongs to.
func (c *Client) VerifyToken(ctx context.Context, token string) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/verify-token/", nil)
	if err != nil {
		return nil, fmt.Errorf("build verify-token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrInvalidToken
	}

	var user UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode verify-token response: %w", err)
	}

	return &user, nil
}

// VerifyAccess checks whether the token's user may use a module (and
// optionally a submodule) and returns the granted capabilities.
func (c *Client) VerifyAccess(ctx context.Context, token, moduleCode, submoduleCode string) (*Access, error) {
	payload := map[string]string{"module_code": moduleCode}
	if submoduleCode != "" {
		payload["submodule_code"] = submoduleCode
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode verify-access request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/verify-access/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build verify-access request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify access: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrAccessDenied
	}

	var access Access
	if err := json.NewDecoder(resp.Body).Decode(&access); err != nil {
		return nil, fmt.Errorf("decode verify-access response: %w", err)
	}

	return &access, nil
}
