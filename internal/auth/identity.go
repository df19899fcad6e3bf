package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// IdentityConfig holds configuration for the external identity provider.
type IdentityConfig struct {
	BaseURL  string // default: Google Identity Toolkit
	TokenURL string // default: secure token exchange endpoint
	APIKey   string
}

// IdentityClient is the thin glue to the password/token exchange API of the
// identity provider. Token verification itself happens in JWTMiddleware; this
// client only brokers credentials.
type IdentityClient struct {
	cfg        IdentityConfig
	httpClient *http.Client
}

func NewIdentityClient(cfg IdentityConfig) *IdentityClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://identitytoolkit.googleapis.com/v1"
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://securetoken.googleapis.com/v1/token"
	}
	return &IdentityClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Credentials is the token bundle the provider hands back on signup, login
// and refresh.
type Credentials struct {
	UID          string `json:"uid"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	Email        string `json:"email,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	ExpiresIn    string `json:"expires_in,omitempty"`
}

// IdentityError carries the provider's rejection through to the handler.
type IdentityError struct {
	StatusCode int
	Message    string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity provider: %s (status %d)", e.Message, e.StatusCode)
}

type idpAccountResponse struct {
	LocalID      string `json:"localId"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	ExpiresIn    string `json:"expiresIn"`
}

func (c *IdentityClient) SignUp(ctx context.Context, email, password string) (*Credentials, error) {
	resp, err := c.postAccounts(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}
	return credentialsFrom(resp), nil
}

func (c *IdentityClient) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	resp, err := c.postAccounts(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}
	return credentialsFrom(resp), nil
}

// UpdateDisplayName sets the display name on the account the token belongs
// to. Used by the background worker after signup.
func (c *IdentityClient) UpdateDisplayName(ctx context.Context, idToken, displayName string) error {
	_, err := c.postAccounts(ctx, "accounts:update", map[string]any{
		"idToken":           idToken,
		"displayName":       displayName,
		"returnSecureToken": false,
	})
	return err
}

// UserRecord is the subset of the provider's account record the API exposes.
type UserRecord struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

func (c *IdentityClient) Lookup(ctx context.Context, idToken string) (*UserRecord, error) {
	body, err := json.Marshal(map[string]any{"idToken": idToken})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Users []idpAccountResponse `json:"users"`
	}
	if err := c.do(ctx, c.accountsURL("accounts:lookup"), "application/json", body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Users) == 0 {
		return nil, &IdentityError{StatusCode: http.StatusNotFound, Message: "account not found"}
	}
	u := parsed.Users[0]
	return &UserRecord{UID: u.LocalID, Email: u.Email, DisplayName: u.DisplayName}, nil
}

func (c *IdentityClient) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	var parsed struct {
		UserID       string `json:"user_id"`
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	endpoint := c.cfg.TokenURL + "?key=" + url.QueryEscape(c.cfg.APIKey)
	if err := c.do(ctx, endpoint, "application/x-www-form-urlencoded", []byte(form.Encode()), &parsed); err != nil {
		return nil, err
	}
	return &Credentials{
		UID:          parsed.UserID,
		IDToken:      parsed.IDToken,
		RefreshToken: parsed.RefreshToken,
		ExpiresIn:    parsed.ExpiresIn,
	}, nil
}

func (c *IdentityClient) accountsURL(op string) string {
	return fmt.Sprintf("%s/%s?key=%s", strings.TrimRight(c.cfg.BaseURL, "/"), op, url.QueryEscape(c.cfg.APIKey))
}

func (c *IdentityClient) postAccounts(ctx context.Context, op string, payload map[string]any) (*idpAccountResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var parsed idpAccountResponse
	if err := c.do(ctx, c.accountsURL(op), "application/json", body, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (c *IdentityClient) do(ctx context.Context, endpoint, contentType string, body []byte, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		msg := errBody.Error.Message
		if msg == "" {
			msg = resp.Status
		}
		return &IdentityError{StatusCode: resp.StatusCode, Message: msg}
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}

func credentialsFrom(resp *idpAccountResponse) *Credentials {
	return &Credentials{
		UID:          resp.LocalID,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		ExpiresIn:    resp.ExpiresIn,
	}
}
