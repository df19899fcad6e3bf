package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zhikangxie107/transcribe/internal/auth"
	"github.com/zhikangxie107/transcribe/internal/queue"
)

// AuthHandler brokers password and token exchange with the external identity
// provider. It holds no credentials state of its own.
type AuthHandler struct {
	identity *auth.IdentityClient
	queue    *queue.Client // optional; display-name task is skipped without it
}

func NewAuthHandler(identity *auth.IdentityClient, q *queue.Client) *AuthHandler {
	return &AuthHandler{identity: identity, queue: q}
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password required"})
		return
	}

	creds, err := h.identity.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeIdentityError(w, err)
		return
	}

	if req.DisplayName != "" && h.queue != nil {
		if err := h.queue.EnqueueDisplayNameSet(queue.DisplayNameSetPayload{
			IDToken:     creds.IDToken,
			DisplayName: req.DisplayName,
		}); err != nil {
			slog.Error("enqueue display name task failed", "error", err)
		}
	}

	creds.DisplayName = req.DisplayName
	writeJSON(w, http.StatusOK, creds)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password required"})
		return
	}

	creds, err := h.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "refresh_token required"})
		return
	}

	creds, err := h.identity.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

// Me runs behind the JWT middleware; the raw bearer token is still needed for
// the provider lookup.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	user, err := h.identity.Lookup(r.Context(), token)
	if err != nil {
		writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func writeIdentityError(w http.ResponseWriter, err error) {
	var idpErr *auth.IdentityError
	if errors.As(err, &idpErr) {
		status := http.StatusBadRequest
		if idpErr.StatusCode == http.StatusUnauthorized || idpErr.StatusCode == http.StatusForbidden {
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, map[string]string{"error": idpErr.Message})
		return
	}
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": "identity provider unavailable"})
}
