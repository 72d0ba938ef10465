package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/veridia/newstrust/internal/article"
	"github.com/veridia/newstrust/internal/auth"
	"github.com/veridia/newstrust/internal/middleware"
	"github.com/veridia/newstrust/internal/quota"
)

// TokenRequest is the request body for POST /v1/auth/token.
type TokenRequest struct {
	UserID string `json:"user_id"`
}

// RefreshRequest is the request body for POST /v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse carries a freshly issued token pair.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// AuthHandlers holds dependencies for token issuance handlers.
type AuthHandlers struct {
	jwtService *auth.JWTService
	users      article.UserStore
	logger     *slog.Logger
}

// NewAuthHandlers creates a new AuthHandlers instance.
func NewAuthHandlers(jwtService *auth.JWTService, users article.UserStore, logger *slog.Logger) *AuthHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandlers{jwtService: jwtService, users: users, logger: logger}
}

// issueTokens generates an access/refresh pair for the user.
func (h *AuthHandlers) issueTokens(userID string, plan quota.Plan) (*TokenResponse, error) {
	access, err := h.jwtService.GenerateAccessToken(userID, string(plan))
	if err != nil {
		return nil, err
	}
	refresh, err := h.jwtService.GenerateRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(auth.AccessTokenExpiry.Seconds()),
	}, nil
}

// IssueToken handles POST /v1/auth/token.
// Issues a token pair for a known user. Identity verification happens at
// the upstream identity provider; this endpoint only mints service tokens.
func (h *AuthHandlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.UserID) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "user_id is required")
		return
	}

	user, err := h.users.FindByID(r.Context(), req.UserID)
	if err != nil {
		h.logger.Error("user lookup failed", "user_id", req.UserID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to look up user")
		return
	}
	if user == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Unknown user")
		return
	}

	tokens, err := h.issueTokens(user.ID, user.Plan)
	if err != nil {
		h.logger.Error("token generation failed", "user_id", user.ID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate tokens")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// Refresh handles POST /v1/auth/refresh.
// Exchanges a valid refresh token for a new token pair. The plan claim is
// re-read from the user store so plan changes take effect on refresh.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	claims, err := h.jwtService.ValidateToken(req.RefreshToken)
	if err != nil {
		message := "Invalid refresh token"
		if errors.Is(err, auth.ErrExpiredToken) {
			message = "Refresh token expired"
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, message)
		return
	}
	if claims.Type != auth.TokenTypeRefresh {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Token is not a refresh token")
		return
	}

	user, err := h.users.FindByID(r.Context(), claims.Subject)
	if err != nil {
		h.logger.Error("user lookup failed", "user_id", claims.Subject, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to look up user")
		return
	}
	if user == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Unknown user")
		return
	}
	tokens, err := h.issueTokens(claims.Subject, user.Plan)
	if err != nil {
		h.logger.Error("token generation failed", "user_id", claims.Subject, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate tokens")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}
