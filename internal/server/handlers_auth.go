package server

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rajkumarpandit/macrofin/internal/common"
)

// signJWT creates a signed HMAC-SHA256 token for the given user.
func signJWT(userID, role string, config *common.AuthConfig) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"iss":  "macrofin-server",
		"iat":  now.Unix(),
		"exp":  now.Add(config.GetTokenExpiry()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JWTSecret))
}

type tokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// handleAuthToken handles POST /api/auth/token (dev mode only). Local clients
// use it to mint bearer tokens; production deployments issue tokens from
// their identity provider instead.
func (s *Server) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Token endpoint disabled in production")
		return
	}

	var req tokenRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	token, err := signJWT(req.UserID, req.Role, &s.app.Config.Auth)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign token")
		WriteError(w, http.StatusInternalServerError, "Failed to sign token")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(s.app.Config.Auth.GetTokenExpiry().Seconds()),
	})
}
