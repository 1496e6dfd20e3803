package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenResponse is the login response body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Claims carried by an access token.
type Claims struct {
	UserID string
	Email  string
	Role   string
}

// handleLogin exchanges HTTP Basic credentials for a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", "Basic")
		s.writeError(w, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}

	user, ok := verifyUser(username, password)
	if !ok {
		w.Header().Set("WWW-Authenticate", "Basic")
		s.writeError(w, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}

	token, err := s.issueToken(user)
	if err != nil {
		s.log.ErrorStack("issuing token failed", err, map[string]any{"user_id": user.UserID.String()})
		s.writeError(w, http.StatusInternalServerError, "An internal error occurred", nil)
		return
	}

	s.log.Info("login", map[string]any{"user_id": user.UserID.String()})
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// issueToken mints an HS256 access token for user.
func (s *Server) issueToken(user User) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   user.UserID.String(),
		"email": user.Email,
		"role":  user.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Duration(s.cfg.TokenExpiryMinutes) * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// parseToken validates an access token and extracts its claims.
func (s *Server) parseToken(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.SecretKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("unexpected claims type")
	}
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return Claims{}, fmt.Errorf("token missing user identifier")
	}
	email, _ := mc["email"].(string)
	role, _ := mc["role"].(string)
	return Claims{UserID: sub, Email: email, Role: role}, nil
}
