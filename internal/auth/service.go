package auth

import (
	"context"
	"strings"
	"time"

	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/db"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour

	cookieName = "access_token"
)

type Service struct {
	secret []byte
	db     db.Querier
}

type Claims struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"org_id"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

func NewService(secret string, q db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     q,
	}
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (User, TokenResponse, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, organization_id, email, name, role, password_hash, created_at
		FROM users WHERE email = $1
	`, req.Email)

	var user User
	if err := row.Scan(&user.ID, &user.OrganizationID, &user.Email, &user.Name, &user.Role, &user.PasswordHash, &user.CreatedAt); err != nil {
		return User{}, TokenResponse{}, &AuthError{Msg: "invalid credentials"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return User{}, TokenResponse{}, &AuthError{Msg: "invalid credentials"}
	}

	tokens, err := s.GenerateTokens(ctx, user)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

func (s *Service) GenerateTokens(ctx context.Context, user User) (TokenResponse, error) {
	access, err := s.signToken(user, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := s.signToken(user, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, user.ID, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (User, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return User{}, &AuthError{Msg: "refresh token invalid"}
	}

	userID, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || userID != claims.UserID || time.Now().After(expiresAt) {
		return User{}, &AuthError{Msg: "refresh token invalid"}
	}
	return s.userByID(ctx, claims.UserID)
}

// Handshake carries the credentials presented during the realtime connection
// upgrade. Resolution order: explicit auth token (mobile), Authorization
// bearer header, access-token cookie (web). First match wins.
type Handshake struct {
	AuthToken           string
	AuthorizationHeader string
	CookieHeader        string
}

// Authenticate validates the handshake and resolves its subject to a live
// user record. The returned identity is pinned to the connection; later
// messages are never re-authenticated.
func (s *Service) Authenticate(ctx context.Context, h Handshake) (Identity, error) {
	token := resolveCredential(h)
	if token == "" {
		return Identity{}, &AuthError{Msg: "no credential presented"}
	}

	claims, err := s.parseToken(token)
	if err != nil {
		return Identity{}, &AuthError{Msg: "token invalid"}
	}

	user, err := s.userByID(ctx, claims.UserID)
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Name:           user.Name,
		Role:           user.Role,
	}, nil
}

func resolveCredential(h Handshake) string {
	if h.AuthToken != "" {
		return h.AuthToken
	}
	if token := bearerFromHeader(h.AuthorizationHeader); token != "" {
		return token
	}
	return tokenFromCookieHeader(h.CookieHeader)
}

func tokenFromCookieHeader(header string) string {
	for _, part := range strings.Split(header, ";") {
		name, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if found && name == cookieName {
			return value
		}
	}
	return ""
}

func (s *Service) userByID(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, organization_id, email, name, role, password_hash, created_at
		FROM users WHERE id = $1
	`, id)
	var user User
	if err := row.Scan(&user.ID, &user.OrganizationID, &user.Email, &user.Name, &user.Role, &user.PasswordHash, &user.CreatedAt); err != nil {
		return User{}, &AuthError{Msg: "user no longer exists"}
	}
	return user, nil
}

func (s *Service) signToken(user User, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Name:           user.Name,
		Role:           user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, &AuthError{Msg: "token invalid"}
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), userID, token, time.Now().Add(ttl))
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var userID string
	var expiresAt time.Time
	if err := row.Scan(&userID, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return userID, expiresAt, nil
}
