// Package auth is the identity collaborator: it turns a bearer token, the auth_token
// cookie or an operator API key into an identity.Actor. Tokens are issued by the
// identity provider; this service only verifies them and mirrors the subject into
// the users table.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/gdg-garage/fitclass-api/internal/config"
	"github.com/gdg-garage/fitclass-api/internal/identity"
	"github.com/gdg-garage/fitclass-api/internal/models"
)

const (
	CookieName    = "auth_token"
	TokenDuration = 24 * time.Hour
)

var errNoCredentials = errors.New("no credentials")

type Claims struct {
	Role  identity.Role `json:"role"`
	Email string        `json:"email"`
	Name  string        `json:"name"`
	jwt.RegisteredClaims
}

type AuthHandler struct {
	db  *gorm.DB
	cfg *config.Config
	Now func() time.Time
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, Now: time.Now}
}

// AuthInput is embedded in every operation input that needs a caller.
type AuthInput struct {
	Cookie        string `header:"Cookie" doc:"auth_token cookie"`
	Authorization string `header:"Authorization" doc:"Bearer token"`
	APIKey        string `header:"X-API-KEY" doc:"Operator API key"`
}

func (in AuthInput) token() string {
	if t, ok := strings.CutPrefix(in.Authorization, "Bearer "); ok {
		return strings.TrimSpace(t)
	}
	if in.Cookie == "" {
		return ""
	}
	cookies, err := http.ParseCookie(in.Cookie)
	if err != nil {
		return ""
	}
	for _, c := range cookies {
		if c.Name == CookieName {
			return c.Value
		}
	}
	return ""
}

func (in AuthInput) present() bool {
	return in.APIKey != "" || in.token() != ""
}

// Authorize authenticates the caller or fails with 401.
func (h *AuthHandler) Authorize(ctx context.Context, in AuthInput) (identity.Actor, error) {
	actor, err := h.authenticate(ctx, in)
	if err != nil {
		if errors.Is(err, errNoCredentials) {
			return identity.Actor{}, huma.Error401Unauthorized("Unauthorized: No token found")
		}
		return identity.Actor{}, huma.Error401Unauthorized("Unauthorized: " + err.Error())
	}
	return actor, nil
}

// AuthorizeAdmin is Authorize restricted to the ADMIN role.
func (h *AuthHandler) AuthorizeAdmin(ctx context.Context, in AuthInput) (identity.Actor, error) {
	actor, err := h.Authorize(ctx, in)
	if err != nil {
		return actor, err
	}
	if !actor.IsAdmin() {
		return identity.Actor{}, huma.Error403Forbidden("Forbidden: administrator role required")
	}
	return actor, nil
}

// Identify is Authorize for operations that also serve anonymous callers. It returns
// nil when no credentials were sent.
func (h *AuthHandler) Identify(ctx context.Context, in AuthInput) (*identity.Actor, error) {
	if !in.present() {
		return nil, nil
	}
	actor, err := h.Authorize(ctx, in)
	if err != nil {
		return nil, err
	}
	return &actor, nil
}

func (h *AuthHandler) authenticate(ctx context.Context, in AuthInput) (identity.Actor, error) {
	if in.APIKey != "" {
		return h.authenticateKey(ctx, in.APIKey)
	}
	tokenString := in.token()
	if tokenString == "" {
		return identity.Actor{}, errNoCredentials
	}
	claims, err := h.ParseToken(tokenString)
	if err != nil {
		return identity.Actor{}, err
	}
	user, err := h.syncUser(ctx, claims)
	if err != nil {
		return identity.Actor{}, err
	}
	return identity.Actor{SubjectID: user.ID, Role: user.Role}, nil
}

func (h *AuthHandler) authenticateKey(ctx context.Context, key string) (identity.Actor, error) {
	db := h.db.WithContext(ctx)

	var apiKey models.APIKey
	if err := db.Preload("User").Where("key = ?", key).First(&apiKey).Error; err != nil {
		return identity.Actor{}, errors.New("invalid API key")
	}
	now := h.Now()
	if apiKey.ExpiresAt != nil && now.After(*apiKey.ExpiresAt) {
		return identity.Actor{}, errors.New("API key expired")
	}
	db.Model(&models.APIKey{}).Where("id = ?", apiKey.ID).Update("last_used_at", now.UTC())

	return identity.Actor{SubjectID: apiKey.UserID, Role: apiKey.User.Role}, nil
}

// ParseToken verifies an HS256 token and its claims.
func (h *AuthHandler) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(h.Now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if _, err := subjectID(claims); err != nil {
		return nil, err
	}
	if !claims.Role.Valid() {
		return nil, errors.New("invalid token claims: unknown role")
	}
	if claims.Email == "" {
		return nil, errors.New("invalid token claims: email missing")
	}
	return claims, nil
}

func subjectID(claims *Claims) (uint, error) {
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid token claims: bad subject")
	}
	return uint(id), nil
}

// syncUser mirrors the token subject into the users table.
func (h *AuthHandler) syncUser(ctx context.Context, claims *Claims) (*models.User, error) {
	id, _ := subjectID(claims)
	db := h.db.WithContext(ctx)

	var user models.User
	err := db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{Email: claims.Email, Name: claims.Name, Role: claims.Role}
		user.ID = id
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return &user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if user.Email != claims.Email || user.Name != claims.Name || user.Role != claims.Role {
		user.Email, user.Name, user.Role = claims.Email, claims.Name, claims.Role
		if err := db.Save(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}
	return &user, nil
}

// GenerateToken issues a token for user, valid for TokenDuration.
func (h *AuthHandler) GenerateToken(user *models.User) (string, error) {
	now := h.Now()
	claims := Claims{
		Role:  user.Role,
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenDuration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

type MeOutput struct {
	Body struct {
		ID    uint          `json:"id"`
		Email string        `json:"email"`
		Name  string        `json:"name"`
		Role  identity.Role `json:"role"`
	}
}

func (h *AuthHandler) HandleMe(ctx context.Context, input *AuthInput) (*MeOutput, error) {
	actor, err := h.Authorize(ctx, *input)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := h.db.WithContext(ctx).First(&user, actor.SubjectID).Error; err != nil {
		return nil, huma.Error404NotFound("User not found")
	}

	resp := &MeOutput{}
	resp.Body.ID = user.ID
	resp.Body.Email = user.Email
	resp.Body.Name = user.Name
	resp.Body.Role = user.Role
	return resp, nil
}
