package auth

import (
	"net/http"
	"strconv"

	"github.com/gdg-garage/fitclass-api/internal/models"
)

// RefreshMiddleware implements the sliding session: a valid auth_token cookie with
// less than half of its lifetime left is replaced with a fresh one. Requests are
// never rejected here; operations authorize their own callers.
func (h *AuthHandler) RefreshMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := h.ParseToken(cookie.Value)
		if err != nil || claims.ExpiresAt == nil {
			next.ServeHTTP(w, r)
			return
		}

		now := h.Now()
		if claims.ExpiresAt.Time.Sub(now) < TokenDuration/2 {
			id, _ := subjectID(claims)
			newToken, err := h.GenerateToken(claimsUser(id, claims))
			if err == nil {
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    newToken,
					Expires:  now.Add(TokenDuration),
					HttpOnly: true,
					Path:     "/",
				})
			}
		}
		next.ServeHTTP(w, r)
	})
}

// SubjectHint names the caller of r for rate limiting without touching the database.
// It returns "" for anonymous or unverifiable requests.
func (h *AuthHandler) SubjectHint(r *http.Request) string {
	in := AuthInput{Authorization: r.Header.Get("Authorization")}
	if c, err := r.Cookie(CookieName); err == nil {
		in.Cookie = CookieName + "=" + c.Value
	}
	if in.Authorization == "" && in.Cookie == "" {
		if r.Header.Get("X-API-KEY") != "" {
			return "apikey"
		}
		return ""
	}
	claims, err := h.ParseToken(in.token())
	if err != nil {
		return ""
	}
	id, _ := subjectID(claims)
	return strconv.FormatUint(uint64(id), 10)
}

func claimsUser(id uint, claims *Claims) *models.User {
	u := &models.User{Email: claims.Email, Name: claims.Name, Role: claims.Role}
	u.ID = id
	return u
}
