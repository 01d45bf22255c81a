// Package auth issues and verifies the signed cookie that carries a
// browser's interview session ID.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid session token")

const issuer = "visaprep"

type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionCookies mints and validates HS256-signed session tokens.
type SessionCookies struct {
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

type CookieConfig struct {
	Secret     string // empty: random key, sessions end with the process
	CookieName string
	TTL        time.Duration
	Secure     bool
}

func NewSessionCookies(cfg CookieConfig) (*SessionCookies, error) {
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "visa_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	return &SessionCookies{
		secret:     secret,
		cookieName: cfg.CookieName,
		ttl:        cfg.TTL,
		secure:     cfg.Secure,
		now:        time.Now,
	}, nil
}

// Issue returns a signed token for sessionID.
func (c *SessionCookies) Issue(sessionID string) (string, error) {
	now := c.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify returns the session ID carried by tokenStr.
func (c *SessionCookies) Verify(tokenStr string) (string, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(c.now))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("%w: bad session id", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Middleware attaches a session ID to every request. Requests without a valid
// cookie get a new session ID and a fresh cookie. The cookie is re-issued on
// each request so its expiry slides with the stored session.
func (c *SessionCookies) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionID string
		if ck, err := r.Cookie(c.cookieName); err == nil {
			id, err := c.Verify(ck.Value)
			if err != nil {
				slog.Debug("discarding session cookie", "error", err)
			} else {
				sessionID = id
			}
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		token, err := c.Issue(sessionID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not issue session")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     c.cookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(c.ttl.Seconds()),
			HttpOnly: true,
			Secure:   c.secure,
			SameSite: http.SameSiteLaxMode,
		})

		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sessionID)))
	})
}

type ctxKey string

const sessionIDKey ctxKey = "session_id"

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
