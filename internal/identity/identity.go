// Package identity resolves who is making a request: the anonymous device,
// the browser tab and, after login, the account.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/sessions"
)

const (
	DeviceCookieName      = "datagym_device"
	SessionHeaderName     = "X-DataGym-Session-ID"
	DefaultSessionIDValue = "default"
	AuthSessionName       = "datagym_auth"
	deviceCookieMaxAge    = 30 * 24 * time.Hour
	accountIDValueKey     = "user_id"
)

type contextKey int

const (
	deviceIDKey contextKey = iota
	sessionIDKey
	accountIDKey
)

var (
	deviceIDPattern  = regexp.MustCompile(`^dev_[a-f0-9]{32}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// DeviceIDFromContext extracts the anonymous device ID from the request context.
func DeviceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(deviceIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the tab session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

// AccountIDFromContext extracts the logged-in account ID, or "".
func AccountIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(accountIDKey).(string); ok {
		return v
	}
	return ""
}

// NewSessionStore creates the cookie store holding login sessions.
func NewSessionStore(secret string, isDev bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(deviceCookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	}
	return store
}

// Login records accountID in the login session.
func Login(w http.ResponseWriter, r *http.Request, store sessions.Store, accountID string) error {
	session, err := store.Get(r, AuthSessionName)
	if err != nil && session == nil {
		return fmt.Errorf("load login session: %w", err)
	}
	session.Values[accountIDValueKey] = accountID
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save login session: %w", err)
	}
	return nil
}

// Logout clears the login session.
func Logout(w http.ResponseWriter, r *http.Request, store sessions.Store) error {
	session, err := store.Get(r, AuthSessionName)
	if err != nil && session == nil {
		return fmt.Errorf("load login session: %w", err)
	}
	delete(session.Values, accountIDValueKey)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("clear login session: %w", err)
	}
	return nil
}

// WithAccountID returns ctx carrying accountID, for handlers that change the
// login state mid-request.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

func generateDeviceID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}
	return "dev_" + hex.EncodeToString(buf), nil
}

func isValidDeviceID(id string) bool {
	return deviceIDPattern.MatchString(id)
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

func getOrCreateDeviceID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	id := ""
	if c, err := r.Cookie(DeviceCookieName); err == nil && isValidDeviceID(c.Value) {
		id = c.Value
	} else {
		id, err = generateDeviceID()
		if err != nil {
			return "", err
		}
	}

	// Refresh on every request so active devices keep their id.
	http.SetCookie(w, &http.Cookie{
		Name:     DeviceCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(deviceCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(deviceCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
	return id, nil
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	return sanitizeSessionID(sid)
}

func accountIDFromRequest(r *http.Request, store sessions.Store) string {
	session, err := store.Get(r, AuthSessionName)
	if err != nil || session == nil {
		return ""
	}
	id, _ := session.Values[accountIDValueKey].(string)
	return id
}

// Middleware injects the device ID, tab session ID and logged-in account ID.
func Middleware(store sessions.Store, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID, err := getOrCreateDeviceID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish device identity"}`, http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), deviceIDKey, deviceID)
			ctx = context.WithValue(ctx, sessionIDKey, sessionIDFromRequest(r))
			ctx = context.WithValue(ctx, accountIDKey, accountIDFromRequest(r, store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
