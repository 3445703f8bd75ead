// Package auth identifies the user that owns a draft and the memory it
// becomes.
package auth

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/memories/internal/config"
	"github.com/debemdeboas/memories/internal/model"
)

var authLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	authLogger = l
}

var ErrNoUser = errors.New("no user ID in context")

type AuthProvider interface {
	WithHeaderAuthorization() func(http.Handler) http.Handler

	GetUserIDFromSession(r *http.Request) (model.UserID, error)

	// EnforceUserAndGetID writes a 401 and returns an error when the
	// request carries no user.
	EnforceUserAndGetID(w http.ResponseWriter, r *http.Request) (model.UserID, error)

	HandleWebhookUser(w http.ResponseWriter, r *http.Request)
}

// LocalUserID owns everything when authentication is disabled.
const LocalUserID model.UserID = "local"

// LocalAuthProvider treats every request as the single local user.
type LocalAuthProvider struct{}

func (LocalAuthProvider) WithHeaderAuthorization() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), LocalUserID)))
		})
	}
}

func (LocalAuthProvider) GetUserIDFromSession(r *http.Request) (model.UserID, error) {
	return LocalUserID, nil
}

func (LocalAuthProvider) EnforceUserAndGetID(w http.ResponseWriter, r *http.Request) (model.UserID, error) {
	return LocalUserID, nil
}

func (LocalAuthProvider) HandleWebhookUser(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, config.ErrUnauthorized, http.StatusUnauthorized)
}

func userFromContext(r *http.Request) (model.UserID, error) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		return "", ErrNoUser
	}
	return userID, nil
}
