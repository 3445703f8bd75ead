package auth

import (
	"encoding/json"
	"net/http"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"

	"github.com/debemdeboas/memories/internal/db"
	"github.com/debemdeboas/memories/internal/model"
)

const clerkSessionCookie = "__session"

type ClerkAuthProvider struct {
	db db.DB

	cookieExtractor clerkhttp.AuthorizationOption
}

func NewClerkAuthProvider(clerkKey string, db db.DB) *ClerkAuthProvider {
	clerk.SetKey(clerkKey)

	return &ClerkAuthProvider{
		db: db,
		cookieExtractor: clerkhttp.AuthorizationJWTExtractor(func(r *http.Request) string {
			cookie, err := r.Cookie(clerkSessionCookie)
			if err != nil {
				return ""
			}
			return cookie.Value
		}),
	}
}

// WithHeaderAuthorization verifies the Clerk session and copies its subject
// into the request context as the user ID.
func (c *ClerkAuthProvider) WithHeaderAuthorization() func(http.Handler) http.Handler {
	verify := clerkhttp.WithHeaderAuthorization(c.cookieExtractor)
	return func(next http.Handler) http.Handler {
		return verify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := clerk.SessionClaimsFromContext(r.Context()); ok && claims.Subject != "" {
				r = r.WithContext(ContextWithUserID(r.Context(), model.UserID(claims.Subject)))
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func (c *ClerkAuthProvider) GetUserIDFromSession(r *http.Request) (model.UserID, error) {
	return userFromContext(r)
}

func (c *ClerkAuthProvider) EnforceUserAndGetID(w http.ResponseWriter, r *http.Request) (model.UserID, error) {
	userID, err := c.GetUserIDFromSession(r)
	if err != nil {
		unauthorized(w)
		return "", err
	}
	return userID, nil
}

type clerkEvent struct {
	Data clerk.User `json:"data"`
	Type string     `json:"type"`
}

// HandleWebhookUser keeps the users table in sync with Clerk so memories
// can reference their owner.
func (c *ClerkAuthProvider) HandleWebhookUser(w http.ResponseWriter, r *http.Request) {
	var event clerkEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		authLogger.Error().Err(err).Msg("Error decoding event payload")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	usr := event.Data
	l := authLogger.With().Str("event", event.Type).Str("user_id", usr.ID).Logger()

	switch event.Type {
	case "user.created", "user.updated":
		var username any = usr.Username
		if usr.Username == nil && len(usr.ExternalAccounts) > 0 {
			username = usr.ExternalAccounts[0].Username
		}
		var email any
		if len(usr.EmailAddresses) > 0 {
			email = usr.EmailAddresses[0].EmailAddress
		}

		_, err := c.db.Exec(
			`INSERT INTO users (id, username, email) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET username = excluded.username, email = excluded.email`,
			usr.ID, username, email,
		)
		if err != nil {
			l.Error().Err(err).Msg("Error saving user")
			http.Error(w, "Error saving user", http.StatusInternalServerError)
			return
		}

		l.Info().Msg("User saved")
		if event.Type == "user.created" {
			w.WriteHeader(http.StatusCreated)
		} else {
			w.WriteHeader(http.StatusNoContent)
		}

	case "user.deleted":
		if _, err := c.db.Exec("DELETE FROM users WHERE id = ?", usr.ID); err != nil {
			l.Error().Err(err).Msg("Error deleting user")
			http.Error(w, "Error deleting user", http.StatusInternalServerError)
			return
		}

		l.Info().Msg("User deleted")
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Invalid event type", http.StatusBadRequest)
	}
}
