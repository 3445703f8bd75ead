package auth

import (
	"net/http"

	"github.com/debemdeboas/memories/internal/routes"
)

func RegisterEd25519AuthRoutes(mux *http.ServeMux, provider *Ed25519AuthProvider) {
	mux.HandleFunc(routes.AuthChallengePath, Ed25519ChallengeHandler(provider))
	mux.HandleFunc(routes.AuthVerifyPath, Ed25519VerifyHandler(provider))
}

func RegisterClerkRoutes(mux *http.ServeMux, provider *ClerkAuthProvider) {
	mux.HandleFunc("POST "+routes.ClerkUserWebhookPath, provider.HandleWebhookUser)
}
