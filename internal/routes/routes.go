// Package routes defines the HTTP paths served outside the draft API.
package routes

const (
	RobotsPath = "/robots.txt"

	// Ed25519 login
	AuthChallengePath = "/auth/challenge"
	AuthVerifyPath    = "/auth/verify"

	// Clerk
	ClerkUserWebhookPath = "/webhook/clerk/user"
)
