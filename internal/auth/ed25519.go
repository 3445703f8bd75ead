package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/memories/internal/config"
	"github.com/debemdeboas/memories/internal/model"
)

// Ed25519AuthProvider authenticates the single owner of the instance: a
// request is theirs when it carries a signature of the current challenge.
type Ed25519AuthProvider struct {
	publicKey  ed25519.PublicKey
	headerName string
	cookieName string
	userID     model.UserID

	mu        sync.RWMutex
	challenge []byte
}

func NewEd25519AuthProvider(publicKeyPEM string, headerName string, userID model.UserID) (*Ed25519AuthProvider, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing the public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	publicKey, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("key is not an Ed25519 public key")
	}

	p := &Ed25519AuthProvider{
		publicKey:  publicKey,
		headerName: headerName,
		cookieName: config.CookieAuthToken,
		userID:     userID,
	}
	if err := p.RefreshChallenge(); err != nil {
		return nil, err
	}
	return p, nil
}

// WithHeaderAuthorization sets the user in the request context when the
// header or the auth cookie holds a valid signature. Other requests pass
// through without a user.
func (p *Ed25519AuthProvider) WithHeaderAuthorization() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p.Verify(p.signatureFrom(r)) {
				r = r.WithContext(ContextWithUserID(r.Context(), p.userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (p *Ed25519AuthProvider) signatureFrom(r *http.Request) []byte {
	l := zerolog.Ctx(r.Context())

	if h := r.Header.Get(p.headerName); h != "" {
		sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(h))
		if err == nil {
			return sig
		}
		l.Error().Err(err).Msg("Failed to decode signature from header")
	}

	if cookie, err := r.Cookie(p.cookieName); err == nil && cookie.Value != "" {
		sig, err := base64.StdEncoding.DecodeString(cookie.Value)
		if err == nil {
			return sig
		}
		l.Error().Err(err).Msg("Failed to decode signature from cookie")
	}
	return nil
}

// Verify checks sig against the current challenge.
func (p *Ed25519AuthProvider) Verify(sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ed25519.Verify(p.publicKey, p.challenge, sig)
}

func (p *Ed25519AuthProvider) GetUserIDFromSession(r *http.Request) (model.UserID, error) {
	return userFromContext(r)
}

// HandleWebhookUser is a no-op: the only user is configured locally.
func (p *Ed25519AuthProvider) HandleWebhookUser(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (p *Ed25519AuthProvider) GetChallenge() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]byte(nil), p.challenge...)
}

// RefreshChallenge replaces the challenge, which signs every session out.
func (p *Ed25519AuthProvider) RefreshChallenge() error {
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		authLogger.Error().Err(err).Msg("Failed to generate challenge")
		return fmt.Errorf("failed to generate challenge: %w", err)
	}
	p.mu.Lock()
	p.challenge = challenge
	p.mu.Unlock()
	return nil
}

func (p *Ed25519AuthProvider) EnforceUserAndGetID(w http.ResponseWriter, r *http.Request) (model.UserID, error) {
	userID, err := p.GetUserIDFromSession(r)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Unauthorized access attempt")
		unauthorized(w)
		return "", err
	}
	return userID, nil
}
