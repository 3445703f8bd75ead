package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debemdeboas/memories/internal/config"
	"github.com/debemdeboas/memories/internal/db"
	"github.com/debemdeboas/memories/internal/draft"
	"github.com/debemdeboas/memories/internal/model"
	"github.com/debemdeboas/memories/internal/objectstore"
	"github.com/debemdeboas/memories/internal/routes"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.FS.Path = t.TempDir()
	cfg.Features.Authentication.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	sqlite := db.NewSQLite(":memory:")
	require.NoError(t, sqlite.InitDB())
	t.Cleanup(func() { sqlite.Close() })

	store, err := objectstore.NewFSStore(cfg.Storage.FS.Path, cfg.Storage.KeyPrefix, cfg.Storage.FS.PublicURL)
	require.NoError(t, err)

	a, err := newApp(cfg, sqlite, store, zerolog.Nop())
	require.NoError(t, err)

	srv := httptest.NewServer(a.handler)
	t.Cleanup(func() {
		srv.Close()
		a.drafts.Close()
	})
	return srv
}

func openDraft(t *testing.T, srv *httptest.Server) draft.Snapshot {
	t.Helper()
	res, err := srv.Client().Post(srv.URL+config.DraftsUrlPath, config.CTypeJSON, nil)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var snap draft.Snapshot
	require.NoError(t, json.NewDecoder(res.Body).Decode(&snap))
	return snap
}

func uploadPNG(t *testing.T, srv *httptest.Server, id draft.ID) model.StagedAsset {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	fw.Write(pngBytes)
	require.NoError(t, mw.Close())

	res, err := srv.Client().Post(srv.URL+config.DraftsUrlPath+"/"+string(id)+"/assets", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var asset model.StagedAsset
	require.NoError(t, json.NewDecoder(res.Body).Decode(&asset))
	return asset
}

func TestSecureHeaders(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	res, err := srv.Client().Get(srv.URL + routes.RobotsPath)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "deny", res.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "same-origin", res.Header.Get("Referrer-Policy"))
	assert.Equal(t, "no-cache", res.Header.Get(config.HCacheControl))
}

func TestStagedUploadIsServedUntilDiscarded(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	snap := openDraft(t, srv)
	asset := uploadPNG(t, srv, snap.ID)

	res, err := srv.Client().Get(srv.URL + asset.URL)
	require.NoError(t, err)
	got, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, pngBytes, got)
	assert.Contains(t, res.Header.Get(config.HCacheControl), "immutable")

	base := srv.URL + config.DraftsUrlPath + "/" + string(snap.ID)
	res, err = srv.Client().Post(base+"/discard", config.CTypeJSON, nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Empty(t, res.Header.Get(config.HHxRedirect), "a draft with photos asks first")

	res, err = srv.Client().Post(base+"/discard/confirm", config.CTypeJSON, nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, config.ListingUrlPath, res.Header.Get(config.HHxRedirect))

	res, err = srv.Client().Get(srv.URL + asset.URL)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, err = srv.Client().Get(base)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestMetricsFeatureFlag(t *testing.T) {
	cfg := testConfig(t)
	srv := newTestServer(t, cfg)
	res, err := srv.Client().Get(srv.URL + config.MetricsUrlPath)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	cfg = testConfig(t)
	cfg.Features.Metrics.Enabled = false
	srv = newTestServer(t, cfg)
	res, err = srv.Client().Get(srv.URL + config.MetricsUrlPath)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestEd25519AuthGuardsDrafts(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	t.Setenv("ED25519_PUBKEY", string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})))

	cfg := testConfig(t)
	cfg.Features.Authentication.Enabled = true
	cfg.Features.Authentication.Type = "ed25519"
	srv := newTestServer(t, cfg)

	res, err := srv.Client().Post(srv.URL+config.DraftsUrlPath, config.CTypeJSON, nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, err = srv.Client().Get(srv.URL + routes.AuthChallengePath)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestEd25519AuthRequiresKey(t *testing.T) {
	t.Setenv("ED25519_PUBKEY", "")
	cfg := testConfig(t)
	cfg.Features.Authentication.Enabled = true
	cfg.Features.Authentication.Type = "ed25519"

	sqlite := db.NewSQLite(":memory:")
	require.NoError(t, sqlite.InitDB())
	defer sqlite.Close()
	store, err := objectstore.NewFSStore(cfg.Storage.FS.Path, cfg.Storage.KeyPrefix, cfg.Storage.FS.PublicURL)
	require.NoError(t, err)

	_, err = newApp(cfg, sqlite, store, zerolog.Nop())
	assert.Error(t, err)
}
