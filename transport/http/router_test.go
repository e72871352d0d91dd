package http

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/carboncopyrefi/frf-front/adapters/events"
	"github.com/carboncopyrefi/frf-front/adapters/sessionclient"
	"github.com/carboncopyrefi/frf-front/adapters/store"
	"github.com/carboncopyrefi/frf-front/adapters/tokenizer"
	"github.com/carboncopyrefi/frf-front/adapters/wallet"
	"github.com/carboncopyrefi/frf-front/authstore"
	"github.com/carboncopyrefi/frf-front/core"
	"github.com/carboncopyrefi/frf-front/service"
	"github.com/carboncopyrefi/frf-front/siwe"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appOrigin = "https://frf.example.org"

type e2e struct {
	server *httptest.Server
	wallet *wallet.KeyWallet
	tokens *store.MemoryStore
	store  *authstore.Store
	client *sessionclient.Client
	r      *service.Reconciler
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newE2E(t *testing.T, evaluator bool) *e2e {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	w, err := wallet.Generate()
	require.NoError(t, err)

	var evaluators []string
	if evaluator {
		evaluators = []string{w.Address()}
	}

	mem := store.NewMemoryStore()
	sessions := service.NewSessionService(tokenizer.NewJWTTokenizer(key, "frf"), mem, mem, events.NopPublisher{},
		service.SessionConfig{Domains: []string{"frf.example.org"}, Evaluators: evaluators}, quietLogger())
	srv := httptest.NewServer(SetupRouter(sessions, RouterConfig{
		AllowedOrigins: []string{appOrigin},
		CookieTTL:      time.Hour,
	}))
	t.Cleanup(srv.Close)

	e := &e2e{
		server: srv,
		wallet: w,
		tokens: store.NewMemoryStore(),
		store:  authstore.New(),
		client: sessionclient.New(srv.URL),
	}
	e.r = service.NewReconciler(e.store, e.tokens, e.client, w, siwe.NewBuilder(appOrigin, ""), []int64{10},
		service.WithLogger(quietLogger()))
	return e
}

func TestSignInFlow(t *testing.T) {
	e := newE2E(t, true)
	ctx := testContext(t)

	assert.Equal(t, core.Unauthenticated, e.r.WalletChanged(ctx, e.wallet.Connect()))

	state, err := e.r.SignIn(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.AuthState{Authenticated: true, Role: core.RoleEvaluator}, state)

	// Bearer token works against protected routes
	auth, err := e.r.Authorization(ctx)
	require.NoError(t, err)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.server.URL+"/api/evaluator", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", auth)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The cookie session is visible to the client
	sess, err := e.client.FetchSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, e.wallet.Address(), sess.Address)
	assert.Equal(t, int64(10), sess.ChainID)

	require.NoError(t, e.r.SignOut(ctx))
	assert.Equal(t, core.Unauthenticated, e.store.State())

	sess, err = e.client.FetchSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)

	// The revoked token is refused by the server even though it is unexpired
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Signing out again still succeeds locally
	require.NoError(t, e.r.SignOut(ctx))
	assert.Equal(t, core.Unauthenticated, e.store.State())
}

func TestCookieSessionRestoresWithoutToken(t *testing.T) {
	e := newE2E(t, false)
	ctx := testContext(t)
	e.wallet.Connect()

	_, err := e.r.SignIn(ctx)
	require.NoError(t, err)

	// Forget the local token; the cookie jar still holds the session
	require.NoError(t, e.tokens.DeleteToken(ctx))
	e.r.WalletChanged(ctx, e.wallet.Disconnect())

	state := e.r.WalletChanged(ctx, e.wallet.Connect())
	assert.Equal(t, core.AuthState{Authenticated: true, Role: core.RoleUser}, state)
}

func TestVerifyEndpointRejections(t *testing.T) {
	e := newE2E(t, false)
	ctx := testContext(t)
	e.wallet.Connect()

	nonce, err := e.client.RequestNonce(ctx)
	require.NoError(t, err)

	b := siwe.NewBuilder(appOrigin, "")
	msg, err := b.BuildMessage(e.wallet.Address(), nonce, []int64{10})
	require.NoError(t, err)
	sig, err := e.wallet.SignMessage(ctx, msg)
	require.NoError(t, err)

	// Signature from the same wallet over a message with another nonce
	other, err := b.BuildMessage(e.wallet.Address(), nonce+"x", []int64{10})
	require.NoError(t, err)
	_, ok, err := e.client.Verify(ctx, other, sig)
	require.NoError(t, err)
	assert.False(t, ok)

	// The first nonce is still outstanding because the other message named another one
	res, ok, err := e.client.Verify(ctx, msg, sig)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user", res.Role)

	// Replay
	_, ok, err = e.client.Verify(ctx, msg, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyBadRequest(t *testing.T) {
	e := newE2E(t, false)

	resp, err := http.Post(e.server.URL+"/verify", "application/json", strings.NewReader(`{"message":""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSignOutWithoutSession(t *testing.T) {
	e := newE2E(t, false)

	ok, err := e.client.SignOut(testContext(t))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMeRequiresBearer(t *testing.T) {
	e := newE2E(t, false)

	resp, err := http.Get(e.server.URL + "/api/me")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEvaluatorRouteForbidsUsers(t *testing.T) {
	e := newE2E(t, false)
	ctx := testContext(t)
	e.wallet.Connect()
	_, err := e.r.SignIn(ctx)
	require.NoError(t, err)

	auth, err := e.r.Authorization(ctx)
	require.NoError(t, err)

	for path, want := range map[string]int{"/api/me": http.StatusOK, "/api/evaluator": http.StatusForbidden} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.server.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", auth)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, path)
	}
}

func TestCORSPreflight(t *testing.T) {
	e := newE2E(t, false)

	req, err := http.NewRequest(http.MethodOptions, e.server.URL+"/verify", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", appOrigin)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, appOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}
