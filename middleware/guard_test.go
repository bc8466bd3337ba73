package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*authcore.Engine, *memory.Store) {
	t.Helper()

	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.BcryptCost = 4

	st := memory.New()
	engine, err := authcore.New().WithConfig(cfg).WithStore(st).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine, st
}

func login(t *testing.T, engine *authcore.Engine) (authcore.Account, authcore.TokenPair) {
	t.Helper()

	ctx := context.Background()
	account, err := engine.Register(ctx, authcore.RegisterRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	pair, err := engine.Login(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	return account, pair
}

func echoAccountID(w http.ResponseWriter, r *http.Request) {
	id, ok := AccountIDFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	_, _ = w.Write([]byte(id))
}

func serve(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAccess(t *testing.T) {
	engine, _ := newEngine(t)
	account, pair := login(t, engine)
	h := RequireAccess(engine)(http.HandlerFunc(echoAccountID))

	rec := serve(h, "Bearer "+pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, account.ID, rec.Body.String())

	rec = serve(h, "bearer "+pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	for name, header := range map[string]string{
		"missing":       "",
		"wrong scheme":  "Basic " + pair.AccessToken,
		"empty token":   "Bearer ",
		"refresh token": "Bearer " + pair.RefreshToken,
		"garbage":       "Bearer not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(h, header)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, false, body["success"])
			require.Equal(t, invalidCredentialsMessage, body["message"])
		})
	}
}

func TestRequireAccessSkipsStore(t *testing.T) {
	engine, st := newEngine(t)
	account, pair := login(t, engine)
	require.NoError(t, st.SetActive(context.Background(), account.ID, false))

	rec := serve(RequireAccess(engine)(http.HandlerFunc(echoAccountID)), "Bearer "+pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireActiveAccount(t *testing.T) {
	engine, st := newEngine(t)
	account, pair := login(t, engine)

	h := RequireActiveAccount(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := AccountFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, account.ID, got.ID)
		echoAccountID(w, r)
	}))

	rec := serve(h, "Bearer "+pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, account.ID, rec.Body.String())

	require.NoError(t, st.SetActive(context.Background(), account.ID, false))
	rec = serve(h, "Bearer "+pair.AccessToken)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestGuardWithoutEngine(t *testing.T) {
	var engine *authcore.Engine
	rec := serve(RequireAccess(engine)(http.HandlerFunc(echoAccountID)), "Bearer token")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{in: "Bearer abc", want: "abc", valid: true},
		{in: "BEARER abc ", want: "abc", valid: true},
		{in: "Bearer", valid: false},
		{in: "Token abc", valid: false},
		{in: "", valid: false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.in)
		require.Equal(t, tt.valid, ok, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}
