package httpapi

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasnov/accountd/internal/common"
	"github.com/dkrasnov/accountd/internal/logging"
	"github.com/dkrasnov/accountd/internal/server/accounts"
	"github.com/dkrasnov/accountd/internal/server/sessions"
	"github.com/dkrasnov/accountd/internal/server/tokens"
)

type fakeAccounts struct {
	registerErr error
	verifyErr   error
	resetErr    error
	applyErr    error
}

func (f *fakeAccounts) Register(ctx context.Context, p accounts.RegisterParams) (*accounts.RegisterResult, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &accounts.RegisterResult{Account: &accounts.Account{ID: 42, Email: p.Email}, MailSent: true}, nil
}

func (f *fakeAccounts) Verify(ctx context.Context, token string) error { return f.verifyErr }

func (f *fakeAccounts) RequestVerification(ctx context.Context, email string) error {
	return f.verifyErr
}

func (f *fakeAccounts) RequestGameServerVerification(ctx context.Context, email string) error {
	return nil
}

func (f *fakeAccounts) VerifyGameServer(ctx context.Context, token string) error { return f.verifyErr }

func (f *fakeAccounts) RequestReset(ctx context.Context, email string) error { return f.resetErr }

func (f *fakeAccounts) ApplyReset(ctx context.Context, token string, h, s, sec []byte) error {
	return f.applyErr
}

type fakeSessions struct {
	loginErr  error
	signErr   error
	logoutErr error
	cert      string
	pubKey    ed25519.PublicKey
}

func (f *fakeSessions) VerificationKey() ed25519.PublicKey { return f.pubKey }

func (f *fakeSessions) IssueLoginToken(ctx context.Context, identifier string, kind tokens.IdentifierKind) (string, error) {
	if kind == tokens.IdentifierSteam {
		return "steam-token", nil
	}
	return "", nil
}

func (f *fakeSessions) RedeemLoginToken(ctx context.Context, token string, pubKey, hwID []byte) (*sessions.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &sessions.LoginResult{AccountID: 42, SessionSecret: []byte("secret")}, nil
}

func (f *fakeSessions) LoginWithPassword(ctx context.Context, email string, passwordHash, pubKey, hwID []byte) (*sessions.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &sessions.LoginResult{AccountID: 42, SessionSecret: []byte("secret"), EncryptedMainSecret: []byte("blob")}, nil
}

func (f *fakeSessions) Sign(ctx context.Context, proof sessions.Proof) (string, error) {
	return f.cert, f.signErr
}

func (f *fakeSessions) Logout(ctx context.Context, proof sessions.Proof) error { return f.logoutErr }

type fakeKeys struct {
	storeErr error
	fetchErr error
	blob     []byte
}

func (f *fakeKeys) StoreKey(ctx context.Context, proof sessions.Proof, scopePubKey, keyBlob, declaredPubKey []byte) error {
	return f.storeErr
}

func (f *fakeKeys) FetchKey(ctx context.Context, proof sessions.Proof, scopePubKey []byte) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.blob, nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestServer(a *fakeAccounts, s *fakeSessions, k *fakeKeys) http.Handler {
	return NewServer(a, s, k, testLogger()).Router()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	h := newTestServer(&fakeAccounts{}, &fakeSessions{}, &fakeKeys{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegister(t *testing.T) {
	body := map[string]any{
		"email":                 "user@example.com",
		"password_hash":         []byte("hash"),
		"salt":                  []byte("salt"),
		"encrypted_main_secret": []byte("secret"),
	}

	t.Run("created", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{}, &fakeSessions{}, &fakeKeys{})
		w := doJSON(t, h, http.MethodPost, "/register", body)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp registerResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(42), resp.AccountID)
		assert.True(t, resp.MailSent)
	})

	t.Run("duplicate email", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{registerErr: common.ErrConflict}, &fakeSessions{}, &fakeKeys{})
		w := doJSON(t, h, http.MethodPost, "/register", body)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{}, &fakeSessions{}, &fakeKeys{})
		w := doJSON(t, h, http.MethodPost, "/register", map[string]any{"email": "user@example.com"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestVerify_TokenInvalid(t *testing.T) {
	h := newTestServer(&fakeAccounts{verifyErr: common.ErrTokenInvalid}, &fakeSessions{}, &fakeKeys{})
	w := doJSON(t, h, http.MethodPost, "/verify", map[string]any{"token": "t"})

	assert.Equal(t, http.StatusGone, w.Code)
}

func TestRequestVerification(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{}, &fakeSessions{}, &fakeKeys{})
		w := doJSON(t, h, http.MethodPost, "/verify/request", map[string]any{"email": "user@example.com"})

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("already verified", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{verifyErr: common.ErrConflict}, &fakeSessions{}, &fakeKeys{})
		w := doJSON(t, h, http.MethodPost, "/verify/request", map[string]any{"email": "user@example.com"})

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestCerts(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	h := newTestServer(&fakeAccounts{}, &fakeSessions{pubKey: pub}, &fakeKeys{})

	req := httptest.NewRequest(http.MethodGet, "/certs", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp certsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "EdDSA", resp.Algorithm)
	assert.Equal(t, []byte(pub), resp.PublicKey)
}

func TestLogin(t *testing.T) {
	body := map[string]any{
		"email":         "user@example.com",
		"password_hash": []byte("hash"),
		"pub_key":       []byte("pk"),
		"hw_id":         []byte("hw"),
	}

	t.Run("ok", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{}, &fakeSessions{}, &fakeKeys{})
		w := doJSON(t, h, http.MethodPost, "/login", body)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp loginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(42), resp.AccountID)
		assert.Equal(t, []byte("secret"), resp.SessionSecret)
	})

	t.Run("bad credentials", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{}, &fakeSessions{loginErr: common.ErrUnauthenticated}, &fakeKeys{})
		w := doJSON(t, h, http.MethodPost, "/login", body)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLoginToken(t *testing.T) {
	h := newTestServer(&fakeAccounts{}, &fakeSessions{}, &fakeKeys{})

	t.Run("steam returns the token", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/login-token", map[string]any{"kind": "steam", "identifier": "7656"})

		assert.Equal(t, http.StatusOK, w.Code)

		var resp loginTokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "steam-token", resp.Token)
	})

	t.Run("email keeps the token out of band", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/login-token", map[string]any{"kind": "email", "identifier": "user@example.com"})

		assert.Equal(t, http.StatusOK, w.Code)

		var resp loginTokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp.Token)
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/login-token", map[string]any{"kind": "carrier-pigeon", "identifier": "x"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSign(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{}, &fakeSessions{cert: "signed"}, &fakeKeys{})
		w := doJSON(t, h, http.MethodPost, "/sign", map[string]any{"pub_key": []byte("pk"), "hw_id": []byte("hw")})

		assert.Equal(t, http.StatusOK, w.Code)

		var resp signResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "signed", resp.Certificate)
	})

	t.Run("unknown session", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{}, &fakeSessions{signErr: common.ErrUnauthenticated}, &fakeKeys{})
		w := doJSON(t, h, http.MethodPost, "/sign", map[string]any{"pub_key": []byte("pk"), "hw_id": []byte("hw")})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestFetchKey(t *testing.T) {
	body := map[string]any{"pub_key": []byte("pk"), "hw_id": []byte("hw")}

	t.Run("found", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{}, &fakeSessions{}, &fakeKeys{blob: []byte("blob")})
		w := doJSON(t, h, http.MethodPost, "/keys/fetch", body)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp fetchKeyResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Found)
		assert.Equal(t, []byte("blob"), resp.KeyBlob)
	})

	t.Run("no record is a regular answer", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{}, &fakeSessions{}, &fakeKeys{fetchErr: common.ErrNoRecord})
		w := doJSON(t, h, http.MethodPost, "/keys/fetch", body)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp fetchKeyResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Found)
		assert.Empty(t, resp.KeyBlob)
	})

	t.Run("bad session stays distinct from no record", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{}, &fakeSessions{}, &fakeKeys{fetchErr: common.ErrUnauthenticated})
		w := doJSON(t, h, http.MethodPost, "/keys/fetch", body)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestStoreKey(t *testing.T) {
	body := map[string]any{
		"pub_key":          []byte("pk"),
		"hw_id":            []byte("hw"),
		"key_blob":         []byte("blob"),
		"declared_pub_key": []byte("declared"),
	}

	t.Run("ok", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{}, &fakeSessions{}, &fakeKeys{})
		w := doJSON(t, h, http.MethodPost, "/keys", body)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unverified account", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{}, &fakeSessions{}, &fakeKeys{storeErr: common.ErrForbidden})
		w := doJSON(t, h, http.MethodPost, "/keys", body)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unresolved group scope", func(t *testing.T) {
		h := newTestServer(&fakeAccounts{}, &fakeSessions{}, &fakeKeys{storeErr: common.ErrScopeNotFound})
		w := doJSON(t, h, http.MethodPost, "/keys", body)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestInfraErrorIsRetryable(t *testing.T) {
	h := newTestServer(&fakeAccounts{verifyErr: common.ErrUnavailable}, &fakeSessions{}, &fakeKeys{})
	w := doJSON(t, h, http.MethodPost, "/verify", map[string]any{"token": "t"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequestIDHeader(t *testing.T) {
	h := newTestServer(&fakeAccounts{}, &fakeSessions{}, &fakeKeys{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "fixed-id")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "fixed-id", w.Header().Get(requestIDHeader))
}
