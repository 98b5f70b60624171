package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/session"
)

func newTestHandler(t *testing.T) (*Handler, *fixture) {
	t.Helper()
	f := newFixture(t)
	return NewHandler(f.svc, zap.NewNop().Sugar()), f
}

func do(h http.HandlerFunc, method, target, body, caller string, pathValues ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	if caller != "" {
		req = req.WithContext(session.WithCaller(req.Context(), caller))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) HttpResponse {
	t.Helper()
	var out HttpResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandler_Signup(t *testing.T) {
	h, f := newTestHandler(t)

	rec := do(h.Signup, http.MethodPost, "/feed-api/user/signup",
		`{"username":"Alice","emailAddress":"a@x.com","password":"pw1","firstName":"Al"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var acc entity.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acc))
	assert.Equal(t, "alice", acc.Username)
	assert.False(t, acc.EmailVerified)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Len(t, f.notifier.verification, 1)

	rec = do(h.Signup, http.MethodPost, "/feed-api/user/signup",
		`{"username":"ALICE","emailAddress":"z@x.com","password":"pw1"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, http.StatusConflict, resp.HttpStatusCode)
	assert.Equal(t, "CONFLICT", resp.HttpStatus)
	assert.Equal(t, "username already exists, alice", resp.Message)
}

func TestHandler_SignupBadPayload(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := do(h.Signup, http.MethodPost, "/feed-api/user/signup", `{`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid payload", decodeResponse(t, rec).Message)
}

func TestHandler_Login(t *testing.T) {
	h, f := newTestHandler(t)
	f.signup(t, "alice", "a@x.com", "pw1")

	rec := do(h.Login, http.MethodPost, "/feed-api/user/login", `{"username":"alice","password":"pw1"}`, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Authorization"))

	rec = do(h.Login, http.MethodPost, "/feed-api/user/login", `{"username":"alice","password":"bad"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	require.NoError(t, f.svc.VerifyEmail(context.Background(), "alice"))
	rec = do(h.Login, http.MethodPost, "/feed-api/user/login", `{"username":"alice","password":"pw1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bearer signed-token", rec.Header().Get("Authorization"))
}

func TestHandler_CallerRequired(t *testing.T) {
	h, _ := newTestHandler(t)
	handlers := map[string]http.HandlerFunc{
		"verify":  h.VerifyEmail,
		"reset":   h.ResetPassword,
		"me":      h.Me,
		"update":  h.UpdateAccount,
		"profile": h.UpdateProfile,
		"list":    h.List,
		"get":     h.Get,
	}
	for name, fn := range handlers {
		t.Run(name, func(t *testing.T) {
			rec := do(fn, http.MethodPost, "/", `{}`, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestHandler_VerifyAndMe(t *testing.T) {
	h, f := newTestHandler(t)
	f.signup(t, "alice", "a@x.com", "pw1")

	rec := do(h.VerifyEmail, http.MethodGet, "/feed-api/user/verify/email", "", "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h.Me, http.MethodGet, "/feed-api/user/me", "", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	var acc entity.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acc))
	assert.True(t, acc.EmailVerified)

	rec = do(h.Me, http.MethodGet, "/feed-api/user/me", "", "ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_PasswordReset(t *testing.T) {
	h, f := newTestHandler(t)
	f.signup(t, "alice", "a@x.com", "pw1")

	rec := do(h.RequestPasswordReset, http.MethodGet, "/feed-api/user/reset/a@x.com", "", "", "email", "a@x.com")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(h.RequestPasswordReset, http.MethodGet, "/feed-api/user/reset/no@x.com", "", "", "email", "no@x.com")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a@x.com"}, f.notifier.reset)

	rec = do(h.ResetPassword, http.MethodPost, "/feed-api/user/reset", `{"password":"  "}`, "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h.ResetPassword, http.MethodPost, "/feed-api/user/reset", `{"password":"NewPass1"}`, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.hasher.Verify("NewPass1", f.repo.stored(t, "alice").PasswordHash))
}

func TestHandler_Updates(t *testing.T) {
	h, f := newTestHandler(t)
	f.signup(t, "alice", "a@x.com", "pw1")
	f.signup(t, "bob", "b@x.com", "pw1")

	rec := do(h.UpdateAccount, http.MethodPost, "/feed-api/user/update", `{"phone":"555-1234","lastName":""}`, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "555-1234", f.repo.stored(t, "alice").Phone)

	rec = do(h.UpdateAccount, http.MethodPost, "/feed-api/user/update", `{"emailAddress":"b@x.com"}`, "alice")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(h.UpdateProfile, http.MethodPost, "/feed-api/user/update/profile", `{"city":"Riga"}`, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"city":"Riga"`)
}

func TestHandler_ListAndGet(t *testing.T) {
	h, f := newTestHandler(t)
	f.signup(t, "alice", "a@x.com", "pw1")

	rec := do(h.List, http.MethodGet, "/feed-api/user", "", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []entity.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 1)

	rec = do(h.Get, http.MethodGet, "/feed-api/user/ALICE", "", "alice", "username", "ALICE")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(h.Get, http.MethodGet, "/feed-api/user/bob", "", "alice", "username", "bob")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_InternalErrorsAreNotDescribed(t *testing.T) {
	h, f := newTestHandler(t)
	f.repo.findErr = errors.New("pq: password authentication failed for user feed")

	rec := do(h.Me, http.MethodGet, "/feed-api/user/me", "", "alice")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "internal error", resp.Message)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		ErrUsernameExists:     http.StatusConflict,
		ErrEmailExists:        http.StatusConflict,
		ErrInvalidCredentials: http.StatusUnauthorized,
		ErrEmailNotVerified:   http.StatusForbidden,
		ErrAccountNotFound:    http.StatusNotFound,
		ErrInvalidInput:       http.StatusBadRequest,
		errors.New("other"):   http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(fmt.Errorf("wrap: %w", err)), err.Error())
	}
}
