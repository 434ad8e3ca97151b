package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/crate/internal/repository/memory"
	"github.com/splax/crate/internal/service/auth"
	"github.com/splax/crate/internal/service/item"
	"github.com/splax/crate/internal/validate"
	"github.com/splax/crate/pkg/crypto"
	"github.com/splax/crate/pkg/token"
)

const testSignKey = "test-sign-key"

type unlimited struct{}

func (unlimited) Allow(string, int, time.Duration) rateDecision { return rateDecision{allowed: true} }
func (unlimited) Close() {}

type testAPI struct {
	router *Router
}

func newTestAPI(t *testing.T, opts Options) *testAPI {
	t.Helper()
	store := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	authSvc := auth.New(store, crypto.NewHasher(4), token.New(testSignKey, time.Hour), log)
	itemSvc := item.New(store, log)
	if opts.Limiter == nil {
		opts.Limiter = unlimited{}
	}
	if opts.Health == nil {
		opts.Health = store.Ping
	}
	r := NewRouter(log, authSvc, itemSvc, opts)
	t.Cleanup(r.Close)
	return &testAPI{router: r}
}

func (a *testAPI) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set(AccessTokenHeader, tok)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

type session struct {
	AccessToken string         `json:"accessToken"`
	User        map[string]any `json:"user"`
}

func (a *testAPI) signup(t *testing.T, email, role string) session {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/user/signup", "", map[string]any{
		"email": email, "password": "qwerty", "firstName": "John", "lastName": "Doe", "role": role,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var s session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	return s
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorMessages(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	body := decode[errorBody](t, rec)
	msgs := make([]string, 0, len(body.Errors))
	for _, e := range body.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

func TestSignupReturnsTokenAndPublicUser(t *testing.T) {
	api := newTestAPI(t, Options{})
	s := api.signup(t, "john@example.com", "artist")

	assert.NotEmpty(t, s.AccessToken)
	assert.Equal(t, map[string]any{
		"email": "john@example.com", "firstName": "John", "lastName": "Doe", "role": "artist",
	}, s.User)
}

func TestSignupTwiceIsRejected(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.signup(t, "john@example.com", "artist")

	rec := api.do(t, http.MethodPost, "/v1/user/signup", "", map[string]any{
		"email": "john@example.com", "password": "other", "firstName": "J", "lastName": "D", "role": "listener",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"Email is already registered"}, errorMessages(t, rec))
}

func TestSignupValidation(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(t, http.MethodPost, "/v1/user/signup", "", map[string]any{
		"email": "notvalid", "password": "qwerty", "firstName": "John", "lastName": "Doe", "role": "artist",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "must be email format", body.Errors[0].Message)
	assert.Equal(t, "email", body.Errors[0].Field)

	rec = api.do(t, http.MethodPost, "/v1/user/signup", "", map[string]any{
		"email": "valid@example.com", "password": "qwerty",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, errorMessages(t, rec), 3)
}

func TestMalformedJSONBody(t *testing.T) {
	api := newTestAPI(t, Options{})
	for _, body := range []string{"{", "", "null", "[1,2]", `{"email":"a@example.com"} junk`, `{"email":"a@example.com"}{}`} {
		rec := api.do(t, http.MethodPost, "/v1/user/login", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, []string{"Invalid JSON body"}, errorMessages(t, rec), body)
	}
}

func TestLogin(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.signup(t, "john@example.com", "listener")

	rec := api.do(t, http.MethodPost, "/v1/user/login", "", map[string]any{"email": "john@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"Password is not matching email address"}, errorMessages(t, rec))

	rec = api.do(t, http.MethodPost, "/v1/user/login", "", map[string]any{"email": "nobody@example.com", "password": "qwerty"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []string{"User with this email is not found"}, errorMessages(t, rec))

	rec = api.do(t, http.MethodPost, "/v1/user/login", "", map[string]any{"email": "john@example.com", "password": "qwerty"})
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[session](t, rec)
	assert.NotEmpty(t, s.AccessToken)
	assert.Equal(t, "john@example.com", s.User["email"])

	me := api.do(t, http.MethodGet, "/v1/user/me", s.AccessToken, nil)
	assert.Equal(t, http.StatusOK, me.Code)
}

func TestMe(t *testing.T) {
	api := newTestAPI(t, Options{})
	s := api.signup(t, "john@example.com", "artist")

	rec := api.do(t, http.MethodGet, "/v1/user/me", s.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{
		"email": "john@example.com", "firstName": "John", "lastName": "Doe", "role": "artist",
	}, decode[map[string]any](t, rec))
}

func TestUnauthorizedTokens(t *testing.T) {
	api := newTestAPI(t, Options{})
	stale := token.New(testSignKey, time.Hour, token.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	})).Issue("john@example.com")
	foreign := token.New("another-key", time.Hour).Issue("john@example.com")
	api.signup(t, "john@example.com", "artist")

	for name, tok := range map[string]string{"missing": "", "garbage": "12345", "expired": stale, "foreign key": foreign} {
		t.Run(name, func(t *testing.T) {
			rec := api.do(t, http.MethodGet, "/v1/user/me", tok, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, []string{"User is not authorized"}, errorMessages(t, rec))
		})
	}
}

func TestTokenForUnknownUser(t *testing.T) {
	api := newTestAPI(t, Options{})
	ghost := token.New(testSignKey, time.Hour).Issue("ghost@example.com")

	rec := api.do(t, http.MethodGet, "/v1/user/me", ghost, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []string{"User with this email is not found"}, errorMessages(t, rec))

	rec = api.do(t, http.MethodGet, "/v1/user/items", ghost, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListenerCannotUseArtistRoutes(t *testing.T) {
	api := newTestAPI(t, Options{})
	s := api.signup(t, "listener@example.com", "listener")

	rec := api.do(t, http.MethodGet, "/v1/user/items", s.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, []string{"Only artist have permission to execute this operation"}, errorMessages(t, rec))

	rec = api.do(t, http.MethodPost, "/v1/items", s.AccessToken, map[string]any{"title": "T"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestItemLifecycle(t *testing.T) {
	api := newTestAPI(t, Options{})
	artist := api.signup(t, "artist@example.com", "artist")

	rec := api.do(t, http.MethodPost, "/v1/items", artist.AccessToken, map[string]any{"title": "T", "isPublic": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.Equal(t, "artist@example.com", created["owner"])
	assert.Equal(t, "T", created["title"])
	assert.Equal(t, true, created["isPublic"])
	id, _ := created["_id"].(string)
	require.NotEmpty(t, id)

	rec = api.do(t, http.MethodPut, "/v1/items/"+id, artist.AccessToken, map[string]any{"title": "Updated"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Updated", decode[map[string]any](t, rec)["title"])

	rec = api.do(t, http.MethodGet, "/v1/items/"+id, artist.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "Updated", got["title"])
	assert.Equal(t, "artist@example.com", got["owner"])
	assert.Equal(t, true, got["isPublic"])

	rec = api.do(t, http.MethodGet, "/v1/user/items", artist.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]map[string]any](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, id, listed[0]["_id"])

	rec = api.do(t, http.MethodDelete, "/v1/items/"+id, artist.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/v1/items/"+id, artist.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []string{"Item not found"}, errorMessages(t, rec))

	rec = api.do(t, http.MethodGet, "/v1/user/items", artist.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestExplicitPrivateItemStaysPrivate(t *testing.T) {
	api := newTestAPI(t, Options{})
	artist := api.signup(t, "artist@example.com", "artist")

	rec := api.do(t, http.MethodPost, "/v1/items", artist.AccessToken, map[string]any{"title": "T", "isPublic": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["isPublic"])

	rec = api.do(t, http.MethodPost, "/v1/items", artist.AccessToken, map[string]any{"title": "T"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["isPublic"])
}

func TestOnlyOwnerMutatesItem(t *testing.T) {
	api := newTestAPI(t, Options{})
	owner := api.signup(t, "owner@example.com", "artist")
	other := api.signup(t, "other@example.com", "artist")

	rec := api.do(t, http.MethodPost, "/v1/items", owner.AccessToken, map[string]any{"title": "Mine"})
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode[map[string]any](t, rec)["_id"].(string)

	rec = api.do(t, http.MethodPut, "/v1/items/"+id, other.AccessToken, map[string]any{"title": "Stolen"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, []string{"Only owner have permission to execute this operation"}, errorMessages(t, rec))

	rec = api.do(t, http.MethodDelete, "/v1/items/"+id, other.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/v1/items/"+id, other.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mine", decode[map[string]any](t, rec)["title"])

	rec = api.do(t, http.MethodGet, "/v1/user/items", other.AccessToken, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestItemValidation(t *testing.T) {
	api := newTestAPI(t, Options{})
	artist := api.signup(t, "artist@example.com", "artist")

	rec := api.do(t, http.MethodPost, "/v1/items", artist.AccessToken, map[string]any{"isPublic": "yes"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{"is the wrong type", "is required"}, errorMessages(t, rec))
}

func TestMissingItemBeforeOwnership(t *testing.T) {
	api := newTestAPI(t, Options{})
	artist := api.signup(t, "artist@example.com", "artist")

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := api.do(t, method, "/v1/items/does-not-exist", artist.AccessToken, map[string]any{"title": "x"})
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
	}
}

func TestUpdateOfItemRemovedMidRequest(t *testing.T) {
	api := newTestAPI(t, Options{})
	artist := api.signup(t, "artist@example.com", "artist")
	rec := api.do(t, http.MethodPost, "/v1/items", artist.AccessToken, map[string]any{"title": "T"})
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode[map[string]any](t, rec)["_id"].(string)

	r := api.router
	handler := r.pipeline(
		r.authenticate,
		r.lookupItem,
		requireOwner,
		validBody(validate.ItemSchema),
		func(context.Context, *State) Outcome {
			gone := api.do(t, http.MethodDelete, "/v1/items/"+id, artist.AccessToken, nil)
			require.Equal(t, http.StatusNoContent, gone.Code)
			return Next()
		},
		r.updateItem,
	)
	req := httptest.NewRequest(http.MethodPut, "/v1/items/"+id, strings.NewReader(`{"title":"T2"}`))
	req.SetPathValue("id", id)
	req.Header.Set(AccessTokenHeader, artist.AccessToken)
	rec = httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"Item not found"}, errorMessages(t, rec))
}

func TestUnknownRouteAndMethod(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(t, http.MethodGet, "/v1/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []string{"Not Found"}, errorMessages(t, rec))

	rec = api.do(t, http.MethodGet, "/v1/user/signup", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Allow"))

	rec = api.do(t, http.MethodPatch, "/v1/items/abc", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "DELETE, GET, PUT", rec.Header().Get("Allow"))
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, Options{})
	rec := api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])

	down := newTestAPI(t, Options{Health: func(context.Context) error { return errors.New("connection refused") }})
	rec = down.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[map[string]any](t, rec)["status"])
}

func TestMetricsExposeRequestCounters(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.do(t, http.MethodGet, "/v1/user/me", "", nil)

	rec := api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `crate_api_http_requests_total{method="GET",route="/v1/user/me",status="401"} 1`)
}

func TestSignupIsRateLimitedPerIP(t *testing.T) {
	api := newTestAPI(t, Options{Limiter: NewMemoryRateLimiter()})

	var last *httptest.ResponseRecorder
	for i := 0; i <= rateLimitSignup; i++ {
		last = api.do(t, http.MethodPost, "/v1/user/signup", "", map[string]any{})
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))

	// login keeps its own budget
	rec := api.do(t, http.MethodPost, "/v1/user/login", "", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserRoutesAreRateLimitedPerUser(t *testing.T) {
	api := newTestAPI(t, Options{Limiter: NewMemoryRateLimiter()})
	first := api.signup(t, "first@example.com", "listener")
	second := api.signup(t, "second@example.com", "listener")

	var last *httptest.ResponseRecorder
	for i := 0; i <= rateLimitUserRead; i++ {
		last = api.do(t, http.MethodGet, "/v1/user/me", first.AccessToken, nil)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, []string{"Too Many Requests"}, errorMessages(t, last))
	assert.Equal(t, "120", last.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, last.Header().Get("X-RateLimit-Reset"))

	// same address, different user: separate budget
	rec := api.do(t, http.MethodGet, "/v1/user/me", second.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "119", rec.Header().Get("X-RateLimit-Remaining"))

	// authentication runs first, so a bad token is not charged
	rec = api.do(t, http.MethodGet, "/v1/user/me", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))

	rec = api.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Contains(t, rec.Body.String(), `crate_api_rate_limit_hits_total{key="user",route="me"} 1`)
}

func TestDocsAreServedWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>crate</h1>"), 0o600))
	api := newTestAPI(t, Options{DocsDir: dir})

	rec := api.do(t, http.MethodGet, "/docs/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "crate")

	bare := newTestAPI(t, Options{})
	rec = bare.do(t, http.MethodGet, "/docs/", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
