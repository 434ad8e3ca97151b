package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis "github.com/redis/go-redis/v9"

	"github.com/splax/crate/internal/apperror"
	"github.com/splax/crate/internal/domain"
)

func recordStep(trace *[]string, name string, out Outcome) Step {
	return func(context.Context, *State) Outcome {
		*trace = append(*trace, name)
		return out
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	var trace []string
	boom := apperror.Forbidden("nope")
	out := Run(context.Background(), &State{},
		recordStep(&trace, "a", Next()),
		recordStep(&trace, "b", Fail(boom)),
		recordStep(&trace, "c", Done(http.StatusOK, "unreachable")),
	)
	assert.Equal(t, []string{"a", "b"}, trace)
	assert.Equal(t, outcomeFail, out.kind)
	assert.Same(t, boom, out.err)
}

func TestRunStopsAtFirstResponse(t *testing.T) {
	var trace []string
	out := Run(context.Background(), &State{},
		recordStep(&trace, "a", Done(http.StatusCreated, "ok")),
		recordStep(&trace, "b", Fail(errors.New("unreachable"))),
	)
	assert.Equal(t, []string{"a"}, trace)
	assert.Equal(t, outcomeDone, out.kind)
	assert.Equal(t, http.StatusCreated, out.status)
}

func TestRunWithoutResponseFails(t *testing.T) {
	out := Run(context.Background(), &State{}, func(context.Context, *State) Outcome { return Next() })
	assert.Equal(t, outcomeFail, out.kind)
	assert.ErrorIs(t, out.err, errNoResponse)
}

func TestStepsShareState(t *testing.T) {
	st := &State{}
	out := Run(context.Background(), st,
		func(_ context.Context, st *State) Outcome {
			st.Email = "a@example.com"
			st.User = &domain.User{Email: "a@example.com", Role: domain.RoleListener}
			return Next()
		},
		requireRole(domain.RoleArtist),
	)
	require.Equal(t, outcomeFail, out.kind)
	appErr, ok := apperror.As(out.err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, appErr.Status)
	assert.Equal(t, "Only artist have permission to execute this operation", appErr.Messages[0].Message)
}

func TestRequireOwner(t *testing.T) {
	st := &State{Email: "a@example.com", Item: &domain.Item{Owner: "a@example.com"}}
	assert.Equal(t, outcomeNext, requireOwner(context.Background(), st).kind)

	st.Email = "b@example.com"
	assert.Equal(t, outcomeFail, requireOwner(context.Background(), st).kind)
}

func TestUnknownErrorsBecomeInternal(t *testing.T) {
	api := newTestAPI(t, Options{})
	handler := api.router.pipeline(func(context.Context, *State) Outcome {
		return Fail(errors.New("database exploded"))
	})
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"errors":[{"message":"Internal Server Error"}]}`, rec.Body.String())
}

func TestMemoryRateLimiterWindow(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	for i := 1; i <= 3; i++ {
		d := rl.Allow("k", 3, time.Minute)
		require.True(t, d.allowed)
		assert.Equal(t, i, d.count)
	}
	assert.False(t, rl.Allow("k", 3, time.Minute).allowed)
	assert.True(t, rl.Allow("other", 3, time.Minute).allowed)
	assert.True(t, rl.Allow("k", 0, time.Minute).allowed, "non-positive limits disable limiting")
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	rl := newRedisRateLimiter(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer rl.Close()

	assert.True(t, rl.Allow("k", 1, time.Minute).allowed)
	assert.True(t, rl.Allow("k", 1, time.Minute).allowed)
}

func TestNewRedisRateLimiterRequiresServer(t *testing.T) {
	_, err := NewRedisRateLimiter("127.0.0.1:1", "", 0, nil)
	assert.Error(t, err)
}

func TestWindowCounterResetsAndPrunes(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	wc := newWindowCounter(func() time.Time { return now }, time.Hour)
	defer wc.Close()

	require.True(t, wc.Allow("k", 1, time.Minute).allowed)
	denied := wc.Allow("k", 1, time.Minute)
	assert.False(t, denied.allowed)
	assert.Equal(t, now.Add(time.Minute), denied.windowEnd)

	now = now.Add(time.Minute)
	assert.True(t, wc.Allow("k", 1, time.Minute).allowed, "a new window starts at the boundary")

	wc.prune(now.Add(2 * time.Minute))
	wc.mu.Lock()
	left := len(wc.hits)
	wc.mu.Unlock()
	assert.Zero(t, left)
}

func TestLimitUserStep(t *testing.T) {
	api := newTestAPI(t, Options{Limiter: NewMemoryRateLimiter()})
	step := api.router.limitUser(perMinute("items_get", 1))

	st := &State{Email: "a@example.com", header: http.Header{}}
	require.Equal(t, outcomeNext, step(context.Background(), st).kind)
	assert.Equal(t, "0", st.header.Get("X-RateLimit-Remaining"))

	out := step(context.Background(), st)
	require.Equal(t, outcomeFail, out.kind)
	appErr, ok := apperror.As(out.err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, appErr.Status)

	other := &State{Email: "b@example.com"}
	assert.Equal(t, outcomeNext, step(context.Background(), other).kind, "budgets are per user")
}

func TestRateMetricKey(t *testing.T) {
	assert.Equal(t, "user", rateMetricKey("user:a@example.com"))
	assert.Equal(t, "ip", rateMetricKey("ip:10.0.0.1"))
	assert.Equal(t, "unknown", rateMetricKey("plain"))
}
