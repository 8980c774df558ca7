package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollboard/internal/audit"
	"pollboard/internal/identity"
	pollhandler "pollboard/internal/poll/handler"
	"pollboard/internal/poll/metrics"
	"pollboard/internal/poll/models"
	pollservice "pollboard/internal/poll/service"
	"pollboard/internal/poll/store"
	"pollboard/pkg/domain"
	"pollboard/pkg/testutil"
	"pollboard/pkg/token"
)

// newTestRouter assembles the full stack: router, middleware chain, real
// service, and in-memory store. Callers authenticate with minted JWTs.
func newTestRouter(t *testing.T) (http.Handler, *token.Service) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := token.NewService("router-test-key", "pollboard-test")
	svc := pollservice.New(
		store.NewInMemory(),
		identity.NewStaticResolver(nil),
		audit.NewPublisher(audit.NewInMemorySink(), logger),
		metrics.NewWith(prometheus.NewRegistry()),
		logger,
	)
	handler := pollhandler.New(svc, logger)
	return NewRouter(handler, tokens, logger), tokens
}

func bearer(t *testing.T, tokens *token.Service, ident domain.Identity) string {
	t.Helper()
	tok, err := tokens.GenerateAccessToken(ident, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestHealthzIsOpen(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestMetricsIsOpen(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/polls"))
	testutil.AssertFailure(t, rr, http.StatusUnauthorized, "missing or invalid Authorization header")
}

func TestAPIRejectsExpiredToken(t *testing.T) {
	router, tokens := newTestRouter(t)

	tok, err := tokens.GenerateAccessToken(testutil.NewUserIdentity(), -time.Minute)
	require.NoError(t, err)

	req := testutil.NewRequest(t, http.MethodGet, "/api/polls")
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := testutil.DoRequest(router, req)

	testutil.AssertFailure(t, rr, http.StatusUnauthorized, "invalid or expired token")
}

func TestRequestIDHeaderIsEchoed(t *testing.T) {
	router, tokens := newTestRouter(t)

	req := testutil.NewRequest(t, http.MethodGet, "/api/polls")
	req.Header.Set("Authorization", bearer(t, tokens, testutil.NewUserIdentity()))
	req.Header.Set("X-Request-ID", "test-correlation-id")
	rr := testutil.DoRequest(router, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "test-correlation-id", rr.Header().Get("X-Request-ID"))
}

func TestFullPollLifecycleOverHTTP(t *testing.T) {
	router, tokens := newTestRouter(t)
	adminAuth := bearer(t, tokens, testutil.NewAdminIdentity())
	voterAuth := bearer(t, tokens, testutil.NewUserIdentity())

	// Admin creates a poll.
	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/polls", map[string]any{
		"title":   "Team lunch",
		"options": []string{"Pizza", "Sushi"},
	})
	req.Header.Set("Authorization", adminAuth)
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	_, created := testutil.DecodeEnvelope[models.PollView](t, rr)

	// A user cannot create polls.
	req = testutil.NewJSONRequest(t, http.MethodPost, "/api/polls", map[string]any{
		"title":   "Shadow poll",
		"options": []string{"a", "b"},
	})
	req.Header.Set("Authorization", voterAuth)
	rr = testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	// The user votes.
	votePath := "/api/polls/" + created.ID.String() + "/vote/" + created.Options[0].ID.String()
	req = testutil.NewRequest(t, http.MethodPost, votePath)
	req.Header.Set("Authorization", voterAuth)
	rr = testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	_, voted := testutil.DecodeEnvelope[models.PollView](t, rr)
	assert.Equal(t, 1, voted.TotalVotes)

	// Admin locks the poll; further votes are refused.
	req = testutil.NewRequest(t, http.MethodPatch, "/api/polls/"+created.ID.String()+"/lock")
	req.Header.Set("Authorization", adminAuth)
	rr = testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	otherVoter := bearer(t, tokens, testutil.NewUserIdentity())
	req = testutil.NewRequest(t, http.MethodPost, votePath)
	req.Header.Set("Authorization", otherVoter)
	rr = testutil.DoRequest(router, req)
	testutil.AssertFailure(t, rr, http.StatusForbidden, "poll is locked")
}
