package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dealership-platform/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookServer(t *testing.T, secret string) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t, nil, RouterConfig{})
	r := gin.New()
	r.POST("/webhook/vapi", WebhookHandler{Router: f.router, Secret: secret, Now: func() time.Time { return callTime }}.Handle)
	r.GET("/webhook/health", Health(f.sessions, func() time.Time { return callTime }))
	return r, f
}

func post(r http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/vapi", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_EnvelopeValidation(t *testing.T) {
	r, f := newWebhookServer(t, "")

	cases := []struct {
		name string
		body string
		want int
	}{
		{"empty body is a keep-alive", "", http.StatusOK},
		{"whitespace body", "  \n", http.StatusOK},
		{"unparseable json", "{not json", http.StatusBadRequest},
		{"missing message", `{"type":"call-start"}`, http.StatusBadRequest},
		{"empty message", `{"message":{}}`, http.StatusBadRequest},
		{"message not an object", `{"message":"call-start"}`, http.StatusBadRequest},
		{"unknown type", `{"message":{"type":"hang"}}`, http.StatusOK},
		{"call start without id", `{"message":{"type":"call-start"}}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := post(r, tc.body, nil)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
	assert.Empty(t, f.enq.Tasks(), "no envelope error may reach the pipeline")
}

func TestWebhook_LongTranscriptIsLogged(t *testing.T) {
	r, f := newWebhookServer(t, "")

	transcript := strings.Repeat("I would like to book a test drive of the Ghost. ", 40_000)
	payload, err := json.Marshal(map[string]any{"message": map[string]any{
		"type":       "end-of-call-report",
		"call":       map[string]any{"id": "long-1", "customer": map[string]any{"number": "+14155550123"}},
		"transcript": transcript,
	}})
	require.NoError(t, err)
	require.Greater(t, len(payload), 1<<20)

	w := post(r, string(payload), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	c, err := f.repo.GetCustomerByPhone(context.Background(), "+14155550123")
	require.NoError(t, err)
	interactions, err := f.repo.ListInteractions(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	assert.Equal(t, strings.TrimSpace(transcript), interactions[0].Content)
}

func TestWebhook_OversizedBodyIsRejectedAsTooLarge(t *testing.T) {
	r, f := newWebhookServer(t, "")

	body := `{"message":{"type":"call-end","call":{"id":"big-1"},"transcript":"` + strings.Repeat("a", maxWebhookBody) + `"}}`
	w := post(r, body, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, "over-limit bodies must not be reported as invalid json")
	assert.Empty(t, f.enq.Tasks())
}

func TestWebhook_AssistantTurnReturnsChoices(t *testing.T) {
	r, _ := newWebhookServer(t, "")

	w := post(r, `{"message":{"type":"assistant-request","call":{"id":"a1"},"messages":[{"role":"user","message":"Can I compare the Ghost versus the Phantom?"}]}}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Choices, 1)
	assert.Equal(t, "assistant", body.Choices[0].Message.Role)
	assert.Equal(t, intentReplies["comparison"], body.Choices[0].Message.Content)
}

func TestWebhook_Secret(t *testing.T) {
	r, _ := newWebhookServer(t, "s3cret")

	w := post(r, `{"message":{"type":"call-start","call":{"id":"x"}}}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, `{"message":{"type":"call-start","call":{"id":"x"}}}`, map[string]string{"X-Vapi-Secret": "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth_ReportsSessionStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ok", Health(session.NewMemoryStore(session.Options{}), nil))
	r.GET("/down", Health(downStore{}, nil))

	for path, want := range map[string]string{"/ok": "connected", "/down": "error - session store down"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Status       string            `json:"status"`
			Dependencies map[string]string `json:"dependencies"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, want, body.Dependencies["session_store"])
	}
}

func TestIPRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewIPRateLimiter(0.001, 2).Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestIPRateLimiter_PrunesIdleBuckets(t *testing.T) {
	now := callTime
	l := NewIPRateLimiter(1, 1).WithClock(func() time.Time { return now })

	l.allow("10.0.0.1")
	now = now.Add(DefaultLimiterIdle / 2)
	l.allow("10.0.0.2")
	assert.Equal(t, 2, l.prune())

	now = now.Add(DefaultLimiterIdle/2 + time.Second)
	assert.Equal(t, 1, l.prune(), "only the recently seen ip survives")

	now = now.Add(DefaultLimiterIdle)
	assert.Equal(t, 0, l.prune())
}

func TestIPRateLimiter_RunStopsWithContext(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
