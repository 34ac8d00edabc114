package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
	"slidecoffee/internal/usecase/deck"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGenerator streams a fixed two-slide run.
type fakeGenerator struct {
	budget    int
	budgetErr error
	runErr    error
	gotPlan   domain.Plan
	gotJob    deck.Job
}

func (f *fakeGenerator) Budget(_ context.Context, _ string, plan domain.Plan) (int, error) {
	f.gotPlan = plan
	return f.budget, f.budgetErr
}

func (f *fakeGenerator) Run(_ context.Context, job deck.Job, out deck.Emitter) error {
	f.gotJob = job
	events := []domain.StreamEvent{
		domain.StartEvent{Message: "Starting presentation generation..."},
		domain.OutlineStartEvent{},
		domain.OutlineCompleteEvent{Outline: domain.Outline{Title: "T"}},
		domain.SlideStartEvent{},
		domain.SlideGeneratedEvent{SlideNumber: 1, TotalSlides: 2, Progress: 50},
		domain.SlideGeneratedEvent{SlideNumber: 2, TotalSlides: 2, Progress: 100},
	}
	for _, ev := range events {
		if err := out.Emit(ev); err != nil {
			return err
		}
	}
	if f.runErr != nil {
		out.Emit(domain.ErrorEvent{Message: f.runErr.Error()})
		return f.runErr
	}
	return out.Emit(domain.CompleteEvent{Presentation: &domain.PresentationRef{ID: "p1", Title: "T", SlideCount: 2}})
}

type fakeStore struct {
	presentations map[string]*domain.Presentation
}

func (s *fakeStore) Save(context.Context, *domain.Presentation) (string, error) { return "", nil }

func (s *fakeStore) Get(_ context.Context, ws, id string) (*domain.Presentation, error) {
	if p, ok := s.presentations[id]; ok && p.WorkspaceID == ws {
		return p, nil
	}
	return nil, domain.NewSubSystemError("store", "Get", domain.ErrNotFound, id)
}

func (s *fakeStore) UsageSince(context.Context, string, time.Time) (domain.MonthlyUsage, error) {
	return domain.MonthlyUsage{}, nil
}

func (s *fakeStore) Close() error { return nil }

func testServerConfig() config.ServerConfig {
	cfg := config.Defaults().Server
	cfg.RateLimit.Enabled = false
	cfg.GeneralRateLimit.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, cfg config.ServerConfig, gen Generator) (*httptest.Server, *Metrics) {
	t.Helper()
	metrics := &Metrics{}
	store := &fakeStore{presentations: map[string]*domain.Presentation{
		"p1": {ID: "p1", WorkspaceID: "ws-1", Title: "Saved", Status: domain.PresentationDraft},
	}}
	s := NewServer(cfg, HandlerDeps{
		Generator: gen,
		Store:     store,
		Plans:     domain.DefaultPlans(),
		Metrics:   metrics,
	}, newTestAuth(), newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	ts := httptest.NewServer(s.Handler(ctx))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return ts, metrics
}

func postGenerate(t *testing.T, ts *httptest.Server, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/generate-slides-stream", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// readEvents returns the event names and data lines of an SSE body.
func readEvents(t *testing.T, r io.Reader) (names []string, data []string) {
	t.Helper()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			names = append(names, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	require.NoError(t, sc.Err())
	return names, data
}

func TestGenerateStreamsEvents(t *testing.T) {
	gen := &fakeGenerator{budget: 12}
	ts, metrics := newTestServer(t, testServerConfig(), gen)

	resp := postGenerate(t, ts, "secret-123", `{"topic":"Go","brandId":"b1","projectId":"pr1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	names, data := readEvents(t, resp.Body)
	assert.Equal(t, []string{
		"start", "outline_start", "outline_complete", "slide_start",
		"slide_generated", "slide_generated", "complete",
	}, names)
	assert.JSONEq(t, `{"type":"start","message":"Starting presentation generation..."}`, data[0])

	assert.Equal(t, "americano", gen.gotPlan.ID)
	assert.Equal(t, deck.Job{
		Request:     domain.GenerationRequest{Topic: "Go", BrandID: "b1", ProjectID: "pr1"},
		UserID:      "user-1",
		WorkspaceID: "ws-1",
		MaxSlides:   12,
	}, gen.gotJob)

	assert.Equal(t, int64(1), metrics.GenerationsStarted.Load())
	assert.Equal(t, int64(1), metrics.GenerationsCompleted.Load())
	assert.Equal(t, int64(2), metrics.SlidesGenerated.Load())
}

func TestGenerateRunFailure(t *testing.T) {
	gen := &fakeGenerator{budget: 5, runErr: errors.New("failed to generate slide 3: boom")}
	ts, metrics := newTestServer(t, testServerConfig(), gen)

	resp := postGenerate(t, ts, "secret-123", `{"topic":"Go"}`)
	names, data := readEvents(t, resp.Body)
	require.NotEmpty(t, names)
	assert.Equal(t, "error", names[len(names)-1])
	assert.JSONEq(t, `{"type":"error","message":"failed to generate slide 3: boom"}`, data[len(data)-1])
	assert.Equal(t, int64(1), metrics.GenerationsFailed.Load())
}

func TestGenerateRejectsBadRequests(t *testing.T) {
	ts, _ := newTestServer(t, testServerConfig(), &fakeGenerator{budget: 5})
	bigPlan := fmt.Sprintf(`{"presentationPlan":{"title":"x","notes":%q}}`, strings.Repeat("a", 10001))

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", `{}`, "Topic or presentation plan is required"},
		{"blank topic", `{"topic":"   "}`, "Topic or presentation plan is required"},
		{"null plan", `{"presentationPlan":null}`, "Topic or presentation plan is required"},
		{"long topic", fmt.Sprintf(`{"topic":%q}`, strings.Repeat("t", 256)), "topic must not exceed 255 characters"},
		{"big plan", bigPlan, "Presentation plan too large (max 10KB)"},
		{"bad json", `{"topic":`, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postGenerate(t, ts, "secret-123", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body errorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.want, body.Error)
		})
	}
}

func TestGenerateAcceptsPlanOnly(t *testing.T) {
	gen := &fakeGenerator{budget: 5}
	ts, _ := newTestServer(t, testServerConfig(), gen)
	resp := postGenerate(t, ts, "secret-123", `{"presentationPlan":{"title":"Roadmap"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Roadmap", gen.gotJob.Request.PlanTitle())
}

func TestGenerateRequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t, testServerConfig(), &fakeGenerator{})
	resp := postGenerate(t, ts, "", `{"topic":"Go"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postGenerate(t, ts, "bogus", `{"topic":"Go"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGenerateQuotaExceeded(t *testing.T) {
	plan := domain.DefaultPlans()["espresso"]
	_, quotaErr := plan.SlideBudget(domain.MonthlyUsage{Slides: 5})
	gen := &fakeGenerator{budgetErr: &deck.QuotaError{
		Reason:  "Monthly slide limit reached",
		Message: "Your Espresso plan allows 5 slides per month.",
		Limit:   5,
		Current: 5,
		Err:     quotaErr,
	}}
	ts, _ := newTestServer(t, testServerConfig(), gen)

	resp := postGenerate(t, ts, "secret-456", `{"topic":"Go"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"error":"Monthly slide limit reached",
		"message":"Your Espresso plan allows 5 slides per month.",
		"limit":5,
		"current":5,
		"upgradeRequired":true
	}`, string(body))
	assert.Equal(t, "espresso", gen.gotPlan.ID)
}

func TestGenerateUsageFailure(t *testing.T) {
	ts, _ := newTestServer(t, testServerConfig(), &fakeGenerator{budgetErr: errors.New("db locked")})
	resp := postGenerate(t, ts, "secret-123", `{"topic":"Go"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestGenerateRateLimited(t *testing.T) {
	cfg := testServerConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Hour}
	ts, _ := newTestServer(t, cfg, &fakeGenerator{budget: 5})

	resp := postGenerate(t, ts, "secret-123", `{"topic":"Go"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	io.Copy(io.Discard, resp.Body)

	resp = postGenerate(t, ts, "secret-123", `{"topic":"Go"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, streamRateLimitMessage, body["message"])
}

func TestGetPresentation(t *testing.T) {
	ts, _ := newTestServer(t, testServerConfig(), &fakeGenerator{})

	get := func(token, id string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/presentations/"+id, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := get("secret-123", "p1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p domain.Presentation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, "Saved", p.Title)

	assert.Equal(t, http.StatusNotFound, get("secret-456", "p1").StatusCode)
	assert.Equal(t, http.StatusNotFound, get("secret-123", "missing").StatusCode)
}

func TestValidateRequest(t *testing.T) {
	limits := Limits{MaxTopicLength: 5, MaxPlanBytes: 20}
	assert.Empty(t, validateRequest(domain.GenerationRequest{Topic: "héllo"}, limits))
	assert.Equal(t, "topic must not exceed 5 characters", validateRequest(domain.GenerationRequest{Topic: "héllo!"}, limits))
	// Whitespace is not counted against the plan limit.
	plan := json.RawMessage("{\n  \"title\":   \"abcdefgh\"\n}")
	assert.Empty(t, validateRequest(domain.GenerationRequest{PresentationPlan: plan}, limits))
}
