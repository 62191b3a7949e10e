package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/storage/redis/v3"
	"github.com/prometheus/client_golang/prometheus"

	"quotecast/internal/config"
	"quotecast/internal/models"
	"quotecast/internal/resolver"
)

type stubQuotes struct {
	quote models.QuoteResponse
	err   error
}

func (s stubQuotes) Quote(context.Context) (models.QuoteResponse, error) { return s.quote, s.err }

func testConfig() *config.Config {
	return &config.Config{
		Env:          "test",
		BaseURL:      "http://localhost:5001",
		RateLimitMax: 100,
		SiteTitle:    "Quote of the moment",
	}
}

func newTestServer(t *testing.T, cfg *config.Config, storage fiber.Storage, deps Dependencies) *Server {
	t.Helper()
	s := newServer(cfg, storage)
	s.RegisterRoutes(deps)
	return s
}

func doRequest(t *testing.T, app *fiber.App, method, path string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, string(body)
}

func TestQuoteRoutes(t *testing.T) {
	quote := models.QuoteResponse{Quote: "Stay hungry, stay foolish.", Author: "Steve Jobs", Source: "cache"}
	s := newTestServer(t, testConfig(), nil, Dependencies{Quotes: stubQuotes{quote: quote}})

	resp, body := doRequest(t, s.App, fiber.MethodGet, "/api/quote")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("GET /api/quote status = %d, want 200", resp.StatusCode)
	}
	var got struct {
		OK   bool                 `json:"ok"`
		Data models.QuoteResponse `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", body, err)
	}
	if !got.OK || got.Data != quote {
		t.Errorf("GET /api/quote = %+v, want ok with %+v", got, quote)
	}

	resp, body = doRequest(t, s.App, fiber.MethodGet, "/")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("GET / status = %d, want 200", resp.StatusCode)
	}
	for _, want := range []string{"Stay hungry, stay foolish.", "Steve Jobs", "cache", "<title>Quote of the moment</title>"} {
		if !strings.Contains(body, want) {
			t.Errorf("GET / body missing %q", want)
		}
	}
}

func TestQuoteRoutes_Unavailable(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, Dependencies{Quotes: stubQuotes{err: resolver.ErrUnavailable}})

	resp, body := doRequest(t, s.App, fiber.MethodGet, "/api/quote")
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Errorf("GET /api/quote status = %d, want 502", resp.StatusCode)
	}
	if !strings.Contains(body, `"ok":false`) {
		t.Errorf("GET /api/quote body = %s", body)
	}

	resp, body = doRequest(t, s.App, fiber.MethodGet, "/")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("GET / status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "Load error: ") || !strings.Contains(body, ">error<") {
		t.Errorf("GET / did not render placeholder: %s", body)
	}
}

func TestProbesAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "quotecast_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := newTestServer(t, testConfig(), nil, Dependencies{Quotes: stubQuotes{}, Gatherer: reg})

	tests := []struct {
		path     string
		contains string
	}{
		{"/healthz", `"status":"ok"`},
		{"/readyz", `"status":"ok"`},
		{"/metrics", "quotecast_test_total 1"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := doRequest(t, s.App, fiber.MethodGet, tt.path)
			if resp.StatusCode != fiber.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			if !strings.Contains(body, tt.contains) {
				t.Errorf("body = %q, want it to contain %q", body, tt.contains)
			}
		})
	}
}

func TestStoryRoutes_AdminToken(t *testing.T) {
	cfg := testConfig()
	cfg.AdminToken = "s3cret"
	s := newTestServer(t, cfg, nil, Dependencies{Quotes: stubQuotes{}})

	resp, _ := doRequest(t, s.App, fiber.MethodGet, "/api/story/status")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", resp.StatusCode)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/api/story/status", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer s3cret")
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(body), `"status":"not_initialized"`) {
		t.Errorf("status with token = %d %s, want not_initialized", resp.StatusCode, body)
	}
}

func TestStoryRoutes_NoAdminToken(t *testing.T) {
	tests := []struct {
		env    string
		locked bool
	}{
		{"production", true},
		{"test", true},
		{"development", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := testConfig()
			cfg.Env = tt.env
			s := newTestServer(t, cfg, nil, Dependencies{Quotes: stubQuotes{}})

			requests := []struct{ method, path string }{
				{fiber.MethodGet, "/api/story/status"},
				{fiber.MethodGet, "/api/story/history"},
				{fiber.MethodPost, "/api/story/post"},
			}
			for _, r := range requests {
				req := httptest.NewRequest(r.method, r.path, nil)
				req.Header.Set(fiber.HeaderAuthorization, "Bearer guess")
				resp, err := s.App.Test(req)
				if err != nil {
					t.Fatalf("app.Test() error = %v", err)
				}
				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()

				locked := strings.Contains(string(body), "admin token is not configured")
				if locked != tt.locked {
					t.Errorf("%s %s = %d %s, locked = %v, want %v", r.method, r.path, resp.StatusCode, body, locked, tt.locked)
				}
				if tt.locked && resp.StatusCode != fiber.StatusServiceUnavailable {
					t.Errorf("%s %s status = %d, want 503", r.method, r.path, resp.StatusCode)
				}
			}
		})
	}
}

func TestNotFound_APIReturnsJSON(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, Dependencies{Quotes: stubQuotes{}})

	resp, body := doRequest(t, s.App, fiber.MethodGet, "/api/nope")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if !strings.Contains(body, `"status":"error"`) {
		t.Errorf("body = %s, want JSON error", body)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitMax = 2
	s := newTestServer(t, cfg, nil, Dependencies{Quotes: stubQuotes{}})

	for i := range 2 {
		if resp, _ := doRequest(t, s.App, fiber.MethodGet, "/api/quote"); resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, resp.StatusCode)
		}
	}
	if resp, _ := doRequest(t, s.App, fiber.MethodGet, "/api/quote"); resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", resp.StatusCode)
	}
	if resp, _ := doRequest(t, s.App, fiber.MethodGet, "/healthz"); resp.StatusCode != fiber.StatusOK {
		t.Errorf("/healthz is rate limited: status = %d", resp.StatusCode)
	}
}

// Two replicas sharing one Redis share one rate limit budget.
func TestRateLimit_RedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RateLimitMax = 2

	storageA := redis.New(redis.Config{URL: "redis://" + mr.Addr()})
	storageB := redis.New(redis.Config{URL: "redis://" + mr.Addr()})
	a := newTestServer(t, cfg, storageA, Dependencies{Quotes: stubQuotes{}})
	b := newTestServer(t, cfg, storageB, Dependencies{Quotes: stubQuotes{}})
	t.Cleanup(func() {
		if err := a.Shutdown(); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
		if err := b.Shutdown(); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})

	doRequest(t, a.App, fiber.MethodGet, "/api/quote")
	doRequest(t, b.App, fiber.MethodGet, "/api/quote")
	if resp, _ := doRequest(t, a.App, fiber.MethodGet, "/api/quote"); resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("third request across replicas status = %d, want 429", resp.StatusCode)
	}
}

func TestBuildTLSConfig(t *testing.T) {
	tc, err := buildTLSConfig(&config.Config{})
	if err != nil {
		t.Fatalf("buildTLSConfig() error = %v", err)
	}
	if tc.ClientCAs != nil {
		t.Error("ClientCAs set without TLS_CA_FILE")
	}

	if _, err := buildTLSConfig(&config.Config{TLSCAFile: "/nonexistent/ca.pem"}); err == nil {
		t.Error("buildTLSConfig() with missing CA file error = nil")
	}
}
