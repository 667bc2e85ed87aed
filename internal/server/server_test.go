package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"comassist/internal/config"
	"comassist/internal/db"
	"comassist/internal/domain"
	"comassist/internal/engine"
	"comassist/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

const testUser = "user-1"

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default(testUser)
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if _, err := e.InitUser(context.Background(), testUser, "solo@example.com", "Solo"); err != nil {
		t.Fatalf("init user: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: "test-secret", AllowLegacyUserHeader: true, EnableDevLogin: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", testUser)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, err := http.Get(srv.URL + "/v1/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/users/"+testUser+"/routine", nil)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
}

func TestPlanRoundTripAndRoutine(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/v1/users/"+testUser+"/plan", map[string]any{
		"daily_time":           30,
		"active_days":          []string{"lun", "mer", "ven"},
		"channels":             []string{"instagram"},
		"insta_posts_per_week": 2,
		"newsletter_frequency": "weekly",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put plan: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/users/"+testUser+"/plan", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get plan: %d %s", res.StatusCode, string(data))
	}
	var plan domain.CommPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		t.Fatalf("unmarshal plan: %v", err)
	}
	if plan.DailyTime != 30 || plan.NewsletterFrequency != "weekly" {
		t.Fatalf("plan mismatch: %+v", plan)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/users/"+testUser+"/routine", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("routine: %d %s", res.StatusCode, string(data))
	}
	var tasks []domain.GeneratedTask
	if err := json.Unmarshal(data, &tasks); err != nil {
		t.Fatalf("unmarshal tasks: %v", err)
	}
	newsletter := 0
	for _, task := range tasks {
		if task.Type == "content_newsletter" {
			newsletter++
		}
	}
	if newsletter != 1 {
		t.Fatalf("expected 1 newsletter task, got %d", newsletter)
	}
}

func TestContentLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/users/"+testUser+"/content", map[string]any{
		"channel": "instagram",
		"title":   "Premier post",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create content: %d %s", res.StatusCode, string(data))
	}
	var item domain.ContentItem
	if err := json.Unmarshal(data, &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// idea straight to published is blocked
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/users/"+testUser+"/content/"+item.ID+"/status", map[string]any{
		"status": "published",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/users/"+testUser+"/content/"+item.ID+"/publish?force=true", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("forced publish: %d %s", res.StatusCode, string(data))
	}
	var published domain.ContentItem
	_ = json.Unmarshal(data, &published)
	if published.Status != "published" || published.PublishedAt == nil {
		t.Fatalf("expected published with timestamp: %+v", published)
	}
}

func TestAuditScoreEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	answers := map[string]string{}
	for _, q := range engine.AuditQuestions {
		answers[q.ID] = engine.AnswerPasSure
	}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/audit/score", map[string]any{
		"answers": answers,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("score audit: %d %s", res.StatusCode, string(data))
	}
	var scored AuditScoreResponse
	if err := json.Unmarshal(data, &scored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if scored.Total != 60 {
		t.Fatalf("expected total 60, got %d", scored.Total)
	}
	if scored.Label != "Bien" {
		t.Fatalf("expected label Bien, got %s", scored.Label)
	}

	// nothing was persisted by the pure endpoint
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/users/"+testUser+"/audits", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list audits: %d %s", res.StatusCode, string(data))
	}
	var audits []AuditResponse
	_ = json.Unmarshal(data, &audits)
	if len(audits) != 0 {
		t.Fatalf("expected no stored audits, got %d", len(audits))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/users/"+testUser+"/audits", map[string]any{
		"answers": answers,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit audit: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/users/"+testUser+"/audits", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list audits: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &audits)
	if len(audits) != 1 {
		t.Fatalf("expected 1 stored audit, got %d", len(audits))
	}
}

func TestUserMismatchForbidden(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/v1/users/someone-else/plan", map[string]any{
		"daily_time": 15,
	}, nil)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", res.StatusCode, string(data))
	}

	// reads are fenced the same way as writes
	for _, path := range []string{
		"/v1/users/someone-else/plan",
		"/v1/users/someone-else/score",
		"/v1/users/someone-else/streaks",
		"/v1/users/someone-else/content",
		"/v1/users/someone-else/events",
	} {
		res, data := doJSON(t, client, http.MethodGet, srv.URL+path, nil, nil)
		if res.StatusCode != http.StatusForbidden {
			t.Fatalf("GET %s: expected 403, got %d %s", path, res.StatusCode, string(data))
		}
	}
}

func TestDevLoginAndJWT(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/auth/dev/login",
		bytes.NewReader([]byte(`{"user_id":"user-1"}`)))
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("dev login: %v", err)
	}
	data, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("expected token: %v %s", err, string(data))
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	res, err = client.Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	data, _ = io.ReadAll(res.Body)
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var who WhoAmIResponse
	if err := json.Unmarshal(data, &who); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if who.UserID != "user-1" || who.Source != "jwt" {
		t.Fatalf("unexpected principal: %+v", who)
	}
}
