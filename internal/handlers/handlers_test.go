package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/auth"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/catalog"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/dal"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/mocks"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/payload"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/pubsub"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/rules"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/session"
)

type testServer struct {
	router http.Handler
	store  *dal.MemoryDAL
	bus    *pubsub.Bus
	api    *APIHandlers
}

func newTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	c := catalog.Default()
	store := dal.NewMemoryDAL(c)
	bus := pubsub.New()

	ctrl, err := session.NewController(session.Options{
		Engine:  rules.NewEngine(c, rules.Policy{}),
		Builder: payload.NewBuilder(c, store),
		Store:   store,
		Events:  bus,
		Labels:  payload.DefaultLabels,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	api := NewAPIHandlers(Deps{
		Sessions: ctrl,
		Bus:      bus,
		Labels:   payload.DefaultLabels,
		Matches:  store,
		Stats:    mocks.NewMockClickHouseClient(),
	})
	health := NewHealth().Add("database", true, store.Ping)

	return &testServer{
		router: NewRouter(api, auth.NewMockAuth(auth.User{}), health, opts),
		store:  store,
		bus:    bus,
		api:    api,
	}
}

// do sends a request as user and decodes the JSON response
func (s *testServer) do(t *testing.T, user, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(auth.DevUserHeader, user)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 {
		var v interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
			t.Fatalf("%s %s: bad JSON %q", method, path, rec.Body.String())
		}
		out, _ = v.(map[string]interface{})
	}
	return rec.Code, out
}

func (s *testServer) start(t *testing.T, user string) string {
	t.Helper()
	code, out := s.do(t, user, http.MethodPost, "/api/sessions", nil)
	if code != http.StatusCreated {
		t.Fatalf("start session: %d %v", code, out)
	}
	return out["sessionId"].(string)
}

func errorCode(out map[string]interface{}) string {
	e, _ := out["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

func TestSessionHappyPath(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	id := s.start(t, "mario")
	base := "/api/sessions/" + id

	steps := []struct {
		path string
		body interface{}
	}{
		{base + "/mode", map[string]string{"code": "HP"}},
		{base + "/map", map[string]string{"code": "RAID"}},
		{base + "/roster/guild", map[string][]int{"picks": {1, 2}}},
		{base + "/roster/jsoc", map[string][]int{"picks": {3, 4}}},
		{base + "/scores", map[string]string{"submitter": "Mario", "guildScore": "250", "jsocScore": "240"}},
	}
	for _, step := range steps {
		if code, out := s.do(t, "mario", http.MethodPost, step.path, step.body); code != http.StatusOK {
			t.Fatalf("POST %s: %d %v", step.path, code, out)
		}
	}

	code, out := s.do(t, "mario", http.MethodPost, base+"/submit", nil)
	if code != http.StatusOK {
		t.Fatalf("submit: %d %v", code, out)
	}
	if out["closed"] != true {
		t.Error("submitted session not closed")
	}
	rows := out["result"].(map[string]interface{})["rows"].([]interface{})
	row := rows[0].(map[string]interface{})
	if row["mode_id"] != float64(1) || row["map_id"] != float64(5) {
		t.Errorf("ids mode=%v map=%v", row["mode_id"], row["map_id"])
	}
	if row["guild_player1_name"] != "Mario" || row["jsoc_player2_name"] != "Gio" {
		t.Errorf("names %v %v", row["guild_player1_name"], row["jsoc_player2_name"])
	}

	if len(s.store.Matches()) != 1 {
		t.Fatalf("stored %d matches, want 1", len(s.store.Matches()))
	}
	if code, _ := s.do(t, "mario", http.MethodGet, base, nil); code != http.StatusNotFound {
		t.Errorf("session after submit: %d, want 404", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/matches", nil)
	req.Header.Set(auth.DevUserHeader, "mario")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	var matches []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &matches); err != nil || len(matches) != 1 {
		t.Errorf("GET /api/matches: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStartSessionPrefillsSubmitter(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	_, out := s.do(t, "mario", http.MethodPost, "/api/sessions", map[string]string{"submitter": "Mario"})
	if got := out["state"].(map[string]interface{})["submitter"]; got != "Mario" {
		t.Errorf("submitter = %v", got)
	}

	_, out = s.do(t, "kai", http.MethodPost, "/api/sessions", nil)
	if got := out["state"].(map[string]interface{})["submitter"]; got != "kai" {
		t.Errorf("default submitter = %v, want the user name", got)
	}
}

func TestSessionErrors(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	id := s.start(t, "mario")
	base := "/api/sessions/" + id

	if code, _ := s.do(t, "mario", http.MethodPost, base+"/roster/guild", map[string][]int{"picks": {1, 2}}); code != http.StatusOK {
		t.Fatalf("guild pick: %d", code)
	}

	tests := []struct {
		name   string
		user   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"conflicting pick", "mario", http.MethodPost, base + "/roster/jsoc", map[string][]int{"picks": {2}}, http.StatusConflict, "CONFLICT"},
		{"unknown mode", "mario", http.MethodPost, base + "/mode", map[string]string{"code": "CTF"}, http.StatusBadRequest, "VALIDATION"},
		{"bad side", "mario", http.MethodPost, base + "/roster/red", map[string][]int{"picks": {5}}, http.StatusBadRequest, "VALIDATION"},
		{"bad score", "mario", http.MethodPost, base + "/scores", map[string]string{"submitter": "Mario", "guildScore": "x", "jsocScore": "1"}, http.StatusBadRequest, "VALIDATION"},
		{"incomplete submit", "mario", http.MethodPost, base + "/submit", nil, http.StatusUnprocessableEntity, "INCOMPLETE"},
		{"other user", "kai", http.MethodPost, base + "/mode", map[string]string{"code": "HP"}, http.StatusForbidden, "FORBIDDEN"},
		{"unknown session", "mario", http.MethodGet, "/api/sessions/nope", nil, http.StatusNotFound, "NOT_FOUND"},
		{"unknown event kind", "mario", http.MethodPost, base + "/events", map[string]string{"kind": "explode"}, http.StatusBadRequest, "VALIDATION"},
		{"bad json", "mario", http.MethodPost, base + "/mode", "not an object", http.StatusBadRequest, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := s.do(t, tt.user, tt.method, tt.path, tt.body)
			if code != tt.status || errorCode(out) != tt.code {
				t.Errorf("got %d %q, want %d %q (%v)", code, errorCode(out), tt.status, tt.code, out)
			}
		})
	}

	// rejected events leave the form as it was
	_, out := s.do(t, "mario", http.MethodGet, base, nil)
	state := out["state"].(map[string]interface{})
	if picks := state["guildPlayers"].([]interface{}); len(picks) != 2 {
		t.Errorf("guild picks = %v", picks)
	}
	if len(state["jsocPlayers"].([]interface{})) != 0 || state["modeCode"] != nil {
		t.Errorf("state changed by rejected events: %v", state)
	}
}

func TestRejectedEventEchoesSession(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	id := s.start(t, "mario")

	_, out := s.do(t, "mario", http.MethodPost, "/api/sessions/"+id+"/mode", map[string]string{"code": "CTF"})
	echo, ok := out["session"].(map[string]interface{})
	if !ok || echo["sessionId"] != id {
		t.Errorf("error response lacks the session: %v", out)
	}
}

func TestPersistenceFailureKeepsSession(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	id := s.start(t, "mario")
	base := "/api/sessions/" + id

	events := []session.Event{
		session.SelectMode("FFA"),
		session.SelectMap("CORTEX"),
		session.PickFFA([]int{1, 2, 3}),
		session.SetScores("Mario", "30", "25"),
	}
	for _, ev := range events {
		if code, out := s.do(t, "mario", http.MethodPost, base+"/events", ev); code != http.StatusOK {
			t.Fatalf("%s: %d %v", ev.Kind, code, out)
		}
	}

	s.store.FailInserts(errors.New("connection reset"))
	if code, out := s.do(t, "mario", http.MethodPost, base+"/submit", nil); code != http.StatusBadGateway || errorCode(out) != "PERSISTENCE" {
		t.Fatalf("failed submit: %d %v", code, out)
	}

	s.store.FailInserts(nil)
	if code, out := s.do(t, "mario", http.MethodPost, base+"/submit", nil); code != http.StatusOK {
		t.Fatalf("retry submit: %d %v", code, out)
	}
	if n := len(s.store.Matches()); n != 1 {
		t.Errorf("stored %d matches, want 1", n)
	}
}

func TestCancelSession(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	id := s.start(t, "mario")

	if code, _ := s.do(t, "kai", http.MethodDelete, "/api/sessions/"+id, nil); code != http.StatusForbidden {
		t.Errorf("cancel by other user: %d", code)
	}
	code, out := s.do(t, "mario", http.MethodDelete, "/api/sessions/"+id, nil)
	if code != http.StatusOK || out["closed"] != true {
		t.Fatalf("cancel: %d %v", code, out)
	}
	if code, _ := s.do(t, "mario", http.MethodGet, "/api/sessions/"+id, nil); code != http.StatusNotFound {
		t.Errorf("cancelled session still reachable: %d", code)
	}
	if len(s.store.Matches()) != 0 {
		t.Error("cancel recorded a match")
	}
}

func TestSelectSize(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	id := s.start(t, "mario")
	base := "/api/sessions/" + id

	_, out := s.do(t, "mario", http.MethodPost, base+"/size", map[string]interface{}{"side": "guild", "size": 3})
	if got := out["state"].(map[string]interface{})["guildSize"]; got != float64(3) {
		t.Errorf("guildSize = %v", got)
	}
	if code, _ := s.do(t, "mario", http.MethodPost, base+"/size", map[string]interface{}{"size": 6}); code != http.StatusBadRequest {
		t.Errorf("ffa size outside free-for-all: %d", code)
	}

	s.do(t, "mario", http.MethodPost, base+"/mode", map[string]string{"code": "FFA"})
	_, out = s.do(t, "mario", http.MethodPost, base+"/size", map[string]interface{}{"size": 6})
	if got := out["state"].(map[string]interface{})["ffaSize"]; got != float64(6) {
		t.Errorf("ffaSize = %v", got)
	}
	if code, _ := s.do(t, "mario", http.MethodPost, base+"/size", map[string]interface{}{"size": 9}); code != http.StatusBadRequest {
		t.Errorf("oversized ffa: %d", code)
	}
}

func TestRequiresSignIn(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	for _, path := range []string{"/api/catalog", "/api/stats/players", "/api/matches", "/api/me"} {
		if code, _ := s.do(t, "", http.MethodGet, path, nil); code != http.StatusUnauthorized {
			t.Errorf("GET %s anonymous: %d, want 401", path, code)
		}
	}
}

func TestGetCatalog(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	code, out := s.do(t, "mario", http.MethodGet, "/api/catalog", nil)
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if n := len(out["modes"].([]interface{})); n != 6 {
		t.Errorf("%d modes", n)
	}
	if out["freeForAllCode"] != "FFA" {
		t.Errorf("freeForAllCode = %v", out["freeForAllCode"])
	}
	limits := out["limits"].(map[string]interface{})
	if limits["teamMax"] != float64(4) || limits["ffaMax"] != float64(8) {
		t.Errorf("limits = %v", limits)
	}
}

func TestPlayerStats(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	req := httptest.NewRequest(http.MethodGet, "/api/stats/players?limit=5", nil)
	req.Header.Set(auth.DevUserHeader, "mario")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	if code, _ := s.do(t, "mario", http.MethodGet, "/api/stats/players?limit=0", nil); code != http.StatusBadRequest {
		t.Errorf("limit=0: %d", code)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, RouterOptions{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	if code, _ := s.do(t, "mario", http.MethodPost, "/api/sessions", nil); code != http.StatusCreated {
		t.Fatalf("first request: %d", code)
	}
	code, out := s.do(t, "mario", http.MethodPost, "/api/sessions", nil)
	if code != http.StatusTooManyRequests || errorCode(out) != "RATE_LIMITED" {
		t.Fatalf("second request: %d %v", code, out)
	}

	// buckets are per user, and reads are not limited
	if code, _ := s.do(t, "kai", http.MethodPost, "/api/sessions", nil); code != http.StatusCreated {
		t.Errorf("other user limited: %d", code)
	}
	if code, _ := s.do(t, "mario", http.MethodGet, "/api/catalog", nil); code != http.StatusOK {
		t.Errorf("read limited: %d", code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	failing := func(context.Context) error { return errors.New("down") }
	ok := func(context.Context) error { return nil }

	s := newTestServer(t, RouterOptions{})
	if code, _ := s.do(t, "", http.MethodGet, "/healthz", nil); code != http.StatusOK {
		t.Errorf("/healthz: %d", code)
	}
	if code, _ := s.do(t, "", http.MethodGet, "/readyz", nil); code != http.StatusOK {
		t.Errorf("/readyz: %d", code)
	}

	h := NewHealth().Add("database", true, ok).Add("clickhouse", false, failing)

	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readiness with a failing optional check: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "degraded") {
		t.Errorf("health: %d %s", rec.Code, rec.Body.String())
	}

	h.Add("database", true, failing)
	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness with a failing database: %d", rec.Code)
	}
}

func TestEventsSSE(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	req.Header.Set(auth.DevUserHeader, "mario")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || !strings.Contains(line, "connected") {
		t.Fatalf("first line %q, %v", line, err)
	}

	s.bus.Publish(pubsub.Event{Type: session.TopicSessionStarted, Payload: map[string]interface{}{"sessionId": "abc"}})

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended: %v", err)
		}
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, "abc") {
			break
		}
	}
}
