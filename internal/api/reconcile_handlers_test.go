package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Taff4/conciliador-notas/internal/config"
	"github.com/Taff4/conciliador-notas/internal/matcher"
	"github.com/Taff4/conciliador-notas/internal/metrics"
	"github.com/Taff4/conciliador-notas/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() config.Config {
	return config.Config{
		GinMode: gin.TestMode,
		Matcher: config.Matcher{
			DefaultDepth:      15,
			WarnDepth:         18,
			MaxDepth:          30,
			Workers:           1,
			ReachabilityLimit: 1_000_000,
			Timeout:           5 * time.Second,
		},
	}
}

func newTestRouter(t *testing.T, cfg config.Config, s Searcher) (*gin.Engine, *metrics.Recorder) {
	t.Helper()
	if s == nil {
		s = matcher.New()
	}
	nop := zerolog.Nop()
	rec := metrics.NewRecorder()
	return SetupRouter(Deps{Config: cfg, Searcher: s, Metrics: rec, Log: &nop}), rec
}

func postJSON(r http.Handler, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeReconcile(t *testing.T, w *httptest.ResponseRecorder) models.ReconcileResponse {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp models.ReconcileResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorBody {
	t.Helper()
	var payload struct {
		Error models.ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("Invalid error JSON: %v (%s)", err, w.Body.String())
	}
	return payload.Error
}

func TestReconcile_FoundFromNotesText(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), nil)

	w := postJSON(r, "/api/v1/reconcile", `{"target": "350,00", "notes": "NF 100,00\nNF 250,00\nNF 150,00"}`)
	if w.Code != http.StatusBadRequest {
		// "350,00" is not a JSON decimal; the target must use point notation.
		t.Fatalf("Expected 400 for comma target, got %d", w.Code)
	}

	w = postJSON(r, "/api/v1/reconcile", `{"target": "350.00", "notes": "NF 100,00\nNF 250,00\nNF 150,00", "maxDepth": 3}`)
	resp := decodeReconcile(t, w)

	if resp.Status != models.StatusFound {
		t.Fatalf("Status = %q, want found", resp.Status)
	}
	if !reflect.DeepEqual(resp.Combination, []string{"100.00", "250.00"}) {
		t.Errorf("Combination = %v, want [100.00 250.00]", resp.Combination)
	}
	if !reflect.DeepEqual(resp.Indices, []int{0, 1}) {
		t.Errorf("Indices = %v, want [0 1]", resp.Indices)
	}
	if resp.Sum != "350.00" || resp.Target != "350.00" {
		t.Errorf("Sum/Target = %s/%s, want 350.00", resp.Sum, resp.Target)
	}
	if resp.Candidates != 3 || resp.Depth != 3 {
		t.Errorf("Candidates/Depth = %d/%d, want 3/3", resp.Candidates, resp.Depth)
	}
	if resp.RequestID == "" {
		t.Errorf("Expected a request id")
	}
	if w.Header().Get(headerRequestID) != resp.RequestID {
		t.Errorf("Header request id %q does not match body %q", w.Header().Get(headerRequestID), resp.RequestID)
	}
}

func TestReconcile_ValuesAndDefaultDepth(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), nil)

	resp := decodeReconcile(t, postJSON(r, "/api/v1/reconcile", `{"target": 1, "values": [0.25, "0.5", 0.25, 0.75]}`))
	if resp.Status != models.StatusFound || !reflect.DeepEqual(resp.Indices, []int{0, 3}) {
		t.Errorf("Expected [0 3], got %s %v", resp.Status, resp.Indices)
	}
	if resp.Depth != 4 {
		t.Errorf("Default depth 15 should clamp to 4 candidates, got %d", resp.Depth)
	}
	if resp.Warning != "" {
		t.Errorf("Unexpected warning %q", resp.Warning)
	}
}

func TestReconcile_NotFoundCarriesHintAndElapsed(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), nil)

	resp := decodeReconcile(t, postJSON(r, "/api/v1/reconcile", `{"target": "0.65", "values": ["0.10", "0.20", "0.30"], "maxDepth": 3}`))
	if resp.Status != models.StatusNotFound {
		t.Fatalf("Status = %q, want not_found", resp.Status)
	}
	if !strings.Contains(resp.Hint, "up to 3 notes") {
		t.Errorf("Hint should name the depth, got %q", resp.Hint)
	}
	if resp.Elapsed == "" {
		t.Errorf("Not found must still report elapsed time")
	}
	if len(resp.Combination) != 0 {
		t.Errorf("Not found must not carry a combination, got %v", resp.Combination)
	}
}

func TestReconcile_EmptyCandidateList(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), nil)

	resp := decodeReconcile(t, postJSON(r, "/api/v1/reconcile", `{"target": "10", "values": [], "maxDepth": 5}`))
	if resp.Status != models.StatusNotFound || resp.Depth != 0 {
		t.Errorf("Expected not_found at depth 0, got %s depth %d", resp.Status, resp.Depth)
	}
}

func TestReconcile_DeepSearchWarning(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), nil)

	resp := decodeReconcile(t, postJSON(r, "/api/v1/reconcile", `{"target": "3", "values": [1, 2], "maxDepth": 19}`))
	if !strings.Contains(resp.Warning, "depth 19") {
		t.Errorf("Expected a depth warning, got %q", resp.Warning)
	}
}

func TestReconcile_RejectedTokensReported(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), nil)

	resp := decodeReconcile(t, postJSON(r, "/api/v1/reconcile", `{"target": "5", "notes": "Total 1.234,56 then 5,00"}`))
	if !reflect.DeepEqual(resp.RejectedTokens, []string{"1.234.56"}) {
		t.Errorf("RejectedTokens = %v, want [1.234.56]", resp.RejectedTokens)
	}
	if resp.Status != models.StatusFound {
		t.Errorf("Status = %q, want found", resp.Status)
	}
}

func TestReconcile_InvalidRequests(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  string
		wantField string
	}{
		{"Missing Target", `{"values": [1]}`, ErrCodeInvalidRequest, "target"},
		{"Zero Target", `{"target": 0, "values": [1]}`, ErrCodeInvalidRequest, "target"},
		{"Negative Target", `{"target": "-5", "values": [1]}`, ErrCodeInvalidRequest, "target"},
		{"Zero Depth", `{"target": 1, "values": [1], "maxDepth": 0}`, ErrCodeInvalidRequest, "maxDepth"},
		{"Depth Above Max", `{"target": 1, "values": [1], "maxDepth": 31}`, ErrCodeInvalidRequest, "maxDepth"},
		{"No Candidates Given", `{"target": 1}`, ErrCodeInvalidRequest, "notes"},
		{"Malformed JSON", `{"target": `, ErrCodeBadJSON, ""},
		{"Non Numeric Value", `{"target": 1, "values": ["abc"]}`, ErrCodeBadJSON, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, testConfig(), nil)
			w := postJSON(r, "/api/v1/reconcile", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}
			body := decodeError(t, w)
			if body.Code != tt.wantCode || body.Field != tt.wantField {
				t.Errorf("Error = %+v, want code %s field %q", body, tt.wantCode, tt.wantField)
			}
		})
	}
}

func TestReconcile_RejectsAmountsBeyondExactRange(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"Huge Notes", `{"target": "0.01", "notes": "92233720368547758.07 92233720368547758.07 0.03"}`, "notes"},
		{"Huge Values", `{"target": "0.01", "values": ["92233720368547758.07", "92233720368547758.07", "0.03"]}`, "values[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, testConfig(), nil)
			w := postJSON(r, "/api/v1/reconcile", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}
			body := decodeError(t, w)
			if body.Code != ErrCodeInvalidRequest || body.Field != tt.wantField {
				t.Errorf("Error = %+v, want INVALID_REQUEST on %s", body, tt.wantField)
			}
		})
	}
}

func TestParse(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), nil)

	w := postJSON(r, "/api/v1/parse", `{"notes": "12,50; 7,25 e 1.234,56"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp models.ParseResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if !reflect.DeepEqual(resp.Values, []string{"12.50", "7.25"}) || resp.Count != 2 || resp.Total != "19.75" {
		t.Errorf("Unexpected parse response %+v", resp)
	}
	if !reflect.DeepEqual(resp.Rejected, []string{"1.234.56"}) {
		t.Errorf("Rejected = %v, want [1.234.56]", resp.Rejected)
	}

	w = postJSON(r, "/api/v1/parse", `{}`)
	if w.Code != http.StatusBadRequest || decodeError(t, w).Field != "notes" {
		t.Errorf("Expected 400 on notes, got %d %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.AuthToken = "s3cret"
	r, _ := newTestRouter(t, cfg, nil)
	body := `{"target": 1, "values": [1]}`

	if w := postJSON(r, "/api/v1/reconcile", body); w.Code != http.StatusUnauthorized {
		t.Errorf("Missing header: got %d, want 401", w.Code)
	}
	if w := postJSON(r, "/api/v1/reconcile", body, "Authorization", "Token s3cret"); w.Code != http.StatusForbidden {
		t.Errorf("Bad scheme: got %d, want 403", w.Code)
	}
	if w := postJSON(r, "/api/v1/reconcile", body, "Authorization", "Bearer wrong"); w.Code != http.StatusForbidden {
		t.Errorf("Wrong token: got %d, want 403", w.Code)
	}
	if w := postJSON(r, "/api/v1/reconcile", body, "Authorization", "Bearer s3cret"); w.Code != http.StatusOK {
		t.Errorf("Valid token: got %d, want 200", w.Code)
	}
	if w := postJSON(r, "/api/v1/parse", `{"notes": "1"}`); w.Code != http.StatusOK {
		t.Errorf("Parse is public: got %d, want 200", w.Code)
	}
}

func TestRateLimitedReconcile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nop := zerolog.Nop()
	r := SetupRouter(Deps{
		Config:   testConfig(),
		Searcher: matcher.New(),
		Limiter:  NewRateLimiter(ctx, 1, 1),
		Log:      &nop,
	})

	body := `{"target": 1, "values": [1]}`
	if w := postJSON(r, "/api/v1/reconcile", body); w.Code != http.StatusOK {
		t.Fatalf("First request: got %d, want 200", w.Code)
	}
	w := postJSON(r, "/api/v1/reconcile", body)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Second request: got %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Errorf("Expected Retry-After header")
	}
	if decodeError(t, w).Code != ErrCodeRateLimited {
		t.Errorf("Expected RATE_LIMITED code")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), nil)
	decodeReconcile(t, postJSON(r, "/api/v1/reconcile", `{"target": 1, "values": [1]}`))
	postJSON(r, "/api/v1/reconcile", `{"target": 0, "values": [1]}`)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"maxDepth":30`) {
		t.Errorf("Unexpected health response %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	for _, want := range []string{
		`conciliador_searches_total{outcome="found"} 1`,
		`conciliador_invalid_requests_total{field="target"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics to contain %s", want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://app.example"}
	r, _ := newTestRouter(t, cfg, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/reconcile", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Preflight: got %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
