package mockgql

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func post(t *testing.T, h http.Handler, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error = %v, body = %s", err, rec.Body.String())
	}
	return rec.Code, out
}

func TestHandler_Healthz(t *testing.T) {
	h := Handler(time.Hour)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !strings.Contains(rec.Body.String(), "starting") {
		t.Errorf("healthz during warmup = %s, want starting", rec.Body.String())
	}

	h = Handler(0)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz after warmup = %s, want ok", rec.Body.String())
	}
}

func TestHandler_Drugs(t *testing.T) {
	code, out := post(t, Handler(0), `{"query":"{ drugs { id } }","variables":{"plan":"plus","tier":"2"}}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	data, _ := out["data"].(map[string]any)
	drugs, _ := data["drugs"].([]any)
	if len(drugs) != 2 {
		t.Fatalf("drugs = %v, want 2 items", data["drugs"])
	}
	first, _ := drugs[0].(map[string]any)
	if first["id"] != "rx-plus-2-a" {
		t.Errorf("id = %v, want rx-plus-2-a", first["id"])
	}
}

func TestHandler_PrescriptionsConnection(t *testing.T) {
	_, out := post(t, Handler(0), `{"query":"{ patient(id: 1) { prescriptions { edges { node { id } } } } }"}`)
	data, _ := out["data"].(map[string]any)
	patient, _ := data["patient"].(map[string]any)
	conn, _ := patient["prescriptions"].(map[string]any)
	if edges, _ := conn["edges"].([]any); len(edges) != 3 {
		t.Errorf("edges = %v, want 3", conn["edges"])
	}
}

func TestHandler_Errors(t *testing.T) {
	code, out := post(t, Handler(0), `not json`)
	if code != http.StatusBadRequest || out["errors"] == nil {
		t.Errorf("bad body: status = %d, out = %v", code, out)
	}

	code, out = post(t, Handler(0), `{"query":"{ unknown }"}`)
	if code != http.StatusOK || out["errors"] == nil {
		t.Errorf("unknown field: status = %d, out = %v", code, out)
	}
}
