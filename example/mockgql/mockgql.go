// Package mockgql is a fake GraphQL API for trying remotedata locally.
//
// It does not parse GraphQL. The root field of a query is found by name and
// answered with generated data, so any query naming pharmacies, drugs, or
// prescriptions works. Roughly one response in ten carries a partial error.
package mockgql

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Handler serves POST /graphql and GET /healthz.
//
// /healthz reports "starting" until warmup has passed, then "ok".
func Handler(warmup time.Duration) http.Handler {
	readyAt := time.Now().Add(warmup)
	var calls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if time.Now().Before(readyAt) {
			status = "starting"
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	})

	mux.HandleFunc("POST /graphql", func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"errors": []gqlError{{Message: "request body must be a GraphQL request"}},
			})
			return
		}

		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(250)) * time.Millisecond)

		n := calls.Add(1)
		data, errs := answer(req, n)
		slog.Debug("graphql request", "call", n, "errors", len(errs))

		body := map[string]any{"data": data}
		if len(errs) > 0 {
			body["errors"] = errs
		}
		writeJSON(w, http.StatusOK, body)
	})
	return mux
}

func answer(req request, call int64) (map[string]any, []gqlError) {
	q := req.Query
	switch {
	case strings.Contains(q, "pharmacies"):
		zip := stringVar(req.Variables, "zip", "94103")
		items := make([]map[string]any, 0, 4)
		for i := 1; i <= 2+rand.Intn(3); i++ {
			items = append(items, map[string]any{
				"id":   fmt.Sprintf("ph-%s-%d", zip, i),
				"name": fmt.Sprintf("Pharmacy %d", i),
				"zip":  zip,
			})
		}
		if call%10 == 0 {
			return map[string]any{"pharmacies": items[:1]}, []gqlError{{
				Message:    "pharmacy directory partially unavailable",
				Path:       []any{"pharmacies", 1},
				Extensions: map[string]any{"code": "UPSTREAM_TIMEOUT"},
			}}
		}
		return map[string]any{"pharmacies": items}, nil

	case strings.Contains(q, "drugs"):
		plan := stringVar(req.Variables, "plan", "basic")
		tier := stringVar(req.Variables, "tier", "1")
		items := []map[string]any{
			{"id": "rx-" + plan + "-" + tier + "-a", "name": "Amoxicillin", "tier": tier},
			{"id": "rx-" + plan + "-" + tier + "-b", "name": "Lisinopril", "tier": tier},
		}
		return map[string]any{"drugs": items}, nil

	case strings.Contains(q, "prescriptions"):
		edges := make([]map[string]any, 0, 3)
		for i := 1; i <= 3; i++ {
			edges = append(edges, map[string]any{
				"node": map[string]any{"id": fmt.Sprintf("pr-%d", i), "refills": rand.Intn(4)},
			})
		}
		return map[string]any{"patient": map[string]any{"prescriptions": map[string]any{"edges": edges}}}, nil

	default:
		return nil, []gqlError{{
			Message:    "unknown root field",
			Extensions: map[string]any{"code": "GRAPHQL_VALIDATION_FAILED"},
		}}
	}
}

func stringVar(vars map[string]any, key, fallback string) string {
	if v, ok := vars[key]; ok {
		return fmt.Sprint(v)
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
