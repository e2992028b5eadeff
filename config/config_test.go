package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
graphql:
  url: https://api.example.com/graphql
sources:
  - name: Pharmacies
    query: "{ pharmacies { id } }"
`

func TestParse_MinimalConfig(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.PollInterval.Duration() != 15*time.Second {
		t.Errorf("PollInterval = %v, want 15s", cfg.PollInterval.Duration())
	}
	if cfg.Readiness != nil {
		t.Errorf("Readiness = %+v, want nil", cfg.Readiness)
	}
	if len(cfg.Sources) != 1 {
		t.Errorf("len(Sources) = %d, want 1", len(cfg.Sources))
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Prescribing
port: 9090
poll_interval: 30s
max_concurrency: 4

graphql:
  url: https://api.example.com/graphql
  timeout: 5s
  headers:
    Authorization: Bearer token123

readiness:
  url: https://api.example.com/healthz
  interval: 2s
  max_attempts: 10
  check: json:data.status

sources:
  - name: Allergies
    query: |
      query($id: ID!) { patient(id: $id) { allergies { id } } }
    variables:
      id: p1
      limit: 20
    select: field:patient.allergies
    timeout: 3s
    interval: 1m
    headers:
      X-Trace: "on"
    labels:
      team: clinical
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Prescribing" || cfg.Port != 9090 || cfg.MaxConcurrency != 4 {
		t.Errorf("Title/Port/MaxConcurrency = %q/%d/%d", cfg.Title, cfg.Port, cfg.MaxConcurrency)
	}
	if cfg.GraphQL.Timeout.Duration() != 5*time.Second {
		t.Errorf("GraphQL.Timeout = %v, want 5s", cfg.GraphQL.Timeout.Duration())
	}
	if cfg.GraphQL.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("GraphQL.Headers[Authorization] = %q", cfg.GraphQL.Headers["Authorization"])
	}

	r := cfg.Readiness
	if r == nil {
		t.Fatal("Readiness = nil")
	}
	if r.Interval.Duration() != 2*time.Second || r.MaxAttempts != 10 {
		t.Errorf("Readiness interval/attempts = %v/%d", r.Interval.Duration(), r.MaxAttempts)
	}
	if r.Check.Type != "json" || r.Check.Path != "data.status" {
		t.Errorf("Readiness.Check = %+v", r.Check)
	}

	s := cfg.Sources[0]
	if s.Variables["id"] != "p1" {
		t.Errorf("Variables[id] = %v, want p1", s.Variables["id"])
	}
	if s.Variables["limit"] != 20 {
		t.Errorf("Variables[limit] = %v (%T), want 20", s.Variables["limit"], s.Variables["limit"])
	}
	if s.Select.Type != "field" || s.Select.Path != "patient.allergies" {
		t.Errorf("Select = %+v", s.Select)
	}
	if s.Interval.Duration() != time.Minute {
		t.Errorf("Interval = %v, want 1m", s.Interval.Duration())
	}
	if s.Labels["team"] != "clinical" {
		t.Errorf("Labels[team] = %q", s.Labels["team"])
	}
}

func TestParse_ReadinessDefaults(t *testing.T) {
	yaml := minimalYAML + `
readiness:
  check: http
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Readiness.Interval.Duration() != time.Second {
		t.Errorf("Readiness.Interval = %v, want 1s", cfg.Readiness.Interval.Duration())
	}
	if cfg.Readiness.URL != "" {
		t.Errorf("Readiness.URL = %q, want empty", cfg.Readiness.URL)
	}
}

func TestParse_GridConfig(t *testing.T) {
	yaml := `
graphql:
  url: https://api.example.com/graphql
grids:
  - name: Formulary
    query: "query($plan: String!, $state: String!) { drugs(plan: $plan, state: $state) { id } }"
    dimensions:
      plan: [basic, plus]
      state: [CA, NY]
    variables:
      year: 2026
    select:
      type: field
      path: drugs
    labels:
      tier: critical
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	g := cfg.Grids[0]
	if len(g.Dimensions) != 2 || len(g.Dimensions["plan"]) != 2 {
		t.Errorf("Dimensions = %v", g.Dimensions)
	}
	if g.Select.Type != "field" || g.Select.Path != "drugs" {
		t.Errorf("Select = %+v", g.Select)
	}
	if g.Variables["year"] != 2026 {
		t.Errorf("Variables[year] = %v", g.Variables["year"])
	}
}

func TestParse_SelectorShorthand(t *testing.T) {
	tests := []struct {
		yaml     string
		wantType string
		wantPath string
	}{
		{yaml: `select: default`, wantType: "default"},
		{yaml: `select: pharmacies`, wantType: "field", wantPath: "pharmacies"},
		{yaml: `select: field:patient.allergies`, wantType: "field", wantPath: "patient.allergies"},
		{yaml: `select: edges:patient.prescriptions`, wantType: "edges", wantPath: "patient.prescriptions"},
		{yaml: ``, wantType: ""},
	}

	for _, tt := range tests {
		t.Run(tt.yaml, func(t *testing.T) {
			cfg, err := Parse([]byte(minimalYAML + "    " + tt.yaml + "\n"))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			sel := cfg.Sources[0].Select
			if sel.Type != tt.wantType || sel.Path != tt.wantPath {
				t.Errorf("Select = %+v, want {%s %s}", sel, tt.wantType, tt.wantPath)
			}
		})
	}
}

func TestParse_CheckShorthand(t *testing.T) {
	tests := []struct {
		check    string
		wantType string
		wantPath string
		wantText string
	}{
		{check: "json:status", wantType: "json", wantPath: "status"},
		{check: "json:data.health.status", wantType: "json", wantPath: "data.health.status"},
		{check: "contains:ok", wantType: "contains", wantText: "ok"},
		{check: `"contains:service is healthy"`, wantType: "contains", wantText: "service is healthy"},
		{check: "default", wantType: "default"},
		{check: "http", wantType: "http"},
	}

	for _, tt := range tests {
		t.Run(tt.check, func(t *testing.T) {
			cfg, err := Parse([]byte(minimalYAML + "readiness:\n  check: " + tt.check + "\n"))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			c := cfg.Readiness.Check
			if c.Type != tt.wantType || c.Path != tt.wantPath || c.Text != tt.wantText {
				t.Errorf("Check = %+v", c)
			}
		})
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("TEST_GQL_HOST", "api.internal")
	t.Setenv("TEST_API_TOKEN", "secret")
	t.Setenv("TEST_ZIP", "10001")

	yaml := `
graphql:
  url: https://${TEST_GQL_HOST}/graphql
  headers:
    Authorization: Bearer ${TEST_API_TOKEN}
readiness:
  url: https://${TEST_GQL_HOST}/healthz
sources:
  - name: Pharmacies
    query: "{ pharmacies { id } }"
    variables:
      zip: ${TEST_ZIP}
      radius: ${TEST_RADIUS:-5}
      nested:
        keep: ${NOT_EXPANDED}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.GraphQL.URL != "https://api.internal/graphql" {
		t.Errorf("GraphQL.URL = %q", cfg.GraphQL.URL)
	}
	if cfg.GraphQL.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Authorization = %q", cfg.GraphQL.Headers["Authorization"])
	}
	if cfg.Readiness.URL != "https://api.internal/healthz" {
		t.Errorf("Readiness.URL = %q", cfg.Readiness.URL)
	}
	vars := cfg.Sources[0].Variables
	if vars["zip"] != "10001" || vars["radius"] != "5" {
		t.Errorf("Variables = %v", vars)
	}
	nested, _ := vars["nested"].(map[string]any)
	if nested["keep"] != "${NOT_EXPANDED}" {
		t.Errorf("nested variable = %v, want unexpanded", nested["keep"])
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
graphql:
  url: https://${TEST_DEFINITELY_UNSET_HOST}/graphql
sources:
  - name: A
    query: "{ a }"
`
	_, err := Parse([]byte(yaml))
	if err == nil || !strings.Contains(err.Error(), "TEST_DEFINITELY_UNSET_HOST") {
		t.Errorf("Parse() error = %v, want missing variable error", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no sources or grids",
			yaml:    "graphql:\n  url: https://x.test/graphql\n",
			wantErr: "at least one source or grid",
		},
		{
			name:    "missing graphql url",
			yaml:    "sources:\n  - name: A\n    query: \"{ a }\"\n",
			wantErr: "graphql.url is required",
		},
		{
			name:    "graphql url without scheme",
			yaml:    "graphql:\n  url: x.test/graphql\nsources:\n  - name: A\n    query: \"{ a }\"\n",
			wantErr: "scheme",
		},
		{
			name:    "graphql url with ftp scheme",
			yaml:    "graphql:\n  url: ftp://x.test/graphql\nsources:\n  - name: A\n    query: \"{ a }\"\n",
			wantErr: "http or https",
		},
		{
			name:    "source missing name",
			yaml:    "graphql:\n  url: https://x.test\nsources:\n  - query: \"{ a }\"\n",
			wantErr: "sources[0]: name is required",
		},
		{
			name:    "source missing query",
			yaml:    "graphql:\n  url: https://x.test\nsources:\n  - name: A\n",
			wantErr: "query is required",
		},
		{
			name:    "duplicate source names",
			yaml:    "graphql:\n  url: https://x.test\nsources:\n  - name: A\n    query: \"{ a }\"\n  - name: A\n    query: \"{ b }\"\n",
			wantErr: "duplicate name",
		},
		{
			name:    "unknown selector type",
			yaml:    "graphql:\n  url: https://x.test\nsources:\n  - name: A\n    query: \"{ a }\"\n    select: nodes:a\n",
			wantErr: "unknown selector type",
		},
		{
			name:    "structured selector missing path",
			yaml:    "graphql:\n  url: https://x.test\nsources:\n  - name: A\n    query: \"{ a }\"\n    select:\n      type: edges\n",
			wantErr: "requires a path",
		},
		{
			name:    "unknown check",
			yaml:    "graphql:\n  url: https://x.test\nreadiness:\n  check: regex:x\nsources:\n  - name: A\n    query: \"{ a }\"\n",
			wantErr: "unknown check type",
		},
		{
			name:    "negative attempts",
			yaml:    "graphql:\n  url: https://x.test\nreadiness:\n  max_attempts: -1\nsources:\n  - name: A\n    query: \"{ a }\"\n",
			wantErr: "max_attempts cannot be negative",
		},
		{
			name:    "grid without dimensions",
			yaml:    "graphql:\n  url: https://x.test\ngrids:\n  - name: G\n    query: \"{ a }\"\n",
			wantErr: "at least one dimension",
		},
		{
			name:    "grid duplicate dimension value",
			yaml:    "graphql:\n  url: https://x.test\ngrids:\n  - name: G\n    query: \"{ a }\"\n    dimensions:\n      plan: [a, a]\n",
			wantErr: "duplicate value",
		},
		{
			name:    "grid empty dimension",
			yaml:    "graphql:\n  url: https://x.test\ngrids:\n  - name: G\n    query: \"{ a }\"\n    dimensions:\n      plan: []\n",
			wantErr: "has no values",
		},
		{
			name:    "poll interval too short",
			yaml:    minimalYAML + "poll_interval: 500ms\n",
			wantErr: "poll_interval must be at least",
		},
		{
			name:    "source interval too long",
			yaml:    minimalYAML + "    interval: 2h\n",
			wantErr: "must not exceed 1h",
		},
		{
			name:    "source timeout too short",
			yaml:    minimalYAML + "    timeout: 100ms\n",
			wantErr: "timeout must be at least 1s",
		},
		{
			name:    "port out of range",
			yaml:    minimalYAML + "port: 70000\n",
			wantErr: "port must be between",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("graphql: [unclosed")); err == nil {
		t.Error("Parse() error = nil, want YAML error")
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + "poll_interval: soon\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("Parse() error = %v, want invalid duration", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_EXPAND_SET", "value")
	t.Setenv("TEST_EXPAND_EMPTY", "")

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "plain", want: "plain"},
		{in: "${TEST_EXPAND_SET}", want: "value"},
		{in: "a-${TEST_EXPAND_SET}-b", want: "a-value-b"},
		{in: "${TEST_EXPAND_UNSET:-fallback}", want: "fallback"},
		{in: "${TEST_EXPAND_UNSET:-}", want: ""},
		{in: "${TEST_EXPAND_EMPTY:-fallback}", want: ""},
		{in: "${TEST_EXPAND_UNSET}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := expandEnvVars(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expandEnvVars() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("TEST_DOTENV_TOKEN=from-file\nTEST_DOTENV_PRESET=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TEST_DOTENV_PRESET", "from-env")
	// registers cleanup for a variable the file sets
	t.Setenv("TEST_DOTENV_TOKEN", "")
	_ = os.Unsetenv("TEST_DOTENV_TOKEN")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envFile); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}

	if got := os.Getenv("TEST_DOTENV_TOKEN"); got != "from-file" {
		t.Errorf("TEST_DOTENV_TOKEN = %q, want from-file", got)
	}
	if got := os.Getenv("TEST_DOTENV_PRESET"); got != "from-env" {
		t.Errorf("TEST_DOTENV_PRESET = %q, want existing value kept", got)
	}
}

func TestLoadDotEnv_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "bad.env")
	if err := os.WriteFile(envFile, []byte("TEST_DOTENV_BAD='unterminated\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(envFile); err == nil {
		t.Error("LoadDotEnv() error = nil, want parse error")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sources[0].Name != "Pharmacies" {
		t.Errorf("Sources[0].Name = %q", cfg.Sources[0].Name)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() error = nil for missing file")
	}
}
