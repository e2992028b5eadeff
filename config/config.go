// Package config provides YAML configuration parsing for remotedata.
//
// This package enables running the board as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	poll_interval: 15s
//
//	graphql:
//	  url: ${GRAPHQL_URL:-http://localhost:9999/graphql}
//	  headers:
//	    Authorization: Bearer ${API_TOKEN}
//
//	readiness:
//	  url: http://localhost:9999/healthz
//	  interval: 1s
//	  max_attempts: 30
//	  check: json:status
//
//	sources:
//	  - name: Pharmacies
//	    query: 'query($zip: String!) { pharmacies(zip: $zip) { id name } }'
//	    variables:
//	      zip: "94103"
//	    interval: 5s
//
//	grids:
//	  - name: Formulary
//	    query: 'query($plan: String!) { drugs(plan: $plan) { id name } }'
//	    dimensions:
//	      plan: [basic, plus]
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum allowed polling interval.
// This prevents accidental overload of the API with overly aggressive refreshes.
const minPollInterval = 1 * time.Second

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "remotedata" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the default refresh interval for sources.
	// Defaults to 15s.
	PollInterval Duration `yaml:"poll_interval"`

	// MaxConcurrency caps concurrent loads. Zero means the SDK default.
	MaxConcurrency int `yaml:"max_concurrency"`

	// GraphQL describes the API every source queries.
	GraphQL GraphQLConfig `yaml:"graphql"`

	// Readiness, when set, makes serve wait for the API before the first load.
	Readiness *ReadinessConfig `yaml:"readiness"`

	// Sources defines individual queries.
	Sources []SourceConfig `yaml:"sources"`

	// Grids defines query grids that expand via cartesian product.
	Grids []GridConfig `yaml:"grids"`
}

// GraphQLConfig describes the GraphQL endpoint.
type GraphQLConfig struct {
	// URL is the GraphQL endpoint. Required.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Timeout is the default request timeout for sources. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Headers are sent with every request. Values support substitution.
	Headers map[string]string `yaml:"headers"`
}

// ReadinessConfig describes the readiness wait.
type ReadinessConfig struct {
	// URL is polled until it reports ready. Empty means the GraphQL URL.
	URL string `yaml:"url"`

	// Interval is the time between attempts. Defaults to 1s.
	Interval Duration `yaml:"interval"`

	// MaxAttempts bounds the number of attempts. Zero means the poller default.
	MaxAttempts int `yaml:"max_attempts"`

	// Check decides when a response counts as ready.
	Check CheckConfig `yaml:"check"`
}

// SourceConfig defines a single GraphQL query kept in a store.
type SourceConfig struct {
	// Name identifies the store in the API and dashboard.
	Name string `yaml:"name"`

	// Query is the GraphQL document.
	Query string `yaml:"query"`

	// Variables are the GraphQL variables. String values support substitution.
	Variables map[string]any `yaml:"variables"`

	// Select picks the stored list out of the response data.
	Select SelectorConfig `yaml:"select"`

	// Timeout is the request timeout. Defaults to graphql.timeout.
	Timeout Duration `yaml:"timeout"`

	// Headers are sent with this source's requests, overriding graphql.headers.
	Headers map[string]string `yaml:"headers"`

	// Labels are metadata key-value pairs.
	Labels map[string]string `yaml:"labels"`

	// Interval is the refresh interval. Must be between 1s and 1h.
	// If not specified, uses poll_interval.
	Interval Duration `yaml:"interval"`
}

// GridConfig defines a query grid that expands via cartesian product.
//
// With dimensions {plan: [basic, plus], state: [CA, NY]}, the grid expands
// to 4 sources, each sending its combination as GraphQL variables.
type GridConfig struct {
	// Name is the base name for generated sources.
	Name string `yaml:"name"`

	// Query is the GraphQL document shared by every generated source.
	// It declares each dimension as a variable.
	Query string `yaml:"query"`

	// Dimensions maps variable names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`

	// Variables are static variables sent by every generated source.
	Variables map[string]any `yaml:"variables"`

	Select   SelectorConfig    `yaml:"select"`
	Timeout  Duration          `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
	Labels   map[string]string `yaml:"labels"`
	Interval Duration          `yaml:"interval"`
}

// SelectorConfig specifies how the stored list is picked from response data.
//
// Shorthand string:
//
//	select: default
//	select: pharmacies              (same as field:pharmacies)
//	select: field:patient.allergies
//	select: edges:patient.prescriptions
//
// Structured object:
//
//	select:
//	  type: edges
//	  path: patient.prescriptions
type SelectorConfig struct {
	// Type is "default", "field", or "edges".
	Type string

	// Path is the dot-separated path (for field and edges).
	Path string
}

// CheckConfig specifies how readiness is read from a health response.
//
// Shorthand string:
//
//	check: default
//	check: http
//	check: json:data.status
//	check: contains:ok
//
// Structured object:
//
//	check:
//	  type: json
//	  path: data.status
type CheckConfig struct {
	// Type is the check type: "default", "json", "contains", "http".
	Type string

	// Path is the JSON field path (for type: json).
	Path string

	// Text is the substring to search for (for type: contains).
	Text string
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for SelectorConfig.
func (s *SelectorConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var raw string
		if err := node.Decode(&raw); err != nil {
			return err
		}
		return s.parseShorthand(raw)
	case yaml.MappingNode:
		var raw struct {
			Type string `yaml:"type"`
			Path string `yaml:"path"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		s.Type = raw.Type
		s.Path = raw.Path
		return nil
	}
	return fmt.Errorf("select must be a string or object, got %v", node.Kind)
}

// parseShorthand parses "default", "kind:path", or a bare field path.
func (s *SelectorConfig) parseShorthand(raw string) error {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return nil
	case raw == "default":
		s.Type = raw
		return nil
	}

	if idx := strings.Index(raw, ":"); idx != -1 {
		s.Type = raw[:idx]
		s.Path = raw[idx+1:]
		if s.Type != "field" && s.Type != "edges" {
			return fmt.Errorf("unknown selector type %q", s.Type)
		}
		return nil
	}

	s.Type = "field"
	s.Path = raw
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler for CheckConfig.
func (c *CheckConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return c.ParseShorthand(s)
	}

	if node.Kind == yaml.MappingNode {
		// temporary struct to avoid infinite recursion
		var raw struct {
			Type string `yaml:"type"`
			Path string `yaml:"path"`
			Text string `yaml:"text"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		c.Type = raw.Type
		c.Path = raw.Path
		c.Text = raw.Text
		return nil
	}

	return fmt.Errorf("check must be a string or object, got %v", node.Kind)
}

// ParseShorthand parses check shorthand syntax.
//
// Supported formats:
//   - "default" → JSON "status" field, then HTTP status code
//   - "http" → HTTP status code only
//   - "json:path" → JSON field
//   - "contains:text" → body contains text
func (c *CheckConfig) ParseShorthand(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if idx := strings.Index(s, ":"); idx != -1 {
		c.Type = s[:idx]
		value := s[idx+1:]

		switch c.Type {
		case "json":
			c.Path = value
		case "contains":
			c.Text = value
		default:
			return fmt.Errorf("unknown check type %q", c.Type)
		}
		return nil
	}

	switch s {
	case "default", "http":
		c.Type = s
	default:
		return fmt.Errorf("unknown check %q (expected 'default', 'http', 'json:path', or 'contains:text')", s)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// LoadDotEnv loads environment files into the process environment.
//
// Variables already set in the environment are not overridden. Missing files
// are skipped. With no paths, ".env" in the working directory is tried.
// Call it before [Load] so ${VAR} references can see the file's values.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded after parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URLs, header values, and string
// variables. Defaults are applied for Port (8080), PollInterval (15s), and
// the readiness interval (1s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(15 * time.Second)
	}
	if cfg.Readiness != nil && cfg.Readiness.Interval == 0 {
		cfg.Readiness.Interval = Duration(time.Second)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}

	if err := c.GraphQL.expandAndValidate(); err != nil {
		return err
	}
	if c.Readiness != nil {
		if err := c.Readiness.expandAndValidate(); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		s := &c.Sources[i]

		if s.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		ctx := fmt.Sprintf("sources[%d] (%s)", i, s.Name)
		if seen[s.Name] {
			return fmt.Errorf("%s: duplicate name", ctx)
		}
		seen[s.Name] = true

		if strings.TrimSpace(s.Query) == "" {
			return fmt.Errorf("%s: query is required", ctx)
		}
		if err := expandVariables(s.Variables, ctx); err != nil {
			return err
		}
		if err := expandHeaders(s.Headers, ctx); err != nil {
			return err
		}
		if err := validateSelector(s.Select, ctx); err != nil {
			return err
		}
		if err := validateTimeout(s.Timeout, ctx); err != nil {
			return err
		}
		if err := validateInterval(s.Interval, ctx); err != nil {
			return err
		}
	}

	for i := range c.Grids {
		g := &c.Grids[i]

		if g.Name == "" {
			return fmt.Errorf("grids[%d]: name is required", i)
		}
		ctx := fmt.Sprintf("grids[%d] (%s)", i, g.Name)

		if strings.TrimSpace(g.Query) == "" {
			return fmt.Errorf("%s: query is required", ctx)
		}

		if len(g.Dimensions) == 0 {
			return fmt.Errorf("%s: at least one dimension is required", ctx)
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("%s: dimension %q has no values", ctx, dimName)
			}
			dup := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := dup[v]; exists {
					return fmt.Errorf("%s: dimension %q has duplicate value %q", ctx, dimName, v)
				}
				dup[v] = struct{}{}
			}
		}

		if err := expandVariables(g.Variables, ctx); err != nil {
			return err
		}
		if err := expandHeaders(g.Headers, ctx); err != nil {
			return err
		}
		if err := validateSelector(g.Select, ctx); err != nil {
			return err
		}
		if err := validateTimeout(g.Timeout, ctx); err != nil {
			return err
		}
		if err := validateInterval(g.Interval, ctx); err != nil {
			return err
		}
	}

	if len(c.Sources) == 0 && len(c.Grids) == 0 {
		return errors.New("at least one source or grid must be defined")
	}

	return nil
}

func (g *GraphQLConfig) expandAndValidate() error {
	if g.URL == "" {
		return errors.New("graphql.url is required")
	}
	expanded, err := expandEnvVars(g.URL)
	if err != nil {
		return fmt.Errorf("graphql.url: %w", err)
	}
	g.URL = expanded
	if err := validateHTTPURL(g.URL); err != nil {
		return fmt.Errorf("graphql.url: %w", err)
	}

	if err := expandHeaders(g.Headers, "graphql"); err != nil {
		return err
	}
	return validateTimeout(g.Timeout, "graphql")
}

func (r *ReadinessConfig) expandAndValidate() error {
	if r.URL != "" {
		expanded, err := expandEnvVars(r.URL)
		if err != nil {
			return fmt.Errorf("readiness.url: %w", err)
		}
		r.URL = expanded
		if err := validateHTTPURL(r.URL); err != nil {
			return fmt.Errorf("readiness.url: %w", err)
		}
	}
	if r.Interval.Duration() <= 0 {
		return fmt.Errorf("readiness.interval must be positive, got %s", r.Interval.Duration())
	}
	if r.MaxAttempts < 0 {
		return fmt.Errorf("readiness.max_attempts cannot be negative, got %d", r.MaxAttempts)
	}
	return ValidateCheck(r.Check, "readiness")
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsed.Scheme)
	}
	return nil
}

func expandHeaders(headers map[string]string, context string) error {
	for k, v := range headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("%s: headers[%s]: %w", context, k, err)
		}
		headers[k] = expanded
	}
	return nil
}

// expandVariables expands top-level string variables. Nested values are
// passed through unchanged.
func expandVariables(vars map[string]any, context string) error {
	for k, v := range vars {
		s, ok := v.(string)
		if !ok {
			continue
		}
		expanded, err := expandEnvVars(s)
		if err != nil {
			return fmt.Errorf("%s: variables[%s]: %w", context, k, err)
		}
		vars[k] = expanded
	}
	return nil
}

func validateTimeout(d Duration, context string) error {
	if d == 0 {
		return nil
	}
	if d.Duration() < 0 {
		return fmt.Errorf("%s: timeout cannot be negative, got %s", context, d.Duration())
	}
	if d.Duration() < time.Second {
		return fmt.Errorf("%s: timeout must be at least 1s if specified, got %s", context, d.Duration())
	}
	return nil
}

func validateInterval(d Duration, context string) error {
	if d == 0 {
		return nil
	}
	if d.Duration() < time.Second {
		return fmt.Errorf("%s: interval must be at least 1s, got %s", context, d.Duration())
	}
	if d.Duration() > time.Hour {
		return fmt.Errorf("%s: interval must not exceed 1h, got %s", context, d.Duration())
	}
	return nil
}

func validateSelector(s SelectorConfig, context string) error {
	switch s.Type {
	case "", "default":
		return nil
	case "field", "edges":
		if s.Path == "" {
			return fmt.Errorf("%s: selector type %q requires a path", context, s.Type)
		}
		return nil
	default:
		return fmt.Errorf("%s: unknown selector type %q", context, s.Type)
	}
}

// ValidateCheck validates a check configuration.
func ValidateCheck(c CheckConfig, context string) error {
	switch c.Type {
	case "", "default", "http":
	case "json":
		if c.Path == "" {
			return fmt.Errorf("%s: check type 'json' requires a path", context)
		}
	case "contains":
		if c.Text == "" {
			return fmt.Errorf("%s: check type 'contains' requires text", context)
		}
	default:
		return fmt.Errorf("%s: unknown check type %q", context, c.Type)
	}
	return nil
}
