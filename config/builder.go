package config

import (
	"fmt"
	"sort"

	"github.com/jpalmerr/remotedata"
)

// BuildSources converts parsed configuration into SDK Source objects.
//
// It processes both direct sources and grids, returning a combined slice.
// Grid dimensions are expanded via cartesian product.
func BuildSources(cfg *Config) ([]remotedata.Source, error) {
	var sources []remotedata.Source

	for _, sc := range cfg.Sources {
		src, err := buildSource(sc, cfg.GraphQL.Timeout)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", sc.Name, err)
		}
		sources = append(sources, src)
	}

	for _, gc := range cfg.Grids {
		gridSources, err := buildGridSources(gc, cfg.GraphQL.Timeout)
		if err != nil {
			return nil, fmt.Errorf("grid %q: %w", gc.Name, err)
		}
		sources = append(sources, gridSources...)
	}

	return sources, nil
}

// BuildOptions converts parsed configuration into board options, sources
// included. Callers append their own options, such as a logger.
func BuildOptions(cfg *Config) ([]remotedata.Option, error) {
	sources, err := BuildSources(cfg)
	if err != nil {
		return nil, err
	}

	opts := []remotedata.Option{
		remotedata.WithGraphQLEndpoint(cfg.GraphQL.URL),
		remotedata.WithSources(sources...),
		remotedata.WithPollingInterval(cfg.PollInterval.Duration()),
		remotedata.WithPort(cfg.Port),
	}
	if cfg.Title != "" {
		opts = append(opts, remotedata.WithTitle(cfg.Title))
	}
	if cfg.MaxConcurrency > 0 {
		opts = append(opts, remotedata.WithMaxConcurrency(cfg.MaxConcurrency))
	}
	if len(cfg.GraphQL.Headers) > 0 {
		opts = append(opts, remotedata.WithHeaders(mapToKeyValuePairs(cfg.GraphQL.Headers)...))
	}
	if r := cfg.Readiness; r != nil {
		opts = append(opts, remotedata.WithReadiness(r.URL, r.Interval.Duration(), r.MaxAttempts, BuildCheck(r.Check)))
	}
	return opts, nil
}

// buildSource converts a single SourceConfig to an SDK Source.
func buildSource(sc SourceConfig, defaultTimeout Duration) (remotedata.Source, error) {
	var opts []remotedata.SourceOption

	if len(sc.Variables) > 0 {
		opts = append(opts, remotedata.WithVariables(sc.Variables))
	}
	if sel := buildSelector(sc.Select); sel != nil {
		opts = append(opts, remotedata.WithSelector(sel))
	}

	timeout := sc.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if timeout != 0 {
		opts = append(opts, remotedata.WithTimeout(timeout.Duration()))
	}

	if len(sc.Headers) > 0 {
		opts = append(opts, remotedata.WithSourceHeaders(mapToKeyValuePairs(sc.Headers)...))
	}
	if len(sc.Labels) > 0 {
		opts = append(opts, remotedata.WithLabels(mapToKeyValuePairs(sc.Labels)...))
	}
	if sc.Interval != 0 {
		opts = append(opts, remotedata.WithInterval(sc.Interval.Duration()))
	}

	return remotedata.NewSource(sc.Name, sc.Query, opts...)
}

// buildGridSources expands a GridConfig through the SDK's grid builder.
func buildGridSources(gc GridConfig, defaultTimeout Duration) ([]remotedata.Source, error) {
	opts := []remotedata.GridOption{
		remotedata.WithGridQuery(gc.Query),
		remotedata.WithDimensions(gc.Dimensions),
	}

	if len(gc.Variables) > 0 {
		opts = append(opts, remotedata.WithGridVariables(gc.Variables))
	}
	if sel := buildSelector(gc.Select); sel != nil {
		opts = append(opts, remotedata.WithGridSelector(sel))
	}

	timeout := gc.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if timeout != 0 {
		opts = append(opts, remotedata.WithGridTimeout(timeout.Duration()))
	}

	if len(gc.Headers) > 0 {
		opts = append(opts, remotedata.WithGridHeaders(mapToKeyValuePairs(gc.Headers)...))
	}
	if len(gc.Labels) > 0 {
		opts = append(opts, remotedata.WithGridLabels(mapToKeyValuePairs(gc.Labels)...))
	}
	if gc.Interval != 0 {
		opts = append(opts, remotedata.WithGridInterval(gc.Interval.Duration()))
	}

	return remotedata.NewSourceGrid(gc.Name, opts...)
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

// buildSelector converts SelectorConfig to a Selector.
// Returns nil for default/empty selectors (SDK uses DefaultSelector).
func buildSelector(sc SelectorConfig) remotedata.Selector {
	switch sc.Type {
	case "field":
		return remotedata.FieldSelector(sc.Path)
	case "edges":
		return remotedata.EdgesSelector(sc.Path)
	default:
		return nil
	}
}

// BuildCheck converts CheckConfig to a ReadinessCheck.
// Returns nil for default/empty checks (SDK uses DefaultCheck).
func BuildCheck(cc CheckConfig) remotedata.ReadinessCheck {
	switch cc.Type {
	case "http":
		return remotedata.HTTPStatusCheck
	case "json":
		return remotedata.JSONFieldCheck(cc.Path)
	case "contains":
		return remotedata.ContainsCheck(cc.Text)
	default:
		return nil
	}
}
