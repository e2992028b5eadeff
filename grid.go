package remotedata

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NewSourceGrid creates multiple sources from one query and a set of
// dimensions using cartesian product expansion.
//
// Every combination of dimension values becomes one [Source]. The values are
// passed as GraphQL variables named after their dimension keys, so the query
// declares them like any other variable. Static variables from
// [WithGridVariables] are sent too; dimension values win on collision.
//
// Each source name includes dimension values in the format
// "Base Name (val1/val2)" (values ordered by sorted keys).
//
// Labels are added from dimension values. Static labels from
// [WithGridLabels] take precedence over dimension labels on collision.
//
// Example:
//
//	sources, err := remotedata.NewSourceGrid("Formulary",
//	    remotedata.WithGridQuery(`query($plan: ID!, $tier: Int!) { drugs(plan: $plan, tier: $tier) { id } }`),
//	    remotedata.WithDimensions(map[string][]string{
//	        "plan": {"basic", "plus"},
//	        "tier": {"1", "2"},
//	    }),
//	)
//	// Returns 4 sources, usable with WithSources(sources...)
func NewSourceGrid(baseName string, opts ...GridOption) ([]Source, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, errors.New("base name cannot be empty")
	}

	cfg := &gridConfig{
		staticLabels: make(map[string]string),
		headers:      make(map[string]string),
		variables:    make(map[string]any),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if strings.TrimSpace(cfg.query) == "" {
		return nil, errors.New("query required")
	}
	if len(cfg.dimensions) == 0 {
		return nil, errors.New("at least one dimension required")
	}

	combinations := cartesianProduct(cfg.dimensions)
	if len(combinations) == 0 {
		return nil, nil
	}

	sources := make([]Source, 0, len(combinations))
	for _, combo := range combinations {
		name := formatSourceName(baseName, combo)

		vars := make(map[string]any, len(cfg.variables)+len(combo))
		for k, v := range cfg.variables {
			vars[k] = v
		}
		for k, v := range combo {
			vars[k] = v
		}

		// dimension labels first, static overrides
		labels := mergeMaps(combo, cfg.staticLabels)

		srcOpts := []SourceOption{
			WithVariables(vars),
			WithLabels(flattenMap(labels)...),
		}
		if len(cfg.headers) > 0 {
			srcOpts = append(srcOpts, WithSourceHeaders(flattenMap(cfg.headers)...))
		}
		if cfg.timeout > 0 {
			srcOpts = append(srcOpts, WithTimeout(cfg.timeout))
		}
		if cfg.selector != nil {
			srcOpts = append(srcOpts, WithSelector(cfg.selector))
		}
		if cfg.interval > 0 {
			srcOpts = append(srcOpts, WithInterval(cfg.interval))
		}

		src, err := NewSource(name, cfg.query, srcOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create source '%s': %w", name, err)
		}
		sources = append(sources, src)
	}

	return sources, nil
}

// cartesianProduct returns every combination of dimension values, keys
// walked in sorted order and values in slice order. For
// {"x": ["a","b"], "y": ["1","2"]} that is a1, a2, b1, b2.
//
// A nil result means there is nothing to expand.
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	combos := []map[string]string{{}}
	for _, key := range sortedKeys(dims) {
		values := dims[key]
		if len(values) == 0 {
			return nil
		}
		next := make([]map[string]string, 0, len(combos)*len(values))
		for _, partial := range combos {
			for _, v := range values {
				combo := make(map[string]string, len(partial)+1)
				for k, pv := range partial {
					combo[k] = pv
				}
				combo[key] = v
				next = append(next, combo)
			}
		}
		combos = next
	}
	return combos
}

// formatSourceName creates a name in the format "Base (v1/v2)".
func formatSourceName(baseName string, combo map[string]string) string {
	keys := sortedKeys(combo)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = combo[k]
	}
	return fmt.Sprintf("%s (%s)", baseName, strings.Join(parts, "/"))
}

// mergeMaps merges multiple maps, with later maps taking precedence.
func mergeMaps(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// flattenMap converts a map to key-value pairs in sorted key order.
func flattenMap(m map[string]string) []string {
	result := make([]string, 0, len(m)*2)
	for _, k := range sortedKeys(m) {
		result = append(result, k, m[k])
	}
	return result
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
