package remotedata

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jpalmerr/remotedata/internal/transport"
	"github.com/jpalmerr/remotedata/poll"
)

// Status is the readiness state a [ReadinessCheck] reads from a response.
type Status string

const (
	// StatusUp means the API is ready to serve queries.
	StatusUp Status = "up"

	// StatusDown means the API is unreachable or reports an error.
	StatusDown Status = "down"

	// StatusDegraded means the API answers but reports partial health.
	StatusDegraded Status = "degraded"

	// StatusUnknown means the response could not be interpreted.
	StatusUnknown Status = "unknown"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ReadinessCheck maps a health response to a [Status].
//
// Checks should be pure functions of their inputs. They run inside the
// poller's panic recovery: a panicking check counts as a failed attempt.
type ReadinessCheck func(body []byte, statusCode int) Status

// HTTPStatusCheck determines status from the HTTP status code alone.
//
//   - 2xx: [StatusUp]
//   - 4xx: [StatusDegraded]
//   - anything else: [StatusDown]
var HTTPStatusCheck ReadinessCheck = func(body []byte, statusCode int) Status {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusUp
	case statusCode >= 400 && statusCode < 500:
		return StatusDegraded
	default:
		return StatusDown
	}
}

// JSONFieldCheck returns a [ReadinessCheck] that reads a JSON field using
// dot notation, e.g. "data.health.status".
//
// Values map to:
//   - [StatusUp]: "ok", "healthy", "up", "ready", "pass", "true", "green", "operational"
//   - [StatusDegraded]: "degraded", "warning", "partial", "yellow", "amber"
//   - [StatusDown]: any other value
//   - [StatusUnknown]: if the body is not JSON or the field doesn't exist
func JSONFieldCheck(path string) ReadinessCheck {
	parts := strings.Split(path, ".")

	return func(body []byte, statusCode int) Status {
		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			return StatusUnknown
		}

		value := scalarAtPath(data, parts)
		if value == "" {
			return StatusUnknown
		}
		return mapStringToStatus(strings.ToLower(value))
	}
}

// scalarAtPath walks decoded JSON and renders the scalar it finds as a string.
func scalarAtPath(data any, parts []string) string {
	current := data
	for _, part := range parts {
		obj, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = obj[part]
		if !ok {
			return ""
		}
	}

	switch v := current.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		switch v {
		case 0:
			return "false"
		case 1:
			return "true"
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func mapStringToStatus(s string) Status {
	switch s {
	case "ok", "healthy", "up", "ready", "active", "running", "pass", "passed", "true", "green", "operational":
		return StatusUp
	case "degraded", "warning", "partial", "yellow", "amber":
		return StatusDegraded
	default:
		return StatusDown
	}
}

// RegexCheck returns a [ReadinessCheck] that compares the first capture group
// of pattern against upMatch, case-insensitively. No match is [StatusUnknown].
//
// Returns an error if the pattern is invalid.
func RegexCheck(pattern string, upMatch string) (ReadinessCheck, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	return func(body []byte, statusCode int) Status {
		matches := re.FindSubmatch(body)
		if len(matches) < 2 {
			return StatusUnknown
		}
		if strings.EqualFold(string(matches[1]), upMatch) {
			return StatusUp
		}
		return StatusDown
	}, nil
}

// ContainsCheck returns a [ReadinessCheck] that reports [StatusUp] when the
// body contains text (case-insensitive) and [StatusDown] otherwise.
func ContainsCheck(text string) ReadinessCheck {
	lower := strings.ToLower(text)
	return func(body []byte, statusCode int) Status {
		if strings.Contains(strings.ToLower(string(body)), lower) {
			return StatusUp
		}
		return StatusDown
	}
}

// FirstMatch returns a [ReadinessCheck] that tries checks in order and
// returns the first result that is not [StatusUnknown].
func FirstMatch(checks ...ReadinessCheck) ReadinessCheck {
	return func(body []byte, statusCode int) Status {
		for _, check := range checks {
			if status := check(body, statusCode); status != StatusUnknown {
				return status
			}
		}
		return StatusUnknown
	}
}

// DefaultCheck reads a JSON "status" field and falls back to the HTTP status code.
var DefaultCheck = FirstMatch(
	JSONFieldCheck("status"),
	HTTPStatusCheck,
)

// HTTPProbe returns a [poll.Probe] that GETs url and reports whether check
// maps the response to [StatusUp]. A nil check uses [DefaultCheck]. Each
// request is bounded by timeout; zero means only the poll context bounds it.
//
// Example:
//
//	res, err := poll.Poll(ctx,
//	    remotedata.HTTPProbe("http://localhost:4000/healthz", nil, 2*time.Second),
//	    time.Second, 10)
func HTTPProbe(url string, check ReadinessCheck, timeout time.Duration) poll.Probe {
	return httpProbe(transport.NewClient(), url, nil, check, timeout)
}

func httpProbe(client *transport.Client, url string, headers map[string]string, check ReadinessCheck, timeout time.Duration) poll.Probe {
	if check == nil {
		check = DefaultCheck
	}
	return func(ctx context.Context) bool {
		resp := client.Fetch(ctx, "", url, headers, timeout)
		if resp.Error != nil {
			return false
		}
		return check(resp.Body, resp.StatusCode) == StatusUp
	}
}

// readinessQuery is the smallest document every GraphQL server can answer.
const readinessQuery = "{ __typename }"

// graphQLProbe reports ready once endpoint answers a GraphQL request with a
// decodable GraphQL response, whatever its errors say.
func graphQLProbe(client *transport.Client, endpoint string, headers map[string]string, timeout time.Duration) poll.Probe {
	req := transport.GraphQLRequest{Query: readinessQuery}
	return func(ctx context.Context) bool {
		_, err := client.Query(ctx, endpoint, req, headers, timeout)
		return err == nil
	}
}
