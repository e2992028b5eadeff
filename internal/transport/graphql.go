package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jpalmerr/remotedata/resource"
)

// GraphQLRequest is the JSON body of a GraphQL-over-HTTP POST.
type GraphQLRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// GraphQLResponse is a decoded GraphQL result.
//
// Data is left raw so callers can select the part they store. Errors are the
// server-reported errors and may accompany partial Data.
type GraphQLResponse struct {
	Data       json.RawMessage
	Errors     []resource.ErrorDescriptor
	StatusCode int
	Latency    time.Duration
}

// graphQLEnvelope is the wire shape of a GraphQL response body.
type graphQLEnvelope struct {
	Data   json.RawMessage            `json:"data"`
	Errors []resource.ErrorDescriptor `json:"errors"`
}

// Query POSTs a GraphQL request to url and decodes the response.
//
// A response whose body is a GraphQL envelope is returned without error even
// on a non-2xx status, since servers report request errors that way. An error
// is returned only when the request fails or the body is not a GraphQL result.
func (c *Client) Query(ctx context.Context, url string, gqlReq GraphQLRequest, headers map[string]string, timeout time.Duration) (GraphQLResponse, error) {
	payload, err := json.Marshal(gqlReq)
	if err != nil {
		return GraphQLResponse{}, fmt.Errorf("failed to encode graphql request: %w", err)
	}

	hdrs := make(map[string]string, len(headers)+2)
	for k, v := range headers {
		hdrs[k] = v
	}
	hdrs["Content-Type"] = "application/json"
	if _, ok := hdrs["Accept"]; !ok {
		hdrs["Accept"] = "application/graphql-response+json, application/json"
	}

	resp := c.do(ctx, http.MethodPost, url, hdrs, bytes.NewReader(payload), timeout)
	result := GraphQLResponse{StatusCode: resp.StatusCode, Latency: resp.Latency}
	if resp.Error != nil {
		return result, resp.Error
	}

	var env graphQLEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil || (env.Data == nil && env.Errors == nil) {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return result, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		if err != nil {
			return result, fmt.Errorf("failed to decode graphql response: %w", err)
		}
		return result, fmt.Errorf("graphql response has neither data nor errors")
	}

	result.Data = env.Data
	result.Errors = env.Errors
	return result, nil
}
