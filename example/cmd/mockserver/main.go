// Standalone mock GraphQL server for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/remotedata serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jpalmerr/remotedata/example/mockgql"
)

func main() {
	fmt.Println("Mock GraphQL server starting on :9999")
	fmt.Println("  POST /graphql   pharmacies, drugs, patient.prescriptions")
	fmt.Println("  GET  /healthz   ready after 3s")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	srv := &http.Server{
		Addr:              ":9999",
		Handler:           mockgql.Handler(3 * time.Second),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
