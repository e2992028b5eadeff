package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/remotedata"
	"github.com/jpalmerr/remotedata/example/mockgql"
)

func main() {
	// start the mock GraphQL API (see mockgql)
	go func() {
		srv := &http.Server{Addr: ":9999", Handler: mockgql.Handler(2 * time.Second), ReadHeaderTimeout: 10 * time.Second}
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("mock server error", "error", err)
		}
	}()

	// grid API: 2 plans × 2 tiers = 4 sources from one declaration
	sources, err := remotedata.NewSourceGrid("Formulary",
		remotedata.WithGridQuery(`query($plan: String!, $tier: String!) { drugs(plan: $plan, tier: $tier) { id name tier } }`),
		remotedata.WithDimensions(map[string][]string{
			"plan": {"basic", "plus"},
			"tier": {"1", "2"},
		}),
		remotedata.WithGridInterval(20*time.Second),
	)
	if err != nil {
		slog.Error("failed to create source grid", "error", err)
		os.Exit(1)
	}

	pharmacies, _ := remotedata.NewSource("Pharmacies",
		`query($zip: String!) { pharmacies(zip: $zip) { id name zip } }`,
		remotedata.WithVariables(map[string]any{"zip": "94103"}),
		remotedata.WithInterval(5*time.Second),
	)
	prescriptions, _ := remotedata.NewSource("Prescriptions",
		`query { patient(id: "p1") { prescriptions { edges { node { id refills } } } } }`,
		remotedata.WithSelector(remotedata.EdgesSelector("patient.prescriptions")),
	)
	sources = append(sources, pharmacies, prescriptions)

	b, err := remotedata.New(
		remotedata.WithGraphQLEndpoint("http://localhost:9999/graphql"),
		remotedata.WithSources(sources...),
		remotedata.WithPollingInterval(10*time.Second),
		remotedata.WithReadiness("http://localhost:9999/healthz", 500*time.Millisecond, 20, remotedata.JSONFieldCheck("status")),
		remotedata.WithPort(8080),
		remotedata.WithTitle("Prescribing Data"),
		remotedata.WithChangeCallback(func(c remotedata.Change) {
			if !c.State.IsLoading && c.State.HasErrors() {
				slog.Warn("resource reported errors", "resource", c.Name, "count", len(c.State.Errors))
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create board", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  remotedata demo")
	fmt.Println()
	fmt.Println("  Dashboard:  http://localhost:8080")
	fmt.Println("  API:        http://localhost:8080/api/resources")
	fmt.Println("  Sources:    4 formulary (grid), pharmacies (5s), prescriptions")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Start(ctx); err != nil {
		slog.Error("remotedata error", "error", err)
		os.Exit(1)
	}
}
