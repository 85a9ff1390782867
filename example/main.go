// Example of embedding dcmetro as a library against a local fake WMATA API.
//
//	go run ./example
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/dcmetro"
	"github.com/jpalmerr/dcmetro/internal/wmata/wmatatest"
)

const mockAddr = "localhost:9999"

func main() {
	mock, err := wmatatest.NewHandler(wmatatest.WithFailRate(0.05))
	if err != nil {
		slog.Error("failed to create mock", "error", err)
		os.Exit(1)
	}
	ln, err := net.Listen("tcp", mockAddr)
	if err != nil {
		slog.Error("failed to start mock", "error", err)
		os.Exit(1)
	}
	go func() { _ = http.Serve(ln, mock) }()

	hallway, err := dcmetro.NewSession("hallway", "demo",
		dcmetro.WithStations("A01", "C01"),
		dcmetro.WithIncidentsInterval(20*time.Second),
		dcmetro.WithTrainTimesInterval(10*time.Second),
	)
	if err != nil {
		slog.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	// a second board with its own filters; its breaker recovers after outages
	commute, err := dcmetro.NewSession("commute", "demo",
		dcmetro.WithStations("B35", "E03"),
		dcmetro.WithShowIncidents(false),
		dcmetro.WithHideTrainTimesLessThan(3),
		dcmetro.WithMaxTrainTimesPerStation(3),
		dcmetro.WithTrainTimesInterval(10*time.Second),
		dcmetro.WithBreaker(dcmetro.BreakerConfig{Policy: dcmetro.BreakerCooldown}),
	)
	if err != nil {
		slog.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	board, err := dcmetro.New(
		dcmetro.WithSessions(hallway, commute),
		dcmetro.WithBaseURL("http://"+mockAddr),
		dcmetro.WithPort(8080),
		dcmetro.WithEventCallback(func(e dcmetro.Event) {
			if e.Kind == dcmetro.EventPollingHalted {
				slog.Warn("session halted", "session", e.Identifier)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create board", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  dcmetro demo")
	fmt.Println()
	fmt.Println("  http://localhost:8080/?session=hallway   Metro Center, incidents")
	fmt.Println("  http://localhost:8080/?session=commute   NoMa and U Street, filtered")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := board.Start(ctx); err != nil {
		slog.Error("dcmetro error", "error", err)
		os.Exit(1)
	}
}
