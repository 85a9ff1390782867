// Standalone mock WMATA API for running the CLI without an API key.
//
// Usage:
//
//	go run ./example/cmd/mockwmata
//
// Then in another terminal:
//
//	go run ./cmd/dcmetro serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/dcmetro/internal/wmata/wmatatest"
)

var rootCmd = &cobra.Command{
	Use:          "mockwmata",
	Short:        "Serve a fake WMATA rail API",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().String("addr", ":9999", "listen address")
	rootCmd.Flags().String("api-key", "", "reject requests with a different api_key")
	rootCmd.Flags().Float64("fail-rate", 0, "fraction of requests answered with 500")
}

func run(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	apiKey, _ := cmd.Flags().GetString("api-key")
	failRate, _ := cmd.Flags().GetFloat64("fail-rate")

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h, err := wmatatest.NewHandler(
		wmatatest.WithAPIKey(apiKey),
		wmatatest.WithFailRate(failRate),
		wmatatest.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	fmt.Printf("Mock WMATA API starting on %s\n", addr)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
