package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/dcmetro/internal/stations"
	"github.com/jpalmerr/dcmetro/internal/wmata"
)

const (
	stationsJSONFile     = "stationcodes.json"
	stationsMarkdownFile = "stationcodes.md"
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "Inspect or regenerate the station directory",
}

var stationsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the station table from WMATA",
	Long: `Download the current station list from the WMATA API and write it as
stationcodes.json (the format read by stations_file) and a human-readable
stationcodes.md.

The API key is read from --api-key or the WMATA_API_KEY environment variable.

Example:
  dcmetro stations fetch --out stationcodes`,
	RunE: runStationsFetch,
}

var stationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the station directory",
	Long: `Print every station in the directory as CODE<TAB>NAME.

Example:
  dcmetro stations list --file stationcodes/stationcodes.json`,
	RunE: runStationsList,
}

func init() {
	rootCmd.AddCommand(stationsCmd)
	stationsCmd.AddCommand(stationsFetchCmd, stationsListCmd)

	stationsFetchCmd.Flags().String("api-key", "", "WMATA API key (default $WMATA_API_KEY)")
	stationsFetchCmd.Flags().String("base-url", wmata.DefaultBaseURL, "WMATA API base url")
	stationsFetchCmd.Flags().StringP("out", "o", ".", "directory to write the files to")
	stationsFetchCmd.Flags().Duration("timeout", time.Minute, "give up retrying after this long")

	stationsListCmd.Flags().String("file", "", "jStations JSON file (default: built-in table)")
}

func runStationsFetch(cmd *cobra.Command, args []string) error {
	apiKey, _ := cmd.Flags().GetString("api-key")
	if apiKey == "" {
		apiKey = os.Getenv("WMATA_API_KEY")
	}
	if apiKey == "" {
		return errors.New("an API key is required: set --api-key or WMATA_API_KEY")
	}
	baseURL, _ := cmd.Flags().GetString("base-url")
	outDir, _ := cmd.Flags().GetString("out")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: 30 * time.Second}
	table, err := stations.Fetch(ctx, client, baseURL, apiKey, timeout)
	if err != nil {
		return fmt.Errorf("failed to fetch stations: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	jsonPath := filepath.Join(outDir, stationsJSONFile)
	if err := writeFile(jsonPath, table.WriteJSON); err != nil {
		return err
	}
	mdPath := filepath.Join(outDir, stationsMarkdownFile)
	if err := writeFile(mdPath, table.WriteMarkdown); err != nil {
		return err
	}

	fmt.Printf("Fetched %d stations\n", table.Len())
	fmt.Printf("  %s\n", jsonPath)
	fmt.Printf("  %s\n", mdPath)
	return nil
}

func runStationsList(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	dir, err := stations.Read(path)
	if err != nil {
		return err
	}
	for _, e := range dir.Entries() {
		fmt.Printf("%s\t%s\n", e.Code, e.Name)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
