package stations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jpalmerr/dcmetro/internal/wmata"
)

const maxFetchBodySize = 4 << 20

// Table is a station list downloaded from the jStations endpoint.
type Table struct {
	FetchedAt time.Time
	records   []record
}

// Fetch downloads the station list, retrying transient failures with
// exponential backoff until ctx is done or maxElapsed passes.
func Fetch(ctx context.Context, client *http.Client, baseURL, apiKey string, maxElapsed time.Duration) (*Table, error) {
	if client == nil {
		client = http.DefaultClient
	}
	endpoint := wmata.StationsURL(baseURL, apiKey)

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("station list rejected with status %d", resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return fmt.Errorf("station list returned status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxFetchBodySize))
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}

	var raw struct {
		Stations []record `json:"Stations"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &wmata.DecodeError{Feed: "stations", Err: err}
	}
	if raw.Stations == nil {
		return nil, &wmata.DecodeError{Feed: "stations", Field: "Stations", Err: fmt.Errorf("missing required field")}
	}

	return &Table{FetchedAt: time.Now(), records: raw.Stations}, nil
}

// Len returns the number of stations in the table.
func (t *Table) Len() int {
	return len(t.records)
}

// Directory indexes the table.
func (t *Table) Directory() (*Directory, error) {
	data, err := json.Marshal(t.records)
	if err != nil {
		return nil, err
	}
	return Parse("<fetched>", data)
}

// WriteJSON writes the table in the format [Read] accepts.
func (t *Table) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(t.records)
}

// WriteMarkdown writes a human-readable station table.
func (t *Table) WriteMarkdown(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# CURRENT AS OF %s\n\n", t.FetchedAt.Format("2006-01-02"))
	b.WriteString("| Index | Name | Lines | Code | Shares Station |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for i, r := range t.records {
		e := r.entry()
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			i+1, e.Name, strings.Join(e.Lines, " "), e.Code, strings.Join(e.Together, " "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
