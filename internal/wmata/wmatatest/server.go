// Package wmatatest provides a fake WMATA rail API for local development and
// tests. It serves the incidents, predictions and station list endpoints
// with randomized but well-formed payloads.
package wmatatest

import (
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jpalmerr/dcmetro/internal/stations"
	"github.com/jpalmerr/dcmetro/internal/wmata"
	"github.com/jpalmerr/dcmetro/stationcodes"
)

// terminals lists the end-of-line station codes trains are bound for.
var terminals = map[string][]string{
	"RD": {"A15", "B11"},
	"BL": {"J03", "G05"},
	"OR": {"K08", "D13"},
	"SV": {"N12", "G05"},
	"GR": {"F11", "E10"},
	"YL": {"C15", "E06"},
}

var sampleIncidents = []wmata.Incident{
	{Description: "Red Line: Trains single tracking between Dupont Circle and Farragut North due to a disabled train.", LinesAffected: "RD;"},
	{Description: "Blue/Orange/Silver Line: Expect residual delays due to an earlier track problem at Foggy Bottom.", LinesAffected: "BL; OR; SV;"},
	{Description: "Green/Yellow Line: Trains operating every 20 minutes due to scheduled maintenance.", LinesAffected: "GR; YL;"},
}

// Handler serves the fake API.
type Handler struct {
	apiKey   string
	failRate float64
	dir      *stations.Directory
	logger   *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a [Handler].
type Option func(*Handler)

// WithAPIKey rejects requests whose api_key differs with 401.
func WithAPIKey(key string) Option {
	return func(h *Handler) { h.apiKey = key }
}

// WithFailRate answers the given fraction of requests with 500.
func WithFailRate(rate float64) Option {
	return func(h *Handler) { h.failRate = rate }
}

// WithSeed makes responses reproducible.
func WithSeed(seed uint64) Option {
	return func(h *Handler) { h.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithLogger logs every request at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler creates a [Handler] backed by the built-in station table.
func NewHandler(opts ...Option) (*Handler, error) {
	dir, err := stations.Read("")
	if err != nil {
		return nil, err
	}
	h := &Handler{
		dir:    dir,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("mock request", "path", r.URL.Path)

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.apiKey != "" && r.URL.Query().Get("api_key") != h.apiKey {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"statusCode": 401,
			"message":    "Access denied due to invalid subscription key.",
		})
		return
	}
	if h.fail() {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	switch {
	case r.URL.Path == "/Incidents.svc/json/Incidents":
		writeJSON(w, http.StatusOK, map[string]any{"Incidents": h.incidents()})
	case strings.HasPrefix(r.URL.Path, "/StationPrediction.svc/json/GetPrediction/"):
		codes := strings.Split(strings.TrimPrefix(r.URL.Path, "/StationPrediction.svc/json/GetPrediction/"), ",")
		writeJSON(w, http.StatusOK, map[string]any{"Trains": h.predictions(codes)})
	case r.URL.Path == "/Rail.svc/json/jStations":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Stations":`))
		_, _ = w.Write(stationcodes.JSON)
		_, _ = w.Write([]byte(`}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) fail() bool {
	if h.failRate <= 0 {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64() < h.failRate
}

func (h *Handler) intn(n int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.IntN(n)
}

func (h *Handler) incidents() []wmata.Incident {
	n := h.intn(len(sampleIncidents) + 1)
	out := make([]wmata.Incident, 0, n)
	start := h.intn(len(sampleIncidents))
	for i := range n {
		out = append(out, sampleIncidents[(start+i)%len(sampleIncidents)])
	}
	return out
}

// predictions returns a few trains per known station, soonest first.
func (h *Handler) predictions(codes []string) []wmata.Prediction {
	var out []wmata.Prediction
	for _, code := range codes {
		entry, err := h.dir.Lookup(code)
		if err != nil || len(entry.Lines) == 0 {
			continue
		}

		var trains []wmata.Prediction
		for range 3 + h.intn(3) {
			line := entry.Lines[h.intn(len(entry.Lines))]
			ends := terminals[line]
			dest := ends[h.intn(len(ends))]
			destName, _ := h.dir.Name(dest)
			trains = append(trains, wmata.Prediction{
				LocationCode:    entry.Code,
				LocationName:    entry.Name,
				Destination:     abbreviate(destName),
				DestinationName: destName,
				DestinationCode: dest,
				Line:            line,
				Group:           strconv.Itoa(1 + h.intn(2)),
				Car:             []string{"6", "8"}[h.intn(2)],
				Min:             strconv.Itoa(h.intn(25)),
			})
		}

		sort.SliceStable(trains, func(i, j int) bool {
			a, _ := strconv.Atoi(trains[i].Min)
			b, _ := strconv.Atoi(trains[j].Min)
			return a < b
		})
		for i := range trains {
			switch trains[i].Min {
			case "0":
				trains[i].Min = wmata.MinBoarding
			case "1":
				trains[i].Min = wmata.MinArriving
			}
		}
		out = append(out, trains...)
	}
	if out == nil {
		out = []wmata.Prediction{}
	}
	return out
}

// abbreviate shortens a station name the way the feed's Destination field
// does, e.g. "Shady Grove" to "Shady Gr".
func abbreviate(name string) string {
	r := []rune(name)
	if len(r) <= 8 {
		return name
	}
	return strings.TrimSpace(string(r[:8]))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
