package wmata

import (
	"net/url"
	"strings"
)

// DefaultBaseURL is the production WMATA API host.
const DefaultBaseURL = "https://api.wmata.com"

const (
	incidentsPath   = "/Incidents.svc/json/Incidents"
	predictionsPath = "/StationPrediction.svc/json/GetPrediction/"
	stationsPath    = "/Rail.svc/json/jStations"
)

// IncidentsURL returns the rail incidents endpoint for the given API key.
func IncidentsURL(baseURL, apiKey string) string {
	return withKey(baseURL+incidentsPath, apiKey)
}

// PredictionsURL returns the next-train predictions endpoint for the given
// station codes. Codes are joined with commas, in the order given.
func PredictionsURL(baseURL, apiKey string, stationCodes []string) string {
	codes := make([]string, len(stationCodes))
	for i, code := range stationCodes {
		codes[i] = url.PathEscape(code)
	}
	return withKey(baseURL+predictionsPath+strings.Join(codes, ","), apiKey)
}

// StationsURL returns the rail station list endpoint.
func StationsURL(baseURL, apiKey string) string {
	return withKey(baseURL+stationsPath, apiKey)
}

func withKey(endpoint, apiKey string) string {
	return endpoint + "?" + url.Values{"api_key": {apiKey}}.Encode()
}

// RedactURL masks the api_key query parameter so URLs can be logged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("api_key") == "" {
		return raw
	}
	q.Set("api_key", "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}
