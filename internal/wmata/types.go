package wmata

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Feed names used in logs and errors.
const (
	FeedIncidents  = "incidents"
	FeedTrainTimes = "train_times"
)

// Incident is a single entry of the Incidents.svc response.
type Incident struct {
	Description   string `json:"Description"`
	LinesAffected string `json:"LinesAffected"`
}

// Prediction is a single entry of the GetPrediction response.
//
// Min is either a whole number of minutes or one of the sentinel tokens
// [MinBoarding] and [MinArriving]. DestinationCode may be null upstream; it
// decodes to the empty string.
type Prediction struct {
	LocationCode    string `json:"LocationCode"`
	LocationName    string `json:"LocationName"`
	Destination     string `json:"Destination"`
	DestinationName string `json:"DestinationName"`
	DestinationCode string `json:"DestinationCode"`
	Line            string `json:"Line"`
	Group           string `json:"Group"`
	Car             string `json:"Car"`
	Min             string `json:"Min"`
}

// DecodeError reports a payload that could not be decoded into the expected
// schema. Field names the JSON path that failed, or is empty when the body is
// not valid JSON at all.
type DecodeError struct {
	Feed  string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode %s response: %v", e.Feed, e.Err)
	}
	return fmt.Sprintf("decode %s response: field %q: %v", e.Feed, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var errMissingField = errors.New("missing required field")

// DecodeIncidents decodes an Incidents.svc body.
//
// The top-level "Incidents" list is required; an empty list is valid.
func DecodeIncidents(body []byte) ([]Incident, error) {
	var raw struct {
		Incidents *[]Incident `json:"Incidents"`
	}
	if err := decodeStrict(FeedIncidents, body, &raw); err != nil {
		return nil, err
	}
	if raw.Incidents == nil {
		return nil, &DecodeError{Feed: FeedIncidents, Field: "Incidents", Err: errMissingField}
	}
	return *raw.Incidents, nil
}

// DecodeTrains decodes a GetPrediction body.
//
// The top-level "Trains" list is required; an empty list is valid.
func DecodeTrains(body []byte) ([]Prediction, error) {
	var raw struct {
		Trains *[]Prediction `json:"Trains"`
	}
	if err := decodeStrict(FeedTrainTimes, body, &raw); err != nil {
		return nil, err
	}
	if raw.Trains == nil {
		return nil, &DecodeError{Feed: FeedTrainTimes, Field: "Trains", Err: errMissingField}
	}
	return *raw.Trains, nil
}

// decodeStrict unmarshals body into v, converting type mismatches into a
// DecodeError that names the offending field.
func decodeStrict(feed string, body []byte, v any) error {
	err := json.Unmarshal(body, v)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "."
		}
		return &DecodeError{
			Feed:  feed,
			Field: field,
			Err:   fmt.Errorf("expected %s, got JSON %s", typeErr.Type, typeErr.Value),
		}
	}
	return &DecodeError{Feed: feed, Err: err}
}
