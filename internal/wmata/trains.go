package wmata

import (
	"slices"
	"strconv"
)

// Sentinel arrival tokens. Both count as zero minutes when filtering.
const (
	MinBoarding = "BRD"
	MinArriving = "ARR"
)

// Placeholder values the feed uses for trains without a real destination or
// line assignment.
const (
	placeholderDestinationName = "Train"
	placeholderLine            = "--"
)

// Train is a normalized arrival prediction.
type Train struct {
	Origin          string `json:"origin"`
	Destination     string `json:"destination"`
	DestinationName string `json:"destination_name"`
	DestinationCode string `json:"destination_code"`
	Line            string `json:"line"`
	Min             string `json:"min"`
}

// StationTrains is the list of upcoming trains for one station, in feed
// order.
type StationTrains struct {
	StationCode string  `json:"station_code"`
	StationName string  `json:"station_name"`
	Trains      []Train `json:"trains"`
}

// Snapshot maps a station code to its upcoming trains. A snapshot produced
// by [ParseTrainTimes] has exactly one entry per configured station.
type Snapshot map[string]StationTrains

// Truncate returns a copy of the snapshot holding at most max trains per
// station. A max of zero or less returns an unbounded copy.
func (s Snapshot) Truncate(max int) Snapshot {
	out := make(Snapshot, len(s))
	for code, st := range s {
		trains := st.Trains
		if max > 0 && len(trains) > max {
			trains = trains[:max]
		}
		st.Trains = slices.Clone(trains)
		if st.Trains == nil {
			st.Trains = []Train{}
		}
		out[code] = st
	}
	return out
}

// NameLookup resolves a station code to its display name.
type NameLookup interface {
	Name(code string) (string, bool)
}

// TrainFilter carries the per-session rules applied to predictions.
type TrainFilter struct {
	// Stations are the configured station codes; each gets a snapshot entry.
	Stations []string

	// ExcludedDestinations drops trains bound for any of these codes.
	ExcludedDestinations []string

	// HideLessThan drops trains arriving in fewer minutes. Zero disables it.
	HideLessThan int

	// FullDestinationNames resolves destinations through the station
	// directory instead of using the feed's short destination.
	FullDestinationNames bool
}

// ParseTrainTimes normalizes a batch of predictions into a [Snapshot].
//
// Records with no destination code, or for a station that was not asked
// for, are skipped. The remaining records are kept in feed order when they
// pass every filter in f.
func ParseTrainTimes(predictions []Prediction, f TrainFilter, names NameLookup) Snapshot {
	snapshot := make(Snapshot, len(f.Stations))
	for _, code := range f.Stations {
		if _, ok := snapshot[code]; ok {
			continue
		}
		name, _ := lookupName(names, code)
		snapshot[code] = StationTrains{
			StationCode: code,
			StationName: name,
			Trains:      []Train{},
		}
	}

	for _, p := range predictions {
		if p.DestinationCode == "" {
			continue
		}
		station, ok := snapshot[p.LocationCode]
		if !ok {
			continue
		}
		if !f.keep(p) {
			continue
		}

		station.Trains = append(station.Trains, Train{
			Origin:          p.LocationCode,
			Destination:     f.displayDestination(p, names),
			DestinationName: p.DestinationName,
			DestinationCode: p.DestinationCode,
			Line:            p.Line,
			Min:             p.Min,
		})
		snapshot[p.LocationCode] = station
	}

	return snapshot
}

func (f TrainFilter) keep(p Prediction) bool {
	return !slices.Contains(f.ExcludedDestinations, p.DestinationCode) &&
		f.meetsThreshold(p.Min) &&
		p.DestinationCode != "" &&
		p.DestinationName != placeholderDestinationName &&
		p.Line != placeholderLine &&
		p.Min != ""
}

// meetsThreshold reports whether an arrival token is at or above the
// configured minimum. Tokens that are neither sentinels nor numbers pass.
func (f TrainFilter) meetsThreshold(min string) bool {
	if f.HideLessThan == 0 {
		return true
	}
	minutes, ok := ArrivalMinutes(min)
	if !ok {
		return true
	}
	return minutes >= f.HideLessThan
}

func (f TrainFilter) displayDestination(p Prediction, names NameLookup) string {
	if !f.FullDestinationNames {
		return p.Destination
	}
	if name, ok := lookupName(names, p.DestinationCode); ok {
		return name
	}
	return p.DestinationName
}

// ArrivalMinutes converts an arrival token to minutes. Sentinel tokens are
// zero; ok is false for tokens that are not numbers.
func ArrivalMinutes(min string) (minutes int, ok bool) {
	if min == MinBoarding || min == MinArriving {
		return 0, true
	}
	n, err := strconv.Atoi(min)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupName(names NameLookup, code string) (string, bool) {
	if names == nil {
		return "", false
	}
	return names.Name(code)
}
