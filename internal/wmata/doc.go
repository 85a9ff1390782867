// Package wmata decodes and normalizes responses from the WMATA rail API.
//
// This package is internal to dcmetro. It owns the wire schema of the two
// polled feeds and the pure functions that turn them into display-ready
// records:
//
//   - [DecodeIncidents] / [ParseIncidents]: service incidents to affected line codes
//   - [DecodeTrains] / [ParseTrainTimes]: arrival predictions to a per-station [Snapshot]
//
// Decoding is strict: a payload that is not JSON, or that lacks the top-level
// list, fails with a [*DecodeError] naming the offending field. Individual
// malformed records inside an otherwise valid payload are skipped by the
// parsers instead.
package wmata
