// Package stations provides the Metrorail station directory.
//
// The directory maps a station code (e.g. "A01") to its display name. It is
// read once per process by [Load] and shared read-only by every session.
// [Fetch] downloads a fresh table from the WMATA API for offline
// regeneration of the file.
package stations
