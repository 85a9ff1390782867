// Package stationcodes embeds the Metrorail station table shipped with the
// repository. Regenerate it with "dcmetro stations fetch".
package stationcodes

import _ "embed"

// JSON is the contents of stationcodes.json.
//
//go:embed stationcodes.json
var JSON []byte
