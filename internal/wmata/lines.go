package wmata

import "strings"

// LineCodes lists the Metrorail line codes in the order incidents are
// scanned for them.
var LineCodes = []string{"BL", "GR", "OR", "RD", "SV", "YL"}

var lineNames = map[string]string{
	"BL": "Blue",
	"GR": "Green",
	"OR": "Orange",
	"RD": "Red",
	"SV": "Silver",
	"YL": "Yellow",
}

var lineColors = map[string]string{
	"BL": "DeepSkyBlue",
	"GR": "Green",
	"OR": "Orange",
	"RD": "Red",
	"SV": "Snow",
	"YL": "Yellow",
}

// LineName returns the colour name of a line code, or the code itself when
// it is not a known line.
func LineName(code string) string {
	if name, ok := lineNames[code]; ok {
		return name
	}
	return code
}

// LineColor returns a CSS colour for a line code, or the empty string.
func LineColor(code string) string {
	return lineColors[code]
}

// SummarizeLines renders the affected lines as a sentence, e.g.
// "Incidents Reported On Red, Blue, and Orange Lines".
func SummarizeLines(codes []string) string {
	switch len(codes) {
	case 0:
		return "No Incidents Reported"
	case 1:
		return "Incident Reported On " + LineName(codes[0]) + " Line"
	}

	names := make([]string, len(codes))
	for i, code := range codes {
		names[i] = LineName(code)
	}

	var list string
	if len(names) == 2 {
		list = names[0] + " and " + names[1]
	} else {
		list = strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
	return "Incidents Reported On " + list + " Lines"
}
