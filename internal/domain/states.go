package domain

import (
	"strconv"
	"strings"
)

// stateFIPS maps full state names to two-digit FIPS codes.
var stateFIPS = map[string]string{
	"Alabama": "01", "Alaska": "02", "Arizona": "04", "Arkansas": "05",
	"California": "06", "Colorado": "08", "Connecticut": "09", "Delaware": "10",
	"District of Columbia": "11", "Florida": "12", "Georgia": "13", "Hawaii": "15",
	"Idaho": "16", "Illinois": "17", "Indiana": "18", "Iowa": "19", "Kansas": "20",
	"Kentucky": "21", "Louisiana": "22", "Maine": "23", "Maryland": "24",
	"Massachusetts": "25", "Michigan": "26", "Minnesota": "27", "Mississippi": "28",
	"Missouri": "29", "Montana": "30", "Nebraska": "31", "Nevada": "32",
	"New Hampshire": "33", "New Jersey": "34", "New Mexico": "35", "New York": "36",
	"North Carolina": "37", "North Dakota": "38", "Ohio": "39", "Oklahoma": "40",
	"Oregon": "41", "Pennsylvania": "42", "Rhode Island": "44",
	"South Carolina": "45", "South Dakota": "46", "Tennessee": "47", "Texas": "48",
	"Utah": "49", "Vermont": "50", "Virginia": "51", "Washington": "53",
	"West Virginia": "54", "Wisconsin": "55", "Wyoming": "56",
	"Puerto Rico": "72",
}

// stateAbbrevs maps USPS abbreviations to full state names.
var stateAbbrevs = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"DC": "District of Columbia", "FL": "Florida", "GA": "Georgia", "HI": "Hawaii",
	"ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine",
	"MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska",
	"NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico",
	"NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island",
	"SC": "South Carolina", "SD": "South Dakota", "TN": "Tennessee", "TX": "Texas",
	"UT": "Utah", "VT": "Vermont", "VA": "Virginia", "WA": "Washington",
	"WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming", "PR": "Puerto Rico",
}

var (
	// stateNamesFolded indexes stateFIPS by lower-cased name.
	stateNamesFolded = make(map[string]string, len(stateFIPS))
	// knownFIPS is the set of valid two-digit codes.
	knownFIPS = make(map[string]string, len(stateFIPS))
)

func init() {
	for name, code := range stateFIPS {
		stateNamesFolded[strings.ToLower(name)] = code
		knownFIPS[code] = name
	}
}

// ResolveStateFIPS converts a state identifier to its two-digit FIPS code.
// It accepts a full state name ("Alabama"), a USPS abbreviation ("AL"), or
// a FIPS code ("1", "01"). Matching is case-insensitive and trims
// surrounding whitespace.
func ResolveStateFIPS(state string) (string, bool) {
	state = strings.TrimSpace(state)
	if state == "" {
		return "", false
	}

	if n, err := strconv.Atoi(state); err == nil {
		if n <= 0 || n > 99 {
			return "", false
		}
		code := strconv.Itoa(n)
		if len(code) == 1 {
			code = "0" + code
		}
		_, ok := knownFIPS[code]
		return code, ok
	}

	if len(state) == 2 {
		if name, ok := stateAbbrevs[strings.ToUpper(state)]; ok {
			return stateFIPS[name], true
		}
	}

	code, ok := stateNamesFolded[strings.ToLower(collapseSpaces(state))]
	return code, ok
}

// StateName returns the full state name for a two-digit FIPS code.
func StateName(fips string) (string, bool) {
	name, ok := knownFIPS[fips]
	return name, ok
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
