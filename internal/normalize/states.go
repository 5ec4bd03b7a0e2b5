package normalize

import (
	"regexp"
	"strings"
)

// stateNames maps upper-cased state and territory names to USPS codes.
var stateNames = map[string]string{
	"ALABAMA": "AL", "ALASKA": "AK", "ARIZONA": "AZ", "ARKANSAS": "AR",
	"CALIFORNIA": "CA", "COLORADO": "CO", "CONNECTICUT": "CT", "DELAWARE": "DE",
	"FLORIDA": "FL", "GEORGIA": "GA", "HAWAII": "HI", "IDAHO": "ID",
	"ILLINOIS": "IL", "INDIANA": "IN", "IOWA": "IA", "KANSAS": "KS",
	"KENTUCKY": "KY", "LOUISIANA": "LA", "MAINE": "ME", "MARYLAND": "MD",
	"MASSACHUSETTS": "MA", "MICHIGAN": "MI", "MINNESOTA": "MN", "MISSISSIPPI": "MS",
	"MISSOURI": "MO", "MONTANA": "MT", "NEBRASKA": "NE", "NEVADA": "NV",
	"NEW HAMPSHIRE": "NH", "NEW JERSEY": "NJ", "NEW MEXICO": "NM", "NEW YORK": "NY",
	"NORTH CAROLINA": "NC", "NORTH DAKOTA": "ND", "OHIO": "OH", "OKLAHOMA": "OK",
	"OREGON": "OR", "PENNSYLVANIA": "PA", "RHODE ISLAND": "RI", "SOUTH CAROLINA": "SC",
	"SOUTH DAKOTA": "SD", "TENNESSEE": "TN", "TEXAS": "TX", "UTAH": "UT",
	"VERMONT": "VT", "VIRGINIA": "VA", "WASHINGTON": "WA", "WEST VIRGINIA": "WV",
	"WISCONSIN": "WI", "WYOMING": "WY",
	"DISTRICT OF COLUMBIA": "DC", "WASHINGTON DC": "DC", "WASHINGTON D C": "DC",
	"PUERTO RICO": "PR", "VIRGIN ISLANDS": "VI", "US VIRGIN ISLANDS": "VI",
	"U S VIRGIN ISLANDS": "VI", "GUAM": "GU", "AMERICAN SAMOA": "AS",
	"NORTHERN MARIANA ISLANDS": "MP", "COMMONWEALTH OF THE NORTHERN MARIANA ISLANDS": "MP",
}

// stateCodes is the set of recognized two-letter codes.
var stateCodes = func() map[string]bool {
	m := make(map[string]bool, len(stateNames))
	for _, code := range stateNames {
		m[code] = true
	}
	return m
}()

var (
	stateWordRe     = regexp.MustCompile(`\b([A-Z]{2})\b`)
	statePunctRe    = regexp.MustCompile(`[.\-_,]`)
	stateMultiSpace = regexp.MustCompile(`\s{2,}`)
)

// IsStateCode reports whether code is a recognized two-letter code.
func IsStateCode(code string) bool {
	return stateCodes[code]
}

// State maps a state name or abbreviation to its two-letter code. Values
// that cannot be resolved are returned trimmed but otherwise unchanged with
// known=false, so downstream scoring treats the state as indeterminate.
func State(raw string) (code string, known bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	upper := strings.ToUpper(s)
	if len(upper) == 2 && stateCodes[upper] {
		return upper, true
	}

	cleaned := statePunctRe.ReplaceAllString(upper, " ")
	cleaned = strings.TrimSpace(stateMultiSpace.ReplaceAllString(cleaned, " "))
	if code, ok := stateNames[cleaned]; ok {
		return code, true
	}

	// "Tulsa, OK" or "OK - Oklahoma": take the last embedded code that is
	// recognized. Only upper-case input qualifies, so words like "in" or
	// "or" in free text are never read as states.
	if matches := stateWordRe.FindAllStringSubmatch(s, -1); len(matches) > 0 {
		for i := len(matches) - 1; i >= 0; i-- {
			if stateCodes[matches[i][1]] {
				return matches[i][1], true
			}
		}
	}

	return s, false
}
