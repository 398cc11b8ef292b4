// ABOUTME: Static city-to-IANA-timezone lookup for get_timezone_by_location.
// ABOUTME: Matching is case-insensitive on the city name.

package general

import "strings"

// cityTimezones covers the locations the lookup tool recognizes. Unknown
// cities produce an error with the name echoed back, not a guess.
var cityTimezones = map[string]string{
	"amsterdam":   "Europe/Amsterdam",
	"auckland":    "Pacific/Auckland",
	"berlin":      "Europe/Berlin",
	"calgary":     "America/Edmonton",
	"chicago":     "America/Chicago",
	"denver":      "America/Denver",
	"dubai":       "Asia/Dubai",
	"halifax":     "America/Halifax",
	"hong kong":   "Asia/Hong_Kong",
	"istanbul":    "Europe/Istanbul",
	"london":      "Europe/London",
	"los angeles": "America/Los_Angeles",
	"madrid":      "Europe/Madrid",
	"mexico city": "America/Mexico_City",
	"montreal":    "America/Toronto",
	"mumbai":      "Asia/Kolkata",
	"new york":    "America/New_York",
	"paris":       "Europe/Paris",
	"riyadh":      "Asia/Riyadh",
	"sao paulo":   "America/Sao_Paulo",
	"seattle":     "America/Los_Angeles",
	"seoul":       "Asia/Seoul",
	"shanghai":    "Asia/Shanghai",
	"singapore":   "Asia/Singapore",
	"sydney":      "Australia/Sydney",
	"tokyo":       "Asia/Tokyo",
	"toronto":     "America/Toronto",
	"vancouver":   "America/Vancouver",
	"winnipeg":    "America/Winnipeg",
	"zurich":      "Europe/Zurich",
}

func lookupTimezone(location string) (string, bool) {
	zone, ok := cityTimezones[strings.ToLower(strings.TrimSpace(location))]
	return zone, ok
}
