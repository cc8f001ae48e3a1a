package normalize

import (
	"regexp"
	"strings"
)

// German postal codes are exactly five digits.
var rePostalCode = regexp.MustCompile(`\b\d{5}\b`)

// House numbers inside a street string: a digit sequence with an optional
// single trailing letter ("5", "12a").
var reHouseNumber = regexp.MustCompile(`\b\d+[a-zA-Z]?\b`)

// Spelling variants of the street suffix, including mid-word occurrences
// ("Hauptstraße", "Bahnhofstrasse").
var reStrasse = regexp.MustCompile(`(?i)stra(?:ß|ss)e`)

// Umlauts and ß written out, so "Grüner Weg" and "Gruener Weg" compare equal.
var umlauts = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// Key derives the comparable address key from a formatted address string.
// The part before the first postal code is treated as the street region;
// house numbers, commas and dots are stripped, "straße"/"strasse" becomes
// "str", umlauts are written out, and the result is lowercased. The key has
// the form
// "<street>|<postal code>" with an empty postal code when none was found.
// Two addresses refer to the same place iff their keys are equal. The city
// is deliberately not part of the key.
func Key(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "|"
	}

	street := s
	postal := ""
	if loc := rePostalCode.FindStringIndex(s); loc != nil {
		street = s[:loc[0]]
		postal = s[loc[0]:loc[1]]
	}

	return streetKey(street) + "|" + postal
}

// KeyFromParts builds the key from an already separated street and postal
// code, as supplied by search queries and customer rows.
func KeyFromParts(street, postalCode string) string {
	return streetKey(street) + "|" + rePostalCode.FindString(postalCode)
}

// HasStreet reports whether the street portion of a key is non-empty.
// Keys without a street would match every record in the postal code area,
// so lookups reject them.
func HasStreet(key string) bool {
	return !strings.HasPrefix(key, "|")
}

// streetKey normalizes the street region of an address.
func streetKey(region string) string {
	s := reHouseNumber.ReplaceAllString(region, " ")
	s = strings.ReplaceAll(s, ",", " ")
	s = strings.ReplaceAll(s, ".", " ")
	s = reStrasse.ReplaceAllString(s, "str")
	s = umlauts.Replace(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}
