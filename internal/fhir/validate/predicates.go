package validate

import (
	"regexp"
	"strings"
	"time"
)

var (
	ssnPattern      = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	medicarePattern = regexp.MustCompile(`^\d{1,9}[A-Z]$`)
	npiPattern      = regexp.MustCompile(`^\d{10}$`)
)

// ValidIdentifier reports whether value is a well-formed identifier for the
// given system. Known systems get a per-system grammar; MRN systems and
// unrecognized systems only require a non-empty value.
func ValidIdentifier(value, system string) bool {
	if value == "" {
		return false
	}
	switch {
	case system == "http://hl7.org/fhir/sid/us-ssn":
		return ssnPattern.MatchString(value)
	case system == "http://hl7.org/fhir/sid/us-medicare":
		return medicarePattern.MatchString(value)
	case system == "http://hl7.org/fhir/sid/us-npi":
		return npiPattern.MatchString(value)
	case strings.HasSuffix(system, "/mrn"):
		return true
	}
	return true
}

// ValidISOTimestamp reports whether s parses as an ISO-8601 timestamp.
// A trailing "Z" is accepted as UTC, as are timestamps without an offset.
func ValidISOTimestamp(s string) bool {
	if s == "" {
		return false
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02",
	} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// ValidDate reports whether s parses under the given calendar-date layout.
func ValidDate(s, layout string) bool {
	_, err := time.Parse(layout, s)
	return err == nil
}
