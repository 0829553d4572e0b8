// Package phone normalizes supplier contact numbers. Numbers are stored
// in E.164 and rendered for humans only at the edges.
package phone

import (
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// NormalizePhone parses raw input and returns the E.164 form. The
// region hint only matters for numbers entered without a country code.
func NormalizePhone(raw, region string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("phone number cannot be empty")
	}
	if region == "" {
		region = defaultRegion
	}

	parsed, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("failed to parse phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("invalid phone number")
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// DisplayPhone renders a stored E.164 number in international
// convention. Input that does not parse comes back unchanged.
func DisplayPhone(e164 string) string {
	if e164 == "" {
		return ""
	}
	parsed, err := phonenumbers.Parse(e164, "ZZ")
	if err != nil {
		return e164
	}
	return phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL)
}
