package models

import (
	"fmt"
	"strings"
	"unicode"
)

// ParsePhoneNumber accepts any US formatting of a ten digit number, with or without a leading 1.
func ParsePhoneNumber(s string) (PhoneNumber, error) {
	var digits strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return PhoneNumber{}, fmt.Errorf("phone number must have 10 digits, got %d", len(d))
	}

	return PhoneNumber{AreaCode: d[:3], Prefix: d[3:6], Line: d[6:]}, nil
}
