// Package securityid resolves a ticker to a stable security identity and
// converts between CUSIP and ISIN identifiers.
package securityid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCUSIP is returned for identifiers that are not 8 or 9
// alphanumeric characters
var ErrInvalidCUSIP = errors.New("invalid CUSIP")

// expand writes each character as its Luhn value: digits as themselves,
// letters as A=10 ... Z=35
func expand(s string) (string, error) {
	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			b.WriteRune(c)
		case c >= 'A' && c <= 'Z':
			b.WriteString(strconv.Itoa(int(c-'A') + 10))
		default:
			return "", fmt.Errorf("%w: unexpected character %q in %q", ErrInvalidCUSIP, c, s)
		}
	}
	return b.String(), nil
}

// ISINCheckDigit computes the check digit of a country code + CUSIP9 base.
// The digit string is split into alternating groups and the group holding
// the last digit is doubled.
func ISINCheckDigit(base string) (int, error) {
	digits, err := expand(strings.ToUpper(base))
	if err != nil {
		return 0, err
	}

	total := 0
	parity := len(digits) % 2
	for i, c := range digits {
		d := int(c - '0')
		// odd length: doubled positions are 0, 2, 4...; even: 1, 3, 5...
		if (i%2 == 0) == (parity == 1) {
			d *= 2
			d = d/10 + d%10
		}
		total += d
	}
	return (10 - total%10) % 10, nil
}

// ISIN builds the ISIN of a CUSIP9 ("594918104" -> "US5949181045")
func ISIN(country, cusip9 string) (string, error) {
	country = strings.ToUpper(country)
	cusip9 = strings.ToUpper(cusip9)
	if len(country) != 2 {
		return "", fmt.Errorf("invalid country code %q", country)
	}
	if len(cusip9) != 9 {
		return "", fmt.Errorf("%w: want 9 characters, got %q", ErrInvalidCUSIP, cusip9)
	}
	check, err := ISINCheckDigit(country + cusip9)
	if err != nil {
		return "", err
	}
	return country + cusip9 + strconv.Itoa(check), nil
}

// CUSIPCheckDigit computes the ninth character of a CUSIP from the first
// eight. '*', '@' and '#' take the values 36, 37 and 38.
func CUSIPCheckDigit(cusip8 string) (int, error) {
	cusip8 = strings.ToUpper(cusip8)
	if len(cusip8) != 8 {
		return 0, fmt.Errorf("%w: want 8 characters, got %q", ErrInvalidCUSIP, cusip8)
	}

	sum := 0
	for i, c := range cusip8 {
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'A' && c <= 'Z':
			v = int(c-'A') + 10
		case c == '*':
			v = 36
		case c == '@':
			v = 37
		case c == '#':
			v = 38
		default:
			return 0, fmt.Errorf("%w: unexpected character %q in %q", ErrInvalidCUSIP, c, cusip8)
		}
		if i%2 == 1 {
			v *= 2
		}
		sum += v/10 + v%10
	}
	return (10 - sum%10) % 10, nil
}

// ValidCUSIP reports whether a 9 character CUSIP carries a correct check digit
func ValidCUSIP(cusip9 string) bool {
	if len(cusip9) != 9 {
		return false
	}
	check, err := CUSIPCheckDigit(cusip9[:8])
	if err != nil {
		return false
	}
	return strconv.Itoa(check) == cusip9[8:]
}

// ISINParts is an ISIN split into its components
type ISINParts struct {
	Country string
	CUSIP9  string
	Check   int
}

// ParseISIN splits a 12 character ISIN and verifies its check digit
func ParseISIN(isin string) (ISINParts, error) {
	isin = strings.ToUpper(strings.TrimSpace(isin))
	if len(isin) != 12 {
		return ISINParts{}, fmt.Errorf("invalid ISIN %q: want 12 characters", isin)
	}
	check, err := ISINCheckDigit(isin[:11])
	if err != nil {
		return ISINParts{}, err
	}
	if strconv.Itoa(check) != isin[11:] {
		return ISINParts{}, fmt.Errorf("invalid ISIN %q: check digit %s, want %d", isin, isin[11:], check)
	}
	return ISINParts{Country: isin[:2], CUSIP9: isin[2:11], Check: check}, nil
}
